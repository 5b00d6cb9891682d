package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var terminateReason string

var terminateCmd = &cobra.Command{
	Use:   "terminate <instance-id>",
	Short: "Tear down an agent instance's compound resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runTerminate,
}

func init() {
	terminateCmd.Flags().StringVar(&terminateReason, "reason", "", "Optional reason recorded in the log")
}

func runTerminate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, closer, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := eng.Terminate(ctx, args[0], terminateReason); err != nil {
		return err
	}
	fmt.Fprintf(cmdOut(), "terminated %s\n", args[0])
	return nil
}
