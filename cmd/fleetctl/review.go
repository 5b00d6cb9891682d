package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reviewMaxReviews int

var reviewCmd = &cobra.Command{
	Use:   "review <instance-id>",
	Short: "Request a review against a started agent instance",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().IntVar(&reviewMaxReviews, "max-reviews", 0, "Max reviews allowed for this instance (0 = configured default)")
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, closer, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer closer()

	maxReviews := reviewMaxReviews
	if maxReviews <= 0 {
		maxReviews = cfg.MaxReviews
	}
	reviewID, err := eng.RequestReview(args[0], maxReviews)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmdOut(), "review instance requested: %s\n", reviewID)
	return nil
}
