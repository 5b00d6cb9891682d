package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boshu2/agentfleet/internal/formatter"
	"github.com/boshu2/agentfleet/internal/store"
	"github.com/boshu2/agentfleet/internal/types"
)

var (
	listType   string
	listStatus string
	listIssue  int
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List agent instances matching a filter",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "Filter by instance type (coding, review, planning)")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	listCmd.Flags().IntVar(&listIssue, "issue", 0, "Filter by GitHub issue number")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum rows to return (omit for no limit; 0 returns none)")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, closer, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer closer()

	filter := store.InstanceFilter{OrderBy: "last_activity", OrderDirection: "DESC"}
	if cmd.Flags().Changed("limit") {
		limit := listLimit
		filter.Limit = &limit
	}
	if listType != "" {
		filter.Types = []types.InstanceType{types.InstanceType(listType)}
	}
	if listStatus != "" {
		filter.Statuses = []types.Status{types.Status(listStatus)}
	}
	if listIssue > 0 {
		filter.IssueNumber = &listIssue
	}

	insts, err := eng.ListInstances(filter)
	if err != nil {
		return err
	}

	if GetOutput() == "json" {
		enc := json.NewEncoder(cmdOut())
		enc.SetIndent("", "  ")
		return enc.Encode(insts)
	}

	tbl := formatter.NewTable(cmdOut(), "ID", "TYPE", "STATUS", "ISSUE", "BRANCH")
	tbl.SetMaxWidth(4, 40)
	for _, inst := range insts {
		issue := ""
		if inst.IssueNumber != 0 {
			issue = fmt.Sprintf("%d", inst.IssueNumber)
		}
		tbl.AddRow(inst.ID, string(inst.Type), string(inst.Status), issue, inst.BranchName)
	}
	return tbl.Render()
}

func init() {
	rootCmd.AddCommand(listCmd)
}
