package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/agentfleet/internal/engine"
	"github.com/boshu2/agentfleet/internal/types"
)

var (
	executeIssue        int
	executeBaseBranch   string
	executeTargetBranch string
	executePrompt       string
	executeSystemPrompt string
	executeReviewType   bool
	executeEnvVars      []string
	executeMaxReviews   int
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Allocate a new agent instance and start it working",
	RunE:  runExecute,
}

func init() {
	executeCmd.Flags().IntVar(&executeIssue, "issue", 0, "GitHub issue number this instance works")
	executeCmd.Flags().StringVar(&executeBaseBranch, "base-branch", "main", "Branch the worktree is created from")
	executeCmd.Flags().StringVar(&executeTargetBranch, "branch", "", "Branch name for the new worktree (default: agent/<instance-id>)")
	executeCmd.Flags().StringVar(&executePrompt, "prompt", "", "Prompt injected into the agent's session once it starts")
	executeCmd.Flags().StringVar(&executeSystemPrompt, "system-prompt", "", "System prompt recorded for the instance")
	executeCmd.Flags().BoolVar(&executeReviewType, "review", false, "Create a review instance instead of a coding instance")
	executeCmd.Flags().StringArrayVar(&executeEnvVars, "env", nil, "Extra KEY=VALUE pairs passed to the AI process (repeatable)")
	executeCmd.Flags().IntVar(&executeMaxReviews, "max-reviews", 0, "Max review count recorded in the returned descriptor's config; not persisted (0 = configured default)")
}

func runExecute(cmd *cobra.Command, args []string) error {
	envVars, err := parseEnvPairs(executeEnvVars)
	if err != nil {
		return err
	}

	instType := types.InstanceTypeCoding
	if executeReviewType {
		instType = types.InstanceTypeReview
	}

	if GetDryRun() {
		fmt.Fprintf(cmdOut(), "would execute: type=%s issue=%d base_branch=%s branch=%s\n",
			instType, executeIssue, executeBaseBranch, executeTargetBranch)
		return nil
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	maxReviews := executeMaxReviews
	if maxReviews <= 0 {
		maxReviews = cfg.MaxReviews
	}
	execCfg := engine.ExecuteConfig{
		Type:            instType,
		BaseBranch:      executeBaseBranch,
		TargetBranch:    executeTargetBranch,
		SystemPrompt:    executeSystemPrompt,
		Prompt:          executePrompt,
		EnvironmentVars: envVars,
		MaxReviews:      maxReviews,
	}
	if executeIssue > 0 {
		execCfg.Issue = &executeIssue
	}

	eng, closer, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer closer()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	desc, err := eng.Execute(ctx, execCfg)
	if err != nil {
		return err
	}
	return renderDescriptor(desc)
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --env value %q, want KEY=VALUE", p)
		}
		out[k] = v
	}
	return out, nil
}

func renderDescriptor(desc *engine.Descriptor) error {
	if GetOutput() == "json" {
		enc := json.NewEncoder(cmdOut())
		enc.SetIndent("", "  ")
		return enc.Encode(desc)
	}
	fmt.Fprintf(cmdOut(), "instance    %s\n", desc.ID)
	fmt.Fprintf(cmdOut(), "type        %s\n", desc.Type)
	fmt.Fprintf(cmdOut(), "status      %s\n", desc.Status)
	fmt.Fprintf(cmdOut(), "worktree    %s\n", desc.Resources.WorktreePath)
	fmt.Fprintf(cmdOut(), "branch      %s\n", desc.Resources.Branch)
	fmt.Fprintf(cmdOut(), "session     %s\n", desc.Resources.SessionName)
	return nil
}
