package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/boshu2/agentfleet/internal/engine"
)

var (
	statusMaxReviews int
	statusProbe      bool
)

var statusCmd = &cobra.Command{
	Use:   "status <instance-id>",
	Short: "Show an agent instance's derived state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusMaxReviews, "max-reviews", 0, "Max reviews used to compute review_count headroom (0 = configured default)")
	statusCmd.Flags().BoolVar(&statusProbe, "probe", false, "Also probe whether the AI process and multiplexer session are currently alive")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	eng, closer, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer closer()

	maxReviews := statusMaxReviews
	if maxReviews <= 0 {
		maxReviews = cfg.MaxReviews
	}
	state, err := eng.GetState(args[0], maxReviews)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("instance %s not found", args[0])
	}

	var liveness *engine.Liveness
	if statusProbe {
		pctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		liveness, err = eng.ProbeLiveness(pctx, args[0])
		if err != nil {
			return err
		}
	}

	if GetOutput() == "json" {
		enc := json.NewEncoder(cmdOut())
		enc.SetIndent("", "  ")
		if liveness != nil {
			return enc.Encode(struct {
				*engine.State
				Liveness *engine.Liveness `json:"liveness"`
			}{State: state, Liveness: liveness})
		}
		return enc.Encode(state)
	}
	fmt.Fprintf(cmdOut(), "phase          %s\n", state.Phase)
	fmt.Fprintf(cmdOut(), "review_count   %d/%d\n", state.ReviewCount, state.MaxReviews)
	if state.CurrentReviewInstanceID != "" {
		fmt.Fprintf(cmdOut(), "active_review  %s\n", state.CurrentReviewInstanceID)
	}
	fmt.Fprintf(cmdOut(), "last_activity  %s\n", state.LastActivity.Format("2006-01-02T15:04:05Z07:00"))
	if liveness != nil {
		fmt.Fprintf(cmdOut(), "ai_alive       %t\n", liveness.AIAlive)
		fmt.Fprintf(cmdOut(), "session_alive  %t\n", liveness.MultiplexerAlive)
	}
	return nil
}
