// fleetctl is the command-line entry point for the agent fleet workflow
// engine. Its root command structure mirrors the teacher's cmd/ao/root.go:
// package-level global flags, a PersistentPreRun that syncs --config to an
// environment variable so subcommands and internal/config.Load agree on
// the path, and a small set of Get* accessors subcommands use instead of
// re-parsing flags.
package main

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/boshu2/agentfleet/internal/config"
)

var (
	dryRun  bool
	verbose bool
	output  string
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "Manage a fleet of autonomous coding agents",
	Long: `fleetctl drives the agent workflow engine: executing new agent
instances, requesting reviews, checking state, and tearing instances down.

Each agent instance is a compound resource: a git worktree, a terminal
multiplexer session, an AI child process, and a tool-server child process,
all tracked together in one persisted row.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		syncConfigFlagToEnv()
	},
}

// Execute runs the root command, exiting the process with status 1 on
// failure, matching the teacher's cmd/ao Execute().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Show what would happen without executing")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Project config file, read in place of ./.fleet/config.yaml (~/.fleet/config.yaml is still read first)")

	rootCmd.AddCommand(executeCmd, terminateCmd, statusCmd, reviewCmd)
}

// GetDryRun returns the dry-run flag value for use by subcommands.
func GetDryRun() bool { return dryRun }

// GetVerbose returns the verbose flag value for use by subcommands.
func GetVerbose() bool { return verbose }

// GetOutput returns the output format for use by subcommands.
func GetOutput() string { return output }

// GetConfigFile returns the config file path for use by subcommands.
func GetConfigFile() string { return cfgFile }

func syncConfigFlagToEnv() {
	path := strings.TrimSpace(GetConfigFile())
	if path == "" {
		return
	}
	_ = os.Setenv("FLEET_CONFIG", path)
}

// loadConfig builds the effective config for cmd, following the same
// precedence internal/config.Load documents.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(cmd)
}

// newLogger builds a logrus logger honoring cfg.LogLevel, falling back to
// info on an unparsable level.
func newLogger(cfg *config.Config) *logrus.Entry {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if GetVerbose() {
		log.SetLevel(logrus.DebugLevel)
	}
	return logrus.NewEntry(log)
}

