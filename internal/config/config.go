// Package config loads the fleet workflow engine's settings the way the
// teacher's internal/config/config.go documents — flags > environment >
// project config > home config > defaults — but on top of
// github.com/spf13/viper instead of a hand-rolled merge chain, per
// SPEC_FULL.md §2.3. Precedence, highest to lowest:
//  1. Command-line flags bound via cmd.Flags()
//  2. Environment variables, prefixed FLEET_ (e.g. FLEET_MAX_REVIEWS)
//  3. Project config: .fleet/config.yaml in the current directory
//  4. Home config: ~/.fleet/config.yaml
//  5. Defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "FLEET"

// Config holds the engine-scoped settings the workflow engine, allocator,
// and capabilities need at startup.
type Config struct {
	// StorePath is the bbolt database file's path.
	StorePath string `mapstructure:"store_path"`

	// MaxReviews is the default max_reviews value requestReview uses when
	// a caller does not supply one.
	MaxReviews int `mapstructure:"max_reviews"`

	// WorktreeTimeout and MultiplexerTimeout bound how long each git and
	// tmux call may run before it is treated as a capability error
	// (spec.md §5's "SHOULD carry an implementation-defined timeout").
	// AITimeout and ToolServerTimeout are loaded but not passed to any
	// capability; AI and tool-server launches run without a timeout.
	WorktreeTimeout    time.Duration `mapstructure:"worktree_timeout"`
	MultiplexerTimeout time.Duration `mapstructure:"multiplexer_timeout"`
	AITimeout          time.Duration `mapstructure:"ai_timeout"`
	ToolServerTimeout  time.Duration `mapstructure:"tool_server_timeout"`

	// GitHubPollInterval is a GitHub polling interval setting. It is loaded
	// but nothing in this module polls GitHub or reads it.
	GitHubPollInterval time.Duration `mapstructure:"github_poll_interval"`

	// GitHubToken and GitHubOwner/Repo match the arguments of
	// internal/ghsource.New. They are loaded but not passed to it by any
	// code in this module.
	GitHubToken string `mapstructure:"github_token"`
	GitHubOwner string `mapstructure:"github_owner"`
	GitHubRepo  string `mapstructure:"github_repo"`

	// LogLevel is parsed into a logrus.Level by callers (kept as a string
	// here so config stays free of the logging package dependency).
	LogLevel string `mapstructure:"log_level"`

	// Verbose and Output mirror the teacher's global flags for CLI
	// ergonomics; the engine itself does not consume them.
	Verbose bool   `mapstructure:"verbose"`
	Output  string `mapstructure:"output"`
}

// Default returns the configuration used when no flag, environment
// variable, or config file overrides a setting.
func Default() *Config {
	return &Config{
		StorePath:          defaultStorePath(),
		MaxReviews:         3,
		WorktreeTimeout:    30 * time.Second,
		MultiplexerTimeout: 10 * time.Second,
		AITimeout:          30 * time.Second,
		ToolServerTimeout:  10 * time.Second,
		GitHubPollInterval: 2 * time.Minute,
		LogLevel:           "info",
		Output:             "table",
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".fleet/fleet.db"
	}
	return filepath.Join(home, ".fleet", "fleet.db")
}

// homeConfigPath returns ~/.fleet/config.yaml.
func homeConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fleet", "config.yaml")
}

// projectConfigPath returns .fleet/config.yaml relative to the current
// directory, or the FLEET_CONFIG override when set.
func projectConfigPath() string {
	if override := strings.TrimSpace(os.Getenv("FLEET_CONFIG")); override != "" {
		return override
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Join(cwd, ".fleet", "config.yaml")
}

// Load builds a Config from cmd's persistent flags, FLEET_* environment
// variables, project and home config files, and defaults, in that
// precedence order. cmd may be nil, in which case only env/file/defaults
// apply — useful for non-CLI callers (tests, library use).
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("store_path", def.StorePath)
	v.SetDefault("max_reviews", def.MaxReviews)
	v.SetDefault("worktree_timeout", def.WorktreeTimeout)
	v.SetDefault("multiplexer_timeout", def.MultiplexerTimeout)
	v.SetDefault("ai_timeout", def.AITimeout)
	v.SetDefault("tool_server_timeout", def.ToolServerTimeout)
	v.SetDefault("github_poll_interval", def.GitHubPollInterval)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("output", def.Output)
	v.SetDefault("verbose", def.Verbose)

	if home := homeConfigPath(); home != "" {
		if data, err := os.ReadFile(home); err == nil {
			v.SetConfigType("yaml")
			if err := v.MergeConfig(strings.NewReader(string(data))); err != nil {
				return nil, fmt.Errorf("parse home config %s: %w", home, err)
			}
		}
	}
	if project := projectConfigPath(); project != "" {
		if data, err := os.ReadFile(project); err == nil {
			v.SetConfigType("yaml")
			if err := v.MergeConfig(strings.NewReader(string(data))); err != nil {
				return nil, fmt.Errorf("parse project config %s: %w", project, err)
			}
		}
	}
	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
