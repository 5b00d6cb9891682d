package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestDefault(t *testing.T) {
	def := Default()
	if def.MaxReviews != 3 {
		t.Fatalf("MaxReviews = %d, want 3", def.MaxReviews)
	}
	if def.LogLevel != "info" {
		t.Fatalf("LogLevel = %q, want info", def.LogLevel)
	}
	if def.WorktreeTimeout != 30*time.Second {
		t.Fatalf("WorktreeTimeout = %v, want 30s", def.WorktreeTimeout)
	}
}

func TestLoadDefaultsWithoutCommand(t *testing.T) {
	withTempHome(t)
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxReviews != 3 {
		t.Fatalf("MaxReviews = %d, want 3", cfg.MaxReviews)
	}
	if cfg.Output != "table" {
		t.Fatalf("Output = %q, want table", cfg.Output)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	withTempHome(t)
	t.Setenv("FLEET_MAX_REVIEWS", "7")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxReviews != 7 {
		t.Fatalf("MaxReviews = %d, want 7", cfg.MaxReviews)
	}
}

func TestLoadHomeConfigOverridesDefault(t *testing.T) {
	home := withTempHome(t)
	writeConfigFile(t, filepath.Join(home, ".fleet", "config.yaml"), "max_reviews: 5\nlog_level: debug\n")
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxReviews != 5 {
		t.Fatalf("MaxReviews = %d, want 5", cfg.MaxReviews)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadProjectConfigOverridesHomeConfig(t *testing.T) {
	home := withTempHome(t)
	writeConfigFile(t, filepath.Join(home, ".fleet", "config.yaml"), "max_reviews: 5\n")

	projectDir := t.TempDir()
	writeConfigFile(t, filepath.Join(projectDir, ".fleet", "config.yaml"), "max_reviews: 9\n")
	withWorkingDir(t, projectDir)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxReviews != 9 {
		t.Fatalf("MaxReviews = %d, want 9 (project should win over home)", cfg.MaxReviews)
	}
}

func TestLoadEnvOverridesProjectConfig(t *testing.T) {
	withTempHome(t)
	projectDir := t.TempDir()
	writeConfigFile(t, filepath.Join(projectDir, ".fleet", "config.yaml"), "max_reviews: 9\n")
	withWorkingDir(t, projectDir)
	t.Setenv("FLEET_MAX_REVIEWS", "11")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxReviews != 11 {
		t.Fatalf("MaxReviews = %d, want 11 (env should win over project config)", cfg.MaxReviews)
	}
}

func TestLoadFlagOverridesEverything(t *testing.T) {
	withTempHome(t)
	t.Setenv("FLEET_MAX_REVIEWS", "11")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("max_reviews", 3, "")
	if err := cmd.Flags().Set("max_reviews", "20"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxReviews != 20 {
		t.Fatalf("MaxReviews = %d, want 20 (flag should win over env)", cfg.MaxReviews)
	}
}

func TestLoadProjectConfigPathRespectsFleetConfigEnv(t *testing.T) {
	withTempHome(t)
	explicit := filepath.Join(t.TempDir(), "custom.yaml")
	writeConfigFile(t, explicit, "max_reviews: 15\n")
	t.Setenv("FLEET_CONFIG", explicit)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MaxReviews != 15 {
		t.Fatalf("MaxReviews = %d, want 15", cfg.MaxReviews)
	}
}

func TestLoadMissingConfigFilesIsNotAnError(t *testing.T) {
	withTempHome(t)
	withWorkingDir(t, t.TempDir())
	if _, err := Load(nil); err != nil {
		t.Fatalf("Load() error = %v, want nil when no config files exist", err)
	}
}

func withTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("FLEET_CONFIG", "")
	return home
}

func withWorkingDir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd() error = %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func writeConfigFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
