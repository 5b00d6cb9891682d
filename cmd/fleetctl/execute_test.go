package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseEnvPairs(t *testing.T) {
	got, err := parseEnvPairs([]string{"FOO=bar", "BAZ=qux=extra"})
	if err != nil {
		t.Fatalf("parseEnvPairs() error = %v", err)
	}
	if got["FOO"] != "bar" {
		t.Fatalf("FOO = %q, want bar", got["FOO"])
	}
	if got["BAZ"] != "qux=extra" {
		t.Fatalf("BAZ = %q, want qux=extra", got["BAZ"])
	}
}

func TestParseEnvPairsEmpty(t *testing.T) {
	got, err := parseEnvPairs(nil)
	if err != nil {
		t.Fatalf("parseEnvPairs(nil) error = %v", err)
	}
	if got != nil {
		t.Fatalf("got = %v, want nil", got)
	}
}

func TestParseEnvPairsRejectsMissingEquals(t *testing.T) {
	if _, err := parseEnvPairs([]string{"NOEQUALSHERE"}); err == nil {
		t.Fatal("expected an error for a pair without '='")
	}
}

func TestRunExecuteDryRun(t *testing.T) {
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = orig })

	origDryRun := dryRun
	dryRun = true
	t.Cleanup(func() { dryRun = origDryRun })

	if err := runExecute(executeCmd, nil); err != nil {
		t.Fatalf("runExecute() error = %v", err)
	}
	if !strings.Contains(buf.String(), "would execute") {
		t.Fatalf("output = %q, want a dry-run message", buf.String())
	}
}
