package allocator

import (
	"context"
	"errors"
	"testing"

	"github.com/boshu2/agentfleet/internal/capability"
	"github.com/boshu2/agentfleet/internal/capability/fake"
)

func newTestAllocator() (*Allocator, *fake.Worktree, *fake.Multiplexer, *fake.AILauncher, *fake.ToolServerSpawner) {
	wt := fake.NewWorktree()
	mux := fake.NewMultiplexer()
	ai := fake.NewAILauncher()
	ts := &fake.ToolServerSpawner{}
	a := &Allocator{Worktree: wt, Multiplexer: mux, AI: ai, ToolServer: ts}
	return a, wt, mux, ai, ts
}

func TestExecuteHappyPath(t *testing.T) {
	a, wt, mux, _, _ := newTestAllocator()
	res, err := a.Execute(context.Background(), Request{
		InstanceID: "work-1-1-abc",
		Branch:     "agent/work-1-1-abc",
		BaseBranch: "main",
		AgentType:  "coding",
		Prompt:     "start working",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.WorktreePath == "" || res.SessionName == "" || res.AISessionID == "" {
		t.Fatalf("incomplete result: %+v", res)
	}
	if !wt.Exists(res.WorktreePath) {
		t.Fatal("expected worktree to exist after successful Execute")
	}
	if !mux.HasSession(res.SessionName) {
		t.Fatal("expected session to exist after successful Execute")
	}
	if got := mux.SentKeys[res.SessionName]; len(got) != 1 || got[0] != "start working" {
		t.Fatalf("SentKeys = %v, want [\"start working\"]", got)
	}
}

func TestExecuteTearsDownOnMultiplexerFailure(t *testing.T) {
	a, wt, mux, _, _ := newTestAllocator()
	wantErr := errors.New("session create boom")
	mux.CreateFunc = func(ctx context.Context, req capability.MultiplexerRequest) (capability.MultiplexerResult, error) {
		return capability.MultiplexerResult{}, wantErr
	}
	_, err := a.Execute(context.Background(), Request{InstanceID: "work-1-1-abc", Branch: "b", BaseBranch: "main"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Execute() error = %v, want %v", err, wantErr)
	}
	if wt.Exists("/fake/worktrees/work-1-1-abc") {
		t.Fatal("expected worktree to be torn down after multiplexer failure")
	}
}

func TestExecuteTearsDownOnAIFailure(t *testing.T) {
	a, wt, mux, ai, _ := newTestAllocator()
	wantErr := errors.New("ai launch boom")
	ai.LaunchFunc = func(ctx context.Context, req capability.AILaunchRequest) (capability.AISession, error) {
		return capability.AISession{}, wantErr
	}
	_, err := a.Execute(context.Background(), Request{InstanceID: "work-1-1-abc", Branch: "b", BaseBranch: "main"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Execute() error = %v, want %v", err, wantErr)
	}
	if wt.Exists("/fake/worktrees/work-1-1-abc") {
		t.Fatal("expected worktree to be torn down after AI failure")
	}
	if mux.HasSession("work-1-1-abc") {
		t.Fatal("expected session to be torn down after AI failure")
	}
}

func TestExecuteInjectsReservedEnvVars(t *testing.T) {
	a, _, _, ai, _ := newTestAllocator()
	var captured capability.AILaunchRequest
	ai.LaunchFunc = func(ctx context.Context, req capability.AILaunchRequest) (capability.AISession, error) {
		captured = req
		return capability.AISession{ID: "s1", PID: 123}, nil
	}
	_, err := a.Execute(context.Background(), Request{
		InstanceID:      "work-1-1-abc",
		Branch:          "b",
		BaseBranch:      "main",
		AgentType:       "review",
		EnvironmentVars: map[string]string{"EXTRA": "1"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if captured.EnvironmentVars["INSTANCE_ID"] != "work-1-1-abc" {
		t.Fatalf("INSTANCE_ID = %q", captured.EnvironmentVars["INSTANCE_ID"])
	}
	if captured.EnvironmentVars["MCP_SERVER_TYPE"] != "review" {
		t.Fatalf("MCP_SERVER_TYPE = %q", captured.EnvironmentVars["MCP_SERVER_TYPE"])
	}
	if captured.EnvironmentVars["EXTRA"] != "1" {
		t.Fatalf("EXTRA passthrough missing: %+v", captured.EnvironmentVars)
	}
}

func TestTeardownBestEffortContinuesPastFailures(t *testing.T) {
	a, wt, mux, ai, _ := newTestAllocator()
	res, err := a.Execute(context.Background(), Request{InstanceID: "work-1-1-abc", Branch: "b", BaseBranch: "main"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	mux.KillFunc = func(ctx context.Context, name string) error { return errors.New("kill failed") }
	// Teardown must still remove the worktree even though the multiplexer
	// kill fails along the way.
	a.Teardown(context.Background(), "work-1-1-abc", res)
	if wt.Exists(res.WorktreePath) {
		t.Fatal("expected worktree teardown to proceed despite multiplexer kill failure")
	}
	_ = ai
}
