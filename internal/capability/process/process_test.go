package process

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/boshu2/agentfleet/internal/capability"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func requireTmux(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v (%s)", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("commit", "--allow-empty", "-q", "-m", "initial")
	return dir
}

func TestWorktreeCreateAndRemove(t *testing.T) {
	repo := initRepo(t)
	w := &Worktree{RepoRoot: repo, BaseDir: t.TempDir(), Timeout: 10 * time.Second}

	res, err := w.Create(context.Background(), capability.WorktreeRequest{Name: "work-1", Branch: "agent/work-1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.Path == "" {
		t.Fatal("expected non-empty worktree path")
	}

	if err := w.Remove(context.Background(), res.Path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
}

func TestWorktreeCreateCollision(t *testing.T) {
	repo := initRepo(t)
	base := t.TempDir()
	w := &Worktree{RepoRoot: repo, BaseDir: base, Timeout: 10 * time.Second}

	if _, err := w.Create(context.Background(), capability.WorktreeRequest{Name: "dup", Branch: "agent/dup-1"}); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	_, err := w.Create(context.Background(), capability.WorktreeRequest{Name: "dup", Branch: "agent/dup-2"})
	if err == nil {
		t.Fatal("expected second Create() with the same name to fail")
	}
	var wtErr *capability.WorktreeError
	if !asWorktreeError(err, &wtErr) || wtErr.Kind != capability.WorktreeExists {
		t.Fatalf("err = %v, want WorktreeExists", err)
	}
}

func asWorktreeError(err error, target **capability.WorktreeError) bool {
	we, ok := err.(*capability.WorktreeError)
	if !ok {
		return false
	}
	*target = we
	return true
}

func TestWorktreePathFor(t *testing.T) {
	w := &Worktree{RepoRoot: "/home/user/myrepo"}
	got := w.pathFor("work-123")
	want := filepath.Join("/home/user", "myrepo-work-123")
	if got != want {
		t.Fatalf("pathFor() = %q, want %q", got, want)
	}
}

func TestMultiplexerCreateKillSendKeys(t *testing.T) {
	requireTmux(t)
	dir := t.TempDir()
	m := &Multiplexer{Timeout: 10 * time.Second}
	name := "fleet-test-session"

	if _, err := m.Create(context.Background(), capability.MultiplexerRequest{Name: name, WorkingDirectory: dir}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Kill(context.Background(), name) })

	if err := m.SendKeys(context.Background(), name, "echo hello"); err != nil {
		t.Fatalf("SendKeys() error = %v", err)
	}
	if err := m.Kill(context.Background(), name); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
}

func TestMultiplexerCreateRejectsUnsafeName(t *testing.T) {
	m := &Multiplexer{}
	_, err := m.Create(context.Background(), capability.MultiplexerRequest{Name: "bad; rm -rf /", WorkingDirectory: t.TempDir()})
	if err == nil {
		t.Fatal("expected an error for an unsafe session name")
	}
}
