// Package process implements the capability interfaces against real OS
// processes: git worktrees, tmux sessions, and the AI/tool-server child
// processes, grounded on the teacher's internal/rpi/worktree.go and
// internal/rpi/toolchain.go — exec.CommandContext with a per-call timeout,
// cmd.Dir set to the repository root, CombinedOutput for diagnostics. This
// is the only package in the module that shells out; everything upstream
// of it (the engine, the allocator) only ever sees the capability
// interfaces.
package process

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/boshu2/agentfleet/internal/capability"
)

// DefaultGitTimeout bounds a single git invocation, mirroring the
// teacher's per-call timeout passed into exec.CommandContext.
const DefaultGitTimeout = 30 * time.Second

// Worktree creates and removes git worktrees as sibling directories of
// RepoRoot, following the teacher's tryCreateWorktree naming convention
// (repoBasename + "-" + a per-instance suffix) rather than nesting them
// inside the repository.
type Worktree struct {
	RepoRoot string
	BaseDir  string // overrides the sibling-of-RepoRoot default when set
	Timeout  time.Duration
}

var _ capability.Worktree = (*Worktree)(nil)

func (w *Worktree) timeout() time.Duration {
	if w.Timeout > 0 {
		return w.Timeout
	}
	return DefaultGitTimeout
}

func (w *Worktree) pathFor(name string) string {
	base := w.BaseDir
	if base == "" {
		base = filepath.Dir(w.RepoRoot)
	}
	return filepath.Join(base, filepath.Base(w.RepoRoot)+"-"+name)
}

// Create runs "git worktree add -b <branch> <path> <base>". A caller can
// pin an exact path via req.Options["path"]; otherwise the path is derived
// from req.Name, matching the teacher's tryCreateWorktree collision
// handling: a path that already exists is reported as
// capability.WorktreeExists rather than retried here (retrying belongs to
// the allocator/engine, which own id generation).
func (w *Worktree) Create(ctx context.Context, req capability.WorktreeRequest) (capability.WorktreeResult, error) {
	path := req.Options["path"]
	if path == "" {
		path = w.pathFor(req.Name)
	}

	cctx, cancel := context.WithTimeout(ctx, w.timeout())
	defer cancel()

	args := []string{"worktree", "add", "-b", req.Branch, path}
	if req.BaseBranch != "" {
		args = append(args, req.BaseBranch)
	}
	cmd := exec.CommandContext(cctx, "git", args...)
	cmd.Dir = w.RepoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "already exists") {
			return capability.WorktreeResult{}, &capability.WorktreeError{Kind: capability.WorktreeExists, Path: path, Err: err}
		}
		if cctx.Err() == context.DeadlineExceeded {
			return capability.WorktreeResult{}, &capability.WorktreeError{Kind: capability.WorktreeCreationFailed, Path: path, Err: fmt.Errorf("git worktree add timed out after %s", w.timeout())}
		}
		return capability.WorktreeResult{}, &capability.WorktreeError{Kind: capability.WorktreeCreationFailed, Path: path, Err: fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(string(out)))}
	}
	return capability.WorktreeResult{Path: path, Branch: req.Branch}, nil
}

// Remove runs "git worktree remove --force <path>".
func (w *Worktree) Remove(ctx context.Context, path string) error {
	cctx, cancel := context.WithTimeout(ctx, w.timeout())
	defer cancel()

	cmd := exec.CommandContext(cctx, "git", "worktree", "remove", "--force", path)
	cmd.Dir = w.RepoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(out), "not a working tree") {
			return &capability.WorktreeError{Kind: capability.WorktreeNotFound, Path: path, Err: err}
		}
		return &capability.WorktreeError{Kind: capability.WorktreeRemovalFailed, Path: path, Err: fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(string(out)))}
	}
	return nil
}
