// Package capability defines the narrow contracts the workflow engine and
// resource allocator consume for every external concern: git worktrees, the
// terminal multiplexer, the AI launcher, the tool-server spawner, and the
// clock. The engine never touches the OS directly — it only ever calls
// through these interfaces, which is what lets internal/capability/fake
// stand in during tests.
package capability

import (
	"context"
	"os"
	"time"

	"github.com/boshu2/agentfleet/internal/types"
)

// WorktreeRequest describes a worktree to create.
type WorktreeRequest struct {
	Name       string
	Branch     string
	BaseBranch string
	Options    map[string]string
}

// WorktreeResult is the post-condition of a successful Create: a usable
// worktree exists at Path checked out to Branch.
type WorktreeResult struct {
	Path   string
	Branch string
}

// Worktree is the git-worktree capability. Create must never partially
// create: either a usable worktree exists at the returned path, or nothing
// was created.
type Worktree interface {
	Create(ctx context.Context, req WorktreeRequest) (WorktreeResult, error)
	Remove(ctx context.Context, path string) error
}

// MultiplexerRequest describes a terminal multiplexer session to create.
type MultiplexerRequest struct {
	Name             string
	WorkingDirectory string
	Options          map[string]string
}

// MultiplexerResult confirms the session was created.
type MultiplexerResult struct {
	Name string
}

// Multiplexer is the terminal multiplexer session capability. Implementations
// must validate Name, WorkingDirectory, and any injected environment
// variable keys with ValidateSessionName, ValidateWorkingDirectory, and
// ValidateEnvKey before reaching the underlying process launcher.
type Multiplexer interface {
	Create(ctx context.Context, req MultiplexerRequest) (MultiplexerResult, error)
	Kill(ctx context.Context, name string) error
	SendKeys(ctx context.Context, name, text string) error
	// Alive reports whether the named session currently exists, for the
	// on-demand liveness probing spec.md §4.6 describes (liveness is
	// probed, never persisted).
	Alive(ctx context.Context, name string) (bool, error)
}

// AILaunchRequest configures the AI child process.
type AILaunchRequest struct {
	WorkspacePath   string
	EnvironmentVars map[string]string
}

// AISession identifies a launched AI process.
type AISession struct {
	ID  string
	PID int
}

// AILauncher is the AI child process capability.
type AILauncher interface {
	Launch(ctx context.Context, req AILaunchRequest) (AISession, error)
	Terminate(ctx context.Context, pidOrID string) error
	// Alive reports whether the process identified by pidOrID is still
	// running, for the on-demand liveness probing spec.md §4.6 describes
	// (a non-empty claude_pid implies a process was once launched; it says
	// nothing about whether it is currently alive).
	Alive(ctx context.Context, pidOrID string) (bool, error)
}

// ToolServerRequest configures a tool-server child process for one instance.
type ToolServerRequest struct {
	AgentID   string
	Workspace string
	Branch    string
	Session   string
	Issue     *int
}

// ToolServerHandle is the lifecycle handle for a spawned tool-server
// process, keyed by instance id in the engine's tool-server handle map.
type ToolServerHandle interface {
	Kill(signal os.Signal) error
	Killed() bool
}

// ToolServerSpawner is the tool-server process capability.
type ToolServerSpawner interface {
	Spawn(ctx context.Context, req ToolServerRequest) (ToolServerHandle, error)
}

// IssueSource fetches a single GitHub issue by number. The engine never
// calls this itself (the GitHub API is out of scope per spec.md §1), and
// cmd/fleetctl does not call it either; internal/ghsource implements it.
type IssueSource interface {
	Get(ctx context.Context, number int) (*types.GitHubIssue, error)
}

// Clock abstracts wall-clock time so tests can be deterministic.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
