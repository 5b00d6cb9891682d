package capability

import "fmt"

// WorktreeErrorKind classifies a Worktree capability failure per spec.md
// §4.6.
type WorktreeErrorKind string

const (
	WorktreeExists             WorktreeErrorKind = "EXISTS"
	WorktreeNotFound           WorktreeErrorKind = "NOT_FOUND"
	WorktreeUncommittedChanges WorktreeErrorKind = "UNCOMMITTED_CHANGES"
	WorktreeBranchNotFound     WorktreeErrorKind = "BRANCH_NOT_FOUND"
	WorktreeCreationFailed     WorktreeErrorKind = "CREATION_FAILED"
	WorktreeRemovalFailed      WorktreeErrorKind = "REMOVAL_FAILED"
)

// WorktreeError is returned by Worktree.Create/Remove, typed by sub-kind so
// the allocator's compensating teardown can decide whether a retry or an
// abort is appropriate.
type WorktreeError struct {
	Kind WorktreeErrorKind
	Path string
	Err  error
}

func (e *WorktreeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("worktree %s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("worktree %s: %v", e.Kind, e.Err)
}

func (e *WorktreeError) Unwrap() error { return e.Err }

// MultiplexerErrorKind classifies a Multiplexer capability failure.
type MultiplexerErrorKind string

const (
	MultiplexerInvalidName    MultiplexerErrorKind = "INVALID_NAME"
	MultiplexerInvalidWorkdir MultiplexerErrorKind = "INVALID_WORKDIR"
	MultiplexerInvalidEnvKey  MultiplexerErrorKind = "INVALID_ENV_KEY"
	MultiplexerNotFound       MultiplexerErrorKind = "NOT_FOUND"
	MultiplexerCreationFailed MultiplexerErrorKind = "CREATION_FAILED"
)

// MultiplexerError is returned by Multiplexer methods, typed by sub-kind.
type MultiplexerError struct {
	Kind MultiplexerErrorKind
	Name string
	Err  error
}

func (e *MultiplexerError) Error() string {
	return fmt.Sprintf("multiplexer %s: %s: %v", e.Kind, e.Name, e.Err)
}

func (e *MultiplexerError) Unwrap() error { return e.Err }

// AIErrorKind classifies an AILauncher capability failure.
type AIErrorKind string

const (
	AILaunchFailed    AIErrorKind = "CLAUDE_LAUNCH_FAILED"
	AITerminateFailed AIErrorKind = "CLAUDE_TERMINATE_FAILED"
	AINotFound        AIErrorKind = "CLAUDE_NOT_FOUND"
)

// AIError is returned by AILauncher methods, typed by sub-kind.
type AIError struct {
	Kind AIErrorKind
	Err  error
}

func (e *AIError) Error() string { return fmt.Sprintf("ai launcher %s: %v", e.Kind, e.Err) }
func (e *AIError) Unwrap() error { return e.Err }

// ToolServerErrorKind classifies a ToolServerSpawner capability failure.
type ToolServerErrorKind string

const (
	ToolServerSpawnFailed ToolServerErrorKind = "TOOLSERVER_SPAWN_FAILED"
	ToolServerKillFailed  ToolServerErrorKind = "TOOLSERVER_KILL_FAILED"
)

// ToolServerError is returned by ToolServerSpawner methods, typed by sub-kind.
type ToolServerError struct {
	Kind ToolServerErrorKind
	Err  error
}

func (e *ToolServerError) Error() string { return fmt.Sprintf("tool server %s: %v", e.Kind, e.Err) }
func (e *ToolServerError) Unwrap() error { return e.Err }
