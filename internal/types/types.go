// Package types defines the data model shared by the fleet workflow engine,
// its persistence store, and its resource allocator: instances (agents),
// events, relationships between instances, and engine-scoped config.
package types

import "time"

// Status is the lifecycle state of an Instance.
type Status string

const (
	// StatusStarted is the initial state after a successful execute.
	StatusStarted Status = "started"

	// StatusWaitingReview means the instance requested a review and is
	// waiting for it to land.
	StatusWaitingReview Status = "waiting_review"

	// StatusPRCreated means a pull request now exists for this instance's work.
	StatusPRCreated Status = "pr_created"

	// StatusPRClosed is terminal: the pull request was closed without merging.
	StatusPRClosed Status = "pr_closed"

	// StatusPRMerged is terminal: the pull request merged.
	StatusPRMerged Status = "pr_merged"

	// StatusTerminated is terminal: the instance was torn down.
	StatusTerminated Status = "terminated"
)

// IsTerminal reports whether s is one of the three terminal statuses from
// which no further transition is legal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusTerminated, StatusPRClosed, StatusPRMerged:
		return true
	default:
		return false
	}
}

// InstanceType classifies what an Instance represents.
type InstanceType string

const (
	// InstanceTypeCoding is a primary issue-working agent.
	InstanceTypeCoding InstanceType = "coding"

	// InstanceTypeReview is a review agent spawned against a coding parent.
	InstanceTypeReview InstanceType = "review"

	// InstanceTypePlanning is a planning agent.
	InstanceTypePlanning InstanceType = "planning"
)

// RelationshipType classifies an edge between two instances.
type RelationshipType string

// RelationshipSpawnedReview is the edge a parent gets to a review agent it
// requested.
const RelationshipSpawnedReview RelationshipType = "spawned_review"

// Instance is the canonical record of one agent across its full lifecycle.
// Neither the store nor the engine validates the Status/InstanceType
// enums; any string value is persisted as given.
type Instance struct {
	// ID is an opaque, globally unique identifier assigned at creation.
	ID string `json:"id"`

	// Type classifies the instance (coding, review, planning).
	Type InstanceType `json:"type"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// WorktreePath is the filesystem path of the agent's git worktree.
	// Empty while the row is in its reserved-but-unallocated window.
	WorktreePath string `json:"worktree_path,omitempty"`

	// BranchName is the git branch checked out in WorktreePath.
	BranchName string `json:"branch_name,omitempty"`

	// TmuxSession is the multiplexer session name hosting the agent's shell.
	TmuxSession string `json:"tmux_session,omitempty"`

	// IssueNumber is the optional GitHub issue this instance works.
	IssueNumber int `json:"issue_number,omitempty"`

	// ParentInstanceID optionally references the instance that spawned this
	// one (set for review instances).
	ParentInstanceID string `json:"parent_instance_id,omitempty"`

	// BaseBranch is the branch the worktree was created from.
	BaseBranch string `json:"base_branch,omitempty"`

	// AgentNumber is a caller-assigned ordinal for display purposes.
	AgentNumber int `json:"agent_number,omitempty"`

	// SystemPrompt is the system prompt given to the AI process.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// PromptUsed is the exact prompt injected into the multiplexer session.
	PromptUsed string `json:"prompt_used,omitempty"`

	// PromptContext is free-form context attached alongside the prompt.
	PromptContext string `json:"prompt_context,omitempty"`

	// ClaudePID is the OS process id of the AI child process. Absent
	// (zero) until allocation succeeds.
	ClaudePID int `json:"claude_pid,omitempty"`

	// CreatedAt is when the row was created. Auto-populated if omitted.
	CreatedAt time.Time `json:"created_at"`

	// LastActivity advances on every mutation of a non-terminal row.
	// Never decreases over the instance's lifetime.
	LastActivity time.Time `json:"last_activity"`

	// TerminatedAt is set exactly when Status becomes terminal.
	TerminatedAt *time.Time `json:"terminated_at,omitempty"`
}

// Event records one tool invocation or status change against an instance.
type Event struct {
	// ID is the store-assigned primary key (a uuid; not spec'd by the
	// wire format, only used internally).
	ID string `json:"id"`

	// InstanceID is the owning instance. Every event must reference an
	// existing instance (enforced by the store at write time).
	InstanceID string `json:"instance_id"`

	// ToolName is the tool invoked, or "update_instance_status" for the
	// paired status-change event.
	ToolName string `json:"tool_name"`

	// Timestamp is when the event occurred. Auto-filled if omitted.
	Timestamp time.Time `json:"timestamp"`

	// Success reports whether the tool call succeeded.
	Success bool `json:"success"`

	// ErrorMessage holds failure detail when Success is false.
	ErrorMessage string `json:"error_message,omitempty"`

	// IsStatusUpdating marks this event as the paired event for a status
	// transition.
	IsStatusUpdating bool `json:"is_status_updating,omitempty"`

	// StatusChange is the status the paired transition moved to. Set iff
	// IsStatusUpdating.
	StatusChange Status `json:"status_change,omitempty"`

	// Params holds the tool call's input, opaque to the store.
	Params map[string]any `json:"params,omitempty"`

	// Result holds the tool call's output, opaque to the store.
	Result map[string]any `json:"result,omitempty"`
}

// Relationship is a directed edge between two instances.
type Relationship struct {
	// ID is the store-assigned primary key.
	ID string `json:"id"`

	// ParentInstance is the source instance id.
	ParentInstance string `json:"parent_instance"`

	// ChildInstance is the destination instance id.
	ChildInstance string `json:"child_instance"`

	// RelationshipType classifies the edge (e.g. spawned_review).
	RelationshipType RelationshipType `json:"relationship_type"`

	// CreatedAt is auto-populated at insert time.
	CreatedAt time.Time `json:"created_at"`

	// ReviewIteration is a 1-based counter of how many reviews this edge
	// represents for its parent.
	ReviewIteration int `json:"review_iteration,omitempty"`
}

// Config is one key/value engine setting.
type Config struct {
	// Key is the setting name.
	Key string `json:"key"`

	// Value is the setting value. When Encrypted is true, Value is an
	// opaque blob the store never attempts to decrypt — see SPEC_FULL.md
	// §1.2.
	Value string `json:"value"`

	// Encrypted records that Value was encrypted by the caller before
	// being handed to the store.
	Encrypted bool `json:"encrypted,omitempty"`
}

// GitHubIssue is the persisted subset of a GitHub issue's fields, populated
// by a caller-supplied data source (see SPEC_FULL.md §1.1 and §3.4). The
// engine never fetches these itself.
type GitHubIssue struct {
	// Number is the issue number; the primary key in the github_issue table.
	Number int `json:"number"`

	// Title is the issue title.
	Title string `json:"title"`

	// Body is the issue description.
	Body string `json:"body,omitempty"`

	// State is "open" or "closed".
	State string `json:"state"`

	// Labels lists the issue's label names.
	Labels []string `json:"labels,omitempty"`

	// Assignee is the primary assignee's login, if any.
	Assignee string `json:"assignee,omitempty"`

	// URL is the issue's HTML URL.
	URL string `json:"url,omitempty"`

	// UpdatedAt is when the issue was last updated on GitHub.
	UpdatedAt time.Time `json:"updated_at"`
}

// Phase is the caller-facing, derived view of an Instance's Status, as
// returned by getState.
type Phase string

const (
	PhaseWorking         Phase = "working"
	PhaseReviewRequested Phase = "review_requested"
	PhasePRCreated       Phase = "pr_created"
	PhaseTerminated      Phase = "terminated"
)

// DerivePhase maps a Status to its caller-facing Phase per spec.md §4.1:
// started -> working, waiting_review -> review_requested,
// pr_created -> pr_created, terminated -> terminated, anything else ->
// working.
func DerivePhase(s Status) Phase {
	switch s {
	case StatusWaitingReview:
		return PhaseReviewRequested
	case StatusPRCreated:
		return PhasePRCreated
	case StatusTerminated:
		return PhaseTerminated
	default:
		return PhaseWorking
	}
}
