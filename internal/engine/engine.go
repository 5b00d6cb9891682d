// Package engine implements the agent workflow engine: the state machine
// and public API (execute, terminate, getState, requestReview) that spec.md
// §4.1 describes, wired to the persistence store and resource allocator. Its
// mutable state is a map of live tool-server handles keyed by instance id
// (spec.md §5), a table of per-instance locks grounded on the teacher's
// defensive locking idiom in cmd/ao/rpi_loop_supervisor.go, and the
// liveness-probe breakers; both maps are guarded by one engine-wide mutex.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boshu2/agentfleet/internal/allocator"
	"github.com/boshu2/agentfleet/internal/capability"
	"github.com/boshu2/agentfleet/internal/fleeterr"
	"github.com/boshu2/agentfleet/internal/idgen"
	"github.com/boshu2/agentfleet/internal/store"
	"github.com/boshu2/agentfleet/internal/types"
)

// DefaultMaxReviews is used by requestReview when the caller passes zero,
// matching spec.md §4.1's default of 3.
const DefaultMaxReviews = 3

// Store is the subset of *store.Store the engine depends on, narrowed so
// tests can substitute a fake if ever needed; production code always wires
// the real *store.Store.
type Store interface {
	CreateInstance(types.Instance) error
	GetInstance(id string) (*types.Instance, bool, error)
	UpdateInstance(id string, patch store.InstancePatch) error
	UpdateInstanceStatus(id string, newStatus types.Status) error
	ListInstances(filter store.InstanceFilter) ([]types.Instance, error)
	CreateRelationship(types.Relationship) error
	GetRelationships(instanceID string) ([]types.Relationship, error)
}

// Engine wires the persistence store and resource allocator into the
// lifecycle state machine. Construct with New; the zero value is not usable.
type Engine struct {
	store     Store
	allocator *allocator.Allocator
	clock     capability.Clock
	log       *logrus.Entry

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	handles map[string]capability.ToolServerHandle
	probes  *capability.ProbeBreaker
}

// New builds an Engine over st and alloc. log may be nil, in which case a
// default logrus logger is used.
func New(st Store, alloc *allocator.Allocator, clock capability.Clock, log *logrus.Entry) *Engine {
	if clock == nil {
		clock = capability.SystemClock{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Engine{
		store:     st,
		allocator: alloc,
		clock:     clock,
		log:       log,
		locks:     make(map[string]*sync.Mutex),
		handles:   make(map[string]capability.ToolServerHandle),
		probes:    capability.NewProbeBreaker(log),
	}
}

// lockFor returns the per-instance lock for id, creating it on first use.
// Per-instance locking is a defensive addition spec.md §9 explicitly
// permits: the spec requires only that updateInstanceStatus itself be
// atomic, but serializing each id's own calls through a single lock is
// cheap insurance against a caller issuing concurrent execute/terminate
// calls for the same id.
func (e *Engine) lockFor(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// dropLock removes id's lock entry once the instance reaches a terminal
// status, per spec.md §9's "entry cleanup on terminal transitions."
func (e *Engine) dropLock(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.locks, id)
}

func (e *Engine) setHandle(id string, h capability.ToolServerHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h == nil {
		delete(e.handles, id)
		return
	}
	e.handles[id] = h
}

func (e *Engine) takeHandle(id string) capability.ToolServerHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.handles[id]
	delete(e.handles, id)
	return h
}

// Resources is the subset of a compound resource's identifying handles the
// execute descriptor surfaces to the caller.
type Resources struct {
	WorktreePath string
	SessionName  string
	Branch       string
	AISessionID  string
}

// ExecuteConfig configures a new instance, per spec.md §4.1's
// `{issue?, target_branch?, base_branch, worktree_options?, multiplexer_options?,
// ai_options?, max_reviews}`. Ai_options is passed through as EnvironmentVars
// (the capability interfaces carry no other AI-launch knobs).
type ExecuteConfig struct {
	Type               types.InstanceType // defaults to coding when empty
	Issue              *int
	TargetBranch       string
	BaseBranch         string
	ParentInstanceID   string
	AgentNumber        int
	SystemPrompt       string
	Prompt             string
	WorktreeOptions    map[string]string
	MultiplexerOptions map[string]string
	EnvironmentVars    map[string]string
	MaxReviews         int
}

// Descriptor is execute's return value.
type Descriptor struct {
	ID           string
	Type         types.InstanceType
	Status       types.Status
	InitialState types.Phase
	Resources    Resources
	Config       ExecuteConfig
	StartedAt    time.Time
	UpdatedAt    time.Time
}

// mcpAgentType returns the value the allocator passes as MCP_SERVER_TYPE,
// which is only ever "coding" or "review" per spec.md §6, regardless of the
// instance type enumeration (which also includes "planning").
func mcpAgentType(t types.InstanceType) string {
	if t == types.InstanceTypeReview {
		return "review"
	}
	return "coding"
}

// Execute allocates the compound agent resource and records a new,
// non-terminal instance row. On any allocation failure it marks the
// reserved row terminated and propagates the original capability error
// wrapped as WORKFLOW_ALLOCATION_FAILED, per spec.md §4.3 and §7.
func (e *Engine) Execute(ctx context.Context, cfg ExecuteConfig) (*Descriptor, error) {
	instType := cfg.Type
	if instType == "" {
		instType = types.InstanceTypeCoding
	}
	issueNumber := 0
	if cfg.Issue != nil {
		issueNumber = *cfg.Issue
	}
	now := e.clock.Now()
	id := idgen.Instance(issueNumber, now)
	branch := cfg.TargetBranch
	if branch == "" {
		branch = fmt.Sprintf("agent/%s", id)
	}

	lock := e.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	reserved := types.Instance{
		ID:               id,
		Type:             instType,
		Status:           types.StatusStarted,
		IssueNumber:      issueNumber,
		ParentInstanceID: cfg.ParentInstanceID,
		BaseBranch:       cfg.BaseBranch,
		AgentNumber:      cfg.AgentNumber,
		SystemPrompt:     cfg.SystemPrompt,
		CreatedAt:        now,
		LastActivity:     now,
	}
	if err := e.store.CreateInstance(reserved); err != nil {
		return nil, fleeterr.Wrap(fleeterr.CodeDatabaseInsertFailed, "reserve instance", err)
	}

	res, err := e.allocator.Execute(ctx, allocator.Request{
		InstanceID:         id,
		Branch:             branch,
		BaseBranch:         cfg.BaseBranch,
		WorktreeOptions:    cfg.WorktreeOptions,
		MultiplexerOptions: cfg.MultiplexerOptions,
		AgentType:          mcpAgentType(instType),
		EnvironmentVars:    cfg.EnvironmentVars,
		Issue:              cfg.Issue,
		Prompt:             cfg.Prompt,
	})
	if err != nil {
		e.log.WithField("instance_id", id).WithError(err).Error("allocation failed, marking instance terminated")
		if updErr := e.store.UpdateInstanceStatus(id, types.StatusTerminated); updErr != nil {
			e.log.WithField("instance_id", id).WithError(updErr).Error("failed to record terminated status after allocation failure")
		}
		e.dropLock(id)
		return nil, fleeterr.Wrap(fleeterr.CodeAllocationFailed, "execute", err)
	}

	e.setHandle(id, res.ToolServerHandle)

	worktreePath := res.WorktreePath
	branchName := res.BranchName
	sessionName := res.SessionName
	claudePID := res.AIPID
	prompt := cfg.Prompt
	if err := e.store.UpdateInstance(id, store.InstancePatch{
		WorktreePath: &worktreePath,
		BranchName:   &branchName,
		TmuxSession:  &sessionName,
		ClaudePID:    &claudePID,
		PromptUsed:   &prompt,
	}); err != nil {
		return nil, fleeterr.Wrap(fleeterr.CodeDatabaseUpdateFailed, "finalize instance", err)
	}

	return &Descriptor{
		ID:           id,
		Type:         instType,
		Status:       types.StatusStarted,
		InitialState: types.DerivePhase(types.StatusStarted),
		Resources: Resources{
			WorktreePath: res.WorktreePath,
			SessionName:  res.SessionName,
			Branch:       res.BranchName,
			AISessionID:  res.AISessionID,
		},
		Config:    cfg,
		StartedAt: now,
		UpdatedAt: now,
	}, nil
}

// Terminate marks id terminated and tears down its compound resource. It is
// idempotent: calling it on an already-terminal instance is a no-op
// success, per spec.md §4.1.
func (e *Engine) Terminate(ctx context.Context, instanceID string, reason string) error {
	lock := e.lockFor(instanceID)
	lock.Lock()
	defer lock.Unlock()
	defer e.dropLock(instanceID)

	inst, found, err := e.store.GetInstance(instanceID)
	if err != nil {
		return fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "terminate: get instance", err)
	}
	if !found {
		return fleeterr.New(fleeterr.CodeInstanceNotFound, fmt.Sprintf("instance %s not found", instanceID), types.ErrInstanceNotFound)
	}
	if inst.Status.IsTerminal() {
		return nil
	}

	handle := e.takeHandle(instanceID)
	e.allocator.Teardown(ctx, instanceID, allocator.Result{
		WorktreePath:     inst.WorktreePath,
		SessionName:      inst.TmuxSession,
		AISessionID:      fmt.Sprintf("%d", inst.ClaudePID),
		AIPID:            inst.ClaudePID,
		ToolServerHandle: handle,
	})

	if err := e.store.UpdateInstanceStatus(instanceID, types.StatusTerminated); err != nil {
		return fleeterr.Wrap(fleeterr.CodeCleanupFailed, "terminate: record status", err)
	}
	if reason != "" {
		e.log.WithFields(logrus.Fields{"instance_id": instanceID, "reason": reason}).Info("instance terminated")
	}
	return nil
}

// State is getState's return value.
type State struct {
	Phase                   types.Phase
	ReviewCount             int
	MaxReviews              int
	CurrentReviewInstanceID string
	LastActivity            time.Time
}

// GetState returns id's derived state, or (nil, nil) if id does not exist,
// matching spec.md §4.1's `state | null`.
func (e *Engine) GetState(instanceID string, maxReviews int) (*State, error) {
	inst, found, err := e.store.GetInstance(instanceID)
	if err != nil {
		return nil, fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "getState", err)
	}
	if !found {
		return nil, nil
	}
	if maxReviews <= 0 {
		maxReviews = DefaultMaxReviews
	}

	rels, err := e.store.GetRelationships(instanceID)
	if err != nil {
		return nil, fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "getState: relationships", err)
	}
	reviewCount := 0
	currentReview := ""
	for _, rel := range rels {
		if rel.ParentInstance != instanceID || rel.RelationshipType != types.RelationshipSpawnedReview {
			continue
		}
		reviewCount++
		child, found, err := e.store.GetInstance(rel.ChildInstance)
		if err != nil {
			return nil, fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "getState: child lookup", err)
		}
		if found && !child.Status.IsTerminal() {
			currentReview = child.ID
		}
	}

	return &State{
		Phase:                   types.DerivePhase(inst.Status),
		ReviewCount:             reviewCount,
		MaxReviews:              maxReviews,
		CurrentReviewInstanceID: currentReview,
		LastActivity:            inst.LastActivity,
	}, nil
}

// ListInstances is a thin pass-through to the store's filtered listing, per
// spec.md §4.2. The engine adds no behavior of its own here beyond giving
// callers a single entry point that doesn't need its own *store.Store
// reference.
func (e *Engine) ListInstances(filter store.InstanceFilter) ([]types.Instance, error) {
	insts, err := e.store.ListInstances(filter)
	if err != nil {
		return nil, fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "listInstances", err)
	}
	return insts, nil
}

// Liveness is ProbeLiveness's result: whether the AI process and the
// multiplexer session backing an instance are each still alive right now.
// Neither bit is ever persisted, per spec.md §4.6.
type Liveness struct {
	AIAlive          bool
	MultiplexerAlive bool
}

// ProbeLiveness checks, on demand, whether id's AI process and multiplexer
// session are still alive. Each check runs through its own
// gobreaker.CircuitBreaker, keyed by instance type (coding vs review) per
// SPEC_FULL.md §3.3, so a wedged tmux server or a storm of dead-pid checks
// trips that breaker open and fails fast instead of making every caller pay
// a repeated probe timeout. A terminal instance is reported not alive
// without touching either capability.
func (e *Engine) ProbeLiveness(ctx context.Context, instanceID string) (*Liveness, error) {
	inst, found, err := e.store.GetInstance(instanceID)
	if err != nil {
		return nil, fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "probeLiveness: get instance", err)
	}
	if !found {
		return nil, fleeterr.New(fleeterr.CodeInstanceNotFound, fmt.Sprintf("instance %s not found", instanceID), types.ErrInstanceNotFound)
	}
	if inst.Status.IsTerminal() {
		return &Liveness{}, nil
	}

	group := mcpAgentType(inst.Type)
	result := &Liveness{}

	if inst.ClaudePID != 0 {
		pidOrID := fmt.Sprintf("%d", inst.ClaudePID)
		probeErr := e.probes.Probe(ctx, "ai:"+group, func(pctx context.Context) error {
			alive, err := e.allocator.AI.Alive(pctx, pidOrID)
			if err != nil {
				return err
			}
			result.AIAlive = alive
			return nil
		})
		if probeErr != nil {
			e.log.WithField("instance_id", instanceID).WithError(probeErr).Warn("ai liveness probe failed or breaker open")
		}
	}

	if inst.TmuxSession != "" {
		probeErr := e.probes.Probe(ctx, "multiplexer:"+group, func(pctx context.Context) error {
			alive, err := e.allocator.Multiplexer.Alive(pctx, inst.TmuxSession)
			if err != nil {
				return err
			}
			result.MultiplexerAlive = alive
			return nil
		})
		if probeErr != nil {
			e.log.WithField("instance_id", instanceID).WithError(probeErr).Warn("multiplexer liveness probe failed or breaker open")
		}
	}

	return result, nil
}

// RequestReview enforces the four ordered gates of spec.md §4.4, transitions
// the parent to waiting_review, and returns the reserved (not yet
// allocated) review instance id.
func (e *Engine) RequestReview(parentID string, maxReviews int) (string, error) {
	if maxReviews <= 0 {
		maxReviews = DefaultMaxReviews
	}

	lock := e.lockFor(parentID)
	lock.Lock()
	defer lock.Unlock()

	// Gate 1: instance exists.
	parent, found, err := e.store.GetInstance(parentID)
	if err != nil {
		return "", fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "requestReview: get parent", err)
	}
	if !found {
		return "", fleeterr.New(fleeterr.CodeInstanceNotFound, fmt.Sprintf("instance %s not found", parentID), types.ErrInstanceNotFound)
	}

	// Gate 2: parent status is started.
	if parent.Status != types.StatusStarted {
		return "", fleeterr.New(fleeterr.CodeInvalidState, fmt.Sprintf("parent %s is not in started status (current=%s)", parentID, parent.Status), types.ErrParentNotStarted)
	}

	rels, err := e.store.GetRelationships(parentID)
	if err != nil {
		return "", fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "requestReview: relationships", err)
	}
	reviewCount := 0
	for _, rel := range rels {
		if rel.ParentInstance == parentID && rel.RelationshipType == types.RelationshipSpawnedReview {
			reviewCount++
		}
	}

	// Gate 3: review count below the limit.
	if reviewCount >= maxReviews {
		return "", fleeterr.New(fleeterr.CodeMaxReviewsExceeded, fmt.Sprintf("parent %s has reached its review limit of %d", parentID, maxReviews), types.ErrMaxReviewsExceeded)
	}

	// Gate 4: no non-terminal review outstanding.
	for _, rel := range rels {
		if rel.ParentInstance != parentID || rel.RelationshipType != types.RelationshipSpawnedReview {
			continue
		}
		child, found, err := e.store.GetInstance(rel.ChildInstance)
		if err != nil {
			return "", fleeterr.Wrap(fleeterr.CodeDatabaseOperationFailed, "requestReview: child lookup", err)
		}
		if found && !child.Status.IsTerminal() {
			return "", fleeterr.New(fleeterr.CodeReviewInProgress, fmt.Sprintf("a review is already in progress for %s", parentID), types.ErrReviewInProgress)
		}
	}

	if err := e.store.UpdateInstanceStatus(parentID, types.StatusWaitingReview); err != nil {
		return "", fleeterr.Wrap(fleeterr.CodeDatabaseUpdateFailed, "requestReview: update parent status", err)
	}

	return idgen.Review(parentID, reviewCount+1), nil
}
