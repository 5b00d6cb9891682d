// Package allocator composes the capability interfaces into the compound
// agent resource spec.md §4.3 describes: a git worktree, a multiplexer
// session, a tool-server child process, and an AI child process, with a
// prompt injected into the session once every prior step has succeeded.
// On any step's failure it runs best-effort compensating teardown for
// whatever it already acquired, in reverse order, then returns the
// original failure — following the same "continue past individual cleanup
// failures but still surface the real error" discipline as the teacher's
// RemoveWorktree/MergeWorktree cleanup in internal/rpi/worktree.go.
package allocator

import (
	"context"
	"fmt"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/boshu2/agentfleet/internal/capability"
)

// toolServerKillSignal is the signal sent to a tool-server child during
// teardown, matching the teacher's use of syscall.SIGTERM for graceful
// child-process shutdown (cmd/ao/rpi_cancel.go).
const toolServerKillSignal = syscall.SIGTERM

// Allocator holds the injected capabilities the resource allocator
// orchestrates. None of its fields touch the OS directly.
type Allocator struct {
	Worktree    capability.Worktree
	Multiplexer capability.Multiplexer
	AI          capability.AILauncher
	ToolServer  capability.ToolServerSpawner
	Log         *logrus.Entry
}

// Request describes one compound-resource build, steps 2-6 of spec.md
// §4.3 (reserving and finalizing the instance row, steps 1 and 7, are the
// engine's responsibility since the allocator only composes capabilities).
type Request struct {
	InstanceID         string
	Branch             string
	BaseBranch         string
	WorktreeOptions    map[string]string
	MultiplexerOptions map[string]string
	AgentType          string // "coding" | "review", becomes MCP_SERVER_TYPE
	EnvironmentVars    map[string]string
	Issue              *int
	Prompt             string
}

// Result carries every resource handle the engine needs to finalize the
// instance row (step 7) or, on a later failure, to identify what must be
// torn down by a subsequent Terminate call.
type Result struct {
	WorktreePath     string
	BranchName       string
	SessionName      string
	AISessionID      string
	AIPID            int
	ToolServerHandle capability.ToolServerHandle
}

// Execute runs the acquisition sequence. On failure at step N it tears
// down whatever succeeded in steps 2..N-1, best-effort, then returns the
// original error from step N.
func (a *Allocator) Execute(ctx context.Context, req Request) (*Result, error) {
	log := a.logger(req.InstanceID)

	worktreeRes, err := a.Worktree.Create(ctx, capability.WorktreeRequest{
		Name:       req.InstanceID,
		Branch:     req.Branch,
		BaseBranch: req.BaseBranch,
		Options:    req.WorktreeOptions,
	})
	if err != nil {
		log.WithError(err).Error("worktree creation failed")
		return nil, err
	}

	sessionRes, err := a.Multiplexer.Create(ctx, capability.MultiplexerRequest{
		Name:             req.InstanceID,
		WorkingDirectory: worktreeRes.Path,
		Options:          req.MultiplexerOptions,
	})
	if err != nil {
		log.WithError(err).Error("multiplexer session creation failed")
		a.teardownWorktree(ctx, log, worktreeRes.Path)
		return nil, err
	}

	toolServerHandle, err := a.ToolServer.Spawn(ctx, capability.ToolServerRequest{
		AgentID:   req.InstanceID,
		Workspace: worktreeRes.Path,
		Branch:    worktreeRes.Branch,
		Session:   sessionRes.Name,
		Issue:     req.Issue,
	})
	if err != nil {
		log.WithError(err).Error("tool-server spawn failed")
		a.teardownMultiplexer(ctx, log, sessionRes.Name)
		a.teardownWorktree(ctx, log, worktreeRes.Path)
		return nil, err
	}

	envVars := envWithReserved(req.EnvironmentVars, req.InstanceID, req.AgentType)
	aiSession, err := a.AI.Launch(ctx, capability.AILaunchRequest{
		WorkspacePath:   worktreeRes.Path,
		EnvironmentVars: envVars,
	})
	if err != nil {
		log.WithError(err).Error("ai launch failed")
		a.teardownToolServer(log, toolServerHandle)
		a.teardownMultiplexer(ctx, log, sessionRes.Name)
		a.teardownWorktree(ctx, log, worktreeRes.Path)
		return nil, err
	}

	if req.Prompt != "" {
		if err := a.Multiplexer.SendKeys(ctx, sessionRes.Name, req.Prompt); err != nil {
			log.WithError(err).Error("prompt injection failed")
			a.teardownAI(ctx, log, aiSession)
			a.teardownToolServer(log, toolServerHandle)
			a.teardownMultiplexer(ctx, log, sessionRes.Name)
			a.teardownWorktree(ctx, log, worktreeRes.Path)
			return nil, err
		}
	}

	return &Result{
		WorktreePath:     worktreeRes.Path,
		BranchName:       worktreeRes.Branch,
		SessionName:      sessionRes.Name,
		AISessionID:      aiSession.ID,
		AIPID:            aiSession.PID,
		ToolServerHandle: toolServerHandle,
	}, nil
}

// Teardown releases every resource handle in res, in the order spec.md
// §4.3 specifies: AI session, tool-server child, multiplexer session,
// worktree. It is used both by Execute's failure path (via the
// teardownX helpers) and by the engine's terminate operation against a
// fully-allocated instance.
func (a *Allocator) Teardown(ctx context.Context, instanceID string, res Result) {
	log := a.logger(instanceID)
	if res.AISessionID != "" {
		a.teardownAI(ctx, log, capability.AISession{ID: res.AISessionID, PID: res.AIPID})
	}
	if res.ToolServerHandle != nil {
		a.teardownToolServer(log, res.ToolServerHandle)
	}
	if res.SessionName != "" {
		a.teardownMultiplexer(ctx, log, res.SessionName)
	}
	if res.WorktreePath != "" {
		a.teardownWorktree(ctx, log, res.WorktreePath)
	}
}

func (a *Allocator) teardownAI(ctx context.Context, log *logrus.Entry, session capability.AISession) {
	id := session.ID
	if id == "" {
		id = fmt.Sprintf("%d", session.PID)
	}
	if err := a.AI.Terminate(ctx, id); err != nil {
		log.WithError(err).Warn("best-effort ai session teardown failed")
	}
}

func (a *Allocator) teardownToolServer(log *logrus.Entry, handle capability.ToolServerHandle) {
	if handle == nil || handle.Killed() {
		return
	}
	if err := handle.Kill(toolServerKillSignal); err != nil {
		log.WithError(err).Warn("best-effort tool-server teardown failed")
	}
}

func (a *Allocator) teardownMultiplexer(ctx context.Context, log *logrus.Entry, name string) {
	if err := a.Multiplexer.Kill(ctx, name); err != nil {
		log.WithError(err).Warn("best-effort multiplexer teardown failed")
	}
}

func (a *Allocator) teardownWorktree(ctx context.Context, log *logrus.Entry, path string) {
	if err := a.Worktree.Remove(ctx, path); err != nil {
		log.WithError(err).Warn("best-effort worktree teardown failed")
	}
}

func (a *Allocator) logger(instanceID string) *logrus.Entry {
	if a.Log == nil {
		return logrus.NewEntry(logrus.New()).WithField("instance_id", instanceID)
	}
	return a.Log.WithField("instance_id", instanceID)
}

// envWithReserved injects the three engine-reserved environment variables
// spec.md §6 requires, without letting caller passthroughs shadow them.
func envWithReserved(passthrough map[string]string, instanceID, agentType string) map[string]string {
	env := make(map[string]string, len(passthrough)+3)
	for k, v := range passthrough {
		env[k] = v
	}
	env["INSTANCE_ID"] = instanceID
	env["MCP_SERVER_TYPE"] = agentType
	env["MCP_AGENT_ID"] = instanceID
	return env
}
