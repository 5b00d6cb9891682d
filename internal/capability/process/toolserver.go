package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/boshu2/agentfleet/internal/capability"
)

// DefaultToolServerCommand is the tool-server binary invoked for every
// instance's MCP tool endpoint.
const DefaultToolServerCommand = "fleet-toolserver"

// ToolServerSpawner launches the tool-server child process per instance.
type ToolServerSpawner struct {
	Command string
}

var _ capability.ToolServerSpawner = (*ToolServerSpawner)(nil)

func (t *ToolServerSpawner) command() string {
	if t.Command != "" {
		return t.Command
	}
	return DefaultToolServerCommand
}

// Spawn starts the tool-server bound to req's agent id, workspace, branch,
// session, and optional issue number, passed as environment variables so
// the child process (itself a thin MCP endpoint, out of this module's
// scope per spec.md §1) can identify which instance it serves.
func (t *ToolServerSpawner) Spawn(ctx context.Context, req capability.ToolServerRequest) (capability.ToolServerHandle, error) {
	cmd := exec.Command(t.command())
	cmd.Dir = req.Workspace
	env := append(os.Environ(),
		"INSTANCE_ID="+req.AgentID,
		"WORKSPACE="+req.Workspace,
		"BRANCH="+req.Branch,
		"SESSION="+req.Session,
	)
	if req.Issue != nil {
		env = append(env, fmt.Sprintf("ISSUE_NUMBER=%d", *req.Issue))
	}
	cmd.Env = env
	if err := cmd.Start(); err != nil {
		return nil, &capability.ToolServerError{Kind: capability.ToolServerSpawnFailed, Err: err}
	}

	h := &toolServerHandle{cmd: cmd}
	go func() {
		_ = cmd.Wait()
		h.mu.Lock()
		h.killed = true
		h.mu.Unlock()
	}()
	return h, nil
}

type toolServerHandle struct {
	cmd *exec.Cmd

	mu     sync.Mutex
	killed bool
}

func (h *toolServerHandle) Kill(signal os.Signal) error {
	h.mu.Lock()
	already := h.killed
	h.mu.Unlock()
	if already {
		return nil
	}
	if err := h.cmd.Process.Signal(signal); err != nil {
		return &capability.ToolServerError{Kind: capability.ToolServerKillFailed, Err: err}
	}
	h.mu.Lock()
	h.killed = true
	h.mu.Unlock()
	return nil
}

func (h *toolServerHandle) Killed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}
