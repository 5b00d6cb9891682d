// Package fake provides in-memory capability implementations for tests,
// patterned on the teacher's injected-function-variable test seams
// (loopExecCommandContext, loopCommandRunner in cmd/ao/rpi_loop_supervisor.go):
// each fake exposes a hook function field tests can override per case,
// defaulting to a working in-memory implementation.
package fake

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/boshu2/agentfleet/internal/capability"
)

// Worktree is an in-memory capability.Worktree. CreateFunc/RemoveFunc, when
// set, replace the default behavior for every call until they are reset
// to nil.
type Worktree struct {
	mu       sync.Mutex
	created  map[string]capability.WorktreeResult
	CreateFunc func(ctx context.Context, req capability.WorktreeRequest) (capability.WorktreeResult, error)
	RemoveFunc func(ctx context.Context, path string) error
}

// NewWorktree returns a ready-to-use fake.
func NewWorktree() *Worktree {
	return &Worktree{created: make(map[string]capability.WorktreeResult)}
}

func (w *Worktree) Create(ctx context.Context, req capability.WorktreeRequest) (capability.WorktreeResult, error) {
	if w.CreateFunc != nil {
		return w.CreateFunc(ctx, req)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	path := "/fake/worktrees/" + req.Name
	if _, exists := w.created[path]; exists {
		return capability.WorktreeResult{}, &capability.WorktreeError{Kind: capability.WorktreeExists, Path: path, Err: fmt.Errorf("already exists")}
	}
	res := capability.WorktreeResult{Path: path, Branch: req.Branch}
	w.created[path] = res
	return res, nil
}

func (w *Worktree) Remove(ctx context.Context, path string) error {
	if w.RemoveFunc != nil {
		return w.RemoveFunc(ctx, path)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.created[path]; !exists {
		return &capability.WorktreeError{Kind: capability.WorktreeNotFound, Path: path, Err: fmt.Errorf("no such worktree")}
	}
	delete(w.created, path)
	return nil
}

// Exists reports whether path is currently tracked as created (test helper).
func (w *Worktree) Exists(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.created[path]
	return ok
}

// Multiplexer is an in-memory capability.Multiplexer.
type Multiplexer struct {
	mu         sync.Mutex
	sessions   map[string]capability.MultiplexerRequest
	SentKeys   map[string][]string
	CreateFunc func(ctx context.Context, req capability.MultiplexerRequest) (capability.MultiplexerResult, error)
	KillFunc   func(ctx context.Context, name string) error
}

// NewMultiplexer returns a ready-to-use fake.
func NewMultiplexer() *Multiplexer {
	return &Multiplexer{sessions: make(map[string]capability.MultiplexerRequest), SentKeys: make(map[string][]string)}
}

func (m *Multiplexer) Create(ctx context.Context, req capability.MultiplexerRequest) (capability.MultiplexerResult, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	if err := capability.ValidateSessionName(req.Name); err != nil {
		return capability.MultiplexerResult{}, err
	}
	if err := capability.ValidateWorkingDirectory(req.WorkingDirectory); err != nil {
		return capability.MultiplexerResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[req.Name] = req
	return capability.MultiplexerResult{Name: req.Name}, nil
}

func (m *Multiplexer) Kill(ctx context.Context, name string) error {
	if m.KillFunc != nil {
		return m.KillFunc(ctx, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[name]; !ok {
		return &capability.MultiplexerError{Kind: capability.MultiplexerNotFound, Name: name, Err: fmt.Errorf("no such session")}
	}
	delete(m.sessions, name)
	return nil
}

func (m *Multiplexer) SendKeys(ctx context.Context, name, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[name]; !ok {
		return &capability.MultiplexerError{Kind: capability.MultiplexerNotFound, Name: name, Err: fmt.Errorf("no such session")}
	}
	m.SentKeys[name] = append(m.SentKeys[name], text)
	return nil
}

// HasSession reports whether name is currently tracked as created.
func (m *Multiplexer) HasSession(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[name]
	return ok
}

// Alive implements capability.Multiplexer's liveness probe over the same
// tracked session map HasSession reads.
func (m *Multiplexer) Alive(ctx context.Context, name string) (bool, error) {
	return m.HasSession(name), nil
}

// AILauncher is an in-memory capability.AILauncher.
type AILauncher struct {
	mu         sync.Mutex
	next       int
	launched   map[string]bool
	LaunchFunc func(ctx context.Context, req capability.AILaunchRequest) (capability.AISession, error)
}

// NewAILauncher returns a ready-to-use fake.
func NewAILauncher() *AILauncher {
	return &AILauncher{launched: make(map[string]bool)}
}

func (a *AILauncher) Launch(ctx context.Context, req capability.AILaunchRequest) (capability.AISession, error) {
	if a.LaunchFunc != nil {
		return a.LaunchFunc(ctx, req)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	id := fmt.Sprintf("fake-session-%d", a.next)
	pid := 10000 + a.next
	a.launched[id] = true
	a.launched[fmt.Sprintf("%d", pid)] = true
	return capability.AISession{ID: id, PID: pid}, nil
}

// Terminate accepts either the session id or its pid rendered as a string,
// matching the capability contract's pid_or_id parameter (spec.md §4.6).
func (a *AILauncher) Terminate(ctx context.Context, pidOrID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.launched[pidOrID] {
		return &capability.AIError{Kind: capability.AINotFound, Err: fmt.Errorf("no such session %q", pidOrID)}
	}
	delete(a.launched, pidOrID)
	return nil
}

// Alive implements capability.AILauncher's liveness probe over the same
// tracked launched map Terminate consults.
func (a *AILauncher) Alive(ctx context.Context, pidOrID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.launched[pidOrID], nil
}

// ToolServerHandle is an in-memory capability.ToolServerHandle.
type ToolServerHandle struct {
	mu     sync.Mutex
	killed bool
}

func (h *ToolServerHandle) Kill(signal os.Signal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.killed = true
	return nil
}

func (h *ToolServerHandle) Killed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.killed
}

// ToolServerSpawner is an in-memory capability.ToolServerSpawner.
type ToolServerSpawner struct {
	SpawnFunc func(ctx context.Context, req capability.ToolServerRequest) (capability.ToolServerHandle, error)
}

func (s *ToolServerSpawner) Spawn(ctx context.Context, req capability.ToolServerRequest) (capability.ToolServerHandle, error) {
	if s.SpawnFunc != nil {
		return s.SpawnFunc(ctx, req)
	}
	return &ToolServerHandle{}, nil
}

// Clock is a settable capability.Clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a fake clock starting at t.
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d (test helper).
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
