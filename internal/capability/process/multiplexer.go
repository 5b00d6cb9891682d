package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/boshu2/agentfleet/internal/capability"
)

// DefaultTmuxCommand mirrors the teacher's internal/rpi/toolchain.go
// DefaultTmuxCommand.
const DefaultTmuxCommand = "tmux"

// DefaultTmuxTimeout bounds a single tmux invocation.
const DefaultTmuxTimeout = 10 * time.Second

// Multiplexer drives real tmux sessions.
type Multiplexer struct {
	Command string
	Timeout time.Duration
}

var _ capability.Multiplexer = (*Multiplexer)(nil)

func (m *Multiplexer) command() string {
	if m.Command != "" {
		return m.Command
	}
	return DefaultTmuxCommand
}

func (m *Multiplexer) timeout() time.Duration {
	if m.Timeout > 0 {
		return m.Timeout
	}
	return DefaultTmuxTimeout
}

func (m *Multiplexer) run(ctx context.Context, args ...string) ([]byte, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()
	cmd := exec.CommandContext(cctx, m.command(), args...)
	return cmd.CombinedOutput()
}

// Create starts a detached tmux session named req.Name in req.WorkingDirectory.
func (m *Multiplexer) Create(ctx context.Context, req capability.MultiplexerRequest) (capability.MultiplexerResult, error) {
	if err := capability.ValidateSessionName(req.Name); err != nil {
		return capability.MultiplexerResult{}, err
	}
	if err := capability.ValidateWorkingDirectory(req.WorkingDirectory); err != nil {
		return capability.MultiplexerResult{}, err
	}
	out, err := m.run(ctx, "new-session", "-d", "-s", req.Name, "-c", req.WorkingDirectory)
	if err != nil {
		return capability.MultiplexerResult{}, &capability.MultiplexerError{
			Kind: capability.MultiplexerCreationFailed,
			Name: req.Name,
			Err:  fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(string(out))),
		}
	}
	return capability.MultiplexerResult{Name: req.Name}, nil
}

// Kill ends the tmux session.
func (m *Multiplexer) Kill(ctx context.Context, name string) error {
	out, err := m.run(ctx, "kill-session", "-t", name)
	if err != nil {
		if strings.Contains(string(out), "can't find session") {
			return &capability.MultiplexerError{Kind: capability.MultiplexerNotFound, Name: name, Err: err}
		}
		return &capability.MultiplexerError{Kind: capability.MultiplexerCreationFailed, Name: name, Err: fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(string(out)))}
	}
	return nil
}

// Alive reports whether the named tmux session currently exists, via
// `tmux has-session`.
func (m *Multiplexer) Alive(ctx context.Context, name string) (bool, error) {
	_, err := m.run(ctx, "has-session", "-t", name)
	return err == nil, nil
}

// SendKeys types text into the session followed by Enter. text is passed as
// a single argument to tmux's own exec.CommandContext invocation, never
// through a shell, so it carries no command-injection risk regardless of
// its contents; only name is validated, by Create before the session exists.
func (m *Multiplexer) SendKeys(ctx context.Context, name, text string) error {
	out, err := m.run(ctx, "send-keys", "-t", name, text, "Enter")
	if err != nil {
		return &capability.MultiplexerError{Kind: capability.MultiplexerNotFound, Name: name, Err: fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(string(out)))}
	}
	return nil
}
