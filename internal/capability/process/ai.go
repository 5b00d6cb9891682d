package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/boshu2/agentfleet/internal/capability"
)

// DefaultAICommand mirrors the teacher's internal/rpi/toolchain.go
// DefaultRuntimeCommand.
const DefaultAICommand = "claude"

// AILauncher spawns the AI child process as a detached background process
// rooted at a workspace directory, in the style of the teacher's RPI
// runtime launch (internal/rpi/toolchain.go's RuntimeCommand resolution).
type AILauncher struct {
	Command string

	mu       sync.Mutex
	launched map[int]*os.Process
}

var _ capability.AILauncher = (*AILauncher)(nil)

func (a *AILauncher) command() string {
	if a.Command != "" {
		return a.Command
	}
	return DefaultAICommand
}

// Launch starts the AI process with req.EnvironmentVars appended to the
// current environment and its working directory set to req.WorkspacePath.
func (a *AILauncher) Launch(ctx context.Context, req capability.AILaunchRequest) (capability.AISession, error) {
	cmd := exec.Command(a.command())
	cmd.Dir = req.WorkspacePath
	cmd.Env = append(os.Environ(), envSlice(req.EnvironmentVars)...)
	if err := cmd.Start(); err != nil {
		return capability.AISession{}, &capability.AIError{Kind: capability.AILaunchFailed, Err: err}
	}

	a.mu.Lock()
	if a.launched == nil {
		a.launched = make(map[int]*os.Process)
	}
	a.launched[cmd.Process.Pid] = cmd.Process
	a.mu.Unlock()

	go func() { _ = cmd.Wait() }()

	return capability.AISession{ID: fmt.Sprintf("%d", cmd.Process.Pid), PID: cmd.Process.Pid}, nil
}

// Terminate sends SIGTERM to the process identified by pidOrID (both the
// launch-time session ID and the raw pid string resolve to the same
// process, matching the capability contract's pid_or_id parameter).
func (a *AILauncher) Terminate(ctx context.Context, pidOrID string) error {
	var pid int
	if _, err := fmt.Sscanf(pidOrID, "%d", &pid); err != nil {
		return &capability.AIError{Kind: capability.AINotFound, Err: fmt.Errorf("cannot parse pid from %q", pidOrID)}
	}

	a.mu.Lock()
	proc, ok := a.launched[pid]
	a.mu.Unlock()
	if !ok {
		found, err := os.FindProcess(pid)
		if err != nil {
			return &capability.AIError{Kind: capability.AINotFound, Err: err}
		}
		proc = found
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return &capability.AIError{Kind: capability.AITerminateFailed, Err: err}
	}

	a.mu.Lock()
	delete(a.launched, pid)
	a.mu.Unlock()
	return nil
}

// Alive sends signal 0 to the process identified by pidOrID, the standard
// Unix idiom for checking a pid is live without perturbing it (the teacher
// uses the same signal-0 probe in cmd/ao/rpi_cancel.go before deciding
// whether a SIGTERM is still needed).
func (a *AILauncher) Alive(ctx context.Context, pidOrID string) (bool, error) {
	var pid int
	if _, err := fmt.Sscanf(pidOrID, "%d", &pid); err != nil {
		return false, &capability.AIError{Kind: capability.AINotFound, Err: fmt.Errorf("cannot parse pid from %q", pidOrID)}
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false, nil
	}
	return true, nil
}

func envSlice(vars map[string]string) []string {
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	return out
}
