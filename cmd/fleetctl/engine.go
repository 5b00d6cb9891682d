package main

import (
	"fmt"
	"os"

	"github.com/boshu2/agentfleet/internal/allocator"
	"github.com/boshu2/agentfleet/internal/capability"
	"github.com/boshu2/agentfleet/internal/capability/process"
	"github.com/boshu2/agentfleet/internal/config"
	"github.com/boshu2/agentfleet/internal/engine"
	"github.com/boshu2/agentfleet/internal/store"
)

// buildEngine wires the production capability implementations (internal/capability/process)
// into an allocator and a bbolt-backed store, the way a long-running
// fleetctl process composes the engine for real use. Callers must invoke
// the returned closer once done.
func buildEngine(cfg *config.Config) (*engine.Engine, func() error, error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("determine working directory: %w", err)
	}

	clock := capability.SystemClock{}
	st, err := store.Open(cfg.StorePath, clock)
	if err != nil {
		return nil, nil, fmt.Errorf("open store at %s: %w", cfg.StorePath, err)
	}

	log := newLogger(cfg)
	alloc := &allocator.Allocator{
		Worktree:    &process.Worktree{RepoRoot: repoRoot, Timeout: cfg.WorktreeTimeout},
		Multiplexer: &process.Multiplexer{Timeout: cfg.MultiplexerTimeout},
		AI:          &process.AILauncher{},
		ToolServer:  &process.ToolServerSpawner{},
		Log:         log,
	}

	eng := engine.New(st, alloc, clock, log)
	return eng, st.Close, nil
}
