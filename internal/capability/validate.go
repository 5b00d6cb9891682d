package capability

import (
	"fmt"
	"path/filepath"
	"regexp"
)

// sessionNamePattern allows only alphanumerics, hyphen, and underscore —
// safe to interpolate into a multiplexer command line.
var sessionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// envKeyPattern matches a valid environment variable identifier.
var envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedEnvKeys are injected by the engine itself (spec.md §6); caller
// passthroughs must not shadow them.
var reservedEnvKeys = map[string]bool{
	"INSTANCE_ID":     true,
	"MCP_SERVER_TYPE": true,
	"MCP_AGENT_ID":    true,
}

// ValidateSessionName rejects names that are empty or contain characters
// outside the safe set, before the name reaches the underlying process
// launcher.
func ValidateSessionName(name string) error {
	if name == "" {
		return &MultiplexerError{Kind: MultiplexerInvalidName, Name: name, Err: fmt.Errorf("session name must not be empty")}
	}
	if !sessionNamePattern.MatchString(name) {
		return &MultiplexerError{Kind: MultiplexerInvalidName, Name: name, Err: fmt.Errorf("session name %q contains characters outside [A-Za-z0-9_-]", name)}
	}
	return nil
}

// ValidateWorkingDirectory rejects directories that are not absolute paths.
// Existence is checked by the implementation, not here, since fakes used in
// tests may use paths that do not exist on disk.
func ValidateWorkingDirectory(dir string) error {
	if dir == "" || !filepath.IsAbs(dir) {
		return &MultiplexerError{Kind: MultiplexerInvalidWorkdir, Name: dir, Err: fmt.Errorf("working directory %q must be an absolute path", dir)}
	}
	return nil
}

// ValidateEnvKey rejects keys that are not valid identifiers or that would
// shadow an engine-reserved key.
func ValidateEnvKey(key string) error {
	if !envKeyPattern.MatchString(key) {
		return &MultiplexerError{Kind: MultiplexerInvalidEnvKey, Name: key, Err: fmt.Errorf("environment variable key %q is not a valid identifier", key)}
	}
	if reservedEnvKeys[key] {
		return &MultiplexerError{Kind: MultiplexerInvalidEnvKey, Name: key, Err: fmt.Errorf("environment variable key %q is reserved", key)}
	}
	return nil
}
