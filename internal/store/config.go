package store

import (
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/boshu2/agentfleet/internal/types"
)

// SetConfig writes key/value, recording whether the caller already
// encrypted value — the store never attempts to decrypt it (SPEC_FULL.md
// §1.2).
func (s *Store) SetConfig(key, value string, encrypted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg := types.Config{Key: key, Value: value, Encrypted: encrypted}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketConfig, key, cfg)
	})
	if err != nil {
		return &Error{Code: CodeInsertFailed, Err: err}
	}
	return nil
}

// GetConfig returns the value for key, or found=false if absent.
func (s *Store) GetConfig(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var cfg types.Config
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		f, err := getJSON(tx, bucketConfig, key, &cfg)
		found = f
		return err
	})
	if err != nil {
		return "", false, &Error{Code: CodeOperationFailed, Err: err}
	}
	if !found {
		return "", false, nil
	}
	return cfg.Value, true, nil
}

// DeleteConfig removes key. A no-op (success) if key is absent, per
// spec.md §4.2.
func (s *Store) DeleteConfig(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		return deleteKey(tx, bucketConfig, key)
	})
	if err != nil {
		return &Error{Code: CodeDeleteFailed, Err: err}
	}
	return nil
}

// UpsertGitHubIssue writes or replaces the row for issue.Number.
func (s *Store) UpsertGitHubIssue(issue types.GitHubIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d", issue.Number)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketGitHubIssue, key, issue)
	})
	if err != nil {
		return &Error{Code: CodeInsertFailed, Err: err}
	}
	return nil
}

// GetGitHubIssue returns the row for number, or found=false if absent.
func (s *Store) GetGitHubIssue(number int) (*types.GitHubIssue, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var issue types.GitHubIssue
	var found bool
	key := fmt.Sprintf("%d", number)
	err := s.db.View(func(tx *bolt.Tx) error {
		f, err := getJSON(tx, bucketGitHubIssue, key, &issue)
		found = f
		return err
	})
	if err != nil {
		return nil, false, &Error{Code: CodeOperationFailed, Err: err}
	}
	if !found {
		return nil, false, nil
	}
	return &issue, true, nil
}

// SyncGitHubIssues upserts every row in issues in a single transaction.
func (s *Store) SyncGitHubIssues(issues []types.GitHubIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, issue := range issues {
			key := fmt.Sprintf("%d", issue.Number)
			if err := putJSON(tx, bucketGitHubIssue, key, issue); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &Error{Code: CodeInsertFailed, Err: err}
	}
	return nil
}
