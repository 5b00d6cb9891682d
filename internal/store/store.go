// Package store implements spec.md §4.2's persistence store on top of
// go.etcd.io/bbolt, the embedded single-file KV engine the pack's
// evalgo-org-eve wraps in db/bolt/bolt.go. One bucket holds each entity
// table (instance, event, relationship, config, github_issue); a handful of
// secondary-index buckets narrow candidate sets for listInstances and the
// review protocol's child-relationship lookups. Every mutating operation
// that also writes an event runs inside a single bbolt transaction, giving
// the all-or-nothing guarantee spec.md requires.
package store

import (
	"fmt"
	"os"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/boshu2/agentfleet/internal/capability"
)

const (
	bucketInstance     = "instance"
	bucketEvent        = "event"
	bucketRelationship = "relationship"
	bucketConfig       = "config"
	bucketGitHubIssue  = "github_issue"

	idxInstanceByStatus = "idx_instance_by_status"
	idxInstanceByIssue  = "idx_instance_by_issue"
	idxRelByParent      = "idx_relationship_by_parent"
	idxRelByChild       = "idx_relationship_by_child"
)

var allBuckets = []string{
	bucketInstance, bucketEvent, bucketRelationship, bucketConfig, bucketGitHubIssue,
	idxInstanceByStatus, idxInstanceByIssue, idxRelByParent, idxRelByChild,
}

// Store is the bbolt-backed implementation of the spec's persistence API.
type Store struct {
	mu               sync.RWMutex
	db               *bolt.DB
	path             string
	clock            capability.Clock
	cloudReplication bool
	connected        bool
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithCloudReplication enables sync() to actually succeed; spec.md §4.2
// requires sync to fail with OPERATION_FAILED "unless cloud replication is
// explicitly enabled" — this module has no cloud backend, so the option
// exists only so tests can exercise the success path without inventing one.
func WithCloudReplication(enabled bool) Option {
	return func(s *Store) { s.cloudReplication = enabled }
}

// Open creates or opens the store's bbolt file at path and ensures every
// entity and index bucket exists.
func Open(path string, clock capability.Clock, opts ...Option) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	s := &Store{db: db, path: path, clock: clock, connected: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = capability.SystemClock{}
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Connect marks the store connected. Idempotent per spec.md §4.2.
func (s *Store) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Disconnect closes the underlying bbolt handle. Idempotent.
func (s *Store) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	return s.db.Close()
}

// IsConnected reports whether the store is currently connected.
func (s *Store) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Sync fails with a store error unless cloud replication was explicitly
// enabled at Open time — this module implements no cloud backend, so the
// success path exists only to exercise the option, per spec.md §4.2.
func (s *Store) Sync() error {
	if !s.cloudReplication {
		return &Error{Code: CodeOperationFailed, Err: fmt.Errorf("sync: cloud replication is not enabled")}
	}
	return nil
}

// Vacuum compacts the store file by rewriting every bucket into a fresh
// file and swapping it into place. bbolt pages never shrink the backing
// file on their own, so this is the store's only reclamation path.
func (s *Store) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return &Error{Code: CodeOperationFailed, Err: fmt.Errorf("vacuum: store is closed")}
	}
	tmpPath := s.path + ".vacuum.tmp"
	dst, err := bolt.Open(tmpPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return &Error{Code: CodeOperationFailed, Err: fmt.Errorf("vacuum: open scratch file: %w", err)}
	}
	copyErr := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			return dst.Update(func(dtx *bolt.Tx) error {
				dstBucket, err := dtx.CreateBucketIfNotExists(name)
				if err != nil {
					return err
				}
				return b.ForEach(func(k, v []byte) error {
					return dstBucket.Put(append([]byte(nil), k...), append([]byte(nil), v...))
				})
			})
		})
	})
	dst.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return &Error{Code: CodeOperationFailed, Err: fmt.Errorf("vacuum: copy buckets: %w", copyErr)}
	}
	if err := s.db.Close(); err != nil {
		os.Remove(tmpPath)
		return &Error{Code: CodeOperationFailed, Err: fmt.Errorf("vacuum: close original: %w", err)}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return &Error{Code: CodeOperationFailed, Err: fmt.Errorf("vacuum: swap file: %w", err)}
	}
	reopened, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return &Error{Code: CodeOperationFailed, Err: fmt.Errorf("vacuum: reopen: %w", err)}
	}
	s.db = reopened
	return nil
}

// Backup writes a consistent snapshot of the store to path.
func (s *Store) Backup(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
	if err != nil {
		return &Error{Code: CodeOperationFailed, Err: fmt.Errorf("backup: %w", err)}
	}
	return nil
}

// Close is an alias for Disconnect, for callers that prefer io.Closer.
func (s *Store) Close() error { return s.Disconnect() }
