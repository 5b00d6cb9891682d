package store

import (
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/boshu2/agentfleet/internal/types"
)

// LogEvent writes an explicit event row (prompt updates and other instance
// mutations do not auto-emit events; callers emit them here per spec.md
// §4.5). Fails if InstanceID does not reference an existing instance —
// orphan events are prohibited by foreign-key integrity.
func (s *Store) LogEvent(ev types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if ev.ID == "" {
		ev.ID = newEventID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = now
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		var inst types.Instance
		found, err := getJSON(tx, bucketInstance, ev.InstanceID, &inst)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("event references unknown instance %s", ev.InstanceID)
		}
		return putJSON(tx, bucketEvent, ev.ID, ev)
	})
	if err != nil {
		return &Error{Code: CodeInsertFailed, Err: err}
	}
	return nil
}

// GetEvents returns events for instanceID ordered by timestamp DESC,
// optionally capped at limit (limit <= 0 means unlimited).
func (s *Store) GetEvents(instanceID string, limit int) ([]types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []types.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketEvent))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucketEvent)
		}
		return b.ForEach(func(k, v []byte) error {
			var ev types.Event
			if err := unmarshalInto(v, &ev); err != nil {
				return err
			}
			if ev.InstanceID == instanceID {
				events = append(events, ev)
			}
			return nil
		})
	})
	if err != nil {
		return nil, &Error{Code: CodeOperationFailed, Err: err}
	}
	sortEventsDesc(events)
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return events, nil
}

// GetRecentEvents returns every event with Timestamp >= since, across all
// instances, ordered by timestamp DESC.
func (s *Store) GetRecentEvents(since time.Time) ([]types.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var events []types.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketEvent))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucketEvent)
		}
		return b.ForEach(func(k, v []byte) error {
			var ev types.Event
			if err := unmarshalInto(v, &ev); err != nil {
				return err
			}
			if !ev.Timestamp.Before(since) {
				events = append(events, ev)
			}
			return nil
		})
	})
	if err != nil {
		return nil, &Error{Code: CodeOperationFailed, Err: err}
	}
	sortEventsDesc(events)
	return events, nil
}

func sortEventsDesc(events []types.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
}
