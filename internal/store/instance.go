package store

import (
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/boshu2/agentfleet/internal/types"
)

// CreateInstance inserts row with status "started" semantics left to the
// caller; it fails loudly on id collision per spec.md §4.2.
func (s *Store) CreateInstance(inst types.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	if inst.LastActivity.IsZero() {
		inst.LastActivity = inst.CreatedAt
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		var existing types.Instance
		found, err := getJSON(tx, bucketInstance, inst.ID, &existing)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("instance %s already exists", inst.ID)
		}
		if err := putJSON(tx, bucketInstance, inst.ID, inst); err != nil {
			return err
		}
		return indexInstance(tx, nil, &inst)
	})
	if err != nil {
		return &Error{Code: CodeInsertFailed, Err: err}
	}
	return nil
}

// GetInstance returns the row for id, or found=false if absent.
func (s *Store) GetInstance(id string) (*types.Instance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var inst types.Instance
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		f, err := getJSON(tx, bucketInstance, id, &inst)
		found = f
		return err
	})
	if err != nil {
		return nil, false, &Error{Code: CodeOperationFailed, Err: err}
	}
	if !found {
		return nil, false, nil
	}
	return &inst, true, nil
}

// InstancePatch carries the fields updateInstance may change. Nil fields
// are left untouched.
type InstancePatch struct {
	WorktreePath  *string
	BranchName    *string
	TmuxSession   *string
	ClaudePID     *int
	PromptUsed    *string
	PromptContext *string
	SystemPrompt  *string
	AgentNumber   *int
}

// UpdateInstance applies patch to the row for id. Fails if id does not
// exist. Advances LastActivity when the row is non-terminal, per spec.md §3
// Instance invariants.
func (s *Store) UpdateInstance(id string, patch InstancePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		var inst types.Instance
		found, err := getJSON(tx, bucketInstance, id, &inst)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("instance %s not found", id)
		}
		before := inst
		if patch.WorktreePath != nil {
			inst.WorktreePath = *patch.WorktreePath
		}
		if patch.BranchName != nil {
			inst.BranchName = *patch.BranchName
		}
		if patch.TmuxSession != nil {
			inst.TmuxSession = *patch.TmuxSession
		}
		if patch.ClaudePID != nil {
			inst.ClaudePID = *patch.ClaudePID
		}
		if patch.PromptUsed != nil {
			inst.PromptUsed = *patch.PromptUsed
		}
		if patch.PromptContext != nil {
			inst.PromptContext = *patch.PromptContext
		}
		if patch.SystemPrompt != nil {
			inst.SystemPrompt = *patch.SystemPrompt
		}
		if patch.AgentNumber != nil {
			inst.AgentNumber = *patch.AgentNumber
		}
		if !inst.Status.IsTerminal() {
			inst.LastActivity = now
		}
		if err := putJSON(tx, bucketInstance, id, inst); err != nil {
			return err
		}
		return indexInstance(tx, &before, &inst)
	})
	if err != nil {
		return &Error{Code: CodeUpdateFailed, Err: err}
	}
	return nil
}

// UpdateInstanceStatus patches status, conditionally stamps TerminatedAt,
// and writes the paired status-change event, all inside one transaction
// per spec.md §4.2 and §4.5.
func (s *Store) UpdateInstanceStatus(id string, newStatus types.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		var inst types.Instance
		found, err := getJSON(tx, bucketInstance, id, &inst)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("instance %s not found", id)
		}
		before := inst
		inst.Status = newStatus
		inst.LastActivity = now
		if newStatus.IsTerminal() {
			t := now
			inst.TerminatedAt = &t
		}
		if err := putJSON(tx, bucketInstance, id, inst); err != nil {
			return err
		}
		if err := indexInstance(tx, &before, &inst); err != nil {
			return err
		}
		ev := types.Event{
			ID:               newEventID(),
			InstanceID:       id,
			ToolName:         "update_instance_status",
			Timestamp:        now,
			Success:          true,
			IsStatusUpdating: true,
			StatusChange:     newStatus,
		}
		return putJSON(tx, bucketEvent, ev.ID, ev)
	})
	if err != nil {
		return &Error{Code: CodeUpdateFailed, Err: err}
	}
	return nil
}

// DeleteInstance removes the row for id. Fails if id does not exist.
func (s *Store) DeleteInstance(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		var inst types.Instance
		found, err := getJSON(tx, bucketInstance, id, &inst)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("instance %s not found", id)
		}
		if err := deleteKey(tx, bucketInstance, id); err != nil {
			return err
		}
		return indexInstance(tx, &inst, nil)
	})
	if err != nil {
		return &Error{Code: CodeDeleteFailed, Err: err}
	}
	return nil
}

// ListInstances returns rows matching filter, ordered and paginated per
// spec.md §4.2. When the filter names exactly one status or one issue
// number, the matching secondary index narrows the candidate set before
// the full conjunctive predicate is re-checked against each candidate row —
// the index is an optimization, never a correctness shortcut.
func (s *Store) ListInstances(filter InstanceFilter) ([]types.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []types.Instance
	err := s.db.View(func(tx *bolt.Tx) error {
		candidateIDs, useIndex, err := candidateInstanceIDs(tx, filter)
		if err != nil {
			return err
		}
		b := tx.Bucket([]byte(bucketInstance))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucketInstance)
		}
		visit := func(id string, data []byte) error {
			var inst types.Instance
			if err := unmarshalInto(data, &inst); err != nil {
				return err
			}
			if filter.matches(&inst) {
				results = append(results, inst)
			}
			return nil
		}
		if useIndex {
			for _, id := range candidateIDs {
				data := b.Get([]byte(id))
				if data == nil {
					continue
				}
				if err := visit(id, data); err != nil {
					return err
				}
			}
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			return visit(string(k), v)
		})
	})
	if err != nil {
		return nil, &Error{Code: CodeOperationFailed, Err: err}
	}
	sortInstances(results, filter.OrderBy, filter.OrderDirection)
	return paginate(results, filter.Offset, filter.Limit), nil
}

// candidateInstanceIDs narrows the scan using a secondary index when the
// filter shape allows it unambiguously.
func candidateInstanceIDs(tx *bolt.Tx, filter InstanceFilter) ([]string, bool, error) {
	switch {
	case len(filter.Statuses) == 1:
		ids, err := scanIndex(tx, idxInstanceByStatus, string(filter.Statuses[0]))
		return ids, true, err
	case filter.IssueNumber != nil:
		ids, err := scanIndex(tx, idxInstanceByIssue, fmt.Sprintf("%d", *filter.IssueNumber))
		return ids, true, err
	default:
		return nil, false, nil
	}
}

func sortInstances(rows []types.Instance, orderBy, direction string) {
	if orderBy == "" {
		orderBy = "created_at"
	}
	asc := direction != "DESC"
	less := func(i, j int) bool {
		var a, b int64
		switch orderBy {
		case "last_activity":
			a, b = rows[i].LastActivity.UnixNano(), rows[j].LastActivity.UnixNano()
		default:
			a, b = rows[i].CreatedAt.UnixNano(), rows[j].CreatedAt.UnixNano()
		}
		if asc {
			return a < b
		}
		return a > b
	}
	sort.SliceStable(rows, less)
}

// paginate applies offset then limit. limit == nil leaves rows uncapped;
// limit pointing at 0 is a literal request for zero rows, per spec.md §8's
// listInstances({limit: 0}) Boundary Behavior — it is not "no limit".
func paginate(rows []types.Instance, offset int, limit *int) []types.Instance {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []types.Instance{}
	}
	rows = rows[offset:]
	if limit != nil && *limit < len(rows) {
		if *limit <= 0 {
			return []types.Instance{}
		}
		rows = rows[:*limit]
	}
	return rows
}

// indexInstance removes before's index entries (if any) and adds after's
// (if any), keeping the status/issue secondary indexes in sync with the
// primary row.
func indexInstance(tx *bolt.Tx, before, after *types.Instance) error {
	if before != nil {
		if err := deleteIndex(tx, idxInstanceByStatus, string(before.Status), before.ID); err != nil {
			return err
		}
		if before.IssueNumber != 0 {
			if err := deleteIndex(tx, idxInstanceByIssue, fmt.Sprintf("%d", before.IssueNumber), before.ID); err != nil {
				return err
			}
		}
	}
	if after != nil {
		if err := putIndex(tx, idxInstanceByStatus, string(after.Status), after.ID); err != nil {
			return err
		}
		if after.IssueNumber != 0 {
			if err := putIndex(tx, idxInstanceByIssue, fmt.Sprintf("%d", after.IssueNumber), after.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
