package store

import (
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/boshu2/agentfleet/internal/types"
)

// CreateRelationship inserts rel, failing loudly on a duplicate
// (parent, child, type) triple per spec.md §3 Relationship.
func (s *Store) CreateRelationship(rel types.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if rel.ID == "" {
		rel.ID = newRelationshipID()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketRelationship))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucketRelationship)
		}
		duplicate := false
		if scanErr := b.ForEach(func(k, v []byte) error {
			var existing types.Relationship
			if err := unmarshalInto(v, &existing); err != nil {
				return err
			}
			if existing.ParentInstance == rel.ParentInstance &&
				existing.ChildInstance == rel.ChildInstance &&
				existing.RelationshipType == rel.RelationshipType {
				duplicate = true
			}
			return nil
		}); scanErr != nil {
			return scanErr
		}
		if duplicate {
			return fmt.Errorf("relationship (%s, %s, %s) already exists", rel.ParentInstance, rel.ChildInstance, rel.RelationshipType)
		}
		if err := putJSON(tx, bucketRelationship, rel.ID, rel); err != nil {
			return err
		}
		if err := putIndex(tx, idxRelByParent, rel.ParentInstance, rel.ID); err != nil {
			return err
		}
		return putIndex(tx, idxRelByChild, rel.ChildInstance, rel.ID)
	})
	if err != nil {
		return &Error{Code: CodeInsertFailed, Err: err}
	}
	return nil
}

// GetRelationships returns edges where instanceID is either parent or
// child, ordered by created_at DESC.
func (s *Store) GetRelationships(instanceID string) ([]types.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rels []types.Relationship
	err := s.db.View(func(tx *bolt.Tx) error {
		seen := make(map[string]bool)
		b := tx.Bucket([]byte(bucketRelationship))
		if b == nil {
			return fmt.Errorf("bucket not found: %s", bucketRelationship)
		}
		collect := func(idxBucket string) error {
			ids, err := scanIndex(tx, idxBucket, instanceID)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if seen[id] {
					continue
				}
				data := b.Get([]byte(id))
				if data == nil {
					continue
				}
				var rel types.Relationship
				if err := unmarshalInto(data, &rel); err != nil {
					return err
				}
				rels = append(rels, rel)
				seen[id] = true
			}
			return nil
		}
		if err := collect(idxRelByParent); err != nil {
			return err
		}
		return collect(idxRelByChild)
	})
	if err != nil {
		return nil, &Error{Code: CodeOperationFailed, Err: err}
	}
	sort.SliceStable(rels, func(i, j int) bool { return rels[i].CreatedAt.After(rels[j].CreatedAt) })
	return rels, nil
}

// RelationshipPatch carries the fields updateRelationship may change.
type RelationshipPatch struct {
	ReviewIteration *int
}

// UpdateRelationship applies patch to the row for id. Fails if id does not
// exist.
func (s *Store) UpdateRelationship(id string, patch RelationshipPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(tx *bolt.Tx) error {
		var rel types.Relationship
		found, err := getJSON(tx, bucketRelationship, id, &rel)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("relationship %s not found", id)
		}
		if patch.ReviewIteration != nil {
			rel.ReviewIteration = *patch.ReviewIteration
		}
		return putJSON(tx, bucketRelationship, id, rel)
	})
	if err != nil {
		return &Error{Code: CodeUpdateFailed, Err: err}
	}
	return nil
}
