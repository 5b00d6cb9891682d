package store

import "github.com/boshu2/agentfleet/internal/types"

// InstanceFilter narrows listInstances per spec.md §4.2; zero-valued fields
// are not applied. Filters combine conjunctively.
//
// Limit is a pointer so the zero value is distinguishable from an explicit
// request for zero rows: nil means unset (no cap), and a pointer to 0 means
// the literal empty result spec.md §8 names as a Boundary Behavior.
type InstanceFilter struct {
	Types          []types.InstanceType
	Statuses       []types.Status
	IssueNumber    *int
	ParentInstance string
	Limit          *int
	Offset         int
	OrderBy        string // "created_at" | "last_activity"
	OrderDirection string // "ASC" | "DESC"
}

func (f InstanceFilter) matches(inst *types.Instance) bool {
	if len(f.Types) > 0 && !containsType(f.Types, inst.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, inst.Status) {
		return false
	}
	if f.IssueNumber != nil && inst.IssueNumber != *f.IssueNumber {
		return false
	}
	if f.ParentInstance != "" && inst.ParentInstanceID != f.ParentInstance {
		return false
	}
	return true
}

func containsType(haystack []types.InstanceType, needle types.InstanceType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

func containsStatus(haystack []types.Status, needle types.Status) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
