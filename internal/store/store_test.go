package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/boshu2/agentfleet/internal/capability/fake"
	"github.com/boshu2/agentfleet/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fleet.db")
	clock := fake.NewClock(time.Unix(1700000000, 0))
	s, err := Open(path, clock)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateInstanceCollision(t *testing.T) {
	s := newTestStore(t)
	inst := types.Instance{ID: "work-42-1-abc", Type: types.InstanceTypeCoding, Status: types.StatusStarted}
	if err := s.CreateInstance(inst); err != nil {
		t.Fatalf("first CreateInstance() error = %v", err)
	}
	if err := s.CreateInstance(inst); err == nil {
		t.Fatal("expected error on duplicate id, got nil")
	}
}

func TestGetInstanceNotFound(t *testing.T) {
	s := newTestStore(t)
	_, found, err := s.GetInstance("missing")
	if err != nil {
		t.Fatalf("GetInstance() error = %v", err)
	}
	if found {
		t.Fatal("expected found = false")
	}
}

func TestUpdateInstanceStatusWritesPairedEvent(t *testing.T) {
	s := newTestStore(t)
	inst := types.Instance{ID: "work-1-1-abc", Type: types.InstanceTypeCoding, Status: types.StatusStarted}
	if err := s.CreateInstance(inst); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	if err := s.UpdateInstanceStatus(inst.ID, types.StatusWaitingReview); err != nil {
		t.Fatalf("UpdateInstanceStatus() error = %v", err)
	}
	got, found, err := s.GetInstance(inst.ID)
	if err != nil || !found {
		t.Fatalf("GetInstance() = %v, %v, %v", got, found, err)
	}
	if got.Status != types.StatusWaitingReview {
		t.Fatalf("Status = %v, want waiting_review", got.Status)
	}
	if got.TerminatedAt != nil {
		t.Fatal("TerminatedAt should be nil for a non-terminal status")
	}
	events, err := s.GetEvents(inst.ID, 0)
	if err != nil {
		t.Fatalf("GetEvents() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	ev := events[0]
	if !ev.IsStatusUpdating || ev.StatusChange != types.StatusWaitingReview || ev.ToolName != "update_instance_status" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestUpdateInstanceStatusTerminalStampsTerminatedAt(t *testing.T) {
	s := newTestStore(t)
	inst := types.Instance{ID: "work-1-1-xyz", Type: types.InstanceTypeCoding, Status: types.StatusStarted}
	if err := s.CreateInstance(inst); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	if err := s.UpdateInstanceStatus(inst.ID, types.StatusTerminated); err != nil {
		t.Fatalf("UpdateInstanceStatus() error = %v", err)
	}
	got, _, err := s.GetInstance(inst.ID)
	if err != nil {
		t.Fatalf("GetInstance() error = %v", err)
	}
	if got.TerminatedAt == nil {
		t.Fatal("expected TerminatedAt to be set for a terminal status")
	}
}

func TestUpdateInstanceNotFound(t *testing.T) {
	s := newTestStore(t)
	path := "p"
	if err := s.UpdateInstance("missing", InstancePatch{WorktreePath: &path}); err == nil {
		t.Fatal("expected error updating a missing instance")
	}
}

func TestDeleteInstanceNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteInstance("missing"); err == nil {
		t.Fatal("expected error deleting a missing instance")
	}
}

func TestListInstancesFiltersConjunctively(t *testing.T) {
	s := newTestStore(t)
	issue := 7
	instances := []types.Instance{
		{ID: "a", Type: types.InstanceTypeCoding, Status: types.StatusStarted, IssueNumber: issue},
		{ID: "b", Type: types.InstanceTypeCoding, Status: types.StatusWaitingReview, IssueNumber: issue},
		{ID: "c", Type: types.InstanceTypeReview, Status: types.StatusStarted, IssueNumber: 99},
	}
	for _, inst := range instances {
		if err := s.CreateInstance(inst); err != nil {
			t.Fatalf("CreateInstance(%s) error = %v", inst.ID, err)
		}
	}
	got, err := s.ListInstances(InstanceFilter{
		Types:       []types.InstanceType{types.InstanceTypeCoding},
		Statuses:    []types.Status{types.StatusStarted},
		IssueNumber: &issue,
	})
	if err != nil {
		t.Fatalf("ListInstances() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("ListInstances() = %+v, want only instance a", got)
	}
}

func TestListInstancesPagination(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		if err := s.CreateInstance(types.Instance{ID: id, Type: types.InstanceTypeCoding, Status: types.StatusStarted}); err != nil {
			t.Fatalf("CreateInstance(%s) error = %v", id, err)
		}
	}
	limit := 2
	got, err := s.ListInstances(InstanceFilter{Limit: &limit, Offset: 1})
	if err != nil {
		t.Fatalf("ListInstances() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
}

func TestListInstancesZeroLimitReturnsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateInstance(types.Instance{ID: "a", Type: types.InstanceTypeCoding, Status: types.StatusStarted}); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	zero := 0
	got, err := s.ListInstances(InstanceFilter{Limit: &zero})
	if err != nil {
		t.Fatalf("ListInstances() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListInstances({Limit: 0}) = %+v, want empty per spec boundary behavior", got)
	}
}

func TestCreateRelationshipDuplicateRejected(t *testing.T) {
	s := newTestStore(t)
	rel := types.Relationship{ParentInstance: "p", ChildInstance: "c", RelationshipType: types.RelationshipSpawnedReview}
	if err := s.CreateRelationship(rel); err != nil {
		t.Fatalf("first CreateRelationship() error = %v", err)
	}
	if err := s.CreateRelationship(rel); err == nil {
		t.Fatal("expected error on duplicate relationship triple")
	}
}

func TestGetRelationshipsBothDirections(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateRelationship(types.Relationship{ParentInstance: "p", ChildInstance: "c1", RelationshipType: types.RelationshipSpawnedReview}); err != nil {
		t.Fatalf("CreateRelationship() error = %v", err)
	}
	if err := s.CreateRelationship(types.Relationship{ParentInstance: "gp", ChildInstance: "p", RelationshipType: types.RelationshipSpawnedReview}); err != nil {
		t.Fatalf("CreateRelationship() error = %v", err)
	}
	rels, err := s.GetRelationships("p")
	if err != nil {
		t.Fatalf("GetRelationships() error = %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("len(rels) = %d, want 2", len(rels))
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetConfig("max_reviews", "5", false); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	val, found, err := s.GetConfig("max_reviews")
	if err != nil || !found || val != "5" {
		t.Fatalf("GetConfig() = %q, %v, %v", val, found, err)
	}
	if err := s.DeleteConfig("max_reviews"); err != nil {
		t.Fatalf("DeleteConfig() error = %v", err)
	}
	if err := s.DeleteConfig("max_reviews"); err != nil {
		t.Fatalf("DeleteConfig() on missing key should be a no-op, got %v", err)
	}
}

func TestGitHubIssueUpsertAndSync(t *testing.T) {
	s := newTestStore(t)
	if err := s.UpsertGitHubIssue(types.GitHubIssue{Number: 1, Title: "first"}); err != nil {
		t.Fatalf("UpsertGitHubIssue() error = %v", err)
	}
	if err := s.SyncGitHubIssues([]types.GitHubIssue{{Number: 1, Title: "updated"}, {Number: 2, Title: "second"}}); err != nil {
		t.Fatalf("SyncGitHubIssues() error = %v", err)
	}
	issue, found, err := s.GetGitHubIssue(1)
	if err != nil || !found || issue.Title != "updated" {
		t.Fatalf("GetGitHubIssue(1) = %+v, %v, %v", issue, found, err)
	}
}

func TestSyncFailsWithoutCloudReplication(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sync(); err == nil {
		t.Fatal("expected Sync() to fail without cloud replication enabled")
	}
}

func TestConnectDisconnectIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Connect(); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}
	if !s.IsConnected() {
		t.Fatal("expected IsConnected() = true")
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("second Disconnect() error = %v", err)
	}
	if s.IsConnected() {
		t.Fatal("expected IsConnected() = false after Disconnect")
	}
}

func TestBackup(t *testing.T) {
	s := newTestStore(t)
	if err := s.CreateInstance(types.Instance{ID: "a", Type: types.InstanceTypeCoding, Status: types.StatusStarted}); err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	backupPath := filepath.Join(t.TempDir(), "backup.db")
	if err := s.Backup(backupPath); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
}
