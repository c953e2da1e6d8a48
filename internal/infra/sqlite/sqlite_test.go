package sqlite

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/wgsim/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRun(t *testing.T, db *DB, started time.Time) domain.Run {
	t.Helper()
	run, err := db.CreateRun(domain.Run{
		Topology:  "mesh.yaml",
		Command:   "run",
		Seed:      42,
		Nodes:     3,
		Edges:     2,
		StartedAt: started,
	})
	if err != nil {
		t.Fatalf("CreateRun() error: %v", err)
	}
	return run
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "history.db")); os.IsNotExist(err) {
		t.Error("history.db should exist")
	}
}

func TestOpen_Ping(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	db.Close()
}

// ─── Runs ───────────────────────────────────────────────────────────────────

func TestCreateRun_AssignsID(t *testing.T) {
	db := newTestDB(t)
	run := newTestRun(t, db, time.Now())

	if run.ID == uuid.Nil {
		t.Fatal("CreateRun() should assign an ID")
	}
	got, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun() error: %v", err)
	}
	if got.Topology != "mesh.yaml" || got.Seed != 42 || got.Nodes != 3 || got.Edges != 2 {
		t.Errorf("GetRun() = %+v", got)
	}
	if got.Finished() {
		t.Error("new run should not be finished")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetRun(uuid.New())
	if !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("GetRun() error = %v, want %v", err, domain.ErrRunNotFound)
	}
}

func TestFinishRun(t *testing.T) {
	db := newTestDB(t)
	run := newTestRun(t, db, time.Now())

	end := time.Now().Add(time.Second)
	if err := db.FinishRun(run.ID, end); err != nil {
		t.Fatalf("FinishRun() error: %v", err)
	}
	got, _ := db.GetRun(run.ID)
	if got.FinishedAt.UnixMilli() != end.UnixMilli() {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, end)
	}

	if err := db.FinishRun(uuid.New(), end); !errors.Is(err, domain.ErrRunNotFound) {
		t.Errorf("FinishRun(unknown) error = %v, want %v", err, domain.ErrRunNotFound)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	base := time.Now()
	old := newTestRun(t, db, base.Add(-time.Hour))
	mid := newTestRun(t, db, base.Add(-time.Minute))
	recent := newTestRun(t, db, base)

	runs, err := db.ListRuns(0)
	if err != nil {
		t.Fatalf("ListRuns() error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("ListRuns() len = %d, want 3", len(runs))
	}
	want := []uuid.UUID{recent.ID, mid.ID, old.ID}
	for i, id := range want {
		if runs[i].ID != id {
			t.Errorf("runs[%d].ID = %v, want %v", i, runs[i].ID, id)
		}
	}

	limited, _ := db.ListRuns(2)
	if len(limited) != 2 {
		t.Errorf("ListRuns(2) len = %d, want 2", len(limited))
	}
}

// ─── Snapshots & Events ─────────────────────────────────────────────────────

func TestSaveSnapshot(t *testing.T) {
	db := newTestDB(t)
	run := newTestRun(t, db, time.Now())

	st := domain.NetworkStatus{
		Nodes: map[string]domain.NodeStatus{
			"a": {Role: domain.RoleRelay, IP: "10.0.0.1", Running: true},
		},
		Statistics: domain.Statistics{TotalNodes: 1, ConnectedPairs: 1.5, TotalPackets: 8, TotalBytes: 960},
		TakenAt:    time.Now(),
	}
	if err := db.SaveSnapshot(run.ID, "settled", st); err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}
	if err := db.SaveSnapshot(run.ID, "after-failure", domain.NetworkStatus{}); err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}

	snaps, err := db.Snapshots(run.ID)
	if err != nil {
		t.Fatalf("Snapshots() error: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("Snapshots() len = %d, want 2", len(snaps))
	}
	if snaps[0].Label != "settled" || snaps[1].Label != "after-failure" {
		t.Errorf("labels = %q, %q", snaps[0].Label, snaps[1].Label)
	}
	if snaps[0].ConnectedPairs != 1.5 || snaps[0].TotalPackets != 8 || snaps[0].TotalBytes != 960 {
		t.Errorf("snapshot stats = %+v", snaps[0])
	}
	if !strings.Contains(snaps[0].StatusJSON, `"role":"relay"`) {
		t.Errorf("StatusJSON = %s, want encoded node status", snaps[0].StatusJSON)
	}
}

func TestRecordEvent(t *testing.T) {
	db := newTestDB(t)
	run := newTestRun(t, db, time.Now())

	events := []domain.FaultEvent{
		{RunID: run.ID, Kind: domain.FaultFailure, Node: "relay-1"},
		{RunID: run.ID, Kind: domain.FaultRecovery, Node: "relay-1"},
	}
	for _, ev := range events {
		if err := db.RecordEvent(ev); err != nil {
			t.Fatalf("RecordEvent() error: %v", err)
		}
	}

	got, err := db.Events(run.ID)
	if err != nil {
		t.Fatalf("Events() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Events() len = %d, want 2", len(got))
	}
	if got[0].Kind != domain.FaultFailure || got[1].Kind != domain.FaultRecovery {
		t.Errorf("kinds = %s, %s", got[0].Kind, got[1].Kind)
	}
	if got[0].At.IsZero() {
		t.Error("event time should default to now")
	}
}
