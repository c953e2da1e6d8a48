// Package sqlite provides the SQLite run-history ledger for the simulator.
// Runs, status snapshots and fault events are written for reporting only;
// a network is never rebuilt from them.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/tutu-network/wgsim/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/history.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "history.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			topology    TEXT NOT NULL,
			command     TEXT NOT NULL,
			seed        INTEGER NOT NULL DEFAULT 0,
			nodes       INTEGER NOT NULL,
			edges       INTEGER NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			label           TEXT NOT NULL,
			taken_at        INTEGER NOT NULL,
			connected_pairs REAL NOT NULL,
			total_packets   INTEGER NOT NULL,
			total_bytes     INTEGER NOT NULL,
			status_json     TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_run ON snapshots(run_id)`,

		`CREATE TABLE IF NOT EXISTS events (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id  TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			kind    TEXT NOT NULL,
			node    TEXT NOT NULL,
			at      INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Runs ───────────────────────────────────────────────────────────────────

// CreateRun inserts a run. A nil ID is replaced by a fresh random one and
// the stored run is returned.
func (d *DB) CreateRun(run domain.Run) (domain.Run, error) {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := d.db.Exec(
		`INSERT INTO runs (id, topology, command, seed, nodes, edges, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.Topology, run.Command, int64(run.Seed),
		run.Nodes, run.Edges, run.StartedAt.UnixMilli(), nullableUnixMilli(run.FinishedAt),
	)
	if err != nil {
		return domain.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the end time of a run.
func (d *DB) FinishRun(id uuid.UUID, at time.Time) error {
	result, err := d.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`, at.UnixMilli(), id.String())
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a single run by ID.
func (d *DB) GetRun(id uuid.UUID) (domain.Run, error) {
	row := d.db.QueryRow(
		`SELECT id, topology, command, seed, nodes, edges, started_at, finished_at
		 FROM runs WHERE id = ?`, id.String(),
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Run{}, domain.ErrRunNotFound
	}
	return run, err
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (d *DB) ListRuns(limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.db.Query(
		`SELECT id, topology, command, seed, nodes, edges, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ─── Snapshots ──────────────────────────────────────────────────────────────

// SaveSnapshot stores st under label for the given run.
func (d *DB) SaveSnapshot(runID uuid.UUID, label string, st domain.NetworkStatus) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	takenAt := st.TakenAt
	if takenAt.IsZero() {
		takenAt = time.Now()
	}
	_, err = d.db.Exec(
		`INSERT INTO snapshots (run_id, label, taken_at, connected_pairs, total_packets, total_bytes, status_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID.String(), label, takenAt.UnixMilli(),
		st.Statistics.ConnectedPairs, st.Statistics.TotalPackets, st.Statistics.TotalBytes,
		string(raw),
	)
	return err
}

// Snapshots returns the snapshots of a run in capture order.
func (d *DB) Snapshots(runID uuid.UUID) ([]domain.Snapshot, error) {
	rows, err := d.db.Query(
		`SELECT label, taken_at, connected_pairs, total_packets, total_bytes, status_json
		 FROM snapshots WHERE run_id = ? ORDER BY id`, runID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		s := domain.Snapshot{RunID: runID}
		var takenAt int64
		if err := rows.Scan(&s.Label, &takenAt, &s.ConnectedPairs, &s.TotalPackets, &s.TotalBytes, &s.StatusJSON); err != nil {
			return nil, err
		}
		s.TakenAt = time.UnixMilli(takenAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ─── Fault Events ───────────────────────────────────────────────────────────

// RecordEvent appends a fault event.
func (d *DB) RecordEvent(ev domain.FaultEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := d.db.Exec(
		`INSERT INTO events (run_id, kind, node, at) VALUES (?, ?, ?, ?)`,
		ev.RunID.String(), string(ev.Kind), ev.Node, ev.At.UnixMilli(),
	)
	return err
}

// Events returns the fault events of a run in order.
func (d *DB) Events(runID uuid.UUID) ([]domain.FaultEvent, error) {
	rows, err := d.db.Query(
		`SELECT kind, node, at FROM events WHERE run_id = ? ORDER BY id`, runID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FaultEvent
	for rows.Next() {
		ev := domain.FaultEvent{RunID: runID}
		var kind string
		var at int64
		if err := rows.Scan(&kind, &ev.Node, &at); err != nil {
			return nil, err
		}
		ev.Kind = domain.FaultKind(kind)
		ev.At = time.UnixMilli(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (domain.Run, error) {
	var (
		run       domain.Run
		id        string
		seed      int64
		startedAt int64
		finished  sql.NullInt64
	)
	err := s.Scan(&id, &run.Topology, &run.Command, &seed, &run.Nodes, &run.Edges, &startedAt, &finished)
	if err != nil {
		return domain.Run{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Run{}, fmt.Errorf("parse run id %q: %w", id, err)
	}
	run.ID = parsed
	run.Seed = uint64(seed)
	run.StartedAt = time.UnixMilli(startedAt)
	if finished.Valid {
		run.FinishedAt = time.UnixMilli(finished.Int64)
	}
	return run, nil
}

func nullableUnixMilli(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
