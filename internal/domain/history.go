// Package domain: simulation run history records.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run is one recorded simulation run.
type Run struct {
	ID         uuid.UUID `json:"id"`
	Topology   string    `json:"topology"`
	Command    string    `json:"command"`
	Seed       uint64    `json:"seed"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Finished reports whether the run has ended.
func (r Run) Finished() bool { return !r.FinishedAt.IsZero() }

// Snapshot is a labelled network status captured during a run.
type Snapshot struct {
	RunID          uuid.UUID `json:"run_id"`
	Label          string    `json:"label"`
	TakenAt        time.Time `json:"taken_at"`
	ConnectedPairs float64   `json:"connected_pairs"`
	TotalPackets   int64     `json:"total_packets"`
	TotalBytes     int64     `json:"total_bytes"`
	StatusJSON     string    `json:"status_json,omitempty"`
}

// FaultKind names an injected fault.
type FaultKind string

const (
	FaultFailure  FaultKind = "failure"
	FaultRecovery FaultKind = "recovery"
)

// FaultEvent records one injected failure or recovery.
type FaultEvent struct {
	RunID uuid.UUID `json:"run_id"`
	Kind  FaultKind `json:"kind"`
	Node  string    `json:"node"`
	At    time.Time `json:"at"`
}
