package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Topology errors
	ErrUnknownNode   = errors.New("unknown node")
	ErrDuplicateNode = errors.New("duplicate node name")
	ErrEmptyName     = errors.New("node name must not be empty")
	ErrSelfPeer      = errors.New("node cannot peer with itself")

	// Path errors
	ErrNoPath = errors.New("no path between nodes")

	// Topology file errors
	ErrNoNodes      = errors.New("topology declares no nodes")
	ErrInvalidPeer  = errors.New("peer entry requires from and to")
	ErrUnknownInput = errors.New("unsupported topology file format")

	// History errors
	ErrRunNotFound = errors.New("simulation run not found")
)
