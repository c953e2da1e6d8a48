// Package domain: per-peer connection state of a simulated WireGuard interface.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConnectionState tracks the handshake progress of one node towards one peer.
// The bookkeeping is directional: A's state for B is independent of B's state for A.
type ConnectionState int

const (
	StateDisconnected      ConnectionState = iota // initial state
	StateHandshakeInit                            // initiation sent, waiting for response
	StateHandshakeResponse                        // initiation received, response sent
	StateConnected                                // response received
	StateKeyRotation                              // reserved
	StateTimeout                                  // reserved
)

// String returns the wire name of the state.
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshakeInit:
		return "handshake_init"
	case StateHandshakeResponse:
		return "handshake_response"
	case StateConnected:
		return "connected"
	case StateKeyRotation:
		return "key_rotation"
	case StateTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the state as its string name.
func (s ConnectionState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a state from its string name.
func (s *ConnectionState) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for c := StateDisconnected; c <= StateTimeout; c++ {
		if c.String() == name {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", name)
}

// ─── Peer Specification ─────────────────────────────────────────────────────

// PeerSpec is one configured directed peer relation of the topology.
// AllowedIPs and Endpoint are carried through for config rendering and are
// not interpreted by the simulator.
type PeerSpec struct {
	From       string   `json:"from" yaml:"from"`
	To         string   `json:"to" yaml:"to"`
	AllowedIPs []string `json:"allowed_ips,omitempty" yaml:"allowed_ips,omitempty"`
	Endpoint   string   `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// ─── Peer Status ────────────────────────────────────────────────────────────

// PeerMetrics is the reporting view of ConnectionMetrics.
type PeerMetrics struct {
	Sent                int64         `json:"sent"`
	Received            int64         `json:"received"`
	BytesSent           int64         `json:"bytes_sent"`
	BytesReceived       int64         `json:"bytes_received"`
	HandshakesCompleted int64         `json:"handshakes_completed"`
	LastHandshake       time.Time     `json:"last_handshake,omitempty"`
	Uptime              time.Duration `json:"uptime"`
}

// PeerStatus is what a node reports about one of its peers.
type PeerStatus struct {
	State   ConnectionState `json:"state"`
	Metrics PeerMetrics     `json:"metrics"`
}

// IsConnected reports whether the peer finished its handshake.
func (p PeerStatus) IsConnected() bool {
	return p.State == StateConnected
}
