// Package domain: connection metrics and the network status report.
package domain

import (
	"fmt"
	"time"
)

// ConnectionMetrics are the counters one node keeps for one peer.
// Sent counters are updated when a packet is queued, not when it is delivered.
type ConnectionMetrics struct {
	PacketsSent           int64
	PacketsReceived       int64
	BytesSent             int64
	BytesReceived         int64
	HandshakesCompleted   int64
	LastHandshake         time.Time
	LastPacket            time.Time
	ConnectionEstablished time.Time
}

// Uptime returns how long the connection has been established, or 0 if never.
func (m ConnectionMetrics) Uptime(now time.Time) time.Duration {
	if m.ConnectionEstablished.IsZero() {
		return 0
	}
	return now.Sub(m.ConnectionEstablished)
}

// ─── Network Status ─────────────────────────────────────────────────────────

// NodeStatus is the per-node section of NetworkStatus.
type NodeStatus struct {
	Role    Role                  `json:"role"`
	IP      string                `json:"ip"`
	Running bool                  `json:"running"`
	Peers   map[string]PeerStatus `json:"peers"`
}

// ConnectionInfo describes one topology edge as seen from its "from" side.
type ConnectionInfo struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	LatencyMs     float64         `json:"latency_ms"`
	PacketLoss    float64         `json:"packet_loss"`
	BandwidthMbps float64         `json:"bandwidth_mbps"`
	State         ConnectionState `json:"state"`
}

// Statistics aggregates the whole network.
//
// ConnectedPairs adds 0.5 for every (node, peer) entry in the connected state,
// so a pair connected on both sides counts as 1 and a one-sided one as 0.5.
type Statistics struct {
	TotalNodes     int     `json:"total_nodes"`
	TotalEdges     int     `json:"total_edges"`
	ConnectedPairs float64 `json:"connected_pairs"`
	TotalPackets   int64   `json:"total_packets"`
	TotalBytes     int64   `json:"total_bytes"`
}

// NetworkStatus is a point-in-time report of the simulated mesh.
type NetworkStatus struct {
	Nodes       map[string]NodeStatus `json:"nodes"`
	Connections []ConnectionInfo      `json:"connections"`
	Statistics  Statistics            `json:"statistics"`
	TakenAt     time.Time             `json:"taken_at"`
}

// HumanSize formats a byte count for display, e.g. 1536 -> "1.5 KB".
func HumanSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
