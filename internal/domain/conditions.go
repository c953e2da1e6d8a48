// Package domain: link conditions attached to topology edges.
package domain

// Rand is the random source used when sampling link behaviour.
type Rand interface {
	// Float64 returns a pseudo-random number in [0.0, 1.0).
	Float64() float64
}

// NetworkConditions describes the latency, jitter, loss and bandwidth of one link.
// The same value applies to both traversal directions.
type NetworkConditions struct {
	LatencyMs     float64 `json:"latency_ms"`
	JitterMs      float64 `json:"jitter_ms"`
	PacketLoss    float64 `json:"packet_loss"` // probability in [0,1]
	BandwidthMbps float64 `json:"bandwidth_mbps"`
}

// DefaultConditions returns the conditions used for links without a computed entry.
func DefaultConditions() NetworkConditions {
	return NetworkConditions{
		LatencyMs:     10,
		JitterMs:      2,
		PacketLoss:    0,
		BandwidthMbps: 100,
	}
}

// Latency samples a one-way latency in milliseconds:
// LatencyMs plus a uniform jitter in [-JitterMs, +JitterMs], floored at 0.
func (c NetworkConditions) Latency(r Rand) float64 {
	lat := c.LatencyMs + (r.Float64()*2-1)*c.JitterMs
	if lat < 0 {
		return 0
	}
	return lat
}

// Drops reports whether a packet should be lost, using one draw from r.
func (c NetworkConditions) Drops(r Rand) bool {
	if c.PacketLoss <= 0 {
		return false
	}
	return r.Float64() < c.PacketLoss
}
