// Package conditions computes the network conditions of mesh links.
//
// Each undirected edge gets one [domain.NetworkConditions] value, computed once
// when the network is built and shared by both traversal directions:
//
//  1. The region of each endpoint is inferred from its name (see [RegionOf]).
//  2. The base latency comes from [domain.BaseLatencyMs] for the region pair.
//  3. Latency is base ± 10 ms, jitter is 10% of base.
//  4. Roughly 5% of links get a small loss rate.
//  5. Links between two CORE nodes get 1 Gbps, all others 100 Mbps.
//
// Node names carrying a test marker override the heuristics entirely.
package conditions

import (
	"strings"

	"github.com/tutu-network/wgsim/internal/domain"
)

// Name markers that force specific link conditions.
const (
	MarkerHighLatency  = "HIGH-LATENCY"
	MarkerPacketLoss   = "PACKET-LOSS"
	MarkerLowBandwidth = "LOW-BANDWIDTH"
	MarkerCore         = "CORE"
)

const (
	latencySpreadMs   = 10.0  // uniform spread added to the base latency
	jitterFraction    = 0.1   // jitter as a fraction of the base latency
	lossyLinkFraction = 0.05  // share of links that get lossyLinkRate
	lossyLinkRate     = 0.001 // loss probability of a lossy link

	coreBandwidthMbps    = 1000.0
	defaultBandwidthMbps = 100.0

	highLatencyMs       = 500.0
	highLatencyJitterMs = 100.0
	markedLossRate      = 0.1
	lowBandwidthMbps    = 1.0
)

// RegionOf infers a node's region from substrings of its name.
// Names matching no region are placed in the US.
func RegionOf(name string) domain.Region {
	upper := strings.ToUpper(name)
	switch {
	case strings.Contains(upper, "US"):
		return domain.RegionUS
	case strings.Contains(upper, "EU"):
		return domain.RegionEU
	case strings.Contains(upper, "ASIA"), strings.Contains(upper, "AP"):
		return domain.RegionASIA
	case strings.Contains(upper, "SA"):
		return domain.RegionSA
	default:
		return domain.RegionUS
	}
}

// Model computes link conditions from node names.
type Model struct {
	rng domain.Rand
}

// NewModel creates a conditions model drawing randomness from rng.
func NewModel(rng domain.Rand) *Model {
	return &Model{rng: rng}
}

// Compute returns the conditions for the link between nodes a and b.
func (m *Model) Compute(a, b string) domain.NetworkConditions {
	base := domain.BaseLatencyMs(RegionOf(a), RegionOf(b))

	c := domain.NetworkConditions{
		LatencyMs:     base + (m.rng.Float64()*2-1)*latencySpreadMs,
		JitterMs:      base * jitterFraction,
		BandwidthMbps: defaultBandwidthMbps,
	}
	if m.rng.Float64() < lossyLinkFraction {
		c.PacketLoss = lossyLinkRate
	}
	if hasMarker(a, MarkerCore) && hasMarker(b, MarkerCore) {
		c.BandwidthMbps = coreBandwidthMbps
	}

	if hasMarker(a, MarkerHighLatency) || hasMarker(b, MarkerHighLatency) {
		c.LatencyMs = highLatencyMs
		c.JitterMs = highLatencyJitterMs
	}
	if hasMarker(a, MarkerPacketLoss) || hasMarker(b, MarkerPacketLoss) {
		c.PacketLoss = markedLossRate
	}
	if hasMarker(a, MarkerLowBandwidth) || hasMarker(b, MarkerLowBandwidth) {
		c.BandwidthMbps = lowBandwidthMbps
	}
	return c
}

func hasMarker(name, marker string) bool {
	return strings.Contains(strings.ToUpper(name), marker)
}

// ─── Symmetric Table ────────────────────────────────────────────────────────

// Table stores one conditions value per undirected link.
//
// The zero value is not ready to use; construct using [NewTable].
// A Table is safe for concurrent reads once it is no longer written.
type Table struct {
	entries map[[2]string]domain.NetworkConditions
}

// NewTable creates an empty [*Table].
func NewTable() *Table {
	return &Table{entries: make(map[[2]string]domain.NetworkConditions)}
}

// Set stores c for both (a,b) and (b,a).
func (t *Table) Set(a, b string, c domain.NetworkConditions) {
	t.entries[[2]string{a, b}] = c
	t.entries[[2]string{b, a}] = c
}

// Get returns the conditions for the ordered pair (a,b).
func (t *Table) Get(a, b string) (domain.NetworkConditions, bool) {
	c, ok := t.entries[[2]string{a, b}]
	return c, ok
}

// Lookup returns the conditions for (a,b), or [domain.DefaultConditions] when absent.
func (t *Table) Lookup(a, b string) domain.NetworkConditions {
	if c, ok := t.Get(a, b); ok {
		return c
	}
	return domain.DefaultConditions()
}
