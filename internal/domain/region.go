// Package domain: simulated regions and the inter-region latency table.
// A node's region is inferred from its name; the edge conditions model uses
// the pair table below as the base one-way latency of a link.
package domain

// ─── Region Types ───────────────────────────────────────────────────────────

// Region identifies a coarse geographic area of a mesh node.
type Region string

const (
	RegionUS   Region = "US"
	RegionEU   Region = "EU"
	RegionASIA Region = "ASIA"
	RegionSA   Region = "SA"
)

// AllRegions returns all regions known to the latency table.
func AllRegions() []Region {
	return []Region{RegionUS, RegionEU, RegionASIA, RegionSA}
}

// IsValid reports whether r is a recognized region.
func (r Region) IsValid() bool {
	switch r {
	case RegionUS, RegionEU, RegionASIA, RegionSA:
		return true
	}
	return false
}

// String returns the region as a human-readable string.
func (r Region) String() string { return string(r) }

// ─── Base Latency Table ─────────────────────────────────────────────────────
// Approximate one-way latencies in milliseconds between regions.

// DefaultBaseLatencyMs is used for region pairs missing from the table.
const DefaultBaseLatencyMs = 100.0

// BaseLatencyMs returns the base latency between two regions.
// The lookup is order-independent. Unknown pairs return DefaultBaseLatencyMs.
func BaseLatencyMs(a, b Region) float64 {
	if lat, ok := regionLatency[regionPairKey(a, b)]; ok {
		return lat
	}
	return DefaultBaseLatencyMs
}

// regionPairKey normalizes pair ordering so (a,b) == (b,a).
func regionPairKey(a, b Region) string {
	if a > b {
		a, b = b, a
	}
	return string(a) + ":" + string(b)
}

var regionLatency = map[string]float64{
	regionPairKey(RegionUS, RegionUS):     20,
	regionPairKey(RegionUS, RegionEU):     80,
	regionPairKey(RegionUS, RegionASIA):   150,
	regionPairKey(RegionUS, RegionSA):     120,
	regionPairKey(RegionEU, RegionEU):     15,
	regionPairKey(RegionEU, RegionASIA):   120,
	regionPairKey(RegionEU, RegionSA):     180,
	regionPairKey(RegionASIA, RegionASIA): 30,
	regionPairKey(RegionASIA, RegionSA):   250,
	regionPairKey(RegionSA, RegionSA):     40,
}
