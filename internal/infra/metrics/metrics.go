// Package metrics provides Prometheus metrics for the mesh simulator.
// Counters, gauges and histograms for routed packets, handshakes, node
// liveness, fault injection and health checks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tutu-network/wgsim/internal/domain"
)

const namespace = "wgsim"

// ─── Packets ────────────────────────────────────────────────────────────────

// PacketsSent tracks packets queued by nodes, by packet type.
var PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "packets_sent_total",
	Help:      "Total packets queued by simulated nodes.",
}, []string{"type"})

// PacketsRouted tracks packets delivered by the router, by packet type.
var PacketsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "packets_routed_total",
	Help:      "Total packets delivered to a destination node.",
}, []string{"type"})

// PacketsDropped tracks packets lost to link loss, by packet type.
var PacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "packets_dropped_total",
	Help:      "Total packets dropped by simulated link loss.",
}, []string{"type"})

// BytesSent tracks bytes queued by nodes.
var BytesSent = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "bytes_sent_total",
	Help:      "Total bytes queued by simulated nodes.",
})

// LinkDelay tracks the wall-clock delay applied to each routed packet.
var LinkDelay = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "link_delay_seconds",
	Help:      "Simulated link delay applied before delivery.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
})

// ─── Handshakes ─────────────────────────────────────────────────────────────

// HandshakesCompleted tracks handshake responses that connected a peer.
var HandshakesCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "handshakes_completed_total",
	Help:      "Total completed handshakes.",
})

// HandshakeDuration tracks time from initiation to connected.
var HandshakeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "handshake_duration_seconds",
	Help:      "Time from handshake initiation to connected state.",
	Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
})

// ─── Mesh ───────────────────────────────────────────────────────────────────

// NodesRunning tracks currently running nodes.
var NodesRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "nodes_running",
	Help:      "Number of running simulated nodes.",
})

// ConnectedPairs tracks the connected_pairs statistic of the last status.
var ConnectedPairs = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "connected_pairs",
	Help:      "Connected pairs (0.5 per connected peer entry).",
})

// MeshEdges tracks undirected topology edges.
var MeshEdges = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "mesh_edges",
	Help:      "Number of undirected topology edges.",
})

// FaultEvents tracks injected failures and recoveries.
var FaultEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "fault_events_total",
	Help:      "Injected node failures and recoveries.",
}, []string{"kind"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "health_check_status",
	Help:      "Health check result per check (1=healthy, 0=unhealthy).",
}, []string{"check"})

// ─── Recorder ───────────────────────────────────────────────────────────────

// Recorder feeds engine events into the package collectors.
// It satisfies the mesh package's Recorder interface.
type Recorder struct{}

// NewRecorder creates a [*Recorder].
func NewRecorder() *Recorder { return &Recorder{} }

// PacketSent counts a queued packet.
func (*Recorder) PacketSent(pkt domain.Packet) {
	PacketsSent.WithLabelValues(pkt.Type.String()).Inc()
	BytesSent.Add(float64(pkt.SizeBytes))
}

// PacketRouted counts a delivered packet and its link delay.
func (*Recorder) PacketRouted(pkt domain.Packet, delay time.Duration) {
	PacketsRouted.WithLabelValues(pkt.Type.String()).Inc()
	LinkDelay.Observe(delay.Seconds())
}

// PacketDropped counts a lost packet.
func (*Recorder) PacketDropped(pkt domain.Packet) {
	PacketsDropped.WithLabelValues(pkt.Type.String()).Inc()
}

// HandshakeCompleted counts a handshake and, when known, its duration.
func (*Recorder) HandshakeCompleted(_, _ string, elapsed time.Duration) {
	HandshakesCompleted.Inc()
	if elapsed > 0 {
		HandshakeDuration.Observe(elapsed.Seconds())
	}
}

// NodeRunning tracks the running node gauge.
func (*Recorder) NodeRunning(_ string, running bool) {
	if running {
		NodesRunning.Inc()
		return
	}
	NodesRunning.Dec()
}

// ObserveStatus copies the mesh-wide figures of st into the gauges.
func ObserveStatus(st domain.NetworkStatus) {
	ConnectedPairs.Set(st.Statistics.ConnectedPairs)
	MeshEdges.Set(float64(st.Statistics.TotalEdges))
}
