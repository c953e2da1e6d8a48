package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tutu-network/wgsim/internal/domain"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

// gaugeValue returns the value of an unlabelled gauge from the default registry.
func gaugeValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name && len(f.GetMetric()) > 0 {
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

func TestRecorder_PacketMetrics(t *testing.T) {
	r := NewRecorder()
	pkt := domain.NewPacket("a", "b", domain.PacketHandshakeInit, nil, 0)

	r.PacketSent(pkt)
	r.PacketRouted(pkt, 3*time.Millisecond)
	r.PacketDropped(pkt)

	names := gatheredNames(t)
	expected := []string{
		"wgsim_packets_sent_total",
		"wgsim_packets_routed_total",
		"wgsim_packets_dropped_total",
		"wgsim_bytes_sent_total",
		"wgsim_link_delay_seconds",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestRecorder_Handshakes(t *testing.T) {
	r := NewRecorder()
	r.HandshakeCompleted("a", "b", 20*time.Millisecond)
	r.HandshakeCompleted("b", "a", 0)

	names := gatheredNames(t)
	if !names["wgsim_handshakes_completed_total"] {
		t.Error("wgsim_handshakes_completed_total not found")
	}
	if !names["wgsim_handshake_duration_seconds"] {
		t.Error("wgsim_handshake_duration_seconds not found")
	}
}

func TestRecorder_NodeRunning(t *testing.T) {
	r := NewRecorder()
	before := gaugeValue(t, "wgsim_nodes_running")

	r.NodeRunning("a", true)
	r.NodeRunning("b", true)
	r.NodeRunning("a", false)

	if got := gaugeValue(t, "wgsim_nodes_running"); got != before+1 {
		t.Errorf("nodes_running = %v, want %v", got, before+1)
	}
}

func TestObserveStatus(t *testing.T) {
	ObserveStatus(domain.NetworkStatus{Statistics: domain.Statistics{
		TotalNodes:     3,
		TotalEdges:     2,
		ConnectedPairs: 1.5,
	}})

	if got := gaugeValue(t, "wgsim_connected_pairs"); got != 1.5 {
		t.Errorf("connected_pairs = %v, want 1.5", got)
	}
	if got := gaugeValue(t, "wgsim_mesh_edges"); got != 2 {
		t.Errorf("mesh_edges = %v, want 2", got)
	}
}

func TestFaultAndHealthMetrics(t *testing.T) {
	FaultEvents.WithLabelValues("failure").Inc()
	FaultEvents.WithLabelValues("recovery").Inc()
	HealthCheckStatus.WithLabelValues("nodes_running").Set(1)

	names := gatheredNames(t)
	if !names["wgsim_fault_events_total"] {
		t.Error("wgsim_fault_events_total not found")
	}
	if !names["wgsim_health_check_status"] {
		t.Error("wgsim_health_check_status not found")
	}
}
