package health

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tutu-network/wgsim/internal/domain"
)

// fakeMesh is a hand-driven Mesh.
type fakeMesh struct {
	running   bool
	status    domain.NetworkStatus
	peers     []domain.PeerSpec
	recovered []string
}

func (f *fakeMesh) Running() bool                { return f.running }
func (f *fakeMesh) Status() domain.NetworkStatus { return f.status }
func (f *fakeMesh) Peers() []domain.PeerSpec     { return f.peers }

func (f *fakeMesh) SimulateRecovery(name string) error {
	f.recovered = append(f.recovered, name)
	ns := f.status.Nodes[name]
	ns.Running = true
	f.status.Nodes[name] = ns
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping() error { return p.err }

func connected() domain.PeerStatus {
	return domain.PeerStatus{State: domain.StateConnected}
}

// newHealthyMesh returns a two-node mesh with both sides connected.
func newHealthyMesh() *fakeMesh {
	return &fakeMesh{
		running: true,
		status: domain.NetworkStatus{Nodes: map[string]domain.NodeStatus{
			"a": {Running: true, Peers: map[string]domain.PeerStatus{"b": connected()}},
			"b": {Running: true, Peers: map[string]domain.PeerStatus{"a": connected()}},
		}},
		peers: []domain.PeerSpec{{From: "a", To: "b"}, {From: "b", To: "a"}},
	}
}

func statusByName(c *Checker, name string) (Status, bool) {
	for _, s := range c.Statuses() {
		if s.Name == name {
			return s, true
		}
	}
	return Status{}, false
}

// ─── Checker Tests ──────────────────────────────────────────────────────────

func TestNewChecker(t *testing.T) {
	c := NewChecker(newHealthyMesh(), Options{})
	if len(c.checks) != 2 {
		t.Errorf("checks = %d, want 2", len(c.checks))
	}
	if c.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", c.interval, DefaultInterval)
	}

	c = NewChecker(newHealthyMesh(), Options{History: fakePinger{}})
	if len(c.checks) != 3 {
		t.Errorf("checks with history = %d, want 3", len(c.checks))
	}
}

func TestChecker_RunAllHealthy(t *testing.T) {
	c := NewChecker(newHealthyMesh(), Options{History: fakePinger{}})
	c.RunOnce(context.Background())

	statuses := c.Statuses()
	if len(statuses) != 3 {
		t.Fatalf("Statuses() = %d, want 3", len(statuses))
	}
	for _, s := range statuses {
		if !s.Healthy {
			t.Errorf("check %q should be healthy, got error: %s", s.Name, s.Error)
		}
	}
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true when all checks pass")
	}
}

func TestChecker_IsHealthy_BeforeRun(t *testing.T) {
	c := NewChecker(newHealthyMesh(), Options{})
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before first run (no statuses)")
	}
}

func TestChecker_StoppedNode(t *testing.T) {
	m := newHealthyMesh()
	ns := m.status.Nodes["b"]
	ns.Running = false
	m.status.Nodes["b"] = ns

	c := NewChecker(m, Options{})
	c.RunOnce(context.Background())

	s, ok := statusByName(c, "nodes_running")
	if !ok {
		t.Fatal("nodes_running status missing")
	}
	if s.Healthy {
		t.Error("nodes_running should fail with a stopped node")
	}
	if !strings.Contains(s.Error, "b") {
		t.Errorf("Error = %q, want stopped node name", s.Error)
	}
	if len(m.recovered) != 0 {
		t.Errorf("recovered = %v, want none without AutoRecover", m.recovered)
	}
}

func TestChecker_AutoRecover(t *testing.T) {
	m := newHealthyMesh()
	ns := m.status.Nodes["a"]
	ns.Running = false
	m.status.Nodes["a"] = ns

	c := NewChecker(m, Options{AutoRecover: true})
	c.RunOnce(context.Background())

	if len(m.recovered) != 1 || m.recovered[0] != "a" {
		t.Fatalf("recovered = %v, want [a]", m.recovered)
	}
	c.RunOnce(context.Background())
	if s, _ := statusByName(c, "nodes_running"); !s.Healthy {
		t.Errorf("nodes_running after recovery: %s", s.Error)
	}
}

func TestChecker_StoppedNetwork(t *testing.T) {
	m := newHealthyMesh()
	m.running = false

	c := NewChecker(m, Options{AutoRecover: true})
	c.RunOnce(context.Background())

	if s, _ := statusByName(c, "nodes_running"); s.Healthy {
		t.Error("nodes_running should fail on a stopped network")
	}
	if len(m.recovered) != 0 {
		t.Errorf("recovered = %v, want none on a stopped network", m.recovered)
	}
}

func TestChecker_StalledHandshake(t *testing.T) {
	m := newHealthyMesh()
	m.status.Nodes["b"].Peers["a"] = domain.PeerStatus{State: domain.StateHandshakeInit}

	c := NewChecker(m, Options{})
	c.RunOnce(context.Background())

	s, _ := statusByName(c, "handshakes_converged")
	if s.Healthy {
		t.Fatal("handshakes_converged should fail")
	}
	if !strings.Contains(s.Error, "b->a (handshake_init)") {
		t.Errorf("Error = %q", s.Error)
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false")
	}
}

func TestChecker_HistoryDown(t *testing.T) {
	c := NewChecker(newHealthyMesh(), Options{History: fakePinger{err: errors.New("database is locked")}})
	c.RunOnce(context.Background())

	s, ok := statusByName(c, "history")
	if !ok || s.Healthy {
		t.Errorf("history status = %+v, want unhealthy", s)
	}
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	c := NewChecker(newHealthyMesh(), Options{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(c.Statuses()) == 0 {
		t.Error("Run should have produced statuses")
	}
}
