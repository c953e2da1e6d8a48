// Package health runs periodic checks over a simulated mesh.
// Checks cover node liveness, handshake convergence and the history store.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tutu-network/wgsim/internal/domain"
	"github.com/tutu-network/wgsim/internal/infra/metrics"
)

// DefaultInterval is the time between two check rounds.
const DefaultInterval = 10 * time.Second

// Mesh is the part of a simulated network the checks inspect.
type Mesh interface {
	Running() bool
	Status() domain.NetworkStatus
	Peers() []domain.PeerSpec
	SimulateRecovery(name string) error
}

// Pinger is satisfied by the history store.
type Pinger interface {
	Ping() error
}

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Options configures a [*Checker].
type Options struct {
	// Interval between rounds; zero means DefaultInterval.
	Interval time.Duration

	// AutoRecover restarts stopped nodes when nodes_running fails.
	AutoRecover bool

	// History is checked when not nil.
	History Pinger

	// Logger is the optional structured logger.
	Logger *slog.Logger
}

// Checker runs periodic health checks with optional auto-recovery.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
	logger   *slog.Logger
}

// NewChecker creates a health checker for m.
func NewChecker(m Mesh, opts Options) *Checker {
	c := &Checker{
		interval: opts.Interval,
		logger:   opts.Logger,
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	nodes := Check{
		Name: "nodes_running",
		CheckFn: func(ctx context.Context) error {
			return checkNodesRunning(m)
		},
	}
	if opts.AutoRecover {
		nodes.RecoverFn = func(ctx context.Context) error {
			return recoverStopped(m)
		}
	}
	c.checks = append(c.checks, nodes, Check{
		Name: "handshakes_converged",
		CheckFn: func(ctx context.Context) error {
			return checkConverged(m)
		},
	})
	if opts.History != nil {
		c.checks = append(c.checks, Check{
			Name: "history",
			CheckFn: func(ctx context.Context) error {
				return opts.History.Ping()
			},
			RecoverFn: func(ctx context.Context) error {
				return nil // SQLite auto-recovers via WAL
			},
		})
	}
	return c
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.RunOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		}
	}
}

// RunOnce runs every check once and stores the results.
func (c *Checker) RunOnce(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{
			Name:      check.Name,
			CheckedAt: time.Now(),
		}
		if err := check.CheckFn(ctx); err != nil {
			s.Error = err.Error()
			c.logger.Warn("health check failed", slog.String("check", check.Name), slog.String("error", s.Error))
			if check.RecoverFn != nil {
				if rerr := check.RecoverFn(ctx); rerr != nil {
					c.logger.Warn("health recovery failed", slog.String("check", check.Name), slog.String("error", rerr.Error()))
				}
			}
		} else {
			s.Healthy = true
		}
		metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(boolGauge(s.Healthy))
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}

// ─── Check Implementations ──────────────────────────────────────────────────

func checkNodesRunning(m Mesh) error {
	if !m.Running() {
		return fmt.Errorf("network is stopped")
	}
	stopped := stoppedNodes(m.Status())
	if len(stopped) > 0 {
		return fmt.Errorf("%d node(s) stopped: %s", len(stopped), strings.Join(stopped, ", "))
	}
	return nil
}

// checkConverged requires every configured directed peer entry to be
// connected on its initiating side.
func checkConverged(m Mesh) error {
	st := m.Status()
	var stalled []string
	for _, p := range m.Peers() {
		ps, ok := st.Nodes[p.From].Peers[p.To]
		if !ok || !ps.IsConnected() {
			stalled = append(stalled, fmt.Sprintf("%s->%s (%s)", p.From, p.To, ps.State))
		}
	}
	if len(stalled) > 0 {
		return fmt.Errorf("%d handshake(s) not connected: %s", len(stalled), strings.Join(stalled, ", "))
	}
	return nil
}

func recoverStopped(m Mesh) error {
	if !m.Running() {
		return nil
	}
	for _, name := range stoppedNodes(m.Status()) {
		if err := m.SimulateRecovery(name); err != nil {
			return err
		}
	}
	return nil
}

func stoppedNodes(st domain.NetworkStatus) []string {
	var stopped []string
	for name, ns := range st.Nodes {
		if !ns.Running {
			stopped = append(stopped, name)
		}
	}
	slices.Sort(stopped)
	return stopped
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
