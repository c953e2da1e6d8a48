package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tutu-network/wgsim/internal/api"
	"github.com/tutu-network/wgsim/internal/domain"
	"github.com/tutu-network/wgsim/internal/health"
	"github.com/tutu-network/wgsim/internal/infra/mesh"
	"github.com/tutu-network/wgsim/internal/infra/metrics"
	"github.com/tutu-network/wgsim/internal/infra/sqlite"
	"github.com/tutu-network/wgsim/internal/security"
	"github.com/tutu-network/wgsim/internal/topofile"
)

// Daemon is the simulator runtime. It wires the mesh to the history store,
// the health checker and the HTTP API.
type Daemon struct {
	Config   Config
	Topology topofile.Topology
	Logger   *slog.Logger
	Network  *mesh.Network
	DB       *sqlite.DB // nil when history is disabled
	Health   *health.Checker
	Server   *api.Server

	mu     sync.Mutex
	run    domain.Run
	cancel context.CancelFunc
}

// New builds a Daemon for topo. The network is created but not started.
func New(topo topofile.Topology, cfg Config) (*Daemon, error) {
	logger := cfg.NewLogger()

	topo.Nodes = slices.Clone(topo.Nodes)
	filled, err := security.FillMissingKeys(topo.Nodes)
	if err != nil {
		return nil, fmt.Errorf("node keys: %w", err)
	}
	if filled > 0 {
		logger.Debug("generated node keys", slog.Int("nodes", filled))
	}

	mc := cfg.MeshConfig()
	mc.Logger = logger
	if cfg.Telemetry.Prometheus {
		mc.Recorder = metrics.NewRecorder()
	}

	network, err := mesh.New(topo.Nodes, topo.Peers, mc)
	if err != nil {
		return nil, fmt.Errorf("build network: %w", err)
	}

	d := &Daemon{
		Config:   cfg,
		Topology: topo,
		Logger:   logger,
		Network:  network,
	}

	opts := health.Options{
		Interval:    cfg.HealthInterval(),
		AutoRecover: cfg.Health.AutoRecover,
		Logger:      logger,
	}
	if cfg.History.Enabled {
		db, err := sqlite.Open(cfg.History.Dir)
		if err != nil {
			_ = network.Close()
			return nil, fmt.Errorf("open history: %w", err)
		}
		d.DB = db
		opts.History = db
	}
	d.Health = health.NewChecker(d, opts)

	d.Server = api.NewServer(d, 2*time.Second, logger)
	d.Server.SetHealth(d.Health)
	if len(cfg.API.CORSOrigins) > 0 {
		d.Server.SetCORSOrigins(cfg.API.CORSOrigins)
	}
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Start starts every node and the router.
func (d *Daemon) Start() {
	d.Network.Start()
	metrics.ObserveStatus(d.Network.Status())
}

// Settle waits until every configured handshake is connected, the settle
// duration passes or ctx is done. progress, when not nil, is called on every
// poll with the number of connected entries. It reports whether the mesh
// converged.
func (d *Daemon) Settle(ctx context.Context, progress func(done, total int)) bool {
	ctx, cancel := context.WithTimeout(ctx, d.Config.SettleDuration())
	defer cancel()

	ticker := time.NewTicker(d.Config.MeshConfig().PollInterval)
	defer ticker.Stop()

	for {
		done, total := d.Handshakes()
		if progress != nil {
			progress(done, total)
		}
		if done == total {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// Handshakes counts the configured directed peer entries that are connected
// on their initiating side.
func (d *Daemon) Handshakes() (done, total int) {
	st := d.Network.Status()
	for _, p := range d.Network.Peers() {
		if ps, ok := st.Nodes[p.From].Peers[p.To]; ok && ps.IsConnected() {
			done++
		}
		total++
	}
	return done, total
}

// Close stops the network and closes the history store.
func (d *Daemon) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	err := d.Network.Close()
	if d.DB != nil {
		err = errors.Join(err, d.DB.Close())
	}
	return err
}

// ─── Runs & History ─────────────────────────────────────────────────────────

// BeginRun opens a history run for command. Without a history store the
// run only lives in memory.
func (d *Daemon) BeginRun(command string) (domain.Run, error) {
	run := domain.Run{
		Topology: d.Topology.Name,
		Command:  command,
		Seed:     d.Config.Simulation.Seed,
		Nodes:    len(d.Topology.Nodes),
		Edges:    d.Network.Status().Statistics.TotalEdges,
	}
	if d.DB != nil {
		var err error
		if run, err = d.DB.CreateRun(run); err != nil {
			return domain.Run{}, fmt.Errorf("begin run: %w", err)
		}
	} else {
		run.StartedAt = time.Now()
	}

	d.mu.Lock()
	d.run = run
	d.mu.Unlock()
	d.Logger.Debug("run started", slog.String("command", command), slog.String("run", run.ID.String()))
	return run, nil
}

// Run returns the current run.
func (d *Daemon) Run() domain.Run {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run
}

// FinishRun closes the current run.
func (d *Daemon) FinishRun() error {
	d.mu.Lock()
	d.run.FinishedAt = time.Now()
	run := d.run
	d.mu.Unlock()

	if d.DB == nil || run.ID == uuid.Nil {
		return nil
	}
	if err := d.DB.FinishRun(run.ID, run.FinishedAt); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Snapshot takes a status, publishes its figures and stores it under label
// when a run is being recorded.
func (d *Daemon) Snapshot(label string) (domain.NetworkStatus, error) {
	st := d.Network.Status()
	metrics.ObserveStatus(st)

	run := d.Run()
	if d.DB == nil || run.ID == uuid.Nil {
		return st, nil
	}
	if err := d.DB.SaveSnapshot(run.ID, label, st); err != nil {
		return st, fmt.Errorf("save snapshot %q: %w", label, err)
	}
	return st, nil
}

// ─── Mesh Surface ───────────────────────────────────────────────────────────

// Running reports whether the network is started.
func (d *Daemon) Running() bool { return d.Network.Running() }

// Status returns the current network status.
func (d *Daemon) Status() domain.NetworkStatus { return d.Network.Status() }

// Peers returns the configured directed peer entries.
func (d *Daemon) Peers() []domain.PeerSpec { return d.Network.Peers() }

// FindPath returns the shortest hop path between two nodes.
func (d *Daemon) FindPath(src, dst string) ([]string, bool) { return d.Network.FindPath(src, dst) }

// PathLatency sums the base latency along path.
func (d *Daemon) PathLatency(path []string) float64 { return d.Network.PathLatency(path) }

// SimulateFailure stops a node and records the fault.
func (d *Daemon) SimulateFailure(name string) error {
	return d.fault(domain.FaultFailure, name, d.Network.SimulateFailure)
}

// SimulateRecovery restarts a node and records the recovery.
func (d *Daemon) SimulateRecovery(name string) error {
	return d.fault(domain.FaultRecovery, name, d.Network.SimulateRecovery)
}

func (d *Daemon) fault(kind domain.FaultKind, name string, apply func(string) error) error {
	if err := apply(name); err != nil {
		return err
	}
	metrics.FaultEvents.WithLabelValues(string(kind)).Inc()

	run := d.Run()
	if d.DB == nil || run.ID == uuid.Nil {
		return nil
	}
	ev := domain.FaultEvent{RunID: run.ID, Kind: kind, Node: name, At: time.Now()}
	if err := d.DB.RecordEvent(ev); err != nil {
		d.Logger.Warn("record fault event", slog.String("node", name), slog.String("error", err.Error()))
	}
	return nil
}

// ─── Serve ──────────────────────────────────────────────────────────────────

// Serve starts the network and the HTTP server and blocks until ctx is
// done or the process is signalled.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	addr := net.JoinHostPort(d.Config.API.Host, strconv.Itoa(d.Config.API.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	if !d.Network.Running() {
		d.Start()
	}
	if _, err := d.BeginRun("serve"); err != nil {
		ln.Close()
		return err
	}

	go d.Health.Run(ctx)
	d.Server.Hub().Start(ctx)

	httpServer := &http.Server{
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.Logger.Info("serving",
		slog.String("addr", ln.Addr().String()),
		slog.String("topology", d.Topology.Name),
		slog.Int("nodes", len(d.Topology.Nodes)),
		slog.Bool("metrics", d.Config.Telemetry.Prometheus))

	err = httpServer.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done
		return err
	}
	<-done

	if _, err := d.Snapshot("final"); err != nil {
		d.Logger.Warn("final snapshot", slog.String("error", err.Error()))
	}
	d.Network.Stop()
	return d.FinishRun()
}
