package mesh

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbmk-project/common/runtimex"

	"github.com/tutu-network/wgsim/internal/domain"
	"github.com/tutu-network/wgsim/internal/infra/conditions"
	"github.com/tutu-network/wgsim/internal/infra/topology"
)

// Network is a simulated mesh of [*Node] values joined by a topology graph.
//
// The graph and link conditions are fixed at construction. Start, Stop and
// the failure operations toggle running flags and peer states; they never
// rebuild the graph.
//
// Construct using [New] or [MustNew].
type Network struct {
	cfg    Config
	logger *slog.Logger
	rng    domain.Rand

	graph *topology.Graph
	conds *conditions.Table
	peers []domain.PeerSpec

	// nodes is immutable after construction.
	nodes map[string]*Node

	// order lists node names in declaration order.
	order []string

	// notify is poked whenever any node queues an outbound packet.
	notify chan struct{}

	// mu guards running and gen.
	mu      sync.Mutex
	running bool
	gen     uint64

	// wg tracks router goroutines.
	wg sync.WaitGroup
}

// New builds a stopped network from node and peer lists.
//
// Every peer entry adds one undirected edge; duplicate and reverse entries
// share it. Link conditions are computed once per edge. A peer entry naming
// a node missing from nodes is an error wrapping [domain.ErrUnknownNode].
func New(nodes []domain.NodeSpec, peers []domain.PeerSpec, cfg Config) (*Network, error) {
	cfg = cfg.withDefaults()

	names := make([]string, 0, len(nodes))
	for _, spec := range nodes {
		names = append(names, spec.Name)
	}
	graph, err := topology.New(names, peers)
	if err != nil {
		return nil, fmt.Errorf("build topology: %w", err)
	}

	rng := cfg.Rand
	if rng == nil {
		rng = conditions.NewRand(cfg.Seed)
	}

	model := conditions.NewModel(rng)
	table := conditions.NewTable()
	for _, e := range graph.Edges() {
		table.Set(e.From, e.To, model.Compute(e.From, e.To))
	}

	n := &Network{
		cfg:    cfg,
		logger: cfg.Logger,
		rng:    rng,
		graph:  graph,
		conds:  table,
		peers:  append([]domain.PeerSpec(nil), peers...),
		nodes:  make(map[string]*Node, len(nodes)),
		order:  names,
		notify: make(chan struct{}, 1),
	}
	for _, spec := range nodes {
		n.nodes[spec.Name] = newNode(spec, cfg, n.notify)
	}
	for _, name := range names {
		for _, peer := range graph.Neighbors(name) {
			n.nodes[name].addPeer(peer)
		}
	}

	n.logger.Info("network built",
		slog.Int("nodes", graph.NodeCount()),
		slog.Int("edges", graph.EdgeCount()))
	return n, nil
}

// MustNew is like [New] but panics on error.
func MustNew(nodes []domain.NodeSpec, peers []domain.PeerSpec, cfg Config) *Network {
	return runtimex.Try1(New(nodes, peers, cfg))
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Start starts every node and the router, then initiates one handshake per
// configured directed peer entry. A pair declared in both directions
// performs two independent handshakes. Starting a running network is a no-op.
func (n *Network) Start() {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.gen++
	gen := n.gen
	n.mu.Unlock()

	for _, name := range n.order {
		n.nodes[name].Start()
	}
	// Initiations are queued before the router runs so that every node's
	// outbound queue holds its initiations ahead of any response.
	for _, p := range n.peers {
		n.nodes[p.From].ConnectToPeer(p.To, n.nodes[p.To].spec.PublicKey)
	}

	n.wg.Add(1)
	go n.routeLoop(gen)
	n.logger.Info("network started", slog.Int("handshakes", len(n.peers)))
}

// Stop marks the network and every node stopped. Loops exit on their next
// poll or after an in-flight link delay.
func (n *Network) Stop() {
	n.mu.Lock()
	n.running = false
	n.mu.Unlock()
	for _, name := range n.order {
		n.nodes[name].Stop()
	}
	n.logger.Info("network stopped")
}

// Close stops the network and waits for every goroutine to exit.
func (n *Network) Close() error {
	n.Stop()
	n.wg.Wait()
	for _, name := range n.order {
		n.nodes[name].Wait()
	}
	return nil
}

// Running reports whether the network is running.
func (n *Network) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

func (n *Network) active(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running && n.gen == gen
}

// ─── Accessors ──────────────────────────────────────────────────────────────

// Node returns the node called name.
func (n *Network) Node(name string) (*Node, bool) {
	node, ok := n.nodes[name]
	return node, ok
}

// NodeNames returns node names in declaration order.
func (n *Network) NodeNames() []string {
	return append([]string(nil), n.order...)
}

// Peers returns the configured directed peer entries.
func (n *Network) Peers() []domain.PeerSpec {
	return append([]domain.PeerSpec(nil), n.peers...)
}

// Conditions returns the conditions of the link between a and b.
func (n *Network) Conditions(a, b string) (domain.NetworkConditions, bool) {
	return n.conds.Get(a, b)
}

// ─── Path Queries ───────────────────────────────────────────────────────────

// FindPath returns an unweighted shortest path from src to dst, endpoints
// included. It returns false for unknown names, unreachable pairs and src == dst.
func (n *Network) FindPath(src, dst string) ([]string, bool) {
	return n.graph.ShortestPath(src, dst)
}

// PathLatency sums the configured base latency of each hop of path.
// Paths shorter than two nodes have zero latency.
func (n *Network) PathLatency(path []string) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += n.conds.Lookup(path[i-1], path[i]).LatencyMs
	}
	return total
}

// ─── Fault Injection ────────────────────────────────────────────────────────

// SimulateFailure stops the named node and forces every other node's entry
// for it to disconnected. The failed node's own peer states are left as is.
func (n *Network) SimulateFailure(name string) error {
	node, ok := n.nodes[name]
	if !ok {
		return fmt.Errorf("simulate failure: %w %q", domain.ErrUnknownNode, name)
	}
	node.Stop()

	affected := 0
	for _, other := range n.order {
		if other == name {
			continue
		}
		if n.nodes[other].disconnectPeer(name) {
			affected++
		}
	}
	n.logger.Warn("node failed", slog.String("node", name), slog.Int("peers_disconnected", affected))
	return nil
}

// SimulateRecovery restarts the named node and replays the handshake of
// every peer entry declared from it. Entries declared towards it are not
// replayed; those neighbors answer the new initiations instead.
func (n *Network) SimulateRecovery(name string) error {
	node, ok := n.nodes[name]
	if !ok {
		return fmt.Errorf("simulate recovery: %w %q", domain.ErrUnknownNode, name)
	}
	node.Start()

	replayed := 0
	for _, p := range n.peers {
		if p.From != name {
			continue
		}
		node.ConnectToPeer(p.To, n.nodes[p.To].spec.PublicKey)
		replayed++
	}
	n.logger.Info("node recovered", slog.String("node", name), slog.Int("handshakes", replayed))
	return nil
}

// ─── Status ─────────────────────────────────────────────────────────────────

// Status returns a point-in-time report of every node, edge and the totals.
func (n *Network) Status() domain.NetworkStatus {
	status := domain.NetworkStatus{
		Nodes:   make(map[string]domain.NodeStatus, len(n.order)),
		TakenAt: time.Now(),
	}
	stats := domain.Statistics{
		TotalNodes: n.graph.NodeCount(),
		TotalEdges: n.graph.EdgeCount(),
	}

	for _, name := range n.order {
		node := n.nodes[name]
		peers := node.PeerStatuses()
		for _, ps := range peers {
			if ps.IsConnected() {
				stats.ConnectedPairs += 0.5
			}
			stats.TotalPackets += ps.Metrics.Sent
			stats.TotalBytes += ps.Metrics.BytesSent
		}
		status.Nodes[name] = domain.NodeStatus{
			Role:    node.spec.Role,
			IP:      node.spec.IP,
			Running: node.Running(),
			Peers:   peers,
		}
	}

	for _, e := range n.graph.Edges() {
		c := n.conds.Lookup(e.From, e.To)
		info := domain.ConnectionInfo{
			From:          e.From,
			To:            e.To,
			LatencyMs:     c.LatencyMs,
			PacketLoss:    c.PacketLoss,
			BandwidthMbps: c.BandwidthMbps,
		}
		if ps, ok := status.Nodes[e.From].Peers[e.To]; ok {
			info.State = ps.State
		}
		status.Connections = append(status.Connections, info)
	}

	status.Statistics = stats
	return status
}
