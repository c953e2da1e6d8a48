package mesh

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tutu-network/wgsim/internal/domain"
)

// Payload keys carried by handshake packets.
const (
	PayloadPublicKey     = "public_key"
	PayloadPeerPublicKey = "peer_public_key"
)

// peerEntry is a node's bookkeeping for one peer.
type peerEntry struct {
	state            domain.ConnectionState
	metrics          domain.ConnectionMetrics
	handshakeStarted time.Time
	keepaliveDue     time.Time
}

// Node simulates one WireGuard interface.
//
// A node owns its peer states and metrics. Its own methods and loops are the
// only writers; the router only appends to its inbound queue.
//
// Construct using [NewNode] or through a [*Network].
type Node struct {
	spec     domain.NodeSpec
	cfg      Config
	logger   *slog.Logger
	inbound  *queue
	outbound *queue

	// mu guards the fields below.
	mu      sync.Mutex
	running bool
	gen     uint64
	peers   map[string]*peerEntry

	// wg tracks the dispatch and keepalive goroutines.
	wg sync.WaitGroup
}

// NewNode creates a stopped [*Node] that is not attached to any network.
func NewNode(spec domain.NodeSpec, cfg Config) *Node {
	return newNode(spec, cfg.withDefaults(), nil)
}

func newNode(spec domain.NodeSpec, cfg Config, notify chan struct{}) *Node {
	return &Node{
		spec:     spec,
		cfg:      cfg,
		logger:   cfg.Logger.With(slog.String("node", spec.Name)),
		inbound:  newQueue(nil),
		outbound: newQueue(notify),
		peers:    make(map[string]*peerEntry),
	}
}

// Name returns the node name.
func (n *Node) Name() string { return n.spec.Name }

// Spec returns the identity the node was created with.
func (n *Node) Spec() domain.NodeSpec { return n.spec }

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Start marks the node running and launches its dispatch and keepalive loops.
// Starting a running node is a no-op.
func (n *Node) Start() {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.gen++
	gen := n.gen
	n.mu.Unlock()

	n.wg.Add(2)
	go n.dispatchLoop(gen)
	go n.keepaliveLoop(gen)
	n.logger.Debug("node started")
	n.cfg.Recorder.NodeRunning(n.spec.Name, true)
}

// Stop marks the node stopped. Its loops exit on their next poll.
// Queued packets are kept and processed after a later Start.
func (n *Node) Stop() {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return
	}
	n.running = false
	n.mu.Unlock()
	n.logger.Debug("node stopped")
	n.cfg.Recorder.NodeRunning(n.spec.Name, false)
}

// Running reports whether the node is running.
func (n *Node) Running() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running
}

// Wait blocks until the loops of every previous Start have exited.
// Call it after Stop.
func (n *Node) Wait() {
	n.wg.Wait()
}

func (n *Node) active(gen uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.running && n.gen == gen
}

// ─── Protocol Operations ────────────────────────────────────────────────────

// ConnectToPeer starts a handshake with peer: the local state for peer
// becomes handshake_init and a handshake initiation is sent.
// There is no timeout; a lost initiation stalls until called again.
func (n *Node) ConnectToPeer(peer, peerPublicKey string) {
	n.mu.Lock()
	e := n.peerLocked(peer)
	e.state = domain.StateHandshakeInit
	e.handshakeStarted = time.Now()
	n.mu.Unlock()

	n.logger.Debug("handshake initiated", slog.String("peer", peer))
	n.SendPacket(domain.NewPacket(n.spec.Name, peer, domain.PacketHandshakeInit, map[string]string{
		PayloadPublicKey:     n.spec.PublicKey,
		PayloadPeerPublicKey: peerPublicKey,
	}, 0))
}

// SendPacket counts pkt as sent to pkt.Dst and queues it for the router.
// Metrics are updated at send time, not on delivery.
func (n *Node) SendPacket(pkt domain.Packet) {
	n.mu.Lock()
	e := n.peerLocked(pkt.Dst)
	e.metrics.PacketsSent++
	e.metrics.BytesSent += int64(pkt.SizeBytes)
	n.mu.Unlock()

	n.outbound.push(pkt)
	n.cfg.Recorder.PacketSent(pkt)
}

// ReceivePacket queues pkt for the dispatch loop.
func (n *Node) ReceivePacket(pkt domain.Packet) {
	n.inbound.push(pkt)
}

// PeerStatus returns the state and metrics of peer, or false when the node
// holds no entry for it.
func (n *Node) PeerStatus(peer string) (domain.PeerStatus, bool) {
	now := time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.peers[peer]
	if !ok {
		return domain.PeerStatus{}, false
	}
	return e.status(now), true
}

// PeerStatuses returns the status of every peer the node knows.
func (n *Node) PeerStatuses() map[string]domain.PeerStatus {
	now := time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]domain.PeerStatus, len(n.peers))
	for name, e := range n.peers {
		out[name] = e.status(now)
	}
	return out
}

// Metrics returns a copy of the raw per-peer counters.
func (n *Node) Metrics() map[string]domain.ConnectionMetrics {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]domain.ConnectionMetrics, len(n.peers))
	for name, e := range n.peers {
		out[name] = e.metrics
	}
	return out
}

func (e *peerEntry) status(now time.Time) domain.PeerStatus {
	return domain.PeerStatus{
		State: e.state,
		Metrics: domain.PeerMetrics{
			Sent:                e.metrics.PacketsSent,
			Received:            e.metrics.PacketsReceived,
			BytesSent:           e.metrics.BytesSent,
			BytesReceived:       e.metrics.BytesReceived,
			HandshakesCompleted: e.metrics.HandshakesCompleted,
			LastHandshake:       e.metrics.LastHandshake,
			Uptime:              e.metrics.Uptime(now),
		},
	}
}

// addPeer registers a topology peer in the disconnected state.
func (n *Node) addPeer(peer string) {
	n.mu.Lock()
	n.peerLocked(peer)
	n.mu.Unlock()
}

// disconnectPeer forces the entry for peer to disconnected, if present.
func (n *Node) disconnectPeer(peer string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.peers[peer]
	if !ok {
		return false
	}
	e.state = domain.StateDisconnected
	e.keepaliveDue = time.Time{}
	return true
}

func (n *Node) peerLocked(peer string) *peerEntry {
	e, ok := n.peers[peer]
	if !ok {
		e = &peerEntry{}
		n.peers[peer] = e
	}
	return e
}

// ─── Loops ──────────────────────────────────────────────────────────────────

func (n *Node) dispatchLoop(gen uint64) {
	defer n.wg.Done()
	for n.active(gen) {
		pkt, ok := n.inbound.pop()
		if !ok {
			select {
			case <-n.inbound.ready():
			case <-time.After(n.cfg.PollInterval):
			}
			continue
		}
		n.handle(pkt)
	}
}

// handle advances the state machine for one inbound packet.
func (n *Node) handle(pkt domain.Packet) {
	now := time.Now()
	var (
		reply     *domain.Packet
		completed bool
		elapsed   time.Duration
	)

	n.mu.Lock()
	e := n.peerLocked(pkt.Src)
	e.metrics.PacketsReceived++
	e.metrics.BytesReceived += int64(pkt.SizeBytes)
	e.metrics.LastPacket = now

	switch pkt.Type {
	case domain.PacketHandshakeInit:
		e.state = domain.StateHandshakeResponse
		resp := domain.NewPacket(n.spec.Name, pkt.Src, domain.PacketHandshakeResponse, map[string]string{
			PayloadPublicKey: n.spec.PublicKey,
		}, 0)
		reply = &resp

	case domain.PacketHandshakeResponse:
		e.state = domain.StateConnected
		e.metrics.HandshakesCompleted++
		e.metrics.LastHandshake = now
		e.metrics.ConnectionEstablished = now
		e.keepaliveDue = now.Add(n.cfg.KeepaliveInterval)
		completed = true
		if !e.handshakeStarted.IsZero() {
			elapsed = now.Sub(e.handshakeStarted)
		}

	case domain.PacketKeepalive:
		e.keepaliveDue = now.Add(n.cfg.KeepaliveInterval)

	case domain.PacketData:
		// counted above; forwarding is a path property of the network
	}
	n.mu.Unlock()

	n.logger.Debug("packet received", slog.String("peer", pkt.Src), slog.String("type", pkt.Type.String()))
	if completed {
		n.logger.Info("handshake completed", slog.String("peer", pkt.Src), slog.Duration("elapsed", elapsed))
		n.cfg.Recorder.HandshakeCompleted(n.spec.Name, pkt.Src, elapsed)
	}
	if reply != nil {
		n.SendPacket(*reply)
	}
}

func (n *Node) keepaliveLoop(gen uint64) {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.PollInterval)
	defer ticker.Stop()
	for n.active(gen) {
		<-ticker.C
		if !n.active(gen) {
			return
		}
		for _, pkt := range n.dueKeepalives(time.Now()) {
			n.SendPacket(pkt)
		}
	}
}

// dueKeepalives re-arms and returns keepalives for connected peers whose
// deadline has passed.
func (n *Node) dueKeepalives(now time.Time) []domain.Packet {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.Packet
	for name, e := range n.peers {
		if e.state != domain.StateConnected || e.keepaliveDue.IsZero() || now.Before(e.keepaliveDue) {
			continue
		}
		e.keepaliveDue = now.Add(n.cfg.KeepaliveInterval)
		out = append(out, domain.NewPacket(n.spec.Name, name, domain.PacketKeepalive, nil, 0))
	}
	return out
}
