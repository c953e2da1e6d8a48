// Package mesh simulates a WireGuard mesh in process.
//
// A [*Network] owns one [*Node] per configured interface, the topology graph,
// the per-link conditions and a single router goroutine. Nodes queue packets
// on their outbound queue; the router drops or delays each packet according
// to the link conditions and appends it to the destination's inbound queue,
// where the destination's dispatch loop drives its handshake state machine.
//
// No sockets are opened and keys are never checked.
package mesh

import (
	"log/slog"
	"time"

	"github.com/tutu-network/wgsim/internal/domain"
)

// Defaults applied by [Config] when a field is left zero.
const (
	DefaultPollInterval      = 100 * time.Millisecond
	DefaultKeepaliveInterval = 25 * time.Second
	DefaultTimeScale         = 1.0
)

// Config controls the timing and observability of a simulated mesh.
type Config struct {
	// PollInterval bounds how long an idle loop waits before
	// re-checking its queue and running flag.
	PollInterval time.Duration

	// KeepaliveInterval is how long a connected peer may stay
	// silent before a keepalive is sent to it.
	KeepaliveInterval time.Duration

	// TimeScale multiplies every simulated link delay. Use values
	// below 1 to run scenarios faster than real time.
	TimeScale float64

	// Seed makes link conditions, jitter and loss reproducible.
	// Zero picks a time-based seed.
	Seed uint64

	// Rand optionally replaces the source built from Seed.
	Rand domain.Rand

	// Logger is the optional structured logger.
	Logger *slog.Logger

	// Recorder optionally observes packets and handshakes.
	Recorder Recorder
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.TimeScale <= 0 {
		c.TimeScale = DefaultTimeScale
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Recorder == nil {
		c.Recorder = nopRecorder{}
	}
	return c
}

// Recorder observes engine events. Implementations must be safe for
// concurrent use and must not block.
type Recorder interface {
	// PacketSent is called when a node queues a packet.
	PacketSent(pkt domain.Packet)

	// PacketRouted is called after the router delivered a packet.
	PacketRouted(pkt domain.Packet, delay time.Duration)

	// PacketDropped is called when link loss discards a packet.
	PacketDropped(pkt domain.Packet)

	// HandshakeCompleted is called when node reaches the connected
	// state for peer, elapsed since it initiated (zero if it did not).
	HandshakeCompleted(node, peer string, elapsed time.Duration)

	// NodeRunning is called when a node starts or stops.
	NodeRunning(node string, running bool)
}

type nopRecorder struct{}

func (nopRecorder) PacketSent(domain.Packet) {}
func (nopRecorder) PacketRouted(domain.Packet, time.Duration) {}
func (nopRecorder) PacketDropped(domain.Packet) {}
func (nopRecorder) HandshakeCompleted(string, string, time.Duration) {}
func (nopRecorder) NodeRunning(string, bool) {}
