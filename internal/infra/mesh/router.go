package mesh

import (
	"log/slog"
	"time"

	"github.com/tutu-network/wgsim/internal/domain"
)

// routeLoop is the single router of the network. It takes at most one
// packet per node per sweep and handles packets one at a time, so packets
// from one node reach their destinations in send order.
func (n *Network) routeLoop(gen uint64) {
	defer n.wg.Done()
	for n.active(gen) {
		routed := false
		for _, name := range n.order {
			pkt, ok := n.nodes[name].outbound.pop()
			if !ok {
				continue
			}
			routed = true
			n.route(pkt)
		}
		if routed {
			continue
		}
		select {
		case <-n.notify:
		case <-time.After(n.cfg.PollInterval):
		}
	}
}

// route applies link loss and delay to pkt, then delivers it.
func (n *Network) route(pkt domain.Packet) {
	c := n.conds.Lookup(pkt.Src, pkt.Dst)
	if c.Drops(n.rng) {
		n.logger.Debug("packet dropped",
			slog.String("src", pkt.Src),
			slog.String("dst", pkt.Dst),
			slog.String("type", pkt.Type.String()))
		n.cfg.Recorder.PacketDropped(pkt)
		return
	}

	delay := n.delay(c)
	time.Sleep(delay)

	dst, ok := n.nodes[pkt.Dst]
	if !ok {
		n.logger.Debug("packet to unknown node", slog.String("dst", pkt.Dst))
		return
	}
	dst.ReceivePacket(pkt)
	n.cfg.Recorder.PacketRouted(pkt, delay)
}

// delay samples the link latency and scales it to wall-clock time.
func (n *Network) delay(c domain.NetworkConditions) time.Duration {
	ms := c.Latency(n.rng) * n.cfg.TimeScale
	return time.Duration(ms * float64(time.Millisecond))
}
