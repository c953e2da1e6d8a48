package mesh

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tutu-network/wgsim/internal/domain"
)

func newTestNode(t *testing.T, name string) *Node {
	t.Helper()
	n := NewNode(domain.NodeSpec{Name: name, PublicKey: "pk-" + name}, testConfig())
	t.Cleanup(func() {
		n.Stop()
		n.Wait()
	})
	return n
}

func popOutbound(t *testing.T, n *Node) domain.Packet {
	t.Helper()
	pkt, ok := n.outbound.pop()
	require.True(t, ok, "outbound queue is empty")
	return pkt
}

func TestNode_ConnectToPeer(t *testing.T) {
	n := newTestNode(t, "a")
	n.ConnectToPeer("b", "pk-b")

	ps, ok := n.PeerStatus("b")
	require.True(t, ok)
	assert.Equal(t, domain.StateHandshakeInit, ps.State)
	assert.Equal(t, int64(1), ps.Metrics.Sent)
	assert.Equal(t, int64(domain.HandshakeInitSize), ps.Metrics.BytesSent)

	pkt := popOutbound(t, n)
	assert.Equal(t, domain.PacketHandshakeInit, pkt.Type)
	assert.Equal(t, "a", pkt.Src)
	assert.Equal(t, "b", pkt.Dst)
	assert.Equal(t, "pk-a", pkt.Payload[PayloadPublicKey])
	assert.Equal(t, "pk-b", pkt.Payload[PayloadPeerPublicKey])
}

func TestNode_HandleHandshakeInit(t *testing.T) {
	n := newTestNode(t, "b")
	n.handle(domain.NewPacket("a", "b", domain.PacketHandshakeInit, nil, 0))

	ps, ok := n.PeerStatus("a")
	require.True(t, ok)
	assert.Equal(t, domain.StateHandshakeResponse, ps.State)
	assert.Equal(t, int64(1), ps.Metrics.Received)
	assert.Equal(t, int64(domain.HandshakeInitSize), ps.Metrics.BytesReceived)
	assert.Zero(t, ps.Metrics.HandshakesCompleted)

	reply := popOutbound(t, n)
	assert.Equal(t, domain.PacketHandshakeResponse, reply.Type)
	assert.Equal(t, "a", reply.Dst)
	assert.Equal(t, domain.HandshakeResponseSize, reply.SizeBytes)
}

func TestNode_HandleHandshakeResponse(t *testing.T) {
	n := newTestNode(t, "a")
	n.ConnectToPeer("b", "pk-b")
	popOutbound(t, n)

	n.handle(domain.NewPacket("b", "a", domain.PacketHandshakeResponse, nil, 0))

	ps, _ := n.PeerStatus("b")
	assert.Equal(t, domain.StateConnected, ps.State)
	assert.Equal(t, int64(1), ps.Metrics.HandshakesCompleted)
	assert.False(t, ps.Metrics.LastHandshake.IsZero())

	_, ok := n.outbound.pop()
	assert.False(t, ok, "a response must not be answered")
}

func TestNode_DataOnlyCounts(t *testing.T) {
	n := newTestNode(t, "a")
	n.handle(domain.NewPacket("b", "a", domain.PacketData, map[string]string{"k": "v"}, 1200))

	ps, ok := n.PeerStatus("b")
	require.True(t, ok)
	assert.Equal(t, domain.StateDisconnected, ps.State)
	assert.Equal(t, int64(1200), ps.Metrics.BytesReceived)
	assert.Zero(t, n.outbound.len())
}

func TestNode_Keepalive(t *testing.T) {
	n := newTestNode(t, "a")
	n.ConnectToPeer("b", "pk-b")
	popOutbound(t, n)
	n.handle(domain.NewPacket("b", "a", domain.PacketHandshakeResponse, nil, 0))

	now := time.Now()
	assert.Empty(t, n.dueKeepalives(now), "deadline not reached yet")

	later := now.Add(DefaultKeepaliveInterval + time.Second)
	due := n.dueKeepalives(later)
	require.Len(t, due, 1)
	assert.Equal(t, domain.PacketKeepalive, due[0].Type)
	assert.Equal(t, "b", due[0].Dst)
	assert.Equal(t, domain.KeepaliveSize, due[0].SizeBytes)

	assert.Empty(t, n.dueKeepalives(later), "deadline is re-armed")
}

func TestNode_KeepaliveRefreshesTimerOnly(t *testing.T) {
	n := newTestNode(t, "a")
	n.handle(domain.NewPacket("b", "a", domain.PacketHandshakeInit, nil, 0))
	popOutbound(t, n)

	n.handle(domain.NewPacket("b", "a", domain.PacketKeepalive, nil, 0))
	ps, _ := n.PeerStatus("b")
	assert.Equal(t, domain.StateHandshakeResponse, ps.State)

	// only connected peers get keepalives
	assert.Empty(t, n.dueKeepalives(time.Now().Add(time.Hour)))
}

func TestNode_DisconnectPeer(t *testing.T) {
	n := newTestNode(t, "a")
	assert.False(t, n.disconnectPeer("b"))

	n.ConnectToPeer("b", "pk-b")
	n.handle(domain.NewPacket("b", "a", domain.PacketHandshakeResponse, nil, 0))
	require.True(t, n.disconnectPeer("b"))

	ps, _ := n.PeerStatus("b")
	assert.Equal(t, domain.StateDisconnected, ps.State)
	assert.Equal(t, int64(1), ps.Metrics.HandshakesCompleted, "metrics survive a disconnect")
	assert.Empty(t, n.dueKeepalives(time.Now().Add(time.Hour)))
}

func TestNode_StoppedNodeStillQueues(t *testing.T) {
	n := newTestNode(t, "a")
	require.False(t, n.Running())

	n.SendPacket(domain.NewPacket("a", "b", domain.PacketData, nil, 64))
	n.ReceivePacket(domain.NewPacket("b", "a", domain.PacketData, nil, 64))

	ps, _ := n.PeerStatus("b")
	assert.Equal(t, int64(1), ps.Metrics.Sent)
	assert.Zero(t, ps.Metrics.Received)
	assert.Equal(t, 1, n.outbound.len())
	assert.Equal(t, 1, n.inbound.len())

	n.Start()
	require.Eventually(t, func() bool {
		ps, _ := n.PeerStatus("b")
		return ps.Metrics.Received == 1
	}, settleTimeout, settleTick)
}

func TestNode_StopEndsLoops(t *testing.T) {
	n := newTestNode(t, "a")
	n.Start()
	n.Start()
	assert.True(t, n.Running())
	n.Stop()
	n.Start()
	n.Stop()

	done := make(chan struct{})
	go func() {
		n.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(settleTimeout):
		t.Fatal("loops did not exit")
	}
}

func TestQueue_FIFO(t *testing.T) {
	notify := make(chan struct{}, 1)
	q := newQueue(notify)
	for _, dst := range []string{"x", "y", "z"} {
		q.push(domain.NewPacket("a", dst, domain.PacketData, nil, 1))
	}
	assert.Len(t, notify, 1)
	assert.Len(t, q.ready(), 1)

	for _, want := range []string{"x", "y", "z"} {
		pkt, ok := q.pop()
		require.True(t, ok)
		assert.Equal(t, want, pkt.Dst)
	}
	_, ok := q.pop()
	assert.False(t, ok)
}
