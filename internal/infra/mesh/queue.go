package mesh

import (
	"sync"

	"github.com/tutu-network/wgsim/internal/domain"
)

// queue is an unbounded FIFO of packets.
//
// Pushing never blocks. Consumers poll with [*queue.pop] and may wait on
// [*queue.ready] for a hint that new items arrived.
type queue struct {
	// mu provides mutual exclusion.
	mu sync.Mutex

	// items holds queued packets in arrival order.
	items []domain.Packet

	// signal receives a token after each push, capacity 1.
	signal chan struct{}

	// notify is an optional shared channel also poked after each push.
	notify chan struct{}
}

func newQueue(notify chan struct{}) *queue {
	return &queue{
		signal: make(chan struct{}, 1),
		notify: notify,
	}
}

func (q *queue) push(pkt domain.Packet) {
	q.mu.Lock()
	q.items = append(q.items, pkt)
	q.mu.Unlock()
	poke(q.signal)
	if q.notify != nil {
		poke(q.notify)
	}
}

// pop removes the oldest packet without blocking.
func (q *queue) pop() (domain.Packet, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.Packet{}, false
	}
	pkt := q.items[0]
	q.items[0] = domain.Packet{}
	q.items = q.items[1:]
	return pkt, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) ready() <-chan struct{} {
	return q.signal
}

func poke(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
