package conditions

import (
	"math/rand/v2"
	"sync"
	"time"
)

// LockedRand is a seedable random source safe for concurrent use.
//
// Construct using [NewRand].
type LockedRand struct {
	// mu provides mutual exclusion.
	mu sync.Mutex

	// rng is the underlying generator.
	rng *rand.Rand
}

// NewRand creates a [*LockedRand]. A zero seed picks a time-based seed,
// any other value gives a reproducible sequence.
func NewRand(seed uint64) *LockedRand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &LockedRand{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 implements [domain.Rand].
func (r *LockedRand) Float64() float64 {
	r.mu.Lock()
	v := r.rng.Float64()
	r.mu.Unlock()
	return v
}
