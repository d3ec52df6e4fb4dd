// Package clock hands out monotonically increasing segment sequence numbers.
package clock

import (
	"sync/atomic"

	"segdb/pkg/types"
)

type AtomicClock struct {
	v atomic.Uint64
}

func NewAtomic(init types.SeqN) *AtomicClock {
	var ac AtomicClock
	ac.v.Store(init)
	return &ac
}

// Val returns the last issued sequence number.
func (ac *AtomicClock) Val() types.SeqN {
	return ac.v.Load()
}

// Next issues a new sequence number.
func (ac *AtomicClock) Next() types.SeqN {
	return ac.v.Add(1)
}

// Observe raises the clock to at least seen, so that numbers found on disk
// are never issued again.
func (ac *AtomicClock) Observe(seen types.SeqN) {
	for {
		cur := ac.v.Load()
		if seen <= cur || ac.v.CompareAndSwap(cur, seen) {
			return
		}
	}
}
