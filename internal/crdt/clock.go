package crdt

import "sync/atomic"

// fieldClock is the Lamport-like logical clock spec §4.5 says backs
// per-field last-writer-wins: a monotonically increasing counter paired
// with the replica that produced it, so concurrent writers can still be
// totally ordered (ties broken by replica identifier, per spec's
// "ties broken by identifier order" rule for sequences, applied here to
// scalar fields too).
type fieldClock struct {
	Counter uint64
	Replica string
}

// wins reports whether c should replace other under last-writer-wins.
func (c fieldClock) wins(other fieldClock) bool {
	if c.Counter != other.Counter {
		return c.Counter > other.Counter
	}
	return c.Replica > other.Replica
}

func (c fieldClock) isZero() bool {
	return c.Counter == 0 && c.Replica == ""
}

// Clock issues fieldClock values for one replica. A WorkspaceCrdt owns
// exactly one Clock; every local mutation ticks it once.
type Clock struct {
	replica string
	counter atomic.Uint64
}

// NewClock returns a clock for the given replica identifier (typically a
// device id or relay connection id).
func NewClock(replica string) *Clock {
	return &Clock{replica: replica}
}

// Tick returns the next logical timestamp for a local mutation.
func (c *Clock) Tick() fieldClock {
	return fieldClock{Counter: c.counter.Add(1), Replica: c.replica}
}

// Observe folds a remote clock value into this clock so that future local
// ticks always sort after anything already seen, the way a Lamport clock
// advances on receipt of a higher remote counter.
func (c *Clock) Observe(remote fieldClock) {
	for {
		cur := c.counter.Load()
		if remote.Counter <= cur {
			return
		}
		if c.counter.CompareAndSwap(cur, remote.Counter) {
			return
		}
	}
}
