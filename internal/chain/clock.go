package chain

import "sync/atomic"

// Clock supplies the current block height, spec.md §6's now().
type Clock interface {
	BlockHeight() uint64
}

// ManualClock is an atomically-incremented counter used for tests and for
// standalone operation when no external chain-height oracle is configured.
type ManualClock struct {
	height uint64
}

// NewManualClock starts the clock at the given height.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	atomic.StoreUint64(&c.height, start)
	return c
}

// BlockHeight implements Clock.
func (c *ManualClock) BlockHeight() uint64 {
	return atomic.LoadUint64(&c.height)
}

// Advance moves the clock forward by n blocks and returns the new height.
func (c *ManualClock) Advance(n uint64) uint64 {
	return atomic.AddUint64(&c.height, n)
}

// Set pins the clock to an exact height, for deterministic test scenarios.
func (c *ManualClock) Set(height uint64) {
	atomic.StoreUint64(&c.height, height)
}
