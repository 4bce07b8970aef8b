// Package topthree maintains, per cycle, positional references into the
// Symbol Index for the three highest-vote-count symbols (spec.md §4.5): a
// single O(|Symbol Index|) linear scan in insertion order, re-run after
// every successful vote, where a symbol displaces an incumbent slot only
// on strict inequality — so ties are broken in favor of the
// earlier-inserted incumbent. Grounded on the single-pass
// ranking/aggregation style of internal/heuristics/cluster_engine.go.
package topthree

import (
	"sync"

	"github.com/rawblock/racer-engine/internal/symbol"
)

// Slots names the three top positions (indices into the cycle's Symbol
// Index) currently ranked 1/2/3. When fewer than three distinct symbols
// exist, unused lower-rank slots alias to the lowest real rank: P1==P0 if
// only one symbol exists, P2==P1 if only two do.
type Slots struct {
	P0, P1, P2 int
}

// Tracker holds the current Slots for every cycle.
type Tracker struct {
	mu    sync.RWMutex
	slots map[uint64]Slots
}

// New returns a Tracker with no cycles yet.
func New() *Tracker {
	return &Tracker{slots: make(map[uint64]Slots)}
}

// Recompute re-derives Slots for cycleID from the current Symbol Index
// snapshot (in insertion order) and a vote-count lookup, then stores and
// returns the result. Must be called after every successful vote.
func (t *Tracker) Recompute(cycleID uint64, symbols []symbol.Symbol, countOf func(symbol.Symbol) int) Slots {
	if len(symbols) == 0 {
		slots := Slots{}
		t.store(cycleID, slots)
		return slots
	}

	counts := make([]int, len(symbols))
	for i, s := range symbols {
		counts[i] = countOf(s)
	}

	p0, p1, p2 := -1, -1, -1
	for i, cnt := range counts {
		switch {
		case p0 == -1 || cnt > counts[p0]:
			p2, p1, p0 = p1, p0, i
		case p1 == -1 || cnt > counts[p1]:
			p2, p1 = p1, i
		case p2 == -1 || cnt > counts[p2]:
			p2 = i
		}
	}

	if p1 == -1 {
		p1 = p0
	}
	if p2 == -1 {
		p2 = p1
	}

	slots := Slots{P0: p0, P1: p1, P2: p2}
	t.store(cycleID, slots)
	return slots
}

func (t *Tracker) store(cycleID uint64, slots Slots) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[cycleID] = slots
}

// Get returns the last-computed Slots for cycleID.
func (t *Tracker) Get(cycleID uint64) (Slots, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.slots[cycleID]
	return s, ok
}

// PlaceOf reports which rank (0, 1 or 2) the Symbol Index position pos
// currently holds, checked in P0, P1, P2 order so an aliased lower slot
// never shadows the real rank a position already won.
func (s Slots) PlaceOf(pos int) (int, bool) {
	switch {
	case pos == s.P0:
		return 0, true
	case pos == s.P1:
		return 1, true
	case pos == s.P2:
		return 2, true
	default:
		return 0, false
	}
}
