// Package cyclestore is the cycle registry (spec.md §4.4): a map of cycle
// id to cycle descriptor plus the monotone id allocator, and the only
// place balance(c) and next_vote_id(c) are mutated, so invariant 1
// (balance = price*votes - payouts) and invariant 6 (next_vote_id strictly
// increasing) are enforced in one spot. Grounded on the monotonic-id
// issuance in internal/heuristics/investigation.go's CreateInvestigation,
// generalized from string ids to a dense counter.
package cyclestore

import (
	"sync"

	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/errs"
)

// Cycle is a bounded voting window with fixed fee and escrow pool,
// spec.md §3.
type Cycle struct {
	ID          uint64
	StartBlock  uint64
	EndBlock    uint64
	VotePrice   uint64
	Creator     chain.Identity
	NextVoteID  uint64
	Balance     uint64
}

// Registry is the monotone-id cycle map.
type Registry struct {
	mu      sync.RWMutex
	cycles  map[uint64]*Cycle
	nextID  uint64
}

// New returns an empty Registry with dense ids starting at 0.
func New() *Registry {
	return &Registry{cycles: make(map[uint64]*Cycle)}
}

// Create allocates a new cycle. Requires price > 0 (ErrInvalidVotePrice)
// and start+length not to overflow (ErrArithmeticOverflow).
func (r *Registry) Create(start, length, price uint64, creator chain.Identity) (uint64, error) {
	if price == 0 {
		return 0, errs.ErrInvalidVotePrice
	}
	end := start + length
	if end < start {
		return 0, errs.ErrArithmeticOverflow
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.cycles[id] = &Cycle{
		ID:         id,
		StartBlock: start,
		EndBlock:   end,
		VotePrice:  price,
		Creator:    creator,
		NextVoteID: 0,
		Balance:    0,
	}
	return id, nil
}

// Snapshot returns a copy of the cycle descriptor for id.
func (r *Registry) Snapshot(id uint64) (Cycle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cycles[id]
	if !ok {
		return Cycle{}, errs.CycleDoesntExist{ID: id}
	}
	return *c, nil
}

// Exists reports whether id names a cycle.
func (r *Registry) Exists(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.cycles[id]
	return ok
}

// RecordVote assigns the next dense vote_id for cycle id, increments
// next_vote_id, and credits balance by price — spec.md P3: "next_vote_id
// increases by exactly 1 and balance by exactly vote_price". Returns the
// assigned vote_id.
func (r *Registry) RecordVote(id uint64, price uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cycles[id]
	if !ok {
		return 0, errs.CycleDoesntExist{ID: id}
	}
	voteID := c.NextVoteID
	c.NextVoteID++
	c.Balance += price
	return voteID, nil
}

// DeductBalance subtracts amount from the cycle's balance, saturating at
// zero per spec.md §4.7/Q2 ("balance = max(0, balance - reward)").
func (r *Registry) DeductBalance(id uint64, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cycles[id]
	if !ok {
		return errs.CycleDoesntExist{ID: id}
	}
	if amount >= c.Balance {
		c.Balance = 0
	} else {
		c.Balance -= amount
	}
	return nil
}

// CreditBalance adds amount back to the cycle's balance. Used to
// compensate a claim that deducted balance but then failed to transfer,
// since an in-memory store has no free transactional rollback the way a
// single atomic ledger operation would.
func (r *Registry) CreditBalance(id uint64, amount uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cycles[id]
	if !ok {
		return errs.CycleDoesntExist{ID: id}
	}
	c.Balance += amount
	return nil
}

// Restore installs c verbatim (including its already-computed NextVoteID
// and Balance) and advances the id allocator past c.ID if needed, for
// rebuilding the registry from a persisted event log rather than live
// create_cycle/place_vote calls.
func (r *Registry) Restore(c Cycle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cycle := c
	r.cycles[c.ID] = &cycle
	if c.ID >= r.nextID {
		r.nextID = c.ID + 1
	}
}

// All returns a snapshot of every cycle, ordered by id. No API route
// calls it; there is no cycle-listing endpoint.
func (r *Registry) All() []Cycle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Cycle, 0, len(r.cycles))
	for i := uint64(0); i < r.nextID; i++ {
		if c, ok := r.cycles[i]; ok {
			out = append(out, *c)
		}
	}
	return out
}
