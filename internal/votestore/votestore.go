// Package votestore is the per-cycle append-only vote log (spec.md §4.3):
// writes assign nothing themselves (vote_id is allocated by the cycle
// registry so it stays the single source of the monotonic counter), reads
// are by (cycle_id, vote_id) and by (cycle_id, symbol). Grounded on the
// mutex-guarded map-of-slices shape of
// internal/heuristics/investigation.go's InvestigationManager and the
// append-only edge log in internal/heuristics/fund_tracer.go.
package votestore

import (
	"sync"

	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/errs"
	"github.com/rawblock/racer-engine/internal/symbol"
)

// Vote is a single placement of a cycle's fee on a symbol, spec.md §3.
// Only Claimed is mutable after creation.
type Vote struct {
	ID            uint64
	Symbol        symbol.Symbol
	Placer        chain.Identity
	Claimed       bool
	CycleID       uint64
	PlacedAtBlock uint64
}

// Store is the append-only vote log for every cycle.
type Store struct {
	mu       sync.RWMutex
	votes    map[uint64][]Vote                    // cycleID -> votes by dense vote_id
	bySymbol map[uint64]map[symbol.Symbol][]uint64 // cycleID -> symbol -> vote ids
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		votes:    make(map[uint64][]Vote),
		bySymbol: make(map[uint64]map[symbol.Symbol][]uint64),
	}
}

// Append records a new vote. v.ID must equal the number of votes already
// recorded for v.CycleID (the cycle registry's next_vote_id), enforcing
// the dense, monotonic vote_id allocation spec.md §3 requires.
func (s *Store) Append(v Vote) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycleVotes := s.votes[v.CycleID]
	if int(v.ID) != len(cycleVotes) {
		panic("votestore: vote_id is not the next dense id for its cycle")
	}
	s.votes[v.CycleID] = append(cycleVotes, v)

	bySym := s.bySymbol[v.CycleID]
	if bySym == nil {
		bySym = make(map[symbol.Symbol][]uint64)
		s.bySymbol[v.CycleID] = bySym
	}
	bySym[v.Symbol] = append(bySym[v.Symbol], v.ID)
}

// Get returns the vote recorded under (cycleID, voteID).
func (s *Store) Get(cycleID, voteID uint64) (Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := s.votes[cycleID]
	if voteID >= uint64(len(votes)) {
		return Vote{}, errs.VoteDoesntExist{ID: voteID}
	}
	return votes[voteID], nil
}

// MarkClaimed sets claimed=true for (cycleID, voteID), the one mutation
// allowed after a vote's creation. Errors with ErrVoteAlreadyClaimed if
// already claimed, VoteDoesntExist if unknown.
func (s *Store) MarkClaimed(cycleID, voteID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	votes := s.votes[cycleID]
	if voteID >= uint64(len(votes)) {
		return errs.VoteDoesntExist{ID: voteID}
	}
	if votes[voteID].Claimed {
		return errs.ErrVoteAlreadyClaimed
	}
	votes[voteID].Claimed = true
	return nil
}

// Unclaim reverts claimed back to false. Used to compensate a claim whose
// value transfer failed after claimed was already set, per the
// checks-effects-interactions ordering spec.md §4.7 requires.
func (s *Store) Unclaim(cycleID, voteID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	votes := s.votes[cycleID]
	if voteID >= uint64(len(votes)) {
		return errs.VoteDoesntExist{ID: voteID}
	}
	votes[voteID].Claimed = false
	return nil
}

// SymbolVoteCount returns |votes_of(cycleID, sym)|.
func (s *Store) SymbolVoteCount(cycleID uint64, sym symbol.Symbol) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bySymbol[cycleID][sym])
}

// VotesForSymbol returns full Vote records targeting sym within cycleID,
// in placement order, for the reward engine's curve-point accumulation.
func (s *Store) VotesForSymbol(cycleID uint64, sym symbol.Symbol) []Vote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySymbol[cycleID][sym]
	votes := s.votes[cycleID]
	out := make([]Vote, 0, len(ids))
	for _, id := range ids {
		out = append(out, votes[id])
	}
	return out
}

// TotalVotes returns the number of votes recorded for cycleID.
func (s *Store) TotalVotes(cycleID uint64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.votes[cycleID])
}
