package market

import (
	"fmt"

	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/cyclestore"
	"github.com/rawblock/racer-engine/internal/symbol"
	"github.com/rawblock/racer-engine/internal/votestore"
)

// CycleRecord is one persisted CycleCreated event, as read back from the
// audit log for replay.
type CycleRecord struct {
	ID         uint64
	StartBlock uint64
	EndBlock   uint64
	VotePrice  uint64
	Creator    chain.Identity
}

// VoteRecord is one persisted VotePlaced event.
type VoteRecord struct {
	CycleID       uint64
	VoteID        uint64
	Symbol        symbol.Symbol
	Placer        chain.Identity
	PlacedAtBlock uint64
}

// ClaimRecord is one persisted VoteClaimed event.
type ClaimRecord struct {
	CycleID uint64
	VoteID  uint64
	Amount  uint64
}

// Restore rebuilds the Controller's in-memory projection from a persisted
// event log, for recovering state after a process restart. Records must
// each be sorted ascending by id (cycles by ID, votes by (CycleID,
// VoteID)) — the order they were originally recorded in — since the
// cycle and vote stores assign dense ids and can only be rebuilt by
// replaying in that same order. Restore does not re-emit events: the
// sink has already seen every one of these the first time around.
func (c *Controller) Restore(cycles []CycleRecord, votes []VoteRecord, claims []ClaimRecord) error {
	for _, cr := range cycles {
		c.cycles.Restore(cyclestore.Cycle{
			ID:         cr.ID,
			StartBlock: cr.StartBlock,
			EndBlock:   cr.EndBlock,
			VotePrice:  cr.VotePrice,
			Creator:    cr.Creator,
		})
		c.symbolIndexFor(cr.ID)
	}

	for _, vr := range votes {
		cyc, err := c.cycles.Snapshot(vr.CycleID)
		if err != nil {
			return fmt.Errorf("racer: replay vote %d: %w", vr.VoteID, err)
		}
		gotID, err := c.cycles.RecordVote(vr.CycleID, cyc.VotePrice)
		if err != nil {
			return fmt.Errorf("racer: replay vote %d: %w", vr.VoteID, err)
		}
		if gotID != vr.VoteID {
			return fmt.Errorf("racer: replay vote %d: audit log out of order, allocator produced %d", vr.VoteID, gotID)
		}

		c.votes.Append(votestore.Vote{
			ID:            vr.VoteID,
			Symbol:        vr.Symbol,
			Placer:        vr.Placer,
			CycleID:       vr.CycleID,
			PlacedAtBlock: vr.PlacedAtBlock,
		})

		idx := c.symbolIndexFor(vr.CycleID)
		idx.Insert(vr.Symbol)
		snapshot := idx.Snapshot()
		c.topThree.Recompute(vr.CycleID, snapshot, func(s symbol.Symbol) int {
			return c.votes.SymbolVoteCount(vr.CycleID, s)
		})
	}

	for _, cl := range claims {
		if err := c.votes.MarkClaimed(cl.CycleID, cl.VoteID); err != nil {
			return fmt.Errorf("racer: replay claim on vote %d: %w", cl.VoteID, err)
		}
		if err := c.cycles.DeductBalance(cl.CycleID, cl.Amount); err != nil {
			return fmt.Errorf("racer: replay claim on vote %d: %w", cl.VoteID, err)
		}
	}

	return nil
}
