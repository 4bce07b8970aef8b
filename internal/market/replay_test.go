package market

import (
	"testing"

	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/symbol"
)

func TestRestoreRebuildsStateAndAllowsNewActivity(t *testing.T) {
	alice := identity(1)
	bob := identity(2)

	cycles := []CycleRecord{
		{ID: 0, StartBlock: 0, EndBlock: 10, VotePrice: 1, Creator: alice},
	}
	votes := []VoteRecord{
		{CycleID: 0, VoteID: 0, Symbol: symbol.FromString("AAA"), Placer: alice, PlacedAtBlock: 0},
		{CycleID: 0, VoteID: 1, Symbol: symbol.FromString("BBB"), Placer: bob, PlacedAtBlock: 1},
	}
	claims := []ClaimRecord{
		{CycleID: 0, VoteID: 0, Amount: 1},
	}

	c, clock, ledger := newTestController(0)
	if err := c.Restore(cycles, votes, claims); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	cyc, err := c.GetCycle(0)
	if err != nil {
		t.Fatalf("GetCycle(0) error = %v", err)
	}
	if cyc.NextVoteID != 2 {
		t.Errorf("NextVoteID = %d, want 2", cyc.NextVoteID)
	}
	if cyc.Balance != 1 {
		t.Errorf("Balance = %d after restoring one claimed vote of two, want 1", cyc.Balance)
	}

	v0, err := c.votes.Get(0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !v0.Claimed {
		t.Error("restored vote 0 not marked claimed")
	}
	v1, err := c.votes.Get(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if v1.Claimed {
		t.Error("restored vote 1 marked claimed, want unclaimed")
	}

	// A restored cycle must still accept new votes and new cycle ids must
	// not collide with the restored one's id.
	clock.Set(2)
	if _, err := c.PlaceVote(bob, 0, symbol.FromString("BBB"), 1); err != nil {
		t.Fatalf("PlaceVote on restored cycle error = %v", err)
	}
	newID, err := c.CreateCycle(alice, 0, 10, 1)
	if err != nil {
		t.Fatalf("CreateCycle after restore error = %v", err)
	}
	if newID != 1 {
		t.Errorf("CreateCycle after restore got id %d, want 1 (past the restored watermark)", newID)
	}

	clock.Set(11)
	if _, err := c.ClaimReward(bob, 0, 1); err != nil {
		t.Fatalf("ClaimReward on restored-then-updated vote error = %v", err)
	}
	_ = ledger
}

func TestRestoreErrorsOnOutOfOrderVoteRecords(t *testing.T) {
	c, _, _ := newTestController(0)
	alice := identity(1)

	cycles := []CycleRecord{{ID: 0, StartBlock: 0, EndBlock: 10, VotePrice: 1, Creator: alice}}
	// vote_id 1 before vote_id 0 is out of order; the dense allocator
	// Restore replays through can't produce this.
	votes := []VoteRecord{
		{CycleID: 0, VoteID: 1, Symbol: symbol.FromString("AAA"), Placer: alice, PlacedAtBlock: 0},
	}

	if err := c.Restore(cycles, votes, nil); err == nil {
		t.Fatal("Restore with out-of-order vote records returned nil error")
	}
}
