package market

import (
	"errors"
	"testing"

	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/errs"
	"github.com/rawblock/racer-engine/internal/symbol"
)

func identity(b byte) chain.Identity {
	var id chain.Identity
	id[0] = b
	return id
}

func newTestController(startHeight uint64) (*Controller, *chain.ManualClock, *chain.MemoryLedger) {
	clock := chain.NewManualClock(startHeight)
	ledger := chain.NewMemoryLedger()
	return New(clock, ledger, nil), clock, ledger
}

// Scenario 1: single voter, single symbol.
func TestSingleVoterSingleSymbolReceivesWholePool(t *testing.T) {
	c, clock, ledger := newTestController(0)
	alice := identity(1)

	cycleID, err := c.CreateCycle(alice, 0, 10, 1)
	if err != nil {
		t.Fatalf("CreateCycle() error = %v", err)
	}

	voteID, err := c.PlaceVote(alice, cycleID, symbol.FromString("AAPL"), 1)
	if err != nil {
		t.Fatalf("PlaceVote() error = %v", err)
	}

	clock.Set(11)
	amount, err := c.ClaimReward(alice, cycleID, voteID)
	if err != nil {
		t.Fatalf("ClaimReward() error = %v", err)
	}
	if amount != 1 {
		t.Errorf("ClaimReward() = %d, want 1", amount)
	}

	balance, err := c.CycleBalance(cycleID)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 0 {
		t.Errorf("cycle balance = %d, want 0", balance)
	}

	v, err := c.votes.Get(cycleID, voteID)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Claimed {
		t.Error("vote.Claimed = false, want true")
	}
	if ledger.Balance(alice) != 1 {
		t.Errorf("alice ledger balance = %d, want 1", ledger.Balance(alice))
	}
}

// Scenario 2: three-way tie in insertion order.
func TestThreeWayTieKeepsInsertionOrder(t *testing.T) {
	c, clock, _ := newTestController(0)
	creator := identity(9)
	cycleID, err := c.CreateCycle(creator, 0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}

	clock.Set(1)
	if _, err := c.PlaceVote(identity(1), cycleID, symbol.FromString("AAA"), 1); err != nil {
		t.Fatal(err)
	}
	clock.Set(2)
	if _, err := c.PlaceVote(identity(2), cycleID, symbol.FromString("BBB"), 1); err != nil {
		t.Fatal(err)
	}
	clock.Set(3)
	if _, err := c.PlaceVote(identity(3), cycleID, symbol.FromString("CCC"), 1); err != nil {
		t.Fatal(err)
	}

	top, err := c.TopThreeSymbols(cycleID)
	if err != nil {
		t.Fatal(err)
	}
	want := [3]symbol.Symbol{symbol.FromString("AAA"), symbol.FromString("BBB"), symbol.FromString("CCC")}
	if top != want {
		t.Errorf("TopThreeSymbols() = %v, want %v", top, want)
	}
}

// Scenario 3: late third-place vote reassigned to creator.
func TestLateThirdPlaceVoteReassignedToCreator(t *testing.T) {
	c, clock, _ := newTestController(0)
	g := identity(0xA0)
	a := identity(0xA1)
	b := identity(0xA2)
	j := identity(0xA3)

	cycleID, err := c.CreateCycle(g, 0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}

	place := func(at uint64, caller chain.Identity, sym string) uint64 {
		clock.Set(at)
		id, err := c.PlaceVote(caller, cycleID, symbol.FromString(sym), 1)
		if err != nil {
			t.Fatalf("PlaceVote(%s at %d) error = %v", sym, at, err)
		}
		return id
	}

	place(0, a, "AAPL")
	place(2, a, "AAPL")
	place(4, b, "AAPL")
	place(6, b, "AAPL")
	place(8, b, "AAPL")
	place(0, j, "GOOG")
	lateVoteID := place(9, j, "GOOG")

	clock.Set(11)

	if _, err := c.ClaimReward(j, cycleID, lateVoteID); err == nil {
		t.Fatal("expected ClaimReward by J to fail for a reassigned late vote")
	} else {
		var notPlaced errs.VoteNotPlacedByCaller
		if !errors.As(err, &notPlaced) {
			t.Errorf("ClaimReward(J) error = %v, want VoteNotPlacedByCaller", err)
		}
	}

	if _, err := c.ClaimReward(g, cycleID, lateVoteID); err != nil {
		t.Fatalf("ClaimReward(G) error = %v, want success", err)
	}
}

// Scenario 4: incorrect fee.
func TestIncorrectFeeErrorsAndRecordsNoVote(t *testing.T) {
	c, _, _ := newTestController(0)
	creator := identity(1)
	cycleID, err := c.CreateCycle(creator, 0, 10, 5)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.PlaceVote(identity(2), cycleID, symbol.FromString("AAPL"), 4)
	if err == nil {
		t.Fatal("expected InvalidVoteFee, got nil")
	}
	var feeErr errs.InvalidVoteFee
	if !errors.As(err, &feeErr) || feeErr.Required != 5 {
		t.Errorf("PlaceVote() error = %v, want InvalidVoteFee{Required: 5}", err)
	}

	count, err := c.TotalVoteCount(cycleID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("TotalVoteCount() = %d, want 0", count)
	}
}

// Scenario 5: double claim.
func TestDoubleClaimErrorsWithoutTransferring(t *testing.T) {
	c, clock, ledger := newTestController(0)
	alice := identity(1)
	cycleID, err := c.CreateCycle(alice, 0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	voteID, err := c.PlaceVote(alice, cycleID, symbol.FromString("AAPL"), 1)
	if err != nil {
		t.Fatal(err)
	}
	clock.Set(11)

	if _, err := c.ClaimReward(alice, cycleID, voteID); err != nil {
		t.Fatalf("first ClaimReward() error = %v", err)
	}
	balanceAfterFirst := ledger.Balance(alice)

	if _, err := c.ClaimReward(alice, cycleID, voteID); !errors.Is(err, errs.ErrVoteAlreadyClaimed) {
		t.Errorf("second ClaimReward() error = %v, want ErrVoteAlreadyClaimed", err)
	}
	if ledger.Balance(alice) != balanceAfterFirst {
		t.Errorf("ledger balance changed on double claim: %d -> %d", balanceAfterFirst, ledger.Balance(alice))
	}
}

// Scenario 6: pre-start vote.
func TestPreStartVoteErrors(t *testing.T) {
	c, clock, _ := newTestController(0)
	creator := identity(1)
	cycleID, err := c.CreateCycle(creator, 100, 10, 1)
	if err != nil {
		t.Fatal(err)
	}

	clock.Set(99)
	if _, err := c.PlaceVote(identity(2), cycleID, symbol.FromString("AAPL"), 1); err == nil {
		t.Fatal("expected CycleVotingUnavailable, got nil")
	} else {
		var unavailable errs.CycleVotingUnavailable
		if !errors.As(err, &unavailable) {
			t.Errorf("PlaceVote() error = %v, want CycleVotingUnavailable", err)
		}
	}
}

func TestTransferFailureRollsBackClaimedAndBalance(t *testing.T) {
	c, clock, ledger := newTestController(0)
	alice := identity(1)
	cycleID, err := c.CreateCycle(alice, 0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	voteID, err := c.PlaceVote(alice, cycleID, symbol.FromString("AAPL"), 1)
	if err != nil {
		t.Fatal(err)
	}
	clock.Set(11)
	ledger.PoisonTransfersTo(alice)

	if _, err := c.ClaimReward(alice, cycleID, voteID); err == nil {
		t.Fatal("expected TransferFailed, got nil")
	}

	v, err := c.votes.Get(cycleID, voteID)
	if err != nil {
		t.Fatal(err)
	}
	if v.Claimed {
		t.Error("vote.Claimed = true after a failed transfer, want false (rolled back)")
	}
	balance, err := c.CycleBalance(cycleID)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 1 {
		t.Errorf("cycle balance = %d after a failed transfer, want 1 (rolled back)", balance)
	}
}

func TestReentrantClaimFailsFast(t *testing.T) {
	c, clock, _ := newTestController(0)
	alice := identity(1)
	cycleID, err := c.CreateCycle(alice, 0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	voteID, err := c.PlaceVote(alice, cycleID, symbol.FromString("AAPL"), 1)
	if err != nil {
		t.Fatal(err)
	}
	clock.Set(11)

	if !c.enterClaim(cycleID) {
		t.Fatal("enterClaim() = false on first entry, want true")
	}
	defer c.exitClaim(cycleID)

	if _, err := c.ClaimReward(alice, cycleID, voteID); !errors.Is(err, errs.ErrReentrancy) {
		t.Errorf("ClaimReward() during guarded section error = %v, want ErrReentrancy", err)
	}
}

func TestBatchClaimRewardAbortsOnFirstFailure(t *testing.T) {
	c, clock, ledger := newTestController(0)
	alice := identity(1)
	bob := identity(2)
	cycleID, err := c.CreateCycle(alice, 0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	v1, err := c.PlaceVote(alice, cycleID, symbol.FromString("AAPL"), 1)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := c.PlaceVote(bob, cycleID, symbol.FromString("AAPL"), 1)
	if err != nil {
		t.Fatal(err)
	}
	clock.Set(11)

	// v2 belongs to bob, so a batch claimed as alice must fail on v2. Since
	// every id in the batch is validated before any of them settles, v1
	// must come out of this untouched: not transferred, not marked
	// claimed, balance not deducted.
	if _, err := c.BatchClaimReward(alice, cycleID, []uint64{v1, v2}); err == nil {
		t.Fatal("expected BatchClaimReward to fail on bob's vote, got nil")
	}

	if ledger.Balance(alice) != 0 {
		t.Errorf("alice ledger balance = %d after aborted batch, want 0 (v1 must not be paid out)", ledger.Balance(alice))
	}
	v, err := c.votes.Get(cycleID, v1)
	if err != nil {
		t.Fatal(err)
	}
	if v.Claimed {
		t.Error("v1.Claimed = true after an aborted batch, want false")
	}
	balance, err := c.CycleBalance(cycleID)
	if err != nil {
		t.Fatal(err)
	}
	if balance != 2 {
		t.Errorf("cycle balance = %d after aborted batch, want 2 (unchanged)", balance)
	}
}

func TestBatchClaimRewardRejectsDuplicateVoteIDInSameBatch(t *testing.T) {
	c, clock, _ := newTestController(0)
	alice := identity(1)
	cycleID, err := c.CreateCycle(alice, 0, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	voteID, err := c.PlaceVote(alice, cycleID, symbol.FromString("AAPL"), 1)
	if err != nil {
		t.Fatal(err)
	}
	clock.Set(11)

	if _, err := c.BatchClaimReward(alice, cycleID, []uint64{voteID, voteID}); !errors.Is(err, errs.ErrVoteAlreadyClaimed) {
		t.Errorf("BatchClaimReward with duplicate id error = %v, want ErrVoteAlreadyClaimed", err)
	}
}
