// Package market implements the Market Controller, spec.md §4.7: the
// public surface (create_cycle, place_vote, claim_reward,
// batch_claim_reward, is_claim_available, read queries) that enforces
// cycle lifecycle, fee custody, re-entrancy, and the late-vote
// reassignment rule. Grounded on the stateful-manager-with-one-method-
// per-use-case shape of internal/heuristics/investigation.go's
// InvestigationManager and internal/api/investigation_handlers.go's
// validate-then-mutate-then-respond flow, with the per-resource nested
// mutex pattern of internal/api/ratelimit.go's RateLimiter generalized
// into the per-cycle re-entrancy guard spec.md §5 calls for.
package market

import (
	"sync"

	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/cyclestore"
	"github.com/rawblock/racer-engine/internal/errs"
	"github.com/rawblock/racer-engine/internal/fp"
	"github.com/rawblock/racer-engine/internal/reward"
	"github.com/rawblock/racer-engine/internal/symbol"
	"github.com/rawblock/racer-engine/internal/symbolindex"
	"github.com/rawblock/racer-engine/internal/topthree"
	"github.com/rawblock/racer-engine/internal/votestore"
)

// Controller wires the five lower-level packages into the public
// operations spec.md §4.7 defines, and holds the only adapter
// dependencies the core needs: a block-height clock and a value ledger.
type Controller struct {
	clock  chain.Clock
	ledger chain.Ledger
	events Events

	cycles   *cyclestore.Registry
	votes    *votestore.Store
	topThree *topthree.Tracker

	symbolsMu sync.Mutex
	symbols   map[uint64]*symbolindex.Index

	claimMu  sync.Mutex
	claiming map[uint64]bool
}

// New builds a Controller with empty state. events may be nil, in which
// case events are discarded.
func New(clock chain.Clock, ledger chain.Ledger, events Events) *Controller {
	if events == nil {
		events = NoopEvents{}
	}
	return &Controller{
		clock:    clock,
		ledger:   ledger,
		events:   events,
		cycles:   cyclestore.New(),
		votes:    votestore.New(),
		topThree: topthree.New(),
		symbols:  make(map[uint64]*symbolindex.Index),
		claiming: make(map[uint64]bool),
	}
}

func (c *Controller) symbolIndexFor(cycleID uint64) *symbolindex.Index {
	c.symbolsMu.Lock()
	defer c.symbolsMu.Unlock()
	idx := c.symbols[cycleID]
	if idx == nil {
		idx = symbolindex.New()
		c.symbols[cycleID] = idx
	}
	return idx
}

// CreateCycle implements create_cycle(start, length, price) -> id.
func (c *Controller) CreateCycle(creator chain.Identity, start, length, price uint64) (uint64, error) {
	id, err := c.cycles.Create(start, length, price, creator)
	if err != nil {
		return 0, err
	}
	c.symbolIndexFor(id)
	c.events.CycleCreated(creator, id, start, length, price)
	return id, nil
}

// PlaceVote implements place_vote(cycle_id, symbol)[payable] -> vote_id.
func (c *Controller) PlaceVote(caller chain.Identity, cycleID uint64, sym symbol.Symbol, incomingValue uint64) (uint64, error) {
	cyc, err := c.cycles.Snapshot(cycleID)
	if err != nil {
		return 0, err
	}

	now := c.clock.BlockHeight()
	if now < cyc.StartBlock || now > cyc.EndBlock {
		return 0, errs.CycleVotingUnavailable{ID: cycleID}
	}
	if incomingValue != cyc.VotePrice {
		return 0, errs.InvalidVoteFee{Required: cyc.VotePrice}
	}

	voteID, err := c.cycles.RecordVote(cycleID, cyc.VotePrice)
	if err != nil {
		return 0, err
	}
	c.votes.Append(votestore.Vote{
		ID:            voteID,
		Symbol:        sym,
		Placer:        caller,
		CycleID:       cycleID,
		PlacedAtBlock: now,
	})

	idx := c.symbolIndexFor(cycleID)
	idx.Insert(sym)
	snapshot := idx.Snapshot()
	c.topThree.Recompute(cycleID, snapshot, func(s symbol.Symbol) int {
		return c.votes.SymbolVoteCount(cycleID, s)
	})

	c.events.VotePlaced(caller, voteID, cycleID, sym, now)
	return voteID, nil
}

// lateVoteThreshold returns the timeliness bound past which place 1 or 2
// votes are reassigned to the cycle creator, per the late-vote rule.
func lateVoteThreshold(place int) (fp.Fixed, error) {
	switch place {
	case 1:
		return fp.Divu(2, 3)
	case 2:
		return fp.Divu(1, 3)
	default:
		return fp.Fixed{}, nil
	}
}

// placeAndOwner resolves v's rank within the cycle's current top three and
// applies the late-vote rule to determine who may claim it. Returns
// ErrVoteNotInTopThree if v's symbol holds none of the three slots.
func (c *Controller) placeAndOwner(cyc cyclestore.Cycle, v votestore.Vote) (int, chain.Identity, error) {
	slots, ok := c.topThree.Get(cyc.ID)
	if !ok {
		return 0, chain.Identity{}, errs.ErrVoteNotInTopThree
	}
	idx := c.symbolIndexFor(cyc.ID)
	pos, ok := idx.Position(v.Symbol)
	if !ok {
		return 0, chain.Identity{}, errs.ErrVoteNotInTopThree
	}
	place, ok := slots.PlaceOf(pos)
	if !ok {
		return 0, chain.Identity{}, errs.ErrVoteNotInTopThree
	}

	owner := v.Placer
	if place == 1 || place == 2 {
		t, err := reward.Timeliness(v.PlacedAtBlock, cyc.StartBlock, cyc.EndBlock)
		if err != nil {
			return 0, chain.Identity{}, err
		}
		threshold, err := lateVoteThreshold(place)
		if err != nil {
			return 0, chain.Identity{}, err
		}
		if fp.Cmp(t, threshold) >= 0 {
			owner = cyc.Creator
		}
	}
	return place, owner, nil
}

// IsClaimAvailable implements is_claim_available(cycle_id, vote_id) ->
// bool. Go has no ambient caller() context, so the candidate claimant is
// an explicit parameter; every condition besides existence folds into a
// plain false rather than an error, since this is a read-only predicate.
func (c *Controller) IsClaimAvailable(caller chain.Identity, cycleID, voteID uint64) (bool, error) {
	cyc, err := c.cycles.Snapshot(cycleID)
	if err != nil {
		return false, err
	}
	if c.clock.BlockHeight() <= cyc.EndBlock {
		return false, nil
	}
	v, err := c.votes.Get(cycleID, voteID)
	if err != nil {
		return false, err
	}
	if v.Claimed {
		return false, nil
	}
	_, owner, err := c.placeAndOwner(cyc, v)
	if err != nil {
		return false, nil
	}
	return owner == caller, nil
}

func (c *Controller) computeReward(cyc cyclestore.Cycle, v votestore.Vote, place int) (uint64, error) {
	slots, _ := c.topThree.Get(cyc.ID)
	idx := c.symbolIndexFor(cyc.ID)
	sym0, _ := idx.Get(slots.P0)
	sym1, _ := idx.Get(slots.P1)
	sym2, _ := idx.Get(slots.P2)

	votesP0 := reward.SymbolVotes(c.votes.VotesForSymbol(cyc.ID, sym0))
	votesP1 := reward.SymbolVotes(c.votes.VotesForSymbol(cyc.ID, sym1))
	votesP2 := reward.SymbolVotes(c.votes.VotesForSymbol(cyc.ID, sym2))

	n, err := reward.NormalizationFactor(cyc, slots, votesP0, votesP1, votesP2)
	if err != nil {
		return 0, err
	}
	base, err := reward.BaseReward(cyc.Balance, cyc.NextVoteID)
	if err != nil {
		return 0, err
	}
	t, err := reward.Timeliness(v.PlacedAtBlock, cyc.StartBlock, cyc.EndBlock)
	if err != nil {
		return 0, err
	}
	phi, err := reward.CurvePoint(t, place)
	if err != nil {
		return 0, err
	}
	return reward.PerVoteReward(base, phi, n)
}

// claimPlan is a voteID's validated, not-yet-executed claim: every
// existence, ownership, and reward-computability check has passed, but no
// state has been mutated yet.
type claimPlan struct {
	voteID uint64
	amount uint64
}

// planClaim validates voteID against caller without mutating any cycle or
// vote state, so a batch can check every id before committing any of them
// — an invalid id anywhere in the batch must not leave an earlier id's
// transfer already paid out.
func (c *Controller) planClaim(caller chain.Identity, cyc cyclestore.Cycle, voteID uint64) (claimPlan, error) {
	v, err := c.votes.Get(cyc.ID, voteID)
	if err != nil {
		return claimPlan{}, err
	}
	if v.Claimed {
		return claimPlan{}, errs.ErrVoteAlreadyClaimed
	}

	place, owner, err := c.placeAndOwner(cyc, v)
	if err != nil {
		return claimPlan{}, err
	}
	if owner != caller {
		return claimPlan{}, errs.VoteNotPlacedByCaller{VoteID: voteID, Caller: caller}
	}

	amount, err := c.computeReward(cyc, v, place)
	if err != nil {
		return claimPlan{}, err
	}
	return claimPlan{voteID: voteID, amount: amount}, nil
}

// settleClaim executes a plan already produced by planClaim.
// Checks-effects-interactions: deduct balance and mark claimed before the
// external transfer. An in-memory store gets no free transaction rollback,
// so a failed transfer is compensated explicitly below rather than relied
// upon to revert by itself.
func (c *Controller) settleClaim(caller chain.Identity, cycleID uint64, plan claimPlan) (uint64, error) {
	if err := c.cycles.DeductBalance(cycleID, plan.amount); err != nil {
		return 0, err
	}
	if err := c.votes.MarkClaimed(cycleID, plan.voteID); err != nil {
		c.cycles.CreditBalance(cycleID, plan.amount)
		return 0, err
	}

	if err := c.ledger.Transfer(caller, plan.amount); err != nil {
		c.votes.Unclaim(cycleID, plan.voteID)
		c.cycles.CreditBalance(cycleID, plan.amount)
		return 0, errs.TransferFailed{Err: err}
	}

	v, _ := c.votes.Get(cycleID, plan.voteID)
	c.events.VoteClaimed(caller, cycleID, plan.voteID, v.Symbol, plan.amount)
	return plan.amount, nil
}

// claimOne is the body shared by ClaimReward and BatchClaimReward. The
// caller acquires the per-cycle re-entrancy guard once and calls this
// directly so a batch of claims never tries to re-enter its own guard.
func (c *Controller) claimOne(caller chain.Identity, cycleID, voteID uint64) (uint64, error) {
	cyc, err := c.cycles.Snapshot(cycleID)
	if err != nil {
		return 0, err
	}
	if c.clock.BlockHeight() <= cyc.EndBlock {
		return 0, errs.CycleDidntEnd{ID: cycleID}
	}

	plan, err := c.planClaim(caller, cyc, voteID)
	if err != nil {
		return 0, err
	}
	return c.settleClaim(caller, cycleID, plan)
}

func (c *Controller) enterClaim(cycleID uint64) bool {
	c.claimMu.Lock()
	defer c.claimMu.Unlock()
	if c.claiming[cycleID] {
		return false
	}
	c.claiming[cycleID] = true
	return true
}

func (c *Controller) exitClaim(cycleID uint64) {
	c.claimMu.Lock()
	defer c.claimMu.Unlock()
	delete(c.claiming, cycleID)
}

// ClaimReward implements claim_reward(cycle_id, vote_id), guarded against
// re-entrant calls into the same cycle.
func (c *Controller) ClaimReward(caller chain.Identity, cycleID, voteID uint64) (uint64, error) {
	if !c.enterClaim(cycleID) {
		return 0, errs.ErrReentrancy
	}
	defer c.exitClaim(cycleID)
	return c.claimOne(caller, cycleID, voteID)
}

// BatchClaimReward implements batch_claim_reward(cycle_id, vote_ids[]):
// one re-entrancy guard acquisition for the whole batch. Every id is
// validated before any of them is settled, so a bad id anywhere in the
// batch — unknown, already claimed, not owned by caller, a duplicate
// within the same batch — aborts with nothing paid out, rather than
// leaving earlier ids in the batch already transferred. An external
// transfer failure during settlement is a different kind of fault: it
// can't be ruled out by validation, so it aborts the remainder of the
// batch but keeps whatever settled before it (that claim's own balance is
// individually compensated in settleClaim, but the batch as a whole does
// not roll back).
func (c *Controller) BatchClaimReward(caller chain.Identity, cycleID uint64, voteIDs []uint64) ([]uint64, error) {
	if !c.enterClaim(cycleID) {
		return nil, errs.ErrReentrancy
	}
	defer c.exitClaim(cycleID)

	cyc, err := c.cycles.Snapshot(cycleID)
	if err != nil {
		return nil, err
	}
	if c.clock.BlockHeight() <= cyc.EndBlock {
		return nil, errs.CycleDidntEnd{ID: cycleID}
	}

	plans := make([]claimPlan, 0, len(voteIDs))
	seen := make(map[uint64]bool, len(voteIDs))
	for _, id := range voteIDs {
		if seen[id] {
			return nil, errs.ErrVoteAlreadyClaimed
		}
		seen[id] = true

		plan, err := c.planClaim(caller, cyc, id)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	amounts := make([]uint64, 0, len(plans))
	for _, plan := range plans {
		amount, err := c.settleClaim(caller, cycleID, plan)
		if err != nil {
			return amounts, err
		}
		amounts = append(amounts, amount)
	}
	return amounts, nil
}

// GetCycle implements get_cycle(cycle_id).
func (c *Controller) GetCycle(cycleID uint64) (cyclestore.Cycle, error) {
	return c.cycles.Snapshot(cycleID)
}

// SymbolVoteCount implements symbol_vote_count(cycle_id, symbol).
func (c *Controller) SymbolVoteCount(cycleID uint64, sym symbol.Symbol) (int, error) {
	if !c.cycles.Exists(cycleID) {
		return 0, errs.CycleDoesntExist{ID: cycleID}
	}
	return c.votes.SymbolVoteCount(cycleID, sym), nil
}

// TotalVoteCount implements total_vote_count(cycle_id).
func (c *Controller) TotalVoteCount(cycleID uint64) (int, error) {
	if !c.cycles.Exists(cycleID) {
		return 0, errs.CycleDoesntExist{ID: cycleID}
	}
	return c.votes.TotalVotes(cycleID), nil
}

// CycleBalance implements cycle_balance(cycle_id).
func (c *Controller) CycleBalance(cycleID uint64) (uint64, error) {
	cyc, err := c.cycles.Snapshot(cycleID)
	if err != nil {
		return 0, err
	}
	return cyc.Balance, nil
}

// TopThreeSymbols implements top_three_symbols(cycle_id), resolving the
// tracker's Symbol Index positions back to Symbol values.
func (c *Controller) TopThreeSymbols(cycleID uint64) ([3]symbol.Symbol, error) {
	if !c.cycles.Exists(cycleID) {
		return [3]symbol.Symbol{}, errs.CycleDoesntExist{ID: cycleID}
	}
	slots, ok := c.topThree.Get(cycleID)
	if !ok {
		return [3]symbol.Symbol{}, nil
	}
	idx := c.symbolIndexFor(cycleID)
	s0, _ := idx.Get(slots.P0)
	s1, _ := idx.Get(slots.P1)
	s2, _ := idx.Get(slots.P2)
	return [3]symbol.Symbol{s0, s1, s2}, nil
}
