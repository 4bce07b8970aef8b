// Package reward implements the post-cycle reward engine from spec.md §4.6:
// timeliness, per-place curve points, base reward, the normalization
// factor and the per-vote reward, entirely in Q64.64 fixed point.
// Grounded on internal/heuristics/llr_engine.go — the teacher's only other
// "composable numeric scoring engine accumulated over domain records" —
// for the shape of a pure scoring package with its own table-driven tests.
package reward

import (
	"github.com/rawblock/racer-engine/internal/cyclestore"
	"github.com/rawblock/racer-engine/internal/fp"
	"github.com/rawblock/racer-engine/internal/topthree"
	"github.com/rawblock/racer-engine/internal/votestore"
)

// Timeliness computes t(v) = divu(placedAt - start, end - start) in [0,1].
func Timeliness(placedAt, start, end uint64) (fp.Fixed, error) {
	return fp.Divu(placedAt-start, end-start)
}

// CurvePoint computes φ(v, place):
//
//	place 0: (t-1)^2
//	place 1: (t/2-1/2)^2
//	place 2: (t/3-1/3)^2
func CurvePoint(t fp.Fixed, place int) (fp.Fixed, error) {
	var target fp.Fixed
	var err error

	switch place {
	case 0:
		target, err = fp.FromUint(1)
	case 1:
		target, err = fp.Divu(1, 2)
	case 2:
		target, err = fp.Divu(1, 3)
	default:
		panic("reward: place must be 0, 1 or 2")
	}
	if err != nil {
		return fp.Fixed{}, err
	}

	scaled := t
	if place > 0 {
		divisor, derr := fp.FromUint(uint64(place + 1))
		if derr != nil {
			return fp.Fixed{}, derr
		}
		scaled, err = fp.Div(t, divisor)
		if err != nil {
			return fp.Fixed{}, err
		}
	}

	diff, err := fp.Sub(scaled, target)
	if err != nil {
		return fp.Fixed{}, err
	}
	return fp.Mul(diff, diff)
}

// BaseReward computes B(c) = divu(balance, next_vote_id). Callers must
// never invoke this when next_vote_id == 0.
func BaseReward(balance, nextVoteID uint64) (fp.Fixed, error) {
	return fp.Divu(balance, nextVoteID)
}

// SymbolVotes groups the votes targeting one symbol for the normalization
// factor; only each vote's PlacedAtBlock is read.
type SymbolVotes []votestore.Vote

// NormalizationFactor computes N(c) per spec.md §4.6 steps 1-5: the
// reciprocal of the next_vote_id-averaged curve-point sum across the
// top-three symbols. Per Q1, the third term is added iff P2 != P0 — not
// P2 != P1 — implemented literally as spec.md states it. This avoids a
// double count only when all three slots alias P0 (one symbol); with two
// distinct symbols P2 aliases P1, so the rank-2 votes are counted under
// both curve 1 and curve 2.
func NormalizationFactor(cycle cyclestore.Cycle, slots topthree.Slots, votesP0, votesP1, votesP2 SymbolVotes) (fp.Fixed, error) {
	sum := fp.Zero()

	accumulate := func(votes SymbolVotes, place int) error {
		for _, v := range votes {
			t, err := Timeliness(v.PlacedAtBlock, cycle.StartBlock, cycle.EndBlock)
			if err != nil {
				return err
			}
			phi, err := CurvePoint(t, place)
			if err != nil {
				return err
			}
			sum, err = fp.Add(sum, phi)
			if err != nil {
				return err
			}
		}
		return nil
	}

	if err := accumulate(votesP0, 0); err != nil {
		return fp.Fixed{}, err
	}
	if slots.P1 != slots.P0 {
		if err := accumulate(votesP1, 1); err != nil {
			return fp.Fixed{}, err
		}
	}
	if slots.P2 != slots.P0 {
		if err := accumulate(votesP2, 2); err != nil {
			return fp.Fixed{}, err
		}
	}

	total, err := fp.FromUint(cycle.NextVoteID)
	if err != nil {
		return fp.Fixed{}, err
	}
	avg, err := fp.Div(sum, total)
	if err != nil {
		return fp.Fixed{}, err
	}
	return fp.Div(fp.One(), avg)
}

// PerVoteReward computes R(v) = B(c) * φ(v,place(v)) * N(c) and converts
// it to the payable integer amount via to_uint, truncating toward zero.
func PerVoteReward(base, phi, normalization fp.Fixed) (uint64, error) {
	r, err := fp.Mul(base, phi)
	if err != nil {
		return 0, err
	}
	r, err = fp.Mul(r, normalization)
	if err != nil {
		return 0, err
	}
	return fp.ToUint(r)
}
