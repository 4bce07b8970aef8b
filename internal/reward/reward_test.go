package reward

import (
	"testing"

	"github.com/rawblock/racer-engine/internal/cyclestore"
	"github.com/rawblock/racer-engine/internal/fp"
	"github.com/rawblock/racer-engine/internal/topthree"
	"github.com/rawblock/racer-engine/internal/votestore"
)

func TestTimeliness(t *testing.T) {
	tests := []struct {
		name      string
		placedAt  uint64
		start     uint64
		end       uint64
		wantZero  bool
		wantOne   bool
	}{
		{"at start", 0, 0, 10, true, false},
		{"at end", 10, 0, 10, false, true},
		{"midway", 5, 0, 10, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Timeliness(tt.placedAt, tt.start, tt.end)
			if err != nil {
				t.Fatalf("Timeliness() error = %v", err)
			}
			if tt.wantZero && fp.Sign(got) != 0 {
				t.Errorf("Timeliness() = %v, want 0", got)
			}
			if tt.wantOne && fp.Cmp(got, fp.One()) != 0 {
				t.Errorf("Timeliness() = %v, want 1", got)
			}
		})
	}
}

func TestTimelinessZeroLengthCycleErrors(t *testing.T) {
	if _, err := Timeliness(5, 5, 5); err == nil {
		t.Fatal("expected DivByZero for a zero-length cycle, got nil")
	}
}

func TestCurvePointAtPlaceZeroFullyTimely(t *testing.T) {
	// t=1, place=0 -> (1-1)^2 = 0
	phi, err := CurvePoint(fp.One(), 0)
	if err != nil {
		t.Fatalf("CurvePoint() error = %v", err)
	}
	if fp.Sign(phi) != 0 {
		t.Errorf("CurvePoint(1, 0) = %v, want 0", phi)
	}
}

func TestCurvePointAtPlaceOneMidway(t *testing.T) {
	// t=1/2, place=1 -> (1/2/2 - 1/2)^2 = (1/4-1/2)^2 = 1/16
	half, err := fp.Divu(1, 2)
	if err != nil {
		t.Fatal(err)
	}
	phi, err := CurvePoint(half, 1)
	if err != nil {
		t.Fatalf("CurvePoint() error = %v", err)
	}
	want, err := fp.Divu(1, 16)
	if err != nil {
		t.Fatal(err)
	}
	if fp.Cmp(phi, want) != 0 {
		t.Errorf("CurvePoint(1/2, 1) = %v, want %v", phi, want)
	}
}

func TestBaseRewardDividesPoolByVotes(t *testing.T) {
	b, err := BaseReward(100, 4)
	if err != nil {
		t.Fatalf("BaseReward() error = %v", err)
	}
	want, err := fp.FromUint(25)
	if err != nil {
		t.Fatal(err)
	}
	if fp.Cmp(b, want) != 0 {
		t.Errorf("BaseReward(100,4) = %v, want %v", b, want)
	}
}

// TestNormalizationFactorAntiDoubleCount exercises Q1: with only two
// distinct symbols, P2 aliases P1; the rule checks P2 != P0, which holds,
// so the third term is added, deliberately double-counting the rank-2
// votes under curve 2 as well as curve 1. The rank-2 vote is placed at
// t=0 so its curve points are nonzero (1/4 and 1/9) and the extra term
// changes the result.
func TestNormalizationFactorAntiDoubleCount(t *testing.T) {
	cycle := cyclestore.Cycle{StartBlock: 0, EndBlock: 10, NextVoteID: 2}
	slots := topthree.Slots{P0: 0, P1: 1, P2: 1} // two symbols, P2 aliases P1

	votesP0 := SymbolVotes{{PlacedAtBlock: 0}}
	votesP1 := SymbolVotes{{PlacedAtBlock: 0}}

	n, err := NormalizationFactor(cycle, slots, votesP0, votesP1, votesP1)
	if err != nil {
		t.Fatalf("NormalizationFactor() error = %v", err)
	}
	if fp.Sign(n) <= 0 {
		t.Errorf("NormalizationFactor() = %v, want a strictly positive reciprocal", n)
	}

	// Skip the p2 term by hand (P2 == P1, but that's not what the rule
	// checks) to show the two results differ: the rule must add it.
	sumWithout := fp.Zero()
	t0, _ := Timeliness(0, 0, 10)
	phi0, _ := CurvePoint(t0, 0)
	sumWithout, _ = fp.Add(sumWithout, phi0)
	t1, _ := Timeliness(0, 0, 10)
	phi1, _ := CurvePoint(t1, 1)
	sumWithout, _ = fp.Add(sumWithout, phi1)
	total, _ := fp.FromUint(2)
	avgWithout, _ := fp.Div(sumWithout, total)
	nWithout, _ := fp.Div(fp.One(), avgWithout)

	if fp.Cmp(n, nWithout) == 0 {
		t.Errorf("NormalizationFactor() should differ from the p2-excluded computation; got equal values %v", n)
	}
}

func TestPerVoteRewardSingleVoterReceivesWholePool(t *testing.T) {
	cycle := cyclestore.Cycle{StartBlock: 0, EndBlock: 10, Balance: 1, NextVoteID: 1}
	slots := topthree.Slots{P0: 0, P1: 0, P2: 0}
	v := votestore.Vote{PlacedAtBlock: 0}

	votes := SymbolVotes{v}
	n, err := NormalizationFactor(cycle, slots, votes, votes, votes)
	if err != nil {
		t.Fatalf("NormalizationFactor() error = %v", err)
	}
	base, err := BaseReward(cycle.Balance, cycle.NextVoteID)
	if err != nil {
		t.Fatalf("BaseReward() error = %v", err)
	}
	tm, err := Timeliness(v.PlacedAtBlock, cycle.StartBlock, cycle.EndBlock)
	if err != nil {
		t.Fatal(err)
	}
	phi, err := CurvePoint(tm, 0)
	if err != nil {
		t.Fatal(err)
	}
	amount, err := PerVoteReward(base, phi, n)
	if err != nil {
		t.Fatalf("PerVoteReward() error = %v", err)
	}
	if amount != 1 {
		t.Errorf("PerVoteReward() = %d, want 1 (whole pool to sole voter)", amount)
	}
}
