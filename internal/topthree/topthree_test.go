package topthree

import (
	"testing"

	"github.com/rawblock/racer-engine/internal/symbol"
)

// syms returns n distinct symbols whose first byte is their Symbol Index
// position, so a count table keyed by position can be looked up via pos.
func syms(n int) []symbol.Symbol {
	out := make([]symbol.Symbol, n)
	for i := range out {
		out[i][0] = byte(i)
	}
	return out
}

func pos(s symbol.Symbol) int { return int(s[0]) }

func TestRecomputeEmptySymbolsYieldsZeroSlots(t *testing.T) {
	tr := New()
	slots := tr.Recompute(1, nil, func(symbol.Symbol) int { return 0 })
	if slots != (Slots{}) {
		t.Fatalf("Recompute(empty) = %+v, want zero value", slots)
	}
}

func TestRecomputeSingleSymbolAliasesAllThreeSlots(t *testing.T) {
	tr := New()
	counts := []int{5}
	slots := tr.Recompute(1, syms(1), func(s symbol.Symbol) int { return counts[pos(s)] })
	if slots.P0 != 0 || slots.P1 != 0 || slots.P2 != 0 {
		t.Fatalf("single-symbol slots = %+v, want all positions aliased to 0", slots)
	}
}

func TestRecomputeTwoSymbolsAliasesP2ToP1(t *testing.T) {
	tr := New()
	counts := map[int]int{0: 3, 1: 7}
	slots := tr.Recompute(1, syms(2), func(s symbol.Symbol) int { return counts[pos(s)] })
	if slots.P0 != 1 || slots.P1 != 0 || slots.P2 != 0 {
		t.Fatalf("two-symbol slots = %+v, want P0=1 P1=0 P2=0", slots)
	}
}

func TestRecomputeStrictGreaterKeepsEarlierIncumbentOnTie(t *testing.T) {
	tr := New()
	// Positions 0,1,2 tie at count 4; position 3 is strictly ahead.
	counts := map[int]int{0: 4, 1: 4, 2: 4, 3: 9}
	slots := tr.Recompute(1, syms(4), func(s symbol.Symbol) int { return counts[pos(s)] })
	if slots.P0 != 3 {
		t.Fatalf("P0 = %d, want 3 (strict leader)", slots.P0)
	}
	if slots.P1 != 0 || slots.P2 != 1 {
		t.Fatalf("tie-break slots = %+v, want P1=0 P2=1 (earliest insertion order)", slots)
	}
}

func TestRecomputeFourDistinctSymbolsKeepsTopThree(t *testing.T) {
	tr := New()
	counts := map[int]int{0: 1, 1: 4, 2: 9, 3: 2}
	slots := tr.Recompute(1, syms(4), func(s symbol.Symbol) int { return counts[pos(s)] })
	if slots.P0 != 2 || slots.P1 != 1 || slots.P2 != 3 {
		t.Fatalf("slots = %+v, want P0=2 P1=1 P2=3", slots)
	}
}

func TestPlaceOfChecksP0BeforeAliasedSlots(t *testing.T) {
	slots := Slots{P0: 0, P1: 0, P2: 0}
	place, ok := slots.PlaceOf(0)
	if !ok || place != 0 {
		t.Fatalf("PlaceOf(0) = (%d, %v), want (0, true) — aliasing must not shadow the real rank", place, ok)
	}
}

func TestPlaceOfUnknownPositionFails(t *testing.T) {
	slots := Slots{P0: 0, P1: 1, P2: 2}
	if _, ok := slots.PlaceOf(5); ok {
		t.Fatal("PlaceOf(5) returned ok=true for a position not in any slot")
	}
}
