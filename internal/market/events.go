package market

import (
	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/symbol"
)

// Events receives the three event kinds spec.md §6 defines, emitted only
// on the success path of their corresponding operation. Implementations
// (the websocket hub, the audit log) must not block the Controller for
// long; Controller calls these synchronously and does not recover a
// panicking sink.
type Events interface {
	CycleCreated(creator chain.Identity, id, start, length, price uint64)
	VotePlaced(placer chain.Identity, voteID, cycleID uint64, sym symbol.Symbol, placedAtBlock uint64)
	VoteClaimed(claimer chain.Identity, cycleID, voteID uint64, sym symbol.Symbol, amount uint64)
}

// NoopEvents discards every event, for callers that have no sink wired up
// (unit tests, one-off tooling).
type NoopEvents struct{}

func (NoopEvents) CycleCreated(chain.Identity, uint64, uint64, uint64, uint64)        {}
func (NoopEvents) VotePlaced(chain.Identity, uint64, uint64, symbol.Symbol, uint64)   {}
func (NoopEvents) VoteClaimed(chain.Identity, uint64, uint64, symbol.Symbol, uint64)  {}
