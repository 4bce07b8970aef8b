package api

import (
	"context"
	"encoding/json"
	"log"

	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/db"
	"github.com/rawblock/racer-engine/internal/symbol"
	"github.com/rawblock/racer-engine/pkg/models"
)

// EventSink implements market.Events: it broadcasts every event over the
// websocket Hub and, if a database is configured, appends it to the audit
// log. Grounded on internal/api/routes.go's BroadcastCoinJoinAlert, which
// marshals a typed payload and pushes it through the same Hub.
type EventSink struct {
	hub   *Hub
	store *db.Store
}

// NewEventSink builds a sink over hub (required) and store (optional; nil
// disables audit persistence).
func NewEventSink(hub *Hub, store *db.Store) *EventSink {
	return &EventSink{hub: hub, store: store}
}

func (s *EventSink) CycleCreated(creator chain.Identity, id, start, length, price uint64) {
	payload, err := json.Marshal(models.CycleCreatedEvent{
		Type:       "cycle_created",
		Creator:    creator.String(),
		CycleID:    id,
		StartBlock: start,
		Length:     length,
		VotePrice:  price,
	})
	if err != nil {
		log.Printf("racer: marshal CycleCreated: %v", err)
		return
	}
	s.hub.Broadcast(payload)

	if s.store != nil {
		if err := s.store.RecordCycleCreated(context.Background(), id, creator.String(), start, length, price); err != nil {
			log.Printf("racer: audit CycleCreated: %v", err)
		}
	}
}

func (s *EventSink) VotePlaced(placer chain.Identity, voteID, cycleID uint64, sym symbol.Symbol, placedAtBlock uint64) {
	payload, err := json.Marshal(models.VotePlacedEvent{
		Type:          "vote_placed",
		Placer:        placer.String(),
		CycleID:       cycleID,
		Symbol:        sym.String(),
		VoteID:        voteID,
		PlacedAtBlock: placedAtBlock,
	})
	if err != nil {
		log.Printf("racer: marshal VotePlaced: %v", err)
		return
	}
	s.hub.Broadcast(payload)

	if s.store != nil {
		if err := s.store.RecordVotePlaced(context.Background(), cycleID, voteID, placer.String(), sym.String(), placedAtBlock); err != nil {
			log.Printf("racer: audit VotePlaced: %v", err)
		}
	}
}

func (s *EventSink) VoteClaimed(claimer chain.Identity, cycleID, voteID uint64, sym symbol.Symbol, amount uint64) {
	payload, err := json.Marshal(models.VoteClaimedEvent{
		Type:    "vote_claimed",
		Claimer: claimer.String(),
		CycleID: cycleID,
		Symbol:  sym.String(),
		VoteID:  voteID,
		Amount:  amount,
	})
	if err != nil {
		log.Printf("racer: marshal VoteClaimed: %v", err)
		return
	}
	s.hub.Broadcast(payload)

	if s.store != nil {
		if err := s.store.RecordVoteClaimed(context.Background(), cycleID, voteID, claimer.String(), sym.String(), amount); err != nil {
			log.Printf("racer: audit VoteClaimed: %v", err)
		}
	}
}
