// Package models holds the wire-level JSON views exchanged across the API
// boundary: spec.md §6 requires FP64.64 values to never cross that
// boundary, so every field here is a plain uint64/string, never fp.Fixed.
package models

// CycleView is the JSON projection of a cyclestore.Cycle.
type CycleView struct {
	ID         uint64 `json:"id"`
	StartBlock uint64 `json:"startBlock"`
	EndBlock   uint64 `json:"endBlock"`
	VotePrice  uint64 `json:"votePrice"`
	Creator    string `json:"creator"`
	NextVoteID uint64 `json:"nextVoteId"`
	Balance    uint64 `json:"balance"`
}

// VoteView is the JSON projection of a votestore.Vote.
type VoteView struct {
	ID            uint64 `json:"id"`
	Symbol        string `json:"symbol"`
	Placer        string `json:"placer"`
	Claimed       bool   `json:"claimed"`
	CycleID       uint64 `json:"cycleId"`
	PlacedAtBlock uint64 `json:"placedAtBlock"`
}

// TopThreeView names the three highest-ranked symbols for a cycle.
type TopThreeView struct {
	CycleID uint64   `json:"cycleId"`
	Symbols []string `json:"symbols"`
}

// CreateCycleRequest is the POST body for create_cycle.
type CreateCycleRequest struct {
	StartBlock uint64 `json:"startBlock" binding:"required"`
	Length     uint64 `json:"length" binding:"required"`
	VotePrice  uint64 `json:"votePrice" binding:"required"`
}

// PlaceVoteRequest is the POST body for place_vote.
type PlaceVoteRequest struct {
	Symbol        string `json:"symbol" binding:"required"`
	IncomingValue uint64 `json:"incomingValue"`
}

// BatchClaimRequest is the POST body for batch_claim_reward.
type BatchClaimRequest struct {
	VoteIDs []uint64 `json:"voteIds" binding:"required"`
}

// CycleCreatedEvent is the wire form of spec.md §6's CycleCreated event.
type CycleCreatedEvent struct {
	Type        string `json:"type"`
	Creator     string `json:"creator"`
	CycleID     uint64 `json:"cycleId"`
	StartBlock  uint64 `json:"startBlock"`
	Length      uint64 `json:"blockLength"`
	VotePrice   uint64 `json:"votePrice"`
}

// VotePlacedEvent is the wire form of spec.md §6's VotePlaced event.
type VotePlacedEvent struct {
	Type          string `json:"type"`
	Placer        string `json:"placer"`
	CycleID       uint64 `json:"cycleId"`
	Symbol        string `json:"symbol"`
	VoteID        uint64 `json:"voteId"`
	PlacedAtBlock uint64 `json:"placedAtBlock"`
}

// VoteClaimedEvent is the wire form of spec.md §6's VoteClaimed event.
type VoteClaimedEvent struct {
	Type    string `json:"type"`
	Claimer string `json:"claimer"`
	CycleID uint64 `json:"cycleId"`
	Symbol  string `json:"symbol"`
	VoteID  uint64 `json:"voteId"`
	Amount  uint64 `json:"amount"`
}
