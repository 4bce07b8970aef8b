// Package db is the audit-log persistence layer: every event the Market
// Controller emits is also written here so a crashed process can replay
// its event history, and so operators have a queryable record outside the
// in-memory engine state. Grounded on internal/db/postgres.go's
// pgxpool-backed store and upsert idiom, generalized from forensics
// tables to the three event kinds spec.md §6 defines.
package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed audit log.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens the connection pool and verifies it with a ping.
func Connect(connStr string) (*Store, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("racer: unable to connect to database: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("racer: ping failed: %w", err)
	}
	log.Println("racer: connected to Postgres audit store")
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes schema.sql.
func (s *Store) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("racer: read schema file: %w", err)
	}
	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("racer: execute schema: %w", err)
	}
	log.Println("racer: audit schema initialized")
	return nil
}

// auditHash digests the event's identifying fields with a Bitcoin-style
// double SHA-256 so an external verifier can confirm the log wasn't
// tampered with, independent of the in-memory engine state.
func auditHash(parts ...string) string {
	var buf []byte
	for _, p := range parts {
		buf = append(buf, []byte(p)...)
		buf = append(buf, 0)
	}
	return chainhash.DoubleHashH(buf).String()
}

// RecordCycleCreated upserts the audit row for a CycleCreated event. A
// cycle is created exactly once, so a conflict on cycle_id is a no-op.
func (s *Store) RecordCycleCreated(ctx context.Context, cycleID uint64, creator string, start, length, price uint64) error {
	hash := auditHash(creator, fmt.Sprint(cycleID), fmt.Sprint(start), fmt.Sprint(length), fmt.Sprint(price))
	sql := `
		INSERT INTO cycle_created_events (event_id, cycle_id, creator, start_block, length, vote_price, audit_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cycle_id) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, sql, uuid.New(), cycleID, creator, start, length, price, hash)
	return err
}

// RecordVotePlaced upserts the audit row for a VotePlaced event. Persists
// placedAtBlock alongside it — the reward engine's timeliness computation
// needs that block height, not just the audit timestamp — so a replay can
// reconstruct votestore.Vote exactly.
func (s *Store) RecordVotePlaced(ctx context.Context, cycleID, voteID uint64, placer, symbol string, placedAtBlock uint64) error {
	hash := auditHash(placer, fmt.Sprint(cycleID), fmt.Sprint(voteID), symbol)
	sql := `
		INSERT INTO vote_placed_events (event_id, cycle_id, vote_id, placer, symbol, placed_at_block, audit_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cycle_id, vote_id) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, sql, uuid.New(), cycleID, voteID, placer, symbol, placedAtBlock, hash)
	return err
}

// RecordVoteClaimed upserts the audit row for a VoteClaimed event. A vote
// can only be claimed once (the Controller's claimed flag enforces that),
// so a conflict on (cycle_id, vote_id) is a no-op.
func (s *Store) RecordVoteClaimed(ctx context.Context, cycleID, voteID uint64, claimer, symbol string, amount uint64) error {
	hash := auditHash(claimer, fmt.Sprint(cycleID), fmt.Sprint(voteID), symbol, fmt.Sprint(amount))
	sql := `
		INSERT INTO vote_claimed_events (event_id, cycle_id, vote_id, claimer, symbol, amount, audit_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (cycle_id, vote_id) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, sql, uuid.New(), cycleID, voteID, claimer, symbol, amount, hash)
	return err
}

// CycleRow, VoteRow and ClaimRow mirror market.CycleRecord/VoteRecord/
// ClaimRecord field-for-field. They exist as a separate set of types, and
// conversion to the market package's types happens in the caller
// (cmd/engine), so this lower-level, optional (a nil *Store disables
// persistence entirely) package never needs to import the engine package
// it is merely a dependency of.
type CycleRow struct {
	ID         uint64
	StartBlock uint64
	Length     uint64
	VotePrice  uint64
	Creator    string
}

type VoteRow struct {
	CycleID       uint64
	VoteID        uint64
	Symbol        string
	Placer        string
	PlacedAtBlock uint64
}

type ClaimRow struct {
	CycleID uint64
	VoteID  uint64
	Amount  uint64
}

// LoadCycles returns every persisted CycleCreated event, ordered by
// cycle_id so a replay can rebuild the id allocator's watermark correctly.
func (s *Store) LoadCycles(ctx context.Context) ([]CycleRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cycle_id, start_block, length, vote_price, creator
		FROM cycle_created_events ORDER BY cycle_id ASC;
	`)
	if err != nil {
		return nil, fmt.Errorf("racer: load cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleRow
	for rows.Next() {
		var r CycleRow
		if err := rows.Scan(&r.ID, &r.StartBlock, &r.Length, &r.VotePrice, &r.Creator); err != nil {
			return nil, fmt.Errorf("racer: scan cycle row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadVotes returns every persisted VotePlaced event, ordered by
// (cycle_id, vote_id) so a replay allocates the same dense vote_ids the
// live engine did.
func (s *Store) LoadVotes(ctx context.Context) ([]VoteRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cycle_id, vote_id, symbol, placer, placed_at_block
		FROM vote_placed_events ORDER BY cycle_id ASC, vote_id ASC;
	`)
	if err != nil {
		return nil, fmt.Errorf("racer: load votes: %w", err)
	}
	defer rows.Close()

	var out []VoteRow
	for rows.Next() {
		var r VoteRow
		if err := rows.Scan(&r.CycleID, &r.VoteID, &r.Symbol, &r.Placer, &r.PlacedAtBlock); err != nil {
			return nil, fmt.Errorf("racer: scan vote row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LoadClaims returns every persisted VoteClaimed event.
func (s *Store) LoadClaims(ctx context.Context) ([]ClaimRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cycle_id, vote_id, amount FROM vote_claimed_events;
	`)
	if err != nil {
		return nil, fmt.Errorf("racer: load claims: %w", err)
	}
	defer rows.Close()

	var out []ClaimRow
	for rows.Next() {
		var r ClaimRow
		if err := rows.Scan(&r.CycleID, &r.VoteID, &r.Amount); err != nil {
			return nil, fmt.Errorf("racer: scan claim row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Replay loads the full persisted event log in replay order: cycles (by
// cycle_id), then votes (by cycle_id, vote_id), then claims. The caller —
// cmd/engine, which owns the market.Controller — converts these rows to
// market.CycleRecord/VoteRecord/ClaimRecord and passes them to
// Controller.Restore, rebuilding the in-memory projection a crashed
// process lost.
func (s *Store) Replay(ctx context.Context) ([]CycleRow, []VoteRow, []ClaimRow, error) {
	cycles, err := s.LoadCycles(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	votes, err := s.LoadVotes(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	claims, err := s.LoadClaims(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	return cycles, votes, claims, nil
}
