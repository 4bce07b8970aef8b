package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/rawblock/racer-engine/internal/api"
	"github.com/rawblock/racer-engine/internal/chain"
	"github.com/rawblock/racer-engine/internal/chainrpc"
	"github.com/rawblock/racer-engine/internal/db"
	"github.com/rawblock/racer-engine/internal/market"
	"github.com/rawblock/racer-engine/internal/symbol"
)

func main() {
	log.Println("Starting Racer prediction market engine...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	dbUrl := os.Getenv("DATABASE_URL")
	var dbConn *db.Store
	if dbUrl != "" {
		conn, err := db.Connect(dbUrl)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without audit persistence. Error: %v", err)
		} else {
			dbConn = conn
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
		}
	} else {
		log.Println("DATABASE_URL not set, running without audit persistence")
	}

	var clock chain.Clock
	btcHost := os.Getenv("BTC_RPC_HOST")
	if btcHost != "" {
		cfg := chainrpc.Config{
			Host: btcHost,
			User: requireEnv("BTC_RPC_USER"),
			Pass: requireEnv("BTC_RPC_PASS"),
		}
		rpcClient, err := chainrpc.NewClient(cfg)
		if err != nil {
			log.Printf("Warning: Failed to connect to chain RPC, falling back to manual clock: %v", err)
			clock = chain.NewManualClock(0)
		} else {
			defer rpcClient.Shutdown()
			clock = rpcClient
		}
	} else {
		startHeight, _ := strconv.ParseUint(getEnvOrDefault("MANUAL_CLOCK_START", "0"), 10, 64)
		log.Println("BTC_RPC_HOST not set, running with a manual in-process clock")
		clock = chain.NewManualClock(startHeight)
	}

	ledger := chain.NewMemoryLedger()

	wsHub := api.NewHub()
	go wsHub.Run()

	events := api.NewEventSink(wsHub, dbConn)
	controller := market.New(clock, ledger, events)

	if dbConn != nil {
		if err := replayAuditLog(dbConn, controller); err != nil {
			log.Printf("Warning: audit log replay failed, starting from empty state: %v", err)
			controller = market.New(clock, ledger, events)
		}
	}

	r := api.SetupRouter(controller, dbConn, wsHub)

	port := getEnvOrDefault("PORT", "5339")
	log.Printf("Racer engine listening on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// replayAuditLog reads the full persisted event log and rebuilds
// controller's in-memory state from it, so a restarted process picks up
// where a crashed one left off instead of starting every cycle over.
func replayAuditLog(store *db.Store, controller *market.Controller) error {
	cycleRows, voteRows, claimRows, err := store.Replay(context.Background())
	if err != nil {
		return err
	}

	cycles := make([]market.CycleRecord, 0, len(cycleRows))
	for _, r := range cycleRows {
		creator, err := chain.IdentityFromHex(r.Creator)
		if err != nil {
			return err
		}
		cycles = append(cycles, market.CycleRecord{
			ID:         r.ID,
			StartBlock: r.StartBlock,
			EndBlock:   r.StartBlock + r.Length,
			VotePrice:  r.VotePrice,
			Creator:    creator,
		})
	}

	votes := make([]market.VoteRecord, 0, len(voteRows))
	for _, r := range voteRows {
		placer, err := chain.IdentityFromHex(r.Placer)
		if err != nil {
			return err
		}
		sym, err := symbol.FromHex(r.Symbol)
		if err != nil {
			return err
		}
		votes = append(votes, market.VoteRecord{
			CycleID:       r.CycleID,
			VoteID:        r.VoteID,
			Symbol:        sym,
			Placer:        placer,
			PlacedAtBlock: r.PlacedAtBlock,
		})
	}

	claims := make([]market.ClaimRecord, 0, len(claimRows))
	for _, r := range claimRows {
		claims = append(claims, market.ClaimRecord{
			CycleID: r.CycleID,
			VoteID:  r.VoteID,
			Amount:  r.Amount,
		})
	}

	if err := controller.Restore(cycles, votes, claims); err != nil {
		return err
	}
	log.Printf("racer: replayed %d cycles, %d votes, %d claims from audit log", len(cycles), len(votes), len(claims))
	return nil
}

// requireEnv reads a required environment variable and exits if it is not set.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
