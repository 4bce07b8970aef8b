package chain

import (
	"errors"
	"sync"
)

// ErrInsufficientBalance is returned by Debit when the identity's ledger
// balance cannot cover the requested amount.
var ErrInsufficientBalance = errors.New("chain: insufficient balance")

// Ledger is the value-custody half of the environment adapter: Transfer is
// spec.md §6's transfer_value(to, amount). A real deployment backs this
// with an actual on-chain or off-chain payment rail; MemoryLedger is the
// in-process reference implementation for standalone operation and tests.
type Ledger interface {
	Transfer(to Identity, amount uint64) error
}

// MemoryLedger tracks per-identity balances of the single fungible unit of
// value spec.md §1 assumes. Debit models a caller attaching value to a
// payable call; Transfer models the environment paying a reward out.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[Identity]uint64
	// poisoned identities fail every Transfer, a test hook for exercising
	// the TransferFailed path and its checks-effects-interactions rollback.
	poisoned map[Identity]bool
}

// NewMemoryLedger returns an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[Identity]uint64),
		poisoned: make(map[Identity]bool),
	}
}

// Credit funds an identity's balance, e.g. for test setup or an off-ledger
// deposit flow.
func (l *MemoryLedger) Credit(id Identity, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[id] += amount
}

// Balance returns an identity's current balance.
func (l *MemoryLedger) Balance(id Identity) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[id]
}

// Debit subtracts amount from id's balance, modelling a caller attaching
// value to a payable call. Returns ErrInsufficientBalance if the balance
// can't cover it; the caller must not retain any effect of the call.
func (l *MemoryLedger) Debit(id Identity, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[id] < amount {
		return ErrInsufficientBalance
	}
	l.balances[id] -= amount
	return nil
}

// Transfer implements Ledger. It always succeeds unless the recipient was
// marked poisoned via PoisonTransfersTo (test-only failure injection for
// the TransferFailed error path).
func (l *MemoryLedger) Transfer(to Identity, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.poisoned[to] {
		return errors.New("chain: transfer rejected by recipient")
	}
	l.balances[to] += amount
	return nil
}

// PoisonTransfersTo makes every future Transfer to id fail, for exercising
// Controller's abort-on-transfer-failure behavior in tests.
func (l *MemoryLedger) PoisonTransfersTo(id Identity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.poisoned[id] = true
}
