// Package errs defines the Market Controller's error kinds from spec.md §7,
// in the retrieved corpus's sentinel-error-var / small-struct idiom (see
// lvlath's gridgraph.Err... vars and flow.EdgeError struct): parameterless
// kinds are package-level errors.New values, parameterized kinds are small
// struct types implementing error so the offending id/caller can be
// inspected with errors.As.
package errs

import (
	"errors"
	"fmt"

	"github.com/rawblock/racer-engine/internal/chain"
)

// Parameterless error kinds.
var (
	ErrInvalidVotePrice  = errors.New("racer: vote price must be strictly positive")
	ErrArithmeticOverflow = errors.New("racer: start + length overflows")
	ErrVoteAlreadyClaimed = errors.New("racer: vote already claimed")
	ErrVoteNotInTopThree  = errors.New("racer: vote's symbol is not in the top three")
	ErrReentrancy         = errors.New("racer: reentrant call into a guarded operation")
)

// CycleDoesntExist is raised by any operation on an unknown cycle id.
type CycleDoesntExist struct{ ID uint64 }

func (e CycleDoesntExist) Error() string {
	return fmt.Sprintf("racer: cycle %d does not exist", e.ID)
}

// CycleVotingUnavailable is raised by place_vote outside [start, end].
type CycleVotingUnavailable struct{ ID uint64 }

func (e CycleVotingUnavailable) Error() string {
	return fmt.Sprintf("racer: cycle %d is not accepting votes", e.ID)
}

// InvalidVoteFee is raised when incoming_value != the cycle's vote price.
type InvalidVoteFee struct{ Required uint64 }

func (e InvalidVoteFee) Error() string {
	return fmt.Sprintf("racer: vote fee must equal %d", e.Required)
}

// CycleDidntEnd is raised by claim_reward before now > end.
type CycleDidntEnd struct{ ID uint64 }

func (e CycleDidntEnd) Error() string {
	return fmt.Sprintf("racer: cycle %d has not ended", e.ID)
}

// VoteDoesntExist is raised by claim_reward/queries on an unknown vote id.
type VoteDoesntExist struct{ ID uint64 }

func (e VoteDoesntExist) Error() string {
	return fmt.Sprintf("racer: vote %d does not exist", e.ID)
}

// VoteNotPlacedByCaller is raised when the late-vote rule or plain
// ownership check rejects the calling identity.
type VoteNotPlacedByCaller struct {
	VoteID uint64
	Caller chain.Identity
}

func (e VoteNotPlacedByCaller) Error() string {
	return fmt.Sprintf("racer: vote %d is not claimable by %s", e.VoteID, e.Caller)
}

// TransferFailed wraps the environment adapter's transfer error; on this
// error the whole claim operation aborts with no partial state.
type TransferFailed struct{ Err error }

func (e TransferFailed) Error() string {
	return fmt.Sprintf("racer: value transfer failed: %v", e.Err)
}

func (e TransferFailed) Unwrap() error { return e.Err }
