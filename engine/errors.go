package engine

import "errors"

var (
	// ErrInvalidDeadline is returned when a round is opened with a deadline
	// that is not strictly in the future.
	ErrInvalidDeadline = errors.New("deadline must be strictly in the future")

	// ErrRoundNotFound is returned for operations on unknown rounds.
	ErrRoundNotFound = errors.New("round does not exist")

	// ErrRoundNotOpen is returned when committing to a round that is closed,
	// resolved, aborted, or past its deadline.
	ErrRoundNotOpen = errors.New("round is not open for commitments")

	// ErrRoundNotClosed is returned when resolving a round that has not been
	// closed yet.
	ErrRoundNotClosed = errors.New("round has not been closed")

	// ErrDeadlineNotReached is returned when closing a round before its
	// deadline slot.
	ErrDeadlineNotReached = errors.New("round deadline has not been reached")

	// ErrInsufficientDeposit is returned when a commitment's deposit is below
	// the configured minimum.
	ErrInsufficientDeposit = errors.New("deposit is below the configured minimum")

	// ErrSecretUnavailable is returned by Resolve while the time oracle has
	// no secret material for the round's deadline slot. It is retryable and
	// leaves round state untouched.
	ErrSecretUnavailable = errors.New("slot secret material not yet available")

	// ErrNotRoundOpener is returned when someone other than the opener tries
	// to abort a round.
	ErrNotRoundOpener = errors.New("only the round opener may abort")

	// ErrInsufficientFunds is returned by the ledger when a release exceeds
	// the escrowed amount.
	ErrInsufficientFunds = errors.New("escrowed amount does not cover the release")

	// ErrEscrowSpent is returned by the ledger when a handle has already been
	// released or refunded.
	ErrEscrowSpent = errors.New("escrow handle already settled")

	// ErrEscrowNotFound is returned by the ledger for unknown handles.
	ErrEscrowNotFound = errors.New("escrow handle does not exist")
)
