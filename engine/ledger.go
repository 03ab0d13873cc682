package engine

import (
	"sync"

	"github.com/google/uuid"
)

// EscrowHandle references a single escrowed deposit. Handles are single-use:
// a deposit is either released or refunded, exactly once.
type EscrowHandle string

// Ledger is the currency capability consumed by the engine and its payout
// policies. Escrowed deposits are logically owned by the engine until they
// are explicitly released or refunded; no other component moves them.
type Ledger interface {
	// Escrow holds amount on behalf of participant and returns a handle.
	Escrow(participant ParticipantID, amount Amount) (EscrowHandle, error)

	// Release pays amount from the escrow to the recipient and refunds any
	// remainder to the depositor, closing the handle. Fails with
	// ErrInsufficientFunds when amount exceeds the escrowed value and with
	// ErrEscrowSpent when the handle was already settled.
	Release(handle EscrowHandle, to ParticipantID, amount Amount) error

	// Refund returns the full escrowed amount to the depositor, closing the
	// handle. Exactly-once: a second refund fails with ErrEscrowSpent.
	Refund(handle EscrowHandle) error

	// Escrowed returns the amount still held under an active handle.
	Escrowed(handle EscrowHandle) (Amount, bool)

	// Credit pays amount to a participant from outside any escrow. Used by
	// payout policies to distribute pool winnings.
	Credit(to ParticipantID, amount Amount) error
}

type escrowEntry struct {
	depositor ParticipantID
	amount    Amount
	settled   bool
}

// MemLedger is an in-memory Ledger. Balances accumulate refunds, releases
// and credits so tests can assert on final positions.
type MemLedger struct {
	mu       sync.Mutex
	escrows  map[EscrowHandle]*escrowEntry
	balances map[ParticipantID]Amount
}

// NewMemLedger creates an empty in-memory ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{
		escrows:  make(map[EscrowHandle]*escrowEntry),
		balances: make(map[ParticipantID]Amount),
	}
}

// Escrow holds amount on behalf of participant.
func (l *MemLedger) Escrow(participant ParticipantID, amount Amount) (EscrowHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	handle := EscrowHandle(uuid.NewString())
	l.escrows[handle] = &escrowEntry{depositor: participant, amount: amount}
	return handle, nil
}

// Release pays amount to the recipient and refunds the remainder.
func (l *MemLedger) Release(handle EscrowHandle, to ParticipantID, amount Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.escrows[handle]
	if !ok {
		return ErrEscrowNotFound
	}
	if entry.settled {
		return ErrEscrowSpent
	}
	if amount > entry.amount {
		return ErrInsufficientFunds
	}

	entry.settled = true
	l.balances[to] += amount
	if change := entry.amount - amount; change > 0 {
		l.balances[entry.depositor] += change
	}
	return nil
}

// Refund returns the full escrowed amount to the depositor.
func (l *MemLedger) Refund(handle EscrowHandle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.escrows[handle]
	if !ok {
		return ErrEscrowNotFound
	}
	if entry.settled {
		return ErrEscrowSpent
	}

	entry.settled = true
	l.balances[entry.depositor] += entry.amount
	return nil
}

// Escrowed returns the amount held under an active handle.
func (l *MemLedger) Escrowed(handle EscrowHandle) (Amount, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.escrows[handle]
	if !ok || entry.settled {
		return 0, false
	}
	return entry.amount, true
}

// Credit pays amount to a participant.
func (l *MemLedger) Credit(to ParticipantID, amount Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[to] += amount
	return nil
}

// Balance returns the participant's accumulated balance.
func (l *MemLedger) Balance(p ParticipantID) Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[p]
}
