package engine

import (
	"fmt"
	"sync"

	"github.com/ideal-lab5/tlock-engine/crypto"
	"github.com/ideal-lab5/tlock-engine/oracle"
)

// Config carries the per-instance engine parameters. Immutable after the
// first round opens.
type Config struct {
	// MinDeposit is the smallest deposit accepted with a commitment.
	MinDeposit Amount
}

// Engine is one commit-reveal state machine instance. All value movement
// goes through the Ledger; all time decisions through the TimeOracle.
type Engine struct {
	mu        sync.Mutex
	cfg       Config
	oracle    oracle.TimeOracle
	ledger    Ledger
	store     RoundStore
	evaluator Evaluator
	payout    PayoutPolicy
}

// New creates an engine with the given collaborators.
func New(cfg Config, timeOracle oracle.TimeOracle, ledger Ledger, store RoundStore, evaluator Evaluator, payout PayoutPolicy) *Engine {
	return &Engine{
		cfg:       cfg,
		oracle:    timeOracle,
		ledger:    ledger,
		store:     store,
		evaluator: evaluator,
		payout:    payout,
	}
}

// OpenRound opens a round accepting commitments until the deadline slot.
// The opener retains the exclusive right to abort before the round closes.
func (e *Engine) OpenRound(opener ParticipantID, deadline oracle.SlotID) (RoundID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if deadline <= e.oracle.CurrentSlot() {
		return 0, ErrInvalidDeadline
	}

	id, err := e.store.NextID()
	if err != nil {
		return 0, err
	}

	round := &Round{
		ID:          id,
		Deadline:    deadline,
		Status:      StatusOpen,
		Opener:      opener,
		Commitments: make(map[ParticipantID]*Commitment),
	}
	if err := e.store.Save(round); err != nil {
		return 0, err
	}
	return id, nil
}

// Commit stores a sealed input with its escrowed deposit. The escrow and the
// commitment write happen atomically: no commitment without escrow and vice
// versa. A later commit from the same participant replaces the earlier one
// and refunds its escrow in the same operation.
func (e *Engine) Commit(roundID RoundID, participant ParticipantID, ciphertext []byte, deposit Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.store.Load(roundID)
	if err != nil {
		return err
	}

	now := e.oracle.CurrentSlot()
	if round.Status != StatusOpen || now >= round.Deadline {
		return ErrRoundNotOpen
	}
	if deposit < e.cfg.MinDeposit {
		return ErrInsufficientDeposit
	}

	handle, err := e.ledger.Escrow(participant, deposit)
	if err != nil {
		return fmt.Errorf("escrow deposit: %w", err)
	}

	previous := round.Commitments[participant]
	round.Commitments[participant] = &Commitment{
		Participant: participant,
		Ciphertext:  ciphertext,
		Deposit:     deposit,
		SubmittedAt: now,
		Seq:         round.NextSeq,
		Escrow:      handle,
	}
	round.NextSeq++

	if err := e.store.Save(round); err != nil {
		// Roll the escrow back so funds are never held without a commitment.
		_ = e.ledger.Refund(handle)
		if previous != nil {
			round.Commitments[participant] = previous
		} else {
			delete(round.Commitments, participant)
		}
		round.NextSeq--
		return err
	}

	if previous != nil {
		if err := e.ledger.Refund(previous.Escrow); err != nil {
			return fmt.Errorf("refund replaced commitment: %w", err)
		}
	}
	return nil
}

// Close transitions an open round to Closed once the deadline has been
// reached. Callable by anyone; idempotent when already Closed or Resolved.
func (e *Engine) Close(roundID RoundID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.store.Load(roundID)
	if err != nil {
		return err
	}

	switch round.Status {
	case StatusClosed, StatusResolved:
		return nil
	case StatusAborted:
		return ErrRoundNotOpen
	}

	if e.oracle.CurrentSlot() < round.Deadline {
		return ErrDeadlineNotReached
	}
	if err := round.transition(StatusClosed); err != nil {
		return err
	}
	return e.store.Save(round)
}

// Resolve decrypts all commitments, evaluates the win condition and settles
// value. It requires the round to be Closed and the oracle to hold secret
// material for the deadline slot; until then it fails with
// ErrSecretUnavailable and leaves every piece of state untouched.
// A per-participant decryption failure excludes that participant only.
// Resolve is idempotent: an already-Resolved round returns the cached
// outcome without recomputation.
func (e *Engine) Resolve(roundID RoundID) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.store.Load(roundID)
	if err != nil {
		return Outcome{}, err
	}

	switch round.Status {
	case StatusResolved:
		return *round.Outcome, nil
	case StatusOpen, StatusAborted:
		return Outcome{}, ErrRoundNotClosed
	}

	secret, ok := e.oracle.SecretFor(round.Deadline)
	if !ok {
		return Outcome{}, ErrSecretUnavailable
	}

	revealed := make([]RevealedValue, 0, len(round.Commitments))
	var excluded []ParticipantID
	for _, c := range round.ordered() {
		sealed, err := crypto.ParseSealedInput(c.Ciphertext)
		if err != nil {
			excluded = append(excluded, c.Participant)
			continue
		}
		plaintext, err := crypto.Unseal(secret, uint64(round.Deadline), sealed)
		if err != nil {
			excluded = append(excluded, c.Participant)
			continue
		}
		revealed = append(revealed, RevealedValue{
			Participant: c.Participant,
			Plaintext:   plaintext,
			Seq:         c.Seq,
			SubmittedAt: c.SubmittedAt,
			Deposit:     c.Deposit,
			Escrow:      c.Escrow,
		})
	}

	outcome := e.evaluator.Evaluate(roundID, revealed)
	outcome.RoundID = roundID
	outcome.Excluded = append(outcome.Excluded, excluded...)

	outcome, err = e.payout.Settle(round, revealed, outcome)
	if err != nil {
		return Outcome{}, fmt.Errorf("settle round %d: %w", roundID, err)
	}
	outcome.RoundID = roundID
	outcome.Normalize()

	if err := round.transition(StatusResolved); err != nil {
		return Outcome{}, err
	}
	round.Outcome = &outcome
	if err := e.store.Save(round); err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}

// Abort cancels an open round and refunds every escrowed deposit. Only the
// opener may abort, and only before the round closes.
func (e *Engine) Abort(roundID RoundID, caller ParticipantID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.store.Load(roundID)
	if err != nil {
		return err
	}
	if round.Status != StatusOpen {
		return ErrRoundNotOpen
	}
	if round.Opener != caller {
		return ErrNotRoundOpener
	}

	for _, c := range round.ordered() {
		if err := e.ledger.Refund(c.Escrow); err != nil {
			return fmt.Errorf("refund %s: %w", c.Participant, err)
		}
	}
	if err := round.transition(StatusAborted); err != nil {
		return err
	}
	return e.store.Save(round)
}

// View returns the round's read-only projection. No side effects.
func (e *Engine) View(roundID RoundID) (RoundView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.store.Load(roundID)
	if err != nil {
		return RoundView{}, err
	}
	return RoundView{
		ID:          round.ID,
		Status:      round.Status.String(),
		Deadline:    round.Deadline,
		Commitments: len(round.Commitments),
	}, nil
}

// Deadline returns the round's deadline slot.
func (e *Engine) Deadline(roundID RoundID) (oracle.SlotID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round, err := e.store.Load(roundID)
	if err != nil {
		return 0, err
	}
	return round.Deadline, nil
}
