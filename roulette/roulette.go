// Package roulette instantiates the round engine as a recurring parity
// game. Each round, participants seal a single bit; at the deadline the
// target is the XOR of all revealed bits and the prize pool is split among
// the participants who guessed it.
package roulette

import (
	"sync"

	"github.com/ideal-lab5/tlock-engine/crypto"
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
)

// Config describes a recurring parity event.
type Config struct {
	// Pool is the operator-funded prize amount injected into each round
	// that actually runs. Zero-winner rounds carry their pool into the
	// next one.
	Pool engine.Amount

	// MinDeposit is the anti-spam deposit required with each commitment.
	// Deposits are always refunded in full.
	MinDeposit engine.Amount

	// InitialSlot is the first round's deadline.
	InitialSlot oracle.SlotID

	// Interval is the number of slots between consecutive deadlines.
	Interval oracle.SlotID
}

// Event is a sequence of parity rounds with fixed cadence. Rounds are
// materialized in the engine lazily, on the first commitment; rounds nobody
// played can be skipped wholesale with FastForward.
type Event struct {
	mu     sync.Mutex
	cfg    Config
	eng    *engine.Engine
	oracle oracle.TimeOracle
	ledger engine.Ledger
	opener engine.ParticipantID

	current uint64
	rounds  map[uint64]engine.RoundID

	// pool is the prize carried into the current round. cfg.Pool is added
	// when a round materializes, so skipped rounds leave it untouched.
	pool engine.Amount
}

// NewEvent wires an engine for the parity game. The opener identity is used
// for the engine rounds the event materializes.
func NewEvent(cfg Config, timeOracle oracle.TimeOracle, ledger engine.Ledger, store engine.RoundStore, opener engine.ParticipantID) *Event {
	e := &Event{
		cfg:    cfg,
		oracle: timeOracle,
		ledger: ledger,
		opener: opener,
		rounds: make(map[uint64]engine.RoundID),
	}
	e.eng = engine.New(engine.Config{MinDeposit: cfg.MinDeposit}, timeOracle, ledger, store, e, e)
	return e
}

// DeadlineOf returns the deadline slot of the round at the given index.
func (e *Event) DeadlineOf(index uint64) oracle.SlotID {
	return e.cfg.InitialSlot + oracle.SlotID(index)*e.cfg.Interval
}

// CurrentIndex returns the index of the round the pointer is at.
func (e *Event) CurrentIndex() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Pool returns the prize amount carried into the current round, before the
// per-round injection.
func (e *Event) Pool() engine.Amount {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool
}

// Commit records a sealed parity guess for the current round, materializing
// it on first use.
func (e *Event) Commit(participant engine.ParticipantID, ciphertext []byte, deposit engine.Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	roundID, err := e.ensureRound()
	if err != nil {
		return err
	}
	return e.eng.Commit(roundID, participant, ciphertext, deposit)
}

// ensureRound opens the current round in the engine if it has not been
// materialized yet. Requires e.mu.
func (e *Event) ensureRound() (engine.RoundID, error) {
	if id, ok := e.rounds[e.current]; ok {
		return id, nil
	}
	id, err := e.eng.OpenRound(e.opener, e.DeadlineOf(e.current))
	if err != nil {
		return 0, err
	}
	e.rounds[e.current] = id
	e.pool += e.cfg.Pool
	return id, nil
}

// Close ends the current round's commitment phase. Fails with
// engine.ErrRoundNotFound when the round was never materialized; use
// FastForward to skip rounds nobody played.
func (e *Event) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.rounds[e.current]
	if !ok {
		return engine.ErrRoundNotFound
	}
	return e.eng.Close(id)
}

// Resolve settles the current round and advances the pointer. Retryable on
// engine.ErrSecretUnavailable; the pointer only moves on success.
func (e *Event) Resolve() (engine.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.rounds[e.current]
	if !ok {
		return engine.Outcome{}, engine.ErrRoundNotFound
	}
	if err := e.eng.Close(id); err != nil {
		return engine.Outcome{}, err
	}
	outcome, err := e.eng.Resolve(id)
	if err != nil {
		return engine.Outcome{}, err
	}
	e.current++
	return outcome, nil
}

// FastForward advances the pointer over consecutive rounds that were never
// materialized, whose deadlines have passed and whose slots the oracle has
// fully attested. Their pools carry forward untouched. Returns the number
// of rounds skipped.
func (e *Event) FastForward() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.oracle.CurrentSlot()
	from := e.DeadlineOf(e.current)
	skipped := 0
	for {
		if _, ok := e.rounds[e.current]; ok {
			break
		}
		// The whole slot range covered so far must be gap-free, not just
		// the deadline slots themselves.
		deadline := e.DeadlineOf(e.current)
		if deadline > now || !e.oracle.Attested(from, deadline) {
			break
		}
		e.current++
		skipped++
	}
	return skipped, nil
}

// View reports the current round's state, if it has been materialized.
func (e *Event) View() (engine.RoundView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.rounds[e.current]
	if !ok {
		return engine.RoundView{}, engine.ErrRoundNotFound
	}
	return e.eng.View(id)
}

// Evaluate computes the parity target as the XOR of all revealed bits and
// selects the participants whose bit matches it. Values that do not decode
// to a bit are excluded and do not affect the target.
func (e *Event) Evaluate(roundID engine.RoundID, revealed []engine.RevealedValue) engine.Outcome {
	engine.SortRevealed(revealed)

	out := engine.Outcome{RoundID: roundID}
	type guess struct {
		participant engine.ParticipantID
		bit         uint8
	}
	var guesses []guess
	for _, rv := range revealed {
		bit, err := crypto.DecodeBit(rv.Plaintext)
		if err != nil {
			out.Excluded = append(out.Excluded, rv.Participant)
			continue
		}
		out.Target ^= bit
		guesses = append(guesses, guess{rv.Participant, bit})
	}
	for _, g := range guesses {
		if g.bit == out.Target {
			out.Winners = append(out.Winners, g.participant)
		}
	}
	return out
}

// Settle refunds every deposit and splits the pool among the winners. The
// pool divides by floor division with the remainder going to the winner
// with the earliest commitment; with no winners the whole pool carries into
// the next round. Called by the engine inside Resolve, so the event lock is
// already held.
func (e *Event) Settle(round *engine.Round, revealed []engine.RevealedValue, outcome engine.Outcome) (engine.Outcome, error) {
	for _, c := range round.Commitments {
		if err := e.ledger.Refund(c.Escrow); err != nil {
			return engine.Outcome{}, err
		}
	}

	if len(outcome.Winners) == 0 {
		outcome.Carried = e.pool
		return outcome, nil
	}

	n := engine.Amount(len(outcome.Winners))
	share := e.pool / n
	remainder := e.pool - share*n

	outcome.Payouts = make(map[engine.ParticipantID]engine.Amount, len(outcome.Winners))
	for i, w := range outcome.Winners {
		amount := share
		// Winners are in commitment order, so the remainder lands on the
		// earliest committer.
		if i == 0 {
			amount += remainder
		}
		if amount == 0 {
			continue
		}
		if err := e.ledger.Credit(w, amount); err != nil {
			return engine.Outcome{}, err
		}
		outcome.Payouts[w] = amount
	}
	e.pool = 0
	return outcome, nil
}
