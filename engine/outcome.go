package engine

import (
	"sort"

	"github.com/ideal-lab5/tlock-engine/oracle"
)

// RevealedValue is a successfully decrypted commitment. Plaintext is the raw
// decrypted payload; interpreting it is the evaluator's concern. Produced
// only during resolution, never persisted before decryption succeeds.
type RevealedValue struct {
	Participant ParticipantID
	Plaintext   []byte
	Seq         uint64
	SubmittedAt oracle.SlotID
	Deposit     Amount
	Escrow      EscrowHandle
}

// Outcome is the deterministic result of resolving a round. Fields unused by
// an instantiation stay zero. All slices are sorted so that two resolutions
// of the same round produce identical outcomes.
type Outcome struct {
	RoundID RoundID `json:"round_id"`

	// Winners, ordered by commitment sequence.
	Winners []ParticipantID `json:"winners,omitempty"`

	// Payouts credited per winner (auction: none; roulette: pool shares).
	Payouts map[ParticipantID]Amount `json:"payouts,omitempty"`

	// ClearingPrice paid by the auction winner; zero when no sale happened.
	ClearingPrice Amount `json:"clearing_price,omitempty"`

	// Sold reports whether the auctioned asset changed hands.
	Sold bool `json:"sold,omitempty"`

	// Target is the roulette round's parity bit.
	Target uint8 `json:"target,omitempty"`

	// Carried is the roulette pool amount carried into the next round.
	Carried Amount `json:"carried,omitempty"`

	// Excluded lists participants whose commitments failed to decrypt or
	// decode, plus forfeiting candidates; sorted lexicographically.
	Excluded []ParticipantID `json:"excluded,omitempty"`

	// Forfeited lists participants whose deposits were kept; subset of
	// Excluded; sorted lexicographically.
	Forfeited []ParticipantID `json:"forfeited,omitempty"`
}

// Normalize sorts the outcome's exclusion sets so repeated resolutions
// compare equal. Winner order (commitment sequence) is preserved.
func (o *Outcome) Normalize() {
	sort.Slice(o.Excluded, func(i, j int) bool { return o.Excluded[i] < o.Excluded[j] })
	sort.Slice(o.Forfeited, func(i, j int) bool { return o.Forfeited[i] < o.Forfeited[j] })
}

// Evaluator computes a round's outcome from its revealed values. It must be
// a pure function of its input: deterministic, no randomness, no clock.
type Evaluator interface {
	Evaluate(roundID RoundID, revealed []RevealedValue) Outcome
}

// PayoutPolicy settles an evaluated outcome: it moves escrowed deposits,
// requests asset transfers, pays winners and refunds everyone else. It may
// rewrite the outcome (the auction's re-evaluation loop does) and returns
// the final version that gets cached on the round.
type PayoutPolicy interface {
	Settle(round *Round, revealed []RevealedValue, outcome Outcome) (Outcome, error)
}

func sortCommitments(cs []*Commitment) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Seq < cs[j].Seq })
}

// SortRevealed orders revealed values by commitment sequence, the canonical
// order every evaluator sees.
func SortRevealed(rv []RevealedValue) {
	sort.Slice(rv, func(i, j int) bool { return rv[i].Seq < rv[j].Seq })
}
