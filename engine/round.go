package engine

import (
	"fmt"

	"github.com/ideal-lab5/tlock-engine/oracle"
)

// RoundID identifies a round within one engine instance.
type RoundID uint64

// Amount is a quantity of the host currency.
type Amount uint64

// ParticipantID is the canonical (hex public key) participant identifier.
type ParticipantID string

// Status is the lifecycle phase of a round. Transitions only move forward.
type Status uint8

const (
	// StatusOpen accepts commitments until the deadline.
	StatusOpen Status = iota
	// StatusClosed awaits secret material for the deadline slot.
	StatusClosed
	// StatusResolved holds a cached outcome; terminal.
	StatusResolved
	// StatusAborted was cancelled by its opener before closing; terminal.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	case StatusResolved:
		return "resolved"
	case StatusAborted:
		return "aborted"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Commitment is a sealed input held by a round together with its escrowed
// deposit. Seq is the engine-assigned submission counter; it is the sole
// tie-break source and is reproducible from persisted state alone.
type Commitment struct {
	Participant ParticipantID
	Ciphertext  []byte
	Deposit     Amount
	SubmittedAt oracle.SlotID
	Seq         uint64
	Escrow      EscrowHandle
}

// Round is the full persisted state of one commit-reveal round.
type Round struct {
	ID          RoundID
	Deadline    oracle.SlotID
	Status      Status
	Opener      ParticipantID
	NextSeq     uint64
	Commitments map[ParticipantID]*Commitment
	Outcome     *Outcome // cached once resolved
}

// transition moves the round to a later status. Backward or skipping
// transitions indicate corrupted state and are rejected.
func (r *Round) transition(to Status) error {
	ok := false
	switch r.Status {
	case StatusOpen:
		ok = to == StatusClosed || to == StatusAborted
	case StatusClosed:
		ok = to == StatusResolved
	}
	if !ok {
		return fmt.Errorf("illegal round transition %s -> %s", r.Status, to)
	}
	r.Status = to
	return nil
}

// ordered returns the round's commitments sorted by submission sequence.
func (r *Round) ordered() []*Commitment {
	out := make([]*Commitment, 0, len(r.Commitments))
	for _, c := range r.Commitments {
		out = append(out, c)
	}
	sortCommitments(out)
	return out
}

// RoundView is the read-only projection served to callers.
type RoundView struct {
	ID          RoundID       `json:"round_id"`
	Status      string        `json:"status"`
	Deadline    oracle.SlotID `json:"deadline"`
	Commitments int           `json:"commitments"`
}
