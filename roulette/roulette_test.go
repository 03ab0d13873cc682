package roulette

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ideal-lab5/tlock-engine/crypto"
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
)

type rouletteRig struct {
	event  *Event
	beacon *oracle.Beacon
	ledger *engine.MemLedger
}

func newRouletteRig(t *testing.T, pool engine.Amount) *rouletteRig {
	t.Helper()
	beacon := oracle.NewBeacon([]byte("roulette test seed"))
	ledger := engine.NewMemLedger()
	cfg := Config{
		Pool:        pool,
		MinDeposit:  1,
		InitialSlot: 10,
		Interval:    5,
	}
	event := NewEvent(cfg, beacon, ledger, engine.NewMemStore(), "house")
	return &rouletteRig{event: event, beacon: beacon, ledger: ledger}
}

func (r *rouletteRig) guess(t *testing.T, participant engine.ParticipantID, bit uint8) {
	t.Helper()
	deadline := r.event.DeadlineOf(r.event.CurrentIndex())
	sealed, err := crypto.Seal(r.beacon.SealingKeyFor(deadline), uint64(deadline), crypto.EncodeBit(bit))
	require.NoError(t, err)
	require.NoError(t, r.event.Commit(participant, sealed.Bytes(), 1))
}

func (r *rouletteRig) resolve(t *testing.T) engine.Outcome {
	t.Helper()
	r.beacon.AdvanceTo(r.event.DeadlineOf(r.event.CurrentIndex()))
	outcome, err := r.event.Resolve()
	require.NoError(t, err)
	return outcome
}

func TestParityTargetAndPayout(t *testing.T) {
	rig := newRouletteRig(t, 100)
	rig.guess(t, "alice", 0)
	rig.guess(t, "bob", 1)
	rig.guess(t, "carol", 0)

	outcome := rig.resolve(t)
	require.Equal(t, uint8(1), outcome.Target)
	require.Equal(t, []engine.ParticipantID{"bob"}, outcome.Winners)
	require.Equal(t, engine.Amount(100), outcome.Payouts["bob"])

	// Deposits come back in full; only the pool is at stake.
	require.Equal(t, engine.Amount(1), rig.ledger.Balance("alice"))
	require.Equal(t, engine.Amount(101), rig.ledger.Balance("bob"))
	require.Equal(t, engine.Amount(1), rig.ledger.Balance("carol"))

	require.Equal(t, uint64(1), rig.event.CurrentIndex())
	require.Equal(t, engine.Amount(0), rig.event.Pool())
}

func TestRemainderGoesToEarliestWinner(t *testing.T) {
	rig := newRouletteRig(t, 100)
	// Three zeros XOR to zero, so all three win.
	rig.guess(t, "carol", 0)
	rig.guess(t, "alice", 0)
	rig.guess(t, "bob", 0)

	outcome := rig.resolve(t)
	require.Equal(t, uint8(0), outcome.Target)
	require.Equal(t, []engine.ParticipantID{"carol", "alice", "bob"}, outcome.Winners)
	require.Equal(t, engine.Amount(34), outcome.Payouts["carol"])
	require.Equal(t, engine.Amount(33), outcome.Payouts["alice"])
	require.Equal(t, engine.Amount(33), outcome.Payouts["bob"])
}

func TestZeroWinnersCarryOver(t *testing.T) {
	rig := newRouletteRig(t, 100)
	// Two ones XOR to zero: nobody guessed the target.
	rig.guess(t, "alice", 1)
	rig.guess(t, "bob", 1)

	outcome := rig.resolve(t)
	require.Empty(t, outcome.Winners)
	require.Equal(t, engine.Amount(100), outcome.Carried)
	require.Equal(t, engine.Amount(100), rig.event.Pool())

	// The next round's pool is the fresh injection plus the carry.
	rig.guess(t, "carol", 1)
	outcome = rig.resolve(t)
	require.Equal(t, []engine.ParticipantID{"carol"}, outcome.Winners)
	require.Equal(t, engine.Amount(200), outcome.Payouts["carol"])
}

func TestFastForwardSkipsEmptyAttestedRounds(t *testing.T) {
	rig := newRouletteRig(t, 100)
	// Round 0 runs and carries its pool.
	rig.guess(t, "alice", 1)
	rig.guess(t, "bob", 1)
	rig.resolve(t)
	require.Equal(t, engine.Amount(100), rig.event.Pool())

	// Rounds 1..3 see no commitments. Once their slots are attested they
	// can be skipped in one go, pool untouched.
	rig.beacon.AdvanceTo(rig.event.DeadlineOf(3))
	skipped, err := rig.event.FastForward()
	require.NoError(t, err)
	require.Equal(t, 3, skipped)
	require.Equal(t, uint64(4), rig.event.CurrentIndex())
	require.Equal(t, engine.Amount(100), rig.event.Pool())

	rig.guess(t, "carol", 0)
	outcome := rig.resolve(t)
	require.Equal(t, []engine.ParticipantID{"carol"}, outcome.Winners)
	require.Equal(t, engine.Amount(200), outcome.Payouts["carol"])
}

func TestFastForwardStopsAtUnattestedSlot(t *testing.T) {
	rig := newRouletteRig(t, 100)
	rig.beacon.Withhold(rig.event.DeadlineOf(1))
	rig.beacon.AdvanceTo(rig.event.DeadlineOf(2))

	skipped, err := rig.event.FastForward()
	require.NoError(t, err)
	require.Equal(t, 1, skipped)
	require.Equal(t, uint64(1), rig.event.CurrentIndex())
}

func TestFastForwardStopsAtGapBetweenDeadlines(t *testing.T) {
	rig := newRouletteRig(t, 100)
	// A withheld slot strictly between two deadlines still blocks the skip;
	// the whole range has to be gap-free, not just the deadline slots.
	rig.beacon.Withhold(rig.event.DeadlineOf(0) + 2)
	rig.beacon.AdvanceTo(rig.event.DeadlineOf(2))

	skipped, err := rig.event.FastForward()
	require.NoError(t, err)
	require.Equal(t, 1, skipped)
	require.Equal(t, uint64(1), rig.event.CurrentIndex())
}

func TestUndecodableGuessExcluded(t *testing.T) {
	rig := newRouletteRig(t, 100)
	rig.guess(t, "alice", 1)

	deadline := rig.event.DeadlineOf(0)
	sealed, err := crypto.Seal(rig.beacon.SealingKeyFor(deadline), uint64(deadline), []byte{0, 1})
	require.NoError(t, err)
	require.NoError(t, rig.event.Commit("mallory", sealed.Bytes(), 1))

	outcome := rig.resolve(t)
	require.Equal(t, uint8(1), outcome.Target)
	require.Equal(t, []engine.ParticipantID{"alice"}, outcome.Winners)
	require.Equal(t, []engine.ParticipantID{"mallory"}, outcome.Excluded)
	require.Equal(t, engine.Amount(1), rig.ledger.Balance("mallory"))
}

func TestResolveRequiresMaterializedRound(t *testing.T) {
	rig := newRouletteRig(t, 100)
	_, err := rig.event.Resolve()
	require.ErrorIs(t, err, engine.ErrRoundNotFound)
	require.ErrorIs(t, rig.event.Close(), engine.ErrRoundNotFound)
}

func TestResolveRetryableOnWithheldSecret(t *testing.T) {
	rig := newRouletteRig(t, 100)
	rig.guess(t, "alice", 1)

	deadline := rig.event.DeadlineOf(0)
	rig.beacon.Withhold(deadline)
	rig.beacon.AdvanceTo(deadline)

	_, err := rig.event.Resolve()
	require.ErrorIs(t, err, engine.ErrSecretUnavailable)
	require.Equal(t, uint64(0), rig.event.CurrentIndex())
	require.Equal(t, engine.Amount(100), rig.event.Pool())
}

func TestDecodeBitUsesLowBit(t *testing.T) {
	bit, err := crypto.DecodeBit([]byte{2})
	require.NoError(t, err)
	require.Equal(t, uint8(0), bit)
	bit, err = crypto.DecodeBit([]byte{1})
	require.NoError(t, err)
	require.Equal(t, uint8(1), bit)
}
