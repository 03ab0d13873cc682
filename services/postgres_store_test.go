package services

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
)

func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()

	dsn := os.Getenv("TLOCK_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TLOCK_POSTGRES_DSN not set")
	}

	store, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := newPostgresStore(t)

	id, err := store.NextID()
	require.NoError(t, err)

	round := &engine.Round{
		ID:       id,
		Deadline: oracle.SlotID(42),
		Status:   engine.StatusOpen,
		Opener:   "seller",
		NextSeq:  2,
		Commitments: map[engine.ParticipantID]*engine.Commitment{
			"alice": {
				Participant: "alice",
				Ciphertext:  []byte{0x01, 0x02, 0x03},
				Deposit:     30,
				SubmittedAt: 40,
				Seq:         0,
				Escrow:      "handle-a",
			},
			"bob": {
				Participant: "bob",
				Ciphertext:  []byte{0x04, 0x05},
				Deposit:     10,
				SubmittedAt: 41,
				Seq:         1,
				Escrow:      "handle-b",
			},
		},
	}
	require.NoError(t, store.Save(round))

	loaded, err := store.Load(id)
	require.NoError(t, err)
	require.Equal(t, round.Deadline, loaded.Deadline)
	require.Equal(t, round.Status, loaded.Status)
	require.Equal(t, round.Opener, loaded.Opener)
	require.Equal(t, round.NextSeq, loaded.NextSeq)
	require.Len(t, loaded.Commitments, 2)
	require.Equal(t, round.Commitments["alice"], loaded.Commitments["alice"])
	require.Equal(t, round.Commitments["bob"], loaded.Commitments["bob"])
	require.Nil(t, loaded.Outcome)
}

func TestPostgresStoreUpsertsAndCachesOutcome(t *testing.T) {
	store := newPostgresStore(t)

	id, err := store.NextID()
	require.NoError(t, err)

	round := &engine.Round{
		ID:          id,
		Deadline:    oracle.SlotID(10),
		Status:      engine.StatusOpen,
		Opener:      "seller",
		Commitments: map[engine.ParticipantID]*engine.Commitment{},
	}
	require.NoError(t, store.Save(round))

	round.Status = engine.StatusResolved
	round.Outcome = &engine.Outcome{
		RoundID:       id,
		Winners:       []engine.ParticipantID{"alice"},
		ClearingPrice: 20,
		Sold:          true,
	}
	require.NoError(t, store.Save(round))

	loaded, err := store.Load(id)
	require.NoError(t, err)
	require.Equal(t, engine.StatusResolved, loaded.Status)
	require.Equal(t, round.Outcome, loaded.Outcome)
}

func TestPostgresStoreLoadMissingRound(t *testing.T) {
	store := newPostgresStore(t)

	_, err := store.Load(engine.RoundID(1 << 62))
	require.ErrorIs(t, err, engine.ErrRoundNotFound)
}
