package oracle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ideal-lab5/tlock-engine/crypto"
)

func TestBeaconSecretsAreDeterministic(t *testing.T) {
	a := NewBeacon([]byte("seed"))
	b := NewBeacon([]byte("seed"))
	a.AdvanceTo(10)
	b.AdvanceTo(10)

	sa, ok := a.SecretFor(5)
	require.True(t, ok)
	sb, ok := b.SecretFor(5)
	require.True(t, ok)
	require.Equal(t, sa, sb)
	require.Len(t, []byte(sa), crypto.SecretMaterialSize)

	other := NewBeacon([]byte("other seed"))
	other.AdvanceTo(10)
	so, ok := other.SecretFor(5)
	require.True(t, ok)
	require.NotEqual(t, sa, so)
}

func TestBeaconWithholdsFutureSlots(t *testing.T) {
	b := NewBeacon([]byte("seed"))
	b.AdvanceTo(3)

	_, ok := b.SecretFor(4)
	require.False(t, ok)

	b.AdvanceTo(4)
	_, ok = b.SecretFor(4)
	require.True(t, ok)
}

func TestBeaconSealingKeyMatchesSecret(t *testing.T) {
	b := NewBeacon([]byte("seed"))

	// Sealing key is available before the slot elapses.
	key := b.SealingKeyFor(8)
	require.Len(t, []byte(key), crypto.SecretMaterialSize)

	b.AdvanceTo(8)
	secret, ok := b.SecretFor(8)
	require.True(t, ok)
	require.Equal(t, key, secret)
}

func TestBeaconAttestedRange(t *testing.T) {
	b := NewBeacon([]byte("seed"))
	b.AdvanceTo(10)

	require.True(t, b.Attested(0, 10))
	require.False(t, b.Attested(0, 11))
	require.False(t, b.Attested(5, 4))

	b.Withhold(7)
	require.False(t, b.Attested(0, 10))
	require.True(t, b.Attested(8, 10))
	_, ok := b.SecretFor(7)
	require.False(t, ok)
}

func TestSlotClockAdvanceNotifiesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := NewSlotClock(time.Second)
	ch := clock.SubscribeToSlots(ctx)

	// Initial notification carries the current slot.
	require.Equal(t, SlotID(0), <-ch)

	clock.AdvanceTo(3)
	require.Equal(t, SlotID(3), clock.CurrentSlot())

	seen := []SlotID{}
	for len(seen) < 3 {
		seen = append(seen, <-ch)
	}
	require.Equal(t, []SlotID{1, 2, 3}, seen)
}

func TestSlotTimeConversion(t *testing.T) {
	d := 6 * time.Second
	instant := time.Unix(0, 0).Add(13 * time.Second)
	slot := SlotForTime(instant, d)
	require.Equal(t, SlotID(2), slot)
	require.Equal(t, time.Unix(12, 0).UTC(), TimeForSlot(slot, d).UTC())
}

func TestBeaconFollowsClock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := NewSlotClock(time.Second)
	beacon := NewBeacon([]byte("seed"))
	beacon.Follow(ctx, clock)

	clock.AdvanceTo(5)
	require.Eventually(t, func() bool {
		return beacon.CurrentSlot() == 5
	}, time.Second, 5*time.Millisecond)
}
