package oracle

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/ideal-lab5/tlock-engine/crypto"
)

// Beacon is a deterministic slot-secret provider. The material for slot n is
// an HKDF-SHA3 expansion of the beacon seed bound to n, so two beacons with
// the same seed attest identical secrets for every slot.
//
// The beacon is symmetric: SealingKeyFor returns the same material ahead of
// time so clients can seal commitments against a future slot. Anyone holding
// the seed could therefore decrypt early; this matches the trust model of a
// development beacon, not of the production IBE scheme it stands in for.
type Beacon struct {
	seed []byte

	mu          sync.RWMutex
	currentSlot SlotID
	withheld    map[SlotID]struct{}
}

// NewBeacon creates a beacon from a seed. The seed fully determines the
// secret schedule.
func NewBeacon(seed []byte) *Beacon {
	s := make([]byte, len(seed))
	copy(s, seed)
	return &Beacon{
		seed:     s,
		withheld: make(map[SlotID]struct{}),
	}
}

// CurrentSlot returns the latest slot the beacon has attested.
func (b *Beacon) CurrentSlot() SlotID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentSlot
}

// SecretFor returns the secret material for a slot once it has elapsed and
// was attested. It returns false for future slots and for withheld slots.
func (b *Beacon) SecretFor(slot SlotID) (SecretMaterial, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if slot > b.currentSlot {
		return nil, false
	}
	if _, skipped := b.withheld[slot]; skipped {
		return nil, false
	}
	return b.derive(slot), true
}

// Attested reports whether every slot in [from, to] has secret material.
func (b *Beacon) Attested(from, to SlotID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if to > b.currentSlot || from > to {
		return false
	}
	for slot := from; slot <= to; slot++ {
		if _, skipped := b.withheld[slot]; skipped {
			return false
		}
	}
	return true
}

// SealingKeyFor returns the key material used to seal commitments against a
// future slot. For this symmetric beacon it equals the eventual secret.
func (b *Beacon) SealingKeyFor(slot SlotID) SecretMaterial {
	return b.derive(slot)
}

// AdvanceTo attests all slots up to and including the given slot.
func (b *Beacon) AdvanceTo(slot SlotID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if slot > b.currentSlot {
		b.currentSlot = slot
	}
}

// Withhold marks a slot as never attested, modelling a gap in the beacon
// output. Only used in tests.
func (b *Beacon) Withhold(slot SlotID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.withheld[slot] = struct{}{}
}

// Follow advances the beacon as the clock ticks, until ctx is done.
func (b *Beacon) Follow(ctx context.Context, clock *SlotClock) {
	ch := clock.SubscribeToSlots(ctx)
	go func() {
		for slot := range ch {
			b.AdvanceTo(slot)
		}
	}()
}

func (b *Beacon) derive(slot SlotID) SecretMaterial {
	info := make([]byte, 0, 24)
	info = append(info, []byte("tlock-beacon:")...)
	info = binary.BigEndian.AppendUint64(info, uint64(slot))

	material := make([]byte, crypto.SecretMaterialSize)
	kdf := hkdf.New(sha3.New256, b.seed, nil, info)
	if _, err := io.ReadFull(kdf, material); err != nil {
		// hkdf only errors when asked for more output than it can produce
		panic(fmt.Sprintf("beacon derive: %v", err))
	}
	return material
}
