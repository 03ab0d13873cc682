// Package oracle models the external time oracle the engine depends on.
//
// Time progresses in discrete slots. For every slot that has elapsed and been
// attested, the oracle exposes deterministic secret material that unlocks
// decryption of commitments sealed against that slot. The oracle is
// append-only and monotonic: once material for a slot is available it never
// changes and never disappears.
//
// Two implementations are provided here: SlotClock, a wall-clock driven slot
// counter, and Beacon, a deterministic HKDF-chain secret provider used for
// development and tests. Production deployments substitute a randomness
// beacon behind the same TimeOracle interface.
package oracle

// SlotID indexes a discrete unit of time progression.
type SlotID uint64

// SecretMaterial is the per-slot secret published once a slot is attested.
type SecretMaterial []byte

// TimeOracle is the capability the engine consumes.
type TimeOracle interface {
	// CurrentSlot returns the latest attested slot.
	CurrentSlot() SlotID

	// SecretFor returns the secret material for a slot, or false while the
	// slot has not yet elapsed or was never attested.
	SecretFor(slot SlotID) (SecretMaterial, bool)

	// Attested reports whether every slot in [from, to] has attested
	// secret material, i.e. the range contains no gaps.
	Attested(from, to SlotID) bool
}
