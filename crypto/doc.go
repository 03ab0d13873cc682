// Package crypto provides the key material and the timelock codec used by the
// commit-reveal engine.
//
// Participants are identified by Ed25519 public keys. Every commitment that
// enters a round is signed by its participant and sealed against a future
// slot: the sealing key is derived from the secret material the time oracle
// publishes for that slot, so nobody (the engine included) can open a
// commitment before the slot has been attested.
//
// The codec is AES-256-GCM with an HKDF-SHA3-256 key schedule bound to the
// slot identity. Proving that a ciphertext was well-formed for a given slot is
// out of scope; a commitment that fails to open is excluded from the round
// rather than aborting it.
package crypto
