// Package engine implements the round-based timelock commit-reveal state
// machine.
//
// A round opens with a deadline slot, accepts sealed commitments with
// escrowed deposits while the deadline is in the future, closes at the
// deadline, and resolves once the time oracle attests secret material for the
// deadline slot. Resolution decrypts every commitment independently, feeds
// the revealed values to a pluggable Evaluator, and hands the outcome to a
// pluggable PayoutPolicy which moves escrowed value. The engine depends only
// on the Evaluator and PayoutPolicy interfaces, never on a concrete
// instantiation.
//
// The engine executes within a serialized-transaction model: each operation
// runs to completion and never blocks. Unavailable secret material surfaces
// as ErrSecretUnavailable, a retryable error with no state effect.
package engine
