package crypto

import (
	"encoding/binary"
	"errors"
)

// Revealed plaintexts are tiny fixed encodings. A bid is an 8-byte big-endian
// amount; a roulette guess is a single byte whose low bit is the guess.

// EncodeBidAmount encodes a bid amount for sealing.
func EncodeBidAmount(amount uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, amount)
	return buf
}

// DecodeBidAmount decodes a revealed bid amount.
// An undecodable plaintext excludes the participant, never the round.
func DecodeBidAmount(plaintext []byte) (uint64, error) {
	if len(plaintext) != 8 {
		return 0, errors.New("bid plaintext must be exactly 8 bytes")
	}
	return binary.BigEndian.Uint64(plaintext), nil
}

// EncodeBit encodes a single-bit guess for sealing.
func EncodeBit(bit uint8) []byte {
	return []byte{bit & 1}
}

// DecodeBit decodes a revealed single-bit guess.
func DecodeBit(plaintext []byte) (uint8, error) {
	if len(plaintext) != 1 {
		return 0, errors.New("bit plaintext must be exactly 1 byte")
	}
	return plaintext[0] & 1, nil
}
