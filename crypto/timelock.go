package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"
)

// SecretMaterialSize is the size of the per-slot secret material published by
// the time oracle.
const SecretMaterialSize = 32

// SealedInput is a timelocked ciphertext bound to a single slot.
// Format: nonce (12 bytes) || ciphertext+tag.
type SealedInput struct {
	Nonce      []byte // AES-GCM nonce
	Ciphertext []byte // Encrypted payload with auth tag
}

// Seal encrypts plaintext so it can only be opened with the secret material
// the time oracle publishes for the given slot. The derived key is bound to
// the slot identity, so material for a different slot will not open it.
func Seal(keyMaterial []byte, slot uint64, plaintext []byte) (*SealedInput, error) {
	gcm, err := slotCipher(keyMaterial, slot)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, slotInfo(slot))

	return &SealedInput{
		Nonce:      nonce,
		Ciphertext: ciphertext,
	}, nil
}

// Unseal opens a sealed input using the slot's attested secret material.
// It fails if the material does not match the slot the input was sealed for,
// or if the ciphertext has been tampered with.
func Unseal(keyMaterial []byte, slot uint64, sealed *SealedInput) ([]byte, error) {
	gcm, err := slotCipher(keyMaterial, slot)
	if err != nil {
		return nil, err
	}

	if len(sealed.Nonce) != gcm.NonceSize() {
		return nil, errors.New("invalid nonce size")
	}

	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, slotInfo(slot))
	if err != nil {
		return nil, fmt.Errorf("unseal: %w", err)
	}

	return plaintext, nil
}

// Bytes serializes a sealed input.
func (s *SealedInput) Bytes() []byte {
	result := make([]byte, 0, len(s.Nonce)+len(s.Ciphertext))
	result = append(result, s.Nonce...)
	result = append(result, s.Ciphertext...)
	return result
}

// ParseSealedInput deserializes a sealed input.
func ParseSealedInput(data []byte) (*SealedInput, error) {
	const nonceLen = 12
	minLen := nonceLen + 16 // 16 is minimum ciphertext (just auth tag)

	if len(data) < minLen {
		return nil, errors.New("sealed input too short")
	}

	return &SealedInput{
		Nonce:      data[:nonceLen],
		Ciphertext: data[nonceLen:],
	}, nil
}

func slotCipher(keyMaterial []byte, slot uint64) (cipher.AEAD, error) {
	if len(keyMaterial) == 0 {
		return nil, errors.New("empty key material")
	}

	key := make([]byte, 32)
	kdf := hkdf.New(sha3.New256, keyMaterial, nil, slotInfo(slot))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive slot key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	return cipher.NewGCM(block)
}

func slotInfo(slot uint64) []byte {
	info := make([]byte, 0, 24)
	info = append(info, []byte("tlock-engine-v1:")...)
	info = binary.BigEndian.AppendUint64(info, slot)
	return info
}
