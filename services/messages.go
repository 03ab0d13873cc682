package services

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/ideal-lab5/tlock-engine/crypto"
)

// Signed wraps a message with Ed25519 signature for authentication. The
// signer's public key doubles as the participant identity on commit paths.
type Signed[T any] struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Signature crypto.Signature `json:"signature"`
	Object    *T               `json:"object"`
}

// NewSigned creates an authenticated message by signing the serialized object and public key.
func NewSigned[T any](privkey crypto.PrivateKey, obj *T) (*Signed[T], error) {
	pubkey, err := privkey.PublicKey()
	if err != nil {
		return nil, err
	}

	serializedData, err := SerializeMessage(obj)
	if err != nil {
		return nil, err
	}

	signature, err := crypto.Sign(privkey, append(serializedData, pubkey...))
	if err != nil {
		return nil, err
	}

	return &Signed[T]{
		PublicKey: pubkey,
		Signature: signature,
		Object:    obj,
	}, nil
}

// UnsafeObject returns the wrapped object without verifying the signature.
func (s *Signed[T]) UnsafeObject() *T {
	return s.Object
}

// Recover verifies the signature and returns the authenticated object with signer's public key.
func (s *Signed[T]) Recover() (*T, crypto.PublicKey, error) {
	serializedData, err := SerializeMessage(s.Object)
	if err != nil {
		return nil, nil, err
	}

	ok := s.Signature.Verify(s.PublicKey, append(serializedData, s.PublicKey...))
	if !ok {
		return nil, nil, errors.New("signature not valid")
	}

	return s.Object, s.PublicKey, nil
}

// DecodeMessage deserializes a message from a JSON reader.
func DecodeMessage[T any](reader io.Reader) (*T, error) {
	var msg T
	err := json.NewDecoder(reader).Decode(&msg)
	return &msg, err
}

// SerializeMessage serializes a message to JSON.
func SerializeMessage[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}

// RegisterAssetRequest opens an auction for an asset. The signer becomes the
// seller and receives the minted registry token.
type RegisterAssetRequest struct {
	Metadata     []byte `json:"metadata"`
	ReservePrice uint64 `json:"reserve_price"`
	MinDeposit   uint64 `json:"min_deposit"`
	Deadline     uint64 `json:"deadline"`
}

// RegisterAssetResponse returns the derived asset id.
type RegisterAssetResponse struct {
	AssetID string `json:"asset_id"`
}

// CommitRequest submits a sealed commitment. The signer is the participant.
type CommitRequest struct {
	Ciphertext []byte `json:"ciphertext"`
	Deposit    uint64 `json:"deposit"`
}

// AbortRequest cancels an open auction. Only valid when signed by the seller.
type AbortRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RouletteRoundResponse reports the parity event's position and prize pool
// alongside the materialized round view, if any.
type RouletteRoundResponse struct {
	Index    uint64 `json:"index"`
	Deadline uint64 `json:"deadline"`
	Pool     uint64 `json:"pool"`
	Open     bool   `json:"open"`

	Status      string `json:"status,omitempty"`
	Commitments int    `json:"commitments,omitempty"`
}
