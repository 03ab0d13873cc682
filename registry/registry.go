// Package registry tracks ownership of the assets sold through timelock
// auctions. The engine settlement policies move tokens through it so that
// payment and asset transfer resolve together.
package registry

import (
	"errors"
	"sync"
)

// TokenID identifies a minted asset token. Ids are assigned sequentially by
// the registry and are never reused.
type TokenID uint64

// Owner identifies an account that can hold tokens.
type Owner string

var (
	ErrTokenNotFound = errors.New("registry: token not found")
	ErrNotOwner      = errors.New("registry: transfer from non-owner")
)

// AssetRegistry mints and transfers asset tokens.
type AssetRegistry interface {
	// Mint creates a new token owned by owner and returns its id.
	Mint(owner Owner) (TokenID, error)

	// Transfer moves a token from its current owner to another account.
	// Fails with ErrNotOwner when from does not hold the token.
	Transfer(token TokenID, from, to Owner) error

	// OwnerOf returns the current holder of a token.
	OwnerOf(token TokenID) (Owner, error)
}

// MemRegistry is an in-memory AssetRegistry.
type MemRegistry struct {
	mu     sync.Mutex
	nextID TokenID
	owners map[TokenID]Owner
}

func NewMemRegistry() *MemRegistry {
	return &MemRegistry{
		nextID: 1,
		owners: make(map[TokenID]Owner),
	}
}

func (r *MemRegistry) Mint(owner Owner) (TokenID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.owners[id] = owner
	return id, nil
}

func (r *MemRegistry) Transfer(token TokenID, from, to Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.owners[token]
	if !ok {
		return ErrTokenNotFound
	}
	if current != from {
		return ErrNotOwner
	}
	r.owners[token] = to
	return nil
}

func (r *MemRegistry) OwnerOf(token TokenID) (Owner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[token]
	if !ok {
		return "", ErrTokenNotFound
	}
	return owner, nil
}
