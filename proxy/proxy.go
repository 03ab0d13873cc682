// Package proxy fronts the auction instances behind a single time-gate
// authority. Every asset registered through the proxy gets a registry token
// and a dedicated auction round; the proxy decides which operations are in
// window before forwarding them, so instances never see out-of-window calls
// that slipped past a stale clock.
package proxy

import (
	"encoding/hex"
	"errors"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/ideal-lab5/tlock-engine/auction"
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
	"github.com/ideal-lab5/tlock-engine/registry"
)

// AssetID names a registered asset. Derived from the asset metadata, not
// chosen by the seller.
type AssetID string

var (
	ErrAlreadyRegistered = errors.New("proxy: asset already registered")
	ErrAssetNotFound     = errors.New("proxy: asset not found")
	ErrOutOfWindow       = errors.New("proxy: operation out of window")
)

// DeriveAssetID derives the canonical id for an asset from its metadata
// bytes: the first 8 bytes of Shake128(metadata), hex encoded.
func DeriveAssetID(metadata []byte) AssetID {
	h := sha3.NewShake128()
	h.Write(metadata)
	var digest [8]byte
	h.Read(digest[:])
	return AssetID(hex.EncodeToString(digest[:]))
}

// binding tracks one registered asset. Bindings are never deleted, only
// marked settled; a settled binding rejects all further forwards.
type binding struct {
	auction  *auction.Auction
	token    registry.TokenID
	seller   engine.ParticipantID
	deadline oracle.SlotID
	settled  bool
}

// Proxy owns the asset-id to binding map and the time gate in front of it.
type Proxy struct {
	mu       sync.Mutex
	oracle   oracle.TimeOracle
	ledger   engine.Ledger
	store    engine.RoundStore
	registry registry.AssetRegistry
	bindings map[AssetID]*binding
}

func New(timeOracle oracle.TimeOracle, ledger engine.Ledger, store engine.RoundStore, reg registry.AssetRegistry) *Proxy {
	return &Proxy{
		oracle:   timeOracle,
		ledger:   ledger,
		store:    store,
		registry: reg,
		bindings: make(map[AssetID]*binding),
	}
}

// Register derives the asset id from the metadata, mints a registry token to
// the seller and opens an auction for it.
func (p *Proxy) Register(seller engine.ParticipantID, metadata []byte, reserve, minDeposit engine.Amount, deadline oracle.SlotID) (AssetID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := DeriveAssetID(metadata)
	if _, ok := p.bindings[id]; ok {
		return "", ErrAlreadyRegistered
	}

	token, err := p.registry.Mint(registry.Owner(seller))
	if err != nil {
		return "", err
	}
	a, err := auction.Open(auction.Config{
		Token:        token,
		Seller:       seller,
		ReservePrice: reserve,
		MinDeposit:   minDeposit,
	}, p.oracle, p.ledger, p.store, p.registry, deadline)
	if err != nil {
		return "", err
	}

	p.bindings[id] = &binding{
		auction:  a,
		token:    token,
		seller:   seller,
		deadline: deadline,
	}
	return id, nil
}

// Commit forwards a sealed bid. In window only while the round is open and
// the deadline slot has not been reached.
func (p *Proxy) Commit(asset AssetID, participant engine.ParticipantID, ciphertext []byte, deposit engine.Amount) error {
	b, err := p.binding(asset)
	if err != nil {
		return err
	}
	if p.oracle.CurrentSlot() >= b.deadline {
		return ErrOutOfWindow
	}
	return b.auction.Bid(participant, ciphertext, deposit)
}

// Close forwards the close. In window from the deadline slot onward.
func (p *Proxy) Close(asset AssetID) error {
	b, err := p.binding(asset)
	if err != nil {
		return err
	}
	if p.oracle.CurrentSlot() < b.deadline {
		return ErrOutOfWindow
	}
	return b.auction.Close()
}

// Resolve forwards the resolution and marks the binding settled on success.
// In window from the deadline slot onward; retryable while the slot secret
// is unavailable. Settled bindings still forward, so a repeated resolve
// returns the cached outcome instead of failing.
func (p *Proxy) Resolve(asset AssetID) (engine.Outcome, error) {
	p.mu.Lock()
	b, ok := p.bindings[asset]
	p.mu.Unlock()
	if !ok {
		return engine.Outcome{}, ErrAssetNotFound
	}
	if p.oracle.CurrentSlot() < b.deadline {
		return engine.Outcome{}, ErrOutOfWindow
	}
	outcome, err := b.auction.Resolve()
	if err != nil {
		return engine.Outcome{}, err
	}
	p.settle(asset)
	return outcome, nil
}

// Abort forwards a seller-initiated cancellation and marks the binding
// settled. In window only before the deadline.
func (p *Proxy) Abort(asset AssetID, caller engine.ParticipantID) error {
	b, err := p.binding(asset)
	if err != nil {
		return err
	}
	if p.oracle.CurrentSlot() >= b.deadline {
		return ErrOutOfWindow
	}
	if err := b.auction.Abort(caller); err != nil {
		return err
	}
	p.settle(asset)
	return nil
}

// QueryRound reports the asset's round state. Never gated: works before,
// during and after the window, settled bindings included.
func (p *Proxy) QueryRound(asset AssetID) (engine.RoundView, error) {
	p.mu.Lock()
	b, ok := p.bindings[asset]
	p.mu.Unlock()
	if !ok {
		return engine.RoundView{}, ErrAssetNotFound
	}
	return b.auction.View()
}

// Token returns the registry token minted for an asset.
func (p *Proxy) Token(asset AssetID) (registry.TokenID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bindings[asset]
	if !ok {
		return 0, ErrAssetNotFound
	}
	return b.token, nil
}

func (p *Proxy) binding(asset AssetID) (*binding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.bindings[asset]
	if !ok {
		return nil, ErrAssetNotFound
	}
	if b.settled {
		return nil, ErrOutOfWindow
	}
	return b, nil
}

func (p *Proxy) settle(asset AssetID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bindings[asset].settled = true
}
