package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand"
	"net/http"
	"os"
	"time"

	"github.com/ideal-lab5/tlock-engine/api/httpserver"
	"github.com/ideal-lab5/tlock-engine/crypto"
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
	"github.com/ideal-lab5/tlock-engine/proxy"
	"github.com/ideal-lab5/tlock-engine/registry"
	"github.com/ideal-lab5/tlock-engine/roulette"
	"github.com/ideal-lab5/tlock-engine/services"
)

// OrchestratorConfig contains deployment configuration.
type OrchestratorConfig struct {
	Addr         string
	Bidders      int
	SlotDuration time.Duration
	Reserve      uint64
}

type participant struct {
	name string
	key  crypto.PrivateKey
	id   engine.ParticipantID
}

// Orchestrator runs the engine service in-process and plays the participants.
type Orchestrator struct {
	cfg *OrchestratorConfig
	log *slog.Logger

	clock  *oracle.SlotClock
	beacon *oracle.Beacon
	ledger *engine.MemLedger
	event  *roulette.Event
	server *httpserver.BaseServer

	baseURL string
	people  []participant
}

// NewOrchestrator creates an orchestrator for the given configuration.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		log:     slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})),
		baseURL: "http://localhost" + cfg.Addr,
	}
}

// Deploy starts the slot clock, beacon and HTTP service.
func (o *Orchestrator) Deploy(ctx context.Context) error {
	o.clock = oracle.NewSlotClock(o.cfg.SlotDuration)
	o.clock.Start(ctx)

	o.beacon = oracle.NewBeacon([]byte("demo"))
	o.beacon.AdvanceTo(o.clock.CurrentSlot())
	o.beacon.Follow(ctx, o.clock)

	o.ledger = engine.NewMemLedger()
	store := engine.NewMemStore()
	assets := registry.NewMemRegistry()
	gate := proxy.New(o.beacon, o.ledger, store, assets)

	o.event = roulette.NewEvent(roulette.Config{
		Pool:        100,
		MinDeposit:  1,
		InitialSlot: o.clock.CurrentSlot() + 3,
		Interval:    3,
	}, o.beacon, o.ledger, store, "house")

	server, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               o.cfg.Addr,
		Log:                      o.log,
		DrainDuration:            time.Second,
		GracefulShutdownDuration: 5 * time.Second,
		ReadTimeout:              30 * time.Second,
		WriteTimeout:             30 * time.Second,
	},
		services.NewAuctionService(o.log, gate),
		services.NewRouletteService(o.log, o.event),
	)
	if err != nil {
		return err
	}
	o.server = server
	server.RunInBackground()

	names := []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace"}
	for i := 0; i < o.cfg.Bidders; i++ {
		_, key, err := crypto.GenerateKeyPair()
		if err != nil {
			return err
		}
		pub, _ := key.PublicKey()
		name := fmt.Sprintf("bidder%d", i)
		if i < len(names) {
			name = names[i]
		}
		o.people = append(o.people, participant{
			name: name,
			key:  key,
			id:   engine.ParticipantID(pub.String()),
		})
	}
	return nil
}

// Shutdown drains and stops the HTTP service.
func (o *Orchestrator) Shutdown() {
	o.server.Shutdown()
}

// RunAuction registers an asset, has every bidder seal a random bid and
// settles the auction once the deadline slot passes.
func (o *Orchestrator) RunAuction(ctx context.Context) error {
	_, sellerKey, err := crypto.GenerateKeyPair()
	if err != nil {
		return err
	}
	sellerPub, _ := sellerKey.PublicKey()
	seller := engine.ParticipantID(sellerPub.String())

	deadline := o.clock.CurrentSlot() + 3
	var reg services.RegisterAssetResponse
	err = o.postSigned("/assets", sellerKey, &services.RegisterAssetRequest{
		Metadata:     []byte(fmt.Sprintf("demo asset %d", time.Now().UnixNano())),
		ReservePrice: o.cfg.Reserve,
		MinDeposit:   1,
		Deadline:     uint64(deadline),
	}, &reg)
	if err != nil {
		return fmt.Errorf("registering asset: %w", err)
	}
	fmt.Printf("asset %s registered, auction closes at slot %d\n", reg.AssetID, deadline)

	for _, p := range o.people {
		amount := o.cfg.Reserve + uint64(mrand.Intn(100))
		sealed, err := crypto.Seal(o.beacon.SealingKeyFor(deadline), uint64(deadline), crypto.EncodeBidAmount(amount))
		if err != nil {
			return err
		}
		var status map[string]string
		err = o.postSigned("/assets/"+reg.AssetID+"/commit", p.key, &services.CommitRequest{
			Ciphertext: sealed.Bytes(),
			Deposit:    amount,
		}, &status)
		if err != nil {
			return fmt.Errorf("%s committing: %w", p.name, err)
		}
		fmt.Printf("  %s sealed a bid of %d\n", p.name, amount)
	}

	if err := o.waitForSlot(ctx, deadline); err != nil {
		return err
	}
	if err := o.post("/assets/"+reg.AssetID+"/close", nil); err != nil {
		return fmt.Errorf("closing: %w", err)
	}

	var outcome engine.Outcome
	if err := o.resolveWithRetry(ctx, "/assets/"+reg.AssetID+"/resolve", &outcome); err != nil {
		return err
	}

	if !outcome.Sold {
		fmt.Println("auction resolved: no sale")
	} else {
		fmt.Printf("auction resolved: %s wins at clearing price %d\n",
			o.nameOf(outcome.Winners[0]), outcome.ClearingPrice)
	}
	fmt.Printf("  seller balance: %d\n", o.ledger.Balance(seller))
	for _, p := range o.people {
		fmt.Printf("  %s balance: %d\n", p.name, o.ledger.Balance(p.id))
	}
	return nil
}

// RunRoulette has every participant guess a random bit in the current round
// and resolves it after the deadline.
func (o *Orchestrator) RunRoulette(ctx context.Context) error {
	deadline := o.event.DeadlineOf(o.event.CurrentIndex())
	fmt.Printf("roulette round %d, deadline slot %d\n", o.event.CurrentIndex(), deadline)

	for _, p := range o.people {
		bit := uint8(mrand.Intn(2))
		sealed, err := crypto.Seal(o.beacon.SealingKeyFor(deadline), uint64(deadline), crypto.EncodeBit(bit))
		if err != nil {
			return err
		}
		var status map[string]string
		err = o.postSigned("/roulette/commit", p.key, &services.CommitRequest{
			Ciphertext: sealed.Bytes(),
			Deposit:    1,
		}, &status)
		if err != nil {
			return fmt.Errorf("%s guessing: %w", p.name, err)
		}
		fmt.Printf("  %s sealed the guess %d\n", p.name, bit)
	}

	if err := o.waitForSlot(ctx, deadline); err != nil {
		return err
	}
	var outcome engine.Outcome
	if err := o.resolveWithRetry(ctx, "/roulette/resolve", &outcome); err != nil {
		return err
	}

	fmt.Printf("round resolved: target %d\n", outcome.Target)
	if len(outcome.Winners) == 0 {
		fmt.Printf("  no winners, pool of %d carries over\n", outcome.Carried)
	}
	for winner, share := range outcome.Payouts {
		fmt.Printf("  %s wins %d\n", o.nameOf(winner), share)
	}
	return nil
}

func (o *Orchestrator) nameOf(id engine.ParticipantID) string {
	for _, p := range o.people {
		if p.id == id {
			return p.name
		}
	}
	return string(id)
}

// waitForSlot waits until the beacon has reached the slot, so the deadline
// gate is open before close is attempted.
func (o *Orchestrator) waitForSlot(ctx context.Context, slot oracle.SlotID) error {
	for o.beacon.CurrentSlot() < slot {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.SlotDuration / 4):
		}
	}
	return nil
}

// resolveWithRetry retries while the per-slot secret has not been attested
// yet, honoring the Retry-After hint.
func (o *Orchestrator) resolveWithRetry(ctx context.Context, path string, out *engine.Outcome) error {
	for {
		resp, err := http.Post(o.baseURL+path, "application/json", nil)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.cfg.SlotDuration / 2):
			}
			continue
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}
}

func (o *Orchestrator) postSigned(path string, key crypto.PrivateKey, obj any, out any) error {
	body, err := signedBody(key, obj)
	if err != nil {
		return err
	}
	resp, err := http.Post(o.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (o *Orchestrator) post(path string, out any) error {
	resp, err := http.Post(o.baseURL+path, "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func signedBody(key crypto.PrivateKey, obj any) ([]byte, error) {
	switch v := obj.(type) {
	case *services.RegisterAssetRequest:
		signed, err := services.NewSigned(key, v)
		if err != nil {
			return nil, err
		}
		return json.Marshal(signed)
	case *services.CommitRequest:
		signed, err := services.NewSigned(key, v)
		if err != nil {
			return nil, err
		}
		return json.Marshal(signed)
	default:
		return nil, fmt.Errorf("unsupported request type %T", obj)
	}
}
