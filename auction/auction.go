package auction

import (
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
	"github.com/ideal-lab5/tlock-engine/registry"
)

// Auction binds a single engine round to the sale of one registry token.
type Auction struct {
	cfg     Config
	eng     *engine.Engine
	roundID engine.RoundID
}

// Open wires an engine with the Vickrey evaluator and settlement policy and
// opens the bidding round. The seller must already own cfg.Token.
func Open(cfg Config, timeOracle oracle.TimeOracle, ledger engine.Ledger, store engine.RoundStore, reg registry.AssetRegistry, deadline oracle.SlotID) (*Auction, error) {
	eng := engine.New(
		engine.Config{MinDeposit: cfg.MinDeposit},
		timeOracle,
		ledger,
		store,
		NewEvaluator(cfg),
		NewSettlement(cfg, ledger, reg),
	)
	roundID, err := eng.OpenRound(cfg.Seller, deadline)
	if err != nil {
		return nil, err
	}
	return &Auction{cfg: cfg, eng: eng, roundID: roundID}, nil
}

// Bid records a sealed bid with its deposit.
func (a *Auction) Bid(participant engine.ParticipantID, ciphertext []byte, deposit engine.Amount) error {
	return a.eng.Commit(a.roundID, participant, ciphertext, deposit)
}

// Close ends bidding once the deadline slot is reached.
func (a *Auction) Close() error {
	return a.eng.Close(a.roundID)
}

// Resolve decrypts the bids and settles the sale.
func (a *Auction) Resolve() (engine.Outcome, error) {
	return a.eng.Resolve(a.roundID)
}

// Abort cancels the auction and refunds all deposits. Seller only, and only
// while bidding is still open.
func (a *Auction) Abort(caller engine.ParticipantID) error {
	return a.eng.Abort(a.roundID, caller)
}

func (a *Auction) View() (engine.RoundView, error) {
	return a.eng.View(a.roundID)
}

func (a *Auction) RoundID() engine.RoundID {
	return a.roundID
}

func (a *Auction) Deadline() (oracle.SlotID, error) {
	return a.eng.Deadline(a.roundID)
}
