package auction

import (
	"fmt"

	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/registry"
)

// Settlement moves money and the asset once a round is evaluated. It re-runs
// the evaluation when a candidate cannot cover the clearing price, so the
// outcome it returns can differ from the evaluator's.
type Settlement struct {
	cfg      Config
	ledger   engine.Ledger
	registry registry.AssetRegistry
}

func NewSettlement(cfg Config, ledger engine.Ledger, reg registry.AssetRegistry) *Settlement {
	return &Settlement{cfg: cfg, ledger: ledger, registry: reg}
}

// Settle walks the qualifying bids best-first. The current candidate pays
// the clearing price computed over the remaining bids; a candidate whose
// escrowed deposit cannot cover it forfeits the deposit to the seller and
// the next candidate is tried at a recomputed price. Payment and asset
// transfer land together or not at all. Every escrow not released here is
// refunded before returning.
func (s *Settlement) Settle(round *engine.Round, revealed []engine.RevealedValue, outcome engine.Outcome) (engine.Outcome, error) {
	ranked, undecodable := rankBids(revealed, s.cfg.ReservePrice)

	outcome.Winners = nil
	outcome.Sold = false
	outcome.ClearingPrice = 0
	// Excluded keeps the undecryptable participants already recorded on the
	// incoming outcome; undecodable bids join them here.
	outcome.Excluded = append(outcome.Excluded, undecodable...)
	outcome.Forfeited = nil

	handled := make(map[engine.EscrowHandle]bool)

	for len(ranked) > 0 {
		winner := ranked[0]
		price := clearingPrice(ranked, s.cfg.ReservePrice)

		held, active := s.ledger.Escrowed(winner.escrow)
		if !active || held < price {
			if active {
				if err := s.ledger.Release(winner.escrow, s.cfg.Seller, held); err != nil {
					return engine.Outcome{}, fmt.Errorf("forfeit deposit: %w", err)
				}
			}
			handled[winner.escrow] = true
			outcome.Excluded = append(outcome.Excluded, winner.participant)
			outcome.Forfeited = append(outcome.Forfeited, winner.participant)
			ranked = ranked[1:]
			continue
		}

		// Transfer first, then release. A failed release puts the asset
		// back so the seller never loses both.
		if err := s.registry.Transfer(s.cfg.Token, registry.Owner(s.cfg.Seller), registry.Owner(winner.participant)); err != nil {
			return engine.Outcome{}, fmt.Errorf("transfer asset: %w", err)
		}
		if err := s.ledger.Release(winner.escrow, s.cfg.Seller, price); err != nil {
			if rbErr := s.registry.Transfer(s.cfg.Token, registry.Owner(winner.participant), registry.Owner(s.cfg.Seller)); rbErr != nil {
				return engine.Outcome{}, fmt.Errorf("return asset after failed release: %w (release: %v)", rbErr, err)
			}
			return engine.Outcome{}, fmt.Errorf("release clearing price: %w", err)
		}

		handled[winner.escrow] = true
		outcome.Winners = []engine.ParticipantID{winner.participant}
		outcome.ClearingPrice = price
		outcome.Sold = true
		break
	}

	// Losing bidders, non-qualifying bidders and participants whose
	// commitments never decrypted all get their deposits back.
	for _, c := range round.Commitments {
		if handled[c.Escrow] {
			continue
		}
		if err := s.ledger.Refund(c.Escrow); err != nil {
			return engine.Outcome{}, fmt.Errorf("refund deposit: %w", err)
		}
	}
	return outcome, nil
}
