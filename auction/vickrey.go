package auction

import (
	"sort"

	"github.com/ideal-lab5/tlock-engine/crypto"
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/registry"
)

// Config describes one auction. Immutable once the round opens.
type Config struct {
	// Token is the registry token sold to the winner.
	Token registry.TokenID

	// Seller opens the round, holds the token and receives the proceeds.
	Seller engine.ParticipantID

	// ReservePrice is the minimum qualifying bid, and the price paid when
	// only a single bid qualifies.
	ReservePrice engine.Amount

	// MinDeposit is the smallest deposit accepted with a commitment.
	MinDeposit engine.Amount
}

// bid is a decoded qualifying bid.
type bid struct {
	participant engine.ParticipantID
	amount      engine.Amount
	seq         uint64
	escrow      engine.EscrowHandle
}

// rankBids decodes revealed values and returns the qualifying bids sorted
// best-first: highest amount, ties broken by earliest commitment sequence,
// then by participant id. Values that do not decode to a bid amount are
// returned separately; bids below the reserve are silently dropped.
func rankBids(revealed []engine.RevealedValue, reserve engine.Amount) ([]bid, []engine.ParticipantID) {
	var ranked []bid
	var undecodable []engine.ParticipantID
	for _, rv := range revealed {
		amount, err := crypto.DecodeBidAmount(rv.Plaintext)
		if err != nil {
			undecodable = append(undecodable, rv.Participant)
			continue
		}
		if engine.Amount(amount) < reserve {
			continue
		}
		ranked = append(ranked, bid{
			participant: rv.Participant,
			amount:      engine.Amount(amount),
			seq:         rv.Seq,
			escrow:      rv.Escrow,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.amount != b.amount {
			return a.amount > b.amount
		}
		if a.seq != b.seq {
			return a.seq < b.seq
		}
		return a.participant < b.participant
	})
	return ranked, undecodable
}

// clearingPrice is the second-highest qualifying bid, or the reserve when
// only one bid remains.
func clearingPrice(ranked []bid, reserve engine.Amount) engine.Amount {
	if len(ranked) > 1 {
		return ranked[1].amount
	}
	return reserve
}

// Evaluator picks the Vickrey winner from the revealed bids.
type Evaluator struct {
	cfg Config
}

func NewEvaluator(cfg Config) Evaluator {
	return Evaluator{cfg: cfg}
}

func (v Evaluator) Evaluate(roundID engine.RoundID, revealed []engine.RevealedValue) engine.Outcome {
	out := engine.Outcome{RoundID: roundID}
	ranked, undecodable := rankBids(revealed, v.cfg.ReservePrice)
	out.Excluded = undecodable
	if len(ranked) == 0 {
		return out
	}
	out.Winners = []engine.ParticipantID{ranked[0].participant}
	out.ClearingPrice = clearingPrice(ranked, v.cfg.ReservePrice)
	out.Sold = true
	return out
}
