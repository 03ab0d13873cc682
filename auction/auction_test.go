package auction

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ideal-lab5/tlock-engine/crypto"
	"github.com/ideal-lab5/tlock-engine/engine"
	"github.com/ideal-lab5/tlock-engine/oracle"
	"github.com/ideal-lab5/tlock-engine/registry"
)

const auctionDeadline = oracle.SlotID(10)

type auctionRig struct {
	auction  *Auction
	beacon   *oracle.Beacon
	ledger   *engine.MemLedger
	registry *registry.MemRegistry
	token    registry.TokenID
}

func newAuctionRig(t *testing.T, reserve engine.Amount) *auctionRig {
	t.Helper()

	beacon := oracle.NewBeacon([]byte("auction test seed"))
	ledger := engine.NewMemLedger()
	reg := registry.NewMemRegistry()

	token, err := reg.Mint("seller")
	require.NoError(t, err)

	cfg := Config{
		Token:        token,
		Seller:       "seller",
		ReservePrice: reserve,
		MinDeposit:   1,
	}
	a, err := Open(cfg, beacon, ledger, engine.NewMemStore(), reg, auctionDeadline)
	require.NoError(t, err)

	return &auctionRig{auction: a, beacon: beacon, ledger: ledger, registry: reg, token: token}
}

func (r *auctionRig) bid(t *testing.T, participant engine.ParticipantID, amount uint64, deposit engine.Amount) {
	t.Helper()
	sealed, err := crypto.Seal(r.beacon.SealingKeyFor(auctionDeadline), uint64(auctionDeadline), crypto.EncodeBidAmount(amount))
	require.NoError(t, err)
	require.NoError(t, r.auction.Bid(participant, sealed.Bytes(), deposit))
}

func (r *auctionRig) resolve(t *testing.T) engine.Outcome {
	t.Helper()
	r.beacon.AdvanceTo(auctionDeadline)
	require.NoError(t, r.auction.Close())
	outcome, err := r.auction.Resolve()
	require.NoError(t, err)
	return outcome
}

func (r *auctionRig) owner(t *testing.T) registry.Owner {
	t.Helper()
	owner, err := r.registry.OwnerOf(r.token)
	require.NoError(t, err)
	return owner
}

func TestSecondPriceClearing(t *testing.T) {
	rig := newAuctionRig(t, 1)
	rig.bid(t, "alice", 10, 30)
	rig.bid(t, "bob", 30, 30)
	rig.bid(t, "carol", 20, 30)

	outcome := rig.resolve(t)
	require.True(t, outcome.Sold)
	require.Equal(t, []engine.ParticipantID{"bob"}, outcome.Winners)
	require.Equal(t, engine.Amount(20), outcome.ClearingPrice)

	require.Equal(t, registry.Owner("bob"), rig.owner(t))
	require.Equal(t, engine.Amount(20), rig.ledger.Balance("seller"))
	// Winner's deposit above the clearing price comes back as change.
	require.Equal(t, engine.Amount(10), rig.ledger.Balance("bob"))
	require.Equal(t, engine.Amount(30), rig.ledger.Balance("alice"))
	require.Equal(t, engine.Amount(30), rig.ledger.Balance("carol"))
}

func TestForfeitReevaluates(t *testing.T) {
	rig := newAuctionRig(t, 1)
	rig.bid(t, "alice", 10, 30)
	// Highest bidder, but the deposit cannot cover the clearing price.
	rig.bid(t, "bob", 30, 5)
	rig.bid(t, "carol", 20, 30)

	outcome := rig.resolve(t)
	require.True(t, outcome.Sold)
	require.Equal(t, []engine.ParticipantID{"carol"}, outcome.Winners)
	require.Equal(t, engine.Amount(10), outcome.ClearingPrice)
	require.Equal(t, []engine.ParticipantID{"bob"}, outcome.Forfeited)
	require.Contains(t, outcome.Excluded, engine.ParticipantID("bob"))

	require.Equal(t, registry.Owner("carol"), rig.owner(t))
	// Bob's forfeited deposit plus carol's clearing price.
	require.Equal(t, engine.Amount(15), rig.ledger.Balance("seller"))
	require.Equal(t, engine.Amount(0), rig.ledger.Balance("bob"))
	require.Equal(t, engine.Amount(20), rig.ledger.Balance("carol"))
	require.Equal(t, engine.Amount(30), rig.ledger.Balance("alice"))
}

func TestSingleBidPaysReserve(t *testing.T) {
	rig := newAuctionRig(t, 20)
	rig.bid(t, "alice", 50, 50)

	outcome := rig.resolve(t)
	require.True(t, outcome.Sold)
	require.Equal(t, []engine.ParticipantID{"alice"}, outcome.Winners)
	require.Equal(t, engine.Amount(20), outcome.ClearingPrice)
	require.Equal(t, engine.Amount(20), rig.ledger.Balance("seller"))
	require.Equal(t, engine.Amount(30), rig.ledger.Balance("alice"))
}

func TestNoQualifyingBids(t *testing.T) {
	rig := newAuctionRig(t, 100)
	rig.bid(t, "alice", 10, 30)
	rig.bid(t, "bob", 99, 30)

	outcome := rig.resolve(t)
	require.False(t, outcome.Sold)
	require.Empty(t, outcome.Winners)
	require.Equal(t, registry.Owner("seller"), rig.owner(t))
	require.Equal(t, engine.Amount(30), rig.ledger.Balance("alice"))
	require.Equal(t, engine.Amount(30), rig.ledger.Balance("bob"))
	require.Equal(t, engine.Amount(0), rig.ledger.Balance("seller"))
}

func TestAllCandidatesForfeitNoSale(t *testing.T) {
	rig := newAuctionRig(t, 20)
	rig.bid(t, "alice", 50, 10)

	outcome := rig.resolve(t)
	require.False(t, outcome.Sold)
	require.Equal(t, []engine.ParticipantID{"alice"}, outcome.Forfeited)
	require.Equal(t, registry.Owner("seller"), rig.owner(t))
	require.Equal(t, engine.Amount(10), rig.ledger.Balance("seller"))
	require.Equal(t, engine.Amount(0), rig.ledger.Balance("alice"))
}

func TestTieBreaksByEarliestCommitment(t *testing.T) {
	rig := newAuctionRig(t, 1)
	rig.bid(t, "bob", 30, 30)
	rig.bid(t, "alice", 30, 30)

	outcome := rig.resolve(t)
	require.Equal(t, []engine.ParticipantID{"bob"}, outcome.Winners)
	require.Equal(t, engine.Amount(30), outcome.ClearingPrice)
}

func TestUndecodableBidExcludedAndRefunded(t *testing.T) {
	rig := newAuctionRig(t, 1)
	rig.bid(t, "alice", 10, 30)

	// Decrypts fine but does not decode to a bid amount.
	sealed, err := crypto.Seal(rig.beacon.SealingKeyFor(auctionDeadline), uint64(auctionDeadline), []byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, rig.auction.Bid("mallory", sealed.Bytes(), 30))

	outcome := rig.resolve(t)
	require.True(t, outcome.Sold)
	require.Equal(t, []engine.ParticipantID{"alice"}, outcome.Winners)
	require.Equal(t, []engine.ParticipantID{"mallory"}, outcome.Excluded)
	require.Empty(t, outcome.Forfeited)
	require.Equal(t, engine.Amount(30), rig.ledger.Balance("mallory"))
}

func TestUndecryptableBidExcludedAndRefunded(t *testing.T) {
	rig := newAuctionRig(t, 1)
	rig.bid(t, "alice", 10, 30)

	// Sealed against the wrong slot, so it never decrypts.
	sealed, err := crypto.Seal(rig.beacon.SealingKeyFor(auctionDeadline+1), uint64(auctionDeadline+1), crypto.EncodeBidAmount(99))
	require.NoError(t, err)
	require.NoError(t, rig.auction.Bid("mallory", sealed.Bytes(), 30))

	outcome := rig.resolve(t)
	require.True(t, outcome.Sold)
	require.Equal(t, []engine.ParticipantID{"alice"}, outcome.Winners)
	require.Equal(t, []engine.ParticipantID{"mallory"}, outcome.Excluded)
	require.Empty(t, outcome.Forfeited)
	require.Equal(t, engine.Amount(30), rig.ledger.Balance("mallory"))
}
