package testutil

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/Layr-Labs/zkauction-go/pkg/hashchain"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

var (
	DefaultBidder   = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	DefaultOfferor  = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	PurchaseToken   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	CollateralToken = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

// Ledger records events the way the ledger contract emits them, so tests can build
// batches whose accumulators check out.
type Ledger struct {
	Bidder  common.Address
	Offeror common.Address

	BidEvents   []*types.Event
	OfferEvents []*types.Event
}

func NewLedger() *Ledger {
	return &Ledger{Bidder: DefaultBidder, Offeror: DefaultOfferor}
}

// Nonce is the deterministic reveal nonce used for an order.
func Nonce(side types.Side, id uint64) *uint256.Int {
	if side == types.SideBid {
		return uint256.NewInt(id*31 + 1)
	}
	return uint256.NewInt(id*17 + 2)
}

func (l *Ledger) LockBid(id, price, amount, collateral uint64) *Ledger {
	commitment := types.PriceCommitment(uint256.NewInt(price), Nonce(types.SideBid, id))
	l.BidEvents = append(l.BidEvents, types.NewLockBidEvent(l.Bidder, types.OrderIDFromUint64(id), commitment,
		uint256.NewInt(amount), uint256.NewInt(collateral)))
	return l
}

func (l *Ledger) RevealBid(id, price uint64) *Ledger {
	l.BidEvents = append(l.BidEvents, types.NewRevealBidEvent(l.Bidder, types.OrderIDFromUint64(id),
		uint256.NewInt(price), Nonce(types.SideBid, id)))
	return l
}

func (l *Ledger) UnlockBid(id, collateral uint64) *Ledger {
	l.BidEvents = append(l.BidEvents, types.NewUnlockBidEvent(l.Bidder, types.OrderIDFromUint64(id), uint256.NewInt(collateral)))
	return l
}

func (l *Ledger) LockOffer(id, price, amount uint64) *Ledger {
	commitment := types.PriceCommitment(uint256.NewInt(price), Nonce(types.SideOffer, id))
	l.OfferEvents = append(l.OfferEvents, types.NewLockOfferEvent(l.Offeror, types.OrderIDFromUint64(id), commitment,
		uint256.NewInt(amount)))
	return l
}

func (l *Ledger) RevealOffer(id, price uint64) *Ledger {
	l.OfferEvents = append(l.OfferEvents, types.NewRevealOfferEvent(l.Offeror, types.OrderIDFromUint64(id),
		uint256.NewInt(price), Nonce(types.SideOffer, id)))
	return l
}

func (l *Ledger) UnlockOffer(id, amount uint64) *Ledger {
	l.OfferEvents = append(l.OfferEvents, types.NewUnlockOfferEvent(l.Offeror, types.OrderIDFromUint64(id), uint256.NewInt(amount)))
	return l
}

// Bid locks a bid and optionally reveals it right away.
func (l *Ledger) Bid(id, price, amount, collateral uint64, reveal bool) *Ledger {
	l.LockBid(id, price, amount, collateral)
	if reveal {
		l.RevealBid(id, price)
	}
	return l
}

// Offer locks an offer and optionally reveals it right away.
func (l *Ledger) Offer(id, price, amount uint64, reveal bool) *Ledger {
	l.LockOffer(id, price, amount)
	if reveal {
		l.RevealOffer(id, price)
	}
	return l
}

// Accumulators are the values the contract would store after these events.
func (l *Ledger) Accumulators() types.AccumulatorState {
	initial := types.InitialAccumulators()
	return types.AccumulatorState{
		BidsHash:   hashchain.Accumulate(initial.BidsHash, l.BidEvents),
		OffersHash: hashchain.Accumulate(initial.OffersHash, l.OfferEvents),
	}
}

// UnitParameters prices both tokens at 1 so collateral checks reduce to plain amounts.
func UnitParameters(dayCount uint64) *types.AuctionParameters {
	return &types.AuctionParameters{
		PurchaseToken:   PurchaseToken,
		PurchasePrice:   uint256.NewInt(1),
		CollateralToken: CollateralToken,
		CollateralPrice: uint256.NewInt(1),
		DayCount:        uint256.NewInt(dayCount),
	}
}
