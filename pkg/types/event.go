package types

import (
	"fmt"

	"github.com/Layr-Labs/zkauction-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventKind tags each ledger event. The numeric value is part of the hash-chain encoding.
type EventKind uint8

const (
	EventLockBid     EventKind = 1
	EventUnlockBid   EventKind = 2
	EventRevealBid   EventKind = 3
	EventLockOffer   EventKind = 4
	EventUnlockOffer EventKind = 5
	EventRevealOffer EventKind = 6
)

var eventKindNames = map[EventKind]string{
	EventLockBid:     "lockBid",
	EventUnlockBid:   "unlockBid",
	EventRevealBid:   "revealBid",
	EventLockOffer:   "lockOffer",
	EventUnlockOffer: "unlockOffer",
	EventRevealOffer: "revealOffer",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("eventKind(%d)", uint8(k))
}

func ParseEventKind(s string) (EventKind, error) {
	for kind, name := range eventKindNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Side reports which hash chain the event belongs to.
func (k EventKind) Side() Side {
	switch k {
	case EventLockOffer, EventUnlockOffer, EventRevealOffer:
		return SideOffer
	default:
		return SideBid
	}
}

// Event is one entry of the ledger's append-only log. Only the fields used by Kind are set:
//
//	LockBid      PriceCommitment, Amount, Collateral
//	UnlockBid    Collateral
//	LockOffer    PriceCommitment, Amount
//	UnlockOffer  Amount
//	Reveal*      Price, Nonce
type Event struct {
	Kind            EventKind
	Participant     common.Address
	ID              OrderID
	PriceCommitment common.Hash
	Amount          *uint256.Int
	Collateral      *uint256.Int
	Price           *uint256.Int
	Nonce           *uint256.Int
}

func NewLockBidEvent(bidder common.Address, id OrderID, commitment common.Hash, amount, collateral *uint256.Int) *Event {
	return &Event{Kind: EventLockBid, Participant: bidder, ID: id, PriceCommitment: commitment, Amount: amount, Collateral: collateral}
}

func NewUnlockBidEvent(bidder common.Address, id OrderID, collateral *uint256.Int) *Event {
	return &Event{Kind: EventUnlockBid, Participant: bidder, ID: id, Collateral: collateral}
}

func NewRevealBidEvent(bidder common.Address, id OrderID, price, nonce *uint256.Int) *Event {
	return &Event{Kind: EventRevealBid, Participant: bidder, ID: id, Price: price, Nonce: nonce}
}

func NewLockOfferEvent(offeror common.Address, id OrderID, commitment common.Hash, amount *uint256.Int) *Event {
	return &Event{Kind: EventLockOffer, Participant: offeror, ID: id, PriceCommitment: commitment, Amount: amount}
}

func NewUnlockOfferEvent(offeror common.Address, id OrderID, amount *uint256.Int) *Event {
	return &Event{Kind: EventUnlockOffer, Participant: offeror, ID: id, Amount: amount}
}

func NewRevealOfferEvent(offeror common.Address, id OrderID, price, nonce *uint256.Int) *Event {
	return &Event{Kind: EventRevealOffer, Participant: offeror, ID: id, Price: price, Nonce: nonce}
}

// Validate checks that the fields required by Kind are present.
func (e *Event) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%s event for order %s/%s is missing %s", e.Kind, e.Participant.Hex(), e.ID, field)
	}
	switch e.Kind {
	case EventLockBid:
		if e.Amount == nil {
			return missing("amount")
		}
		if e.Collateral == nil {
			return missing("collateral")
		}
	case EventUnlockBid:
		if e.Collateral == nil {
			return missing("collateral")
		}
	case EventLockOffer, EventUnlockOffer:
		if e.Amount == nil {
			return missing("amount")
		}
	case EventRevealBid, EventRevealOffer:
		if e.Price == nil {
			return missing("price")
		}
		if e.Nonce == nil {
			return missing("nonce")
		}
	default:
		return fmt.Errorf("unknown event kind %d", uint8(e.Kind))
	}
	return nil
}

// EncodePacked returns the event's contribution to the hash chain, exactly as the ledger
// contract packs it after the previous accumulator value.
func (e *Event) EncodePacked() []byte {
	enc := util.NewPackedEncoder(1 + 20 + 12 + 3*32).
		Uint8(uint8(e.Kind)).
		Address(e.Participant).
		Uint96(e.ID)

	switch e.Kind {
	case EventLockBid:
		enc.Bytes32(e.PriceCommitment).Uint256(e.Amount).Uint256(e.Collateral)
	case EventUnlockBid:
		enc.Uint256(e.Collateral)
	case EventLockOffer:
		enc.Bytes32(e.PriceCommitment).Uint256(e.Amount)
	case EventUnlockOffer:
		enc.Uint256(e.Amount)
	case EventRevealBid, EventRevealOffer:
		enc.Uint256(e.Price).Uint256(e.Nonce)
	}
	return enc.Bytes()
}
