package types

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/zkauction-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// OrderID is the ledger's uint96 order identifier, held as 12 big-endian bytes.
type OrderID [12]byte

func OrderIDFromUint64(v uint64) OrderID {
	var id OrderID
	b := uint256.NewInt(v).Bytes32()
	copy(id[:], b[20:])
	return id
}

// OrderIDFromBig converts a big integer (as decoded from an ABI uint96) into an OrderID.
func OrderIDFromBig(v *big.Int) (OrderID, error) {
	if v == nil || v.Sign() < 0 || v.BitLen() > 96 {
		return OrderID{}, fmt.Errorf("order id %v does not fit in uint96", v)
	}
	var id OrderID
	v.FillBytes(id[:])
	return id, nil
}

// ParseOrderID accepts a decimal string or a 0x-prefixed hex string.
func ParseOrderID(s string) (OrderID, error) {
	v, err := ParseUint256(s)
	if err != nil {
		return OrderID{}, fmt.Errorf("invalid order id %q: %w", s, err)
	}
	if v.BitLen() > 96 {
		return OrderID{}, fmt.Errorf("order id %q does not fit in uint96", s)
	}
	var id OrderID
	b := v.Bytes32()
	copy(id[:], b[20:])
	return id, nil
}

func (id OrderID) Cmp(other OrderID) int {
	return bytes.Compare(id[:], other[:])
}

func (id OrderID) Big() *big.Int {
	return new(big.Int).SetBytes(id[:])
}

func (id OrderID) String() string {
	return new(uint256.Int).SetBytes(id[:]).Dec()
}

// ParseUint256 accepts a decimal string or a 0x-prefixed hex string of at most 32 bytes.
func ParseUint256(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty integer")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		digits := s[2:]
		if len(digits) == 0 || len(digits) > 64 {
			return nil, fmt.Errorf("hex integer %q must have 1-64 digits", s)
		}
		if len(digits)%2 == 1 {
			digits = "0" + digits
		}
		b := common.FromHex("0x" + digits)
		if len(b)*2 != len(digits) {
			return nil, fmt.Errorf("invalid hex integer %q", s)
		}
		return new(uint256.Int).SetBytes(b), nil
	}
	return uint256.FromDecimal(s)
}

// Side identifies which book an order belongs to.
type Side uint8

const (
	SideBid Side = iota
	SideOffer
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideOffer:
		return "offer"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// OrderKey packs address(20) || id(12) into a single word, the ledger's per-order storage key.
func OrderKey(participant common.Address, id OrderID) common.Hash {
	var key common.Hash
	copy(key[:20], participant.Bytes())
	copy(key[20:], id[:])
	return key
}

// PriceCommitment is keccak256(uint256 price || uint256 nonce), the sealed price submitted at lock time.
func PriceCommitment(price, nonce *uint256.Int) common.Hash {
	packed := util.NewPackedEncoder(64).Uint256(price).Uint256(nonce).Bytes()
	return crypto.Keccak256Hash(packed)
}

// OrderHeader holds the fields bids and offers share.
type OrderHeader struct {
	ID              OrderID
	Participant     common.Address
	PriceCommitment common.Hash
	// RevealedPrice and Nonce stay nil until a valid reveal event is replayed.
	RevealedPrice *uint256.Int
	Nonce         *uint256.Int
}

func (h *OrderHeader) IsRevealed() bool {
	return h.RevealedPrice != nil
}

func (h *OrderHeader) Key() common.Hash {
	return OrderKey(h.Participant, h.ID)
}

// BidTerms is the borrower side payload: the purchase amount requested and collateral locked for it.
type BidTerms struct {
	Amount     *uint256.Int
	Collateral *uint256.Int
}

// OfferTerms is the lender side payload: the purchase tokens locked for lending.
type OfferTerms struct {
	Amount *uint256.Int
}

// Order is a tagged variant over bids and offers. Exactly one of Bid or Offer is set,
// matching Side.
type Order struct {
	OrderHeader
	Side  Side
	Bid   *BidTerms
	Offer *OfferTerms
}

func NewBid(participant common.Address, id OrderID, commitment common.Hash, amount, collateral *uint256.Int) *Order {
	return &Order{
		OrderHeader: OrderHeader{ID: id, Participant: participant, PriceCommitment: commitment},
		Side:        SideBid,
		Bid:         &BidTerms{Amount: orZero(amount).Clone(), Collateral: orZero(collateral).Clone()},
	}
}

func NewOffer(participant common.Address, id OrderID, commitment common.Hash, amount *uint256.Int) *Order {
	return &Order{
		OrderHeader: OrderHeader{ID: id, Participant: participant, PriceCommitment: commitment},
		Side:        SideOffer,
		Offer:       &OfferTerms{Amount: orZero(amount).Clone()},
	}
}

// Amount is the requested purchase amount for bids and the locked amount for offers.
func (o *Order) Amount() *uint256.Int {
	if o.Side == SideBid {
		return o.Bid.Amount
	}
	return o.Offer.Amount
}

// Collateral is zero for offers.
func (o *Order) Collateral() *uint256.Int {
	if o.Side == SideBid {
		return o.Bid.Collateral
	}
	return new(uint256.Int)
}

// Reveal records a revealed price. The caller is responsible for checking the commitment.
func (o *Order) Reveal(price, nonce *uint256.Int) {
	o.RevealedPrice = price.Clone()
	o.Nonce = nonce.Clone()
}

// ClearReveal drops a previous reveal, used when the order is amended after revealing.
func (o *Order) ClearReveal() {
	o.RevealedPrice = nil
	o.Nonce = nil
}

// Clone returns a deep copy so replayed state can be handed out without aliasing.
func (o *Order) Clone() *Order {
	c := &Order{OrderHeader: o.OrderHeader, Side: o.Side}
	if o.RevealedPrice != nil {
		c.RevealedPrice = o.RevealedPrice.Clone()
	}
	if o.Nonce != nil {
		c.Nonce = o.Nonce.Clone()
	}
	if o.Bid != nil {
		c.Bid = &BidTerms{Amount: o.Bid.Amount.Clone(), Collateral: o.Bid.Collateral.Clone()}
	}
	if o.Offer != nil {
		c.Offer = &OfferTerms{Amount: o.Offer.Amount.Clone()}
	}
	return c
}

// CompareIdentity orders by ascending ID, then ascending participant address.
func CompareIdentity(a, b *Order) int {
	if c := a.ID.Cmp(b.ID); c != 0 {
		return c
	}
	return bytes.Compare(a.Participant.Bytes(), b.Participant.Bytes())
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
