package types

import (
	"fmt"

	"github.com/Layr-Labs/zkauction-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

const (
	// BPS is the basis point denominator; prices are annual rates in basis points.
	BPS = 10_000

	// MaxPrice is the highest rate a reveal may carry (10,000%).
	MaxPrice = 1_000_000

	// DefaultCollateralRatioBps is the initial overcollateralization requirement (150%).
	DefaultCollateralRatioBps = 15_000

	// DaysInYear is the 360-day count convention used for repurchase amounts.
	DaysInYear = 360
)

// Announced initial values of the two ledger accumulators.
var (
	InitialBidsAccumulator   = crypto.Keccak256Hash([]byte("zkauction.accumulator.bids.v1"))
	InitialOffersAccumulator = crypto.Keccak256Hash([]byte("zkauction.accumulator.offers.v1"))
)

// AccumulatorState is the pair of running hash-chain values stored by the ledger.
type AccumulatorState struct {
	BidsHash   common.Hash `json:"bidsHash"`
	OffersHash common.Hash `json:"offersHash"`
}

func InitialAccumulators() AccumulatorState {
	return AccumulatorState{BidsHash: InitialBidsAccumulator, OffersHash: InitialOffersAccumulator}
}

// AuctionParameters are the tokens, oracle prices read at proof time and the term length.
type AuctionParameters struct {
	PurchaseToken   common.Address
	PurchasePrice   *uint256.Int
	CollateralToken common.Address
	CollateralPrice *uint256.Int
	DayCount        *uint256.Int
}

func (p *AuctionParameters) Validate() error {
	if p.PurchasePrice == nil || p.PurchasePrice.IsZero() {
		return fmt.Errorf("purchase price must be non-zero")
	}
	if p.CollateralPrice == nil || p.CollateralPrice.IsZero() {
		return fmt.Errorf("collateral price must be non-zero")
	}
	if p.DayCount == nil {
		return fmt.Errorf("day count is required")
	}
	return nil
}

// Hash is keccak256(abi.encodePacked(purchaseToken, purchasePrice, collateralToken, collateralPrice, dayCount)).
func (p *AuctionParameters) Hash() common.Hash {
	packed := util.NewPackedEncoder(20 + 32 + 20 + 32 + 32).
		Address(p.PurchaseToken).
		Uint256(p.PurchasePrice).
		Address(p.CollateralToken).
		Uint256(p.CollateralPrice).
		Uint256(p.DayCount).
		Bytes()
	return crypto.Keccak256Hash(packed)
}

// Status is an order's outcome. The numeric value is the leaf status tag.
type Status uint8

const (
	StatusUnassigned             Status = 0
	StatusPartiallyAssigned      Status = 1
	StatusFullyAssigned          Status = 2
	StatusInsufficientCollateral Status = 3
)

func (s Status) String() string {
	switch s {
	case StatusUnassigned:
		return "unassigned"
	case StatusPartiallyAssigned:
		return "partiallyAssigned"
	case StatusFullyAssigned:
		return "fullyAssigned"
	case StatusInsufficientCollateral:
		return "insufficientCollateral"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Allocation is the settled outcome of one order.
type Allocation struct {
	Side        Side
	ID          OrderID
	Participant common.Address
	Status      Status
	// Amount is the order's requested (bid) or locked (offer) amount.
	Amount        *uint256.Int
	SettledAmount *uint256.Int
	// RepurchaseAmount is what an assigned bidder owes at maturity; zero for offers.
	RepurchaseAmount *uint256.Int
	// Collateral is the bid's locked collateral; zero for offers.
	Collateral *uint256.Int
}

// LeafEncoding is abi.encodePacked(uint96 orderId, address participant, uint8 status, uint256 settledAmount).
func (a *Allocation) LeafEncoding() []byte {
	return util.NewPackedEncoder(12 + 20 + 1 + 32).
		Uint96(a.ID).
		Address(a.Participant).
		Uint8(uint8(a.Status)).
		Uint256(a.SettledAmount).
		Bytes()
}

// LeafHash is the commitment tree leaf for this allocation.
func (a *Allocation) LeafHash() common.Hash {
	return crypto.Keccak256Hash(a.LeafEncoding())
}

// PublicValues is the tuple the verifier contract checks, in wire order.
type PublicValues struct {
	ProverAddress         common.Address
	AccBidsHash           common.Hash
	AccOffersHash         common.Hash
	AuctionParametersHash common.Hash
	AuctionResultRoot     common.Hash
}

// Encode ABI-encodes the tuple as (address, bytes32, bytes32, bytes32, bytes32).
func (pv *PublicValues) Encode() ([]byte, error) {
	return util.EncodePublicValues(pv.ProverAddress, pv.AccBidsHash, pv.AccOffersHash, pv.AuctionParametersHash, pv.AuctionResultRoot)
}

// Digest is keccak256 of the ABI encoding, the message a prover signs.
func (pv *PublicValues) Digest() (common.Hash, error) {
	encoded, err := pv.Encode()
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(encoded), nil
}

func DecodePublicValues(data []byte) (*PublicValues, error) {
	prover, hashes, err := util.DecodePublicValues(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public values: %w", err)
	}
	return &PublicValues{
		ProverAddress:         prover,
		AccBidsHash:           hashes[0],
		AccOffersHash:         hashes[1],
		AuctionParametersHash: hashes[2],
		AuctionResultRoot:     hashes[3],
	}, nil
}
