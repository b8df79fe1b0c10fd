package persistence

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/Layr-Labs/zkauction-go/pkg/auction"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// RunRecord is the stored summary of one clearing run.
// Integers are decimal strings and hashes 0x-prefixed hex so records stay readable in any backend.
type RunRecord struct {
	// ID is a random UUID assigned when the record is created.
	ID string `json:"id"`

	// AuctionLabel is an operator-chosen name grouping runs over the same auction.
	AuctionLabel string `json:"auctionLabel"`

	// InputHash identifies the batch the run was computed from.
	InputHash string `json:"inputHash"`

	ProverAddress         string `json:"proverAddress"`
	AccBidsHash           string `json:"accBidsHash"`
	AccOffersHash         string `json:"accOffersHash"`
	AuctionParametersHash string `json:"auctionParametersHash"`
	AuctionResultRoot     string `json:"auctionResultRoot"`

	// EncodedPublicValues is the ABI encoding handed to the prover.
	EncodedPublicValues string `json:"encodedPublicValues"`

	// Signature is the prover identity's signature over keccak256(EncodedPublicValues), if any.
	Signature string `json:"signature,omitempty"`

	Cleared       bool   `json:"cleared"`
	ClearingPrice string `json:"clearingPrice"`
	Volume        string `json:"volume"`

	Allocations []*AllocationRecord `json:"allocations"`

	// CreatedAt is a Unix timestamp.
	CreatedAt int64 `json:"createdAt"`
}

// AllocationRecord is one leaf of the result commitment, in leaf order.
type AllocationRecord struct {
	Side             string `json:"side"`
	OrderID          string `json:"orderId"`
	Participant      string `json:"participant"`
	Status           string `json:"status"`
	StatusTag        uint8  `json:"statusTag"`
	Amount           string `json:"amount"`
	SettledAmount    string `json:"settledAmount"`
	RepurchaseAmount string `json:"repurchaseAmount"`
	Collateral       string `json:"collateral"`
}

// NewRunRecord summarizes a successful run.
func NewRunRecord(auctionLabel string, inputHash common.Hash, res *auction.Result, createdAt time.Time) *RunRecord {
	pv := res.PublicValues
	run := &RunRecord{
		ID:                    uuid.NewString(),
		AuctionLabel:          auctionLabel,
		InputHash:             inputHash.Hex(),
		ProverAddress:         pv.ProverAddress.Hex(),
		AccBidsHash:           pv.AccBidsHash.Hex(),
		AccOffersHash:         pv.AccOffersHash.Hex(),
		AuctionParametersHash: pv.AuctionParametersHash.Hex(),
		AuctionResultRoot:     pv.AuctionResultRoot.Hex(),
		EncodedPublicValues:   hexutil.Encode(res.Encoded),
		Cleared:               res.Cleared,
		ClearingPrice:         res.ClearingPrice.Dec(),
		Volume:                res.Volume.Dec(),
		Allocations:           make([]*AllocationRecord, len(res.Allocations)),
		CreatedAt:             createdAt.Unix(),
	}
	for i, a := range res.Allocations {
		run.Allocations[i] = &AllocationRecord{
			Side:             a.Side.String(),
			OrderID:          a.ID.String(),
			Participant:      a.Participant.Hex(),
			Status:           a.Status.String(),
			StatusTag:        uint8(a.Status),
			Amount:           a.Amount.Dec(),
			SettledAmount:    a.SettledAmount.Dec(),
			RepurchaseAmount: a.RepurchaseAmount.Dec(),
			Collateral:       a.Collateral.Dec(),
		}
	}
	return run
}

// PublicValues decodes the stored ABI encoding.
func (r *RunRecord) PublicValues() (*types.PublicValues, error) {
	encoded, err := hexutil.Decode(r.EncodedPublicValues)
	if err != nil {
		return nil, fmt.Errorf("invalid encoded public values in run %s: %w", r.ID, err)
	}
	return types.DecodePublicValues(encoded)
}

// Clone returns a deep copy.
func (r *RunRecord) Clone() *RunRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Allocations = make([]*AllocationRecord, len(r.Allocations))
	for i, a := range r.Allocations {
		copied := *a
		c.Allocations[i] = &copied
	}
	return &c
}

// SortRuns orders runs by creation time, then ID.
func SortRuns(runs []*RunRecord) {
	slices.SortFunc(runs, func(a, b *RunRecord) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt < b.CreatedAt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}
