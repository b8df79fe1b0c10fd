// Package auction runs the full clearing pipeline over one closed batch: replay the ledger
// history, validate collateral, build the books, clear, commit to every outcome and
// assemble the public values the verifier checks.
package auction

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/clearing"
	"github.com/Layr-Labs/zkauction-go/pkg/collateral"
	"github.com/Layr-Labs/zkauction-go/pkg/hashchain"
	"github.com/Layr-Labs/zkauction-go/pkg/merkle"
	"github.com/Layr-Labs/zkauction-go/pkg/orderbook"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// Input is everything a run depends on. Two runs over equal inputs produce identical results.
type Input struct {
	BidEvents   []*types.Event
	OfferEvents []*types.Event

	// Initial defaults to types.InitialAccumulators() when zero.
	Initial types.AccumulatorState
	// Expected are the accumulators read from the ledger at the end of the reveal phase.
	Expected types.AccumulatorState

	Parameters    *types.AuctionParameters
	ProverAddress common.Address
}

// Result is the outcome of one auction run and its committed public values.
type Result struct {
	PublicValues *types.PublicValues
	// Encoded is the ABI encoding of PublicValues.
	Encoded []byte

	Cleared       bool
	ClearingPrice *uint256.Int
	Volume        *uint256.Int

	// Allocations are in leaf order: bid book, excluded bids, offer book, excluded offers.
	Allocations []*types.Allocation

	RejectedReveals int

	tree *merkle.MerkleTree
}

// InclusionProof returns the Merkle proof for the outcome of one order.
func (r *Result) InclusionProof(side types.Side, participant common.Address, id types.OrderID) (*merkle.MerkleProof, error) {
	for i, alloc := range r.Allocations {
		if alloc.Side == side && alloc.Participant == participant && alloc.ID == id {
			return r.tree.GenerateProof(i)
		}
	}
	return nil, errors.Errorf("no %s %s/%s in result", side, participant.Hex(), id)
}

// Config holds the tunables of an Auctioneer.
type Config struct {
	// MaxPrice caps revealed prices. Nil uses types.MaxPrice.
	MaxPrice *uint256.Int
	// CollateralRatioBps defaults to types.DefaultCollateralRatioBps.
	CollateralRatioBps uint64
	// Workers bounds collateral validation parallelism. Zero uses GOMAXPROCS.
	Workers int
}

// Auctioneer turns one auction's input into a committed Result.
type Auctioneer struct {
	config *Config
	logger *zap.Logger
}

func NewAuctioneer(cfg *Config, l *zap.Logger) *Auctioneer {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Auctioneer{config: cfg, logger: l}
}

// Run executes the pipeline. Any returned error is fatal and no partial result is produced.
func (a *Auctioneer) Run(ctx context.Context, in *Input) (*Result, error) {
	if in == nil {
		return nil, errors.Wrap(ErrInvalidInput, "nil input")
	}
	if in.Parameters == nil {
		return nil, errors.Wrap(ErrInvalidInput, "missing auction parameters")
	}
	if err := in.Parameters.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}

	initial := in.Initial
	if initial == (types.AccumulatorState{}) {
		initial = types.InitialAccumulators()
	}

	replayed, err := hashchain.NewReplayer(a.config.MaxPrice, a.logger).Replay(in.BidEvents, in.OfferEvents, initial, in.Expected)
	if err != nil {
		return nil, err
	}

	validator := collateral.NewValidator(&collateral.ValidatorConfig{
		Parameters: in.Parameters,
		RatioBps:   a.config.CollateralRatioBps,
		Workers:    a.config.Workers,
	}, a.logger)
	verdicts, err := validator.Validate(ctx, replayed.Bids)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to validate collateral")
	}

	book, err := orderbook.Build(ctx, replayed.Bids, verdicts, replayed.Offers)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to build order book")
	}

	outcome, err := clearing.NewEngine(in.Parameters.DayCount, a.logger).Clear(book)
	if err != nil {
		return nil, err
	}

	allocs := leafOrder(outcome, book)
	tree := merkle.BuildAllocationTree(allocs)

	pv := &types.PublicValues{
		ProverAddress:         in.ProverAddress,
		AccBidsHash:           replayed.Accumulators.BidsHash,
		AccOffersHash:         replayed.Accumulators.OffersHash,
		AuctionParametersHash: in.Parameters.Hash(),
		AuctionResultRoot:     common.Hash(tree.Root()),
	}
	encoded, err := pv.Encode()
	if err != nil {
		return nil, errors.WithMessage(err, "failed to encode public values")
	}

	a.logger.Sugar().Infow("Auction run complete",
		"cleared", outcome.Cleared,
		"clearingPrice", outcome.ClearingPrice.Dec(),
		"volume", outcome.Volume.Dec(),
		"leaves", tree.Size(),
		"resultRoot", pv.AuctionResultRoot.Hex(),
	)

	return &Result{
		PublicValues:    pv,
		Encoded:         encoded,
		Cleared:         outcome.Cleared,
		ClearingPrice:   outcome.ClearingPrice,
		Volume:          outcome.Volume,
		Allocations:     allocs,
		RejectedReveals: replayed.RejectedReveals,
		tree:            tree,
	}, nil
}

func leafOrder(outcome *clearing.Outcome, book *orderbook.Book) []*types.Allocation {
	allocs := make([]*types.Allocation, 0, len(outcome.Bids)+len(book.ExcludedBids)+len(outcome.Offers)+len(book.ExcludedOffers))
	allocs = append(allocs, outcome.Bids...)
	allocs = append(allocs, excluded(book.ExcludedBids)...)
	allocs = append(allocs, outcome.Offers...)
	allocs = append(allocs, excluded(book.ExcludedOffers)...)
	return allocs
}

func excluded(orders []*orderbook.Excluded) []*types.Allocation {
	out := make([]*types.Allocation, len(orders))
	for i, ex := range orders {
		out[i] = &types.Allocation{
			Side:             ex.Order.Side,
			ID:               ex.Order.ID,
			Participant:      ex.Order.Participant,
			Status:           ex.Status,
			Amount:           ex.Order.Amount().Clone(),
			SettledAmount:    new(uint256.Int),
			RepurchaseAmount: new(uint256.Int),
			Collateral:       ex.Order.Collateral().Clone(),
		}
	}
	return out
}
