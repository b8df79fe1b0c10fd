// Package collateral checks that each revealed bid locks enough collateral to cover its
// repurchase obligation at the bid's own rate, under the auction's oracle prices.
package collateral

import (
	"context"
	"runtime"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// Verdict is the validator's classification of one bid.
type Verdict uint8

const (
	VerdictUnrevealed Verdict = iota
	VerdictSufficient
	VerdictInsufficient
)

func (v Verdict) String() string {
	switch v {
	case VerdictUnrevealed:
		return "unrevealed"
	case VerdictSufficient:
		return "sufficient"
	case VerdictInsufficient:
		return "insufficient"
	default:
		return "unknown"
	}
}

// RepurchaseAmount returns amount + floor(amount * price * dayCount / (360 * BPS)).
// The boolean reports uint256 overflow.
func RepurchaseAmount(amount, price, dayCount *uint256.Int) (*uint256.Int, bool) {
	interest, overflow := new(uint256.Int).MulOverflow(amount, price)
	if overflow {
		return nil, true
	}
	if interest, overflow = interest.MulOverflow(interest, dayCount); overflow {
		return nil, true
	}
	interest.Div(interest, uint256.NewInt(types.DaysInYear*types.BPS))

	total, overflow := new(uint256.Int).AddOverflow(amount, interest)
	if overflow {
		return nil, true
	}
	return total, false
}

// ValidatorConfig sets the market prices and required ratio for collateral checks.
type ValidatorConfig struct {
	Parameters *types.AuctionParameters
	// RatioBps is the required collateral-to-debt value ratio. Zero uses types.DefaultCollateralRatioBps.
	RatioBps uint64
	// Workers bounds parallel validation. Zero uses GOMAXPROCS.
	Workers int
}

// Validator checks revealed bids against the collateral they locked.
type Validator struct {
	params   *types.AuctionParameters
	ratioBps *uint256.Int
	workers  int
	logger   *zap.Logger
}

func NewValidator(cfg *ValidatorConfig, l *zap.Logger) *Validator {
	ratio := cfg.RatioBps
	if ratio == 0 {
		ratio = types.DefaultCollateralRatioBps
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Validator{
		params:   cfg.Parameters,
		ratioBps: uint256.NewInt(ratio),
		workers:  workers,
		logger:   l,
	}
}

// IsSufficient reports whether
//
//	collateral * collateralPrice * BPS >= repurchase * purchasePrice * ratioBps
//
// holds for a revealed bid. Any overflow makes the bid insufficient.
func (v *Validator) IsSufficient(bid *types.Order) bool {
	if bid.Side != types.SideBid || !bid.IsRevealed() {
		return false
	}

	repurchase, overflow := RepurchaseAmount(bid.Bid.Amount, bid.RevealedPrice, v.params.DayCount)
	if overflow {
		return false
	}

	required, overflow := new(uint256.Int).MulOverflow(repurchase, v.params.PurchasePrice)
	if overflow {
		return false
	}
	if required, overflow = required.MulOverflow(required, v.ratioBps); overflow {
		return false
	}

	held, overflow := new(uint256.Int).MulOverflow(bid.Bid.Collateral, v.params.CollateralPrice)
	if overflow {
		return false
	}
	if held, overflow = held.MulOverflow(held, uint256.NewInt(types.BPS)); overflow {
		return false
	}

	return !held.Lt(required)
}

func (v *Validator) classify(bid *types.Order) Verdict {
	if !bid.IsRevealed() {
		return VerdictUnrevealed
	}
	if v.IsSufficient(bid) {
		return VerdictSufficient
	}
	return VerdictInsufficient
}

// Validate classifies every bid. The result is indexed like bids regardless of how the
// work was split across workers. It fails only if ctx is cancelled.
func (v *Validator) Validate(ctx context.Context, bids []*types.Order) ([]Verdict, error) {
	verdicts := make([]Verdict, len(bids))
	if len(bids) == 0 {
		return verdicts, nil
	}

	workers := min(v.workers, len(bids))
	chunk := (len(bids) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(bids); start += chunk {
		end := min(start+chunk, len(bids))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				verdicts[i] = v.classify(bids[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	insufficient := 0
	for _, verdict := range verdicts {
		if verdict == VerdictInsufficient {
			insufficient++
		}
	}
	v.logger.Sugar().Debugw("Validated bid collateral",
		"bids", len(bids),
		"insufficient", insufficient,
		"workers", workers,
	)
	return verdicts, nil
}
