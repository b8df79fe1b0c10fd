package collateral

import (
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func unitParams(dayCount uint64) *types.AuctionParameters {
	return &types.AuctionParameters{
		PurchaseToken:   common.HexToAddress("0x01"),
		PurchasePrice:   u(1),
		CollateralToken: common.HexToAddress("0x02"),
		CollateralPrice: u(1),
		DayCount:        u(dayCount),
	}
}

func revealedBid(id uint64, amount, collateral, price uint64) *types.Order {
	bid := types.NewBid(common.HexToAddress("0xb1"), types.OrderIDFromUint64(id), common.Hash{}, u(amount), u(collateral))
	bid.Reveal(u(price), u(0))
	return bid
}

func TestRepurchaseAmount(t *testing.T) {
	testCases := []struct {
		name     string
		amount   uint64
		price    uint64
		dayCount uint64
		want     uint64
	}{
		{"full year at 10%", 100, 1000, 360, 110},
		{"thirty days at 4%", 1_000_000, 400, 30, 1_003_333},
		{"zero days", 500, 1000, 0, 500},
		{"interest truncates to zero", 1, 1, 1, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, overflow := RepurchaseAmount(u(tc.amount), u(tc.price), u(tc.dayCount))
			require.False(t, overflow)
			assert.Equal(t, tc.want, got.Uint64())
		})
	}

	_, overflow := RepurchaseAmount(new(uint256.Int).SetAllOne(), u(2), u(1))
	assert.True(t, overflow)
}

func TestIsSufficient_Boundary(t *testing.T) {
	v := NewValidator(&ValidatorConfig{Parameters: unitParams(360)}, zap.NewNop())

	// repurchase = 110, required value = 110 * 1.5 = 165
	assert.True(t, v.IsSufficient(revealedBid(1, 100, 165, 1000)))
	assert.False(t, v.IsSufficient(revealedBid(2, 100, 164, 1000)))
}

func TestIsSufficient_OraclePrices(t *testing.T) {
	params := unitParams(360)
	params.PurchasePrice = u(2)
	params.CollateralPrice = u(3)
	v := NewValidator(&ValidatorConfig{Parameters: params, RatioBps: 20_000}, zap.NewNop())

	// required = 110 * 2 * 2.0 = 440 value; 147 * 3 = 441, 146 * 3 = 438
	assert.True(t, v.IsSufficient(revealedBid(1, 100, 147, 1000)))
	assert.False(t, v.IsSufficient(revealedBid(2, 100, 146, 1000)))
}

func TestIsSufficient_OverflowIsInsufficient(t *testing.T) {
	v := NewValidator(&ValidatorConfig{Parameters: unitParams(360)}, zap.NewNop())

	huge := types.NewBid(common.HexToAddress("0xb1"), types.OrderIDFromUint64(1), common.Hash{},
		new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 8), new(uint256.Int).SetAllOne())
	huge.Reveal(u(types.MaxPrice), u(0))
	assert.False(t, v.IsSufficient(huge))

	richCollateral := revealedBid(2, 1, 0, 0)
	richCollateral.Bid.Collateral = new(uint256.Int).SetAllOne()
	assert.False(t, v.IsSufficient(richCollateral), "overflow on the collateral side is also insufficient")
}

func TestValidate_Classification(t *testing.T) {
	v := NewValidator(&ValidatorConfig{Parameters: unitParams(360)}, zap.NewNop())

	unrevealed := types.NewBid(common.HexToAddress("0xb1"), types.OrderIDFromUint64(3), common.Hash{}, u(100), u(1000))
	bids := []*types.Order{
		revealedBid(1, 100, 165, 1000),
		revealedBid(2, 100, 164, 1000),
		unrevealed,
	}

	verdicts, err := v.Validate(context.Background(), bids)
	require.NoError(t, err)
	assert.Equal(t, []Verdict{VerdictSufficient, VerdictInsufficient, VerdictUnrevealed}, verdicts)
}

func TestValidate_WorkerCountDoesNotChangeResult(t *testing.T) {
	bids := make([]*types.Order, 0, 257)
	for i := uint64(0); i < 257; i++ {
		bids = append(bids, revealedBid(i, 100, 150+i%30, 1000))
	}

	serial, err := NewValidator(&ValidatorConfig{Parameters: unitParams(360), Workers: 1}, zap.NewNop()).
		Validate(context.Background(), bids)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8, 64, 1000} {
		t.Run(fmt.Sprintf("workers_%d", workers), func(t *testing.T) {
			parallel, err := NewValidator(&ValidatorConfig{Parameters: unitParams(360), Workers: workers}, zap.NewNop()).
				Validate(context.Background(), bids)
			require.NoError(t, err)
			assert.Equal(t, serial, parallel)
		})
	}
}

func TestValidate_Empty(t *testing.T) {
	verdicts, err := NewValidator(&ValidatorConfig{Parameters: unitParams(360)}, zap.NewNop()).
		Validate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, verdicts)
}

func TestValidate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewValidator(&ValidatorConfig{Parameters: unitParams(360)}, zap.NewNop()).
		Validate(ctx, []*types.Order{revealedBid(1, 1, 1, 1)})
	require.ErrorIs(t, err, context.Canceled)
}
