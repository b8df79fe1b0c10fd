package auction

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/hashchain"
	"github.com/Layr-Labs/zkauction-go/pkg/merkle"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

var (
	borrower = common.HexToAddress("0x00000000000000000000000000000000000b0001")
	lender   = common.HexToAddress("0x00000000000000000000000000000000000e0001")
	prover   = common.HexToAddress("0x0000000000000000000000000000000000099999")
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

// testLedger records events the way the ledger contract would emit them.
type testLedger struct {
	bids   []*types.Event
	offers []*types.Event
}

func (l *testLedger) bid(id, price, amount, collateral uint64, reveal bool) {
	nonce := u(id * 31)
	oid := types.OrderIDFromUint64(id)
	l.bids = append(l.bids, types.NewLockBidEvent(borrower, oid, types.PriceCommitment(u(price), nonce), u(amount), u(collateral)))
	if reveal {
		l.bids = append(l.bids, types.NewRevealBidEvent(borrower, oid, u(price), nonce))
	}
}

func (l *testLedger) offer(id, price, amount uint64, reveal bool) {
	nonce := u(id * 17)
	oid := types.OrderIDFromUint64(id)
	l.offers = append(l.offers, types.NewLockOfferEvent(lender, oid, types.PriceCommitment(u(price), nonce), u(amount)))
	if reveal {
		l.offers = append(l.offers, types.NewRevealOfferEvent(lender, oid, u(price), nonce))
	}
}

func (l *testLedger) input() *Input {
	initial := types.InitialAccumulators()
	return &Input{
		BidEvents:   l.bids,
		OfferEvents: l.offers,
		Expected: types.AccumulatorState{
			BidsHash:   hashchain.Accumulate(initial.BidsHash, l.bids),
			OffersHash: hashchain.Accumulate(initial.OffersHash, l.offers),
		},
		Parameters: &types.AuctionParameters{
			PurchaseToken:   common.HexToAddress("0x00000000000000000000000000000000000000a1"),
			PurchasePrice:   u(1),
			CollateralToken: common.HexToAddress("0x00000000000000000000000000000000000000c1"),
			CollateralPrice: u(1),
			DayCount:        u(30),
		},
		ProverAddress: prover,
	}
}

func run(t *testing.T, in *Input) *Result {
	t.Helper()
	res, err := NewAuctioneer(nil, zap.NewNop()).Run(context.Background(), in)
	require.NoError(t, err)
	return res
}

type leaf struct {
	side    types.Side
	id      uint64
	status  types.Status
	settled uint64
}

func leaves(allocs []*types.Allocation) []leaf {
	out := make([]leaf, len(allocs))
	for i, a := range allocs {
		out[i] = leaf{a.Side, a.ID.Big().Uint64(), a.Status, a.SettledAmount.Uint64()}
	}
	return out
}

func TestRun_WorkedExample(t *testing.T) {
	l := &testLedger{}
	l.bid(1, 500, 100, 1000, true)
	l.bid(2, 400, 50, 1000, true)
	l.offer(3, 300, 80, true)
	l.offer(4, 600, 100, true)
	in := l.input()

	res := run(t, in)
	require.True(t, res.Cleared)
	assert.Equal(t, uint64(400), res.ClearingPrice.Uint64())
	assert.Equal(t, uint64(80), res.Volume.Uint64())
	assert.Equal(t, []leaf{
		{types.SideBid, 1, types.StatusPartiallyAssigned, 80},
		{types.SideBid, 2, types.StatusUnassigned, 0},
		{types.SideOffer, 3, types.StatusFullyAssigned, 80},
		{types.SideOffer, 4, types.StatusUnassigned, 0},
	}, leaves(res.Allocations))

	pv := res.PublicValues
	assert.Equal(t, prover, pv.ProverAddress)
	assert.Equal(t, in.Expected.BidsHash, pv.AccBidsHash)
	assert.Equal(t, in.Expected.OffersHash, pv.AccOffersHash)
	assert.Equal(t, in.Parameters.Hash(), pv.AuctionParametersHash)

	tree := merkle.NewMerkleTree()
	for _, a := range res.Allocations {
		tree.Insert(merkle.HashAllocation(a))
	}
	assert.Equal(t, common.Hash(tree.Root()), pv.AuctionResultRoot)

	require.Len(t, res.Encoded, 160)
	decoded, err := types.DecodePublicValues(res.Encoded)
	require.NoError(t, err)
	assert.Equal(t, pv, decoded)
}

func TestRun_ZeroOffers(t *testing.T) {
	l := &testLedger{}
	l.bid(1, 500, 100, 1000, true)
	l.bid(2, 400, 50, 1000, true)
	l.bid(3, 450, 10, 1000, false)

	res := run(t, l.input())
	assert.False(t, res.Cleared)
	assert.True(t, res.Volume.IsZero())
	assert.Equal(t, []leaf{
		{types.SideBid, 1, types.StatusUnassigned, 0},
		{types.SideBid, 2, types.StatusUnassigned, 0},
		{types.SideBid, 3, types.StatusUnassigned, 0},
	}, leaves(res.Allocations))
	assert.NotEqual(t, common.Hash{}, res.PublicValues.AuctionResultRoot)
}

func TestRun_EmptyAuction(t *testing.T) {
	res := run(t, (&testLedger{}).input())
	assert.False(t, res.Cleared)
	assert.Empty(t, res.Allocations)
	assert.Equal(t, common.Hash{}, res.PublicValues.AuctionResultRoot)
	assert.Equal(t, types.InitialBidsAccumulator, res.PublicValues.AccBidsHash)
}

func TestRun_ExcludedOrders(t *testing.T) {
	l := &testLedger{}
	l.bid(7, 500, 100, 1000, true)
	l.bid(6, 500, 100, 10, true) // under-collateralized
	l.bid(5, 500, 100, 1000, false)
	l.offer(9, 300, 100, true)
	l.offer(8, 300, 100, false)

	res := run(t, l.input())
	require.True(t, res.Cleared)
	assert.Equal(t, []leaf{
		{types.SideBid, 7, types.StatusFullyAssigned, 100},
		{types.SideBid, 5, types.StatusUnassigned, 0},
		{types.SideBid, 6, types.StatusInsufficientCollateral, 0},
		{types.SideOffer, 9, types.StatusFullyAssigned, 100},
		{types.SideOffer, 8, types.StatusUnassigned, 0},
	}, leaves(res.Allocations))
}

func TestRun_Deterministic(t *testing.T) {
	l := &testLedger{}
	for i := uint64(1); i <= 30; i++ {
		l.bid(i, 100+10*(i%7), 10*i, 100*i, i%5 != 0)
		l.offer(100+i, 100+15*(i%5), 7*i, i%6 != 0)
	}
	in := l.input()

	first := run(t, in)
	for i := 0; i < 5; i++ {
		again := run(t, in)
		require.Equal(t, first.Encoded, again.Encoded)
		require.Equal(t, leaves(first.Allocations), leaves(again.Allocations))
	}

	parallel, err := NewAuctioneer(&Config{Workers: 7}, zap.NewNop()).Run(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, first.Encoded, parallel.Encoded)
}

func TestRun_ChainTamper(t *testing.T) {
	l := &testLedger{}
	l.bid(1, 500, 100, 1000, true)
	l.offer(2, 300, 80, true)
	in := l.input()

	in.BidEvents = in.BidEvents[:1]
	_, err := NewAuctioneer(nil, zap.NewNop()).Run(context.Background(), in)
	require.ErrorIs(t, err, ErrChainMismatch)
}

func TestRun_InvalidInput(t *testing.T) {
	l := &testLedger{}
	l.bid(1, 500, 100, 1000, true)

	testCases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"missing parameters", func(in *Input) { in.Parameters = nil }},
		{"zero purchase price", func(in *Input) { in.Parameters.PurchasePrice = u(0) }},
		{"zero collateral price", func(in *Input) { in.Parameters.CollateralPrice = u(0) }},
		{"offer event in bid log", func(in *Input) {
			in.BidEvents = append(in.BidEvents, types.NewLockOfferEvent(lender, types.OrderIDFromUint64(3), common.Hash{}, u(1)))
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := l.input()
			tc.mutate(in)
			res, err := NewAuctioneer(nil, zap.NewNop()).Run(context.Background(), in)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Nil(t, res)
		})
	}
}

func TestRun_InclusionProof(t *testing.T) {
	l := &testLedger{}
	l.bid(1, 500, 100, 1000, true)
	l.bid(2, 400, 50, 1000, true)
	l.offer(3, 300, 80, true)

	res := run(t, l.input())
	root := [32]byte(res.PublicValues.AuctionResultRoot)

	proof, err := res.InclusionProof(types.SideBid, borrower, types.OrderIDFromUint64(2))
	require.NoError(t, err)
	assert.True(t, merkle.VerifyProof(proof, root))
	assert.Equal(t, [32]byte(crypto.Keccak256Hash(res.Allocations[1].LeafEncoding())), proof.Leaf)

	_, err = res.InclusionProof(types.SideOffer, borrower, types.OrderIDFromUint64(2))
	require.Error(t, err)
}

func TestRun_ParametersChangeOnlyParametersHash(t *testing.T) {
	l := &testLedger{}
	l.bid(1, 500, 100, 1000, true)
	l.offer(2, 300, 80, true)

	a := run(t, l.input())
	in := l.input()
	in.Parameters.PurchaseToken = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	b := run(t, in)

	assert.NotEqual(t, a.PublicValues.AuctionParametersHash, b.PublicValues.AuctionParametersHash)
	assert.Equal(t, a.PublicValues.AuctionResultRoot, b.PublicValues.AuctionResultRoot)
}
