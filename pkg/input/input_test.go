package input

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/auction"
	"github.com/Layr-Labs/zkauction-go/pkg/testutil"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

var prover = common.HexToAddress("0x0000000000000000000000000000000000099999")

func workedExample() *auction.Input {
	l := testutil.NewLedger().
		Bid(1, 500, 100, 1000, true).
		Bid(2, 400, 50, 1000, true).
		Offer(3, 300, 80, true).
		Offer(4, 600, 100, true).
		LockOffer(5, 700, 10).
		UnlockOffer(5, 10).
		LockBid(6, 450, 10, 100).
		UnlockBid(6, 100)
	return &auction.Input{
		BidEvents:     l.BidEvents,
		OfferEvents:   l.OfferEvents,
		Expected:      l.Accumulators(),
		Parameters:    testutil.UnitParameters(360),
		ProverAddress: prover,
	}
}

func TestRoundTrip(t *testing.T) {
	in := workedExample()
	path := filepath.Join(t.TempDir(), "batch.json")

	b := FromInput(in)
	b.Label = "term-30d"
	require.NoError(t, Write(path, b))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "term-30d", loaded.Label)
	assert.Nil(t, loaded.Initial)

	got, err := loaded.ToInput()
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestLoadedBatchClears(t *testing.T) {
	data, err := json.Marshal(FromInput(workedExample()))
	require.NoError(t, err)

	b, err := Parse(data)
	require.NoError(t, err)
	in, err := b.ToInput()
	require.NoError(t, err)

	res, err := auction.NewAuctioneer(nil, zap.NewNop()).Run(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Cleared)
	assert.Equal(t, uint64(400), res.ClearingPrice.Uint64())
	assert.Equal(t, uint64(80), res.Volume.Uint64())
}

func TestHash(t *testing.T) {
	b := FromInput(workedExample())
	h1, err := b.Hash()
	require.NoError(t, err)

	t.Run("formatting does not matter", func(t *testing.T) {
		indented, err := json.MarshalIndent(b, "", "    ")
		require.NoError(t, err)
		reparsed, err := Parse(indented)
		require.NoError(t, err)

		h2, err := reparsed.Hash()
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	})

	t.Run("hex spelling does not matter", func(t *testing.T) {
		c := FromInput(workedExample())
		c.BidEvents[0].Amount = "0x64"
		c.Parameters.DayCount = "0x168"

		h2, err := c.Hash()
		require.NoError(t, err)
		assert.Equal(t, h1, h2)
	})

	t.Run("explicit announced initial differs", func(t *testing.T) {
		c := FromInput(workedExample())
		initial := Accumulators(types.InitialAccumulators())
		c.Initial = &initial

		h2, err := c.Hash()
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("content matters", func(t *testing.T) {
		c := FromInput(workedExample())
		c.OfferEvents[0].Amount = "81"

		h2, err := c.Hash()
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})

	t.Run("label matters", func(t *testing.T) {
		c := FromInput(workedExample())
		c.Label = "other"

		h2, err := c.Hash()
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})
}

func TestToInput_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *Batch)
		want   string
	}{
		{
			name:   "unknown kind",
			mutate: func(b *Batch) { b.BidEvents[0].Kind = "cancelBid" },
			want:   "unknown event kind",
		},
		{
			name:   "bad amount",
			mutate: func(b *Batch) { b.BidEvents[0].Amount = "1e3" },
			want:   "invalid amount",
		},
		{
			name:   "missing collateral",
			mutate: func(b *Batch) { b.BidEvents[0].Collateral = "" },
			want:   "missing collateral",
		},
		{
			name:   "oversized id",
			mutate: func(b *Batch) { b.OfferEvents[0].ID = "0x01000000000000000000000000" },
			want:   "uint96",
		},
		{
			name:   "null event",
			mutate: func(b *Batch) { b.OfferEvents[1] = nil },
			want:   "null event",
		},
		{
			name:   "bad parameter",
			mutate: func(b *Batch) { b.Parameters.PurchasePrice = "-1" },
			want:   "purchasePrice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := FromInput(workedExample())
			tt.mutate(b)

			_, err := b.ToInput()
			require.Error(t, err)
			assert.ErrorIs(t, err, auction.ErrInvalidInput)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`{"bidEvents": "nope"}`))
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func FuzzParse(f *testing.F) {
	seed, err := json.Marshal(FromInput(workedExample()))
	require.NoError(f, err)
	f.Add(seed)
	f.Add([]byte(`{}`))
	f.Add([]byte(strings.Repeat("[", 64)))

	f.Fuzz(func(t *testing.T, data []byte) {
		b, err := Parse(data)
		if err != nil {
			return
		}
		in, err := b.ToInput()
		if err != nil {
			return
		}
		// Anything that converts must survive a second trip unchanged.
		again, err := FromInput(in).ToInput()
		require.NoError(t, err)
		assert.Equal(t, in, again)
	})
}
