package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderID(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    uint64
		wantErr bool
	}{
		{"decimal", "42", 42, false},
		{"hex", "0x2a", 42, false},
		{"odd hex", "0x2", 2, false},
		{"max uint96", "79228162514264337593543950335", 0, false},
		{"overflow uint96", "79228162514264337593543950336", 0, true},
		{"empty", "", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := ParseOrderID(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.want != 0 {
				assert.Equal(t, OrderIDFromUint64(tc.want), id)
			} else {
				assert.Equal(t, tc.input, id.String())
			}
		})
	}
}

func TestOrderIDFromBig(t *testing.T) {
	id, err := OrderIDFromBig(big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, OrderIDFromUint64(7), id)
	assert.Equal(t, big.NewInt(7), id.Big())

	_, err = OrderIDFromBig(new(big.Int).Lsh(big.NewInt(1), 96))
	require.Error(t, err)

	_, err = OrderIDFromBig(big.NewInt(-1))
	require.Error(t, err)
}

func TestOrderKey(t *testing.T) {
	addr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	key := OrderKey(addr, OrderIDFromUint64(5))
	assert.Equal(t, addr.Bytes(), key[:20])
	assert.Equal(t, byte(5), key[31])
}

func TestPriceCommitment(t *testing.T) {
	price := uint256.NewInt(500)
	nonce := uint256.NewInt(12345)

	b1 := price.Bytes32()
	b2 := nonce.Bytes32()
	expected := crypto.Keccak256Hash(append(b1[:], b2[:]...))

	assert.Equal(t, expected, PriceCommitment(price, nonce))
	assert.NotEqual(t, expected, PriceCommitment(uint256.NewInt(501), nonce))
}

func TestOrderClone_NoAliasing(t *testing.T) {
	bid := NewBid(common.HexToAddress("0x01"), OrderIDFromUint64(1), common.Hash{}, uint256.NewInt(100), uint256.NewInt(200))
	bid.Reveal(uint256.NewInt(400), uint256.NewInt(1))

	clone := bid.Clone()
	clone.Bid.Amount.SetUint64(1)
	clone.RevealedPrice.SetUint64(1)

	assert.Equal(t, uint64(100), bid.Amount().Uint64())
	assert.Equal(t, uint64(400), bid.RevealedPrice.Uint64())
	assert.True(t, clone.IsRevealed())
}

func TestOrderAccessors(t *testing.T) {
	offer := NewOffer(common.HexToAddress("0x02"), OrderIDFromUint64(2), common.Hash{}, uint256.NewInt(80))
	assert.Equal(t, SideOffer, offer.Side)
	assert.Equal(t, uint64(80), offer.Amount().Uint64())
	assert.True(t, offer.Collateral().IsZero())
	assert.False(t, offer.IsRevealed())
}

func TestCompareIdentity(t *testing.T) {
	a := NewOffer(common.HexToAddress("0x02"), OrderIDFromUint64(1), common.Hash{}, nil)
	b := NewOffer(common.HexToAddress("0x01"), OrderIDFromUint64(2), common.Hash{}, nil)
	c := NewOffer(common.HexToAddress("0x01"), OrderIDFromUint64(1), common.Hash{}, nil)

	assert.Negative(t, CompareIdentity(a, b))
	assert.Positive(t, CompareIdentity(a, c))
	assert.Zero(t, CompareIdentity(c, c))
}

func TestEvent_EncodePackedLengths(t *testing.T) {
	addr := common.HexToAddress("0x03")
	id := OrderIDFromUint64(3)
	one := uint256.NewInt(1)

	testCases := []struct {
		event  *Event
		length int
	}{
		{NewLockBidEvent(addr, id, common.Hash{1}, one, one), 33 + 96},
		{NewUnlockBidEvent(addr, id, one), 33 + 32},
		{NewRevealBidEvent(addr, id, one, one), 33 + 64},
		{NewLockOfferEvent(addr, id, common.Hash{1}, one), 33 + 64},
		{NewUnlockOfferEvent(addr, id, one), 33 + 32},
		{NewRevealOfferEvent(addr, id, one, one), 33 + 64},
	}

	for _, tc := range testCases {
		t.Run(tc.event.Kind.String(), func(t *testing.T) {
			require.NoError(t, tc.event.Validate())
			encoded := tc.event.EncodePacked()
			require.Len(t, encoded, tc.length)
			assert.Equal(t, uint8(tc.event.Kind), encoded[0])
			assert.Equal(t, addr.Bytes(), encoded[1:21])
		})
	}
}

func TestEvent_KindTagSeparatesLookalikes(t *testing.T) {
	addr := common.HexToAddress("0x04")
	id := OrderIDFromUint64(4)
	one := uint256.NewInt(1)

	unlockBid := NewUnlockBidEvent(addr, id, one).EncodePacked()
	unlockOffer := NewUnlockOfferEvent(addr, id, one).EncodePacked()
	assert.NotEqual(t, unlockBid, unlockOffer)
}

func TestEvent_Validate(t *testing.T) {
	addr := common.HexToAddress("0x05")
	id := OrderIDFromUint64(5)

	require.Error(t, (&Event{Kind: EventLockBid, Participant: addr, ID: id, Amount: uint256.NewInt(1)}).Validate())
	require.Error(t, (&Event{Kind: EventRevealOffer, Participant: addr, ID: id, Price: uint256.NewInt(1)}).Validate())
	require.Error(t, (&Event{Kind: 99}).Validate())
}

func TestEventKind_RoundTrip(t *testing.T) {
	for kind := EventLockBid; kind <= EventRevealOffer; kind++ {
		parsed, err := ParseEventKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}
	assert.Equal(t, SideBid, EventRevealBid.Side())
	assert.Equal(t, SideOffer, EventUnlockOffer.Side())

	_, err := ParseEventKind("cancel")
	require.Error(t, err)
}

func TestAuctionParameters_Hash(t *testing.T) {
	params := &AuctionParameters{
		PurchaseToken:   common.HexToAddress("0xaaaa"),
		PurchasePrice:   uint256.NewInt(1_000_000),
		CollateralToken: common.HexToAddress("0xbbbb"),
		CollateralPrice: uint256.NewInt(2_000_000),
		DayCount:        uint256.NewInt(30),
	}

	// Recreate the onchain packing by hand.
	var packed []byte
	packed = append(packed, params.PurchaseToken.Bytes()...)
	w := params.PurchasePrice.Bytes32()
	packed = append(packed, w[:]...)
	packed = append(packed, params.CollateralToken.Bytes()...)
	w = params.CollateralPrice.Bytes32()
	packed = append(packed, w[:]...)
	w = params.DayCount.Bytes32()
	packed = append(packed, w[:]...)

	assert.Equal(t, crypto.Keccak256Hash(packed), params.Hash())
	require.NoError(t, params.Validate())

	params.PurchasePrice = new(uint256.Int)
	require.Error(t, params.Validate())
}

func TestInitialAccumulators_NonZero(t *testing.T) {
	acc := InitialAccumulators()
	assert.NotEqual(t, common.Hash{}, acc.BidsHash)
	assert.NotEqual(t, common.Hash{}, acc.OffersHash)
	assert.NotEqual(t, acc.BidsHash, acc.OffersHash)
}

func TestAllocation_LeafEncoding(t *testing.T) {
	alloc := &Allocation{
		ID:            OrderIDFromUint64(9),
		Participant:   common.HexToAddress("0x06"),
		Status:        StatusPartiallyAssigned,
		SettledAmount: uint256.NewInt(77),
	}
	encoded := alloc.LeafEncoding()
	require.Len(t, encoded, 65)
	assert.Equal(t, byte(9), encoded[11])
	assert.Equal(t, alloc.Participant.Bytes(), encoded[12:32])
	assert.Equal(t, byte(StatusPartiallyAssigned), encoded[32])
	assert.Equal(t, byte(77), encoded[64])
	assert.Equal(t, crypto.Keccak256Hash(encoded), alloc.LeafHash())
}

func TestPublicValues_EncodeDecode(t *testing.T) {
	pv := &PublicValues{
		ProverAddress:         common.HexToAddress("0x07"),
		AccBidsHash:           common.HexToHash("0x11"),
		AccOffersHash:         common.HexToHash("0x22"),
		AuctionParametersHash: common.HexToHash("0x33"),
		AuctionResultRoot:     common.HexToHash("0x44"),
	}
	encoded, err := pv.Encode()
	require.NoError(t, err)
	require.Len(t, encoded, 160)

	decoded, err := DecodePublicValues(encoded)
	require.NoError(t, err)
	assert.Equal(t, pv, decoded)

	digest, err := pv.Digest()
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash(encoded), digest)
}
