package localIdentity

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/zkauction-go/pkg/logger"
)

const (
	testKeyHex  = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
)

func recoverSigner(t *testing.T, digest common.Hash, signature []byte) common.Address {
	t.Helper()
	require.Len(t, signature, 65)
	sig := append([]byte{}, signature...)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest[:], sig)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(*pub)
}

func Test_LocalIdentity(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: true})
	require.NoError(t, err)

	t.Run("Should derive the address of a known key", func(t *testing.T) {
		for _, key := range []string{testKeyHex, testKeyHex[2:]} {
			id, err := NewLocalIdentityFromHex(key, l)
			require.NoError(t, err)

			address, err := id.Address(context.Background())
			require.NoError(t, err)
			assert.Equal(t, common.HexToAddress(testAddress), address)
		}
	})

	t.Run("Should sign digests that recover to its address", func(t *testing.T) {
		id, err := NewLocalIdentityFromHex(testKeyHex, l)
		require.NoError(t, err)

		digest := crypto.Keccak256Hash([]byte("public values"))
		signature, err := id.Sign(context.Background(), digest)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(testAddress), recoverSigner(t, digest, signature))
	})

	t.Run("Should generate distinct identities", func(t *testing.T) {
		a, err := GenerateLocalIdentity(l)
		require.NoError(t, err)
		b, err := GenerateLocalIdentity(l)
		require.NoError(t, err)

		addrA, _ := a.Address(context.Background())
		addrB, _ := b.Address(context.Background())
		assert.NotEqual(t, addrA, addrB)

		digest := crypto.Keccak256Hash([]byte("x"))
		signature, err := a.Sign(context.Background(), digest)
		require.NoError(t, err)
		assert.Equal(t, addrA, recoverSigner(t, digest, signature))
	})

	t.Run("Should reject bad keys", func(t *testing.T) {
		_, err := NewLocalIdentityFromHex("0xnothex", l)
		require.Error(t, err)

		_, err = NewLocalIdentity(nil, l)
		require.Error(t, err)
	})
}
