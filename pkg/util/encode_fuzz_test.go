package util

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func FuzzEncodePublicValuesRoundTrip(f *testing.F) {
	f.Add(make([]byte, 20), make([]byte, 32), make([]byte, 32), make([]byte, 32), make([]byte, 32))
	f.Add([]byte("01234567890123456789"), []byte("bids"), []byte("offers"), []byte("params"), []byte("root"))

	f.Fuzz(func(t *testing.T, prover, a, b, c, d []byte) {
		addr := common.BytesToAddress(prover)
		h := [4][32]byte{
			common.BytesToHash(a),
			common.BytesToHash(b),
			common.BytesToHash(c),
			common.BytesToHash(d),
		}

		encoded, err := EncodePublicValues(addr, h[0], h[1], h[2], h[3])
		require.NoError(t, err)
		require.Len(t, encoded, 5*32)

		decodedAddr, decoded, err := DecodePublicValues(encoded)
		require.NoError(t, err)
		require.Equal(t, addr, decodedAddr)
		require.Equal(t, h, decoded)
	})
}
