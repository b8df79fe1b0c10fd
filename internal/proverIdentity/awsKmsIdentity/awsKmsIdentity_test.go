package awsKmsIdentity

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	oidECPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// fakeKMS signs like KMS does: DER output, no recovery id, and S not normalized.
type fakeKMS struct {
	key    *cryptoEcdsa.PrivateKey
	highS  bool
	signed int
}

func (f *fakeKMS) GetPublicKey(_ context.Context, params *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	if *params.KeyId != "test-key" {
		return nil, fmt.Errorf("NotFoundException: key %s", *params.KeyId)
	}
	pub := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{Algorithm: oidECPublicKey, Parameters: oidSecp256k1},
		PublicKey:       asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.signed++
	sig, err := crypto.Sign(params.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(curveOrder, s)
	}
	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func newFake(t *testing.T, highS bool) *fakeKMS {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &fakeKMS{key: key, highS: highS}
}

func TestAWSKMSIdentity_Address(t *testing.T) {
	fake := newFake(t, false)
	id, err := NewAWSKMSIdentity(context.Background(), fake, "test-key", zap.NewNop())
	require.NoError(t, err)

	address, err := id.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(fake.key.PublicKey), address)
}

func TestAWSKMSIdentity_Sign(t *testing.T) {
	for _, highS := range []bool{false, true} {
		t.Run(fmt.Sprintf("highS=%v", highS), func(t *testing.T) {
			fake := newFake(t, highS)
			id, err := NewAWSKMSIdentity(context.Background(), fake, "test-key", zap.NewNop())
			require.NoError(t, err)

			for i := 0; i < 8; i++ {
				digest := crypto.Keccak256Hash([]byte{byte(i)})
				signature, err := id.Sign(context.Background(), digest)
				require.NoError(t, err)
				require.Len(t, signature, 65)

				v := signature[64]
				assert.True(t, v == 27 || v == 28, "v = %d", v)
				s := new(big.Int).SetBytes(signature[32:64])
				assert.True(t, s.Cmp(halfOrder) <= 0, "S must be low")

				sig := append([]byte{}, signature...)
				sig[64] -= 27
				pub, err := crypto.SigToPub(digest[:], sig)
				require.NoError(t, err)
				assert.Equal(t, crypto.PubkeyToAddress(fake.key.PublicKey), crypto.PubkeyToAddress(*pub))
			}
			assert.Equal(t, 8, fake.signed)
		})
	}
}

func TestAWSKMSIdentity_Errors(t *testing.T) {
	fake := newFake(t, false)
	_, err := NewAWSKMSIdentity(context.Background(), fake, "missing-key", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-key")

	_, err = parseECDSAPublicKey([]byte{0x30, 0x01})
	require.Error(t, err)
}

func TestAWSKMSIdentity_WrongKeySignature(t *testing.T) {
	fake := newFake(t, false)
	id, err := NewAWSKMSIdentity(context.Background(), fake, "test-key", zap.NewNop())
	require.NoError(t, err)

	// Rotate the signing key behind the identity's back.
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	fake.key = other

	_, err = id.Sign(context.Background(), common.Hash{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recovery")
}
