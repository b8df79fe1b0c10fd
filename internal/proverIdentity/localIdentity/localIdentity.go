package localIdentity

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/crypto-libs/pkg/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// LocalIdentity signs with a secp256k1 key held in process memory.
type LocalIdentity struct {
	logger     *zap.Logger
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

func NewLocalIdentity(privateKey *ecdsa.PrivateKey, logger *zap.Logger) (*LocalIdentity, error) {
	if privateKey == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}

	address, err := privateKey.DeriveAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to derive Ethereum address from private key: %w", err)
	}

	logger.Info("Loaded local prover key", zap.String("address", address.String()))

	return &LocalIdentity{
		logger:     logger,
		privateKey: privateKey,
		address:    address,
	}, nil
}

// NewLocalIdentityFromHex accepts the key with or without a 0x prefix.
func NewLocalIdentityFromHex(privateKeyHex string, logger *zap.Logger) (*LocalIdentity, error) {
	privateKey, err := ecdsa.NewPrivateKeyFromHexString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key from hex: %w", err)
	}
	return NewLocalIdentity(privateKey, logger)
}

// GenerateLocalIdentity creates a throwaway key, for tests and dry runs.
func GenerateLocalIdentity(logger *zap.Logger) (*LocalIdentity, error) {
	privateKey, _, err := ecdsa.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ECDSA key: %w", err)
	}
	return NewLocalIdentity(privateKey, logger)
}

func (l *LocalIdentity) Address(_ context.Context) (common.Address, error) {
	return l.address, nil
}

// Sign returns a 65-byte r || s || v signature over digest.
func (l *LocalIdentity) Sign(_ context.Context, digest common.Hash) ([]byte, error) {
	signature, err := l.privateKey.Sign(digest[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign digest: %w", err)
	}

	l.logger.Debug("Signed digest with local key",
		zap.String("digest", digest.Hex()),
		zap.Int("signatureLen", len(signature.Bytes())),
	)

	return signature.Bytes(), nil
}
