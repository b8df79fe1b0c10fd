// Package proverIdentity resolves who submits a proof and signs the public-values digest
// on their behalf.
package proverIdentity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/internal/aws"
	"github.com/Layr-Labs/zkauction-go/internal/proverIdentity/awsKmsIdentity"
	"github.com/Layr-Labs/zkauction-go/internal/proverIdentity/localIdentity"
	"github.com/Layr-Labs/zkauction-go/pkg/config"
)

// ErrCannotSign is returned by identities that only know an address.
var ErrCannotSign = fmt.Errorf("prover identity cannot sign")

type IProverIdentity interface {
	Address(ctx context.Context) (common.Address, error)
	Sign(ctx context.Context, digest common.Hash) ([]byte, error)
}

// StaticIdentity is a bare address, for when signing happens elsewhere.
type StaticIdentity struct {
	address common.Address
}

func NewStaticIdentity(address common.Address) *StaticIdentity {
	return &StaticIdentity{address: address}
}

func (s *StaticIdentity) Address(_ context.Context) (common.Address, error) {
	return s.address, nil
}

func (s *StaticIdentity) Sign(_ context.Context, _ common.Hash) ([]byte, error) {
	return nil, ErrCannotSign
}

// New builds the identity selected by cfg. ProverTypeNone yields nil.
func New(ctx context.Context, cfg *config.ProverConfig, l *zap.Logger) (IProverIdentity, error) {
	switch cfg.Type {
	case config.ProverTypeNone, "":
		return nil, nil
	case config.ProverTypeStatic:
		if !common.IsHexAddress(cfg.Address) {
			return nil, fmt.Errorf("invalid prover address %q", cfg.Address)
		}
		return NewStaticIdentity(common.HexToAddress(cfg.Address)), nil
	case config.ProverTypeLocal:
		return localIdentity.NewLocalIdentityFromHex(cfg.PrivateKey, l)
	case config.ProverTypeAWSKMS:
		awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		arn, err := aws.CallerARN(ctx, awsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve AWS caller identity: %w", err)
		}
		l.Sugar().Infow("Using AWS credentials", "arn", arn, "region", awsCfg.Region)
		return awsKmsIdentity.NewAWSKMSIdentity(ctx, kms.NewFromConfig(awsCfg), cfg.KMSKeyID, l)
	default:
		return nil, fmt.Errorf("unsupported prover type %q", cfg.Type)
	}
}

// ProofRequest is what gets handed to the proving service: the encoded public values and
// the prover's signature over their keccak256 digest.
type ProofRequest struct {
	ProverAddress       common.Address `json:"proverAddress"`
	EncodedPublicValues hexutil.Bytes  `json:"encodedPublicValues"`
	Digest              common.Hash    `json:"digest"`
	Signature           hexutil.Bytes  `json:"signature"`
}

// NewProofRequest signs encoded public values. The identity's address must be the one the
// values were computed for, since the verifier binds the proof to it.
func NewProofRequest(ctx context.Context, id IProverIdentity, proverAddress common.Address, encoded []byte) (*ProofRequest, error) {
	address, err := id.Address(ctx)
	if err != nil {
		return nil, err
	}
	if address != proverAddress {
		return nil, fmt.Errorf("identity %s does not match prover address %s", address.Hex(), proverAddress.Hex())
	}

	digest := crypto.Keccak256Hash(encoded)
	signature, err := id.Sign(ctx, digest)
	if err != nil {
		return nil, err
	}
	return &ProofRequest{
		ProverAddress:       address,
		EncodedPublicValues: encoded,
		Digest:              digest,
		Signature:           signature,
	}, nil
}

// Verify checks the digest and that the signature recovers to ProverAddress. Both the
// 0/1 and 27/28 recovery id conventions are accepted.
func (r *ProofRequest) Verify() error {
	if crypto.Keccak256Hash(r.EncodedPublicValues) != r.Digest {
		return fmt.Errorf("digest does not match encoded public values")
	}
	if len(r.Signature) != crypto.SignatureLength {
		return fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(r.Signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, r.Signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(r.Digest[:], sig)
	if err != nil {
		return fmt.Errorf("failed to recover signer: %w", err)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != r.ProverAddress {
		return fmt.Errorf("signature recovers to %s, expected %s", signer.Hex(), r.ProverAddress.Hex())
	}
	return nil
}
