package util

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PackedEncoder builds Solidity abi.encodePacked output field by field.
// Integers are written big-endian at their declared width, addresses as 20 bytes.
type PackedEncoder struct {
	buf []byte
}

func NewPackedEncoder(sizeHint int) *PackedEncoder {
	return &PackedEncoder{buf: make([]byte, 0, sizeHint)}
}

func (p *PackedEncoder) Uint8(v uint8) *PackedEncoder {
	p.buf = append(p.buf, v)
	return p
}

func (p *PackedEncoder) Address(addr common.Address) *PackedEncoder {
	p.buf = append(p.buf, addr.Bytes()...)
	return p
}

func (p *PackedEncoder) Bytes32(h [32]byte) *PackedEncoder {
	p.buf = append(p.buf, h[:]...)
	return p
}

// Uint96 appends a 96-bit integer already held as 12 big-endian bytes.
func (p *PackedEncoder) Uint96(v [12]byte) *PackedEncoder {
	p.buf = append(p.buf, v[:]...)
	return p
}

// Uint256 appends v as 32 big-endian bytes. A nil value encodes as zero.
func (p *PackedEncoder) Uint256(v *uint256.Int) *PackedEncoder {
	var word [32]byte
	if v != nil {
		word = v.Bytes32()
	}
	p.buf = append(p.buf, word[:]...)
	return p
}

func (p *PackedEncoder) Bytes() []byte {
	return p.buf
}

func publicValuesArguments() (abi.Arguments, error) {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		return nil, err
	}
	bytes32Type, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return nil, err
	}
	return abi.Arguments{
		{Name: "proverAddress", Type: addressType},
		{Name: "accBidsHash", Type: bytes32Type},
		{Name: "accOffersHash", Type: bytes32Type},
		{Name: "auctionParametersHash", Type: bytes32Type},
		{Name: "auctionResultRoot", Type: bytes32Type},
	}, nil
}

// EncodePublicValues ABI-encodes the verifier's public values tuple
// (address, bytes32, bytes32, bytes32, bytes32).
func EncodePublicValues(prover common.Address, accBids, accOffers, paramsHash, resultRoot [32]byte) ([]byte, error) {
	arguments, err := publicValuesArguments()
	if err != nil {
		return nil, err
	}

	encoded, err := arguments.Pack(prover, accBids, accOffers, paramsHash, resultRoot)
	if err != nil {
		return nil, err
	}

	return encoded, nil
}

// DecodePublicValues is the inverse of EncodePublicValues.
func DecodePublicValues(data []byte) (prover common.Address, hashes [4][32]byte, err error) {
	arguments, err := publicValuesArguments()
	if err != nil {
		return common.Address{}, hashes, err
	}

	out, err := arguments.Unpack(data)
	if err != nil {
		return common.Address{}, hashes, err
	}
	if len(out) != 5 {
		return common.Address{}, hashes, fmt.Errorf("expected 5 public values, got %d", len(out))
	}

	var ok bool
	if prover, ok = out[0].(common.Address); !ok {
		return common.Address{}, hashes, fmt.Errorf("unexpected type %T for proverAddress", out[0])
	}
	for i := 0; i < 4; i++ {
		if hashes[i], ok = out[i+1].([32]byte); !ok {
			return common.Address{}, hashes, fmt.Errorf("unexpected type %T for public value %d", out[i+1], i+1)
		}
	}
	return prover, hashes, nil
}
