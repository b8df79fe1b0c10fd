package types

import "github.com/pkg/errors"

// Fatal conditions. Callers match them with errors.Is; producers wrap them with context.
var (
	// ErrChainMismatch means the replayed accumulators differ from the ledger's stored values.
	ErrChainMismatch = errors.New("hash chain mismatch")

	// ErrArithmeticOverflow means a sum or product left the uint256 range, or totals failed to conserve.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrInvalidInput means the batch is malformed: wrong-side events, missing fields, bad parameters.
	ErrInvalidInput = errors.New("invalid input")
)
