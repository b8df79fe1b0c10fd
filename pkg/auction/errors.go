package auction

import "github.com/Layr-Labs/zkauction-go/pkg/types"

// Fatal run errors. A run that returns one of these produces no public values.
var (
	ErrChainMismatch      = types.ErrChainMismatch
	ErrArithmeticOverflow = types.ErrArithmeticOverflow
	ErrInvalidInput       = types.ErrInvalidInput
)
