// Package ledger reads an auction's event history and stored accumulators from the
// ledger contract over JSON-RPC.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// Client is the subset of *ethclient.Client the reader needs.
type Client interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

const (
	DefaultPageSize          = 2_000
	DefaultRequestsPerSecond = 10
)

type ReaderConfig struct {
	Address common.Address
	// PageSize is the number of blocks requested per eth_getLogs call.
	PageSize uint64
	// RequestsPerSecond bounds RPC calls; zero uses DefaultRequestsPerSecond.
	RequestsPerSecond float64
}

type Reader struct {
	client   Client
	address  common.Address
	abi      abi.ABI
	pageSize uint64
	limiter  *rate.Limiter
	kinds    map[common.Hash]types.EventKind
	logger   *zap.Logger
}

func NewReader(cfg *ReaderConfig, client Client, l *zap.Logger) (*Reader, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger ABI: %w", err)
	}

	kinds := make(map[common.Hash]types.EventKind, len(EventNames))
	for kind, name := range EventNames {
		kinds[parsed.Events[name].ID] = kind
	}

	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}

	return &Reader{
		client:   client,
		address:  cfg.Address,
		abi:      parsed,
		pageSize: pageSize,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		kinds:    kinds,
		logger:   l,
	}, nil
}

// FetchEvents returns the bid and offer logs emitted in [fromBlock, toBlock], each in
// emission order.
func (r *Reader) FetchEvents(ctx context.Context, fromBlock, toBlock uint64) ([]*types.Event, []*types.Event, error) {
	if toBlock < fromBlock {
		return nil, nil, fmt.Errorf("invalid block range [%d, %d]", fromBlock, toBlock)
	}

	topics := make([]common.Hash, 0, len(r.kinds))
	for topic := range r.kinds {
		topics = append(topics, topic)
	}
	slices.SortFunc(topics, func(a, b common.Hash) int { return a.Cmp(b) })

	var logs []gethtypes.Log
	for start := fromBlock; start <= toBlock; {
		end := min(start+r.pageSize-1, toBlock)
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, nil, err
		}

		page, err := r.client.FilterLogs(ctx, ethereum.FilterQuery{
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
			Addresses: []common.Address{r.address},
			Topics:    [][]common.Hash{topics},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to filter logs in [%d, %d]: %w", start, end, err)
		}
		r.logger.Sugar().Debugw("Fetched ledger logs", "fromBlock", start, "toBlock", end, "logs", len(page))
		logs = append(logs, page...)

		if end == toBlock {
			break
		}
		start = end + 1
	}

	slices.SortFunc(logs, func(a, b gethtypes.Log) int {
		if a.BlockNumber != b.BlockNumber {
			if a.BlockNumber < b.BlockNumber {
				return -1
			}
			return 1
		}
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		default:
			return 0
		}
	})

	var bids, offers []*types.Event
	for i := range logs {
		if logs[i].Removed {
			continue
		}
		event, err := r.DecodeLog(&logs[i])
		if err != nil {
			return nil, nil, err
		}
		if event.Kind.Side() == types.SideBid {
			bids = append(bids, event)
		} else {
			offers = append(offers, event)
		}
	}

	r.logger.Sugar().Infow("Fetched ledger history",
		"fromBlock", fromBlock,
		"toBlock", toBlock,
		"bidEvents", len(bids),
		"offerEvents", len(offers),
	)
	return bids, offers, nil
}

// DecodeLog converts one ledger log into an event.
func (r *Reader) DecodeLog(log *gethtypes.Log) (*types.Event, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("log %s/%d has %d topics, expected 3", log.TxHash.Hex(), log.Index, len(log.Topics))
	}
	kind, ok := r.kinds[log.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("log %s/%d is not a ledger event", log.TxHash.Hex(), log.Index)
	}

	abiEvent := r.abi.Events[EventNames[kind]]
	values, err := abiEvent.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s data: %w", abiEvent.Name, err)
	}

	id, err := types.OrderIDFromBig(log.Topics[2].Big())
	if err != nil {
		return nil, err
	}
	event := &types.Event{
		Kind:        kind,
		Participant: common.BytesToAddress(log.Topics[1].Bytes()),
		ID:          id,
	}

	switch kind {
	case types.EventLockBid:
		err = assign(values, bytes32To(&event.PriceCommitment), uintTo(&event.Amount), uintTo(&event.Collateral))
	case types.EventUnlockBid:
		err = assign(values, uintTo(&event.Collateral))
	case types.EventLockOffer:
		err = assign(values, bytes32To(&event.PriceCommitment), uintTo(&event.Amount))
	case types.EventUnlockOffer:
		err = assign(values, uintTo(&event.Amount))
	case types.EventRevealBid, types.EventRevealOffer:
		err = assign(values, uintTo(&event.Price), uintTo(&event.Nonce))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", abiEvent.Name, err)
	}
	return event, nil
}

// Accumulators reads accBidsHash() and accOffersHash() at the given block.
func (r *Reader) Accumulators(ctx context.Context, blockNumber uint64) (types.AccumulatorState, error) {
	bids, err := r.callBytes32(ctx, "accBidsHash", blockNumber)
	if err != nil {
		return types.AccumulatorState{}, err
	}
	offers, err := r.callBytes32(ctx, "accOffersHash", blockNumber)
	if err != nil {
		return types.AccumulatorState{}, err
	}
	return types.AccumulatorState{BidsHash: bids, OffersHash: offers}, nil
}

func (r *Reader) callBytes32(ctx context.Context, method string, blockNumber uint64) (common.Hash, error) {
	input, err := r.abi.Pack(method)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return common.Hash{}, err
	}

	output, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: input}, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to call %s: %w", method, err)
	}
	values, err := r.abi.Unpack(method, output)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return common.Hash{}, fmt.Errorf("%s returned %d values", method, len(values))
	}
	hash, ok := values[0].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("%s returned %T", method, values[0])
	}
	return common.Hash(hash), nil
}

type setter func(v interface{}) error

func assign(values []interface{}, setters ...setter) error {
	if len(values) != len(setters) {
		return fmt.Errorf("got %d values, expected %d", len(values), len(setters))
	}
	for i, set := range setters {
		if err := set(values[i]); err != nil {
			return err
		}
	}
	return nil
}

func uintTo(dst **uint256.Int) setter {
	return func(v interface{}) error {
		b, ok := v.(*big.Int)
		if !ok {
			return fmt.Errorf("expected *big.Int, got %T", v)
		}
		u, overflow := uint256.FromBig(b)
		if overflow {
			return fmt.Errorf("value %s overflows uint256", b)
		}
		*dst = u
		return nil
	}
}

func bytes32To(dst *common.Hash) setter {
	return func(v interface{}) error {
		b, ok := v.([32]byte)
		if !ok {
			return fmt.Errorf("expected bytes32, got %T", v)
		}
		*dst = b
		return nil
	}
}
