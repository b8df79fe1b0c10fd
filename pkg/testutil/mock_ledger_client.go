package testutil

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Layr-Labs/zkauction-go/pkg/ledger"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// MockLedgerClient serves ledger logs and accumulator calls from memory.
// It implements ledger.Client.
type MockLedgerClient struct {
	mu           sync.Mutex
	address      common.Address
	abi          abi.ABI
	logs         []gethtypes.Log
	accumulators map[uint64]types.AccumulatorState
	blockIndex   map[uint64]uint

	// FilterCalls counts FilterLogs requests.
	FilterCalls int
}

var _ ledger.Client = (*MockLedgerClient)(nil)

func NewMockLedgerClient(address common.Address) (*MockLedgerClient, error) {
	parsed, err := ledger.ParseABI()
	if err != nil {
		return nil, err
	}
	return &MockLedgerClient{
		address:      address,
		abi:          parsed,
		accumulators: make(map[uint64]types.AccumulatorState),
		blockIndex:   make(map[uint64]uint),
	}, nil
}

// Emit appends events as logs in the given block, numbering them after any earlier logs in that block.
func (m *MockLedgerClient) Emit(block uint64, events ...*types.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range events {
		log, err := EncodeLog(m.abi, m.address, e)
		if err != nil {
			return err
		}
		log.BlockNumber = block
		log.Index = m.blockIndex[block]
		m.blockIndex[block]++
		m.logs = append(m.logs, log)
	}
	return nil
}

// SetAccumulators sets the getter results from block onward.
func (m *MockLedgerClient) SetAccumulators(block uint64, acc types.AccumulatorState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accumulators[block] = acc
}

func (m *MockLedgerClient) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FilterCalls++

	var out []gethtypes.Log
	for _, log := range m.logs {
		if q.FromBlock != nil && log.BlockNumber < q.FromBlock.Uint64() {
			continue
		}
		if q.ToBlock != nil && log.BlockNumber > q.ToBlock.Uint64() {
			continue
		}
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, log.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && !containsHash(q.Topics[0], log.Topics[0]) {
			continue
		}
		out = append(out, log)
	}
	return out, nil
}

func (m *MockLedgerClient) CallContract(_ context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if call.To == nil || *call.To != m.address {
		return nil, fmt.Errorf("call to unknown contract")
	}
	acc := m.accumulatorsAt(blockNumber)

	for _, method := range []string{"accBidsHash", "accOffersHash"} {
		if !bytes.Equal(call.Data, m.abi.Methods[method].ID) {
			continue
		}
		value := acc.BidsHash
		if method == "accOffersHash" {
			value = acc.OffersHash
		}
		return m.abi.Methods[method].Outputs.Pack([32]byte(value))
	}
	return nil, fmt.Errorf("unknown method selector %x", call.Data)
}

func (m *MockLedgerClient) accumulatorsAt(blockNumber *big.Int) types.AccumulatorState {
	acc := types.InitialAccumulators()
	best := uint64(0)
	found := false
	for block, state := range m.accumulators {
		if blockNumber != nil && block > blockNumber.Uint64() {
			continue
		}
		if !found || block >= best {
			best, acc, found = block, state, true
		}
	}
	return acc
}

// EncodeLog builds the log the ledger contract emits for an event.
func EncodeLog(parsed abi.ABI, address common.Address, e *types.Event) (gethtypes.Log, error) {
	abiEvent := parsed.Events[ledger.EventNames[e.Kind]]

	var values []interface{}
	switch e.Kind {
	case types.EventLockBid:
		values = []interface{}{[32]byte(e.PriceCommitment), e.Amount.ToBig(), e.Collateral.ToBig()}
	case types.EventUnlockBid:
		values = []interface{}{e.Collateral.ToBig()}
	case types.EventLockOffer:
		values = []interface{}{[32]byte(e.PriceCommitment), e.Amount.ToBig()}
	case types.EventUnlockOffer:
		values = []interface{}{e.Amount.ToBig()}
	case types.EventRevealBid, types.EventRevealOffer:
		values = []interface{}{e.Price.ToBig(), e.Nonce.ToBig()}
	default:
		return gethtypes.Log{}, fmt.Errorf("unknown event kind %d", e.Kind)
	}

	data, err := abiEvent.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		return gethtypes.Log{}, fmt.Errorf("failed to pack %s: %w", abiEvent.Name, err)
	}
	return gethtypes.Log{
		Address: address,
		Topics: []common.Hash{
			abiEvent.ID,
			common.BytesToHash(e.Participant.Bytes()),
			common.BytesToHash(e.ID[:]),
		},
		Data: data,
	}, nil
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, item := range list {
		if item == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, item := range list {
		if item == h {
			return true
		}
	}
	return false
}
