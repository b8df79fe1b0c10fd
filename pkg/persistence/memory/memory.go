package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/zkauction-go/pkg/persistence"
)

// MemoryRunStore is an in-memory implementation of IRunStore.
// This implementation is intended for TESTING ONLY.
//
// All data is stored in memory and will be lost when the process exits.
// Records are deep copied on the way in and out.
type MemoryRunStore struct {
	mu sync.RWMutex

	// runs: run ID -> record
	runs map[string]*persistence.RunRecord

	// latest: auction label -> run ID
	latest map[string]string

	closed bool
}

// NewMemoryRunStore creates a new in-memory run store.
// Prints a loud warning since this should only be used for testing.
func NewMemoryRunStore() *MemoryRunStore {
	fmt.Println("⚠️  WARNING: Using in-memory run store - ALL RUN RECORDS WILL BE LOST ON EXIT")
	fmt.Println("⚠️  This should ONLY be used for testing. Set AUCTION_PERSISTENCE_TYPE=badger to keep records")

	return &MemoryRunStore{
		runs:   make(map[string]*persistence.RunRecord),
		latest: make(map[string]string),
	}
}

func (m *MemoryRunStore) SaveRun(run *persistence.RunRecord) error {
	if run == nil {
		return fmt.Errorf("cannot save nil RunRecord")
	}
	if run.ID == "" {
		return fmt.Errorf("cannot save RunRecord without id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.runs[run.ID] = run.Clone()
	return nil
}

func (m *MemoryRunStore) LoadRun(id string) (*persistence.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	run, exists := m.runs[id]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return run.Clone(), nil
}

func (m *MemoryRunStore) ListRuns() ([]*persistence.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	result := make([]*persistence.RunRecord, 0, len(m.runs))
	for _, run := range m.runs {
		result = append(result, run.Clone())
	}
	persistence.SortRuns(result)
	return result, nil
}

func (m *MemoryRunStore) DeleteRun(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	delete(m.runs, id)
	for label, latest := range m.latest {
		if latest == id {
			delete(m.latest, label)
		}
	}
	return nil
}

func (m *MemoryRunStore) SetLatestRun(auctionLabel string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	m.latest[auctionLabel] = id
	return nil
}

func (m *MemoryRunStore) GetLatestRun(auctionLabel string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", fmt.Errorf("persistence layer is closed")
	}

	return m.latest[auctionLabel], nil
}

// Close shuts down the store.
func (m *MemoryRunStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryRunStore) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return nil
}
