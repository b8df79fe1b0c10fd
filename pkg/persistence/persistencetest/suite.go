// Package persistencetest holds the behaviour every IRunStore backend must share.
package persistencetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/zkauction-go/pkg/persistence"
)

// NewRun returns a small, fully populated run record.
func NewRun(label string, createdAt int64) *persistence.RunRecord {
	return &persistence.RunRecord{
		ID:                    uuid.NewString(),
		AuctionLabel:          label,
		InputHash:             "0x" + fmt.Sprintf("%064x", createdAt),
		ProverAddress:         "0x0000000000000000000000000000000000099999",
		AccBidsHash:           "0x" + fmt.Sprintf("%064x", 1),
		AccOffersHash:         "0x" + fmt.Sprintf("%064x", 2),
		AuctionParametersHash: "0x" + fmt.Sprintf("%064x", 3),
		AuctionResultRoot:     "0x" + fmt.Sprintf("%064x", 4),
		EncodedPublicValues:   "0x00",
		Cleared:               true,
		ClearingPrice:         "400",
		Volume:                "80",
		Allocations: []*persistence.AllocationRecord{
			{
				Side:             "bid",
				OrderID:          "1",
				Participant:      "0x00000000000000000000000000000000000b0001",
				Status:           "partiallyAssigned",
				StatusTag:        1,
				Amount:           "100",
				SettledAmount:    "80",
				RepurchaseAmount: "83",
				Collateral:       "1000",
			},
		},
		CreatedAt: createdAt,
	}
}

// Opener returns a fresh, empty store. The suite closes it.
type Opener func(t *testing.T) persistence.IRunStore

// Run exercises the IRunStore contract against a backend.
func Run(t *testing.T, open Opener) {
	t.Run("save and load", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		run := NewRun("auction-a", 100)
		require.NoError(t, store.SaveRun(run))

		loaded, err := store.LoadRun(run.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, run, loaded)
	})

	t.Run("load not found", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		loaded, err := store.LoadRun(uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("save rejects nil and missing id", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		err := store.SaveRun(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil RunRecord")

		run := NewRun("auction-a", 1)
		run.ID = ""
		require.Error(t, store.SaveRun(run))
	})

	t.Run("save overwrites", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		run := NewRun("auction-a", 100)
		require.NoError(t, store.SaveRun(run))
		run.Signature = "0xabcdef"
		require.NoError(t, store.SaveRun(run))

		loaded, err := store.LoadRun(run.ID)
		require.NoError(t, err)
		assert.Equal(t, "0xabcdef", loaded.Signature)
	})

	t.Run("list sorted by creation", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		runs, err := store.ListRuns()
		require.NoError(t, err)
		assert.Empty(t, runs)

		for _, createdAt := range []int64{300, 100, 200} {
			require.NoError(t, store.SaveRun(NewRun("auction-a", createdAt)))
		}

		runs, err = store.ListRuns()
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, int64(100), runs[0].CreatedAt)
		assert.Equal(t, int64(200), runs[1].CreatedAt)
		assert.Equal(t, int64(300), runs[2].CreatedAt)
	})

	t.Run("delete", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		run := NewRun("auction-a", 100)
		require.NoError(t, store.SaveRun(run))
		require.NoError(t, store.DeleteRun(run.ID))

		loaded, err := store.LoadRun(run.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		runs, err := store.ListRuns()
		require.NoError(t, err)
		assert.Empty(t, runs)

		// Idempotent
		require.NoError(t, store.DeleteRun(run.ID))
	})

	t.Run("latest run tracking", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		id, err := store.GetLatestRun("auction-a")
		require.NoError(t, err)
		assert.Empty(t, id)

		require.NoError(t, store.SetLatestRun("auction-a", "run-1"))
		require.NoError(t, store.SetLatestRun("auction-b", "run-2"))
		require.NoError(t, store.SetLatestRun("auction-a", "run-3"))

		id, err = store.GetLatestRun("auction-a")
		require.NoError(t, err)
		assert.Equal(t, "run-3", id)

		id, err = store.GetLatestRun("auction-b")
		require.NoError(t, err)
		assert.Equal(t, "run-2", id)
	})

	t.Run("delete clears latest pointers", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		deleted := NewRun("auction-a", 100)
		kept := NewRun("auction-b", 200)
		require.NoError(t, store.SaveRun(deleted))
		require.NoError(t, store.SaveRun(kept))
		require.NoError(t, store.SetLatestRun("auction-a", deleted.ID))
		require.NoError(t, store.SetLatestRun("auction-a-copy", deleted.ID))
		require.NoError(t, store.SetLatestRun("auction-b", kept.ID))

		require.NoError(t, store.DeleteRun(deleted.ID))

		for _, label := range []string{"auction-a", "auction-a-copy"} {
			id, err := store.GetLatestRun(label)
			require.NoError(t, err)
			assert.Empty(t, id, "label %s still points at the deleted run", label)
		}
		id, err := store.GetLatestRun("auction-b")
		require.NoError(t, err)
		assert.Equal(t, kept.ID, id)
	})

	t.Run("loaded records are copies", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		run := NewRun("auction-a", 100)
		require.NoError(t, store.SaveRun(run))
		run.Allocations[0].SettledAmount = "0"

		loaded, err := store.LoadRun(run.ID)
		require.NoError(t, err)
		assert.Equal(t, "80", loaded.Allocations[0].SettledAmount)

		loaded.Allocations[0].Status = "unassigned"
		again, err := store.LoadRun(run.ID)
		require.NoError(t, err)
		assert.Equal(t, "partiallyAssigned", again.Allocations[0].Status)
	})

	t.Run("closed", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.HealthCheck())
		require.NoError(t, store.Close())
		require.NoError(t, store.Close(), "close is idempotent")

		err := store.SaveRun(NewRun("auction-a", 1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")

		_, err = store.LoadRun("x")
		require.Error(t, err)
		_, err = store.ListRuns()
		require.Error(t, err)
		require.Error(t, store.DeleteRun("x"))
		require.Error(t, store.SetLatestRun("a", "x"))
		_, err = store.GetLatestRun("a")
		require.Error(t, err)
		require.Error(t, store.HealthCheck())
	})

	t.Run("thread safety", func(t *testing.T) {
		store := open(t)
		defer func() { _ = store.Close() }()

		var wg sync.WaitGroup
		numGoroutines := 8
		numOperations := 20

		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					run := NewRun(fmt.Sprintf("auction-%d", id), int64(id*1000+j))
					assert.NoError(t, store.SaveRun(run))
					assert.NoError(t, store.SetLatestRun(run.AuctionLabel, run.ID))
					_, err := store.LoadRun(run.ID)
					assert.NoError(t, err)
				}
			}(i)
		}
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					_, err := store.ListRuns()
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		runs, err := store.ListRuns()
		require.NoError(t, err)
		assert.Len(t, runs, numGoroutines*numOperations)
	})
}
