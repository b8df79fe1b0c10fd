package badger

import (
	"testing"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/zkauction-go/pkg/logger"
	"github.com/Layr-Labs/zkauction-go/pkg/persistence"
	"github.com/Layr-Labs/zkauction-go/pkg/persistence/persistencetest"
)

var _ persistence.IRunStore = (*BadgerRunStore)(nil)

func TestBadgerRunStore(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	persistencetest.Run(t, func(t *testing.T) persistence.IRunStore {
		bs, err := NewBadgerRunStore(t.TempDir(), testLogger)
		require.NoError(t, err)
		return bs
	})
}

func TestBadgerRunStore_AcrossRestarts(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bs1, err := NewBadgerRunStore(tmpDir, testLogger)
	require.NoError(t, err)

	run := persistencetest.NewRun("auction-a", 1234567890)
	require.NoError(t, bs1.SaveRun(run))
	require.NoError(t, bs1.SetLatestRun("auction-a", run.ID))
	require.NoError(t, bs1.Close())

	bs2, err := NewBadgerRunStore(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bs2.Close() }()

	loaded, err := bs2.LoadRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, loaded)

	latest, err := bs2.GetLatestRun("auction-a")
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest)
}

func TestBadgerRunStore_SkipsCorruptRecords(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	bs, err := NewBadgerRunStore(t.TempDir(), testLogger)
	require.NoError(t, err)
	defer func() { _ = bs.Close() }()

	require.NoError(t, bs.SaveRun(persistencetest.NewRun("auction-a", 1)))
	require.NoError(t, bs.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefixRun+"garbage"), []byte("{not json"))
	}))

	runs, err := bs.ListRuns()
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = bs.LoadRun("garbage")
	require.Error(t, err)
}

func TestBadgerRunStore_SchemaMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bs, err := NewBadgerRunStore(tmpDir, testLogger)
	require.NoError(t, err)
	require.NoError(t, bs.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, bs.Close())

	_, err = NewBadgerRunStore(tmpDir, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}
