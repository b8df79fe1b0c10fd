package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/persistence"
)

const (
	keyPrefixRun         = "run:"
	keyPrefixLatest      = "latest:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerRunStore keeps run records on disk.
type BadgerRunStore struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerRunStore opens (or creates) a run store at dataPath with SyncWrites enabled
// and starts background value-log GC.
func NewBadgerRunStore(dataPath string, logger *zap.Logger) (*BadgerRunStore, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = newZapBadgerLogger(logger)
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bs := &BadgerRunStore{
		db:     db,
		logger: logger,
	}

	if err := bs.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bs.gcCancel = cancel
	bs.gcWg.Add(1)
	go bs.runGC(ctx)

	logger.Sugar().Infow("Badger run store initialized", "path", absPath)

	return bs, nil
}

func (b *BadgerRunStore) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerRunStore) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *BadgerRunStore) SaveRun(run *persistence.RunRecord) error {
	if run == nil {
		return fmt.Errorf("cannot save nil RunRecord")
	}
	if run.ID == "" {
		return fmt.Errorf("cannot save RunRecord without id")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalRunRecord(run)
	if err != nil {
		return fmt.Errorf("failed to marshal RunRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefixRun+run.ID), data)
	})
}

func (b *BadgerRunStore) LoadRun(id string) (*persistence.RunRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get(keyPrefixRun + id)
	if err != nil {
		return nil, fmt.Errorf("failed to load RunRecord: %w", err)
	}
	if data == nil {
		return nil, nil // Not found
	}

	run, err := persistence.UnmarshalRunRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RunRecord: %w", err)
	}
	return run, nil
}

// ListRuns skips records that no longer decode, logging each one.
func (b *BadgerRunStore) ListRuns() ([]*persistence.RunRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	runs := make([]*persistence.RunRecord, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRun)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			data, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			run, err := persistence.UnmarshalRunRecord(data)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to unmarshal RunRecord, skipping",
					"key", string(item.Key()), "error", err)
				continue
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list RunRecords: %w", err)
	}

	persistence.SortRuns(runs)
	return runs, nil
}

func (b *BadgerRunStore) DeleteRun(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Delete([]byte(keyPrefixRun + id)); err != nil {
			return err
		}

		stale, err := latestKeysFor(txn, id)
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// latestKeysFor collects the latest-run keys pointing at id. Keys are copied so they can be
// deleted once the iterator is closed.
func latestKeysFor(txn *badgerdb.Txn, id string) ([][]byte, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(keyPrefixLatest)

	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read value: %w", err)
		}
		if string(value) == id {
			keys = append(keys, item.KeyCopy(nil))
		}
	}
	return keys, nil
}

func (b *BadgerRunStore) SetLatestRun(auctionLabel string, id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keyPrefixLatest+auctionLabel), []byte(id))
	})
}

func (b *BadgerRunStore) GetLatestRun(auctionLabel string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return "", fmt.Errorf("persistence layer is closed")
	}

	data, err := b.get(keyPrefixLatest + auctionLabel)
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return string(data), nil
}

// get returns nil when the key is absent.
func (b *BadgerRunStore) get(key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// Close stops GC and closes the database. Safe to call more than once.
func (b *BadgerRunStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger run store closed")
	return nil
}

func (b *BadgerRunStore) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
