package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/persistence"
)

const (
	keyPrefixRun         = "auction:run:"
	keyPrefixLatest      = "auction:latest:"
	keySchemaVersion     = "auction:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Run IDs are also kept in a set so listing needs no keyspace scan.
	keySetRuns = "auction:runs:index"
)

// RedisRunStore keeps run records in Redis, for deployments where several provers share history.
type RedisRunStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "prover-a:" gives "prover-a:auction:run:<id>".
	KeyPrefix string
}

func NewRedisRunStore(cfg *RedisConfig, logger *zap.Logger) (*RedisRunStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisRunStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis run store initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	return rs, nil
}

func (r *RedisRunStore) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisRunStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

func (r *RedisRunStore) SaveRun(run *persistence.RunRecord) error {
	if run == nil {
		return fmt.Errorf("cannot save nil RunRecord")
	}
	if run.ID == "" {
		return fmt.Errorf("cannot save RunRecord without id")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	data, err := persistence.MarshalRunRecord(run)
	if err != nil {
		return fmt.Errorf("failed to marshal RunRecord: %w", err)
	}

	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.prefixKey(keyPrefixRun+run.ID), data, 0)
	pipe.SAdd(ctx, r.prefixKey(keySetRuns), run.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save RunRecord: %w", err)
	}
	return nil
}

func (r *RedisRunStore) LoadRun(id string) (*persistence.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	data, err := r.client.Get(context.Background(), r.prefixKey(keyPrefixRun+id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load RunRecord: %w", err)
	}

	run, err := persistence.UnmarshalRunRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RunRecord: %w", err)
	}
	return run, nil
}

// ListRuns reads every indexed run with one MGET. Index entries whose record has
// disappeared are pruned.
func (r *RedisRunStore) ListRuns() ([]*persistence.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	indexKey := r.prefixKey(keySetRuns)

	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run ids: %w", err)
	}
	if len(ids) == 0 {
		return []*persistence.RunRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.prefixKey(keyPrefixRun + id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RunRecords: %w", err)
	}

	runs := make([]*persistence.RunRecord, 0, len(values))
	for i, val := range values {
		if val == nil {
			r.client.SRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for RunRecord", "key", keys[i])
			continue
		}

		run, err := persistence.UnmarshalRunRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal RunRecord, skipping", "key", keys[i], "error", err)
			continue
		}
		runs = append(runs, run)
	}

	persistence.SortRuns(runs)
	return runs, nil
}

func (r *RedisRunStore) DeleteRun(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx := context.Background()
	stale, err := r.latestKeysFor(ctx, id)
	if err != nil {
		return err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.prefixKey(keyPrefixRun+id))
	pipe.SRem(ctx, r.prefixKey(keySetRuns), id)
	if len(stale) > 0 {
		pipe.Del(ctx, stale...)
	}

	_, err = pipe.Exec(ctx)
	return err
}

// latestKeysFor returns the full latest-run keys currently pointing at id.
func (r *RedisRunStore) latestKeysFor(ctx context.Context, id string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefixKey(keyPrefixLatest)+"*", 100).Iterator()
	for iter.Next(ctx) {
		value, err := r.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read latest run pointer: %w", err)
		}
		if value == id {
			keys = append(keys, iter.Val())
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan latest run pointers: %w", err)
	}
	return keys, nil
}

func (r *RedisRunStore) SetLatestRun(auctionLabel string, id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	return r.client.Set(context.Background(), r.prefixKey(keyPrefixLatest+auctionLabel), id, 0).Err()
}

func (r *RedisRunStore) GetLatestRun(auctionLabel string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return "", fmt.Errorf("persistence layer is closed")
	}

	id, err := r.client.Get(context.Background(), r.prefixKey(keyPrefixLatest+auctionLabel)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return id, nil
}

func (r *RedisRunStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis run store closed")
	return nil
}

func (r *RedisRunStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("persistence layer is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	return err
}
