package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/config"
	"github.com/Layr-Labs/zkauction-go/pkg/persistence"
	"github.com/Layr-Labs/zkauction-go/pkg/persistence/badger"
	"github.com/Layr-Labs/zkauction-go/pkg/persistence/memory"
	"github.com/Layr-Labs/zkauction-go/pkg/persistence/redis"
)

func newRunStore(cfg *config.PersistenceConfig, l *zap.Logger) (persistence.IRunStore, error) {
	switch cfg.Type {
	case config.PersistenceTypeMemory, "":
		return memory.NewMemoryRunStore(), nil
	case config.PersistenceTypeBadger:
		l.Sugar().Infow("Opening badger run store", "path", cfg.DataPath)
		return badger.NewBadgerRunStore(cfg.DataPath, l)
	case config.PersistenceTypeRedis:
		l.Sugar().Infow("Connecting to redis run store", "address", cfg.Redis.Address, "db", cfg.Redis.DB)
		return redis.NewRedisRunStore(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.Type)
	}
}
