package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(types.DefaultCollateralRatioBps), cfg.CollateralRatioBps)

	maxPrice, err := cfg.MaxPriceValue()
	require.NoError(t, err)
	assert.Nil(t, maxPrice)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auctioneer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
label: term-30d
maxPrice: "500000"
workers: 4
ledger:
  rpcUrl: http://localhost:8545
  chainId: 31337
  address: "0x00000000000000000000000000000000001ed9e7"
  pageSize: 500
prover:
  type: static
  address: "0x0000000000000000000000000000000000099999"
persistence:
  type: badger
  dataPath: /var/lib/auctioneer
`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.Ledger.Validate())

	assert.Equal(t, "term-30d", cfg.Label)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, ChainId_EthereumAnvil, cfg.Ledger.ChainID)
	assert.Equal(t, uint64(500), cfg.Ledger.PageSize)
	assert.Equal(t, ProverTypeStatic, cfg.Prover.Type)
	assert.Equal(t, PersistenceTypeBadger, cfg.Persistence.Type)
	// Unset keys keep their defaults.
	assert.Equal(t, uint64(types.DefaultCollateralRatioBps), cfg.CollateralRatioBps)

	maxPrice, err := cfg.MaxPriceValue()
	require.NoError(t, err)
	assert.Equal(t, uint64(500000), maxPrice.Uint64())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("labell: typo\n"))
	require.Error(t, err, "unknown keys are rejected")

	_, err = Parse([]byte("workers: [1, 2]\n"))
	require.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	cfg, err := Parse(nil)
	require.NoError(t, err, "an empty file yields the defaults")
	assert.Equal(t, Default(), cfg)
}

func TestAuctionConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AuctionConfig)
		want   string
	}{
		{"empty label", func(c *AuctionConfig) { c.Label = "" }, "label"},
		{"bad max price", func(c *AuctionConfig) { c.MaxPrice = "lots" }, "maxPrice"},
		{"zero max price", func(c *AuctionConfig) { c.MaxPrice = "0" }, "maxPrice"},
		{"ratio below 100%", func(c *AuctionConfig) { c.CollateralRatioBps = 9_999 }, "collateralRatioBps"},
		{"negative workers", func(c *AuctionConfig) { c.Workers = -1 }, "workers"},
		{"unknown prover", func(c *AuctionConfig) { c.Prover.Type = "hsm" }, "prover.type"},
		{"static without address", func(c *AuctionConfig) { c.Prover.Type = ProverTypeStatic }, "prover.address"},
		{"short local key", func(c *AuctionConfig) {
			c.Prover.Type = ProverTypeLocal
			c.Prover.PrivateKey = "0x1234"
		}, "prover.privateKey"},
		{"kms without key id", func(c *AuctionConfig) { c.Prover.Type = ProverTypeAWSKMS }, "prover.kmsKeyId"},
		{"unknown persistence", func(c *AuctionConfig) { c.Persistence.Type = "sqlite" }, "persistence.type"},
		{"badger without path", func(c *AuctionConfig) { c.Persistence.Type = PersistenceTypeBadger }, "persistence.dataPath"},
		{"redis without address", func(c *AuctionConfig) { c.Persistence.Type = PersistenceTypeRedis }, "persistence.redis.address"},
		{"redis db out of range", func(c *AuctionConfig) {
			c.Persistence.Type = PersistenceTypeRedis
			c.Persistence.Redis.Address = "localhost:6379"
			c.Persistence.Redis.DB = 16
		}, "persistence.redis.db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAuctionConfig_Validate_RedactsPrivateKey(t *testing.T) {
	cfg := Default()
	cfg.Prover.Type = ProverTypeLocal
	cfg.Prover.PrivateKey = "0xdeadbeef"

	err := cfg.Validate()
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "deadbeef")
}

func TestAuctionConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Label = ""
	cfg.Workers = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label")
	assert.Contains(t, err.Error(), "workers")
}

func TestLedgerConfig_Validate(t *testing.T) {
	lc := &LedgerConfig{
		RpcUrl:  "http://localhost:8545",
		ChainID: ChainId_EthereumSepolia,
		Address: "0x00000000000000000000000000000000001ed9e7",
	}
	require.NoError(t, lc.Validate())

	lc.ChainID = 5
	lc.Address = "nope"
	lc.RpcUrl = ""
	err := lc.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.chainId")
	assert.Contains(t, err.Error(), "ledger.address")
	assert.Contains(t, err.Error(), "ledger.rpcUrl")
}
