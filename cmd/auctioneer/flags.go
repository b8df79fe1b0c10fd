package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/pkg/config"
	"github.com/Layr-Labs/zkauction-go/pkg/logger"
)

const (
	flagConfig             = "config"
	flagLabel              = "label"
	flagDebug              = "debug"
	flagLogFile            = "log-file"
	flagMaxPrice           = "max-price"
	flagCollateralRatioBps = "collateral-ratio-bps"
	flagWorkers            = "workers"

	flagProverType       = "prover-type"
	flagProverAddress    = "prover-address"
	flagProverPrivateKey = "prover-private-key"
	flagProverKMSKeyID   = "prover-kms-key-id"
	flagAWSRegion        = "aws-region"

	flagPersistenceType = "persistence-type"
	flagDataPath        = "data-path"
	flagRedisAddress    = "redis-address"
	flagRedisPassword   = "redis-password"
	flagRedisDB         = "redis-db"
	flagRedisKeyPrefix  = "redis-key-prefix"

	flagRPCURL            = "rpc-url"
	flagChainID           = "chain-id"
	flagLedgerAddress     = "ledger-address"
	flagPageSize          = "page-size"
	flagRequestsPerSecond = "requests-per-second"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "YAML config file; flags and environment variables override its values",
			EnvVars: []string{config.EnvAuctionConfigFile},
		},
		&cli.StringFlag{
			Name:    flagLabel,
			Usage:   "Auction label that groups run records",
			EnvVars: []string{config.EnvAuctionLabel},
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"verbose"},
			Usage:   "Enable debug logging",
			EnvVars: []string{config.EnvAuctionDebug},
		},
		&cli.StringFlag{
			Name:    flagLogFile,
			Usage:   "Also write JSON logs to this rotated file",
			EnvVars: []string{config.EnvAuctionLogFile},
		},
		&cli.StringFlag{
			Name:    flagMaxPrice,
			Usage:   "Highest accepted revealed rate in basis points",
			EnvVars: []string{config.EnvAuctionMaxPrice},
		},
		&cli.Uint64Flag{
			Name:    flagCollateralRatioBps,
			Usage:   "Required collateral ratio in basis points",
			EnvVars: []string{config.EnvAuctionCollateralRatioBps},
		},
		&cli.IntFlag{
			Name:    flagWorkers,
			Usage:   "Collateral validation workers (0 = GOMAXPROCS)",
			EnvVars: []string{config.EnvAuctionWorkers},
		},
		&cli.StringFlag{
			Name:    flagProverType,
			Usage:   "Prover identity: none, static, local or aws-kms",
			EnvVars: []string{config.EnvAuctionProverType},
		},
		&cli.StringFlag{
			Name:    flagProverAddress,
			Usage:   "Prover address for the static identity",
			EnvVars: []string{config.EnvAuctionProverAddress},
		},
		&cli.StringFlag{
			Name:    flagProverPrivateKey,
			Usage:   "Hex ECDSA private key for the local identity",
			EnvVars: []string{config.EnvAuctionProverPrivateKey},
		},
		&cli.StringFlag{
			Name:    flagProverKMSKeyID,
			Usage:   "AWS KMS key ID for the aws-kms identity",
			EnvVars: []string{config.EnvAuctionProverKMSKeyID},
		},
		&cli.StringFlag{
			Name:    flagAWSRegion,
			Usage:   "AWS region for the aws-kms identity",
			EnvVars: []string{config.EnvAuctionAWSRegion},
		},
		&cli.StringFlag{
			Name:    flagPersistenceType,
			Usage:   "Run store: memory, badger or redis",
			EnvVars: []string{config.EnvAuctionPersistenceType},
		},
		&cli.StringFlag{
			Name:    flagDataPath,
			Usage:   "Badger data directory",
			EnvVars: []string{config.EnvAuctionDataPath},
		},
		&cli.StringFlag{
			Name:    flagRedisAddress,
			Usage:   "Redis address (host:port)",
			EnvVars: []string{config.EnvAuctionRedisAddress},
		},
		&cli.StringFlag{
			Name:    flagRedisPassword,
			Usage:   "Redis password",
			EnvVars: []string{config.EnvAuctionRedisPassword},
		},
		&cli.IntFlag{
			Name:    flagRedisDB,
			Usage:   "Redis database number",
			EnvVars: []string{config.EnvAuctionRedisDB},
		},
		&cli.StringFlag{
			Name:    flagRedisKeyPrefix,
			Usage:   "Prefix for all Redis keys",
			EnvVars: []string{config.EnvAuctionRedisKeyPrefix},
		},
	}
}

func ledgerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagRPCURL,
			Aliases: []string{"rpc"},
			Usage:   "Ethereum RPC endpoint URL",
			EnvVars: []string{config.EnvAuctionRPCURL},
		},
		&cli.Uint64Flag{
			Name:    flagChainID,
			Aliases: []string{"chain"},
			Usage:   fmt.Sprintf("Ethereum chain ID: %s", config.GetSupportedChainIDsString()),
			EnvVars: []string{config.EnvAuctionChainID},
		},
		&cli.StringFlag{
			Name:    flagLedgerAddress,
			Usage:   "Ledger contract address",
			EnvVars: []string{config.EnvAuctionLedgerAddress},
		},
		&cli.Uint64Flag{
			Name:    flagPageSize,
			Usage:   "Blocks per eth_getLogs request",
			EnvVars: []string{config.EnvAuctionPageSize},
		},
		&cli.Float64Flag{
			Name:    flagRequestsPerSecond,
			Usage:   "RPC request rate limit",
			EnvVars: []string{config.EnvAuctionRequestsPerSecond},
		},
	}
}

// loadConfig starts from the config file (or defaults) and applies every flag or
// environment variable that was explicitly set.
func loadConfig(c *cli.Context) (*config.AuctionConfig, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		loaded, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setString(flagLabel, &cfg.Label)
	setString(flagLogFile, &cfg.LogFile)
	setString(flagMaxPrice, &cfg.MaxPrice)
	setString(flagProverAddress, &cfg.Prover.Address)
	setString(flagProverPrivateKey, &cfg.Prover.PrivateKey)
	setString(flagProverKMSKeyID, &cfg.Prover.KMSKeyID)
	setString(flagAWSRegion, &cfg.Prover.AWSRegion)
	setString(flagDataPath, &cfg.Persistence.DataPath)
	setString(flagRedisAddress, &cfg.Persistence.Redis.Address)
	setString(flagRedisPassword, &cfg.Persistence.Redis.Password)
	setString(flagRedisKeyPrefix, &cfg.Persistence.Redis.KeyPrefix)
	setString(flagRPCURL, &cfg.Ledger.RpcUrl)
	setString(flagLedgerAddress, &cfg.Ledger.Address)

	if c.IsSet(flagDebug) {
		cfg.Debug = c.Bool(flagDebug)
	}
	if c.IsSet(flagCollateralRatioBps) {
		cfg.CollateralRatioBps = c.Uint64(flagCollateralRatioBps)
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagProverType) {
		cfg.Prover.Type = config.ProverType(c.String(flagProverType))
	}
	if c.IsSet(flagPersistenceType) {
		cfg.Persistence.Type = config.PersistenceType(c.String(flagPersistenceType))
	}
	if c.IsSet(flagRedisDB) {
		cfg.Persistence.Redis.DB = c.Int(flagRedisDB)
	}
	if c.IsSet(flagChainID) {
		cfg.Ledger.ChainID = config.ChainId(c.Uint64(flagChainID))
	}
	if c.IsSet(flagPageSize) {
		cfg.Ledger.PageSize = c.Uint64(flagPageSize)
	}
	if c.IsSet(flagRequestsPerSecond) {
		cfg.Ledger.RequestsPerSecond = c.Float64(flagRequestsPerSecond)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.AuctionConfig) (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return l, nil
}
