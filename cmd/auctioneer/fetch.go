package main

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/internal/proverIdentity"
	"github.com/Layr-Labs/zkauction-go/pkg/auction"
	"github.com/Layr-Labs/zkauction-go/pkg/config"
	"github.com/Layr-Labs/zkauction-go/pkg/input"
	"github.com/Layr-Labs/zkauction-go/pkg/ledger"
)

func fetchCommand() *cli.Command {
	flags := append(ledgerFlags(),
		&cli.Uint64Flag{Name: "from-block", Usage: "First block of the auction", Required: true},
		&cli.Uint64Flag{Name: "to-block", Usage: "Last block of the reveal phase", Required: true},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Batch JSON file to write", Required: true},
		&cli.StringFlag{Name: "purchase-token", Usage: "Purchase token address", Required: true},
		&cli.StringFlag{Name: "purchase-price", Usage: "Purchase token oracle price", Required: true},
		&cli.StringFlag{Name: "collateral-token", Usage: "Collateral token address", Required: true},
		&cli.StringFlag{Name: "collateral-price", Usage: "Collateral token oracle price", Required: true},
		&cli.StringFlag{Name: "day-count", Usage: "Loan term in days", Required: true},
	)
	return &cli.Command{
		Name:   "fetch",
		Usage:  "Read a closed auction's events and accumulators from the ledger into a batch file",
		Flags:  flags,
		Action: runFetch,
	}
}

func runFetch(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.Ledger.Validate(); err != nil {
		return fmt.Errorf("invalid ledger configuration: %w", err)
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	l.Sugar().Infow("Using chain", "name", config.ChainIdToName[cfg.Ledger.ChainID], "chain_id", cfg.Ledger.ChainID)

	ethClient := ethereum.NewEthereumClient(&ethereum.EthereumClientConfig{
		BaseUrl:   cfg.Ledger.RpcUrl,
		BlockType: ethereum.BlockType_Latest,
	}, l)
	client, err := ethClient.GetEthereumContractCaller()
	if err != nil {
		return fmt.Errorf("failed to get Ethereum contract caller: %w", err)
	}
	chainID, err := client.ChainID(c.Context)
	if err != nil {
		return fmt.Errorf("failed to read chain ID: %w", err)
	}
	if chainID.Uint64() != uint64(cfg.Ledger.ChainID) {
		return fmt.Errorf("RPC endpoint is on chain %s, configured chain is %d", chainID, cfg.Ledger.ChainID)
	}

	prover, err := resolveProverAddress(c.Context, cfg, l)
	if err != nil {
		return err
	}

	params := input.Parameters{
		PurchaseToken:   common.HexToAddress(c.String("purchase-token")),
		PurchasePrice:   c.String("purchase-price"),
		CollateralToken: common.HexToAddress(c.String("collateral-token")),
		CollateralPrice: c.String("collateral-price"),
		DayCount:        c.String("day-count"),
	}
	for _, name := range []string{"purchase-token", "collateral-token"} {
		if !common.IsHexAddress(c.String(name)) {
			return fmt.Errorf("--%s must be a hex address", name)
		}
	}

	batch, err := fetchBatch(c.Context, &cfg.Ledger, client, c.Uint64("from-block"), c.Uint64("to-block"), l)
	if err != nil {
		return err
	}
	batch.Label = cfg.Label
	batch.ProverAddress = prover
	batch.Parameters = params

	// Reject a batch that could never be cleared before writing it.
	if _, err := batch.ToInput(); err != nil {
		return err
	}
	if err := input.Write(c.String("out"), batch); err != nil {
		return err
	}
	l.Sugar().Infow("Wrote batch",
		"path", c.String("out"),
		"bid_events", len(batch.BidEvents),
		"offer_events", len(batch.OfferEvents),
	)
	return nil
}

// fetchBatch reads the event history over [fromBlock, toBlock] and the accumulators stored
// at toBlock. Parameters and the prover address are left for the caller.
func fetchBatch(ctx context.Context, cfg *config.LedgerConfig, client ledger.Client, fromBlock, toBlock uint64, l *zap.Logger) (*input.Batch, error) {
	reader, err := ledger.NewReader(&ledger.ReaderConfig{
		Address:           common.HexToAddress(cfg.Address),
		PageSize:          cfg.PageSize,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, client, l)
	if err != nil {
		return nil, err
	}

	bids, offers, err := reader.FetchEvents(ctx, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ledger events: %w", err)
	}
	expected, err := reader.Accumulators(ctx, toBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger accumulators: %w", err)
	}

	batch := input.FromInput(&auction.Input{
		BidEvents:   bids,
		OfferEvents: offers,
		Expected:    expected,
	})
	batch.FromBlock = fromBlock
	batch.ToBlock = toBlock
	return batch, nil
}

// resolveProverAddress asks the configured identity for the submitter address. Without an
// identity the batch carries the zero address.
func resolveProverAddress(ctx context.Context, cfg *config.AuctionConfig, l *zap.Logger) (common.Address, error) {
	identity, err := proverIdentity.New(ctx, &cfg.Prover, l)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to create prover identity: %w", err)
	}
	if identity == nil {
		l.Sugar().Warnw("No prover identity configured, batch prover address left as zero")
		return common.Address{}, nil
	}
	return identity.Address(ctx)
}
