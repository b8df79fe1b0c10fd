package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Layr-Labs/zkauction-go/internal/proverIdentity"
	"github.com/Layr-Labs/zkauction-go/pkg/auction"
	"github.com/Layr-Labs/zkauction-go/pkg/config"
	"github.com/Layr-Labs/zkauction-go/pkg/input"
	"github.com/Layr-Labs/zkauction-go/pkg/persistence"
)

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Clear a closed auction batch and record the run",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Batch JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "proof-request",
				Usage: "Write the signed proof request to this file",
			},
		},
		Action: runClear,
	}
}

func runClear(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	batch, err := input.Load(c.String("input"))
	if err != nil {
		return err
	}
	label := cfg.Label
	if batch.Label != "" && !c.IsSet(flagLabel) {
		label = batch.Label
	}

	run, req, err := clearBatch(c, cfg, label, batch, l)
	if err != nil {
		return err
	}

	if path := c.String("proof-request"); path != "" {
		if req == nil {
			return fmt.Errorf("no signing prover identity configured, cannot write a proof request")
		}
		if err := writeJSONFile(path, req); err != nil {
			return err
		}
		l.Sugar().Infow("Wrote proof request", "path", path, "digest", req.Digest.Hex())
	}

	store, err := newRunStore(&cfg.Persistence, l)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.SaveRun(run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if err := store.SetLatestRun(label, run.ID); err != nil {
		return fmt.Errorf("failed to update latest run: %w", err)
	}
	l.Sugar().Infow("Recorded run", "id", run.ID, "label", label)

	return writeJSON(c.App.Writer, run)
}

// clearBatch runs the auction over batch and signs the public values when the configured
// identity can sign. The returned proof request is nil otherwise.
func clearBatch(c *cli.Context, cfg *config.AuctionConfig, label string, batch *input.Batch, l *zap.Logger) (*persistence.RunRecord, *proverIdentity.ProofRequest, error) {
	in, err := batch.ToInput()
	if err != nil {
		return nil, nil, err
	}
	inputHash, err := batch.Hash()
	if err != nil {
		return nil, nil, err
	}
	maxPrice, err := cfg.MaxPriceValue()
	if err != nil {
		return nil, nil, err
	}

	auctioneer := auction.NewAuctioneer(&auction.Config{
		MaxPrice:           maxPrice,
		CollateralRatioBps: cfg.CollateralRatioBps,
		Workers:            cfg.Workers,
	}, l)
	res, err := auctioneer.Run(c.Context, in)
	if err != nil {
		return nil, nil, fmt.Errorf("auction run failed: %w", err)
	}
	l.Sugar().Infow("Auction cleared",
		"label", label,
		"cleared", res.Cleared,
		"clearing_price", res.ClearingPrice.Dec(),
		"volume", res.Volume.Dec(),
		"result_root", res.PublicValues.AuctionResultRoot.Hex(),
	)

	run := persistence.NewRunRecord(label, inputHash, res, time.Now())

	identity, err := proverIdentity.New(c.Context, &cfg.Prover, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prover identity: %w", err)
	}
	if identity == nil {
		return run, nil, nil
	}
	req, err := proverIdentity.NewProofRequest(c.Context, identity, in.ProverAddress, res.Encoded)
	if errors.Is(err, proverIdentity.ErrCannotSign) {
		l.Sugar().Infow("Prover identity cannot sign, recording unsigned run", "prover", in.ProverAddress.Hex())
		return run, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign public values: %w", err)
	}
	run.Signature = req.Signature.String()
	return run, req, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeJSON(f, v); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
