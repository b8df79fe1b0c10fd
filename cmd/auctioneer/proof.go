package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/zkauction-go/pkg/auction"
	"github.com/Layr-Labs/zkauction-go/pkg/input"
	"github.com/Layr-Labs/zkauction-go/pkg/merkle"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// inclusionProof is what a participant needs to check their outcome against the
// committed result root.
type inclusionProof struct {
	Root        common.Hash   `json:"root"`
	LeafIndex   int           `json:"leafIndex"`
	Leaf        common.Hash   `json:"leaf"`
	Siblings    []common.Hash `json:"siblings"`
	Path        []bool        `json:"path"`
	Status      string        `json:"status"`
	StatusTag   uint8         `json:"statusTag"`
	Settled     string        `json:"settledAmount"`
	Repurchase  string        `json:"repurchaseAmount"`
	Participant string        `json:"participant"`
	OrderID     string        `json:"orderId"`
}

func proofCommand() *cli.Command {
	return &cli.Command{
		Name:  "proof",
		Usage: "Print the Merkle inclusion proof of one order's outcome",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Batch JSON file", Required: true},
			&cli.StringFlag{Name: "side", Usage: "bid or offer", Value: "bid"},
			&cli.StringFlag{Name: "participant", Usage: "Order owner address", Required: true},
			&cli.StringFlag{Name: "id", Usage: "Order ID", Required: true},
		},
		Action: runProof,
	}
}

func runProof(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	var side types.Side
	switch c.String("side") {
	case "bid":
		side = types.SideBid
	case "offer":
		side = types.SideOffer
	default:
		return fmt.Errorf("--side must be bid or offer, got %q", c.String("side"))
	}
	if !common.IsHexAddress(c.String("participant")) {
		return fmt.Errorf("--participant must be a hex address")
	}
	participant := common.HexToAddress(c.String("participant"))
	id, err := types.ParseOrderID(c.String("id"))
	if err != nil {
		return err
	}

	batch, err := input.Load(c.String("input"))
	if err != nil {
		return err
	}
	in, err := batch.ToInput()
	if err != nil {
		return err
	}
	maxPrice, err := cfg.MaxPriceValue()
	if err != nil {
		return err
	}
	res, err := auction.NewAuctioneer(&auction.Config{
		MaxPrice:           maxPrice,
		CollateralRatioBps: cfg.CollateralRatioBps,
		Workers:            cfg.Workers,
	}, l).Run(c.Context, in)
	if err != nil {
		return fmt.Errorf("auction run failed: %w", err)
	}

	out, err := buildInclusionProof(res, side, participant, id)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, out)
}

func buildInclusionProof(res *auction.Result, side types.Side, participant common.Address, id types.OrderID) (*inclusionProof, error) {
	proof, err := res.InclusionProof(side, participant, id)
	if err != nil {
		return nil, err
	}
	root := res.PublicValues.AuctionResultRoot
	if !merkle.VerifyProof(proof, root) {
		return nil, fmt.Errorf("generated proof does not verify against root %s", root.Hex())
	}

	alloc := res.Allocations[proof.LeafIndex]
	out := &inclusionProof{
		Root:        root,
		LeafIndex:   proof.LeafIndex,
		Leaf:        proof.Leaf,
		Siblings:    make([]common.Hash, len(proof.Siblings)),
		Path:        proof.Path,
		Status:      alloc.Status.String(),
		StatusTag:   uint8(alloc.Status),
		Settled:     alloc.SettledAmount.Dec(),
		Repurchase:  alloc.RepurchaseAmount.Dec(),
		Participant: alloc.Participant.Hex(),
		OrderID:     alloc.ID.String(),
	}
	for i, s := range proof.Siblings {
		out.Siblings[i] = s
	}
	return out, nil
}
