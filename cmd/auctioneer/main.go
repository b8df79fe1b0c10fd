package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "auctioneer",
		Usage: "Sealed-bid fixed-rate auction clearing",
		Description: `Computes the clearing outcome of a closed sealed-bid lending auction.

The auctioneer:
- Replays the ledger's bid and offer history and checks it against the stored accumulators
- Validates collateral and clears the books at a single uniform rate
- Commits to every order's outcome in a Merkle tree
- Emits the public values a succinct proof of the run is verified against`,
		Version:  "0.1.0",
		Flags:    globalFlags(),
		Commands: []*cli.Command{clearCommand(), fetchCommand(), proofCommand(), runsCommand()},
	}
}
