package main

import (
	"fmt"
	"time"

	"github.com/modood/table"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/Layr-Labs/zkauction-go/pkg/persistence"
	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

type runRow struct {
	ID      string
	Label   string
	Created string
	Cleared string
	Rate    string
	Volume  string
	Signed  string
}

// runView is a stored record plus its clearing rate in percent.
type runView struct {
	*persistence.RunRecord
	ClearingRate string `json:"clearingRate"`
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect recorded clearing runs",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all recorded runs",
				Action: withStore(listRuns),
			},
			{
				Name:      "show",
				Usage:     "Show one run; defaults to the latest run of the label",
				ArgsUsage: "[run-id]",
				Action:    withStore(showRun),
			},
			{
				Name:      "delete",
				Usage:     "Delete a run record",
				ArgsUsage: "<run-id>",
				Action:    withStore(deleteRun),
			},
		},
	}
}

type storeAction func(c *cli.Context, label string, store persistence.IRunStore) error

func withStore(action storeAction) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		l, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = l.Sync() }()

		store, err := newRunStore(&cfg.Persistence, l)
		if err != nil {
			return fmt.Errorf("failed to open run store: %w", err)
		}
		defer func() { _ = store.Close() }()
		return action(c, cfg.Label, store)
	}
}

func listRuns(c *cli.Context, _ string, store persistence.IRunStore) error {
	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintln(c.App.Writer, "no runs recorded")
		return err
	}

	rows := make([]runRow, len(runs))
	for i, run := range runs {
		rate, err := formatRate(run.ClearingPrice)
		if err != nil {
			return fmt.Errorf("run %s: %w", run.ID, err)
		}
		rows[i] = runRow{
			ID:      run.ID,
			Label:   run.AuctionLabel,
			Created: time.Unix(run.CreatedAt, 0).UTC().Format(time.RFC3339),
			Cleared: yesNo(run.Cleared),
			Rate:    rate,
			Volume:  run.Volume,
			Signed:  yesNo(run.Signature != ""),
		}
	}
	_, err = fmt.Fprintln(c.App.Writer, table.Table(rows))
	return err
}

func showRun(c *cli.Context, label string, store persistence.IRunStore) error {
	id := c.Args().First()
	if id == "" {
		latest, err := store.GetLatestRun(label)
		if err != nil {
			return err
		}
		if latest == "" {
			return fmt.Errorf("no latest run recorded for %q", label)
		}
		id = latest
	}

	run, err := store.LoadRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	rate, err := formatRate(run.ClearingPrice)
	if err != nil {
		return err
	}
	return writeJSON(c.App.Writer, &runView{RunRecord: run, ClearingRate: rate})
}

func deleteRun(c *cli.Context, _ string, store persistence.IRunStore) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("run id is required")
	}
	return store.DeleteRun(id)
}

// formatRate renders a rate in basis points as a percentage, e.g. "400" as "4.00%".
func formatRate(bps string) (string, error) {
	d, err := decimal.NewFromString(bps)
	if err != nil {
		return "", fmt.Errorf("invalid clearing price %q: %w", bps, err)
	}
	return d.Div(decimal.NewFromInt(types.BPS)).Shift(2).StringFixed(2) + "%", nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
