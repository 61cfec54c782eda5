package commands

import (
	"fmt"
	"time"

	"parcelscraper/internal/components/db"
	"parcelscraper/internal/ledger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	rangesRun   *string
	rangesLimit *int
)

func init() {
	rangesRun = rangesCmd.Flags().String("run", "", "The run to show, defaults to the latest one.")
	rangesLimit = runsCmd.Flags().Int("limit", 20, "How many runs to list.")
	rootCmd.AddCommand(rangesCmd)
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [--limit <n>]",
	Short: "Lists the most recent scrape runs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := db.Open(cmd.Context(), config.Database)
		if err != nil {
			return err
		}
		defer database.Close()

		runs, err := db.New(database).ListRuns(cmd.Context(), int64(*rangesLimit))
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Run", "Started", "Ranges", "Dropped"})
		for _, r := range runs {
			t.AppendRow(table.Row{r.RunID, time.Unix(r.StartedAt, 0).Format(time.DateTime), r.Ranges, r.Failed})
		}
		t.Render()
		return nil
	},
}

var rangesCmd = &cobra.Command{
	Use:   "ranges [--run <id>]",
	Short: "Shows the outcome of every date range of a run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		database, err := db.Open(ctx, config.Database)
		if err != nil {
			return err
		}
		defer database.Close()
		qry := db.New(database)

		runID := *rangesRun
		if runID == "" {
			runID, err = qry.GetLatestRunID(ctx)
			if err != nil {
				return fmt.Errorf("find latest run: %w", err)
			}
		}
		outcomes, err := ledger.Outcomes(ctx, qry, runID)
		if err != nil {
			return err
		}

		t := newTable(cmd.OutOrStdout())
		t.SetTitle("Run " + runID)
		t.AppendHeader(table.Row{"Year", "Start", "End", "Outcome", "Count", "Listings", "Details", "Error"})
		for _, o := range outcomes {
			t.AppendRow(table.Row{o.Year, o.StartDate, o.EndDate, o.Outcome, o.Count, o.ListingRows, o.DetailRows, o.Error})
		}
		t.Render()
		return nil
	},
}
