package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"parcelscraper/internal/browser"
	"parcelscraper/internal/components/chrono"
	"parcelscraper/internal/components/db"
	"parcelscraper/internal/consolidate"
	"parcelscraper/internal/dates"
	"parcelscraper/internal/export"
	"parcelscraper/internal/ledger"
	"parcelscraper/internal/notify"
	"parcelscraper/internal/rangequeue"
	"parcelscraper/internal/robots"
	"parcelscraper/internal/scrapers/auditor"

	"github.com/spf13/cobra"
)

var (
	scrapeStartYear   *int
	scrapeEndYear     *int
	scrapePriceLow    *int
	scrapePriceHigh   *int
	scrapeSqFtLow     *int
	scrapeSqFtHigh    *int
	scrapeBedroomsLow *int
	scrapeOverwrite   *bool
	scrapeSkipRobots  *bool
)

func init() {
	flags := scrapeCmd.Flags()
	scrapeStartYear = flags.Int("start-year", 0, "The first year to scrape.")
	scrapeEndYear = flags.Int("end-year", 0, "The last year to scrape (inclusive).")
	scrapePriceLow = flags.Int("price-low", 0, "Lowest sale price.")
	scrapePriceHigh = flags.Int("price-high", 0, "Highest sale price.")
	scrapeSqFtLow = flags.Int("sqft-low", 0, "Lowest finished square feet.")
	scrapeSqFtHigh = flags.Int("sqft-high", 0, "Highest finished square feet.")
	scrapeBedroomsLow = flags.Int("bedrooms-low", 0, "Lowest number of bedrooms.")
	scrapeOverwrite = flags.Bool("overwrite", false, "Replace existing extracts instead of appending to them.")
	scrapeSkipRobots = flags.Bool("skip-robots", false, "Do not check robots.txt before scraping.")
	rootCmd.AddCommand(scrapeCmd)
}

type scrapeInput struct {
	filters   auditor.Filters
	startYear int
	endYear   int
}

// resolveInput takes the search filters and years from flags, then config,
// then asks for whatever is still missing.
func resolveInput(cmd *cobra.Command, p prompter, now time.Time) (scrapeInput, error) {
	flags := cmd.Flags()
	ask := func(question, flag string, value, fallback int) (int, error) {
		return p.Int(question, value, flags.Changed(flag), fallback)
	}

	var in scrapeInput
	var err error
	f := config.Filters
	if in.filters.SalePriceLow, err = ask("What is the lowest price?", "price-low", *scrapePriceLow, f.SalePriceLow); err != nil {
		return in, err
	}
	if in.filters.SalePriceHigh, err = ask("What is the highest price?", "price-high", *scrapePriceHigh, f.SalePriceHigh); err != nil {
		return in, err
	}
	if in.filters.FinishedSqFtLow, err = ask("What is the lowest square feet?", "sqft-low", *scrapeSqFtLow, f.FinishedSqFtLow); err != nil {
		return in, err
	}
	if in.filters.FinishedSqFtHigh, err = ask("What is the highest square feet?", "sqft-high", *scrapeSqFtHigh, f.FinishedSqFtHigh); err != nil {
		return in, err
	}
	if in.filters.BedroomsLow, err = ask("What is the lowest number of bedrooms?", "bedrooms-low", *scrapeBedroomsLow, f.BedroomsLow); err != nil {
		return in, err
	}
	if err := in.filters.Validate(); err != nil {
		return in, err
	}

	if in.startYear, err = ask("What year do you want to start the search?", "start-year", *scrapeStartYear, now.Year()); err != nil {
		return in, err
	}
	if in.endYear, err = ask("What year do you want to end the search?", "end-year", *scrapeEndYear, in.startYear); err != nil {
		return in, err
	}
	if in.startYear <= 0 || in.endYear < in.startYear {
		return in, fmt.Errorf("invalid year span %d-%d", in.startYear, in.endYear)
	}
	if in.endYear > now.Year() {
		return in, fmt.Errorf("end year %d is in the future", in.endYear)
	}
	return in, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--start-year <year>] [--end-year <year>] [filters]",
	Short: "Scrapes every sale of the given years into per-year and cumulative CSV extracts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := config.validate(); err != nil {
			return err
		}
		clock, err := chrono.NewStandardImpl(config.Timezone)
		if err != nil {
			return err
		}
		input, err := resolveInput(cmd, newPrompter(), clock.Now())
		if err != nil {
			return err
		}

		if !*scrapeSkipRobots && !config.Robots.Skip {
			checker := robots.NewChecker(robots.Options{
				Agent:            config.Robots.Agent,
				UserAgent:        config.Browser.UserAgent,
				CloudflareBypass: config.Robots.CloudflareBypass,
			}, tel)
			if err := checker.Require(ctx, config.searchUrl()); err != nil {
				return err
			}
		}

		database, err := db.Open(ctx, config.Database)
		if err != nil {
			return fmt.Errorf("open run database: %w", err)
		}
		defer database.Close()
		runID, err := ledger.NewRunID()
		if err != nil {
			return err
		}
		runLedger := ledger.New(db.New(database), runID, clock)
		slog.Info("starting run", "run_id", runID, "start_year", input.startYear, "end_year", input.endYear)

		browserOpts := config.browserOptions()
		browserOpts.Clock = clock
		session, err := browser.Open(ctx, browserOpts, tel)
		if err != nil {
			return err
		}
		defer session.Close()

		accessor := auditor.NewAccessor(
			session,
			config.Accessor.Attempts,
			time.Duration(config.Accessor.DelayMillis)*time.Millisecond,
			clock,
			tel,
		)
		search := auditor.NewSearch(session, accessor, auditor.SearchOptions{
			SearchUrl:  config.searchUrl(),
			Locators:   config.Locators,
			Filters:    input.filters,
			CountToken: config.CountToken,
		}, tel)
		pacer := chrono.NewPacer(
			time.Duration(config.Pacing.MinSeconds)*time.Second,
			time.Duration(config.Pacing.MaxSeconds)*time.Second,
			clock,
		)
		scraper := auditor.NewScraper(session, accessor, config.Locators, pacer, tel)
		sink := export.NewSink(
			consolidate.NewConsolidator(config.consolidateOptions(), tel),
			export.NewWriter(config.OutputDir, *scrapeOverwrite, tel),
			tel,
		)
		controller := rangequeue.NewController[auditor.Result](search, scraper, sink, rangequeue.Options{
			Threshold: config.Threshold,
			IsFatal:   browser.IsSessionFatal,
			Ledger:    runLedger,
		}, tel)

		summary := notify.Summary{RunID: runID, Started: clock.Now()}
		for year := input.startYear; year <= input.endYear; year++ {
			slog.Info("starting year", "year", year)
			report, err := controller.Run(ctx, year, dates.YearRange(year))
			summary.Years = append(summary.Years, notify.YearReport{Year: year, Report: report})
			if err != nil {
				summary.Err = err
				break
			}
		}
		summary.Finished = clock.Now()

		renderSummary(cmd.OutOrStdout(), summary)
		if config.Email.Enabled() {
			// the run context may already be canceled
			mailCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := notify.NewMailer(config.Email).Send(mailCtx, summary); err != nil {
				slog.Warn("failed to mail run summary", "err", err)
			}
		}

		return summary.Err
	},
}
