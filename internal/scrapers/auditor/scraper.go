package auditor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/browser"
	"parcelscraper/internal/components/telemetry"
	"parcelscraper/internal/dates"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("parcelscraper/internal/scrapers/auditor")

const (
	report_scraper_page_count = "scraper.page-count"
	report_scraper_listing    = "scraper.listing"
	report_scraper_detail     = "scraper.detail"
	report_scraper_open       = "scraper.open-details"
	report_scraper_listings   = "listings"
	report_scraper_details    = "details"
)

// ListingColumns are the columns of the results table, in order.
var ListingColumns = []string{
	"Parcel Number",
	"Address",
	"BBB",
	"FinSqFt",
	"Use",
	"Year Built",
	"Transfer Date",
	"Amount",
}

// Listing is one row of the search results table.
type Listing struct {
	ParcelNumber string
	Address      string
	BBB          string
	FinSqFt      string
	Use          string
	YearBuilt    string
	TransferDate string
	Amount       string
}

// Values returns the listing in ListingColumns order.
func (l Listing) Values() []string {
	return []string{l.ParcelNumber, l.Address, l.BBB, l.FinSqFt, l.Use, l.YearBuilt, l.TransferDate, l.Amount}
}

// listingFromRow maps a results row onto a listing by position, the site's
// own header names are not relied on.
func listingFromRow(row []string) Listing {
	cell := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return Listing{
		ParcelNumber: cell(0),
		Address:      cell(1),
		BBB:          cell(2),
		FinSqFt:      cell(3),
		Use:          cell(4),
		YearBuilt:    cell(5),
		TransferDate: cell(6),
		Amount:       cell(7),
	}
}

// Result is everything scraped for one accepted range.
type Result struct {
	Listings []Listing
	Details  []Detail
}

func (r Result) ListingRows() int { return len(r.Listings) }
func (r Result) DetailRows() int  { return len(r.Details) }

// Pacer spaces out detail page visits.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Scraper performs the two-level scrape of a submitted search: every
// listing page first, then every property page reachable from the first
// listing.
type Scraper struct {
	page     browser.Page
	accessor Accessor
	locators Locators
	pacer    Pacer
	tel      telemetry.API
}

func NewScraper(page browser.Page, accessor Accessor, locators Locators, pacer Pacer, tel telemetry.API) Scraper {
	assert.NotNil(page)
	assert.NotNil(pacer)
	assert.NotNil(tel)

	return Scraper{
		page:     page,
		accessor: accessor,
		locators: locators,
		pacer:    pacer,
		tel:      telemetry.NewScopedAPI("auditor", tel),
	}
}

var digits = regexp.MustCompile(`\d[\d,]*`)

// parsePageCount takes the last number of the page count text, so both "12"
// and "Page 1 of 12" work.
func parsePageCount(text string) (int, error) {
	found := digits.FindAllString(text, -1)
	if len(found) == 0 {
		return 0, fmt.Errorf("no page count in %q", text)
	}
	last := found[len(found)-1]
	n, err := strconv.Atoi(strings.ReplaceAll(last, ",", ""))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid page count %q", last)
	}
	return n, nil
}

// fatal is true for errors that mean the session itself is unusable.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || browser.IsSessionFatal(err)
}

// Scrape implements the range queue's scraper. count is the number of
// results the site reported for the range, it bounds both phases.
func (s Scraper) Scrape(ctx context.Context, r dates.Range, count int) (Result, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()
	span.SetAttributes(attribute.String("range", r.String()), attribute.Int("count", count))

	tel := telemetry.NewCorrelatedAPI(r.String(), s.tel)
	s.accessor = s.accessor.Correlated(r.String())

	listings, err := s.scrapeListings(ctx, count, tel)
	if err != nil {
		return Result{}, err
	}
	tel.ReportCount(report_scraper_listings, int64(len(listings)))
	if len(listings) == 0 {
		return Result{}, nil
	}

	details, err := s.scrapeDetails(ctx, count, tel)
	if err != nil {
		return Result{}, err
	}
	tel.ReportCount(report_scraper_details, int64(len(details)))

	return Result{Listings: listings, Details: details}, nil
}

func (s Scraper) scrapeListings(ctx context.Context, count int, tel telemetry.API) ([]Listing, error) {
	ctx, span := tracer.Start(ctx, "scrapeListings")
	defer span.End()

	pages := count
	text, err := s.accessor.Text(ctx, s.locators.Results.PageCount)
	if err == nil {
		var parsed int
		parsed, err = parsePageCount(text)
		if err == nil && parsed < pages {
			pages = parsed
		}
	}
	if err != nil {
		if fatal(ctx, err) {
			return nil, err
		}
		tel.ReportWarning(report_scraper_page_count, err)
	}

	var listings []Listing
	for i := 0; i < pages; i++ {
		table, err := ExtractTable(ctx, s.accessor, s.locators.Results.Table)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			tel.ReportBroken(report_scraper_listing, fmt.Errorf("page %d: %w", i+1, err))
			break
		}
		if table.Empty() {
			tel.ReportWarning(report_scraper_listing, fmt.Sprintf("page %d has no rows", i+1))
			break
		}
		for _, row := range table.Rows {
			listings = append(listings, listingFromRow(row))
		}
		tel.ReportDebug("scraped results page", i+1, pages, len(table.Rows))

		if i == pages-1 {
			break
		}
		advanced, err := Advance(ctx, s.page, s.accessor, s.locators.Results.NextPage)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			tel.ReportBroken(report_scraper_listing, fmt.Errorf("next page: %w", err))
			break
		}
		if !advanced {
			break
		}
	}

	span.SetAttributes(attribute.Int("rows", len(listings)))
	return listings, nil
}

func (s Scraper) openFirstProperty(ctx context.Context) error {
	err := s.accessor.Click(ctx, s.locators.Results.FirstResultsPage)
	if err != nil {
		// a single page of results has no pager to go back with.
		exists, existsErr := s.page.Exists(ctx, s.locators.Results.FirstResultsPage)
		if existsErr != nil || exists {
			return fmt.Errorf("first results page: %w", err)
		}
	}
	err = s.accessor.Click(ctx, s.locators.Results.FirstRow)
	if err != nil {
		return fmt.Errorf("first row: %w", err)
	}
	return nil
}

func (s Scraper) scrapeDetails(ctx context.Context, count int, tel telemetry.API) ([]Detail, error) {
	ctx, span := tracer.Start(ctx, "scrapeDetails")
	defer span.End()

	err := s.openFirstProperty(ctx)
	if err != nil {
		if fatal(ctx, err) {
			return nil, err
		}
		tel.ReportBroken(report_scraper_open, err)
		return nil, nil
	}

	var details []Detail
	for i := 0; i < count; i++ {
		detail, err := ExtractDetail(ctx, s.accessor, s.locators.Property)
		switch {
		case err == nil:
			details = append(details, detail)
		case fatal(ctx, err):
			return nil, err
		default:
			tel.ReportWarning(report_scraper_detail, fmt.Errorf("record %d of %d: %w", i+1, count, err))
		}

		if i == count-1 {
			break
		}
		err = s.pacer.Wait(ctx)
		if err != nil {
			return nil, err
		}
		advanced, err := Advance(ctx, s.page, s.accessor, s.locators.Property.NextProperty)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			tel.ReportBroken(report_scraper_detail, fmt.Errorf("next property: %w", err))
			break
		}
		if !advanced {
			break
		}
	}

	span.SetAttributes(attribute.Int("details", len(details)))
	return details, nil
}
