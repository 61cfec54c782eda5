package auditor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/browser"
	"parcelscraper/internal/components/telemetry"
	"parcelscraper/internal/dates"
)

const (
	report_search_submit     = "search.submit"
	report_search_read_count = "search.read-count"
)

// DefaultCountToken is the position of the total in "Showing 1 to 15 of
// 1,234 entries" once split on whitespace.
const DefaultCountToken = 5

// ErrCountFormat is returned when the result count text does not have the
// expected shape.
var ErrCountFormat = errors.New("result count text has an unexpected format")

// ParseEntryCount pulls the total result count out of the results summary
// text: the text is split on whitespace, the token at tokenIndex has its
// thousands separators removed and is parsed as an integer.
func ParseEntryCount(text string, tokenIndex int) (int, error) {
	tokens := strings.Fields(text)
	if tokenIndex < 0 || tokenIndex >= len(tokens) {
		return 0, fmt.Errorf("%w: %q has no token %d", ErrCountFormat, text, tokenIndex)
	}
	token := strings.ReplaceAll(tokens[tokenIndex], ",", "")
	count, err := strconv.Atoi(token)
	if err != nil || count < 0 {
		return 0, fmt.Errorf("%w: %q is not a count", ErrCountFormat, tokens[tokenIndex])
	}
	return count, nil
}

// Filters are the user supplied search criteria applied to every range.
type Filters struct {
	SalePriceLow     int `json:"sale_price_low"`
	SalePriceHigh    int `json:"sale_price_high"`
	FinishedSqFtLow  int `json:"finished_sq_ft_low"`
	FinishedSqFtHigh int `json:"finished_sq_ft_high"`
	BedroomsLow      int `json:"bedrooms_low"`
}

func (f Filters) Validate() error {
	if f.SalePriceLow < 0 || f.FinishedSqFtLow < 0 || f.BedroomsLow < 0 {
		return fmt.Errorf("filters must not be negative")
	}
	if f.SalePriceHigh > 0 && f.SalePriceHigh < f.SalePriceLow {
		return fmt.Errorf("sale price high (%d) is below low (%d)", f.SalePriceHigh, f.SalePriceLow)
	}
	if f.FinishedSqFtHigh > 0 && f.FinishedSqFtHigh < f.FinishedSqFtLow {
		return fmt.Errorf("finished sq ft high (%d) is below low (%d)", f.FinishedSqFtHigh, f.FinishedSqFtLow)
	}
	return nil
}

type field struct {
	locator string
	value   string
}

// Search submits the sales search for a date range and reads back the
// number of results.
type Search struct {
	page       browser.Page
	accessor   Accessor
	searchUrl  string
	locators   Locators
	filters    Filters
	countToken int
	tel        telemetry.API
}

type SearchOptions struct {
	SearchUrl string
	Locators  Locators
	Filters   Filters
	// CountToken defaults to DefaultCountToken.
	CountToken int
}

func NewSearch(page browser.Page, accessor Accessor, opts SearchOptions, tel telemetry.API) Search {
	assert.NotNil(page)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.SearchUrl)

	if opts.CountToken <= 0 {
		opts.CountToken = DefaultCountToken
	}
	return Search{
		page:       page,
		accessor:   accessor,
		searchUrl:  opts.SearchUrl,
		locators:   opts.Locators,
		filters:    opts.Filters,
		countToken: opts.CountToken,
		tel:        telemetry.NewScopedAPI("auditor", tel),
	}
}

func optional(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func (s Search) fields(r dates.Range) []field {
	form := s.locators.Form
	return []field{
		{form.SalePriceLow, optional(s.filters.SalePriceLow)},
		{form.SalePriceHigh, optional(s.filters.SalePriceHigh)},
		{form.FinishedSqFtLow, optional(s.filters.FinishedSqFtLow)},
		{form.FinishedSqFtHigh, optional(s.filters.FinishedSqFtHigh)},
		{form.BedroomsLow, optional(s.filters.BedroomsLow)},
		{form.SaleDateFrom, r.StartString()},
		{form.SaleDateTo, r.EndString()},
	}
}

// correlated returns a copy of the search whose reports, and those of its
// accessor, carry the range.
func (s Search) correlated(r dates.Range) Search {
	s.tel = telemetry.NewCorrelatedAPI(r.String(), s.tel)
	s.accessor = s.accessor.Correlated(r.String())
	return s
}

// SubmitQuery opens a fresh search form, fills it in for r and submits it.
func (s Search) SubmitQuery(ctx context.Context, r dates.Range) error {
	return s.correlated(r).submit(ctx, r)
}

func (s Search) submit(ctx context.Context, r dates.Range) error {
	err := s.page.Navigate(ctx, s.searchUrl)
	if err != nil {
		s.tel.ReportBroken(report_search_submit, err)
		return fmt.Errorf("open search form: %w", err)
	}
	for _, f := range s.fields(r) {
		if f.locator == "" || f.value == "" {
			continue
		}
		err := s.accessor.Fill(ctx, f.locator, f.value)
		if err != nil {
			s.tel.ReportBroken(report_search_submit, err)
			return fmt.Errorf("fill form: %w", err)
		}
	}
	err = s.accessor.Click(ctx, s.locators.Form.Submit)
	if err != nil {
		s.tel.ReportBroken(report_search_submit, err)
		return fmt.Errorf("submit form: %w", err)
	}
	return nil
}

// ReadCount reads the result total of the submitted search. A results view
// that shows the "no results" marker instead of a summary counts as zero.
func (s Search) ReadCount(ctx context.Context) (int, error) {
	text, err := s.accessor.Text(ctx, s.locators.Results.Count)
	if errors.Is(err, ErrTimeout) && s.locators.Results.NoResults != "" {
		empty, existsErr := s.page.Exists(ctx, s.locators.Results.NoResults)
		if existsErr == nil && empty {
			return 0, nil
		}
	}
	if err != nil {
		s.tel.ReportBroken(report_search_read_count, err)
		return 0, fmt.Errorf("read count: %w", err)
	}
	count, err := ParseEntryCount(text, s.countToken)
	if err != nil {
		s.tel.ReportBroken(report_search_read_count, err)
		return 0, err
	}
	return count, nil
}

// Search implements the range queue's searcher.
func (s Search) Search(ctx context.Context, r dates.Range) (int, error) {
	s = s.correlated(r)
	err := s.submit(ctx, r)
	if err != nil {
		return 0, err
	}
	count, err := s.ReadCount(ctx)
	if err != nil {
		return 0, err
	}
	s.tel.ReportDebug("search submitted", count)
	return count, nil
}
