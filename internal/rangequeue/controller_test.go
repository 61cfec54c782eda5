package rangequeue

import (
	"context"
	"errors"
	"sort"
	"testing"

	"parcelscraper/internal/components/telemetry"
	"parcelscraper/internal/dates"

	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	listings int
	details  int
}

func (r fakeResult) ListingRows() int { return r.listings }
func (r fakeResult) DetailRows() int  { return r.details }

// salesSearcher answers a search with the sum of the sales recorded for each
// day of the range, days without an entry have no sales.
type salesSearcher struct {
	perDay   map[string]int
	failOn   map[string]error
	searched []string
}

func (s *salesSearcher) Search(ctx context.Context, r dates.Range) (int, error) {
	s.searched = append(s.searched, r.String())
	if err, ok := s.failOn[r.String()]; ok {
		return 0, err
	}
	total := 0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		total += s.perDay[d.Format(dates.Layout)]
	}
	return total, nil
}

type fakeScraper struct {
	scraped  []string
	override map[string]fakeResult
}

func (s *fakeScraper) Scrape(ctx context.Context, r dates.Range, count int) (fakeResult, error) {
	s.scraped = append(s.scraped, r.String())
	if res, ok := s.override[r.String()]; ok {
		return res, nil
	}
	return fakeResult{listings: count, details: count}, nil
}

type fakeSink struct {
	persisted []dates.Range
	err       error
}

func (s *fakeSink) Persist(ctx context.Context, year int, r dates.Range, result fakeResult) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.persisted = append(s.persisted, r)
	return result.listings, nil
}

type memLedger struct {
	entries []Entry
}

func (l *memLedger) Record(ctx context.Context, entry Entry) error {
	l.entries = append(l.entries, entry)
	return nil
}

func newTestController(searcher Searcher, scraper *fakeScraper, sink *fakeSink, opts Options) (Controller[fakeResult], *telemetry.Recorder) {
	rec := &telemetry.Recorder{}
	return NewController[fakeResult](searcher, scraper, sink, opts, rec), rec
}

func spread(year int, perDay int) map[string]int {
	out := map[string]int{}
	r := dates.YearRange(year)
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		out[d.Format(dates.Layout)] = perDay
	}
	return out
}

func TestRunSplitsOverflowingYear(t *testing.T) {
	// 366 days * 4 sales = 1464 results, overflows once.
	searcher := &salesSearcher{perDay: spread(2020, 4)}
	scraper := &fakeScraper{}
	sink := &fakeSink{}
	ledger := &memLedger{}
	controller, _ := newTestController(searcher, scraper, sink, Options{Ledger: ledger})

	report, err := controller.Run(context.Background(), 2020, dates.YearRange(2020))
	require.NoError(t, err)

	require.Equal(t, []string{
		"01/01/2020-12/31/2020",
		"01/01/2020-07/01/2020",
		"07/02/2020-12/31/2020",
	}, searcher.searched)
	require.Equal(t, []string{
		"01/01/2020-07/01/2020",
		"07/02/2020-12/31/2020",
	}, scraper.scraped)
	require.Equal(t, 1, report.Split)
	require.Equal(t, 2, report.Accepted)
	require.Equal(t, 1464, report.RowsWritten)

	require.Len(t, ledger.entries, 3)
	require.Equal(t, "split", ledger.entries[0].Outcome)
	require.Equal(t, 1464, ledger.entries[0].Count)
	require.Equal(t, "accepted", ledger.entries[1].Outcome)
}

func TestRunAcceptedPartitionTheYear(t *testing.T) {
	perDay := map[string]int{}
	r := dates.YearRange(2021)
	i := 0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		// bursty distribution so splits are uneven
		perDay[d.Format(dates.Layout)] = (i*37)%23 + (i%50)*3
		i++
	}
	searcher := &salesSearcher{perDay: perDay}
	scraper := &fakeScraper{}
	sink := &fakeSink{}
	controller, _ := newTestController(searcher, scraper, sink, Options{Threshold: 300})

	report, err := controller.Run(context.Background(), 2021, r)
	require.NoError(t, err)
	require.Zero(t, report.Irreducible)
	require.Greater(t, report.Split, 5)

	// persisted in date order since the left half is always processed first
	require.True(t, sort.SliceIsSorted(sink.persisted, func(a, b int) bool {
		return sink.persisted[a].Start.Before(sink.persisted[b].Start)
	}))

	covered := map[string]int{}
	total := 0
	for _, accepted := range sink.persisted {
		count, _ := searcher.Search(context.Background(), accepted)
		require.Less(t, count, 300)
		total += count
		for d := accepted.Start; !d.After(accepted.End); d = d.AddDate(0, 0, 1) {
			covered[d.Format(dates.Layout)]++
		}
	}
	for day, n := range covered {
		require.Equal(t, 1, n, "day %s covered more than once", day)
	}
	for day, sales := range perDay {
		if sales > 0 {
			require.Equal(t, 1, covered[day], "day %s with sales not covered", day)
		}
	}
	require.Equal(t, total, report.RowsWritten)
}

func TestRunEmptyRangeIsNotScraped(t *testing.T) {
	searcher := &salesSearcher{perDay: map[string]int{}}
	scraper := &fakeScraper{}
	sink := &fakeSink{}
	controller, _ := newTestController(searcher, scraper, sink, Options{})

	report, err := controller.Run(context.Background(), 2019, dates.YearRange(2019))
	require.NoError(t, err)
	require.Equal(t, 1, report.Empty)
	require.Empty(t, scraper.scraped)
	require.Empty(t, sink.persisted)
}

func TestRunAcceptsUnderThreshold(t *testing.T) {
	perDay := map[string]int{"05/05/2022": 400}
	searcher := &salesSearcher{perDay: perDay}
	scraper := &fakeScraper{}
	sink := &fakeSink{}
	controller, _ := newTestController(searcher, scraper, sink, Options{})

	report, err := controller.Run(context.Background(), 2022, dates.YearRange(2022))
	require.NoError(t, err)
	require.Equal(t, 1, report.Accepted)
	require.Equal(t, []string{"01/01/2022-12/31/2022"}, scraper.scraped)
	require.Len(t, sink.persisted, 1)
}

func TestRunIrreducibleDayIsReported(t *testing.T) {
	perDay := map[string]int{"03/03/2020": 1200, "03/04/2020": 10}
	searcher := &salesSearcher{perDay: perDay}
	scraper := &fakeScraper{}
	sink := &fakeSink{}
	controller, rec := newTestController(searcher, scraper, sink, Options{})

	report, err := controller.Run(context.Background(), 2020, dates.YearRange(2020))
	require.NoError(t, err)
	require.Equal(t, 1, report.Irreducible)
	require.Len(t, report.Failures, 1)
	require.Equal(t, "03/03/2020-03/03/2020", report.Failures[0].Range.String())
	require.ErrorIs(t, report.Failures[0].Err, dates.ErrIrreducible)

	broken := rec.Find(telemetry.RecordBroken, report_controller_irreducible)
	require.Len(t, broken, 1)
	require.Equal(t, telemetry.Correlation("03/03/2020-03/03/2020"), broken[0].Params[0])

	// the neighbouring day with sales still gets scraped
	require.Contains(t, scraper.scraped, "03/04/2020-03/04/2020")
	// each single day is searched once, the walk never loops on it
	seen := 0
	for _, s := range searcher.searched {
		if s == "03/03/2020-03/03/2020" {
			seen++
		}
	}
	require.Equal(t, 1, seen)
}

func TestRunCountFailureDropsRange(t *testing.T) {
	errUnreadable := errors.New("count text unreadable")
	searcher := &salesSearcher{
		perDay: spread(2020, 4),
		failOn: map[string]error{"01/01/2020-07/01/2020": errUnreadable},
	}
	scraper := &fakeScraper{}
	sink := &fakeSink{}
	controller, rec := newTestController(searcher, scraper, sink, Options{})

	report, err := controller.Run(context.Background(), 2020, dates.YearRange(2020))
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Accepted)
	require.Equal(t, []string{"07/02/2020-12/31/2020"}, scraper.scraped)
	require.Len(t, rec.Find(telemetry.RecordBroken, report_controller_read_count), 1)
}

func TestRunFatalSearchErrorStops(t *testing.T) {
	errSession := errors.New("browser went away")
	searcher := &salesSearcher{
		perDay: spread(2020, 4),
		failOn: map[string]error{"01/01/2020-07/01/2020": errSession},
	}
	scraper := &fakeScraper{}
	sink := &fakeSink{}
	controller, _ := newTestController(searcher, scraper, sink, Options{
		IsFatal: func(err error) bool { return errors.Is(err, errSession) },
	})

	_, err := controller.Run(context.Background(), 2020, dates.YearRange(2020))
	require.ErrorIs(t, err, errSession)
	require.Empty(t, scraper.scraped)
}

func TestRunPersistFailureIsFatal(t *testing.T) {
	errDisk := errors.New("disk full")
	searcher := &salesSearcher{perDay: map[string]int{"01/05/2020": 3}}
	controller, _ := newTestController(searcher, &fakeScraper{}, &fakeSink{err: errDisk}, Options{})

	_, err := controller.Run(context.Background(), 2020, dates.YearRange(2020))
	require.ErrorIs(t, err, errDisk)
}

func TestRunIntegrityFailureIsDistinctFromEmpty(t *testing.T) {
	searcher := &salesSearcher{perDay: map[string]int{"01/05/2020": 3}}
	scraper := &fakeScraper{override: map[string]fakeResult{
		"01/01/2020-12/31/2020": {},
	}}
	sink := &fakeSink{}
	controller, rec := newTestController(searcher, scraper, sink, Options{})

	report, err := controller.Run(context.Background(), 2020, dates.YearRange(2020))
	require.NoError(t, err)
	require.Equal(t, 1, report.Integrity)
	require.Zero(t, report.Empty)
	require.Zero(t, report.Accepted)
	require.Len(t, rec.Find(telemetry.RecordBroken, report_controller_integrity), 1)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &salesSearcher{perDay: spread(2020, 4)}
	controller, _ := newTestController(searcher, &fakeScraper{}, &fakeSink{}, Options{})

	_, err := controller.Run(ctx, 2020, dates.YearRange(2020))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, searcher.searched)
}

func TestReportAdd(t *testing.T) {
	a := Report{Accepted: 1, RowsWritten: 10}
	a.Add(Report{Accepted: 2, Split: 1, RowsWritten: 5, Failures: []Failure{{Range: dates.YearRange(2020)}}})
	require.Equal(t, 3, a.Accepted)
	require.Equal(t, 1, a.Split)
	require.Equal(t, 15, a.RowsWritten)
	require.Len(t, a.Failures, 1)
}

