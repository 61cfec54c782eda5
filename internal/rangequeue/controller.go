package rangequeue

import (
	"context"
	"errors"
	"fmt"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/components/telemetry"
	"parcelscraper/internal/dates"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("parcelscraper/internal/rangequeue")
var meter = otel.Meter("parcelscraper/internal/rangequeue")
var rangeCounter, _ = meter.Int64Counter(
	"ranges_processed",
	metric.WithDescription("date ranges processed, by outcome"),
)

const (
	report_controller_read_count  = "controller.read-count"
	report_controller_irreducible = "controller.irreducible"
	report_controller_scrape      = "controller.scrape"
	report_controller_integrity   = "controller.integrity"
	report_controller_mismatch    = "controller.count-mismatch"
	report_controller_ledger      = "controller.ledger"
	report_controller_accepted    = "accepted"
	report_controller_rows        = "rows"
)

// Searcher submits the search form for a range and reads back how many
// results the site reports for it.
type Searcher interface {
	Search(ctx context.Context, r dates.Range) (count int, err error)
}

// Scraped is the minimum the controller needs to know about a scrape.
type Scraped interface {
	ListingRows() int
	DetailRows() int
}

// Scraper fetches every listing row and detail record of a range whose
// search has just been submitted.
type Scraper[T Scraped] interface {
	Scrape(ctx context.Context, r dates.Range, count int) (T, error)
}

// Sink persists the scrape of one accepted range, returning how many output
// rows were written.
type Sink[T Scraped] interface {
	Persist(ctx context.Context, year int, r dates.Range, result T) (rows int, err error)
}

// Entry is one processed range as written to the run ledger.
type Entry struct {
	Year        int
	Range       dates.Range
	Outcome     string
	Count       int
	ListingRows int
	DetailRows  int
	Err         error
}

// Ledger keeps a durable record of every range outcome of a run.
type Ledger interface {
	Record(ctx context.Context, entry Entry) error
}

// Failure is a range that was dropped without its data being fetched.
type Failure struct {
	Range dates.Range
	Err   error
}

type Report struct {
	Accepted    int
	Empty       int
	Split       int
	Irreducible int
	Failed      int
	Integrity   int
	RowsWritten int
	Failures    []Failure
}

func (r *Report) Add(other Report) {
	r.Accepted += other.Accepted
	r.Empty += other.Empty
	r.Split += other.Split
	r.Irreducible += other.Irreducible
	r.Failed += other.Failed
	r.Integrity += other.Integrity
	r.RowsWritten += other.RowsWritten
	r.Failures = append(r.Failures, other.Failures...)
}

type Options struct {
	// Threshold is the count at which a range overflows, defaults to
	// DefaultThreshold.
	Threshold int
	// IsFatal decides whether a search or scrape error means the session is
	// gone and the run cannot continue. Context errors are always fatal.
	IsFatal func(err error) bool
	// Ledger is optional.
	Ledger Ledger
}

type Controller[T Scraped] struct {
	searcher Searcher
	scraper  Scraper[T]
	sink     Sink[T]
	options  Options
	tel      telemetry.API
}

func NewController[T Scraped](
	searcher Searcher,
	scraper Scraper[T],
	sink Sink[T],
	options Options,
	tel telemetry.API,
) Controller[T] {
	assert.NotNil(searcher)
	assert.NotNil(scraper)
	assert.NotNil(sink)
	assert.NotNil(tel)

	if options.Threshold <= 0 {
		options.Threshold = DefaultThreshold
	}
	return Controller[T]{
		searcher: searcher,
		scraper:  scraper,
		sink:     sink,
		options:  options,
		tel:      telemetry.NewScopedAPI("rangequeue", tel),
	}
}

func (c Controller[T]) fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return c.options.IsFatal != nil && c.options.IsFatal(err)
}

func (c Controller[T]) record(ctx context.Context, tel telemetry.API, entry Entry) {
	rangeCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", entry.Outcome),
		attribute.Int("year", entry.Year),
	))
	if c.options.Ledger == nil {
		return
	}
	err := c.options.Ledger.Record(ctx, entry)
	if err != nil {
		tel.ReportWarning(report_controller_ledger, err)
	}
}

// Run walks the queue seeded with `initial` until it is empty. The queue
// always holds a partition of the part of `initial` that has not been
// processed yet.
//
// Only session loss, context cancellation or a failure to persist output
// stop the walk early, everything else is reported and the walk moves on.
func (c Controller[T]) Run(ctx context.Context, year int, initial dates.Range) (Report, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", year),
		attribute.String("range", initial.String()),
	)

	var report Report
	queue := NewDeque(initial)

	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "canceled")
			return report, err
		}

		current, _ := queue.Front()
		err := c.step(ctx, year, current, queue, &report)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return report, err
		}
	}

	return report, nil
}

// step processes the front of the queue. The front is only removed once the
// range has been fully dealt with.
func (c Controller[T]) step(ctx context.Context, year int, current dates.Range, queue *Deque, report *Report) error {
	ctx, span := tracer.Start(ctx, "step", trace.WithAttributes(
		attribute.String("range", current.String()),
	))
	defer span.End()

	tel := telemetry.NewCorrelatedAPI(current.String(), c.tel)
	entry := Entry{Year: year, Range: current}

	count, err := c.searcher.Search(ctx, current)
	if err == nil && count < 0 {
		err = fmt.Errorf("negative result count %d", count)
	}
	if err != nil {
		if c.fatal(ctx, err) {
			return fmt.Errorf("search %s: %w", current, err)
		}
		tel.ReportBroken(report_controller_read_count, err)
		queue.PopFront()
		report.Failed++
		report.Failures = append(report.Failures, Failure{Range: current, Err: err})
		entry.Outcome = "failed"
		entry.Err = err
		c.record(ctx, tel, entry)
		return nil
	}

	decision := Evaluate(current, count, c.options.Threshold)
	entry.Outcome = decision.Outcome.String()
	entry.Count = count
	span.SetAttributes(
		attribute.Int("count", count),
		attribute.String("outcome", entry.Outcome),
	)

	switch decision.Outcome {
	case OutcomeEmpty:
		tel.ReportDebug("range empty")
		queue.PopFront()
		report.Empty++
		c.record(ctx, tel, entry)
		return nil

	case OutcomeOverflow:
		tel.ReportDebug("range overflows, splitting", count, decision.Replacements[0].String(), decision.Replacements[1].String())
		queue.PopFront()
		queue.PushFront(decision.Replacements[1])
		queue.PushFront(decision.Replacements[0])
		report.Split++
		c.record(ctx, tel, entry)
		return nil

	case OutcomeIrreducible:
		err := fmt.Errorf("%w: %d results on %s", dates.ErrIrreducible, count, current.StartString())
		tel.ReportBroken(report_controller_irreducible, err)
		queue.PopFront()
		report.Irreducible++
		report.Failures = append(report.Failures, Failure{Range: current, Err: err})
		entry.Err = err
		c.record(ctx, tel, entry)
		return nil
	}

	result, err := c.scraper.Scrape(ctx, current, count)
	if err != nil {
		if c.fatal(ctx, err) {
			return fmt.Errorf("scrape %s: %w", current, err)
		}
		tel.ReportBroken(report_controller_scrape, err)
		queue.PopFront()
		report.Failed++
		report.Failures = append(report.Failures, Failure{Range: current, Err: err})
		entry.Outcome = "failed"
		entry.Err = err
		c.record(ctx, tel, entry)
		return nil
	}

	entry.ListingRows = result.ListingRows()
	entry.DetailRows = result.DetailRows()
	switch {
	case entry.ListingRows == 0:
		err := fmt.Errorf("site reported %d results but no listing rows were read", count)
		tel.ReportBroken(report_controller_integrity, err)
		entry.Outcome = "integrity"
		entry.Err = err
		report.Integrity++
		report.Failures = append(report.Failures, Failure{Range: current, Err: err})
	case entry.ListingRows != count:
		tel.ReportWarning(report_controller_mismatch, count, entry.ListingRows)
	}

	rows, err := c.sink.Persist(ctx, year, current, result)
	if err != nil {
		return fmt.Errorf("persist %s: %w", current, err)
	}
	queue.PopFront()

	if entry.Outcome == OutcomeAccepted.String() {
		report.Accepted++
		tel.ReportCount(report_controller_accepted, int64(count))
	}
	report.RowsWritten += rows
	tel.ReportCount(report_controller_rows, int64(rows))
	c.record(ctx, tel, entry)
	return nil
}
