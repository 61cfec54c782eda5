// Package ledger records the outcome of every processed date range in the
// run database, so a run can be inspected after the fact.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/components/chrono"
	"parcelscraper/internal/components/db"
	"parcelscraper/internal/rangequeue"

	"github.com/mazen160/go-random"
)

// NewRunID returns a random id for a run.
func NewRunID() (string, error) {
	id, err := random.String(8)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return strings.ToLower(id), nil
}

type Ledger struct {
	qry   *db.Queries
	runID string
	clock chrono.API
}

func New(qry *db.Queries, runID string, clock chrono.API) Ledger {
	assert.NotNil(qry)
	assert.NotEmptyStr(runID)
	assert.NotNil(clock)
	return Ledger{qry: qry, runID: runID, clock: clock}
}

func (l Ledger) RunID() string {
	return l.runID
}

func (l Ledger) Record(ctx context.Context, entry rangequeue.Entry) error {
	errText := ""
	if entry.Err != nil {
		errText = entry.Err.Error()
	}
	return l.qry.CreateRangeOutcome(ctx, db.CreateRangeOutcomeParams{
		RunID:       l.runID,
		Year:        int64(entry.Year),
		StartDate:   entry.Range.StartString(),
		EndDate:     entry.Range.EndString(),
		Outcome:     entry.Outcome,
		Count:       int64(entry.Count),
		ListingRows: int64(entry.ListingRows),
		DetailRows:  int64(entry.DetailRows),
		Error:       errText,
		RecordedAt:  l.clock.Now().Unix(),
	})
}

// Outcomes returns the recorded entries of a run in the order they were
// recorded.
func Outcomes(ctx context.Context, qry *db.Queries, runID string) ([]db.RangeOutcome, error) {
	return qry.GetRunOutcomes(ctx, runID)
}
