// Package dates models the inclusive calendar date ranges that search
// queries are filtered by.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the date format the county search form accepts.
const Layout = "01/02/2006"

const day = 24 * time.Hour

// ErrIrreducible is returned when a single-day range is asked to split.
var ErrIrreducible = errors.New("range spans a single day and cannot be split")

// Range is an inclusive span of calendar days, Start <= End always holds.
// Both ends are normalized to midnight UTC so day arithmetic never crosses a
// DST boundary.
type Range struct {
	Start time.Time
	End   time.Time
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewRange builds a range out of two dates, the time of day is discarded.
func NewRange(start, end time.Time) (Range, error) {
	start = truncate(start)
	end = truncate(end)
	if end.Before(start) {
		return Range{}, fmt.Errorf("range end %s is before start %s", end.Format(Layout), start.Format(Layout))
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange parses two MM/DD/YYYY dates.
func ParseRange(start, end string) (Range, error) {
	s, err := time.Parse(Layout, strings.TrimSpace(start))
	if err != nil {
		return Range{}, fmt.Errorf("parse start: %w", err)
	}
	e, err := time.Parse(Layout, strings.TrimSpace(end))
	if err != nil {
		return Range{}, fmt.Errorf("parse end: %w", err)
	}
	return NewRange(s, e)
}

// YearRange is Jan 1st through Dec 31st of year.
func YearRange(year int) Range {
	return Range{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

func (r Range) StartString() string {
	return r.Start.Format(Layout)
}

func (r Range) EndString() string {
	return r.End.Format(Layout)
}

func (r Range) String() string {
	return fmt.Sprintf("%s-%s", r.StartString(), r.EndString())
}

// Days is the number of calendar days covered, a single-day range has 1.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start)/day) + 1
}

// SingleDay reports whether the range cannot be bisected any further.
func (r Range) SingleDay() bool {
	return r.Start.Equal(r.End)
}

// Midpoint is start + floor((end - start) / 2), truncated to a whole day.
func (r Range) Midpoint() time.Time {
	half := (r.Days() - 1) / 2
	return r.Start.AddDate(0, 0, half)
}

// Split bisects the range into [start, mid] and [mid+1, end]. The halves are
// disjoint, adjacent and together cover exactly the original range.
func (r Range) Split() (Range, Range, error) {
	if r.SingleDay() {
		return Range{}, Range{}, ErrIrreducible
	}
	mid := r.Midpoint()
	left := Range{Start: r.Start, End: mid}
	right := Range{Start: mid.AddDate(0, 0, 1), End: r.End}
	return left, right, nil
}

// Contains reports whether t falls on one of the range's days.
func (r Range) Contains(t time.Time) bool {
	t = truncate(t)
	return !t.Before(r.Start) && !t.After(r.End)
}
