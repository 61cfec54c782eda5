package rangequeue

import (
	"parcelscraper/internal/dates"
)

// DefaultThreshold is the number of results at which the county site stops
// returning complete result sets.
const DefaultThreshold = 1000

type Outcome int

const (
	// OutcomeAccepted means the range's results can be fetched in full.
	OutcomeAccepted Outcome = iota
	// OutcomeEmpty means the range has no results and is discarded.
	OutcomeEmpty
	// OutcomeOverflow means the range must be replaced by its two halves.
	OutcomeOverflow
	// OutcomeIrreducible means a single day alone overflows, the range can
	// never be fetched completely and must be reported.
	OutcomeIrreducible
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeEmpty:
		return "empty"
	case OutcomeOverflow:
		return "split"
	case OutcomeIrreducible:
		return "irreducible"
	}
	return "unknown"
}

// Decision is what the controller should do with the range at the front of
// the queue. Replacements is only meaningful for OutcomeOverflow and holds
// the left half first.
type Decision struct {
	Outcome      Outcome
	Count        int
	Replacements [2]dates.Range
}

// Evaluate decides what happens to a range given its result count. It does
// not mutate anything, so evaluating an accepted range twice yields the same
// decision.
func Evaluate(r dates.Range, count int, threshold int) Decision {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	switch {
	case count <= 0:
		return Decision{Outcome: OutcomeEmpty}
	case count < threshold:
		return Decision{Outcome: OutcomeAccepted, Count: count}
	}

	left, right, err := r.Split()
	if err != nil {
		return Decision{Outcome: OutcomeIrreducible, Count: count}
	}
	return Decision{
		Outcome:      OutcomeOverflow,
		Count:        count,
		Replacements: [2]dates.Range{left, right},
	}
}
