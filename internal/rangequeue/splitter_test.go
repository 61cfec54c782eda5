package rangequeue

import (
	"testing"

	"parcelscraper/internal/dates"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	year, err := dates.ParseRange("01/01/2020", "12/31/2020")
	require.NoError(t, err)
	left, _ := dates.ParseRange("01/01/2020", "07/01/2020")
	right, _ := dates.ParseRange("07/02/2020", "12/31/2020")
	day, _ := dates.ParseRange("03/03/2020", "03/03/2020")

	cases := []struct {
		name     string
		r        dates.Range
		count    int
		expected Decision
	}{
		{
			name:     "overflow splits",
			r:        year,
			count:    1500,
			expected: Decision{Outcome: OutcomeOverflow, Count: 1500, Replacements: [2]dates.Range{left, right}},
		},
		{
			name:     "threshold itself overflows",
			r:        year,
			count:    1000,
			expected: Decision{Outcome: OutcomeOverflow, Count: 1000, Replacements: [2]dates.Range{left, right}},
		},
		{
			name:     "zero is empty",
			r:        year,
			count:    0,
			expected: Decision{Outcome: OutcomeEmpty},
		},
		{
			name:     "under threshold accepted",
			r:        year,
			count:    400,
			expected: Decision{Outcome: OutcomeAccepted, Count: 400},
		},
		{
			name:     "just under threshold accepted",
			r:        year,
			count:    999,
			expected: Decision{Outcome: OutcomeAccepted, Count: 999},
		},
		{
			name:     "single day overflow irreducible",
			r:        day,
			count:    1200,
			expected: Decision{Outcome: OutcomeIrreducible, Count: 1200},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			got := Evaluate(test.r, test.count, DefaultThreshold)
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestEvaluateAcceptedIsIdempotent(t *testing.T) {
	r := dates.YearRange(2020)
	first := Evaluate(r, 400, DefaultThreshold)
	second := Evaluate(r, 400, DefaultThreshold)
	require.Equal(t, first, second)
	require.Equal(t, "01/01/2020-12/31/2020", r.String())
}

func TestDeque(t *testing.T) {
	a := dates.YearRange(2020)
	b := dates.YearRange(2021)
	c := dates.YearRange(2022)

	d := NewDeque(a)
	d.PushBack(b)
	d.PushFront(c)
	require.Equal(t, []dates.Range{c, a, b}, d.Ranges())

	front, ok := d.PopFront()
	require.True(t, ok)
	require.Equal(t, c, front)
	require.Equal(t, 2, d.Len())

	d.PopFront()
	d.PopFront()
	_, ok = d.Front()
	require.False(t, ok)
	_, ok = d.PopFront()
	require.False(t, ok)
}
