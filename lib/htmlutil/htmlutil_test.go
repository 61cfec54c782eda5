package htmlutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseTable(t *testing.T) {
	cases := []struct {
		name     string
		fragment string
		expected Table
	}{
		{
			name: "thead header",
			fragment: `<table id="results">
				<thead><tr><th>Parcel Number</th><th>Address</th><th>Amount</th></tr></thead>
				<tbody>
					<tr><td>419-110-01-001-000</td><td>12  MAIN   ST</td><td>$250,000</td></tr>
					<tr><td>419-110-01-002-000</td><td>14 MAIN ST</td><td>$1&nbsp;</td></tr>
				</tbody>
			</table>`,
			expected: Table{
				Columns: []string{"Parcel Number", "Address", "Amount"},
				Rows: [][]string{
					{"419-110-01-001-000", "12 MAIN ST", "$250,000"},
					{"419-110-01-002-000", "14 MAIN ST", "$1"},
				},
			},
		},
		{
			name: "th first row, ragged rows padded",
			fragment: `<table>
				<tr><th>A</th><th>B</th></tr>
				<tr><td>1</td></tr>
				<tr><td>2</td><td>3</td></tr>
			</table>`,
			expected: Table{
				Columns: []string{"A", "B"},
				Rows:    [][]string{{"1", ""}, {"2", "3"}},
			},
		},
		{
			name:     "headerless",
			fragment: `<table><tr><td>Bedrooms</td><td>4</td></tr></table>`,
			expected: Table{
				Columns: []string{"0", "1"},
				Rows:    [][]string{{"Bedrooms", "4"}},
			},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			got, err := ParseTable(test.fragment)
			require.NoError(t, err)
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestParseTableMissing(t *testing.T) {
	_, err := ParseTable(`<div>no results</div>`)
	require.Error(t, err)
}

func TestTranspose(t *testing.T) {
	table, err := ParseTable(`<table>
		<tr><td>Appraised Value:</td><td>$300,000</td></tr>
		<tr><td># Bedrooms</td><td>4</td></tr>
		<tr><td></td><td>ignored</td></tr>
		<tr><td>Appraised Value</td><td>$310,000</td></tr>
	</table>`)
	require.NoError(t, err)

	expected := []Pair{
		{Label: "Appraised Value", Value: "$310,000"},
		{Label: "# Bedrooms", Value: "4"},
	}
	if diff := cmp.Diff(expected, Transpose(table)); diff != "" {
		t.Fatal(diff)
	}
}

func TestRecords(t *testing.T) {
	table := Table{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}
	require.Equal(t, []map[string]string{{"a": "1", "b": "2"}}, table.Records())
	require.Equal(t, 1, table.Column("b"))
	require.Equal(t, -1, table.Column("c"))
}
