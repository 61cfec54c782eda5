package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestRangeOutcomes(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer database.Close()

	qry := New(database)

	inputs := []CreateRangeOutcomeParams{
		{RunID: "run-a", Year: 2020, StartDate: "01/01/2020", EndDate: "12/31/2020", Outcome: "split", Count: 1500, RecordedAt: 10},
		{RunID: "run-a", Year: 2020, StartDate: "01/01/2020", EndDate: "07/01/2020", Outcome: "accepted", Count: 700, ListingRows: 700, DetailRows: 698, RecordedAt: 11},
		{RunID: "run-a", Year: 2020, StartDate: "03/03/2020", EndDate: "03/03/2020", Outcome: "irreducible", Count: 1200, Error: "single day", RecordedAt: 12},
		{RunID: "run-b", Year: 2021, StartDate: "01/01/2021", EndDate: "12/31/2021", Outcome: "empty", RecordedAt: 20},
	}

	makeTx := NewMakeTx(database)
	tx, discard, commit, err := makeTx(ctx)
	require.NoError(t, err)
	for _, in := range inputs {
		err := tx.CreateRangeOutcome(ctx, in)
		if err != nil {
			discard()
			t.Fatal(err)
		}
	}
	require.NoError(t, commit())

	outcomes, err := qry.GetRunOutcomes(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	expected := RangeOutcome{
		RunID: "run-a", Year: 2020, StartDate: "01/01/2020", EndDate: "07/01/2020",
		Outcome: "accepted", Count: 700, ListingRows: 700, DetailRows: 698, RecordedAt: 11,
	}
	if diff := cmp.Diff(expected, outcomes[1], cmpopts.IgnoreFields(RangeOutcome{}, "ID")); diff != "" {
		t.Fatal(diff)
	}

	latest, err := qry.GetLatestRunID(ctx)
	require.NoError(t, err)
	require.Equal(t, "run-b", latest)

	runs, err := qry.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []RunSummary{
		{RunID: "run-b", StartedAt: 20, Ranges: 1, Failed: 0},
		{RunID: "run-a", StartedAt: 10, Ranges: 3, Failed: 1},
	}, runs)
}

func TestGeocodeCache(t *testing.T) {
	ctx := context.Background()
	database, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer database.Close()
	qry := New(database)

	_, err = qry.GetGeocode(ctx, GetGeocodeParams{Address: "1 Main St", Zip: "43015"})
	require.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, qry.PutGeocode(ctx, PutGeocodeParams{Address: "1 Main St", Zip: "43015", LookedUpAt: 1}))
	require.NoError(t, qry.PutGeocode(ctx, PutGeocodeParams{
		Address: "1 Main St", Zip: "43015", Found: true, FormattedAddress: "1 Main St, Delaware, OH 43015, USA",
		Lat: 40.29, Lng: -83.06, LookedUpAt: 2,
	}))

	got, err := qry.GetGeocode(ctx, GetGeocodeParams{Address: "1 Main St", Zip: "43015"})
	require.NoError(t, err)
	require.Equal(t, GeocodeCache{
		Address: "1 Main St", Zip: "43015", Found: true, FormattedAddress: "1 Main St, Delaware, OH 43015, USA",
		Lat: 40.29, Lng: -83.06, LookedUpAt: 2,
	}, got)
}
