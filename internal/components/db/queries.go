package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type RangeOutcome struct {
	ID          int64
	RunID       string
	Year        int64
	StartDate   string
	EndDate     string
	Outcome     string
	Count       int64
	ListingRows int64
	DetailRows  int64
	Error       string
	RecordedAt  int64
}

const createRangeOutcome = `-- name: CreateRangeOutcome :exec
insert into range_outcome (
    run_id, year, start_date, end_date, outcome, count, listing_rows, detail_rows, error, recorded_at
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateRangeOutcomeParams struct {
	RunID       string
	Year        int64
	StartDate   string
	EndDate     string
	Outcome     string
	Count       int64
	ListingRows int64
	DetailRows  int64
	Error       string
	RecordedAt  int64
}

func (q *Queries) CreateRangeOutcome(ctx context.Context, arg CreateRangeOutcomeParams) error {
	_, err := q.db.ExecContext(ctx, createRangeOutcome,
		arg.RunID,
		arg.Year,
		arg.StartDate,
		arg.EndDate,
		arg.Outcome,
		arg.Count,
		arg.ListingRows,
		arg.DetailRows,
		arg.Error,
		arg.RecordedAt,
	)
	return err
}

const getRunOutcomes = `-- name: GetRunOutcomes :many
select id, run_id, year, start_date, end_date, outcome, count, listing_rows, detail_rows, error, recorded_at
from range_outcome
where run_id = ?
order by id
`

func (q *Queries) GetRunOutcomes(ctx context.Context, runID string) ([]RangeOutcome, error) {
	rows, err := q.db.QueryContext(ctx, getRunOutcomes, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RangeOutcome
	for rows.Next() {
		var i RangeOutcome
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.Year,
			&i.StartDate,
			&i.EndDate,
			&i.Outcome,
			&i.Count,
			&i.ListingRows,
			&i.DetailRows,
			&i.Error,
			&i.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLatestRunID = `-- name: GetLatestRunID :one
select run_id from range_outcome
order by recorded_at desc, id desc
limit 1
`

func (q *Queries) GetLatestRunID(ctx context.Context) (string, error) {
	row := q.db.QueryRowContext(ctx, getLatestRunID)
	var runID string
	err := row.Scan(&runID)
	return runID, err
}

type RunSummary struct {
	RunID     string
	StartedAt int64
	Ranges    int64
	Failed    int64
}

const listRuns = `-- name: ListRuns :many
select
    run_id,
    min(recorded_at) as started_at,
    count(*) as ranges,
    sum(case when outcome in ('irreducible', 'failed') then 1 else 0 end) as failed
from range_outcome
group by run_id
order by started_at desc
limit ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]RunSummary, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RunSummary
	for rows.Next() {
		var i RunSummary
		if err := rows.Scan(&i.RunID, &i.StartedAt, &i.Ranges, &i.Failed); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type GeocodeCache struct {
	Address          string
	Zip              string
	Found            bool
	FormattedAddress string
	Lat              float64
	Lng              float64
	LookedUpAt       int64
}

const getGeocode = `-- name: GetGeocode :one
select address, zip, found, formatted_address, lat, lng, looked_up_at from geocode_cache
where address = ? and zip = ?
`

type GetGeocodeParams struct {
	Address string
	Zip     string
}

func (q *Queries) GetGeocode(ctx context.Context, arg GetGeocodeParams) (GeocodeCache, error) {
	row := q.db.QueryRowContext(ctx, getGeocode, arg.Address, arg.Zip)
	var i GeocodeCache
	err := row.Scan(
		&i.Address,
		&i.Zip,
		&i.Found,
		&i.FormattedAddress,
		&i.Lat,
		&i.Lng,
		&i.LookedUpAt,
	)
	return i, err
}

const putGeocode = `-- name: PutGeocode :exec
insert into geocode_cache (address, zip, found, formatted_address, lat, lng, looked_up_at)
values (?, ?, ?, ?, ?, ?, ?)
on conflict (address, zip) do update set
    found = excluded.found,
    formatted_address = excluded.formatted_address,
    lat = excluded.lat,
    lng = excluded.lng,
    looked_up_at = excluded.looked_up_at
`

type PutGeocodeParams struct {
	Address          string
	Zip              string
	Found            bool
	FormattedAddress string
	Lat              float64
	Lng              float64
	LookedUpAt       int64
}

func (q *Queries) PutGeocode(ctx context.Context, arg PutGeocodeParams) error {
	_, err := q.db.ExecContext(ctx, putGeocode,
		arg.Address,
		arg.Zip,
		arg.Found,
		arg.FormattedAddress,
		arg.Lat,
		arg.Lng,
		arg.LookedUpAt,
	)
	return err
}
