package geocode

import (
	"context"
	"fmt"
	"strconv"

	"parcelscraper/internal/components/telemetry"
	"parcelscraper/internal/consolidate"

	shp "github.com/jonas-p/go-shp"
)

const (
	report_geocode_district = "geocode.district"
	report_geocode_found    = "found"
)

const (
	ColumnFormattedAddress = "formatted_address"
	ColumnLatitude         = "latitude"
	ColumnLongitude        = "longitude"
)

type Lookuper interface {
	Lookup(ctx context.Context, address string, zips []string) (Result, error)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Annotate geocodes the new_address of every row of an extract, appending
// the formatted address and coordinates columns. Rows whose school district
// has no zip codes configured are left blank.
func Annotate(ctx context.Context, lookup Lookuper, table consolidate.Table, zipCodes map[string][]string, tel telemetry.API) (consolidate.Table, error) {
	tel = telemetry.NewScopedAPI("geocode", tel)

	out := consolidate.Table{
		Columns: append(append([]string{}, table.Columns...), ColumnFormattedAddress, ColumnLatitude, ColumnLongitude),
		Rows:    make([][]string, 0, len(table.Rows)),
	}
	missing := map[string]bool{}
	found := 0
	for i, row := range table.Rows {
		extended := append(append(make([]string, 0, len(out.Columns)), row...), "", "", "")
		address := table.Value(i, consolidate.ColumnNewAddress)
		district := table.Value(i, consolidate.ColumnSchoolDistrict)

		zips, ok := zipCodes[district]
		if !ok && district != "" && !missing[district] {
			missing[district] = true
			tel.ReportWarning(report_geocode_district, district)
		}
		if address != "" && len(zips) > 0 {
			result, err := lookup.Lookup(ctx, address, zips)
			if err != nil {
				return consolidate.Table{}, fmt.Errorf("geocode row %d: %w", i, err)
			}
			if result.Found {
				n := len(extended)
				extended[n-3] = result.FormattedAddress
				extended[n-2] = formatCoord(result.Lat)
				extended[n-1] = formatCoord(result.Lng)
				found++
			}
		}
		out.Rows = append(out.Rows, extended)
	}
	tel.ReportCount(report_geocode_found, int64(found))
	return out, nil
}

// WriteShapefile writes the geocoded rows of an annotated extract as a point
// shapefile, rows without coordinates are skipped.
func WriteShapefile(path string, table consolidate.Table) (int, error) {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, err
	}
	defer w.Close()

	w.SetFields([]shp.Field{
		shp.StringField("PARCEL", 32),
		shp.StringField("ADDRESS", 254),
		shp.StringField("OWNERMATCH", 1),
		shp.FloatField("LAT", 18, 8),
		shp.FloatField("LNG", 18, 8),
	})

	written := 0
	for i := range table.Rows {
		lat, err := strconv.ParseFloat(table.Value(i, ColumnLatitude), 64)
		if err != nil {
			continue
		}
		lng, err := strconv.ParseFloat(table.Value(i, ColumnLongitude), 64)
		if err != nil {
			continue
		}

		idx := int(w.Write(&shp.Point{X: lng, Y: lat}))
		attrs := []any{
			table.Value(i, "parcel_number"),
			table.Value(i, ColumnFormattedAddress),
			table.Value(i, consolidate.ColumnOwnerHomeMatch),
			lat,
			lng,
		}
		for field, value := range attrs {
			if err := w.WriteAttribute(idx, field, value); err != nil {
				return written, fmt.Errorf("write attribute %d of row %d: %w", field, i, err)
			}
		}
		written++
	}
	return written, nil
}
