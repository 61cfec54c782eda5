// Package consolidate joins scraped listing rows with parcel detail records
// into the flat rows written to the CSV extracts.
package consolidate

import (
	"regexp"
	"strings"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/components/telemetry"
	"parcelscraper/internal/scrapers/auditor"
)

const (
	report_consolidate_missing_key = "consolidate.missing-parcel"
	report_consolidate_owner       = "consolidate.owner-address"
	report_consolidate_city        = "consolidate.city"
	report_consolidate_duplicates  = "duplicates"
)

// DefaultState is the state code of synthesized addresses.
const DefaultState = "OH"

// DefaultStreetTypes normalizes the auditor's street type abbreviations.
var DefaultStreetTypes = map[string]string{
	"AVE":  "Avenue",
	"BLVD": "Boulevard",
	"CIR":  "Circle",
	"CT":   "Court",
	"CV":   "Cove",
	"DR":   "Drive",
	"GRV":  "Grove",
	"HWY":  "Highway",
	"LN":   "Lane",
	"PKWY": "Parkway",
	"PL":   "Place",
	"PT":   "Point",
	"RD":   "Road",
	"SQ":   "Square",
	"ST":   "Street",
	"TER":  "Terrace",
	"TRL":  "Trail",
	"XING": "Crossing",
}

var droppedColumns = map[string]bool{
	"last_transfer_date": true,
	"last_sale_amount":   true,
	"parcel_id":          true,
}

var (
	columnNameSpaces  = regexp.MustCompile(`\s+`)
	columnNameInvalid = regexp.MustCompile(`[^a-z0-9_]`)
)

// FormatColumnName turns a page label into a column name, ex.
// "Finished Sq Ft" -> "finished_sq_ft".
func FormatColumnName(label string) string {
	name := strings.ToLower(strings.TrimSpace(label))
	name = columnNameSpaces.ReplaceAllString(name, "_")
	return columnNameInvalid.ReplaceAllString(name, "")
}

// Derived columns appended after the scraped ones.
const (
	ColumnSchoolDistrict     = "school_district"
	ColumnOwnerAddress       = "owner_address"
	ColumnOwnerStreetAddress = "owner_street_address"
	ColumnOwnerCity          = "owner_city"
	ColumnOwnerState         = "owner_state"
	ColumnOwnerPostalCode    = "owner_postal_code"
	ColumnOwnerHomeMatch     = "owner_home_address_match"
	ColumnStreetNumber       = "st_num"
	ColumnUnit               = "apt_num"
	ColumnStreet             = "street"
	ColumnCity               = "city"
	ColumnState              = "state"
	ColumnNewAddress         = "new_address"
)

var derivedColumns = []string{
	ColumnOwnerStreetAddress,
	ColumnOwnerCity,
	ColumnOwnerState,
	ColumnOwnerPostalCode,
	ColumnOwnerHomeMatch,
	ColumnStreetNumber,
	ColumnUnit,
	ColumnStreet,
	ColumnCity,
	ColumnState,
	ColumnNewAddress,
}

// Table is a set of consolidated rows, every row is aligned with Columns and
// an empty string stands for a missing value.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of a column or -1.
func (t Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

// Value returns the value of a column in row i.
func (t Table) Value(i int, column string) string {
	idx := t.Index(column)
	if idx < 0 || idx >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][idx]
}

type Options struct {
	// StreetTypes replaces street type words in the situs address.
	StreetTypes map[string]string
	// SchoolCities maps a school district to the city used in new_address.
	SchoolCities map[string]string
	State        string
	// KnownStreets enables fuzzy street name correction when not empty.
	KnownStreets []string
	FuzzyCutoff  float64
}

type Consolidator struct {
	streetTypes  StreetTypeReplacer
	corrector    StreetCorrector
	schoolCities map[string]string
	state        string
	tel          telemetry.API
}

func NewConsolidator(opts Options, tel telemetry.API) Consolidator {
	assert.NotNil(tel)

	state := opts.State
	if state == "" {
		state = DefaultState
	}
	streetTypes := opts.StreetTypes
	if streetTypes == nil {
		streetTypes = DefaultStreetTypes
	}
	return Consolidator{
		streetTypes:  NewStreetTypeReplacer(streetTypes),
		corrector:    NewStreetCorrector(opts.KnownStreets, opts.FuzzyCutoff),
		schoolCities: opts.SchoolCities,
		state:        state,
		tel:          telemetry.NewScopedAPI("consolidate", tel),
	}
}

type column struct {
	name  string
	label string
}

// appraisalColumns lists the appraisal labels of all details in first seen
// order, without the dropped columns.
func appraisalColumns(details []auditor.Detail, taken map[string]bool) []column {
	var out []column
	for _, d := range details {
		for _, p := range d.Appraisal {
			name := FormatColumnName(p.Label)
			if name == "" || taken[name] || droppedColumns[name] {
				continue
			}
			taken[name] = true
			out = append(out, column{name: name, label: p.Label})
		}
	}
	return out
}

func dedupeDetails(details []auditor.Detail) map[string][]auditor.Detail {
	seen := map[string]bool{}
	out := map[string][]auditor.Detail{}
	for _, d := range details {
		var key strings.Builder
		key.WriteString(d.ParcelID)
		for _, p := range d.Appraisal {
			key.WriteString("\x00" + p.Label + "\x01" + p.Value)
		}
		key.WriteString("\x00" + d.SchoolDistrict + "\x00" + d.OwnerAddress)
		if seen[key.String()] {
			continue
		}
		seen[key.String()] = true
		out[d.ParcelID] = append(out[d.ParcelID], d)
	}
	return out
}

// Consolidate left joins the listings of a scrape with its details on the
// parcel number, derives the owner and situs address columns and removes
// exact duplicate rows. Listings without a parcel number are dropped.
func (c Consolidator) Consolidate(result auditor.Result) Table {
	taken := map[string]bool{}
	var listingCols []int
	table := Table{}
	for i, label := range auditor.ListingColumns {
		name := FormatColumnName(label)
		if droppedColumns[name] || taken[name] {
			continue
		}
		taken[name] = true
		listingCols = append(listingCols, i)
		table.Columns = append(table.Columns, name)
	}
	appraisal := appraisalColumns(result.Details, taken)
	for _, col := range appraisal {
		table.Columns = append(table.Columns, col.name)
	}
	table.Columns = append(table.Columns, ColumnSchoolDistrict, ColumnOwnerAddress)
	table.Columns = append(table.Columns, derivedColumns...)

	details := dedupeDetails(result.Details)
	seen := map[string]bool{}
	duplicates := 0
	for _, listing := range result.Listings {
		if strings.TrimSpace(listing.ParcelNumber) == "" {
			c.tel.ReportWarning(report_consolidate_missing_key, listing.Address)
			continue
		}
		matches := details[listing.ParcelNumber]
		if len(matches) == 0 {
			matches = []auditor.Detail{{}}
		}
		for _, d := range matches {
			row := c.row(listing, listingCols, appraisal, d)
			key := strings.Join(row, "\x00")
			if seen[key] {
				duplicates++
				continue
			}
			seen[key] = true
			table.Rows = append(table.Rows, row)
		}
	}
	if duplicates > 0 {
		c.tel.ReportCount(report_consolidate_duplicates, int64(duplicates))
	}
	return table
}

func (c Consolidator) row(listing auditor.Listing, listingCols []int, appraisal []column, d auditor.Detail) []string {
	values := listing.Values()
	row := make([]string, 0, len(listingCols)+len(appraisal)+2+len(derivedColumns))

	situs := c.streetTypes.Replace(listing.Address)
	for _, i := range listingCols {
		if auditor.ListingColumns[i] == "Address" {
			row = append(row, situs)
			continue
		}
		row = append(row, values[i])
	}
	for _, col := range appraisal {
		v, _ := d.Field(col.label)
		row = append(row, v)
	}
	row = append(row, d.SchoolDistrict, d.OwnerAddress)

	// every row without a confirmed owner match is "N", detail or not
	var owner OwnerAddress
	match := "N"
	if d.OwnerAddress != "" {
		parsed, ok := ParseOwnerAddress(d.OwnerAddress)
		if ok {
			owner = parsed
		} else {
			c.tel.ReportWarning(report_consolidate_owner, listing.ParcelNumber, d.OwnerAddress)
		}
		if ok && OwnerLivesAtProperty(situs, owner) {
			match = "Y"
		}
	}

	parts := TagAddress(situs)
	parts.Street = c.corrector.Correct(parts.Street)

	city := ""
	if d.SchoolDistrict != "" {
		mapped, ok := c.schoolCities[d.SchoolDistrict]
		if !ok {
			c.tel.ReportWarning(report_consolidate_city, d.SchoolDistrict)
		}
		city = mapped
	}

	newAddress := ""
	switch {
	case match == "Y":
		if owner.Street != "" && owner.City != "" && owner.State != "" && owner.PostalCode != "" {
			newAddress = owner.Street + " " + owner.City + ", " + owner.State + " " + owner.PostalCode
		}
	default:
		if parts.Number != "" && parts.Street != "" && city != "" {
			newAddress = parts.Number + " " + parts.Street + " " + city + ", " + c.state
		}
	}

	return append(row,
		owner.Street,
		owner.City,
		owner.State,
		owner.PostalCode,
		match,
		parts.Number,
		parts.Unit,
		parts.Street,
		city,
		c.state,
		newAddress,
	)
}
