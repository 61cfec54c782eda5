package auditor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"parcelscraper/lib/htmlutil"
)

// ErrParcelFormat is returned when the parcel header does not carry the
// parcel id on its second line.
var ErrParcelFormat = errors.New("unexpected parcel header format")

// appraisal rows that are already on the listing row or are not wanted.
var droppedAppraisalLabels = map[string]bool{
	"Year Built":        true,
	"Deed Number":       true,
	"# of Parcels Sold": true,
}

var renamedAppraisalLabels = map[string]string{
	"# Bedrooms":       "Bedrooms",
	"# Full Bathrooms": "Full Baths",
	"# Half Bathrooms": "Half Baths",
}

// Detail is what the property page of a single parcel yields.
type Detail struct {
	ParcelID string
	// Appraisal holds the appraisal table in page order, after dropping and
	// renaming labels.
	Appraisal      []htmlutil.Pair
	SchoolDistrict string
	OwnerAddress   string
}

// Field returns the appraisal value of a label.
func (d Detail) Field(label string) (string, bool) {
	for _, p := range d.Appraisal {
		if p.Label == label {
			return p.Value, true
		}
	}
	return "", false
}

// ParseParcelID takes the parcel id off the second line of the parcel
// header text.
func ParseParcelID(header string) (string, error) {
	lines := strings.Split(header, "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) == "" {
		return "", fmt.Errorf("%w: %q", ErrParcelFormat, header)
	}
	return strings.TrimSpace(lines[1]), nil
}

// CleanAppraisal drops and renames appraisal labels.
func CleanAppraisal(pairs []htmlutil.Pair) []htmlutil.Pair {
	out := make([]htmlutil.Pair, 0, len(pairs))
	for _, p := range pairs {
		if droppedAppraisalLabels[p.Label] {
			continue
		}
		if renamed, ok := renamedAppraisalLabels[p.Label]; ok {
			p.Label = renamed
		}
		out = append(out, p)
	}
	return out
}

// ExtractDetail reads the property page currently displayed.
func ExtractDetail(ctx context.Context, accessor Accessor, locators Property) (Detail, error) {
	header, err := accessor.Text(ctx, locators.ParcelHeader)
	if err != nil {
		return Detail{}, fmt.Errorf("parcel header: %w", err)
	}
	parcelId, err := ParseParcelID(header)
	if err != nil {
		return Detail{}, err
	}

	table, err := ExtractTable(ctx, accessor, locators.AppraisalTable)
	if err != nil {
		return Detail{}, fmt.Errorf("appraisal of %s: %w", parcelId, err)
	}
	appraisal := CleanAppraisal(htmlutil.Transpose(table))
	if len(appraisal) == 0 {
		return Detail{}, fmt.Errorf("appraisal of %s: table is empty", parcelId)
	}

	school, err := accessor.Text(ctx, locators.SchoolDistrict)
	if err != nil {
		return Detail{}, fmt.Errorf("school district of %s: %w", parcelId, err)
	}
	owner, err := accessor.Text(ctx, locators.Owner)
	if err != nil {
		return Detail{}, fmt.Errorf("owner of %s: %w", parcelId, err)
	}

	return Detail{
		ParcelID:       parcelId,
		Appraisal:      appraisal,
		SchoolDistrict: school,
		OwnerAddress:   owner,
	}, nil
}
