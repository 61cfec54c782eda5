package auditor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"parcelscraper/internal/browser"
	"parcelscraper/internal/components/chrono"
	"parcelscraper/internal/components/telemetry"
)

type fakeProperty struct {
	parcelId  string
	malformed bool
	appraisal [][2]string
	school    string
	owner     string
}

// fakeSite simulates the county site's search, results and property views
// behind the browser.Page interface.
type fakeSite struct {
	mutex    sync.Mutex
	locators Locators

	count     int
	countText string
	noResults bool
	pages     [][]Listing
	props     []fakeProperty

	// transient maps a locator to errors returned (in order) before the
	// locator starts working.
	transient map[string][]error
	// broken makes every call on a locator fail with the error.
	broken map[string]error

	view     string
	page     int
	property int
	form     map[string]string
	visits   []string
	closed   bool
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		locators:  DefaultLocators(),
		transient: map[string][]error{},
		broken:    map[string]error{},
		form:      map[string]string{},
	}
}

func (f *fakeSite) fail(locator string) error {
	if err, ok := f.broken[locator]; ok {
		return err
	}
	if queued := f.transient[locator]; len(queued) > 0 {
		f.transient[locator] = queued[1:]
		return queued[0]
	}
	return nil
}

func commas(n int) string {
	s := fmt.Sprint(n)
	var out strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}

func (f *fakeSite) Navigate(ctx context.Context, url string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.view = "search"
	f.form = map[string]string{}
	f.visits = append(f.visits, url)
	return nil
}

func (f *fakeSite) Text(ctx context.Context, locator string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.fail(locator); err != nil {
		return "", err
	}

	l := f.locators
	switch {
	case f.view == "results" && locator == l.Results.Count && f.countText != "":
		return f.countText, nil
	case f.view == "results" && locator == l.Results.Count && !f.noResults:
		shown := 15
		if f.count < shown {
			shown = f.count
		}
		return fmt.Sprintf("Showing 1 to %d of %s entries", shown, commas(f.count)), nil
	case f.view == "results" && locator == l.Results.PageCount:
		return fmt.Sprintf("Page 1 of %d", len(f.pages)), nil
	case f.view == "property":
		p := f.props[f.property]
		switch locator {
		case l.Property.ParcelHeader:
			if p.malformed {
				return "PARCEL", nil
			}
			return "PARCEL\n" + p.parcelId + "\n", nil
		case l.Property.SchoolDistrict:
			return p.school, nil
		case l.Property.Owner:
			return p.owner, nil
		}
	}
	return "", fmt.Errorf("%w: %s", browser.ErrNotRendered, locator)
}

func (f *fakeSite) OuterHTML(ctx context.Context, locator string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.fail(locator); err != nil {
		return "", err
	}

	var out strings.Builder
	switch {
	case f.view == "results" && locator == f.locators.Results.Table:
		out.WriteString(`<table id="searchResults"><thead><tr>`)
		for _, c := range ListingColumns {
			fmt.Fprintf(&out, "<th>%s</th>", c)
		}
		out.WriteString("</tr></thead><tbody>")
		if f.page < len(f.pages) {
			for _, l := range f.pages[f.page] {
				out.WriteString("<tr>")
				for _, v := range l.Values() {
					fmt.Fprintf(&out, "<td>%s</td>", v)
				}
				out.WriteString("</tr>")
			}
		}
		out.WriteString("</tbody></table>")
		return out.String(), nil
	case f.view == "property" && locator == f.locators.Property.AppraisalTable:
		out.WriteString(`<table id="Appraisal Information">`)
		for _, row := range f.props[f.property].appraisal {
			fmt.Fprintf(&out, "<tr><td>%s</td><td>%s</td></tr>", row[0], row[1])
		}
		out.WriteString("</table>")
		return out.String(), nil
	}
	return "", fmt.Errorf("%w: %s", browser.ErrNotRendered, locator)
}

func (f *fakeSite) Click(ctx context.Context, locator string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.fail(locator); err != nil {
		return err
	}

	l := f.locators
	switch {
	case f.view == "search" && locator == l.Form.Submit:
		f.view = "results"
		f.page = 0
	case f.view == "results" && locator == l.Results.NextPage:
		f.page++
	case f.view == "results" && locator == l.Results.FirstResultsPage:
		f.page = 0
	case f.view == "results" && locator == l.Results.FirstRow:
		f.view = "property"
		f.property = 0
	case f.view == "property" && locator == l.Property.NextProperty:
		f.property++
	default:
		return fmt.Errorf("%w: %s", browser.ErrNotRendered, locator)
	}
	return nil
}

func (f *fakeSite) Exists(ctx context.Context, locator string) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err, ok := f.broken[locator]; ok {
		return false, err
	}

	l := f.locators
	switch locator {
	case l.Results.NoResults:
		return f.view == "results" && f.noResults, nil
	case l.Results.NextPage, l.Results.FirstResultsPage:
		return f.view == "results" && len(f.pages) > 1, nil
	case l.Property.NextProperty:
		return f.view == "property", nil
	}
	return false, nil
}

func (f *fakeSite) Attribute(ctx context.Context, locator, name string) (string, bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	l := f.locators
	if name != "class" {
		return "", false, nil
	}
	switch {
	case locator == l.Results.NextPage && f.page >= len(f.pages)-1:
		return "paginate_button next disabled", true, nil
	case locator == l.Property.NextProperty && f.property >= len(f.props)-1:
		return "disabled", true, nil
	}
	return "paginate_button", true, nil
}

func (f *fakeSite) SetValue(ctx context.Context, locator, value string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.fail(locator); err != nil {
		return err
	}
	if f.view != "search" {
		return fmt.Errorf("%w: %s", browser.ErrNotRendered, locator)
	}
	f.form[locator] = value
	return nil
}

func (f *fakeSite) Close() error {
	f.closed = true
	return nil
}

// populate fills the site with n listings split into pages of pageSize,
// with a property page for every listing.
func (f *fakeSite) populate(n, pageSize int) {
	f.count = n
	f.pages = nil
	f.props = nil
	for i := 0; i < n; i++ {
		if i%pageSize == 0 {
			f.pages = append(f.pages, nil)
		}
		id := fmt.Sprintf("419-%06d", i)
		f.pages[len(f.pages)-1] = append(f.pages[len(f.pages)-1], Listing{
			ParcelNumber: id,
			Address:      fmt.Sprintf("%d MAIN ST", 100+i),
			BBB:          "3/2/1",
			FinSqFt:      "1,800",
			Use:          "510",
			YearBuilt:    "1999",
			TransferDate: "05/05/2020",
			Amount:       "$250,000",
		})
		f.props = append(f.props, fakeProperty{
			parcelId: id,
			appraisal: [][2]string{
				{"Appraised Value", "$260,000"},
				{"Year Built", "1999"},
				{"# Bedrooms", "3"},
				{"# Full Bathrooms", "2"},
			},
			school: "OLENTANGY LSD",
			owner:  fmt.Sprintf("%d MAIN ST\nLEWIS CENTER OH 43035", 100+i),
		})
	}
}

func testAccessor(page browser.Page, rec *telemetry.Recorder) Accessor {
	return NewAccessor(page, 3, time.Second, chrono.NewFakeClock(time.Now()), rec)
}

type countingPacer struct {
	waits int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}
