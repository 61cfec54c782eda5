package auditor

import (
	"context"
	"testing"

	"parcelscraper/internal/browser"
	"parcelscraper/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

// attrPage answers Exists/Attribute from fixed values and counts clicks.
type attrPage struct {
	*fakeSite
	exists bool
	attrs  map[string]string
	clicks int
	click  error
}

func (p *attrPage) Exists(ctx context.Context, locator string) (bool, error) {
	return p.exists, nil
}

func (p *attrPage) Attribute(ctx context.Context, locator, name string) (string, bool, error) {
	v, ok := p.attrs[name]
	return v, ok, nil
}

func (p *attrPage) Click(ctx context.Context, locator string) error {
	p.clicks++
	return p.click
}

func TestAdvance(t *testing.T) {
	cases := []struct {
		name         string
		exists       bool
		attrs        map[string]string
		click        error
		expected     bool
		expectErr    bool
		expectClicks int
	}{
		{name: "absent", exists: false, expected: false},
		{name: "disabled attribute", exists: true, attrs: map[string]string{"disabled": ""}},
		{name: "aria disabled", exists: true, attrs: map[string]string{"aria-disabled": "true"}},
		{name: "disabled class", exists: true, attrs: map[string]string{"class": "paginate_button next disabled"}},
		{name: "suffixed disabled class", exists: true, attrs: map[string]string{"class": "btn nav_disabled"}},
		{name: "enabled", exists: true, attrs: map[string]string{"class": "paginate_button"}, expected: true, expectClicks: 1},
		{name: "click never lands", exists: true, click: browser.ErrObscured, expected: false, expectClicks: 3},
		{name: "session gone", exists: true, click: browser.ErrSessionClosed, expectErr: true, expectClicks: 1},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			page := &attrPage{fakeSite: newFakeSite(), exists: test.exists, attrs: test.attrs, click: test.click}
			advanced, err := Advance(context.Background(), page, testAccessor(page, &telemetry.Recorder{}), "//a[@id='next']")
			if test.expectErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, test.expected, advanced)
			require.Equal(t, test.expectClicks, page.clicks)
		})
	}
}
