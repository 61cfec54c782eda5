package auditor

import (
	"context"
	"errors"
	"testing"
	"time"

	"parcelscraper/internal/browser"
	"parcelscraper/internal/components/chrono"
	"parcelscraper/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestAccessorText(t *testing.T) {
	errDecode := errors.New("could not decode result")

	cases := []struct {
		name       string
		transient  []error
		broken     error
		expectErr  error
		expectText string
	}{
		{
			name:       "stale twice then success",
			transient:  []error{browser.ErrStale, browser.ErrStale},
			expectText: "Showing 1 to 15 of 400 entries",
		},
		{
			name:      "never renders",
			transient: []error{browser.ErrNotRendered, browser.ErrNotRendered, browser.ErrObscured},
			expectErr: ErrTimeout,
		},
		{
			name:      "non transient propagates",
			broken:    errDecode,
			expectErr: errDecode,
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			site := newFakeSite()
			site.populate(400, 150)
			site.view = "results"
			locator := site.locators.Results.Count
			site.transient[locator] = test.transient
			if test.broken != nil {
				site.broken[locator] = test.broken
			}

			rec := &telemetry.Recorder{}
			text, err := testAccessor(site, rec).Text(context.Background(), locator)
			if test.expectErr != nil {
				require.ErrorIs(t, err, test.expectErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.expectText, text)
		})
	}
}

func TestAccessorTimeoutKeepsCause(t *testing.T) {
	site := newFakeSite()
	rec := &telemetry.Recorder{}
	_, err := testAccessor(site, rec).Text(context.Background(), "//missing")
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, browser.ErrNotRendered)
	require.Len(t, rec.Find(telemetry.RecordWarning, report_accessor_text), 1)
}

func TestAccessorWaitsBetweenAttempts(t *testing.T) {
	site := newFakeSite()
	site.populate(400, 150)
	site.view = "results"
	locator := site.locators.Results.Count
	site.transient[locator] = []error{browser.ErrStale, browser.ErrObscured}

	clock := chrono.NewFakeClock(time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC))
	accessor := NewAccessor(site, 3, time.Second, clock, &telemetry.Recorder{})
	_, err := accessor.Text(context.Background(), locator)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps)
}
