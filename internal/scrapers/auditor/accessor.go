package auditor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/browser"
	"parcelscraper/internal/components/chrono"
	"parcelscraper/internal/components/retry"
	"parcelscraper/internal/components/telemetry"
)

const (
	report_accessor_text  = "accessor.text"
	report_accessor_html  = "accessor.html"
	report_accessor_click = "accessor.click"
	report_accessor_fill  = "accessor.fill"
)

// ErrTimeout is returned when an element stayed unavailable through every
// attempt.
var ErrTimeout = errors.New("timed out waiting for element")

// Accessor reads and clicks page elements, retrying UI races (not yet
// rendered, obscured, stale) a bounded number of times.
type Accessor struct {
	page   browser.Page
	policy retry.Policy
	tel    telemetry.API
}

func NewAccessor(page browser.Page, attempts int, delay time.Duration, clock chrono.API, tel telemetry.API) Accessor {
	assert.NotNil(page)
	assert.NotNil(clock)
	assert.NotNil(tel)
	if attempts <= 0 {
		attempts = 3
	}

	return Accessor{
		page: page,
		policy: retry.Policy{
			MaxAttempts: attempts,
			Delay:       delay,
			Retryable:   browser.IsTransient,
			Clock:       clock,
		},
		tel: telemetry.NewScopedAPI("auditor", tel),
	}
}

// Correlated returns a copy of the accessor whose reports carry id.
func (a Accessor) Correlated(id string) Accessor {
	a.tel = telemetry.NewCorrelatedAPI(id, a.tel)
	return a
}

func (a Accessor) wrap(id, locator string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, retry.ErrExhausted) {
		a.tel.ReportWarning(id, locator, err)
		return fmt.Errorf("%w: %s: %w", ErrTimeout, locator, err)
	}
	return fmt.Errorf("%s: %w", locator, err)
}

// Text returns the trimmed text of the element.
func (a Accessor) Text(ctx context.Context, locator string) (string, error) {
	text, err := retry.Value(ctx, a.policy, func(ctx context.Context) (string, error) {
		return a.page.Text(ctx, locator)
	})
	if err != nil {
		return "", a.wrap(report_accessor_text, locator, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		a.tel.ReportDebug("element has no text", locator)
	}
	return text, nil
}

// HTML returns the outer markup of the element.
func (a Accessor) HTML(ctx context.Context, locator string) (string, error) {
	html, err := retry.Value(ctx, a.policy, func(ctx context.Context) (string, error) {
		return a.page.OuterHTML(ctx, locator)
	})
	return html, a.wrap(report_accessor_html, locator, err)
}

func (a Accessor) Click(ctx context.Context, locator string) error {
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		return a.page.Click(ctx, locator)
	})
	return a.wrap(report_accessor_click, locator, err)
}

// Fill replaces the value of a form input.
func (a Accessor) Fill(ctx context.Context, locator, value string) error {
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		return a.page.SetValue(ctx, locator, value)
	})
	return a.wrap(report_accessor_fill, locator, err)
}
