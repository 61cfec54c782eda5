package auditor

import (
	"context"
	"errors"
	"strings"

	"parcelscraper/internal/browser"
)

const report_navigator_advance = "navigator.advance"

// Advance clicks a "next" style control. It returns false, without error,
// when the control is absent or disabled or could not be clicked in time,
// meaning there is nothing further to move to. Anything else is an error.
func Advance(ctx context.Context, page browser.Page, accessor Accessor, locator string) (bool, error) {
	exists, err := page.Exists(ctx, locator)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	disabled, err := isDisabled(ctx, page, locator)
	if err != nil {
		return false, err
	}
	if disabled {
		return false, nil
	}

	err = accessor.Click(ctx, locator)
	if errors.Is(err, ErrTimeout) {
		accessor.tel.ReportWarning(report_navigator_advance, err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func isDisabled(ctx context.Context, page browser.Page, locator string) (bool, error) {
	_, ok, err := page.Attribute(ctx, locator, "disabled")
	if err != nil || ok {
		return ok, err
	}
	aria, _, err := page.Attribute(ctx, locator, "aria-disabled")
	if err != nil {
		return false, err
	}
	if strings.EqualFold(aria, "true") {
		return true, nil
	}
	class, _, err := page.Attribute(ctx, locator, "class")
	if err != nil {
		return false, err
	}
	for _, c := range strings.Fields(class) {
		if strings.EqualFold(c, "disabled") || strings.HasSuffix(strings.ToLower(c), "_disabled") {
			return true, nil
		}
	}
	return false, nil
}
