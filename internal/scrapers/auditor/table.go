package auditor

import (
	"context"
	"fmt"

	"parcelscraper/lib/htmlutil"
)

// ExtractTable pulls the markup of the table at locator and parses it.
func ExtractTable(ctx context.Context, accessor Accessor, locator string) (htmlutil.Table, error) {
	markup, err := accessor.HTML(ctx, locator)
	if err != nil {
		return htmlutil.Table{}, err
	}
	table, err := htmlutil.ParseTable(markup)
	if err != nil {
		return htmlutil.Table{}, fmt.Errorf("parse table %s: %w", locator, err)
	}
	return table, nil
}
