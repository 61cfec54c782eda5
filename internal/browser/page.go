// Package browser drives the headless browser session the county site is
// scraped through.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Page is a single browser tab. Locators are XPath expressions or CSS
// selectors, every call waits at most the session's bounded timeout for the
// element to show up.
//
// note: fault injection point
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Text waits for the element to be visible and returns its text.
	Text(ctx context.Context, locator string) (string, error)
	// OuterHTML waits for the element to be ready and returns its markup.
	OuterHTML(ctx context.Context, locator string) (string, error)
	Click(ctx context.Context, locator string) error
	// Exists checks for the element without waiting.
	Exists(ctx context.Context, locator string) (bool, error)
	// Attribute reads an attribute of the element without waiting, ok is
	// false when the element or attribute is absent.
	Attribute(ctx context.Context, locator, name string) (value string, ok bool, err error)
	// SetValue replaces the contents of a form input.
	SetValue(ctx context.Context, locator, value string) error
	Close() error
}

var (
	// ErrNotRendered means the element did not appear before the wait
	// expired.
	ErrNotRendered = errors.New("element not rendered")
	// ErrObscured means the element exists but cannot be interacted with,
	// usually because it is hidden or covered.
	ErrObscured = errors.New("element obscured")
	// ErrStale means the element was removed from the document while it was
	// being used.
	ErrStale = errors.New("element stale")
	// ErrSessionClosed means the browser is gone, nothing else can be done
	// with the session.
	ErrSessionClosed = errors.New("browser session closed")
	// ErrSessionInit is returned when a session could not be started.
	ErrSessionInit = errors.New("browser session could not be initialized")
)

// IsTransient reports whether err is a UI race that may resolve itself if
// the operation is attempted again.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNotRendered) ||
		errors.Is(err, ErrObscured) ||
		errors.Is(err, ErrStale)
}

// IsSessionFatal reports whether err means the session cannot be used
// anymore.
func IsSessionFatal(err error) bool {
	return errors.Is(err, ErrSessionClosed) || errors.Is(err, ErrSessionInit)
}

var staleMarkers = []string{
	"could not find node",
	"no node with given id",
	"node with given id does not belong to the document",
	"node is detached",
	"no node found",
	"cannot find context with specified id",
}

var obscuredMarkers = []string{
	"could not compute box model",
	"node is not visible",
	"not clickable",
	"obscured",
	"element is not interactable",
}

// classify maps a raw CDP/chromedp failure onto the error kinds callers
// branch on.
func classify(parent, session, call context.Context, err error) error {
	if err == nil {
		return nil
	}
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if session.Err() != nil {
		return fmt.Errorf("%w: %w", ErrSessionClosed, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || (call != nil && errors.Is(call.Err(), context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %w", ErrNotRendered, err)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range staleMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", ErrStale, err)
		}
	}
	for _, m := range obscuredMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %w", ErrObscured, err)
		}
	}
	return err
}
