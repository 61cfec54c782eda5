package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"parcelscraper/internal/components/chrono"
	"parcelscraper/internal/components/retry"
	"parcelscraper/internal/components/telemetry"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

const (
	report_session_open  = "session.open"
	report_session_close = "session.close"
)

type Options struct {
	URL string
	// Headless defaults to true when Options is constructed through
	// DefaultOptions.
	Headless bool
	// RemoteURL connects to an already running browser (ex. a headless-shell
	// container) instead of launching one.
	RemoteURL string
	UserAgent string
	// Timeout bounds every single page call.
	Timeout time.Duration
	// Attempts and Backoff control session start retries.
	Attempts int
	Backoff  time.Duration
	// Clock waits out the backoff, a real timer is used when nil.
	Clock chrono.API
}

func DefaultOptions(target string) Options {
	return Options{
		URL:      target,
		Headless: true,
		Timeout:  10 * time.Second,
		Attempts: 3,
		Backoff:  2 * time.Second,
	}
}

// ValidateURL checks that target is something the browser can be pointed at.
func ValidateURL(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", target, err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("invalid url %q: missing host", target)
		}
	case "data":
	default:
		return fmt.Errorf("invalid url %q: unsupported scheme %q", target, u.Scheme)
	}
	return nil
}

// Session is a Page backed by a chromedp controlled browser tab.
type Session struct {
	parent      context.Context
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeout     time.Duration
	tel         telemetry.API
}

// Open starts a browser, opens a tab and navigates it to opts.URL. Startup is
// retried up to opts.Attempts times, after which ErrSessionInit is returned.
// The returned session must be closed.
func Open(ctx context.Context, opts Options, tel telemetry.API) (*Session, error) {
	tel = telemetry.NewScopedAPI("browser", tel)

	err := ValidateURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	policy := retry.Policy{
		MaxAttempts: opts.Attempts,
		Delay:       opts.Backoff,
		Clock:       opts.Clock,
		Retryable: func(err error) bool {
			return ctx.Err() == nil
		},
	}
	session, err := retry.Value(ctx, policy, func(ctx context.Context) (*Session, error) {
		s, err := launch(ctx, opts, tel)
		if err != nil {
			tel.ReportWarning(report_session_open, err)
		}
		return s, err
	})
	if err != nil {
		tel.ReportBroken(report_session_open, err)
		return nil, fmt.Errorf("%w: %w", ErrSessionInit, err)
	}
	return session, nil
}

func launch(ctx context.Context, opts Options, tel telemetry.API) (*Session, error) {
	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.WindowSize(1366, 900),
		)
		if opts.UserAgent != "" {
			allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		tel.ReportDebug(fmt.Sprintf(format, args...))
	}))

	// the first Run allocates the browser, it must not be given a timeout
	// context or the browser dies with it.
	err := chromedp.Run(tabCtx)
	if err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	s := &Session{
		parent:      ctx,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		timeout:     opts.Timeout,
		tel:         tel,
	}
	err = s.Navigate(ctx, opts.URL)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("navigate: %w", err)
	}
	return s, nil
}

// run executes actions on the tab, bounded by both the caller's context and
// the session timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	callCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(callCtx, actions...)
	return classify(ctx, s.ctx, callCtx, err)
}

func (s *Session) Navigate(ctx context.Context, target string) error {
	return s.run(ctx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *Session) Text(ctx context.Context, locator string) (string, error) {
	var out string
	err := s.run(ctx, chromedp.Text(locator, &out, chromedp.BySearch, chromedp.NodeVisible))
	return out, err
}

func (s *Session) OuterHTML(ctx context.Context, locator string) (string, error) {
	var out string
	err := s.run(ctx, chromedp.OuterHTML(locator, &out, chromedp.BySearch, chromedp.NodeReady))
	return out, err
}

func (s *Session) Click(ctx context.Context, locator string) error {
	return s.run(ctx, chromedp.Click(locator, chromedp.BySearch, chromedp.NodeVisible))
}

func (s *Session) nodes(ctx context.Context, locator string) ([]*cdp.Node, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(locator, &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
	return nodes, err
}

func (s *Session) Exists(ctx context.Context, locator string) (bool, error) {
	nodes, err := s.nodes(ctx, locator)
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (s *Session) Attribute(ctx context.Context, locator, name string) (string, bool, error) {
	nodes, err := s.nodes(ctx, locator)
	if err != nil || len(nodes) == 0 {
		return "", false, err
	}
	value, ok := nodes[0].Attribute(name)
	return value, ok, nil
}

func (s *Session) SetValue(ctx context.Context, locator, value string) error {
	return s.run(ctx,
		chromedp.WaitVisible(locator, chromedp.BySearch),
		chromedp.SetValue(locator, "", chromedp.BySearch),
		chromedp.SendKeys(locator, value, chromedp.BySearch),
	)
}

// Close tears down the tab and the browser, it is safe to call more than
// once.
func (s *Session) Close() error {
	if s.cancel == nil {
		return nil
	}
	closeCtx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	err := chromedp.Cancel(closeCtx)
	cancel()
	s.cancel()
	s.allocCancel()
	s.cancel = nil
	if err != nil && s.parent.Err() == nil {
		s.tel.ReportWarning(report_session_close, err)
	}
	return nil
}
