// Package robots checks a site's robots.txt before any scraping starts.
package robots

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/temoto/robotstxt"
)

const report_robots_check = "robots.check"

// ErrDisallowed is returned by Require when robots.txt forbids the path.
var ErrDisallowed = errors.New("robots.txt disallows scraping")

type Options struct {
	// Agent is the user agent group that is evaluated, "*" when empty.
	Agent            string
	UserAgent        string
	Timeout          time.Duration
	CloudflareBypass bool
}

type Checker struct {
	http  *resty.Client
	agent string
	tel   telemetry.API
}

func NewChecker(opts Options, tel telemetry.API) Checker {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("robots", tel)
	if opts.Agent == "" {
		opts.Agent = "*"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	httpClient := resty.New()
	httpClient.SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		httpClient.SetHeader("user-agent", opts.UserAgent)
	}
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	telemetry.InstrumentResty(httpClient, tel)

	return Checker{http: httpClient, agent: opts.Agent, tel: tel}
}

// Allowed fetches the robots.txt of the page's host and tests the page's
// path against it. A missing robots.txt allows everything, a server error
// disallows everything.
func (c Checker) Allowed(ctx context.Context, page string) (bool, error) {
	parsed, err := url.Parse(page)
	if err != nil {
		return false, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return false, fmt.Errorf("robots: %q is not an absolute url", page)
	}
	robotsUrl := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/robots.txt"}

	res, err := c.http.R().
		SetContext(ctx).
		Get(robotsUrl.String())
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", robotsUrl.String(), err)
	}

	data, err := robotstxt.FromStatusAndBytes(res.StatusCode(), res.Body())
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", robotsUrl.String(), err)
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	allowed := data.TestAgent(path, c.agent)
	c.tel.ReportDebug(report_robots_check, robotsUrl.String(), path, allowed)
	return allowed, nil
}

// Require is Allowed that fails with ErrDisallowed.
func (c Checker) Require(ctx context.Context, page string) error {
	allowed, err := c.Allowed(ctx, page)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: %s", ErrDisallowed, page)
	}
	return nil
}
