// Package geocode resolves extract addresses to rooftop coordinates using
// the Google Geocoding API, trying each zip code of the parcel's school
// district in turn.
package geocode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"parcelscraper/internal/assert"
	"parcelscraper/internal/components/chrono"
	"parcelscraper/internal/components/db"
	"parcelscraper/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_geocode_request = "geocode.request"
	report_geocode_cache   = "geocode.cache"
	report_geocode_skip    = "geocode.skip"
	report_geocode_miss    = "geocode.miss"
)

const DefaultBaseUrl = "https://maps.googleapis.com/maps/api"

// LocationRooftop is the only accuracy accepted.
const LocationRooftop = "ROOFTOP"

// ErrNoApiKey is returned when no api key was configured.
var ErrNoApiKey = errors.New("geocode: missing api key")

var (
	cityStateOnlyPattern  = regexp.MustCompile(`^\D+, \D+(, \D+)?$`)
	noStreetNumberPattern = regexp.MustCompile(`(?i)^[^\d]+\b\w*(?:[a-z]{2,10})\b`)
)

// IsCityStateOnly reports whether a formatted address names only a city and
// state (and maybe a country).
func IsCityStateOnly(address string) bool {
	return cityStateOnlyPattern.MatchString(address)
}

// HasNoStreetNumber reports whether an address starts with a street name
// rather than a house number.
func HasNoStreetNumber(address string) bool {
	return noStreetNumberPattern.MatchString(address)
}

// Result is a geocoded address, Found is false when no rooftop match exists.
type Result struct {
	Found            bool
	FormattedAddress string
	Lat              float64
	Lng              float64
}

// Cache stores lookups by address and zip code.
type Cache interface {
	GetGeocode(ctx context.Context, arg db.GetGeocodeParams) (db.GeocodeCache, error)
	PutGeocode(ctx context.Context, arg db.PutGeocodeParams) error
}

type Options struct {
	BaseUrl string
	ApiKey  string
	// RequestsPerSecond bounds the request rate, 0 means 10/s.
	RequestsPerSecond float64
	Timeout           time.Duration
	// CloudflareBypass wraps the transport with a browser-like TLS
	// fingerprint.
	CloudflareBypass bool
}

type Client struct {
	http  *resty.Client
	key   string
	cache Cache
	clock chrono.API
	tel   telemetry.API
}

func NewClient(opts Options, cache Cache, clock chrono.API, tel telemetry.API) (Client, error) {
	assert.NotNil(clock)
	assert.NotNil(tel)

	if opts.ApiKey == "" {
		return Client{}, ErrNoApiKey
	}
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	tel = telemetry.NewScopedAPI("geocode", tel)

	httpClient := resty.New()
	httpClient.SetBaseURL(opts.BaseUrl)
	httpClient.SetTimeout(opts.Timeout)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	telemetry.InstrumentResty(httpClient, tel)

	return Client{
		http:  httpClient,
		key:   opts.ApiKey,
		cache: cache,
		clock: clock,
		tel:   tel,
	}, nil
}

type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
			LocationType string `json:"location_type"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c Client) request(ctx context.Context, query string) (Result, error) {
	var body apiResponse
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("address", query).
		SetQueryParam("key", c.key).
		SetResult(&body).
		Get("/geocode/json")
	if err != nil {
		return Result{}, err
	}
	if res.IsError() {
		return Result{}, fmt.Errorf("geocode %q: %s", query, res.Status())
	}
	switch body.Status {
	case "OK", "ZERO_RESULTS":
	default:
		return Result{}, fmt.Errorf("geocode %q: %s %s", query, body.Status, body.ErrorMessage)
	}

	for _, r := range body.Results {
		if r.Geometry.LocationType != LocationRooftop {
			continue
		}
		return Result{
			Found:            true,
			FormattedAddress: r.FormattedAddress,
			Lat:              r.Geometry.Location.Lat,
			Lng:              r.Geometry.Location.Lng,
		}, nil
	}
	return Result{}, nil
}

func (c Client) cached(ctx context.Context, address, zip string) (Result, bool) {
	if c.cache == nil {
		return Result{}, false
	}
	row, err := c.cache.GetGeocode(ctx, db.GetGeocodeParams{Address: address, Zip: zip})
	if errors.Is(err, sql.ErrNoRows) {
		return Result{}, false
	}
	if err != nil {
		c.tel.ReportBroken(report_geocode_cache, err, address, zip)
		return Result{}, false
	}
	return Result{
		Found:            row.Found,
		FormattedAddress: row.FormattedAddress,
		Lat:              row.Lat,
		Lng:              row.Lng,
	}, true
}

func (c Client) store(ctx context.Context, address, zip string, result Result) {
	if c.cache == nil {
		return
	}
	err := c.cache.PutGeocode(ctx, db.PutGeocodeParams{
		Address:          address,
		Zip:              zip,
		Found:            result.Found,
		FormattedAddress: result.FormattedAddress,
		Lat:              result.Lat,
		Lng:              result.Lng,
		LookedUpAt:       c.clock.Now().Unix(),
	})
	if err != nil {
		c.tel.ReportBroken(report_geocode_cache, err, address, zip)
	}
}

// Lookup queries "<address> <zip>" for each candidate zip code and returns
// the first rooftop result. Failed requests are reported and the next zip
// is tried, only a canceled context is returned as an error.
func (c Client) Lookup(ctx context.Context, address string, zips []string) (Result, error) {
	address = strings.TrimSpace(address)
	if address == "" || HasNoStreetNumber(address) {
		c.tel.ReportDebug(report_geocode_skip, address)
		return Result{}, nil
	}

	for _, zip := range zips {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if result, ok := c.cached(ctx, address, zip); ok {
			if result.Found {
				return result, nil
			}
			continue
		}

		result, err := c.request(ctx, address+" "+zip)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			c.tel.ReportWarning(report_geocode_request, err)
			continue
		}
		if result.Found && IsCityStateOnly(result.FormattedAddress) {
			result = Result{}
		}
		c.store(ctx, address, zip, result)
		if result.Found {
			return result, nil
		}
	}

	c.tel.ReportDebug(report_geocode_miss, address, zips)
	return Result{}, nil
}
