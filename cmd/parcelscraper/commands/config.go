package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"parcelscraper/internal/browser"
	"parcelscraper/internal/consolidate"
	"parcelscraper/internal/notify"
	"parcelscraper/internal/rangequeue"
	"parcelscraper/internal/scrapers/auditor"
	"parcelscraper/lib/configutil"
)

type BrowserConfig struct {
	// ShowWindow runs the browser with a visible window.
	ShowWindow     bool   `json:"show_window"`
	RemoteUrl      string `json:"remote_url"`
	UserAgent      string `json:"user_agent"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Attempts       int    `json:"attempts"`
	BackoffSeconds int    `json:"backoff_seconds"`
}

type AccessorConfig struct {
	Attempts    int `json:"attempts"`
	DelayMillis int `json:"delay_millis"`
}

type PacingConfig struct {
	MinSeconds int `json:"min_seconds"`
	MaxSeconds int `json:"max_seconds"`
}

type GeocodeConfig struct {
	BaseUrl string `json:"base_url"`
	// ApiKeyEnv names the environment variable holding the api key.
	ApiKeyEnv         string  `json:"api_key_env"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
}

type RobotsConfig struct {
	Skip             bool   `json:"skip"`
	Agent            string `json:"agent"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

type Config struct {
	BaseUrl   string `json:"base_url"`
	SearchUrl string `json:"search_url"`
	OutputDir string `json:"output_dir"`
	Database  string `json:"database"`
	LogFile   string `json:"log_file"`
	Timezone  string `json:"timezone"`

	Threshold  int `json:"threshold"`
	CountToken int `json:"count_token"`

	Browser  BrowserConfig    `json:"browser"`
	Accessor AccessorConfig   `json:"accessor"`
	Pacing   PacingConfig     `json:"pacing"`
	Filters  auditor.Filters  `json:"filters"`
	Locators auditor.Locators `json:"locators"`

	State        string              `json:"state"`
	StreetTypes  map[string]string   `json:"street_types"`
	SchoolCities map[string]string   `json:"school_cities"`
	ZipCodes     map[string][]string `json:"zip_codes"`
	KnownStreets []string            `json:"known_streets"`
	FuzzyCutoff  float64             `json:"fuzzy_cutoff"`

	Geocode GeocodeConfig      `json:"geocode"`
	Robots  RobotsConfig       `json:"robots"`
	Email   notify.EmailConfig `json:"email"`
}

func defaultConfig() Config {
	return Config{
		OutputDir:  "output",
		Database:   "parcelscraper.db",
		LogFile:    "scraper.log",
		Timezone:   "America/New_York",
		Threshold:  rangequeue.DefaultThreshold,
		CountToken: auditor.DefaultCountToken,
		Browser: BrowserConfig{
			TimeoutSeconds: 10,
			Attempts:       3,
			BackoffSeconds: 2,
		},
		Accessor: AccessorConfig{
			Attempts:    3,
			DelayMillis: 1000,
		},
		Pacing: PacingConfig{
			MinSeconds: 5,
			MaxSeconds: 8,
		},
		Locators:    auditor.DefaultLocators(),
		State:       consolidate.DefaultState,
		StreetTypes: consolidate.DefaultStreetTypes,
		FuzzyCutoff: 0.9,
		Geocode: GeocodeConfig{
			ApiKeyEnv:         "MAPS_API_KEY",
			RequestsPerSecond: 10,
		},
	}
}

// loadConfig reads the config file (and its .local override), a missing
// file is not an error.
func loadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return configutil.WithDefaults(cfg, defaultConfig())
}

func (c Config) validate() error {
	if c.BaseUrl == "" {
		return errors.New("config: base_url is required")
	}
	if err := browser.ValidateURL(c.BaseUrl); err != nil {
		return fmt.Errorf("config: base_url: %w", err)
	}
	if c.SearchUrl != "" {
		if err := browser.ValidateURL(c.SearchUrl); err != nil {
			return fmt.Errorf("config: search_url: %w", err)
		}
	}
	if c.Pacing.MinSeconds < 0 || c.Pacing.MaxSeconds < 0 {
		return errors.New("config: pacing must not be negative")
	}
	return nil
}

func (c Config) searchUrl() string {
	if c.SearchUrl != "" {
		return c.SearchUrl
	}
	return c.BaseUrl
}

func (c Config) browserOptions() browser.Options {
	opts := browser.DefaultOptions(c.BaseUrl)
	opts.Headless = !c.Browser.ShowWindow
	opts.RemoteURL = c.Browser.RemoteUrl
	opts.UserAgent = c.Browser.UserAgent
	opts.Timeout = time.Duration(c.Browser.TimeoutSeconds) * time.Second
	opts.Attempts = c.Browser.Attempts
	opts.Backoff = time.Duration(c.Browser.BackoffSeconds) * time.Second
	return opts
}

func (c Config) consolidateOptions() consolidate.Options {
	return consolidate.Options{
		StreetTypes:  c.StreetTypes,
		SchoolCities: c.SchoolCities,
		State:        c.State,
		KnownStreets: c.KnownStreets,
		FuzzyCutoff:  c.FuzzyCutoff,
	}
}
