// Package config loads the gleaner YAML configuration.
//
// The loaded Config is a plain value. Callers hand copies of the relevant
// sections to the components they build; nothing re-reads configuration
// after startup, so a running collection always sees one consistent
// snapshot.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gleaner configuration.
type Config struct {
	Search  SearchConfig  `yaml:"search"`
	Scraper ScraperConfig `yaml:"scraper"`
	Browser BrowserConfig `yaml:"browser"`
	Storage StorageConfig `yaml:"storage"`
	Process ProcessConfig `yaml:"process"`
	Status  StatusConfig  `yaml:"status"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// SearchConfig describes what to collect.
type SearchConfig struct {
	// BaseURL of the target site. Default: "https://x.com".
	BaseURL string `yaml:"base_url"`
	// Queries are the primary search expressions. At most five are used;
	// extra entries are ignored. Empty means the built-in default panel.
	Queries []string `yaml:"queries"`
	// StartDate and EndDate bound the collection range (YYYY-MM-DD,
	// inclusive). When empty, the last DaysBack days are collected.
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
	DaysBack  int    `yaml:"days_back"`
	// Monthly stores each day's records in the month partition instead
	// of a per-day partition.
	Monthly bool `yaml:"monthly"`
}

// ScraperConfig tunes the collection engine.
type ScraperConfig struct {
	// MaxItems is the target item quota per date.
	MaxItems int `yaml:"max_items"`
	// MaxRetryAttempts bounds retry-button activations per recovery.
	MaxRetryAttempts int `yaml:"max_retry_attempts"`
	// MaxQueryRetries bounds rate-limit backoff cycles per query.
	MaxQueryRetries int `yaml:"max_query_retries"`
	// MaxConsecutiveNoNew is the stagnation threshold: scroll iterations
	// without a newly saved item before the query is abandoned.
	MaxConsecutiveNoNew int `yaml:"max_consecutive_no_new"`
	// MaxScrolls is the hard per-query iteration ceiling.
	MaxScrolls int `yaml:"max_scrolls"`

	ScrollPauseMin time.Duration `yaml:"scroll_pause_min"`
	ScrollPauseMax time.Duration `yaml:"scroll_pause_max"`
	// ReloadEvery forces a full page reload every N scrolls to avoid
	// indefinitely stale state. 0 means the default; negative disables.
	ReloadEvery int `yaml:"reload_every"`

	// AwaitAttempts × AwaitInterval bound the wait for first content
	// after navigation.
	AwaitAttempts int           `yaml:"await_attempts"`
	AwaitInterval time.Duration `yaml:"await_interval"`

	NavTimeout time.Duration `yaml:"nav_timeout"`

	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffCap        time.Duration `yaml:"backoff_cap"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`

	InterQueryDelayMin time.Duration `yaml:"inter_query_delay_min"`
	InterQueryDelayMax time.Duration `yaml:"inter_query_delay_max"`
	InterDateDelayMin  time.Duration `yaml:"inter_date_delay_min"`
	InterDateDelayMax  time.Duration `yaml:"inter_date_delay_max"`

	// MaxSessionRestarts bounds browser restarts after session loss
	// before the run fails.
	MaxSessionRestarts int `yaml:"max_session_restarts"`
	// SkipCompleted skips dates whose partition already holds records.
	SkipCompleted bool `yaml:"skip_completed"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty launches a local Chrome.
	Remote   string `yaml:"remote"`
	Headless *bool  `yaml:"headless"`
	// CookiesFile is a JSON export of session cookies used to
	// authenticate without interactive login.
	CookiesFile string `yaml:"cookies_file"`
}

// StorageConfig controls partition placement.
type StorageConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
}

// ProcessConfig controls the downstream cleaning/labeling pass.
type ProcessConfig struct {
	Enabled bool `yaml:"enabled"`
	// Model is the sentiment model name at the inference endpoint.
	Model string `yaml:"model"`
	// BaseURL overrides the OpenAI-compatible endpoint. Empty uses the
	// library default.
	BaseURL string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
	BatchSize int    `yaml:"batch_size"`
}

// StatusConfig exposes live run counters over HTTP when Addr is set.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// NotifyConfig sends run summaries via Telegram when configured.
type NotifyConfig struct {
	TelegramTokenEnv string `yaml:"telegram_token_env"`
	ChatID           int64  `yaml:"chat_id"`
}

// LoadFile reads a YAML configuration file and applies defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a Config with all defaults applied and no file input.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "https://x.com"
	}
	if c.Search.DaysBack <= 0 {
		c.Search.DaysBack = 7
	}
	if len(c.Search.Queries) > 5 {
		c.Search.Queries = c.Search.Queries[:5]
	}

	s := &c.Scraper
	if s.MaxItems <= 0 {
		s.MaxItems = 1000
	}
	if s.MaxRetryAttempts <= 0 {
		s.MaxRetryAttempts = 10
	}
	if s.MaxQueryRetries <= 0 {
		s.MaxQueryRetries = 3
	}
	if s.MaxConsecutiveNoNew <= 0 {
		s.MaxConsecutiveNoNew = 20
	}
	if s.MaxScrolls <= 0 {
		s.MaxScrolls = 2000
	}
	if s.ScrollPauseMin <= 0 {
		s.ScrollPauseMin = time.Second
	}
	if s.ScrollPauseMax <= s.ScrollPauseMin {
		s.ScrollPauseMax = s.ScrollPauseMin + 2*time.Second
	}
	switch {
	case s.ReloadEvery < 0:
		// Negative disables the periodic reload entirely.
		s.ReloadEvery = 0
	case s.ReloadEvery == 0:
		s.ReloadEvery = 100
	}
	if s.AwaitAttempts <= 0 {
		s.AwaitAttempts = 20
	}
	if s.AwaitInterval <= 0 {
		s.AwaitInterval = time.Second
	}
	if s.NavTimeout <= 0 {
		s.NavTimeout = 30 * time.Second
	}
	if s.BackoffBase <= 0 {
		s.BackoffBase = 8 * time.Second
	}
	if s.BackoffCap <= 0 {
		s.BackoffCap = 45 * time.Second
	}
	if s.BackoffMultiplier <= 1 {
		s.BackoffMultiplier = 1.5
	}
	if s.InterQueryDelayMin <= 0 {
		s.InterQueryDelayMin = 10 * time.Second
	}
	if s.InterQueryDelayMax <= s.InterQueryDelayMin {
		s.InterQueryDelayMax = s.InterQueryDelayMin + 10*time.Second
	}
	if s.InterDateDelayMin <= 0 {
		s.InterDateDelayMin = 5 * time.Second
	}
	if s.InterDateDelayMax <= s.InterDateDelayMin {
		s.InterDateDelayMax = s.InterDateDelayMin + 10*time.Second
	}
	if s.MaxSessionRestarts <= 0 {
		s.MaxSessionRestarts = 2
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = "data"
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = "posts_"
	}

	if c.Process.Model == "" {
		c.Process.Model = "gpt-4o-mini"
	}
	if c.Process.APIKeyEnv == "" {
		c.Process.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Process.BatchSize <= 0 {
		c.Process.BatchSize = 50
	}

	if c.Notify.TelegramTokenEnv == "" {
		c.Notify.TelegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	}
}

// DateRange resolves the configured collection window. Dates are
// interpreted in UTC at midnight.
func (c *Config) DateRange(now time.Time) (start, end time.Time, err error) {
	if c.Search.StartDate != "" && c.Search.EndDate != "" {
		start, err = time.Parse("2006-01-02", c.Search.StartDate)
		if err != nil {
			return start, end, fmt.Errorf("config: start_date: %w", err)
		}
		end, err = time.Parse("2006-01-02", c.Search.EndDate)
		if err != nil {
			return start, end, fmt.Errorf("config: end_date: %w", err)
		}
		if end.Before(start) {
			return start, end, fmt.Errorf("config: end_date %s before start_date %s",
				c.Search.EndDate, c.Search.StartDate)
		}
		return start, end, nil
	}

	end = now.UTC().Truncate(24 * time.Hour)
	start = end.AddDate(0, 0, -c.Search.DaysBack)
	return start, end, nil
}
