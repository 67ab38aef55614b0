package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API       APIConfig       `toml:"api"`
	Auth      AuthConfig      `toml:"auth"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Search    SearchConfig    `toml:"search"`
	Watchlist WatchlistConfig `toml:"watchlist"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
}

// APIConfig describes the backend all requests are sent to.
type APIConfig struct {
	BaseURL        string  `toml:"base_url"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"`
	Burst          int     `toml:"burst"`
	UserAgent      string  `toml:"user_agent"`
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AuthConfig contains credential issuance and refresh settings.
type AuthConfig struct {
	LoginPath    string `toml:"login_path"`
	RefreshPath  string `toml:"refresh_path"`
	TokenURL     string `toml:"token_url"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	LoginURL     string `toml:"login_url"`
	OpenBrowser  bool   `toml:"open_browser"`
	CallbackAddr string `toml:"callback_addr"`
	LoginTimeout int    `toml:"login_timeout_seconds"`
}

// BrowserLoginTimeout returns how long a browser login waits for its callback.
func (c AuthConfig) BrowserLoginTimeout() time.Duration {
	if c.LoginTimeout <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.LoginTimeout) * time.Second
}

// UsesOAuth2 reports whether refreshes go through a standard OAuth2 token endpoint.
func (c AuthConfig) UsesOAuth2() bool {
	return c.TokenURL != ""
}

// CatalogConfig contains discovery defaults.
type CatalogConfig struct {
	Region          string `toml:"region"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// CacheTTL returns how long cached detail lookups stay fresh.
func (c CatalogConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// SearchConfig tunes the debounced text search.
type SearchConfig struct {
	DebounceMS int `toml:"debounce_ms"`
	MinLength  int `toml:"min_length"`
}

// Debounce returns the quiet period before a query is issued.
func (c SearchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// WatchlistConfig tunes watchlist editing.
type WatchlistConfig struct {
	ReorderDelayMS int `toml:"reorder_delay_ms"`
}

// ReorderDelay returns how long a manual reorder waits before it is persisted.
func (c WatchlistConfig) ReorderDelay() time.Duration {
	return time.Duration(c.ReorderDelayMS) * time.Millisecond
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks the values the client cannot run without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an absolute URL", ErrInvalidConfig, c.API.BaseURL)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("%w: api.rate_limit must not be negative", ErrInvalidConfig)
	}
	if c.Search.MinLength < 0 {
		return fmt.Errorf("%w: search.min_length must not be negative", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Auth.RefreshPath, "/") && !c.Auth.UsesOAuth2() {
		return fmt.Errorf("%w: auth.refresh_path must start with /", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
