package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Immich    ImmichConfig    `toml:"immich"`
	Nextcloud NextcloudConfig `toml:"nextcloud"`
	Sync      SyncConfig      `toml:"sync"`
	Database  DatabaseConfig  `toml:"database"`
}

// ImmichConfig contains the destination server endpoint and API key.
type ImmichConfig struct {
	URL       string   `toml:"url"`
	APIKey    string   `toml:"api_key"`
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"` // Requests per second, 0 disables pacing
}

// NextcloudConfig contains the WebDAV connection options for the album share.
type NextcloudConfig struct {
	URL      string   `toml:"url"`
	Login    string   `toml:"login"`
	Password string   `toml:"password"`
	Timeout  Duration `toml:"timeout"`
}

// SyncConfig tunes the album sync.
type SyncConfig struct {
	Workers      int      `toml:"workers"`
	NarrowWindow Duration `toml:"narrow_window"`
	WideWindow   Duration `toml:"wide_window"`
	LockFile     string   `toml:"lock_file"`
}

// DatabaseConfig contains run history database settings. An empty path disables history.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// Duration wraps [time.Duration] so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// env var names consulted when the config file leaves a value empty
const (
	EnvImmichURL         = "IMMICH_URL"
	EnvImmichAPIKey      = "IMMICH_API_KEY"
	EnvNextcloudURL      = "NEXTCLOUD_URL"
	EnvNextcloudLogin    = "NEXTCLOUD_LOGIN"
	EnvNextcloudPassword = "NEXTCLOUD_PASSWORD"
)

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
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

// ResolveConfig loads the config file at path when it exists, falls back to the embedded defaults when it does not,
// and fills empty credentials from the environment. The file always takes precedence over the environment.
func ResolveConfig(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	config := DefaultConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	config.ApplyEnv(getenv)
	return config, nil
}

// ApplyEnv fills empty endpoint and credential values from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = strings.TrimSpace(getenv(key))
		}
	}

	fill(&c.Immich.URL, EnvImmichURL)
	fill(&c.Immich.APIKey, EnvImmichAPIKey)
	fill(&c.Nextcloud.URL, EnvNextcloudURL)
	fill(&c.Nextcloud.Login, EnvNextcloudLogin)
	fill(&c.Nextcloud.Password, EnvNextcloudPassword)

	if c.Immich.URL == "" {
		c.Immich.URL = DefaultImmichURL
	}
}

// DefaultImmichURL is used when neither the file nor the environment name a server.
const DefaultImmichURL = "http://localhost:2283"

// ValidateImmich reports missing destination settings.
func (c *Config) ValidateImmich() error {
	var missing []string
	if c.Immich.URL == "" {
		missing = append(missing, "immich.url")
	}
	if c.Immich.APIKey == "" {
		missing = append(missing, "immich.api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateNextcloud reports missing WebDAV settings.
func (c *Config) ValidateNextcloud() error {
	var missing []string
	if c.Nextcloud.URL == "" {
		missing = append(missing, "nextcloud.url")
	}
	if c.Nextcloud.Login == "" {
		missing = append(missing, "nextcloud.login")
	}
	if c.Nextcloud.Password == "" {
		missing = append(missing, "nextcloud.password")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks everything a sync needs before any network call is made.
func (c *Config) Validate() error {
	if err := c.ValidateImmich(); err != nil {
		return err
	}
	if err := c.ValidateNextcloud(); err != nil {
		return err
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("%w: sync.workers must be at least 1, got %d", ErrInvalidConfig, c.Sync.Workers)
	}
	if c.Sync.NarrowWindow.Duration <= 0 || c.Sync.WideWindow.Duration < c.Sync.NarrowWindow.Duration {
		return fmt.Errorf("%w: sync windows must satisfy 0 < narrow_window <= wide_window", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
