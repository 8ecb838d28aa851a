package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrMissingCredentials is returned by Validate when no OAuth client is configured.
var ErrMissingCredentials = errors.New("gmail OAuth credentials not configured; set them in ~/.config/inboxsync/config.toml under [gmail] or via GMAIL_CLIENT_ID / GMAIL_CLIENT_SECRET env vars")

// Config holds all inboxsync configuration.
type Config struct {
	Gmail  GmailConfig  `toml:"gmail"`
	Sync   SyncConfig   `toml:"sync"`
	Server ServerConfig `toml:"server"`
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`
}

// GmailConfig holds the OAuth client and API endpoints.
// TokenURL and APIEndpoint are empty in production and point at Google.
type GmailConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	TokenURL     string `toml:"token_url"`
	APIEndpoint  string `toml:"api_endpoint"`
}

// SyncConfig bounds a single sync run.
type SyncConfig struct {
	MaxResults        int      `toml:"max_results"`
	Query             string   `toml:"query"`
	BatchSize         int      `toml:"batch_size"`
	Concurrency       int      `toml:"concurrency"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Timeout           Duration `toml:"timeout"`
}

type ServerConfig struct {
	Addr              string   `toml:"addr"`
	ReadHeaderTimeout Duration `toml:"read_header_timeout"`
}

// StoreConfig selects the database path and the credential backend
// ("sqlite" or "keyring").
type StoreConfig struct {
	Path        string `toml:"path"`
	Credentials string `toml:"credentials"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration that decodes from TOML strings like "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func defaults() Config {
	return Config{
		Sync: SyncConfig{
			MaxResults:        50,
			Query:             "in:inbox",
			BatchSize:         25,
			Concurrency:       4,
			RequestsPerSecond: 10,
			Timeout:           Duration{2 * time.Minute},
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8080",
			ReadHeaderTimeout: Duration{10 * time.Second},
		},
		Store: StoreConfig{
			Credentials: "sqlite",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from path. If path is empty, returns defaults.
// Gmail credentials missing from the file are taken from the environment.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnv()
	return &cfg, nil
}

// applyEnv fills Gmail credentials from GMAIL_CLIENT_ID and
// GMAIL_CLIENT_SECRET when the file does not set both.
func (c *Config) applyEnv() {
	if c.Gmail.ClientID != "" && c.Gmail.ClientSecret != "" {
		return
	}
	clientID := os.Getenv("GMAIL_CLIENT_ID")
	clientSecret := os.Getenv("GMAIL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		c.Gmail.ClientID = clientID
		c.Gmail.ClientSecret = clientSecret
	}
}

// HasCredentials reports whether an OAuth client is configured.
func (c *Config) HasCredentials() bool {
	return c.Gmail.ClientID != "" && c.Gmail.ClientSecret != ""
}

// Validate checks the settings a sync run cannot start without.
func (c *Config) Validate() error {
	if !c.HasCredentials() {
		return ErrMissingCredentials
	}
	switch c.Store.Credentials {
	case "sqlite", "keyring":
	default:
		return fmt.Errorf("unknown credential store %q (use sqlite or keyring)", c.Store.Credentials)
	}
	if c.Sync.MaxResults <= 0 {
		return fmt.Errorf("sync.max_results must be positive, got %d", c.Sync.MaxResults)
	}
	return nil
}

// DBPath returns the configured database path or the default under DataDir.
func (c *Config) DBPath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(DataDir(), "inboxsync.db")
}

// ConfigDir returns the inboxsync config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "inboxsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "inboxsync")
}

// DataDir returns the inboxsync data directory path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "inboxsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "inboxsync")
}
