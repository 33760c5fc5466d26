// Package config holds the daemon configuration: a TOML file under the
// data directory, with environment variable overrides for the settings
// that deployments usually inject (HTTP address, CORS origins).
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the global config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`

	HTTP   HTTP   `toml:"http"`
	Sync   Sync   `toml:"sync"`
	Outbox Outbox `toml:"outbox"`
}

// HTTP configures the dashboard-facing API server.
type HTTP struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Sync tunes the conversation sync engine.
type Sync struct {
	// SingleFetchLimit caps how many messages one on-demand conversation
	// sync pulls from the session. Bulk sync uses the smaller
	// BulkFetchLimit per conversation to bound load on the session.
	SingleFetchLimit int `toml:"single_fetch_limit"`
	BulkFetchLimit   int `toml:"bulk_fetch_limit"`
	// BulkPageSize caps how many conversations one bulk sync visits,
	// most recently active first.
	BulkPageSize int `toml:"bulk_page_size"`
	// AbortOnLookupError stops a bulk sync outright when the store fails
	// to return a conversation's existing message-id set. The default is
	// to skip that conversation and continue.
	AbortOnLookupError bool `toml:"abort_on_lookup_error"`
}

// Outbox tunes the outgoing-message sender.
type Outbox struct {
	PollIntervalMS int `toml:"poll_interval_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		HTTP: HTTP{
			Addr:           "127.0.0.1:8321",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Sync: Sync{
			SingleFetchLimit: 1000,
			BulkFetchLimit:   50,
			BulkPageSize:     25,
		},
		Outbox: Outbox{
			PollIntervalMS: 500,
		},
	}
}

// Load reads config from the given path and applies env overrides.
// A missing file is not an error: defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DEALERSYNC_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("DEALERSYNC_ALLOWED_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("DEALERSYNC_PROFILE"); v != "" {
		c.DefaultProfile = v
	}
	if v := os.Getenv("DEALERSYNC_BULK_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Sync.BulkPageSize = n
		}
	}
}
