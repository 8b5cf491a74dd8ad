package config

import (
	"path/filepath"

	"github.com/servkit/restsync/internal/xdg"
)

// DefaultBaseURL is the API every request is resolved against.
const DefaultBaseURL = "http://localhost:8000/api"

// DefaultCacheDuration is the ledger freshness window in seconds.
const DefaultCacheDuration = 10

// DefaultTimeout is the HTTP timeout in seconds.
const DefaultTimeout = 30

// DefaultLedgerFile is the ledger file name under the cache directory.
const DefaultLedgerFile = "http_cache.json"

// DefaultLedgerDB is the ledger database name under the cache directory.
const DefaultLedgerDB = "http_cache.db"

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	cfg := &Config{
		BaseURL:       DefaultBaseURL,
		Timeout:       DefaultTimeout,
		CacheDuration: DefaultCacheDuration,
		Ledger:        LedgerConfig{Backend: BackendFile},
		LogLevel:      "warn",
		LogFormat:     "text",
		Sources:       make(map[string]string),
	}
	for _, key := range []string{"baseUrl", "timeout", "cacheDuration", "ledger.backend", "logLevel", "logFormat"} {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}

// LedgerPath returns the configured ledger path or the backend's default
// location in the cache directory.
func (c *Config) LedgerPath() string {
	if c.Ledger.Path != "" {
		return c.Ledger.Path
	}
	if c.Ledger.Backend == BackendSQLite {
		return filepath.Join(xdg.CacheDir(), DefaultLedgerDB)
	}
	return filepath.Join(xdg.CacheDir(), DefaultLedgerFile)
}
