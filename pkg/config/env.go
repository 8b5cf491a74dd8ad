package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// Environment variable names.
const (
	EnvConfig        = "RESTSYNC_CONFIG"
	EnvBaseURL       = "RESTSYNC_BASE_URL"
	EnvTimeout       = "RESTSYNC_TIMEOUT"
	EnvToken         = "RESTSYNC_TOKEN"
	EnvRateLimit     = "RESTSYNC_RATE_LIMIT"
	EnvCacheDuration = "RESTSYNC_CACHE_DURATION"
	EnvLedgerBackend = "RESTSYNC_LEDGER_BACKEND"
	EnvLedgerPath    = "RESTSYNC_LEDGER_PATH"
	EnvLogLevel      = "RESTSYNC_LOG_LEVEL"
	EnvLogFormat     = "RESTSYNC_LOG_FORMAT"
)

// envConfig holds raw env values.
type envConfig struct {
	BaseURL       string  `env:"RESTSYNC_BASE_URL"`
	Timeout       int     `env:"RESTSYNC_TIMEOUT"`
	Token         string  `env:"RESTSYNC_TOKEN"`
	RateLimit     float64 `env:"RESTSYNC_RATE_LIMIT"`
	CacheDuration int     `env:"RESTSYNC_CACHE_DURATION"`
	LedgerBackend string  `env:"RESTSYNC_LEDGER_BACKEND"`
	LedgerPath    string  `env:"RESTSYNC_LEDGER_PATH"`
	LogLevel      string  `env:"RESTSYNC_LOG_LEVEL"`
	LogFormat     string  `env:"RESTSYNC_LOG_FORMAT"`
}

func processEnv() map[string]string {
	return env.ToMap(os.Environ())
}

// LoadEnv applies the RESTSYNC_* variables present in environ to cfg.
// A present variable wins even when its value is zero.
func LoadEnv(cfg *Config, environ map[string]string) error {
	var raw envConfig
	if err := env.ParseWithOptions(&raw, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	present := func(name, key string) bool {
		if _, ok := environ[name]; ok {
			cfg.Sources[key] = SourceEnv
			return true
		}
		return false
	}

	if present(EnvBaseURL, "baseUrl") {
		cfg.BaseURL = raw.BaseURL
	}
	if present(EnvTimeout, "timeout") {
		cfg.Timeout = raw.Timeout
	}
	if present(EnvToken, "token") {
		cfg.Token = raw.Token
	}
	if present(EnvRateLimit, "rateLimit") {
		cfg.RateLimit = raw.RateLimit
	}
	if present(EnvCacheDuration, "cacheDuration") {
		cfg.CacheDuration = raw.CacheDuration
	}
	if present(EnvLedgerBackend, "ledger.backend") {
		cfg.Ledger.Backend = raw.LedgerBackend
	}
	if present(EnvLedgerPath, "ledger.path") {
		cfg.Ledger.Path = raw.LedgerPath
	}
	if present(EnvLogLevel, "logLevel") {
		cfg.LogLevel = raw.LogLevel
	}
	if present(EnvLogFormat, "logFormat") {
		cfg.LogFormat = raw.LogFormat
	}
	return nil
}
