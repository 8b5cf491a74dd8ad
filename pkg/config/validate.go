package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/servkit/restsync/pkg/store"
)

// MaxTimeout is the largest accepted timeout in seconds.
const MaxTimeout = 3600

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	switch {
	case c.BaseURL == "":
		errs = append(errs, errors.New("baseUrl cannot be empty"))
	case err != nil:
		errs = append(errs, fmt.Errorf("baseUrl %q is invalid: %w", c.BaseURL, err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("baseUrl %q must use http or https", c.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("baseUrl %q has no host", c.BaseURL))
	}

	if c.Timeout < 0 || c.Timeout > MaxTimeout {
		errs = append(errs, fmt.Errorf("timeout %d is out of range (0-%d)", c.Timeout, MaxTimeout))
	}
	if c.CacheDuration < 0 {
		errs = append(errs, fmt.Errorf("cacheDuration %d cannot be negative", c.CacheDuration))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rateLimit %g cannot be negative", c.RateLimit))
	}

	switch c.Ledger.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("ledger.backend %q must be one of %s, %s, %s",
			c.Ledger.Backend, BackendFile, BackendSQLite, BackendMemory))
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logLevel %q is not a known level", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logFormat %q must be text or json", c.LogFormat))
	}

	if c.Conventions != nil {
		if err := c.Table().Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for i, rule := range c.SyncRules {
		if err := store.ValidateSyncRule(rule); err != nil {
			errs = append(errs, fmt.Errorf("syncRules[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}
