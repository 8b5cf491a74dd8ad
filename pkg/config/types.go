// Package config provides configuration types and loading for restsync.
package config

import (
	"github.com/servkit/restsync/pkg/conventions"
	"github.com/servkit/restsync/pkg/store"
	"github.com/servkit/restsync/pkg/translator"
)

// Config is the complete restsync configuration.
// Values can come from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables (RESTSYNC_*)
// 3. Local config file (.restsyncrc.yaml in current directory)
// 4. Global config file ($XDG_CONFIG_HOME/restsync/config.yaml)
// 5. Default values (lowest priority)
type Config struct {
	// API settings
	BaseURL   string  `yaml:"baseUrl" json:"baseUrl"`
	Timeout   int     `yaml:"timeout" json:"timeout"`
	Token     string  `yaml:"token,omitempty" json:"-"`
	RateLimit float64 `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`

	// Cache ledger settings
	CacheDuration int          `yaml:"cacheDuration" json:"cacheDuration"`
	Ledger        LedgerConfig `yaml:"ledger" json:"ledger"`

	// Logging settings
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`

	// Store settings
	Conventions  *conventions.Table                `yaml:"conventions,omitempty" json:"conventions,omitempty"`
	SyncRules    []store.SyncRule                  `yaml:"syncRules,omitempty" json:"syncRules,omitempty"`
	Translations map[string]translator.Translation `yaml:"translations,omitempty" json:"translations,omitempty"`

	// Sources tracks where each value came from.
	Sources map[string]string `yaml:"-" json:"-"`

	// SetFields records the keys present in a loaded file so that explicit
	// zero values still override lower layers.
	SetFields map[string]bool `yaml:"-" json:"-"`
}

// LedgerConfig selects where the cache ledger is persisted.
type LedgerConfig struct {
	Backend string `yaml:"backend" json:"backend"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Ledger backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config sources.
const (
	SourceDefault = "default"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceFlag    = "flag"
)

// Table returns the default naming table with any configured overrides.
func (c *Config) Table() conventions.Table {
	t := conventions.Default()
	if c.Conventions != nil {
		t = t.Merge(*c.Conventions)
	}
	return t
}
