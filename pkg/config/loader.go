package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/servkit/restsync/internal/xdg"
)

// LocalConfigFileNames are the names to search for local config (in order).
var LocalConfigFileNames = []string{".restsyncrc.yaml", ".restsyncrc.yml"}

// GlobalConfigFileNames are the names to search for global config (in order).
var GlobalConfigFileNames = []string{"config.yaml", "config.yml"}

// FindLocalConfig searches dir for a local config file.
// Returns empty string if not found.
func FindLocalConfig(dir string) string {
	return findFirst(dir, LocalConfigFileNames)
}

// FindGlobalConfig returns the path to the global config file.
// Returns empty string if not found.
func FindGlobalConfig() string {
	return findFirst(xdg.ConfigDir(), GlobalConfigFileNames)
}

func findFirst(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Error is a configuration file error with location info.
type Error struct {
	Path    string
	Line    int
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s (line %d): %s", e.Path, e.Line, e.Message)
	}
	return e.Path + ": " + e.Message
}

// LoadFile loads a Config from a YAML file. Only the keys present in the
// file are recorded in SetFields.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Path: path, Message: err.Error()}
	}

	var cfg Config
	if err := doc.Decode(&cfg); err != nil {
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) && len(typeErr.Errors) > 0 {
			return nil, &Error{Path: path, Message: typeErr.Errors[0]}
		}
		return nil, &Error{Path: path, Message: err.Error()}
	}
	cfg.Sources = make(map[string]string)
	cfg.SetFields = setFields(&doc)
	return &cfg, nil
}

// setFields collects the top-level keys and the keys of the ledger block
// as "ledger.<key>".
func setFields(doc *yaml.Node) map[string]bool {
	fields := make(map[string]bool)
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return fields
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fields
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		fields[key] = true
		if key == "ledger" && value.Kind == yaml.MappingNode {
			for j := 0; j+1 < len(value.Content); j += 2 {
				fields["ledger."+value.Content[j].Value] = true
			}
		}
	}
	return fields
}

// LoadOptions controls which layers LoadAll reads.
type LoadOptions struct {
	// File replaces the global and local files when set.
	File string
	// Dir is searched for a local config file. Defaults to the working
	// directory.
	Dir string
	// Environ is the environment to read RESTSYNC_* values from. Defaults
	// to the process environment.
	Environ map[string]string
	// SkipGlobal disables the global config file.
	SkipGlobal bool
}

// LoadAll loads configuration from all sources and merges them.
// Precedence: env > local config > global config > defaults. Flags are
// applied by the caller on top of the result.
func LoadAll(opts LoadOptions) (*Config, error) {
	cfg := NewDefault()

	environ := opts.Environ
	if environ == nil {
		environ = processEnv()
	}
	if opts.File == "" {
		opts.File = environ[EnvConfig]
	}

	if opts.File != "" {
		fileCfg, err := LoadFile(opts.File)
		if err != nil {
			return nil, err
		}
		Merge(cfg, fileCfg, SourceFile)
	} else {
		if !opts.SkipGlobal {
			if path := FindGlobalConfig(); path != "" {
				globalCfg, err := LoadFile(path)
				if err != nil {
					return nil, err
				}
				Merge(cfg, globalCfg, SourceGlobal)
			}
		}
		dir := opts.Dir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			dir = wd
		}
		if path := FindLocalConfig(dir); path != "" {
			localCfg, err := LoadFile(path)
			if err != nil {
				return nil, err
			}
			Merge(cfg, localCfg, SourceLocal)
		}
	}

	if err := LoadEnv(cfg, environ); err != nil {
		return nil, err
	}
	return cfg, nil
}
