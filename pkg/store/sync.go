package store

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/ohler55/ojg/jp"
	"gopkg.in/yaml.v3"
)

// SyncRule ties a resource to the place its items appear in response bodies.
// Every successful response is matched against every rule; when Path yields
// an array or object, it replaces the resource's items.
type SyncRule struct {
	// Resource is the registered module the extracted value is stored in.
	Resource string `yaml:"resource" json:"resource"`
	// Path is a JSONPath expression evaluated against the response body.
	Path string `yaml:"path" json:"path"`
	// Endpoints optionally restricts the rule to responses whose endpoint
	// matches one of these globs, e.g. "reports/**". Empty matches all.
	Endpoints []string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
}

// DefaultSyncRule is the rule added when a module is registered: the
// top-level key named after the resource.
func DefaultSyncRule(resource string) SyncRule {
	return SyncRule{Resource: resource, Path: topLevelPath(resource)}
}

func topLevelPath(key string) string {
	for _, r := range key {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "$['" + strings.ReplaceAll(key, "'", `\'`) + "']"
		}
	}
	return "$." + key
}

type compiledRule struct {
	rule SyncRule
	path jp.Expr
}

func compileRule(r SyncRule) (compiledRule, error) {
	if r.Resource == "" {
		return compiledRule{}, errors.New("sync rule: resource cannot be empty")
	}
	if r.Path == "" {
		return compiledRule{}, fmt.Errorf("sync rule %q: path cannot be empty", r.Resource)
	}
	expr, err := jp.ParseString(r.Path)
	if err != nil {
		return compiledRule{}, fmt.Errorf("sync rule %q: invalid path %q: %w", r.Resource, r.Path, err)
	}
	for _, pattern := range r.Endpoints {
		if !doublestar.ValidatePattern(pattern) {
			return compiledRule{}, fmt.Errorf("sync rule %q: invalid endpoint pattern %q", r.Resource, pattern)
		}
	}
	return compiledRule{rule: r, path: expr}, nil
}

// appliesTo reports whether the rule is scoped to endpoint.
func (c compiledRule) appliesTo(endpoint string) bool {
	if len(c.rule.Endpoints) == 0 {
		return true
	}
	endpoint = normalizeEndpoint(endpoint)
	for _, pattern := range c.rule.Endpoints {
		if ok, _ := doublestar.Match(strings.Trim(pattern, "/"), endpoint); ok {
			return true
		}
	}
	return false
}

// extract returns the first array, or object carrying an id, that the path
// yields.
func (c compiledRule) extract(data any) (any, bool) {
	for _, v := range c.path.Get(data) {
		if isItemPayload(v) {
			return v, true
		}
	}
	return nil, false
}

// normalizeEndpoint strips the query and surrounding slashes, and reduces
// absolute URLs to their path.
func normalizeEndpoint(endpoint string) string {
	if u, err := url.Parse(endpoint); err == nil {
		endpoint = u.Path
	}
	return strings.Trim(endpoint, "/")
}

// ValidateSyncRule checks that r has a resource, a parsable path and valid
// endpoint globs.
func ValidateSyncRule(r SyncRule) error {
	_, err := compileRule(r)
	return err
}

// LoadSyncRules reads a YAML list of sync rules.
func LoadSyncRules(path string) ([]SyncRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []SyncRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse sync rules %s: %w", path, err)
	}
	for _, r := range rules {
		if err := ValidateSyncRule(r); err != nil {
			return nil, err
		}
	}
	return rules, nil
}
