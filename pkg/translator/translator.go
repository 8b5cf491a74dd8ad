// Package translator holds the singular and plural labels of each resource.
package translator

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Translation is the pair of labels for one resource.
type Translation struct {
	Singular string `yaml:"singular" json:"singular"`
	Plural   string `yaml:"plural" json:"plural"`
}

// Translator maps resource names to labels. Unknown names and empty labels
// fall back to the resource name itself.
type Translator struct {
	tag language.Tag

	mu      sync.RWMutex
	entries map[string]Translation
}

// Option configures a Translator.
type Option func(*Translator)

// WithLanguage sets the language used for capitalisation.
func WithLanguage(tag language.Tag) Option {
	return func(t *Translator) {
		t.tag = tag
	}
}

// New creates an empty translator.
func New(opts ...Option) *Translator {
	t := &Translator{tag: language.English, entries: make(map[string]Translation)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Set stores the labels for name, replacing earlier ones.
func (t *Translator) Set(name string, tr Translation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[name] = tr
}

// Has reports whether labels are stored for name.
func (t *Translator) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[name]
	return ok
}

// Names returns every name with labels, sorted.
func (t *Translator) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries))
	for n := range t.entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Singular returns the singular label of name.
func (t *Translator) Singular(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if tr, ok := t.entries[name]; ok && tr.Singular != "" {
		return tr.Singular
	}
	return name
}

// Plural returns the plural label of name.
func (t *Translator) Plural(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if tr, ok := t.entries[name]; ok && tr.Plural != "" {
		return tr.Plural
	}
	return name
}

// CapitalizedSingular returns Singular with each word capitalised.
func (t *Translator) CapitalizedSingular(name string) string {
	return t.capitalize(t.Singular(name))
}

// CapitalizedPlural returns Plural with each word capitalised.
func (t *Translator) CapitalizedPlural(name string) string {
	return t.capitalize(t.Plural(name))
}

// capitalize upper-cases the first letter of each word and leaves the rest
// untouched, so "API key" stays "API Key".
func (t *Translator) capitalize(s string) string {
	return cases.Title(t.tag, cases.NoLower).String(s)
}

// LoadFile reads a YAML map of resource name to labels into t.
func (t *Translator) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries map[string]Translation
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse translations %s: %w", path, err)
	}
	for name, tr := range entries {
		t.Set(name, tr)
	}
	return nil
}
