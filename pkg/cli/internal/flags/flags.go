// Package flags provides reusable flag types for CLI commands.
package flags

import (
	"fmt"
	"slices"
	"strings"

	"github.com/servkit/restsync/pkg/cli/internal/parse"
)

// Pairs is a repeatable flag of key/value pairs such as --header 'Key: v'
// or --query role=admin. Values are never split on commas, and a value
// without Sep or with an empty key is rejected while flags are parsed.
type Pairs struct {
	// Sep separates key from value, ':' for headers and '=' otherwise.
	Sep rune
	// Example is shown as the flag's type and in errors, e.g. "key=value".
	Example string

	values []string
}

// NewQueryPairs returns Pairs for key=value flags.
func NewQueryPairs() Pairs {
	return Pairs{Sep: '=', Example: "key=value"}
}

// NewHeaderPairs returns Pairs for 'Key: value' flags.
func NewHeaderPairs() Pairs {
	return Pairs{Sep: ':', Example: "Key: value"}
}

// String implements pflag.Value.
func (p *Pairs) String() string {
	return strings.Join(p.values, ", ")
}

// Set implements pflag.Value.
func (p *Pairs) Set(value string) error {
	key, _, ok := parse.KeyValue(value, p.Sep)
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("invalid value %q, expected %s", value, p.Example)
	}
	p.values = append(p.values, value)
	return nil
}

// Type implements pflag.Value.
func (p *Pairs) Type() string {
	return p.Example
}

// Values returns the raw pairs in the order they were given.
func (p *Pairs) Values() []string {
	return slices.Clone(p.values)
}

// Len returns how many pairs were given.
func (p *Pairs) Len() int {
	return len(p.values)
}
