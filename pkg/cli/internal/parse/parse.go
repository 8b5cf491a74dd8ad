// Package parse provides string parsing utilities for CLI commands.
package parse

import (
	"fmt"
	"net/url"
	"strings"
)

// KeyValue parses a "key:value" or "key=value" string.
// If delimiters are provided, uses the first one found; otherwise defaults to ':'.
// Returns the key, value, and a boolean indicating success.
func KeyValue(s string, delimiters ...rune) (key, value string, ok bool) {
	if len(delimiters) == 0 {
		delimiters = []rune{':'}
	}

	for i, c := range s {
		for _, d := range delimiters {
			if c == d {
				return s[:i], s[i+1:], true
			}
		}
	}
	return "", "", false
}

// Headers parses "Key: value" strings into a map.
// Values are trimmed of leading/trailing whitespace.
func Headers(headers []string) (map[string]string, error) {
	result := make(map[string]string, len(headers))
	for _, h := range headers {
		key, value, ok := KeyValue(h, ':')
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid header %q, expected Key: value", h)
		}
		result[key] = strings.TrimSpace(value)
	}
	return result, nil
}

// Query parses "key=value" strings into url.Values. Repeated keys keep
// every value in order.
func Query(pairs []string) (url.Values, error) {
	values := url.Values{}
	for _, p := range pairs {
		key, value, ok := KeyValue(p, '=')
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query parameter %q, expected key=value", p)
		}
		values.Add(key, value)
	}
	return values, nil
}
