// Package options provides the generic key/value option bag used to
// configure database providers without an engine-specific schema.
package options

import (
	"strconv"
	"strings"
)

// Option is a single (key, value) pair from host configuration.
type Option struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// Bag is an ordered collection of provider options. Key lookup is
// case-insensitive and the first match wins.
type Bag []Option

// Lookup returns the value for key, matching case-insensitively.
func (b Bag) Lookup(key string) (string, bool) {
	for _, opt := range b {
		if strings.EqualFold(opt.Key, key) {
			return opt.Value, true
		}
	}
	return "", false
}

// String returns the value for key, or def when the key is absent.
func (b Bag) String(key, def string) string {
	if value, ok := b.Lookup(key); ok {
		return value
	}
	return def
}

// StringFunc returns the value for key, or the result of def when the key
// is absent. The default producer is only invoked on a miss.
func (b Bag) StringFunc(key string, def func() string) string {
	if value, ok := b.Lookup(key); ok {
		return value
	}
	return def()
}

// Int returns the value for key parsed as an integer. An absent key or a
// value that does not parse falls back to def.
func (b Bag) Int(key string, def int) int {
	value, ok := b.Lookup(key)
	if !ok {
		return def
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}

	return parsed
}
