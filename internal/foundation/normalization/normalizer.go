// Package normalization maps loosely written configuration strings onto typed
// enumerations.
package normalization

import (
	"fmt"
	"sort"
	"strings"
)

// Normalizer converts case-insensitive, whitespace-tolerant strings to T.
type Normalizer[T comparable] struct {
	name         string
	validValues  map[string]T
	defaultValue T
	validKeys    []string
}

// NewNormalizer creates a normalizer named for error messages (e.g. "log level").
// Keys are folded to lower case.
func NewNormalizer[T comparable](name string, values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	validKeys := make([]string, 0, len(values))
	for k, v := range values {
		key := fold(k)
		normalized[key] = v
		validKeys = append(validKeys, key)
	}
	sort.Strings(validKeys)
	return &Normalizer[T]{name: name, validValues: normalized, defaultValue: defaultValue, validKeys: validKeys}
}

// Normalize returns the matching value or the default when raw is unknown.
func (n *Normalizer[T]) Normalize(raw string) T {
	if v, ok := n.validValues[fold(raw)]; ok {
		return v
	}
	return n.defaultValue
}

// Parse returns the matching value or an error listing the valid options.
func (n *Normalizer[T]) Parse(raw string) (T, error) {
	if v, ok := n.validValues[fold(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q, valid options: %s", n.name, raw, strings.Join(n.validKeys, ", "))
}

// Valid reports whether raw names a known value.
func (n *Normalizer[T]) Valid(raw string) bool {
	_, ok := n.validValues[fold(raw)]
	return ok
}

// ValidKeys returns the sorted list of accepted spellings.
func (n *Normalizer[T]) ValidKeys() []string {
	out := make([]string, len(n.validKeys))
	copy(out, n.validKeys)
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
