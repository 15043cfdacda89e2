package enums

import (
	"fmt"
	"slices"
	"strings"
)

// member reports whether v is one of the canonical values.
func member[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

// lookup resolves raw input against set. fold enables case-insensitive matching.
func lookup[T ~string](kind string, set []T, raw string, fold bool) (T, error) {
	raw = strings.TrimSpace(raw)
	for _, v := range set {
		if string(v) == raw || (fold && strings.EqualFold(string(v), raw)) {
			return v, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
