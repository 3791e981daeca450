package config

import (
	"fmt"
	"strings"
)

// NameMap translates owner or group names produced by schema
// expressions into the names that should reach the filesystem.
// Unmapped names pass through unchanged.
type NameMap map[string]string

// ParseNameMap parses a mapping of the form "from:to,from:to".
// An empty text yields an empty map.
func ParseNameMap(text string) (NameMap, error) {
	mapping := make(NameMap)

	if strings.TrimSpace(text) == "" {
		return mapping, nil
	}

	for _, pair := range strings.Split(text, ",") {
		parts := strings.Split(pair, ":")

		switch {
		case len(parts) < 2:
			return nil, fmt.Errorf("(config) expected a ':' separated pair in %q: %w", pair, ErrBadNameMap)
		case len(parts) > 2:
			return nil, fmt.Errorf("(config) unexpected third value in %q: %w", pair, ErrBadNameMap)
		}

		from := strings.TrimSpace(parts[0])
		to := strings.TrimSpace(parts[1])

		if from == "" || to == "" {
			return nil, fmt.Errorf("(config) key and value must be non-empty in %q: %w", pair, ErrBadNameMap)
		}

		mapping[from] = to
	}

	return mapping, nil
}

// Map returns the mapped name, or the name itself when unmapped.
func (m NameMap) Map(name string) string {
	if mapped, exists := m[name]; exists {
		return mapped
	}

	return name
}
