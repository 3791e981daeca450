// Package config loads the planter configuration: the stem table mapping
// roots to schema files, the parsed-schema cache and the name mapping
// and settings helpers the command line builds on.
package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// File mirrors the on-disk TOML configuration.
//
//	schema_directory = "schemas"
//
//	[stems.main]
//	root = "/srv/main"
//	schema = "main.schema"
type File struct {
	SchemaDirectory string                `toml:"schema_directory"`
	Stems           map[string]StemConfig `toml:"stems"`
}

// StemConfig is one stem table entry.
type StemConfig struct {
	Root   string `toml:"root"`
	Schema string `toml:"schema"`
}

// ParseFile decodes TOML configuration data.
func ParseFile(data []byte) (*File, error) {
	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("(config) failed to decode configuration: %w", err)
	}

	return &file, nil
}
