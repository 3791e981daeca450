package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// Environment keys and defaults for the command line settings file.
const (
	EnvConfigPath = "PLANTER_CONFIG"
	EnvLogLevel   = "PLANTER_LOG_LEVEL"

	DefaultConfigPath = "planter.toml"
)

// envProvider is the provider interface for settings file functions.
type envProvider interface {
	Read(filenames ...string) (map[string]string, error)
}

// GodotenvProvider implements the settings file functions with the
// godotenv package.
type GodotenvProvider struct{}

func (*GodotenvProvider) Read(filenames ...string) (map[string]string, error) {
	data, err := godotenv.Read(filenames...)
	if err != nil {
		return nil, fmt.Errorf("(config-godotenv) %w", err)
	}

	return data, nil
}

// Settings are the command line defaults read from an optional
// environment style file.
type Settings struct {
	ConfigPath string
	LogLevel   string
}

// ReadSettings reads settings from the given files, falling back to
// defaults for keys the files do not set. With no filenames it returns
// the defaults without touching the provider.
func ReadSettings(envHandler envProvider, filenames ...string) (*Settings, error) {
	settings := &Settings{
		ConfigPath: DefaultConfigPath,
	}

	if len(filenames) == 0 {
		return settings, nil
	}

	values, err := envHandler.Read(filenames...)
	if err != nil {
		return nil, err
	}

	if v, exists := values[EnvConfigPath]; exists && v != "" {
		settings.ConfigPath = v
	}
	if v, exists := values[EnvLogLevel]; exists && v != "" {
		settings.LogLevel = v
	}

	return settings, nil
}
