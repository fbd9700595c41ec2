package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Load reads the configuration from environ and validates it. A nil environ
// means the process environment.
func Load(environ map[string]string) (Config, error) {
	config, err := Parse(environ)
	if err != nil {
		return Config{}, err
	}

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Parse reads the configuration without validating it. The -validate flag
// uses it so that every violation can be reported, not just the first.
func Parse(environ map[string]string) (Config, error) {
	var config Config
	opts := env.Options{Environment: environ}
	if err := env.ParseWithOptions(&config, opts); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	config.CORSOrigins = trimCSV(config.CORSOrigins)
	config.Provider.Scopes = trimCSV(config.Provider.Scopes)
	config.Provider.Type = strings.ToLower(strings.TrimSpace(config.Provider.Type))
	config.FrontendURL = strings.TrimSpace(config.FrontendURL)

	return config, nil
}

// trimCSV removes empty entries from a comma-split list.
func trimCSV(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			result = append(result, v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
