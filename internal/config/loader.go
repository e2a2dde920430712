package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// envPrefix is stripped from environment variables before mapping
	// them onto config keys: LEARND_SERVER_PORT -> server.port.
	envPrefix = "LEARND_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, in increasing order of precedence.
//
// The configPath parameter names the YAML file to load. If empty, no file
// is read. Missing files are not an error; unreadable or oversized files
// are.
//
// Environment variables use the LEARND_ prefix with underscore separators:
//
//	LEARND_SERVER_PORT=9823         -> server.port
//	LEARND_CLASSIFIER_API_KEY=...   -> classifier.api_key
//	LEARND_DATABASE_PATH=/var/learnd.db
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file %s exceeds %d bytes", configPath, maxConfigFileSize)
			}
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Environment variables override file values. The transformer maps
	// LEARND_SECTION_SOME_KEY onto section.some_key; two-part keys cover
	// every field in Config, so only the first underscore splits.
	if err := k.Load(env.Provider(envPrefix, ".", envTransformer), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// envTransformer maps LEARND_SERVER_PORT to server.port and
// LEARND_CLASSIFIER_API_KEY to classifier.api_key.
func envTransformer(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	return strings.Join(parts, ".")
}
