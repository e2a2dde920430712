// Package config provides configuration loading for learnd.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the learnd daemon.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Learning   LearningConfig   `koanf:"learning"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted for testing.
	Path string `koanf:"path"`
}

// ClassifierConfig holds settings for the text classification capability.
type ClassifierConfig struct {
	// Provider selects the backing model API: "disabled", "anthropic", "openai".
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
	// Timeout bounds a single classification call. Classification failures
	// degrade detection quality rather than blocking the caller, so this
	// should stay in the low seconds.
	Timeout   Duration `koanf:"timeout"`
	MaxTokens int      `koanf:"max_tokens"`
}

// LearningConfig holds tunables for the learning lifecycle.
type LearningConfig struct {
	// QuickChangeWindow is how soon after tracking an outcome must arrive
	// to count as a quick modification/deletion.
	QuickChangeWindow Duration `koanf:"quick_change_window"`

	// ReinforcementStep is the confidence increment applied when new
	// evidence agrees with an existing preference. Capped at 1.0.
	ReinforcementStep float64 `koanf:"reinforcement_step"`

	// OutcomeSeedConfidence is the starting confidence for preferences
	// inferred from action outcomes rather than stated corrections.
	OutcomeSeedConfidence float64 `koanf:"outcome_seed_confidence"`

	// MinPromptConfidence is the confidence floor for preferences injected
	// into prompt construction.
	MinPromptConfidence float64 `koanf:"min_prompt_confidence"`

	// ExpectationExpiry is how far past due a pending expectation must be
	// before the sweep marks it expired.
	ExpectationExpiry Duration `koanf:"expectation_expiry"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 9823,
		},
		Database: DatabaseConfig{
			Path: "learnd.db",
		},
		Classifier: ClassifierConfig{
			Provider:  "disabled",
			Timeout:   Duration(5 * time.Second),
			MaxTokens: 1024,
		},
		Learning: LearningConfig{
			QuickChangeWindow:     Duration(5 * time.Minute),
			ReinforcementStep:     0.1,
			OutcomeSeedConfidence: 0.4,
			MinPromptConfidence:   0.3,
			ExpectationExpiry:     Duration(48 * time.Hour),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	switch c.Classifier.Provider {
	case "disabled", "anthropic", "openai":
	default:
		return fmt.Errorf("unknown classifier provider %q", c.Classifier.Provider)
	}
	if c.Classifier.Provider != "disabled" && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier provider %q requires an api key", c.Classifier.Provider)
	}
	if c.Learning.ReinforcementStep <= 0 || c.Learning.ReinforcementStep > 1 {
		return fmt.Errorf("reinforcement step must be in (0, 1], got %v", c.Learning.ReinforcementStep)
	}
	if c.Learning.OutcomeSeedConfidence < 0 || c.Learning.OutcomeSeedConfidence > 1 {
		return fmt.Errorf("outcome seed confidence must be in [0, 1], got %v", c.Learning.OutcomeSeedConfidence)
	}
	if c.Learning.MinPromptConfidence < 0 || c.Learning.MinPromptConfidence > 1 {
		return fmt.Errorf("min prompt confidence must be in [0, 1], got %v", c.Learning.MinPromptConfidence)
	}
	if c.Learning.QuickChangeWindow.Duration() <= 0 {
		return fmt.Errorf("quick change window must be positive")
	}
	if c.Learning.ExpectationExpiry.Duration() <= 0 {
		return fmt.Errorf("expectation expiry must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
