package classify

import (
	"fmt"

	"github.com/harmonlabs/learnd/internal/config"
)

// New creates a classification client based on configuration.
//
// Provider "disabled" returns a NoOpClient: quick keyword detection keeps
// working, deep detection and preference proposal are skipped.
func New(cfg config.ClassifierConfig) (Client, error) {
	switch cfg.Provider {
	case "", "disabled":
		return NoOpClient{}, nil
	case "anthropic":
		return newAnthropicClient(cfg)
	case "openai":
		return newOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown classifier provider: %s", cfg.Provider)
	}
}
