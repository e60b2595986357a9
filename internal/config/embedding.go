package config

import (
	"fmt"
	"os"
	"time"
)

// EmbeddingConfig defines the embedding provider used for documents, tags and queries.
// All three must share one model so their vectors live in the same space.
type EmbeddingConfig struct {
	Name       string        `mapstructure:"name"`
	Provider   string        `mapstructure:"provider"`    // jina, openai, ollama
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`     // can be set directly or via env var
	APIKeyEnv  string        `mapstructure:"api_key_env"` // environment variable name for API key
	BaseURL    string        `mapstructure:"base_url"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ResolveEnvVars loads the API key from APIKeyEnv when no direct value is set.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
}

// Validate checks that the embedding configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding %q: provider is required", c.Name)
	}
	if c.Model == "" {
		return fmt.Errorf("embedding %q: model is required", c.Name)
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding %q: dimensions must be positive", c.Name)
	}

	switch c.Provider {
	case "jina", "openai", "ollama":
	default:
		return fmt.Errorf("embedding %q: unknown provider %q", c.Name, c.Provider)
	}

	return nil
}

// RequiresAPIKey reports whether the provider authenticates with a bearer key.
func (c *EmbeddingConfig) RequiresAPIKey() bool {
	return c.Provider == "jina" || c.Provider == "openai"
}

// ValidateWithAPIKey validates the configuration including API key requirement.
// Use this when the embedding will actually be used (not just configured).
func (c *EmbeddingConfig) ValidateWithAPIKey() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.RequiresAPIKey() && c.APIKey == "" {
		return fmt.Errorf("embedding %q: api_key is required (set directly or via %s)", c.Name, c.APIKeyEnv)
	}
	return nil
}
