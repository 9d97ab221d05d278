package config

import (
	"fmt"
	"os"
)

// ResolveEnvVars resolves environment variable references in the embedding
// configuration. Direct values take precedence if already set.
func (c *EmbeddingConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}

	if c.BaseURLEnv != "" && c.BaseURL == "" {
		if val := os.Getenv(c.BaseURLEnv); val != "" {
			c.BaseURL = val
		}
	}
}

// Validate checks that the embedding configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("embedding: provider is required")
	}
	if c.Model == "" {
		return fmt.Errorf("embedding: model is required")
	}
	if c.Dimensions <= 0 {
		return fmt.Errorf("embedding: dimensions must be positive")
	}

	switch c.Provider {
	case "jina", "openai-compatible":
		// Valid providers
	default:
		return fmt.Errorf("embedding: unknown provider %q", c.Provider)
	}

	return nil
}

// ValidateWithAPIKey validates the configuration including API key requirement.
// Use this when the embedding service will actually be called (not just
// configured).
func (c *EmbeddingConfig) ValidateWithAPIKey() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		if c.APIKeyEnv != "" {
			return fmt.Errorf("embedding: api_key is required (set directly or via %s)", c.APIKeyEnv)
		}
		return fmt.Errorf("embedding: api_key is required")
	}
	return nil
}
