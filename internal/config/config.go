// Package config loads application configuration.
// Priority: env vars → config.toml → defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration loaded from environment and file.
type Config struct {
	// ServerPort is the address to bind the server to (e.g., ":8080")
	ServerPort string

	// Providers holds upstream credentials, keyed by provider id.
	Providers map[string]ProviderCredentials

	// MaxAttempts bounds transient-error retries per provider attempt.
	MaxAttempts int

	// BatchZeroResultDelay is how long to wait before re-polling a batch
	// that reports completed with zero results.
	BatchZeroResultDelay time.Duration

	// HumanizerChunkChars is the target chunk size for humanizer jobs.
	HumanizerChunkChars int
}

// ProviderCredentials is a format-validated upstream API key.
type ProviderCredentials struct {
	APIKey string
}

// keyPrefixes maps provider ids to the prefix their API keys must carry.
// A key failing this check is a configuration error, never retried.
var keyPrefixes = map[string]string{
	"anthropic":  "sk-ant-",
	"openrouter": "sk-or-",
	"gemini":     "AIza",
}

// Load reads configuration from file and environment variables.
// Environment variables override file config values.
func Load() (*Config, error) {
	fileConfig, _ := LoadFile() // Ignore error, use defaults

	cfg := &Config{
		ServerPort:           getEnvOrFile("SERVER_PORT", fileConfig.ServerPort, ":8080"),
		Providers:            make(map[string]ProviderCredentials),
		MaxAttempts:          getEnvIntOrFile("MAX_ATTEMPTS", fileConfig.MaxAttempts, 3),
		BatchZeroResultDelay: getEnvDurationOrFile("BATCH_ZERO_RESULT_DELAY", time.Duration(fileConfig.BatchZeroResultDelay), 3*time.Second),
		HumanizerChunkChars:  getEnvIntOrFile("HUMANIZER_CHUNK_CHARS", fileConfig.HumanizerChunkChars, 3500),
	}

	keys := map[string]string{
		"anthropic":  getEnvOrFile("ANTHROPIC_API_KEY", fileConfig.AnthropicAPIKey, ""),
		"openrouter": getEnvOrFile("OPENROUTER_API_KEY", fileConfig.OpenRouterAPIKey, ""),
		"gemini":     getEnvOrFile("GEMINI_API_KEY", fileConfig.GeminiAPIKey, ""),
	}
	for provider, key := range keys {
		if key == "" {
			continue // provider disabled
		}
		if err := ValidateAPIKey(provider, key); err != nil {
			return nil, err
		}
		cfg.Providers[provider] = ProviderCredentials{APIKey: key}
	}

	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no upstream provider configured: set ANTHROPIC_API_KEY, OPENROUTER_API_KEY, or GEMINI_API_KEY")
	}

	return cfg, nil
}

// ValidateAPIKey checks an upstream key against its provider's known format
// before any call is attempted.
func ValidateAPIKey(provider, key string) error {
	prefix, ok := keyPrefixes[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	if !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("malformed %s API key: expected %q prefix", provider, prefix)
	}
	return nil
}

// getEnvOrFile returns env value, file value, or default (in priority order)
func getEnvOrFile(key, fileValue, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if fileValue != "" {
		return fileValue
	}
	return defaultValue
}

// getEnvIntOrFile returns env int, file int, or default (in priority order)
func getEnvIntOrFile(key string, fileValue int, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	if fileValue > 0 {
		return fileValue
	}
	return defaultValue
}

// getEnvDurationOrFile returns env duration, file duration, or default.
func getEnvDurationOrFile(key string, fileValue time.Duration, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	if fileValue > 0 {
		return fileValue
	}
	return defaultValue
}
