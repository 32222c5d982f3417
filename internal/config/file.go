package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// duration wraps time.Duration so TOML can decode "3s" style strings.
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(parsed)
	return nil
}

// FileConfig represents the TOML configuration file structure.
type FileConfig struct {
	ServerPort           string   `toml:"server_port"`
	AnthropicAPIKey      string   `toml:"anthropic_api_key"`
	OpenRouterAPIKey     string   `toml:"openrouter_api_key"`
	GeminiAPIKey         string   `toml:"gemini_api_key"`
	MaxAttempts          int      `toml:"max_attempts"`
	BatchZeroResultDelay duration `toml:"batch_zero_result_delay"`
	HumanizerChunkChars  int      `toml:"humanizer_chunk_chars"`
}

// ConfigPath returns the path to the config file (~/.quillway/config.toml).
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.toml")
}

// LoadFile loads configuration from the TOML file.
// Returns an empty FileConfig if the file doesn't exist.
func LoadFile() (*FileConfig, error) {
	cfg := &FileConfig{}

	path := ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureConfigFile creates a default config file with commented examples if none exists.
func EnsureConfigFile() error {
	path := ConfigPath()

	// If config already exists, do nothing
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	// Ensure directory exists
	if err := EnsureDataDir(); err != nil {
		return err
	}

	defaultConfig := `# Quillway Configuration
# server_port = ":8080"

# Upstream provider keys. At least one is required. Keys are format-checked
# at startup; env vars ANTHROPIC_API_KEY / OPENROUTER_API_KEY /
# GEMINI_API_KEY take priority.
# anthropic_api_key = "sk-ant-..."
# openrouter_api_key = "sk-or-..."
# gemini_api_key = "AIza..."

# Retry attempts per provider before failing over.
# max_attempts = 3

# Delay before re-polling a batch that completed with zero results.
# batch_zero_result_delay = "3s"

# Target chunk size (characters) for humanizer jobs.
# humanizer_chunk_chars = 3500
`

	return os.WriteFile(path, []byte(defaultConfig), 0644)
}
