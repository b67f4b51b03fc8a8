// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents the agent configuration. It can be loaded from a JSON file and
// overlaid with environment variables. Missing values are filled by MergeWithDefaults.
type Config struct {
	// LLM
	LLMProvider     string `json:"llm_provider,omitempty"`      // "gemini" or "anthropic"
	LLMModel        string `json:"llm_model,omitempty"`         // Overrides every tier when set
	GeminiAPIKey    string `json:"gemini_api_key,omitempty"`    // Gemini API key
	AnthropicAPIKey string `json:"anthropic_api_key,omitempty"` // Anthropic API key

	// Search
	SearchProvider     string `json:"search_provider,omitempty"`       // "google" or "duckduckgo"
	GoogleSearchAPIKey string `json:"google_search_api_key,omitempty"` // Custom Search JSON API key
	GoogleSearchCX     string `json:"google_search_cx,omitempty"`      // Programmable Search Engine ID

	// Server
	Port               int `json:"port,omitempty"`
	RateLimitPerMinute int `json:"rate_limit_per_minute,omitempty"` // Per-client limit on /ask endpoints

	// Behavior
	MaxParallelSearches int      `json:"max_parallel_searches,omitempty"`
	LLMTimeout          Duration `json:"llm_timeout,omitempty"`    // e.g. "60s"
	SearchTimeout       Duration `json:"search_timeout,omitempty"` // e.g. "15s"
	Verbose             bool     `json:"verbose,omitempty"`
}

// Duration is a time.Duration that reads and writes JSON strings such as "30s".
type Duration time.Duration

// MarshalJSON encodes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	*d = Duration(time.Duration(seconds * float64(time.Second)))
	return nil
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		LLMProvider:         "gemini",
		Port:                8080,
		RateLimitPerMinute:  10,
		MaxParallelSearches: 5,
		LLMTimeout:          Duration(60 * time.Second),
		SearchTimeout:       Duration(15 * time.Second),
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overlays environment variables onto the configuration.
// A set variable always wins over the file value.
func (c *Config) ApplyEnv() {
	c.LLMProvider = getEnvString("LLM_PROVIDER", c.LLMProvider)
	c.LLMModel = getEnvString("LLM_MODEL", c.LLMModel)
	c.GeminiAPIKey = getEnvString("GEMINI_API_KEY", getEnvString("GOOGLE_API_KEY", c.GeminiAPIKey))
	c.AnthropicAPIKey = getEnvString("ANTHROPIC_API_KEY", c.AnthropicAPIKey)

	c.SearchProvider = getEnvString("SEARCH_PROVIDER", c.SearchProvider)
	c.GoogleSearchAPIKey = getEnvString("GOOGLE_SEARCH_API_KEY", getEnvString("GOOGLE_API_KEY", c.GoogleSearchAPIKey))
	c.GoogleSearchCX = getEnvString("GOOGLE_CSE_ID", c.GoogleSearchCX)

	c.Port = getEnvInt("PORT", c.Port)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)
}

// Validate checks that the configuration has valid values.
// API keys are checked when clients are built, since the quick CLI paths may not need all of them.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "", "gemini", "anthropic":
	default:
		return fmt.Errorf("config error: unknown 'llm_provider' %q", c.LLMProvider)
	}

	switch c.SearchProvider {
	case "", "google", "duckduckgo":
	default:
		return fmt.Errorf("config error: unknown 'search_provider' %q", c.SearchProvider)
	}

	if c.SearchProvider == "google" && (c.GoogleSearchAPIKey == "" || c.GoogleSearchCX == "") {
		return fmt.Errorf("config error: 'google' search requires 'google_search_api_key' and 'google_search_cx'")
	}

	// Validate numeric ranges
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxParallelSearches < 0 {
		return fmt.Errorf("config error: 'max_parallel_searches' must be non-negative")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("config error: 'rate_limit_per_minute' must be non-negative")
	}
	if c.LLMTimeout < 0 || c.SearchTimeout < 0 {
		return fmt.Errorf("config error: timeouts must be non-negative")
	}

	return nil
}

// APIKeyFor returns the configured key for an LLM provider.
func (c *Config) APIKeyFor(provider string) string {
	if provider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.GeminiAPIKey
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.LLMProvider == "" {
		result.LLMProvider = defaults.LLMProvider
	}
	if result.LLMModel == "" {
		result.LLMModel = defaults.LLMModel
	}
	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.AnthropicAPIKey == "" {
		result.AnthropicAPIKey = defaults.AnthropicAPIKey
	}
	if result.SearchProvider == "" {
		result.SearchProvider = defaults.SearchProvider
	}
	if result.GoogleSearchAPIKey == "" {
		result.GoogleSearchAPIKey = defaults.GoogleSearchAPIKey
	}
	if result.GoogleSearchCX == "" {
		result.GoogleSearchCX = defaults.GoogleSearchCX
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.RateLimitPerMinute == 0 {
		result.RateLimitPerMinute = defaults.RateLimitPerMinute
	}
	if result.MaxParallelSearches == 0 {
		result.MaxParallelSearches = defaults.MaxParallelSearches
	}
	if result.LLMTimeout == 0 {
		result.LLMTimeout = defaults.LLMTimeout
	}
	if result.SearchTimeout == 0 {
		result.SearchTimeout = defaults.SearchTimeout
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}

// Load reads the optional config file, overlays the environment, fills defaults and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	cfg.ApplyEnv()
	merged := cfg.MergeWithDefaults(Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
