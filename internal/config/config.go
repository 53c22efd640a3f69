package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the full process configuration. Everything is validated at
// load time; a bad value never survives into the running process.
type Config struct {
	DiscordToken     string
	OpenRouterAPIKey string
	OpenRouterURL    string
	Model            string

	RequestTimeout     time.Duration
	MaxContextMessages int

	RateLimitEnabled bool
	RequestsPerMin   int

	DBPath     string
	PromptFile string
	LogLevel   string
}

// Load reads configuration from environment variables. Callers load .env
// into the environment before calling this.
func Load() (Config, error) {
	cfg := Config{
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterURL:    envOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		Model:            envOrDefault("AI_MODEL", "anthropic/claude-3.5-sonnet"),
		DBPath:           envOrDefault("DB_PATH", "sherlock.db"),
		PromptFile:       envOrDefault("PROMPT_FILE", "prompts/system_prompt.md"),
	}

	if cfg.DiscordToken == "" {
		return Config{}, fmt.Errorf("DISCORD_TOKEN is required in environment")
	}
	if cfg.OpenRouterAPIKey == "" {
		return Config{}, fmt.Errorf("OPENROUTER_API_KEY is required in environment")
	}

	timeoutSeconds, err := envIntInRange("REQUEST_TIMEOUT_SECONDS", 30, 5, 120)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout = time.Duration(timeoutSeconds) * time.Second

	cfg.MaxContextMessages, err = envIntInRange("MAX_CONTEXT_MESSAGES", 10, 1, 50)
	if err != nil {
		return Config{}, err
	}

	cfg.RequestsPerMin, err = envIntInRange("RATE_LIMIT_REQUESTS_PER_MINUTE", 10, 1, 60)
	if err != nil {
		return Config{}, err
	}

	cfg.RateLimitEnabled, err = envBool("RATE_LIMIT_ENABLED", true)
	if err != nil {
		return Config{}, err
	}

	cfg.LogLevel = strings.ToLower(envOrDefault("LOG_LEVEL", "info"))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return Config{}, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}

	return cfg, nil
}

// String is a safe representation that never exposes tokens.
func (c Config) String() string {
	return fmt.Sprintf(
		"Config(model=%s, timeout=%s, max_context=%d, rate_limit=%d/min, enabled=%t)",
		c.Model, c.RequestTimeout, c.MaxContextMessages, c.RequestsPerMin, c.RateLimitEnabled,
	)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntInRange(key string, fallback, min, max int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%s must be between %d and %d, got %d", key, min, max, n)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true, nil
	case "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
}
