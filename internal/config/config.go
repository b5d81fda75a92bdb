// ABOUTME: Configuration loading and parsing for the murmur daemon
// ABOUTME: YAML with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete murmur configuration.
type Config struct {
	Model         ModelConfig         `yaml:"model"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Summary       SummaryConfig       `yaml:"summary"`
	Conversations ConversationsConfig `yaml:"conversations"`
	Database      DatabaseConfig      `yaml:"database"`
	Prompts       PromptsConfig       `yaml:"prompts"`
	Logging       LoggingConfig       `yaml:"logging"`
	Matrix        MatrixConfig        `yaml:"matrix"`
}

// ModelConfig holds generation-provider settings.
type ModelConfig struct {
	Default          string   `yaml:"default"`
	Extra            []string `yaml:"extra"` // additional selectable models
	APIKey           string   `yaml:"api_key"`
	BaseURL          string   `yaml:"base_url"` // optional OpenAI-compatible endpoint
	VisionModels     []string `yaml:"vision_models"`
	TokenWindowSize  int      `yaml:"token_window_size"`
	MaxOutputTokens  int      `yaml:"max_output_tokens"`
	Temperature      *float64 `yaml:"temperature"` // nil leaves the provider default; 0 is deterministic
	TopP             float64  `yaml:"top_p"`
	FrequencyPenalty float64  `yaml:"frequency_penalty"`
	PresencePenalty  float64  `yaml:"presence_penalty"`

	RequestTimeout    time.Duration `yaml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout"`
}

// RateLimitConfig holds the fixed-window limiter settings.
type RateLimitConfig struct {
	Count int `yaml:"count"`

	Interval    time.Duration `yaml:"-"`
	IntervalRaw string        `yaml:"interval"`
}

// SummaryConfig holds the passive channel-summary settings.
type SummaryConfig struct {
	TokenWindowSize int `yaml:"token_window_size"`
}

// ConversationsConfig bounds the per-scope conversation map.
type ConversationsConfig struct {
	Max int `yaml:"max"`

	TTL    time.Duration `yaml:"-"`
	TTLRaw string        `yaml:"ttl"`
}

// DatabaseConfig holds the SQLite database path.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// PromptsConfig points at an optional directory of prompt JSON files which
// is watched for hot reloads when set.
type PromptsConfig struct {
	Directory string `yaml:"directory"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MatrixConfig enables the Matrix frontend and points at its own TOML file.
type MatrixConfig struct {
	Enabled bool   `yaml:"enabled"`
	Config  string `yaml:"config"`
}

// Load reads a configuration file from the given path. Environment variables
// in ${VAR_NAME} format are expanded before parsing; duration strings are
// parsed after; defaults are applied before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable
// values. Unset variables become empty strings.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func parseDurations(cfg *Config) error {
	var err error

	if cfg.Model.RequestTimeoutRaw != "" {
		cfg.Model.RequestTimeout, err = time.ParseDuration(cfg.Model.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing model.request_timeout %q: %w", cfg.Model.RequestTimeoutRaw, err)
		}
	}

	if cfg.RateLimit.IntervalRaw != "" {
		cfg.RateLimit.Interval, err = time.ParseDuration(cfg.RateLimit.IntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing rate_limit.interval %q: %w", cfg.RateLimit.IntervalRaw, err)
		}
	}

	if cfg.Conversations.TTLRaw != "" {
		cfg.Conversations.TTL, err = time.ParseDuration(cfg.Conversations.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing conversations.ttl %q: %w", cfg.Conversations.TTLRaw, err)
		}
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Model.Default == "" {
		c.Model.Default = "gpt-4o-mini"
	}
	if c.Model.TokenWindowSize == 0 {
		c.Model.TokenWindowSize = 2048
	}
	if c.Model.MaxOutputTokens == 0 {
		c.Model.MaxOutputTokens = 1024
	}
	if c.Model.RequestTimeout == 0 {
		c.Model.RequestTimeout = 90 * time.Second
	}
	if c.RateLimit.Count == 0 {
		c.RateLimit.Count = 3
	}
	if c.RateLimit.Interval == 0 {
		c.RateLimit.Interval = 90 * time.Second
	}
	if c.Summary.TokenWindowSize == 0 {
		c.Summary.TokenWindowSize = 8096
	}
	if c.Conversations.Max == 0 {
		c.Conversations.Max = 256
	}
	if c.Conversations.TTL == 0 {
		c.Conversations.TTL = 12 * time.Hour
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/murmur.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that required fields are present and sane.
func (c *Config) Validate() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("model.api_key is required")
	}
	if c.Model.TokenWindowSize < 1 {
		return fmt.Errorf("model.token_window_size must be positive")
	}
	if c.RateLimit.Count < 1 {
		return fmt.Errorf("rate_limit.count must be positive")
	}
	if c.Matrix.Enabled && c.Matrix.Config == "" {
		return fmt.Errorf("matrix.config is required when matrix is enabled")
	}
	return nil
}
