// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.supportchat/config.yaml)
//  3. Default values
//
// The Gemini API key is never stored in the config file; it is read from the
// GEMINI_API_KEY environment variable and only checked for presence here.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the GEMINI_API_KEY environment variable is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidPrice indicates a token price is negative.
	ErrInvalidPrice = errors.New("invalid token price")

	// ErrInvalidUploadLimit indicates the upload size limit is not positive.
	ErrInvalidUploadLimit = errors.New("invalid upload limit")
)

// Defaults for the Gemini model configuration. The low temperature keeps
// answers factual and grounded in the knowledge base.
const (
	DefaultModelName   = "gemini-2.5-flash"
	DefaultTemperature = 0.2

	// Default per-million-token prices in USD, used for the running cost
	// display. Presentation only — token counts come from the provider.
	DefaultInputPricePerM  = 0.30
	DefaultOutputPricePerM = 2.50

	// DefaultMaxUploadBytes bounds a single upload request body (32 MiB).
	DefaultMaxUploadBytes = 32 << 20
)

// Config stores application configuration.
type Config struct {
	// Model configuration
	ModelName   string  `mapstructure:"model_name"`
	Temperature float32 `mapstructure:"temperature"`

	// Cost display rates (USD per one million tokens)
	InputPricePerM  float64 `mapstructure:"input_price_per_m"`
	OutputPricePerM float64 `mapstructure:"output_price_per_m"`

	// HTTP server
	Addr           string   `mapstructure:"addr"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	RateBurst      int      `mapstructure:"rate_burst"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	TrustProxy     bool     `mapstructure:"trust_proxy"`

	// DataDir holds the knowledge-base record file.
	DataDir string `mapstructure:"data_dir"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".supportchat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v, configDir)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("temperature", DefaultTemperature)

	v.SetDefault("input_price_per_m", DefaultInputPricePerM)
	v.SetDefault("output_price_per_m", DefaultOutputPricePerM)

	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("rate_burst", 60)
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("trust_proxy", false)

	v.SetDefault("data_dir", configDir)
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by the provider client, not via viper;
// ValidateAPIKey checks its presence.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("model_name", "SUPPORTCHAT_MODEL_NAME")
	mustBind("temperature", "SUPPORTCHAT_TEMPERATURE")
	mustBind("addr", "SUPPORTCHAT_ADDR")
	mustBind("cors_origins", "SUPPORTCHAT_CORS_ORIGINS")
	mustBind("rate_burst", "SUPPORTCHAT_RATE_BURST")
	mustBind("trust_proxy", "SUPPORTCHAT_TRUST_PROXY")
	mustBind("data_dir", "SUPPORTCHAT_DATA_DIR")
}

// Validate performs range checks on the configuration (fail-fast).
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if c.InputPricePerM < 0 || c.OutputPricePerM < 0 {
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidPrice)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidUploadLimit, c.MaxUploadBytes)
	}
	return nil
}

// ValidateAPIKey checks that the provider API key is present in the
// environment. Called by serve-mode startup, not by Load, so offline
// commands (version, help) work without credentials.
func (c *Config) ValidateAPIKey() error {
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}

// KnowledgeBaseFile returns the path of the persisted knowledge-base record file.
func (c *Config) KnowledgeBaseFile() string {
	return filepath.Join(c.DataDir, "knowledge_bases.json")
}
