// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all configuration for the application.
//
// Provider API keys are deliberately not required at load time: a missing
// credential fails the pipeline run at the stage that needs it, not the
// whole process at boot.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// Gemini settings (prompt enhancement + image composition)
	GeminiAPIKey     string `env:"GEMINI_API_KEY" json:"-"` // Masked in JSON
	GeminiBaseURL    string `env:"GEMINI_BASE_URL, default=https://generativelanguage.googleapis.com/v1beta" json:"gemini_base_url"`
	GeminiTextModel  string `env:"GEMINI_TEXT_MODEL, default=gemini-2.0-flash" json:"gemini_text_model"`
	GeminiImageModel string `env:"GEMINI_IMAGE_MODEL, default=gemini-2.0-flash-exp-image-generation" json:"gemini_image_model"`

	// Kling settings (image-to-video generation)
	KlingAPIKey  string `env:"KLING_API_KEY" json:"-"` // Masked in JSON
	KlingBaseURL string `env:"KLING_BASE_URL, default=https://api.piapi.ai/api/v1" json:"kling_base_url"`

	// PiAPI settings (audio augmentation)
	PiAPIKey     string `env:"PIAPI_API_KEY" json:"-"` // Masked in JSON
	PiAPIBaseURL string `env:"PIAPI_BASE_URL, default=https://api.piapi.ai/api/v1" json:"piapi_base_url"`

	// Polling settings
	PollInterval    time.Duration `env:"POLL_INTERVAL, default=5s" json:"poll_interval"`
	PollMaxAttempts int           `env:"POLL_MAX_ATTEMPTS, default=120" json:"poll_max_attempts"`

	// Storage settings
	DataDir string `env:"DATA_DIR, default=/tmp/cgistudio" json:"data_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, GeminiTextModel: %s, GeminiImageModel: %s, KlingBaseURL: %s, PiAPIBaseURL: %s, PollInterval: %s, PollMaxAttempts: %d, DataDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.GeminiTextModel,
		c.GeminiImageModel,
		c.KlingBaseURL,
		c.PiAPIBaseURL,
		c.PollInterval,
		c.PollMaxAttempts,
		c.DataDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
