// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
	// ErrInvalidConfig is returned when a value fails validation.
	ErrInvalidConfig = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// AudiMeta settings
	AudiMetaBaseURL string        `env:"AUDIMETA_BASE_URL, default=https://audimeta.de" json:"audimeta_base_url" validate:"required,url"`
	AudiMetaRegion  string        `env:"AUDIMETA_REGION, default=us" json:"audimeta_region" validate:"required,oneof=us uk de fr au ca jp it in es"`
	AudiMetaRPS     float64       `env:"AUDIMETA_RPS, default=1" json:"audimeta_rps" validate:"gt=0"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT, default=30s" json:"http_timeout" validate:"gt=0"`

	// Tool settings
	FFmpegPath  string        `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`
	FFprobePath string        `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path" validate:"required"`
	ToolTimeout time.Duration `env:"TOOL_TIMEOUT, default=10m" json:"tool_timeout" validate:"gt=0"`

	// Processing settings
	MaxConcurrentExports int     `env:"MAX_CONCURRENT_EXPORTS, default=1" json:"max_concurrent_exports" validate:"min=1,max=32"`
	DedupEpsilonSec      float64 `env:"DEDUP_EPSILON_SEC, default=1" json:"dedup_epsilon_sec" validate:"gte=0"`

	// Storage settings
	TempDir  string        `env:"TEMP_DIR" json:"temp_dir"`
	CacheDir string        `env:"CACHE_DIR" json:"cache_dir,omitempty"`
	CacheTTL time.Duration `env:"CACHE_TTL, default=24h" json:"cache_ttl" validate:"gte=0"`

	// Optional S3 publishing
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 publishing is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// CacheEnabled returns true if the chapter cache is configured.
func (c *Config) CacheEnabled() bool {
	return c.CacheDir != "" && c.CacheTTL > 0
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	return LoadWithLookuper(envconfig.OsLookuper())
}

// LoadWithLookuper is like Load but reads values from the given lookuper.
func LoadWithLookuper(l envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: l,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every field against its validate tag plus the
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (got %v)", ErrInvalidConfig, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// Logs go to stderr so command output on stdout stays machine-readable.
func (c *Config) NewLogger() *slog.Logger {
	return c.NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates a structured logger writing to w.
// When LogFormat is "json", it outputs JSON logs.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLoggerTo(w io.Writer) *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{AudiMetaBaseURL: %s, AudiMetaRegion: %s, HTTPTimeout: %s, FFmpegPath: %s, FFprobePath: %s, ToolTimeout: %s, MaxConcurrentExports: %d, DedupEpsilonSec: %g, TempDir: %s, CacheDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.AudiMetaBaseURL,
		c.AudiMetaRegion,
		c.HTTPTimeout,
		c.FFmpegPath,
		c.FFprobePath,
		c.ToolTimeout,
		c.MaxConcurrentExports,
		c.DedupEpsilonSec,
		c.TempDir,
		c.CacheDir,
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
