// Package config provides layered configuration: built-in defaults, an
// optional TOML file, environment variables and command-line flags.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrAuthCodeRequired is returned when no activation secret was found.
	ErrAuthCodeRequired = errors.New(`config: authcode not found in ".authcode", "~/.authcode", "$AUTHCODE", or the command line`)
	// ErrInvalid is returned when a configuration value fails validation.
	ErrInvalid = errors.New("config: invalid configuration")
)

// AuthCodeFiles are checked in order when no secret was given explicitly.
var AuthCodeFiles = []string{".authcode", "~/.authcode"}

// Config holds all configuration for the application.
type Config struct {
	// AuthCode is the activation secret used to decrypt input files.
	AuthCode string `toml:"authcode" env:"AUTHCODE, overwrite" validate:"required" json:"-"` // Masked

	// Output settings
	Format    string `toml:"format" env:"AAXSPLIT_FORMAT, overwrite" validate:"oneof=mp3 aac m4a m4b flac opus"`
	OutputDir string `toml:"output_dir" env:"AAXSPLIT_OUTPUT_DIR, overwrite" validate:"required"`
	Workers   int    `toml:"workers" env:"AAXSPLIT_WORKERS, overwrite" validate:"min=1"`

	// External tools
	FFmpegPath  string `toml:"ffmpeg_path" env:"FFMPEG_PATH, overwrite" validate:"required"`
	FFprobePath string `toml:"ffprobe_path" env:"FFPROBE_PATH, overwrite" validate:"required"`
	Mp3spltPath string `toml:"mp3splt_path" env:"MP3SPLT_PATH, overwrite" validate:"required"`

	// Mode flags
	Overwrite    bool `toml:"overwrite"`
	CoverOnly    bool `toml:"cover_only"`
	Mono         bool `toml:"mono"`
	Single       bool `toml:"single"`
	Keep         bool `toml:"keep"`
	DryRun       bool `toml:"dry_run"`
	Verbose      bool `toml:"verbose"`
	MetadataOnly bool `toml:"metadata_only"`
	Upload       bool `toml:"upload"`

	// Optional S3 settings
	S3Bucket           string `toml:"s3_bucket" env:"S3_BUCKET, overwrite"`
	S3Region           string `toml:"s3_region" env:"S3_REGION, overwrite"`
	S3Endpoint         string `toml:"s3_endpoint" env:"S3_ENDPOINT, overwrite"`
	AWSAccessKeyID     string `toml:"-" env:"AWS_ACCESS_KEY_ID, overwrite" json:"-"`     // Masked
	AWSSecretAccessKey string `toml:"-" env:"AWS_SECRET_ACCESS_KEY, overwrite" json:"-"` // Masked

	// Logging settings
	LogFormat string `toml:"log_format" env:"LOG_FORMAT, overwrite" validate:"oneof=text json"`
	LogLevel  string `toml:"log_level" env:"LOG_LEVEL, overwrite" validate:"oneof=debug info warn warning error"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Format:      "mp3",
		OutputDir:   "Audiobooks",
		Workers:     1,
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Mp3spltPath: "mp3splt",
		LogFormat:   "text",
		LogLevel:    "info",
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/aaxsplit/config.toml")
}

// Load applies defaults, the TOML file at path and then environment
// variables. An empty path selects DefaultConfigPath. A missing file is not
// an error; it simply contributes nothing.
func Load(path string) (*Config, error) {
	return load(path, envconfig.OsLookuper())
}

func load(path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := Default()

	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	} else {
		p, err := expandPath(path)
		if err != nil {
			return nil, err
		}
		path = p
	}

	file, err := os.Open(path) // #nosec G304 - path is chosen by the user
	switch {
	case err == nil:
		defer func() { _ = file.Close() }()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}

	if err := envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// ResolveAuthCode fills AuthCode from the first readable authcode file
// when it is still empty after flags and environment were applied.
func (c *Config) ResolveAuthCode() error {
	if strings.TrimSpace(c.AuthCode) != "" {
		c.AuthCode = strings.TrimSpace(c.AuthCode)
		return nil
	}

	for _, name := range AuthCodeFiles {
		path, err := expandPath(name)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path) // #nosec G304 - fixed well-known locations
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if code := strings.TrimSpace(string(data)); code != "" {
			c.AuthCode = code
			return nil
		}
	}
	return ErrAuthCodeRequired
}

// Validate clamps the worker count to at least one, then checks every field
// against its validate tag.
func (c *Config) Validate() error {
	// Fewer than one worker means a sequential run.
	if c.Workers < 1 {
		c.Workers = 1
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Field() == "AuthCode" {
			return ErrAuthCodeRequired
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag()+optionalParam(fe.Param()), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

func optionalParam(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// ShowProgress reports whether progress bars may be drawn.
func (c *Config) ShowProgress() bool {
	return !c.Verbose && !c.DryRun
}

// NewLogger creates a structured logger based on the configuration.
// Logs go to stderr so stdout stays free for the summary table.
// Verbose forces the debug level.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)
	if c.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{AuthCode: %s, Format: %s, OutputDir: %s, Workers: %d, Overwrite: %t, CoverOnly: %t, Mono: %t, Single: %t, Keep: %t, DryRun: %t, MetadataOnly: %t, Upload: %t, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		mask(c.AuthCode),
		c.Format,
		c.OutputDir,
		c.Workers,
		c.Overwrite,
		c.CoverOnly,
		c.Mono,
		c.Single,
		c.Keep,
		c.DryRun,
		c.MetadataOnly,
		c.Upload,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
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

func expandPath(p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("config: resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}
