// Package config loads server settings from an optional YAML file overlaid
// by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the file Load reads when no path is given.
const ConfigPath = "config.yaml"

const (
	defaultPort           = 8080
	defaultDBPath         = "data/bookshelf.db"
	defaultLogLevel       = "info"
	defaultMaxUploadBytes = 50 << 20
)

// Config is the full server configuration.
type Config struct {
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"dbPath"`
	LogLevel string `yaml:"logLevel"`

	JWTSecret    string        `yaml:"jwtSecret"`
	TokenTTL     time.Duration `yaml:"tokenTTL"`
	SecureCookie bool          `yaml:"secureCookie"`

	// TrustProxy makes the server take the client address from
	// X-Forwarded-For / X-Real-IP. Only enable it behind a proxy that
	// overwrites those headers.
	TrustProxy bool `yaml:"trustProxy"`

	GitHubClientID     string `yaml:"githubClientID"`
	GitHubClientSecret string `yaml:"githubClientSecret"`
	GitHubCallbackURL  string `yaml:"githubCallbackURL"`

	RedisAddr          string `yaml:"redisAddr"`
	RedisPassword      string `yaml:"redisPassword"`
	RateLimitPerMinute int    `yaml:"rateLimitPerMinute"`

	S3Endpoint  string `yaml:"s3Endpoint"`
	S3AccessKey string `yaml:"s3AccessKey"`
	S3SecretKey string `yaml:"s3SecretKey"`
	S3Bucket    string `yaml:"s3Bucket"`
	S3UseSSL    bool   `yaml:"s3UseSSL"`

	MaxUploadBytes int64 `yaml:"maxUploadBytes"`
}

// AuthEnabled reports whether session tokens can be issued.
func (c Config) AuthEnabled() bool { return c.JWTSecret != "" }

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c Config) GitHubEnabled() bool {
	return c.AuthEnabled() && c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// RateLimitEnabled reports whether the Redis-backed limiter should be wired.
func (c Config) RateLimitEnabled() bool {
	return c.RedisAddr != "" && c.RateLimitPerMinute > 0
}

// StorageEnabled reports whether book files can be uploaded.
func (c Config) StorageEnabled() bool {
	return c.S3Endpoint != "" && c.S3Bucket != ""
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:           defaultPort,
		DBPath:         defaultDBPath,
		LogLevel:       defaultLogLevel,
		MaxUploadBytes: defaultMaxUploadBytes,
	}
}

// Load reads config from path (defaults to config.yaml). A missing file is
// not an error; environment variables and defaults fill the gaps.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = ConfigPath
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = n
	}
	setString("DB_PATH", &cfg.DBPath)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("JWT_SECRET", &cfg.JWTSecret)
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: invalid TOKEN_TTL %q: %w", v, err)
		}
		cfg.TokenTTL = d
	}
	if err := setBool("SECURE_COOKIE", &cfg.SecureCookie); err != nil {
		return err
	}
	if err := setBool("TRUST_PROXY", &cfg.TrustProxy); err != nil {
		return err
	}

	setString("GITHUB_CLIENT_ID", &cfg.GitHubClientID)
	setString("GITHUB_CLIENT_SECRET", &cfg.GitHubClientSecret)
	setString("GITHUB_CALLBACK_URL", &cfg.GitHubCallbackURL)

	setString("REDIS_ADDR", &cfg.RedisAddr)
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: invalid RATE_LIMIT_PER_MINUTE %q: %w", v, err)
		}
		cfg.RateLimitPerMinute = n
	}

	setString("S3_ENDPOINT", &cfg.S3Endpoint)
	setString("S3_ACCESS_KEY", &cfg.S3AccessKey)
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		cfg.S3SecretKey = v
	}
	setString("S3_BUCKET", &cfg.S3Bucket)
	if err := setBool("S3_USE_SSL", &cfg.S3UseSSL); err != nil {
		return err
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: invalid MAX_UPLOAD_BYTES %q: %w", v, err)
		}
		cfg.MaxUploadBytes = n
	}
	return nil
}

func setBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func validateConfig(cfg Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", cfg.Port)
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("config: dbPath is required")
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown logLevel %q", cfg.LogLevel)
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 16 {
		return errors.New("config: jwtSecret must be at least 16 characters (set in config.yaml or JWT_SECRET)")
	}
	if cfg.TokenTTL < 0 {
		return errors.New("config: tokenTTL must be >= 0")
	}
	if cfg.RateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if cfg.MaxUploadBytes <= 0 {
		return errors.New("config: maxUploadBytes must be > 0")
	}
	if cfg.S3Endpoint != "" && cfg.S3Bucket == "" {
		return errors.New("config: s3Bucket is required when s3Endpoint is set")
	}
	return nil
}
