// Package config loads and validates server config from the environment and
// an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSecret is the built-in development key. It is refused when
// APP_ENV=production.
const DefaultSecret = "meat-and-eat-secure-key-2024"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendBbolt    = "bbolt"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds server configuration loaded from the environment.
type Config struct {
	// ListenAddr is the HTTP listen address (e.g. :8443).
	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
	// SecretKey derives the storage encryption key.
	SecretKey string `mapstructure:"SECRET_KEY"`

	// StorageBackend is one of memory, bbolt, postgres or redis.
	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	// DataDir holds the bbolt file.
	DataDir       string `mapstructure:"DATA_DIR"`
	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// SessionTimeout is the idle session lifetime (e.g. "24h").
	SessionTimeout string `mapstructure:"SESSION_TIMEOUT"`
	// LoginRateMax is the number of login attempts allowed per window.
	LoginRateMax    int    `mapstructure:"LOGIN_RATE_MAX"`
	LoginRateWindow string `mapstructure:"LOGIN_RATE_WINDOW"`
	// AuditRetention is the number of audit entries kept per client.
	AuditRetention int `mapstructure:"AUDIT_RETENTION"`
	// BcryptCost is the bcrypt cost factor (4-31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTLPEndpoint enables metric export when set.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// TLSCert and TLSKey are PEM file paths; both or neither.
	TLSCert string `mapstructure:"TLS_CERT"`
	TLSKey  string `mapstructure:"TLS_KEY"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LISTEN_ADDR", ":8443")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SECRET_KEY", DefaultSecret)
	v.SetDefault("STORAGE_BACKEND", BackendBbolt)
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_TIMEOUT", "24h")
	v.SetDefault("LOGIN_RATE_MAX", 5)
	v.SetDefault("LOGIN_RATE_WINDOW", "15m")
	v.SetDefault("AUDIT_RETENTION", 100)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("TLS_CERT", "")
	v.SetDefault("TLS_KEY", "")
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("config: LISTEN_ADDR must be set")
	}
	if c.SecretKey == "" {
		return errors.New("config: SECRET_KEY must be set")
	}
	if c.Production() && c.SecretKey == DefaultSecret {
		return errors.New("config: SECRET_KEY must not be the built-in default when APP_ENV=production")
	}
	switch c.StorageBackend {
	case BackendMemory, BackendBbolt, BackendRedis:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when STORAGE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.StorageBackend == BackendRedis && c.RedisAddr == "" {
		return errors.New("config: REDIS_ADDR must be set when STORAGE_BACKEND=redis")
	}
	if d, err := time.ParseDuration(c.SessionTimeout); err != nil || d <= 0 {
		return fmt.Errorf("config: invalid SESSION_TIMEOUT %q", c.SessionTimeout)
	}
	if d, err := time.ParseDuration(c.LoginRateWindow); err != nil || d <= 0 {
		return fmt.Errorf("config: invalid LOGIN_RATE_WINDOW %q", c.LoginRateWindow)
	}
	if c.LoginRateMax <= 0 {
		return errors.New("config: LOGIN_RATE_MAX must be positive")
	}
	if c.AuditRetention <= 0 {
		return errors.New("config: AUDIT_RETENTION must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("config: TLS_CERT and TLS_KEY must be set together")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	return nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// SessionTTL parses SessionTimeout. Returns 24h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTimeout)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// RateWindow parses LoginRateWindow. Returns 15m if unset or invalid.
func (c *Config) RateWindow() time.Duration {
	d, err := time.ParseDuration(c.LoginRateWindow)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// TLSEnabled reports whether a certificate pair is configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SlogLevel returns LogLevel as a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: invalid LOG_LEVEL %q", s)
	}
	return l, nil
}
