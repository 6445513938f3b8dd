package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8443", cfg.ListenAddr)
	assert.Equal(t, BackendBbolt, cfg.StorageBackend)
	assert.Equal(t, DefaultSecret, cfg.SecretKey)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.Equal(t, 15*time.Minute, cfg.RateWindow())
	assert.Equal(t, 5, cfg.LoginRateMax)
	assert.Equal(t, 100, cfg.AuditRetention)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
	assert.False(t, cfg.TLSEnabled())
	assert.False(t, cfg.Production())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SESSION_TIMEOUT", "30m")
	t.Setenv("LOGIN_RATE_MAX", "10")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, BackendRedis, cfg.StorageBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL())
	assert.Equal(t, 10, cfg.LoginRateMax)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")

	t.Setenv("SECRET_KEY", "a-real-production-secret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			ListenAddr:      ":8443",
			SecretKey:       "s",
			StorageBackend:  BackendMemory,
			SessionTimeout:  "24h",
			LoginRateMax:    5,
			LoginRateWindow: "15m",
			AuditRetention:  100,
			BcryptCost:      12,
			LogLevel:        "info",
			LogFormat:       "json",
		}
	}
	ok := base()
	require.NoError(t, ok.Validate())

	cases := map[string]func(*Config){
		"no listen addr":       func(c *Config) { c.ListenAddr = "" },
		"no secret":            func(c *Config) { c.SecretKey = "" },
		"unknown backend":      func(c *Config) { c.StorageBackend = "mongo" },
		"postgres without dsn": func(c *Config) { c.StorageBackend = BackendPostgres },
		"redis without addr":   func(c *Config) { c.StorageBackend = BackendRedis },
		"bad timeout":          func(c *Config) { c.SessionTimeout = "soon" },
		"zero window":          func(c *Config) { c.LoginRateWindow = "0s" },
		"zero rate max":        func(c *Config) { c.LoginRateMax = 0 },
		"zero retention":       func(c *Config) { c.AuditRetention = 0 },
		"bcrypt too low":       func(c *Config) { c.BcryptCost = 3 },
		"cert without key":     func(c *Config) { c.TLSCert = "cert.pem" },
		"bad log level":        func(c *Config) { c.LogLevel = "loud" },
		"bad log format":       func(c *Config) { c.LogFormat = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, writeFile(dir+"/.env", "AUDIT_RETENTION=50\nLOG_FORMAT=text\n"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.AuditRetention)
	assert.Equal(t, "text", cfg.LogFormat)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
