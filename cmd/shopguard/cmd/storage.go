package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/meatandeat/shopguard/codec"
	"github.com/meatandeat/shopguard/internal/config"
	"github.com/meatandeat/shopguard/securestore"
	"github.com/meatandeat/shopguard/storage"
	bboltstorage "github.com/meatandeat/shopguard/storage/bbolt"
	"github.com/meatandeat/shopguard/storage/memory"
	"github.com/meatandeat/shopguard/storage/postgres"
	redisstorage "github.com/meatandeat/shopguard/storage/redis"
)

// boltFile is the bbolt database name inside DATA_DIR.
const boltFile = "shopguard.db"

// openSubstrate opens the backend selected by cfg. The returned func
// releases it.
func openSubstrate(ctx context.Context, cfg *config.Config) (storage.Substrate, func(), error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return memory.New(), func() {}, nil

	case config.BackendBbolt:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		s, err := bboltstorage.NewFromFile(filepath.Join(cfg.DataDir, boltFile), nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open bbolt storage: %w", err)
		}
		return s, func() { _ = s.Close() }, nil

	case config.BackendPostgres:
		s, err := postgres.NewFromDSN(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		return s, s.Close, nil

	case config.BackendRedis:
		s, err := redisstorage.NewFromOptions(ctx, &goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis storage: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// openStore opens the substrate and wraps it in the encrypted keyed store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*securestore.Store, func(), error) {
	sub, closeFn, err := openSubstrate(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	c, err := codec.New(cfg.SecretKey)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return securestore.New(sub, c, securestore.WithLogger(logger)), closeFn, nil
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
