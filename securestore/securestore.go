// Package securestore is the keyed store: values are encrypted with a codec
// and persisted in one namespace of a storage.Substrate.
package securestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/meatandeat/shopguard/codec"
	"github.com/meatandeat/shopguard/storage"
)

// DefaultNamespace is used when no namespace option is given.
const DefaultNamespace = "default"

// Store reads and writes encrypted values under string keys.
type Store struct {
	sub       storage.Substrate
	codec     *codec.Codec
	namespace string
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for substrate failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// InNamespace selects the initial namespace.
func InNamespace(ns string) Option {
	return func(s *Store) {
		if ns != "" {
			s.namespace = ns
		}
	}
}

// New returns a Store over sub using c for every value.
func New(sub storage.Substrate, c *codec.Codec, opts ...Option) *Store {
	s := &Store{
		sub:       sub,
		codec:     c,
		namespace: DefaultNamespace,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "securestore")
	return s
}

// WithNamespace returns a Store sharing the substrate and codec but reading
// and writing namespace ns.
func (s *Store) WithNamespace(ns string) *Store {
	cp := *s
	cp.namespace = ns
	return &cp
}

// Namespace reports the partition this store writes to.
func (s *Store) Namespace() string {
	return s.namespace
}

func (s *Store) aad(key string) []byte {
	return []byte(s.namespace + ":" + key)
}

// Set encrypts v and stores it under key.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	ct, err := s.codec.Seal(v, s.aad(key))
	if err != nil {
		s.logger.Error("encrypting value", "namespace", s.namespace, "key", key, "error", err)
		return fmt.Errorf("storing %s: %w", key, err)
	}
	if err := s.sub.Set(ctx, s.namespace, key, ct); err != nil {
		s.logger.Error("writing value", "namespace", s.namespace, "key", key, "error", err)
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

// Get decrypts the value under key into dst. It reports false when the key
// is absent or the stored value cannot be decoded; callers cannot tell the
// two apart.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	ct, err := s.sub.Get(ctx, s.namespace, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reading value", "namespace", s.namespace, "key", key, "error", err)
		}
		return false
	}
	if err := s.codec.Open(ct, s.aad(key), dst); err != nil {
		s.logger.Debug("discarding undecodable value", "namespace", s.namespace, "key", key)
		return false
	}
	return true
}

// Load is Get for a typed destination.
func Load[T any](ctx context.Context, s *Store, key string) (T, bool) {
	var v T
	if !s.Get(ctx, key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

// Remove deletes key. Removing a missing key succeeds.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.sub.Delete(ctx, s.namespace, key); err != nil {
		s.logger.Error("removing value", "namespace", s.namespace, "key", key, "error", err)
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// Clear removes every key in the store's namespace.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.sub.Clear(ctx, s.namespace); err != nil {
		s.logger.Error("clearing namespace", "namespace", s.namespace, "error", err)
		return fmt.Errorf("clearing %s: %w", s.namespace, err)
	}
	return nil
}

// Keys lists the keys present in the namespace.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.sub.Keys(ctx, s.namespace)
}
