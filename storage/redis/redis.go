// Package redis implements storage.Substrate on top of Redis. Each namespace
// is one hash, so Clear is a single DEL and Keys a single HKEYS.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/meatandeat/shopguard/storage"
)

// DefaultPrefix is prepended to every namespace to form the Redis key.
const DefaultPrefix = "shopguard:"

// Store implements storage.Substrate backed by a Redis client.
type Store struct {
	client goredis.UniversalClient
	prefix string
}

var _ storage.Substrate = (*Store)(nil)

// New wraps an existing client. An empty prefix selects DefaultPrefix.
func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// NewFromOptions dials Redis and verifies the connection with PING.
func NewFromOptions(ctx context.Context, opts *goredis.Options) (*Store, error) {
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return New(client, ""), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) hashKey(namespace string) string {
	return s.prefix + namespace
}

func (s *Store) Get(ctx context.Context, namespace, key string) (string, error) {
	if err := storage.CheckKey(namespace, key); err != nil {
		return "", err
	}
	v, err := s.client.HGet(ctx, s.hashKey(namespace), key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, namespace, key, value string) error {
	if err := storage.CheckKey(namespace, key); err != nil {
		return err
	}
	return s.client.HSet(ctx, s.hashKey(namespace), key, value).Err()
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := storage.CheckKey(namespace, key); err != nil {
		return err
	}
	return s.client.HDel(ctx, s.hashKey(namespace), key).Err()
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	if namespace == "" {
		return storage.ErrInvalidKey
	}
	return s.client.Del(ctx, s.hashKey(namespace)).Err()
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.hashKey(namespace)).Result()
	if err != nil {
		return nil, err
	}
	return keys, nil
}
