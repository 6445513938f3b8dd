// Package bbolt provides a BBolt-backed storage substrate. Each namespace is
// a top-level bucket, so Clear drops a single bucket.
package bbolt

import (
	"context"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/meatandeat/shopguard/storage"
)

// Store implements storage.Substrate backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ storage.Substrate = (*Store)(nil)

// New returns a Substrate backed by the given BBolt database.
func New(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewFromFile opens a BBolt database at the given path and returns a new Substrate.
func NewFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return New(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(_ context.Context, namespace, key string) (string, error) {
	if err := storage.CheckKey(namespace, key); err != nil {
		return "", err
	}
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
		}
		// data is only valid inside the transaction.
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, namespace, key, value string) error {
	if err := storage.CheckKey(namespace, key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), []byte(value))
	})
}

func (s *Store) Delete(_ context.Context, namespace, key string) error {
	if err := storage.CheckKey(namespace, key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}

func (s *Store) Clear(_ context.Context, namespace string) error {
	if namespace == "" {
		return storage.ErrInvalidKey
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(namespace))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func (s *Store) Keys(_ context.Context, namespace string) ([]string, error) {
	keys := []string{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Namespaces lists every namespace that currently holds data.
func (s *Store) Namespaces() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}
