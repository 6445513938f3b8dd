// Package memory provides a thread-safe in-memory implementation of storage.Substrate.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/meatandeat/shopguard/storage"
)

// Substrate is a thread-safe in-memory implementation of storage.Substrate.
// Suitable for testing, demos, and single-process use cases. Values are lost
// when the process exits.
type Substrate struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

var _ storage.Substrate = (*Substrate)(nil)

// New creates a new empty in-memory Substrate.
func New() *Substrate {
	return &Substrate{data: make(map[string]map[string]string)}
}

func (s *Substrate) Get(_ context.Context, namespace, key string) (string, error) {
	if err := storage.CheckKey(namespace, key); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[namespace][key]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	return v, nil
}

func (s *Substrate) Set(_ context.Context, namespace, key, value string) error {
	if err := storage.CheckKey(namespace, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[namespace]; !ok {
		s.data[namespace] = make(map[string]string)
	}
	s.data[namespace][key] = value
	return nil
}

func (s *Substrate) Delete(_ context.Context, namespace, key string) error {
	if err := storage.CheckKey(namespace, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	nsData, ok := s.data[namespace]
	if !ok {
		return nil
	}
	delete(nsData, key)
	if len(nsData) == 0 {
		delete(s.data, namespace)
	}
	return nil
}

func (s *Substrate) Clear(_ context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, namespace)
	return nil
}

func (s *Substrate) Keys(_ context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data[namespace]))
	for k := range s.data[namespace] {
		keys = append(keys, k)
	}
	return keys, nil
}

// Snapshot returns a copy of every value in namespace. Intended for tests
// that need to inspect or corrupt raw ciphertext.
func (s *Substrate) Snapshot(namespace string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]string, len(s.data[namespace]))
	for k, v := range s.data[namespace] {
		cp[k] = v
	}
	return cp
}

// Namespaces lists every namespace that currently holds data.
func (s *Substrate) Namespaces() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for ns := range s.data {
		names = append(names, ns)
	}
	return names, nil
}
