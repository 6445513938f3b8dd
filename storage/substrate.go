// Package storage defines the persistent key-value substrate that holds
// shopguard's encrypted values. Values are opaque strings; the substrate never
// sees plaintext.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when no value is stored under a key.
	ErrNotFound = errors.New("key not found")
	// ErrInvalidKey is returned when a namespace or key is empty.
	ErrInvalidKey = errors.New("namespace and key must be non-empty")
)

// Substrate is a string-keyed store of opaque string values, partitioned by
// namespace. Each logical client (browser tab, CLI profile, test) owns one
// namespace, so two clients never share a session slot.
//
// Implementations must be safe for concurrent use.
type Substrate interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, namespace, key string) (string, error)
	// Set creates or replaces the value stored under key.
	Set(ctx context.Context, namespace, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error
	// Clear removes every key in namespace.
	Clear(ctx context.Context, namespace string) error
	// Keys lists the keys in namespace in no particular order.
	Keys(ctx context.Context, namespace string) ([]string, error)
}

// CheckKey validates a namespace/key pair before it reaches a backend.
func CheckKey(namespace, key string) error {
	if namespace == "" || key == "" {
		return ErrInvalidKey
	}
	return nil
}
