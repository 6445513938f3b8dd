// Package storagetest provides a conformance suite shared by every
// storage.Substrate backend.
package storagetest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/meatandeat/shopguard/storage"
)

// Run exercises sub against the storage.Substrate contract. Backends call it
// from their own tests; sub should start empty.
func Run(t *testing.T, sub storage.Substrate) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetGet", func(t *testing.T) {
		if err := sub.Set(ctx, "ns1", "session", "cipher-1"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := sub.Get(ctx, "ns1", "session")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != "cipher-1" {
			t.Fatalf("got %q, want %q", got, "cipher-1")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := sub.Set(ctx, "ns1", "user", "v1"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := sub.Set(ctx, "ns1", "user", "v2"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := sub.Get(ctx, "ns1", "user")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != "v2" {
			t.Fatalf("got %q, want %q", got, "v2")
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := sub.Get(ctx, "ns1", "no-such-key")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		_, err = sub.Get(ctx, "no-such-namespace", "session")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for missing namespace, got %v", err)
		}
	})

	t.Run("NamespaceIsolation", func(t *testing.T) {
		if err := sub.Set(ctx, "ns2", "session", "cipher-2"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := sub.Get(ctx, "ns1", "session")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != "cipher-1" {
			t.Fatalf("ns1 value changed to %q", got)
		}
	})

	t.Run("Keys", func(t *testing.T) {
		keys, err := sub.Keys(ctx, "ns1")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		sort.Strings(keys)
		if len(keys) != 2 || keys[0] != "session" || keys[1] != "user" {
			t.Fatalf("unexpected keys: %v", keys)
		}
		keys, err = sub.Keys(ctx, "empty-namespace")
		if err != nil {
			t.Fatalf("Keys on empty namespace failed: %v", err)
		}
		if len(keys) != 0 {
			t.Fatalf("expected no keys, got %v", keys)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := sub.Delete(ctx, "ns1", "user"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := sub.Get(ctx, "ns1", "user"); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		if err := sub.Delete(ctx, "ns1", "never-existed"); err != nil {
			t.Fatalf("Delete of missing key should succeed, got %v", err)
		}
		if err := sub.Delete(ctx, "never-existed", "key"); err != nil {
			t.Fatalf("Delete in missing namespace should succeed, got %v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := sub.Clear(ctx, "ns1"); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		keys, err := sub.Keys(ctx, "ns1")
		if err != nil {
			t.Fatalf("Keys failed: %v", err)
		}
		if len(keys) != 0 {
			t.Fatalf("expected empty namespace after Clear, got %v", keys)
		}
		if _, err := sub.Get(ctx, "ns2", "session"); err != nil {
			t.Fatalf("Clear must not touch other namespaces: %v", err)
		}
		if err := sub.Clear(ctx, "never-existed"); err != nil {
			t.Fatalf("Clear of missing namespace should succeed, got %v", err)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		if err := sub.Set(ctx, "", "key", "v"); !errors.Is(err, storage.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for empty namespace, got %v", err)
		}
		if err := sub.Set(ctx, "ns1", "", "v"); !errors.Is(err, storage.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for empty key, got %v", err)
		}
	})
}
