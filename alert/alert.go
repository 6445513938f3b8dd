// Package alert keeps the security alerts shown to a shopper and detects
// bursts of suspicious audit events.
package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meatandeat/shopguard/internal/uuid"
	"github.com/meatandeat/shopguard/securestore"
)

// DefaultKey is the store key holding the alert list.
const DefaultKey = "securityAlerts"

// ErrNotFound is returned by MarkRead for an unknown alert id.
var ErrNotFound = errors.New("alert not found")

// Type is the severity of an alert.
type Type string

const (
	Info    Type = "info"
	Warning Type = "warning"
	Error   Type = "error"
)

// Valid reports whether t is a known severity.
func (t Type) Valid() bool {
	switch t {
	case Info, Warning, Error:
		return true
	}
	return false
}

// Alert is one security notice.
type Alert struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      Type      `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
}

// Center stores the alerts of one namespace. Every operation reads the list
// from the store, so two Centers over the same namespace see the same alerts.
type Center struct {
	mu    sync.Locker
	store *securestore.Store
	key   string
	now   func() time.Time
}

// CenterOption configures a Center.
type CenterOption func(*Center)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CenterOption {
	return func(c *Center) {
		if now != nil {
			c.now = now
		}
	}
}

// WithKey sets the store key holding the alert list.
func WithKey(key string) CenterOption {
	return func(c *Center) {
		if key != "" {
			c.key = key
		}
	}
}

// WithLock shares l between Centers over the same namespace.
func WithLock(l sync.Locker) CenterOption {
	return func(c *Center) {
		if l != nil {
			c.mu = l
		}
	}
}

func NewCenter(store *securestore.Store, opts ...CenterOption) *Center {
	c := &Center{mu: &sync.Mutex{}, store: store, key: DefaultKey, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Center) load(ctx context.Context) []Alert {
	var alerts []Alert
	if !c.store.Get(ctx, c.key, &alerts) || alerts == nil {
		return []Alert{}
	}
	return alerts
}

// Add appends an unread alert. An unknown type is stored as Info.
func (c *Center) Add(ctx context.Context, typ Type, message string) (Alert, error) {
	if !typ.Valid() {
		typ = Info
	}
	a := Alert{
		ID:        uuid.New(),
		Timestamp: c.now().UTC(),
		Type:      typ,
		Message:   message,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	alerts := append(c.load(ctx), a)
	if err := c.store.Set(ctx, c.key, alerts); err != nil {
		return Alert{}, fmt.Errorf("saving alert: %w", err)
	}
	return a, nil
}

// List returns every alert, oldest first.
func (c *Center) List(ctx context.Context) []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// Unread counts alerts not yet marked read.
func (c *Center) Unread(ctx context.Context) int {
	n := 0
	for _, a := range c.List(ctx) {
		if !a.Read {
			n++
		}
	}
	return n
}

// MarkRead flags the alert with id as read.
func (c *Center) MarkRead(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	alerts := c.load(ctx)
	for i := range alerts {
		if alerts[i].ID == id {
			if alerts[i].Read {
				return nil
			}
			alerts[i].Read = true
			return c.store.Set(ctx, c.key, alerts)
		}
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

// Clear removes every alert.
func (c *Center) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Set(ctx, c.key, []Alert{})
}
