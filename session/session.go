// Package session manages the single login session slot of one client
// namespace. Sessions use sliding expiry: every successful validation moves
// the deadline forward by the timeout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meatandeat/shopguard/internal/util"
	"github.com/meatandeat/shopguard/securestore"
)

const (
	// DefaultTimeout is the idle period after which a session expires.
	DefaultTimeout = 24 * time.Hour
	// DefaultKey is the store key holding the session record.
	DefaultKey = "session"

	tokenBytes = 32
)

// DefaultSensitiveKeys are removed alongside the session on Logout.
var DefaultSensitiveKeys = []string{"user", "cart"}

// Record is the persisted session.
type Record struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `json:"ip_address,omitempty"`
}

// ExpiresAt is the instant after which the record is no longer valid.
func (r Record) ExpiresAt(timeout time.Duration) time.Time {
	return r.LastActivity.Add(timeout)
}

// Manager owns the session slot of one keyed store. All operations are
// serialized on its lock.
type Manager struct {
	mu        sync.Locker
	store     *securestore.Store
	timeout   time.Duration
	key       string
	sensitive []string
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the idle timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithKey sets the store key holding the record.
func WithKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithSensitiveKeys replaces the keys removed together with the session on
// Logout.
func WithSensitiveKeys(keys ...string) Option {
	return func(m *Manager) {
		m.sensitive = append([]string(nil), keys...)
	}
}

// WithLock shares l between Managers over the same namespace.
func WithLock(l sync.Locker) Option {
	return func(m *Manager) {
		if l != nil {
			m.mu = l
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a Manager persisting its record in store.
func NewManager(store *securestore.Store, opts ...Option) *Manager {
	m := &Manager{
		mu:        &sync.Mutex{},
		store:     store,
		timeout:   DefaultTimeout,
		key:       DefaultKey,
		sensitive: DefaultSensitiveKeys,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session", "namespace", store.Namespace())
	return m
}

// Timeout returns the configured idle timeout.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Create starts a session for userID, replacing any existing one, and
// returns the new session id.
func (m *Manager) Create(ctx context.Context, userID, userAgent string) (string, error) {
	return m.CreateWithAddress(ctx, userID, userAgent, "")
}

// CreateWithAddress is Create with the client's network address recorded.
func (m *Manager) CreateWithAddress(ctx context.Context, userID, userAgent, ipAddress string) (string, error) {
	id, err := util.RandomHex(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := Record{
		ID:           id,
		UserID:       userID,
		CreatedAt:    now,
		LastActivity: now,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
	}
	if err := m.store.Set(ctx, m.key, rec); err != nil {
		return "", fmt.Errorf("persisting session: %w", err)
	}
	m.logger.Debug("session created", "user_id", userID)
	return id, nil
}

// IsValid reports whether a live session exists, refreshing its last
// activity when it does. An expired record is deleted.
func (m *Manager) IsValid(ctx context.Context) bool {
	_, ok := m.Current(ctx)
	return ok
}

// Current is IsValid returning the refreshed record.
func (m *Manager) Current(ctx context.Context) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rec Record
	if !m.store.Get(ctx, m.key, &rec) {
		return Record{}, false
	}

	now := m.now()
	if now.Sub(rec.LastActivity) > m.timeout {
		if err := m.store.Remove(ctx, m.key); err != nil {
			m.logger.Warn("removing expired session", "error", err)
		}
		m.logger.Debug("session expired", "user_id", rec.UserID)
		return Record{}, false
	}

	rec.LastActivity = now
	if err := m.store.Set(ctx, m.key, rec); err != nil {
		m.logger.Warn("refreshing session", "error", err)
	}
	return rec, true
}

// Peek returns the stored record without validating or refreshing it.
func (m *Manager) Peek(ctx context.Context) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return securestore.Load[Record](ctx, m.store, m.key)
}

// Logout removes the session record and the sensitive keys stored beside it.
// Every key is attempted; the joined errors are returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, key := range append([]string{m.key}, m.sensitive...) {
		if err := m.store.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
