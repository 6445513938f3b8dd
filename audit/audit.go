// Package audit records security events for one client namespace. Entries are
// kept in the keyed store as a bounded list, newest last, and mirrored to a
// structured logger.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meatandeat/shopguard/securestore"
)

const (
	// DefaultKey is the store key holding the entry list.
	DefaultKey = "securityLogs"
	// DefaultRetention is the number of entries kept.
	DefaultRetention = 100
)

// Details carries event-specific data. Sensitive fields are masked before
// an entry is stored or logged.
type Details map[string]any

// Entry is one recorded event.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     Event     `json:"event"`
	Details   Details   `json:"details"`
	UserAgent string    `json:"userAgent"`
	URL       string    `json:"url"`
}

// Observer is notified after every Log call.
type Observer func(ctx context.Context, e Entry)

// Logger appends entries to a keyed store.
type Logger struct {
	mu        sync.Locker
	store     *securestore.Store
	key       string
	retention int
	now       func() time.Time
	logger    *slog.Logger
	observers []Observer
}

// Option configures a Logger.
type Option func(*Logger)

// WithRetention sets how many entries are kept. Non-positive values are
// ignored.
func WithRetention(n int) Option {
	return func(l *Logger) {
		if n > 0 {
			l.retention = n
		}
	}
}

// WithKey sets the store key holding the entry list.
func WithKey(key string) Option {
	return func(l *Logger) {
		if key != "" {
			l.key = key
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the structured logger entries are mirrored to.
func WithLogger(sl *slog.Logger) Option {
	return func(l *Logger) {
		if sl != nil {
			l.logger = sl
		}
	}
}

// WithLock shares l between Loggers over the same namespace.
func WithLock(lk sync.Locker) Option {
	return func(l *Logger) {
		if lk != nil {
			l.mu = lk
		}
	}
}

// WithObserver registers fn to be called after each entry is recorded.
func WithObserver(fn Observer) Option {
	return func(l *Logger) {
		if fn != nil {
			l.observers = append(l.observers, fn)
		}
	}
}

// NewLogger returns a Logger persisting entries in store.
func NewLogger(store *securestore.Store, opts ...Option) *Logger {
	l := &Logger{
		mu:        &sync.Mutex{},
		store:     store,
		key:       DefaultKey,
		retention: DefaultRetention,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "audit")
	return l
}

// Log records event. It never fails: storage errors are logged and the
// entry is dropped from the persisted list.
func (l *Logger) Log(ctx context.Context, event Event, details Details) {
	client := ClientFrom(ctx)
	e := Entry{
		Timestamp: l.now().UTC(),
		Event:     event,
		Details:   Mask(details),
		UserAgent: client.UserAgent,
		URL:       client.URL,
	}

	l.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("event", string(e.Event)),
		slog.String("namespace", l.store.Namespace()),
		slog.String("timestamp", e.Timestamp.Format(time.RFC3339)),
		slog.String("user_agent", e.UserAgent),
		slog.String("url", e.URL),
		slog.Any("details", map[string]any(e.Details)),
	)

	l.append(ctx, e)

	for _, fn := range l.observers {
		fn(ctx, e)
	}
}

func (l *Logger) append(ctx context.Context, e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []Entry
	l.store.Get(ctx, l.key, &entries)
	entries = append(entries, e)
	if n := len(entries) - l.retention; n > 0 {
		entries = entries[n:]
	}
	if err := l.store.Set(ctx, l.key, entries); err != nil {
		l.logger.Warn("persisting audit entry", "event", string(e.Event), "error", err)
	}
}

// Entries returns the retained entries, oldest first.
func (l *Logger) Entries(ctx context.Context) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var entries []Entry
	if !l.store.Get(ctx, l.key, &entries) {
		return []Entry{}
	}
	return entries
}

// Clear discards every retained entry.
func (l *Logger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.Remove(ctx, l.key)
}
