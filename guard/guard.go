// Package guard is the security context of the storefront. A Guard owns the
// state shared by every client (login rate limiter, account directory, spike
// monitor, metrics); a Client scopes sessions, audit, alerts and settings to
// one namespace of the keyed store.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meatandeat/shopguard/account"
	"github.com/meatandeat/shopguard/alert"
	"github.com/meatandeat/shopguard/audit"
	"github.com/meatandeat/shopguard/internal/telemetry"
	"github.com/meatandeat/shopguard/ratelimit"
	"github.com/meatandeat/shopguard/securestore"
	"github.com/meatandeat/shopguard/session"
	"github.com/meatandeat/shopguard/totp"
)

const (
	// AccountsNamespace holds the account directory.
	AccountsNamespace = "accounts"

	// DefaultLoginMax and DefaultLoginWindow are the login rate limit.
	DefaultLoginMax    = 5
	DefaultLoginWindow = 15 * time.Minute
	// DefaultIssuer labels two-factor secrets in authenticator apps.
	DefaultIssuer = "Meat & Eat"
)

// Guard is shared by all clients. Build one per process and pass it by
// reference.
type Guard struct {
	store    *securestore.Store
	limiter  *ratelimit.Limiter
	accounts *account.Directory
	monitor  *alert.Monitor
	totp     *totp.Generator
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	now      func() time.Time

	sessionTimeout time.Duration
	auditRetention int
	issuer         string
	hasher         *account.Hasher
	rules          []alert.Rule

	sessionLocks lockTable
	auditLocks   lockTable
	alertLocks   lockTable
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger shared by the guard and its clients.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithClock replaces time.Now for every component the guard builds.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithLoginLimit sets the login rate limit. It panics on non-positive
// arguments.
func WithLoginLimit(max int, window time.Duration) Option {
	return func(g *Guard) {
		g.limiter = ratelimit.New(max, window, ratelimit.WithClock(func() time.Time { return g.now() }))
	}
}

// WithSessionTimeout sets the idle timeout of every client session.
func WithSessionTimeout(d time.Duration) Option {
	return func(g *Guard) { g.sessionTimeout = d }
}

// WithAuditRetention sets how many audit entries each client keeps.
func WithAuditRetention(n int) Option {
	return func(g *Guard) { g.auditRetention = n }
}

// WithMetrics records login, audit and alert counters. Nil disables them.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithHasher sets the password hasher of the account directory.
func WithHasher(h *account.Hasher) Option {
	return func(g *Guard) { g.hasher = h }
}

// WithIssuer sets the issuer shown in authenticator apps.
func WithIssuer(issuer string) Option {
	return func(g *Guard) {
		if issuer != "" {
			g.issuer = issuer
		}
	}
}

// WithAlertRules replaces the spike monitor rules.
func WithAlertRules(rules ...alert.Rule) Option {
	return func(g *Guard) { g.rules = rules }
}

// New builds a Guard over store. The store's own namespace is not used;
// clients and the account directory get their own.
func New(store *securestore.Store, opts ...Option) *Guard {
	g := &Guard{
		store:          store,
		logger:         slog.New(slog.DiscardHandler),
		now:            time.Now,
		sessionTimeout: session.DefaultTimeout,
		auditRetention: audit.DefaultRetention,
		issuer:         DefaultIssuer,
		rules:          alert.DefaultRules,
	}
	for _, opt := range opts {
		opt(g)
	}
	clock := func() time.Time { return g.now() }
	if g.limiter == nil {
		g.limiter = ratelimit.New(DefaultLoginMax, DefaultLoginWindow, ratelimit.WithClock(clock))
	}
	g.accounts = account.NewDirectory(store.WithNamespace(AccountsNamespace),
		account.WithHasher(g.hasher), account.WithClock(clock))
	g.monitor = alert.NewMonitor(g.onSpike, alert.WithRules(g.rules...), alert.WithMonitorClock(clock))
	g.totp = totp.NewGenerator(totp.WithClock(clock))
	g.logger = g.logger.With("component", "guard")
	return g
}

// Accounts returns the shared account directory.
func (g *Guard) Accounts() *account.Directory { return g.accounts }

// Limiter returns the shared login rate limiter.
func (g *Guard) Limiter() *ratelimit.Limiter { return g.limiter }

// Client returns the security context of namespace. Clients are built per
// call and hold no state of their own: everything lives in the store, and
// Clients over the same namespace share the guard's locks for it.
func (g *Guard) Client(namespace string) *Client {
	store := g.store.WithNamespace(namespace)
	clock := func() time.Time { return g.now() }
	c := &Client{
		guard:     g,
		namespace: namespace,
		store:     store,
		logger:    g.logger.With("namespace", namespace),
	}
	c.Sessions = session.NewManager(store,
		session.WithTimeout(g.sessionTimeout),
		session.WithClock(clock),
		session.WithLock(g.sessionLocks.get(namespace)),
		session.WithLogger(g.logger),
	)
	c.Alerts = alert.NewCenter(store,
		alert.WithClock(clock),
		alert.WithLock(g.alertLocks.get(namespace)),
	)
	c.Audit = audit.NewLogger(store,
		audit.WithRetention(g.auditRetention),
		audit.WithClock(clock),
		audit.WithLock(g.auditLocks.get(namespace)),
		audit.WithLogger(g.logger),
		audit.WithObserver(func(ctx context.Context, e audit.Entry) {
			g.metrics.AuditEvent(ctx, string(e.Event))
		}),
		audit.WithObserver(g.monitor.Observer(namespace)),
	)
	return c
}

func (g *Guard) onSpike(ctx context.Context, s alert.Spike) {
	msg := s.Rule.Message
	if msg == "" {
		msg = fmt.Sprintf("%d %s events within %s", s.Count, s.Rule.Event, s.Rule.Window)
	}
	if _, err := g.Client(s.Scope).AddAlert(ctx, s.Rule.Type, msg); err != nil {
		g.logger.Warn("raising spike alert", "namespace", s.Scope, "error", err)
	}
}
