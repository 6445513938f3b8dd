// Package api is the HTTP surface of the security layer. Each browser is a
// client identified by an opaque cookie; its sessions, audit trail, alerts
// and settings live in the guard namespace named by that cookie.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/meatandeat/shopguard/csrf"
	"github.com/meatandeat/shopguard/guard"
	"github.com/meatandeat/shopguard/ratelimit"
)

const (
	// DefaultRegisterMax registrations are allowed per IP per
	// DefaultRegisterWindow.
	DefaultRegisterMax    = 5
	DefaultRegisterWindow = time.Hour
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	guard          *guard.Guard
	logger         *slog.Logger
	trustedProxies []netip.Prefix
	registerLimit  *ratelimit.Limiter
	now            func() time.Time
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for request-level events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithTrustedProxies sets the CIDR ranges whose forwarding headers are
// honored when resolving the client IP.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) { a.trustedProxies = prefixes }
}

// WithRegisterLimit sets the per-IP registration limit. It panics on
// non-positive arguments.
func WithRegisterLimit(max int, window time.Duration) Option {
	return func(a *API) {
		a.registerLimit = ratelimit.New(max, window, ratelimit.WithClock(func() time.Time { return a.now() }))
	}
}

// WithClock replaces time.Now for cookie expiry and the registration limiter.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates a new API instance over g.
func New(g *guard.Guard, opts ...Option) *API {
	a := &API{
		guard:  g,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.registerLimit == nil {
		a.registerLimit = ratelimit.New(DefaultRegisterMax, DefaultRegisterWindow,
			ratelimit.WithClock(func() time.Time { return a.now() }))
	}
	a.logger = a.logger.With("component", "api")
	return a
}

// Router returns a chi.Router with all API routes mounted. It is meant to be
// mounted at /api/v1.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Group(func(r chi.Router) {
		r.Use(SecurityHeaders)
		r.Use(a.ClientMiddleware)
		r.Use(csrf.Protect(csrf.Config{
			SessionCookie: ClientCookieName,
			OnFailure:     a.csrfRejected,
		}))

		r.Get("/csrf", a.IssueCSRF)
		r.Post("/validate", a.Validate)

		r.Post("/auth/register", a.Register)
		r.Post("/auth/login", a.Login)
		r.Post("/auth/logout", a.Logout)
		r.Get("/session", a.Session)

		r.Get("/security/status", a.SecurityStatus)
		r.Get("/security/privacy", a.GetPrivacy)
		r.Put("/security/privacy", a.UpdatePrivacy)
		r.Get("/security/level", a.GetSecurityLevel)
		r.Put("/security/level", a.SetSecurityLevel)

		r.Group(func(r chi.Router) {
			r.Use(a.AuthMiddleware)
			r.Get("/security/2fa", a.TwoFactorStatus)
			r.Post("/security/2fa/setup", a.SetupTwoFactor)
			r.Post("/security/2fa/enable", a.EnableTwoFactor)
			r.Post("/security/2fa/disable", a.DisableTwoFactor)
			r.Get("/audit", a.ListAudit)
			r.Get("/permissions/{action}", a.CheckPermission)
		})

		r.Get("/alerts", a.ListAlerts)
		r.Delete("/alerts", a.ClearAlerts)
		r.Post("/alerts/{alertID}/read", a.MarkAlertRead)
	})

	return r
}
