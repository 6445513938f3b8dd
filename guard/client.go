package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meatandeat/shopguard/account"
	"github.com/meatandeat/shopguard/alert"
	"github.com/meatandeat/shopguard/audit"
	"github.com/meatandeat/shopguard/ratelimit"
	"github.com/meatandeat/shopguard/sanitize"
	"github.com/meatandeat/shopguard/securestore"
	"github.com/meatandeat/shopguard/session"
	"github.com/meatandeat/shopguard/validate"
)

// Store keys used by a Client besides those of its components.
const (
	UserKey             = "user"
	PrivacyKey          = "privacySettings"
	SecurityLevelKey    = "securityLevel"
	TwoFactorEnabledKey = "twoFactorEnabled"
	PendingTwoFactorKey = "pendingTwoFactor"
)

// Client is the security context of one namespace.
type Client struct {
	guard     *Guard
	namespace string
	store     *securestore.Store
	logger    *slog.Logger

	Sessions *session.Manager
	Audit    *audit.Logger
	Alerts   *alert.Center
}

// Namespace returns the client's partition of the keyed store.
func (c *Client) Namespace() string { return c.namespace }

// Credentials are the inputs of Login. UserAgent and Host identify the
// client to the rate limiter; when UserAgent is empty the audit client in
// ctx supplies it.
type Credentials struct {
	Email      string
	Password   string
	RememberMe bool
	OTP        string
	UserAgent  string
	Host       string
	IPAddress  string
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User      account.Profile `json:"user"`
	SessionID string          `json:"sessionId"`
}

// Login authenticates cr and starts a session. Every failure is audited as
// LOGIN_FAILED with the sanitized email and the reason.
func (c *Client) Login(ctx context.Context, cr Credentials) (LoginResult, error) {
	res, err := c.login(ctx, cr)
	if err != nil {
		c.Audit.Log(ctx, audit.LoginFailed, audit.Details{
			"email": sanitize.String(cr.Email),
			"error": err.Error(),
		})
		c.guard.metrics.Login(ctx, failureReason(err))
		return LoginResult{}, err
	}
	c.guard.metrics.Login(ctx, "success")
	return res, nil
}

func (c *Client) login(ctx context.Context, cr Credentials) (LoginResult, error) {
	ua := cr.UserAgent
	if ua == "" {
		ua = audit.ClientFrom(ctx).UserAgent
	}
	if !c.guard.limiter.Allow(ratelimit.Fingerprint(ua, cr.Host)) {
		c.Audit.Log(ctx, audit.LoginRateLimited, audit.Details{"email": sanitize.String(cr.Email)})
		c.guard.metrics.RateLimited(ctx)
		return LoginResult{}, ErrRateLimited
	}

	email := sanitize.String(cr.Email)
	password := sanitize.String(cr.Password)
	if !validate.Email(email) {
		return LoginResult{}, ErrInvalidEmail
	}
	if !validate.Password(password) {
		return LoginResult{}, ErrInvalidPassword
	}

	accounts := c.guard.accounts
	if _, err := accounts.Verify(ctx, email, password); err != nil {
		return LoginResult{}, err
	}
	secret, err := accounts.TwoFactorSecret(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if secret != "" {
		if cr.OTP == "" {
			return LoginResult{}, ErrTwoFactorRequired
		}
		if !c.guard.totp.Verify(secret, cr.OTP) {
			return LoginResult{}, ErrInvalidOTP
		}
	}

	profile, err := accounts.RecordLogin(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	id, err := c.Sessions.CreateWithAddress(ctx, profile.ID, ua, cr.IPAddress)
	if err != nil {
		return LoginResult{}, err
	}
	if err := c.store.Set(ctx, UserKey, profile); err != nil {
		_ = c.Sessions.Logout(ctx)
		return LoginResult{}, err
	}
	if err := c.store.Set(ctx, TwoFactorEnabledKey, profile.TwoFactorEnabled); err != nil {
		c.logger.Warn("storing two-factor flag", "error", err)
	}

	c.Audit.Log(ctx, audit.LoginSuccess, audit.Details{
		"userId":         profile.ID,
		"email":          email,
		"rememberMe":     cr.RememberMe,
		"sessionTimeout": c.Sessions.Timeout().Milliseconds(),
	})
	return LoginResult{User: profile, SessionID: id}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrInvalidPassword):
		return "invalid_input"
	case errors.Is(err, account.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrTwoFactorRequired), errors.Is(err, ErrInvalidOTP):
		return "two_factor"
	default:
		return "error"
	}
}

// Register creates an account after validating and sanitizing the input.
func (c *Client) Register(ctx context.Context, email, password, name string) (account.Profile, error) {
	email = sanitize.String(email)
	name = sanitize.String(name)
	if !validate.Email(email) {
		return account.Profile{}, ErrInvalidEmail
	}
	if !validate.Password(password) {
		return account.Profile{}, ErrInvalidPassword
	}
	p, err := c.guard.accounts.Register(ctx, email, password, name, account.Customer)
	if err != nil {
		return account.Profile{}, err
	}
	c.Audit.Log(ctx, audit.Register, audit.Details{"userId": p.ID, "email": p.Email})
	return p, nil
}

// Logout ends the session and removes the stored profile and cart.
func (c *Client) Logout(ctx context.Context) error {
	user, _ := securestore.Load[account.Profile](ctx, c.store, UserKey)
	if err := c.Sessions.Logout(ctx); err != nil {
		c.Audit.Log(ctx, audit.LogoutError, audit.Details{"error": err.Error()})
		return err
	}
	c.Audit.Log(ctx, audit.Logout, audit.Details{"userId": user.ID})
	return nil
}

// Restore is the startup check. A valid session with a stored profile is
// kept and audited as SESSION_VALIDATED; a stale session or profile is
// cleared and audited as SESSION_EXPIRED. A namespace holding neither is left
// untouched.
func (c *Client) Restore(ctx context.Context) (account.Profile, bool) {
	_, hasSession := c.Sessions.Peek(ctx)
	_, hasUser := securestore.Load[account.Profile](ctx, c.store, UserKey)
	if !hasSession && !hasUser {
		return account.Profile{}, false
	}
	if c.Sessions.IsValid(ctx) {
		if user, ok := securestore.Load[account.Profile](ctx, c.store, UserKey); ok {
			c.Audit.Log(ctx, audit.SessionValidated, audit.Details{"userId": user.ID})
			return user, true
		}
	}
	for _, key := range []string{session.DefaultKey, UserKey} {
		if err := c.store.Remove(ctx, key); err != nil {
			c.logger.Warn("clearing stale session", "key", key, "error", err)
		}
	}
	c.Audit.Log(ctx, audit.SessionExpired, nil)
	return account.Profile{}, false
}

// CurrentUser returns the signed-in profile if the session is valid,
// refreshing the session. Nothing is audited.
func (c *Client) CurrentUser(ctx context.Context) (account.Profile, bool) {
	if !c.Sessions.IsValid(ctx) {
		return account.Profile{}, false
	}
	return securestore.Load[account.Profile](ctx, c.store, UserKey)
}

// HasPermission reports whether the signed-in user's role grants action.
func (c *Client) HasPermission(ctx context.Context, action string) bool {
	user, ok := c.CurrentUser(ctx)
	if !ok {
		return false
	}
	return user.Role.Can(action)
}

// Status summarizes the client's security state.
type Status struct {
	IsAuthenticated  bool          `json:"isAuthenticated"`
	SecurityLevel    SecurityLevel `json:"securityLevel"`
	TwoFactorEnabled bool          `json:"twoFactorEnabled"`
	SessionValid     bool          `json:"sessionValid"`
	UnreadAlerts     int           `json:"unreadAlerts"`
	LastLogin        *time.Time    `json:"lastLogin,omitempty"`
}

func (c *Client) Status(ctx context.Context) Status {
	st := Status{
		SecurityLevel:    c.SecurityLevel(ctx),
		TwoFactorEnabled: c.TwoFactorEnabled(ctx),
		SessionValid:     c.Sessions.IsValid(ctx),
		UnreadAlerts:     c.Alerts.Unread(ctx),
	}
	if user, ok := securestore.Load[account.Profile](ctx, c.store, UserKey); ok && st.SessionValid {
		st.IsAuthenticated = true
		if !user.LastLogin.IsZero() {
			last := user.LastLogin
			st.LastLogin = &last
		}
	}
	return st
}

// AddAlert raises an alert and audits it.
func (c *Client) AddAlert(ctx context.Context, typ alert.Type, message string) (alert.Alert, error) {
	a, err := c.Alerts.Add(ctx, typ, message)
	if err != nil {
		return alert.Alert{}, fmt.Errorf("adding alert: %w", err)
	}
	c.guard.metrics.Alert(ctx, string(a.Type))
	c.Audit.Log(ctx, audit.SecurityAlertCreated, audit.Details{
		"alert": map[string]any{
			"id":        a.ID,
			"timestamp": a.Timestamp.Format(time.RFC3339),
			"type":      string(a.Type),
			"message":   a.Message,
			"read":      a.Read,
		},
	})
	return a, nil
}
