package api

import (
	"errors"
	"net/http"

	"github.com/meatandeat/shopguard/csrf"
	"github.com/meatandeat/shopguard/guard"
	"github.com/meatandeat/shopguard/ratelimit"
	"github.com/meatandeat/shopguard/validate"
)

// IssueCSRF handles GET /csrf. It rotates the double-submit cookie and
// returns the token for the page to echo in the header.
func (a *API) IssueCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := csrf.SetCookie(w, r, csrf.DefaultCookieName)
	if err != nil {
		writeInternalError(w, a.logger, "issuing csrf token", err)
		return
	}
	writeJSON(w, http.StatusOK, CSRFResponse{Token: token, Header: csrf.DefaultHeaderName})
}

// Register handles POST /auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	ip := a.clientIP(r)
	if !a.registerLimit.Allow(ip) {
		writeRateLimited(w, a.registerLimit.RetryAfter(ip), "too many requests; try again later")
		return
	}

	req, ok := decodeJSON[RegisterRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.ConfirmPassword != "" {
		if f := validate.ConfirmPasswordField(req.Password, req.ConfirmPassword); !f.Valid {
			writeError(w, http.StatusBadRequest, f.Message)
			return
		}
	}
	if f := validate.NameField(req.Name); !f.Valid {
		writeError(w, http.StatusBadRequest, f.Message)
		return
	}

	c := clientFromContext(r.Context())
	profile, err := c.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}

	ip := a.clientIP(r)
	c := clientFromContext(r.Context())
	res, err := c.Login(r.Context(), guard.Credentials{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		OTP:        req.OTP,
		UserAgent:  r.UserAgent(),
		Host:       ip,
		IPAddress:  ip,
	})
	if errors.Is(err, guard.ErrRateLimited) {
		retry := a.guard.Limiter().RetryAfter(ratelimit.Fingerprint(r.UserAgent(), ip))
		writeRateLimited(w, retry, err.Error())
		return
	}
	if err != nil {
		mapError(w, err)
		return
	}

	// A fresh token per session.
	if _, err := csrf.SetCookie(w, r, csrf.DefaultCookieName); err != nil {
		a.logger.Warn("rotating csrf token", "error", err)
	}

	resp := LoginResponse{User: res.User}
	if rec, ok := c.Sessions.Peek(r.Context()); ok {
		resp.ExpiresAt = rec.ExpiresAt(c.Sessions.Timeout())
	}
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /auth/logout. Every cookie the request carried is
// expired, including the client cookie, so the browser starts afresh.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if clientIsNew(r.Context()) {
		expireAllCookies(w, r)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	c := clientFromContext(r.Context())
	if err := c.Logout(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	expireAllCookies(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /session, the page-load check that restores a live
// session or clears a stale one.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	if clientIsNew(r.Context()) {
		writeJSON(w, http.StatusOK, SessionResponse{})
		return
	}
	c := clientFromContext(r.Context())
	user, ok := c.Restore(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, SessionResponse{})
		return
	}
	resp := SessionResponse{
		Authenticated: true,
		User:          &user,
		Permissions:   user.Role.Permissions(),
	}
	if rec, ok := c.Sessions.Peek(r.Context()); ok {
		exp := rec.ExpiresAt(c.Sessions.Timeout())
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}
