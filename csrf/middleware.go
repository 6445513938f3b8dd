package csrf

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultCookieName = "shopguard_csrf"
	DefaultHeaderName = "X-CSRF-Token"
	DefaultFormField  = "_csrf"
)

// Config configures Protect. Zero fields take the defaults above.
type Config struct {
	CookieName string
	HeaderName string
	FormField  string
	// SessionCookie names the cookie that marks a request as
	// cookie-authenticated. Requests without it are exempt.
	SessionCookie string
	// OnFailure writes the rejection. Defaults to a JSON 403.
	OnFailure func(w http.ResponseWriter, r *http.Request, reason string)
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if c.HeaderName == "" {
		c.HeaderName = DefaultHeaderName
	}
	if c.FormField == "" {
		c.FormField = DefaultFormField
	}
	if c.OnFailure == nil {
		c.OnFailure = writeForbidden
	}
	return c
}

// Protect enforces double-submit cookie protection for mutating requests
// that carry the session cookie. Safe methods (GET, HEAD, OPTIONS) and
// requests without a session cookie pass through: a cross-origin page can
// neither read the CSRF cookie nor set a custom header.
func Protect(cfg Config) func(http.Handler) http.Handler {
	cfg = cfg.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.SessionCookie != "" {
				if _, err := r.Cookie(cfg.SessionCookie); err != nil {
					next.ServeHTTP(w, r)
					return
				}
			}

			cookie, err := r.Cookie(cfg.CookieName)
			if err != nil || cookie.Value == "" {
				cfg.OnFailure(w, r, "missing CSRF token")
				return
			}
			submitted := r.Header.Get(cfg.HeaderName)
			if submitted == "" && isForm(r) {
				submitted = r.PostFormValue(cfg.FormField)
			}
			if !Validate(submitted, cookie.Value) {
				cfg.OnFailure(w, r, "invalid CSRF token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(ct, "multipart/form-data")
}

func writeForbidden(w http.ResponseWriter, _ *http.Request, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}

// SetCookie issues a token and sets it as the double-submit cookie. The
// cookie is readable by scripts so the page can echo it in the header.
func SetCookie(w http.ResponseWriter, r *http.Request, name string) (string, error) {
	if name == "" {
		name = DefaultCookieName
	}
	token, err := Issue()
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   RequestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

// ClearCookie expires the double-submit cookie.
func ClearCookie(w http.ResponseWriter, r *http.Request, name string) {
	if name == "" {
		name = DefaultCookieName
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: false,
		Secure:   RequestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// RequestIsSecure reports whether r arrived over TLS, directly or through a
// proxy that says so.
func RequestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
