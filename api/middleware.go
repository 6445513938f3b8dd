package api

import (
	"context"
	"encoding/hex"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/meatandeat/shopguard/audit"
	"github.com/meatandeat/shopguard/csrf"
	"github.com/meatandeat/shopguard/guard"
	"github.com/meatandeat/shopguard/internal/util"
)

type contextKey int

const (
	clientKey contextKey = iota
	newClientKey
)

const (
	// ClientCookieName carries the opaque id of the browser's namespace.
	ClientCookieName = "shopguard_client"

	clientIDBytes   = 32
	clientCookieTTL = 30 * 24 * time.Hour
	namespacePrefix = "client-"
)

// ClientMiddleware resolves the request's guard client from the client
// cookie, issuing a new id when the cookie is missing or malformed, and
// attaches the caller's user agent and URL for the audit trail.
func (a *API) ClientMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := clientIDFromCookie(r)
		if !ok {
			var err error
			id, err = util.RandomHex(clientIDBytes)
			if err != nil {
				a.logger.Error("generating client id", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			a.setSecureCookie(w, r, ClientCookieName, id, clientCookieTTL)
		}

		ctx := context.WithValue(r.Context(), clientKey, a.guard.Client(namespacePrefix+id))
		ctx = context.WithValue(ctx, newClientKey, !ok)
		ctx = audit.WithClient(ctx, audit.Client{
			UserAgent: r.UserAgent(),
			URL:       requestURL(r),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIDFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(ClientCookieName)
	if err != nil || len(cookie.Value) != clientIDBytes*2 {
		return "", false
	}
	if _, err := hex.DecodeString(cookie.Value); err != nil {
		return "", false
	}
	return cookie.Value, true
}

// AuthMiddleware rejects requests whose client has no valid session.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := clientFromContext(r.Context())
		if c == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if _, ok := c.CurrentUser(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientFromContext(ctx context.Context) *guard.Client {
	c, _ := ctx.Value(clientKey).(*guard.Client)
	return c
}

// clientIsNew reports whether the client id was issued on this request, so
// its namespace cannot hold any state yet.
func clientIsNew(ctx context.Context) bool {
	isNew, _ := ctx.Value(newClientKey).(bool)
	return isNew
}

func (a *API) csrfRejected(w http.ResponseWriter, r *http.Request, reason string) {
	if c := clientFromContext(r.Context()); c != nil {
		c.Audit.Log(r.Context(), audit.CSRFRejected, audit.Details{
			"method": r.Method,
			"path":   r.URL.Path,
			"reason": reason,
		})
	}
	writeError(w, http.StatusForbidden, reason)
}

// setSecureCookie writes an HttpOnly, SameSite=Strict cookie that expires
// after ttl.
func (a *API) setSecureCookie(w http.ResponseWriter, r *http.Request, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   csrf.RequestIsSecure(r),
		SameSite: http.SameSiteStrictMode,
		Expires:  a.now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
	})
}

// expireAllCookies expires every cookie the request carried.
func expireAllCookies(w http.ResponseWriter, r *http.Request) {
	secure := csrf.RequestIsSecure(r)
	seen := make(map[string]bool)
	for _, c := range r.Cookies() {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		http.SetCookie(w, &http.Cookie{
			Name:     c.Name,
			Value:    "",
			Path:     "/",
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
		})
	}
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if csrf.RequestIsSecure(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func retryAfterString(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// writeRateLimited sends a 429 Too Many Requests response.
func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration, msg string) {
	w.Header().Set("Retry-After", retryAfterString(retryAfter))
	writeError(w, http.StatusTooManyRequests, msg)
}

// clientIP returns the client IP using the API's trusted proxies.
func (a *API) clientIP(r *http.Request) string {
	return extractClientIPWithProxies(r, a.trustedProxies)
}

// extractClientIPWithProxies returns the best-effort client IP address.
//
// Proxy headers (X-Forwarded-For, Forwarded, X-Real-IP) are only honored
// if the request's RemoteAddr falls within one of trustedProxies. With no
// trusted proxies RemoteAddr is always returned.
func extractClientIPWithProxies(r *http.Request, trustedProxies []netip.Prefix) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := false
	if len(trustedProxies) > 0 && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}

		if fwd := strings.TrimSpace(r.Header.Get("Forwarded")); fwd != "" {
			for _, elem := range strings.Split(fwd, ",") {
				for _, param := range strings.Split(elem, ";") {
					param = strings.TrimSpace(param)
					if !strings.HasPrefix(strings.ToLower(param), "for=") {
						continue
					}
					if ip, ok := parseIPCandidate(param[4:]); ok {
						return ip
					}
				}
			}
		}

		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	return remoteIP
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	if s == "" {
		return "", false
	}

	// RFC 7239 quoted IPv6 may appear as [::1]:1234.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String(), true
	}
	return "", false
}
