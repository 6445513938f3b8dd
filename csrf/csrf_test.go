package csrf

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue(t *testing.T) {
	a, err := Issue()
	require.NoError(t, err)
	b, err := Issue()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestValidate(t *testing.T) {
	tok, err := Issue()
	require.NoError(t, err)
	assert.True(t, Validate(tok, tok))
	other, err := Issue()
	require.NoError(t, err)
	assert.False(t, Validate(other, tok), "different token")
	assert.False(t, Validate("", ""), "empty stored token")
	assert.False(t, Validate(tok, ""))
	assert.False(t, Validate("", tok))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestProtect(t *testing.T) {
	h := Protect(Config{SessionCookie: "shopguard_session"})(okHandler())
	const token = "abc123"

	serve := func(r *http.Request) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}
	withCookies := func(r *http.Request, csrfTok string) *http.Request {
		r.AddCookie(&http.Cookie{Name: "shopguard_session", Value: "s"})
		if csrfTok != "" {
			r.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: csrfTok})
		}
		return r
	}

	t.Run("safe method exempt", func(t *testing.T) {
		r := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), "")
		assert.Equal(t, http.StatusNoContent, serve(r))
	})

	t.Run("no session cookie exempt", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		assert.Equal(t, http.StatusNoContent, serve(r))
	})

	t.Run("missing token", func(t *testing.T) {
		r := withCookies(httptest.NewRequest(http.MethodPost, "/", nil), "")
		assert.Equal(t, http.StatusForbidden, serve(r))
	})

	t.Run("header mismatch", func(t *testing.T) {
		r := withCookies(httptest.NewRequest(http.MethodPost, "/", nil), token)
		r.Header.Set(DefaultHeaderName, "other")
		assert.Equal(t, http.StatusForbidden, serve(r))
	})

	t.Run("header match", func(t *testing.T) {
		r := withCookies(httptest.NewRequest(http.MethodDelete, "/", nil), token)
		r.Header.Set(DefaultHeaderName, token)
		assert.Equal(t, http.StatusNoContent, serve(r))
	})

	t.Run("form field match", func(t *testing.T) {
		body := url.Values{DefaultFormField: {token}}.Encode()
		r := withCookies(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), token)
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		assert.Equal(t, http.StatusNoContent, serve(r))
	})
}

func TestProtectCustomFailure(t *testing.T) {
	var reason string
	h := Protect(Config{OnFailure: func(w http.ResponseWriter, _ *http.Request, msg string) {
		reason = msg
		w.WriteHeader(http.StatusTeapot)
	}})(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "missing CSRF token", reason)
}

func TestCookies(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()

	tok, err := SetCookie(rec, r, "")
	require.NoError(t, err)
	ClearCookie(rec, r, "")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, DefaultCookieName, cookies[0].Name)
	assert.Equal(t, tok, cookies[0].Value)
	assert.True(t, cookies[0].Secure)
	assert.False(t, cookies[0].HttpOnly)
	assert.Equal(t, -1, cookies[1].MaxAge)
}

func TestRequestIsSecure(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, RequestIsSecure(r))
	r.Header.Set("X-Forwarded-Proto", "HTTPS")
	assert.True(t, RequestIsSecure(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Forwarded", "for=192.0.2.60;proto=https")
	assert.True(t, RequestIsSecure(r))
}
