package guard

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/crypto/bcrypt"

	"github.com/meatandeat/shopguard/account"
	"github.com/meatandeat/shopguard/alert"
	"github.com/meatandeat/shopguard/audit"
	"github.com/meatandeat/shopguard/codec"
	"github.com/meatandeat/shopguard/internal/telemetry"
	"github.com/meatandeat/shopguard/securestore"
	"github.com/meatandeat/shopguard/storage/memory"
	"github.com/meatandeat/shopguard/totp"
)

const (
	testEmail    = "shopper@example.com"
	testPassword = "Abc123!@"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestGuard(t *testing.T, opts ...Option) (*Guard, *fakeClock) {
	t.Helper()
	c, err := codec.New("test-secret")
	require.NoError(t, err)
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{
		WithClock(clock.Now),
		WithHasher(account.NewHasher(bcrypt.MinCost)),
	}, opts...)
	return New(securestore.New(memory.New(), c), opts...), clock
}

func events(ctx context.Context, c *Client) []audit.Event {
	var out []audit.Event
	for _, e := range c.Audit.Entries(ctx) {
		out = append(out, e.Event)
	}
	return out
}

func register(t *testing.T, c *Client) account.Profile {
	t.Helper()
	p, err := c.Register(context.Background(), testEmail, testPassword, "John Doe")
	require.NoError(t, err)
	return p
}

func TestClientsShareNamespaceState(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()
	assert.Equal(t, "tab-1", g.Client("tab-1").Namespace())

	register(t, g.Client("tab-1"))
	_, err := g.Client("tab-1").Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	user, ok := g.Client("tab-1").CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, testEmail, user.Email)
	_, ok = g.Client("tab-2").CurrentUser(ctx)
	assert.False(t, ok)
}

func TestClientsOverOneNamespaceSerialize(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Client("tab-1").Audit.Log(ctx, audit.SecurityLevelUpdated, nil)
		}()
	}
	wg.Wait()
	assert.Len(t, g.Client("tab-1").Audit.Entries(ctx), 40)
}

func TestAnonymousVisitorsLeaveNoState(t *testing.T) {
	sub := memory.New()
	c, err := codec.New("test-secret")
	require.NoError(t, err)
	g := New(securestore.New(sub, c), WithHasher(account.NewHasher(bcrypt.MinCost)))
	ctx := context.Background()

	for i := 0; i < 50000; i++ {
		client := g.Client(fmt.Sprintf("client-%064x", i))
		_, ok := client.Restore(ctx)
		require.False(t, ok)
		require.False(t, client.Status(ctx).IsAuthenticated)
	}

	names, err := sub.Namespaces()
	require.NoError(t, err)
	assert.Empty(t, names)
	assert.Zero(t, g.monitor.Tracked())
	assert.Zero(t, g.limiter.Tracked())
}

func TestLoginSuccess(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := audit.WithClient(context.Background(), audit.Client{UserAgent: "Mozilla/5.0", URL: "https://shop/login"})

	p := register(t, c)

	res, err := c.Login(ctx, Credentials{Email: "  " + testEmail, Password: testPassword, RememberMe: true})
	require.NoError(t, err)
	assert.Equal(t, p.ID, res.User.ID)
	assert.Len(t, res.SessionID, 64)

	rec, ok := c.Sessions.Current(ctx)
	require.True(t, ok)
	assert.Equal(t, p.ID, rec.UserID)
	assert.Equal(t, "Mozilla/5.0", rec.UserAgent)

	user, ok := c.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, testEmail, user.Email)

	assert.Equal(t, []audit.Event{audit.Register, audit.LoginSuccess}, events(ctx, c))
	last := c.Audit.Entries(ctx)[1]
	assert.Equal(t, true, last.Details["rememberMe"])
	assert.Equal(t, float64(24*time.Hour/time.Millisecond), last.Details["sessionTimeout"])
	assert.Equal(t, "https://shop/login", last.URL)

	st := c.Status(ctx)
	assert.True(t, st.IsAuthenticated)
	assert.True(t, st.SessionValid)
	assert.Equal(t, LevelStandard, st.SecurityLevel)
	require.NotNil(t, st.LastLogin)
}

func TestLoginValidationFailures(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()
	register(t, c)

	_, err := c.Login(ctx, Credentials{Email: "<b>not-an-email</b>", Password: testPassword, UserAgent: "ua-1"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = c.Login(ctx, Credentials{Email: testEmail, Password: "abc12345", UserAgent: "ua-2"})
	assert.ErrorIs(t, err, ErrInvalidPassword)

	_, err = c.Login(ctx, Credentials{Email: testEmail, Password: "Xyz789!@", UserAgent: "ua-3"})
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)

	_, err = c.Login(ctx, Credentials{Email: "nobody@example.com", Password: testPassword, UserAgent: "ua-4"})
	assert.ErrorIs(t, err, account.ErrInvalidCredentials)

	entries := c.Audit.Entries(ctx)
	require.GreaterOrEqual(t, len(entries), 5)
	failed := entries[1]
	assert.Equal(t, audit.LoginFailed, failed.Event)
	assert.Equal(t, "not-an-email", failed.Details["email"])
	assert.Equal(t, ErrInvalidEmail.Error(), failed.Details["error"])
	assert.False(t, c.Sessions.IsValid(ctx))
}

func TestLoginRateLimited(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()
	register(t, c)

	cr := Credentials{Email: testEmail, Password: "Wrong123!", UserAgent: "ua", Host: "shop.example.com"}
	for i := 0; i < DefaultLoginMax; i++ {
		_, err := c.Login(ctx, cr)
		require.ErrorIs(t, err, account.ErrInvalidCredentials, "attempt %d", i+1)
	}

	cr.Password = testPassword
	_, err := c.Login(ctx, cr)
	assert.ErrorIs(t, err, ErrRateLimited, "correct password still limited")

	evs := events(ctx, c)
	assert.Contains(t, evs, audit.LoginRateLimited)

	// Three failures raised a warning; the lockout raised an error.
	var types []alert.Type
	for _, a := range c.Alerts.List(ctx) {
		types = append(types, a.Type)
	}
	assert.Contains(t, types, alert.Warning)
	assert.Contains(t, types, alert.Error)
	assert.Contains(t, evs, audit.SecurityAlertCreated)

	// Another device is not affected.
	_, err = c.Login(ctx, Credentials{Email: testEmail, Password: testPassword, UserAgent: "other", Host: "shop.example.com"})
	assert.NoError(t, err)
}

func TestLoginRateLimitWindowExpires(t *testing.T) {
	g, clock := newTestGuard(t, WithLoginLimit(1, time.Minute))
	c := g.Client("tab-1")
	ctx := context.Background()
	register(t, c)

	cr := Credentials{Email: testEmail, Password: testPassword, UserAgent: "ua"}
	_, err := c.Login(ctx, cr)
	require.NoError(t, err)
	_, err = c.Login(ctx, cr)
	require.ErrorIs(t, err, ErrRateLimited)

	clock.Advance(time.Minute)
	_, err = c.Login(ctx, cr)
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()
	p := register(t, c)

	_, err := c.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))

	_, ok := c.CurrentUser(ctx)
	assert.False(t, ok)
	assert.False(t, c.Status(ctx).IsAuthenticated)

	entries := c.Audit.Entries(ctx)
	last := entries[len(entries)-1]
	assert.Equal(t, audit.Logout, last.Event)
	assert.Equal(t, p.ID, last.Details["userId"])
}

func TestRestore(t *testing.T) {
	g, clock := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()
	register(t, c)

	_, err := c.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	user, ok := c.Restore(ctx)
	require.True(t, ok)
	assert.Equal(t, testEmail, user.Email)
	evs := events(ctx, c)
	assert.Equal(t, audit.SessionValidated, evs[len(evs)-1])

	clock.Advance(24*time.Hour + time.Second)
	_, ok = c.Restore(ctx)
	assert.False(t, ok)
	evs = events(ctx, c)
	assert.Equal(t, audit.SessionExpired, evs[len(evs)-1])

	_, ok = securestore.Load[account.Profile](ctx, c.store, UserKey)
	assert.False(t, ok, "stale profile cleared")
}

func TestNamespacesAreIsolated(t *testing.T) {
	g, _ := newTestGuard(t)
	ctx := context.Background()
	a, b := g.Client("tab-1"), g.Client("tab-2")
	register(t, a)

	_, err := a.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	assert.True(t, a.Status(ctx).IsAuthenticated)
	assert.False(t, b.Status(ctx).IsAuthenticated)
	assert.Empty(t, b.Audit.Entries(ctx))

	// Accounts are shared: the second tab can sign in too.
	_, err = b.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	assert.True(t, b.Status(ctx).IsAuthenticated)
}

func TestTwoFactorFlow(t *testing.T) {
	g, clock := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()
	register(t, c)

	_, err := c.BeginTwoFactor(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = c.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)

	assert.ErrorIs(t, c.EnableTwoFactor(ctx, "123456"), ErrNoPendingTwoFactor)

	setup, err := c.BeginTwoFactor(ctx)
	require.NoError(t, err)
	assert.Contains(t, setup.OTPAuthURL, "secret="+setup.Secret)

	assert.ErrorIs(t, c.EnableTwoFactor(ctx, "000000x"), ErrInvalidOTP)

	code, err := totp.CodeAt(setup.Secret, clock.Now(), totp.DefaultPeriod)
	require.NoError(t, err)
	require.NoError(t, c.EnableTwoFactor(ctx, code))
	assert.True(t, c.TwoFactorEnabled(ctx))
	assert.True(t, c.Status(ctx).TwoFactorEnabled)

	_, err = c.BeginTwoFactor(ctx)
	assert.ErrorIs(t, err, ErrTwoFactorEnabled)

	require.NoError(t, c.Logout(ctx))

	_, err = c.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	assert.ErrorIs(t, err, ErrTwoFactorRequired)
	assert.False(t, c.Sessions.IsValid(ctx))

	clock.Advance(time.Minute)
	code, err = totp.CodeAt(setup.Secret, clock.Now(), totp.DefaultPeriod)
	require.NoError(t, err)
	res, err := c.Login(ctx, Credentials{Email: testEmail, Password: testPassword, OTP: code})
	require.NoError(t, err)
	assert.True(t, res.User.TwoFactorEnabled)

	require.NoError(t, c.DisableTwoFactor(ctx, code))
	assert.False(t, c.TwoFactorEnabled(ctx))
	assert.ErrorIs(t, c.DisableTwoFactor(ctx, code), ErrTwoFactorDisabled)

	assert.Contains(t, events(ctx, c), audit.TwoFactorToggled)
}

func TestPrivacySettings(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()

	assert.Equal(t, DefaultPrivacySettings(), c.PrivacySettings(ctx))

	off := false
	all := CookiesAll
	s, err := c.UpdatePrivacySettings(ctx, PrivacyUpdate{Analytics: &off, Cookies: &all})
	require.NoError(t, err)
	assert.False(t, s.Analytics)
	assert.True(t, s.DataCollection, "unchanged fields kept")
	assert.Equal(t, CookiesAll, c.PrivacySettings(ctx).Cookies)

	bad := CookiePolicy("tracking")
	_, err = c.UpdatePrivacySettings(ctx, PrivacyUpdate{Cookies: &bad})
	assert.ErrorIs(t, err, ErrInvalidCookies)

	entries := c.Audit.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.PrivacySettingsUpdated, entries[0].Event)
	settings := entries[0].Details["settings"].(map[string]any)
	assert.Equal(t, map[string]any{"analytics": false, "cookies": "all"}, settings)
}

func TestSecurityLevel(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()

	assert.Equal(t, LevelStandard, c.SecurityLevel(ctx))
	require.NoError(t, c.SetSecurityLevel(ctx, LevelMaximum))
	assert.Equal(t, LevelMaximum, c.SecurityLevel(ctx))
	assert.ErrorIs(t, c.SetSecurityLevel(ctx, "paranoid"), ErrInvalidLevel)
	assert.Equal(t, []audit.Event{audit.SecurityLevelUpdated}, events(ctx, c))
}

func TestHasPermission(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()
	register(t, c)

	assert.False(t, c.HasPermission(ctx, "view_products"), "signed out")

	_, err := c.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	assert.True(t, c.HasPermission(ctx, "place_order"))
	assert.False(t, c.HasPermission(ctx, "manage_users"))

	require.NoError(t, g.Accounts().SetRole(ctx, testEmail, account.Admin))
	require.NoError(t, c.Logout(ctx))
	_, err = c.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	assert.True(t, c.HasPermission(ctx, "manage_users"))
}

func TestAddAlertAndStatus(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()

	a, err := c.AddAlert(ctx, alert.Info, "Password changed")
	require.NoError(t, err)
	assert.Equal(t, 1, c.Status(ctx).UnreadAlerts)
	require.NoError(t, c.Alerts.MarkRead(ctx, a.ID))
	assert.Zero(t, c.Status(ctx).UnreadAlerts)

	entries := c.Audit.Entries(ctx)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.SecurityAlertCreated, entries[0].Event)
	assert.Equal(t, "Password changed", entries[0].Details["alert"].(map[string]any)["message"])
}

func TestRegisterValidation(t *testing.T) {
	g, _ := newTestGuard(t)
	c := g.Client("tab-1")
	ctx := context.Background()

	_, err := c.Register(ctx, "bad", testPassword, "x")
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = c.Register(ctx, testEmail, "weak", "x")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	register(t, c)
	_, err = c.Register(ctx, testEmail, testPassword, "x")
	assert.ErrorIs(t, err, account.ErrExists)
}

func TestLoginMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	m, err := telemetry.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)

	g, _ := newTestGuard(t, WithMetrics(m))
	c := g.Client("tab-1")
	ctx := context.Background()
	register(t, c)

	_, err = c.Login(ctx, Credentials{Email: testEmail, Password: testPassword})
	require.NoError(t, err)
	_, err = c.Login(ctx, Credentials{Email: testEmail, Password: "Wrong123!"})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	results := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != "shopguard.logins" {
				continue
			}
			for _, dp := range metric.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("result"))
				results[v.AsString()] = dp.Value
			}
		}
	}
	assert.Equal(t, map[string]int64{"success": 1, "invalid_credentials": 1}, results)
}
