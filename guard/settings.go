package guard

import (
	"context"
	"fmt"

	"github.com/meatandeat/shopguard/account"
	"github.com/meatandeat/shopguard/audit"
	"github.com/meatandeat/shopguard/securestore"
	"github.com/meatandeat/shopguard/totp"
)

// CookiePolicy selects which cookies the shopper accepts.
type CookiePolicy string

const (
	CookiesEssential CookiePolicy = "essential"
	CookiesAll       CookiePolicy = "all"
	CookiesNone      CookiePolicy = "none"
)

func (p CookiePolicy) Valid() bool {
	return p == CookiesEssential || p == CookiesAll || p == CookiesNone
}

// PrivacySettings are the shopper's data-sharing choices.
type PrivacySettings struct {
	DataCollection   bool         `json:"dataCollection"`
	Analytics        bool         `json:"analytics"`
	Marketing        bool         `json:"marketing"`
	Cookies          CookiePolicy `json:"cookies"`
	LocationTracking bool         `json:"locationTracking"`
}

// DefaultPrivacySettings apply until the shopper changes them.
func DefaultPrivacySettings() PrivacySettings {
	return PrivacySettings{
		DataCollection:   true,
		Analytics:        true,
		Marketing:        false,
		Cookies:          CookiesEssential,
		LocationTracking: false,
	}
}

// PrivacyUpdate changes only the fields that are set.
type PrivacyUpdate struct {
	DataCollection   *bool         `json:"dataCollection,omitempty"`
	Analytics        *bool         `json:"analytics,omitempty"`
	Marketing        *bool         `json:"marketing,omitempty"`
	Cookies          *CookiePolicy `json:"cookies,omitempty"`
	LocationTracking *bool         `json:"locationTracking,omitempty"`
}

func (u PrivacyUpdate) details() map[string]any {
	d := map[string]any{}
	if u.DataCollection != nil {
		d["dataCollection"] = *u.DataCollection
	}
	if u.Analytics != nil {
		d["analytics"] = *u.Analytics
	}
	if u.Marketing != nil {
		d["marketing"] = *u.Marketing
	}
	if u.Cookies != nil {
		d["cookies"] = string(*u.Cookies)
	}
	if u.LocationTracking != nil {
		d["locationTracking"] = *u.LocationTracking
	}
	return d
}

func (c *Client) PrivacySettings(ctx context.Context) PrivacySettings {
	if s, ok := securestore.Load[PrivacySettings](ctx, c.store, PrivacyKey); ok {
		return s
	}
	return DefaultPrivacySettings()
}

// UpdatePrivacySettings merges u into the stored settings.
func (c *Client) UpdatePrivacySettings(ctx context.Context, u PrivacyUpdate) (PrivacySettings, error) {
	if u.Cookies != nil && !u.Cookies.Valid() {
		return PrivacySettings{}, ErrInvalidCookies
	}
	s := c.PrivacySettings(ctx)
	if u.DataCollection != nil {
		s.DataCollection = *u.DataCollection
	}
	if u.Analytics != nil {
		s.Analytics = *u.Analytics
	}
	if u.Marketing != nil {
		s.Marketing = *u.Marketing
	}
	if u.Cookies != nil {
		s.Cookies = *u.Cookies
	}
	if u.LocationTracking != nil {
		s.LocationTracking = *u.LocationTracking
	}
	if err := c.store.Set(ctx, PrivacyKey, s); err != nil {
		c.Audit.Log(ctx, audit.PrivacyUpdateError, audit.Details{"error": err.Error()})
		return PrivacySettings{}, err
	}
	c.Audit.Log(ctx, audit.PrivacySettingsUpdated, audit.Details{"settings": u.details()})
	return s, nil
}

// SecurityLevel is the shopper's chosen protection level.
type SecurityLevel string

const (
	LevelStandard SecurityLevel = "standard"
	LevelEnhanced SecurityLevel = "enhanced"
	LevelMaximum  SecurityLevel = "maximum"
)

func (l SecurityLevel) Valid() bool {
	return l == LevelStandard || l == LevelEnhanced || l == LevelMaximum
}

func (c *Client) SecurityLevel(ctx context.Context) SecurityLevel {
	if l, ok := securestore.Load[SecurityLevel](ctx, c.store, SecurityLevelKey); ok && l.Valid() {
		return l
	}
	return LevelStandard
}

func (c *Client) SetSecurityLevel(ctx context.Context, level SecurityLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%q: %w", level, ErrInvalidLevel)
	}
	if err := c.store.Set(ctx, SecurityLevelKey, level); err != nil {
		c.Audit.Log(ctx, audit.SecurityLevelError, audit.Details{"error": err.Error()})
		return err
	}
	c.Audit.Log(ctx, audit.SecurityLevelUpdated, audit.Details{"level": string(level)})
	return nil
}

// TwoFactorEnabled reports the flag stored for this client by the last login
// or toggle.
func (c *Client) TwoFactorEnabled(ctx context.Context) bool {
	enabled, _ := securestore.Load[bool](ctx, c.store, TwoFactorEnabledKey)
	return enabled
}

// TwoFactorSetup is returned by BeginTwoFactor for display to the shopper.
type TwoFactorSetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// BeginTwoFactor generates a secret for the signed-in user and keeps it
// pending until EnableTwoFactor confirms a code.
func (c *Client) BeginTwoFactor(ctx context.Context) (TwoFactorSetup, error) {
	user, ok := c.CurrentUser(ctx)
	if !ok {
		return TwoFactorSetup{}, ErrNotAuthenticated
	}
	current, err := c.guard.accounts.TwoFactorSecret(ctx, user.Email)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if current != "" {
		return TwoFactorSetup{}, ErrTwoFactorEnabled
	}
	secret, err := totp.GenerateSecret()
	if err != nil {
		return TwoFactorSetup{}, err
	}
	if err := c.store.Set(ctx, PendingTwoFactorKey, secret); err != nil {
		return TwoFactorSetup{}, err
	}
	c.Audit.Log(ctx, audit.TwoFactorSetup, audit.Details{"userId": user.ID})
	return TwoFactorSetup{
		Secret:     secret,
		OTPAuthURL: totp.OTPAuthURL(c.guard.issuer, user.Email, secret),
	}, nil
}

// EnableTwoFactor confirms the pending secret with a code from the
// authenticator and turns two-factor on for the account.
func (c *Client) EnableTwoFactor(ctx context.Context, code string) error {
	user, ok := c.CurrentUser(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	secret, ok := securestore.Load[string](ctx, c.store, PendingTwoFactorKey)
	if !ok || secret == "" {
		return ErrNoPendingTwoFactor
	}
	if !c.guard.totp.Verify(secret, code) {
		c.Audit.Log(ctx, audit.TwoFactorError, audit.Details{"error": ErrInvalidOTP.Error()})
		return ErrInvalidOTP
	}
	if err := c.guard.accounts.SetTwoFactorSecret(ctx, user.Email, secret); err != nil {
		c.Audit.Log(ctx, audit.TwoFactorError, audit.Details{"error": err.Error()})
		return err
	}
	_ = c.store.Remove(ctx, PendingTwoFactorKey)
	return c.setTwoFactor(ctx, true)
}

// DisableTwoFactor turns two-factor off after checking a current code.
func (c *Client) DisableTwoFactor(ctx context.Context, code string) error {
	user, ok := c.CurrentUser(ctx)
	if !ok {
		return ErrNotAuthenticated
	}
	secret, err := c.guard.accounts.TwoFactorSecret(ctx, user.Email)
	if err != nil {
		return err
	}
	if secret == "" {
		return ErrTwoFactorDisabled
	}
	if !c.guard.totp.Verify(secret, code) {
		c.Audit.Log(ctx, audit.TwoFactorError, audit.Details{"error": ErrInvalidOTP.Error()})
		return ErrInvalidOTP
	}
	if err := c.guard.accounts.SetTwoFactorSecret(ctx, user.Email, ""); err != nil {
		c.Audit.Log(ctx, audit.TwoFactorError, audit.Details{"error": err.Error()})
		return err
	}
	return c.setTwoFactor(ctx, false)
}

func (c *Client) setTwoFactor(ctx context.Context, enabled bool) error {
	if err := c.store.Set(ctx, TwoFactorEnabledKey, enabled); err != nil {
		return err
	}
	if user, ok := securestore.Load[account.Profile](ctx, c.store, UserKey); ok {
		user.TwoFactorEnabled = enabled
		if err := c.store.Set(ctx, UserKey, user); err != nil {
			c.logger.Warn("updating stored profile", "error", err)
		}
	}
	c.Audit.Log(ctx, audit.TwoFactorToggled, audit.Details{"enabled": enabled})
	return nil
}
