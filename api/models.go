package api

import (
	"time"

	"github.com/meatandeat/shopguard/account"
	"github.com/meatandeat/shopguard/alert"
	"github.com/meatandeat/shopguard/audit"
	"github.com/meatandeat/shopguard/guard"
	"github.com/meatandeat/shopguard/validate"
)

// CSRFResponse is returned from GET /csrf.
type CSRFResponse struct {
	Token  string `json:"token"`
	Header string `json:"header"`
}

// RegisterRequest is the JSON body for POST /auth/register.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
	OTP        string `json:"otp,omitempty"`
}

// LoginResponse is returned from POST /auth/login.
type LoginResponse struct {
	User      account.Profile `json:"user"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// SessionResponse is returned from GET /session.
type SessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *account.Profile `json:"user,omitempty"`
	Permissions   []string         `json:"permissions,omitempty"`
	ExpiresAt     *time.Time       `json:"expiresAt,omitempty"`
}

// SecurityLevelRequest is the JSON body for PUT /security/level.
type SecurityLevelRequest struct {
	Level guard.SecurityLevel `json:"level"`
}

// SecurityLevelResponse is returned from GET and PUT /security/level.
type SecurityLevelResponse struct {
	Level guard.SecurityLevel `json:"level"`
}

// TwoFactorStatusResponse is returned from GET /security/2fa.
type TwoFactorStatusResponse struct {
	Enabled bool `json:"enabled"`
}

// TwoFactorCodeRequest is the JSON body for the 2FA enable and disable
// endpoints.
type TwoFactorCodeRequest struct {
	Code string `json:"code"`
}

// AlertsResponse is returned from GET /alerts.
type AlertsResponse struct {
	Alerts []alert.Alert `json:"alerts"`
	Unread int           `json:"unread"`
}

// AuditResponse is returned from GET /audit.
type AuditResponse struct {
	Entries []audit.Entry `json:"entries"`
}

// PermissionResponse is returned from GET /permissions/{action}.
type PermissionResponse struct {
	Action  string `json:"action"`
	Allowed bool   `json:"allowed"`
}

// ValidateRequest is the JSON body for POST /validate. Only the fields that
// are present are checked.
type ValidateRequest struct {
	Email           *string `json:"email,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Name            *string `json:"name,omitempty"`
	Password        *string `json:"password,omitempty"`
	ConfirmPassword *string `json:"confirmPassword,omitempty"`
}

// ValidateResponse is returned from POST /validate.
type ValidateResponse struct {
	Fields   map[string]validate.Field `json:"fields"`
	Strength *validate.Report          `json:"strength,omitempty"`
	Valid    bool                      `json:"valid"`
}

// ErrorResponse is returned for all error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
