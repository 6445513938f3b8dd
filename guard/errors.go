package guard

import "errors"

var (
	ErrRateLimited        = errors.New("too many login attempts, please try again later")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidPassword    = errors.New("password must be at least 8 characters with uppercase, lowercase, number, and special character")
	ErrTwoFactorRequired  = errors.New("two-factor code required")
	ErrInvalidOTP         = errors.New("invalid two-factor code")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoPendingTwoFactor = errors.New("no two-factor setup in progress")
	ErrTwoFactorEnabled   = errors.New("two-factor authentication is already enabled")
	ErrTwoFactorDisabled  = errors.New("two-factor authentication is not enabled")
	ErrInvalidLevel       = errors.New("invalid security level")
	ErrInvalidCookies     = errors.New("cookies must be essential, all or none")
)
