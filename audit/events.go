package audit

// Event tags a security-relevant action.
type Event string

const (
	LoginSuccess           Event = "LOGIN_SUCCESS"
	LoginFailed            Event = "LOGIN_FAILED"
	LoginRateLimited       Event = "LOGIN_RATE_LIMITED"
	LoginError             Event = "LOGIN_ERROR"
	Logout                 Event = "LOGOUT"
	LogoutError            Event = "LOGOUT_ERROR"
	Register               Event = "REGISTER"
	SessionValidated       Event = "SESSION_VALIDATED"
	SessionRestored        Event = "SESSION_RESTORED"
	SessionExpired         Event = "SESSION_EXPIRED"
	PrivacySettingsUpdated Event = "PRIVACY_SETTINGS_UPDATED"
	PrivacyUpdateError     Event = "PRIVACY_UPDATE_ERROR"
	SecurityLevelUpdated   Event = "SECURITY_LEVEL_UPDATED"
	SecurityLevelError     Event = "SECURITY_LEVEL_ERROR"
	TwoFactorSetup         Event = "TWO_FACTOR_SETUP"
	TwoFactorToggled       Event = "TWO_FACTOR_TOGGLED"
	TwoFactorError         Event = "TWO_FACTOR_ERROR"
	SecurityAlertCreated   Event = "SECURITY_ALERT_CREATED"
	SecurityInitError      Event = "SECURITY_INIT_ERROR"
	CSRFRejected           Event = "CSRF_REJECTED"
)
