package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meatandeat/shopguard/guard"
	"github.com/meatandeat/shopguard/validate"
)

// SecurityStatus handles GET /security/status.
func (a *API) SecurityStatus(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	writeJSON(w, http.StatusOK, c.Status(r.Context()))
}

// GetPrivacy handles GET /security/privacy.
func (a *API) GetPrivacy(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	writeJSON(w, http.StatusOK, c.PrivacySettings(r.Context()))
}

// UpdatePrivacy handles PUT /security/privacy. Absent fields are unchanged.
func (a *API) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[guard.PrivacyUpdate](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	c := clientFromContext(r.Context())
	s, err := c.UpdatePrivacySettings(r.Context(), req)
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GetSecurityLevel handles GET /security/level.
func (a *API) GetSecurityLevel(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	writeJSON(w, http.StatusOK, SecurityLevelResponse{Level: c.SecurityLevel(r.Context())})
}

// SetSecurityLevel handles PUT /security/level.
func (a *API) SetSecurityLevel(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[SecurityLevelRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	c := clientFromContext(r.Context())
	if err := c.SetSecurityLevel(r.Context(), req.Level); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SecurityLevelResponse{Level: req.Level})
}

// TwoFactorStatus handles GET /security/2fa.
func (a *API) TwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	writeJSON(w, http.StatusOK, TwoFactorStatusResponse{Enabled: c.TwoFactorEnabled(r.Context())})
}

// SetupTwoFactor handles POST /security/2fa/setup.
func (a *API) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	setup, err := c.BeginTwoFactor(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setup)
}

// EnableTwoFactor handles POST /security/2fa/enable.
func (a *API) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[TwoFactorCodeRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	c := clientFromContext(r.Context())
	if err := c.EnableTwoFactor(r.Context(), req.Code); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TwoFactorStatusResponse{Enabled: true})
}

// DisableTwoFactor handles POST /security/2fa/disable.
func (a *API) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[TwoFactorCodeRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	c := clientFromContext(r.Context())
	if err := c.DisableTwoFactor(r.Context(), req.Code); err != nil {
		mapError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TwoFactorStatusResponse{Enabled: false})
}

// ListAlerts handles GET /alerts.
func (a *API) ListAlerts(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	alerts := c.Alerts.List(r.Context())
	writeJSON(w, http.StatusOK, AlertsResponse{Alerts: alerts, Unread: c.Alerts.Unread(r.Context())})
}

// MarkAlertRead handles POST /alerts/{alertID}/read.
func (a *API) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	if err := c.Alerts.MarkRead(r.Context(), chi.URLParam(r, "alertID")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearAlerts handles DELETE /alerts.
func (a *API) ClearAlerts(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	if err := c.Alerts.Clear(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAudit handles GET /audit. Entries are oldest first.
func (a *API) ListAudit(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	writeJSON(w, http.StatusOK, AuditResponse{Entries: c.Audit.Entries(r.Context())})
}

// CheckPermission handles GET /permissions/{action}.
func (a *API) CheckPermission(w http.ResponseWriter, r *http.Request) {
	c := clientFromContext(r.Context())
	action := chi.URLParam(r, "action")
	writeJSON(w, http.StatusOK, PermissionResponse{
		Action:  action,
		Allowed: c.HasPermission(r.Context(), action),
	})
}

// Validate handles POST /validate, the live form check used by the signup
// and checkout pages. Nothing is stored or audited.
func (a *API) Validate(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ValidateRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	resp := ValidateResponse{Fields: map[string]validate.Field{}, Valid: true}
	add := func(name string, f validate.Field) {
		resp.Fields[name] = f
		resp.Valid = resp.Valid && f.Valid
	}
	if req.Email != nil {
		add("email", validate.EmailField(*req.Email))
	}
	if req.Phone != nil {
		add("phone", validate.PhoneField(*req.Phone))
	}
	if req.Name != nil {
		add("name", validate.NameField(*req.Name))
	}
	if req.Password != nil {
		add("password", validate.PasswordField(*req.Password))
		report := validate.Strength(*req.Password)
		resp.Strength = &report
	}
	if req.ConfirmPassword != nil {
		password := ""
		if req.Password != nil {
			password = *req.Password
		}
		add("confirmPassword", validate.ConfirmPasswordField(password, *req.ConfirmPassword))
	}
	writeJSON(w, http.StatusOK, resp)
}
