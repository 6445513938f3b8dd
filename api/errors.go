package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/meatandeat/shopguard/account"
	"github.com/meatandeat/shopguard/alert"
	"github.com/meatandeat/shopguard/guard"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, guard.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, guard.ErrInvalidEmail),
		errors.Is(err, guard.ErrInvalidPassword),
		errors.Is(err, guard.ErrInvalidLevel),
		errors.Is(err, guard.ErrInvalidCookies),
		errors.Is(err, guard.ErrInvalidOTP),
		errors.Is(err, account.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, guard.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, guard.ErrTwoFactorRequired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, account.ErrExists),
		errors.Is(err, guard.ErrTwoFactorEnabled),
		errors.Is(err, guard.ErrTwoFactorDisabled),
		errors.Is(err, guard.ErrNoPendingTwoFactor):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, alert.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// maxAuthBodySize bounds request bodies; every request here is a small form.
const maxAuthBodySize = 64 << 10

// decodeJSON reads a JSON body of at most limit bytes into a T, writing a 400
// and returning false on failure.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}

func writeInternalError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
