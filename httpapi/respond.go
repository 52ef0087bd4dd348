// Package httpapi exposes the credential engine over the wire protocol the
// client package speaks, plus the session-backed browser flow under /user.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/project-starfall/identity"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondOK merges extra fields into a success envelope.
func respondOK(w http.ResponseWriter, status int, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// respondErr writes a failure envelope with the explanation under "error".
func respondErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// respondEngineErr maps engine sentinel errors onto wire statuses. Unknown
// errors are logged and reported as a plain internal failure so internals
// never leak to callers.
func respondEngineErr(w http.ResponseWriter, log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, identity.ErrTokenInvalid):
		respondErr(w, http.StatusForbidden, "Invalid or expired token")
	case errors.Is(err, identity.ErrPasswordMismatch):
		respondErr(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, identity.ErrUserNotFound):
		respondErr(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, identity.ErrUsernameInvalid):
		respondErr(w, http.StatusBadRequest, "Invalid or taken username")
	case errors.Is(err, identity.ErrEmailInvalid):
		respondErr(w, http.StatusBadRequest, "Invalid or taken email")
	case errors.Is(err, identity.ErrEngineClosed):
		respondErr(w, http.StatusServiceUnavailable, "Service shutting down")
	default:
		log.Error("request failed", "op", op, "error", err)
		respondErr(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	return true
}

// bearerToken pulls the token out of an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}
