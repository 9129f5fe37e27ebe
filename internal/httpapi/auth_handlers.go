package httpapi

import (
	"net/http"
	"time"

	"agencydesk.io/internal/audit"
	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/directory"
)

type sessionExchangeRequest struct {
	Assertion string `json:"assertion"`
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *directory.User `json:"user"`
}

// handleSessionExchange trades a verified identity-provider assertion for a
// session token. The provider answers "who is this"; role and status are
// decided locally, and a disabled account cannot sign in.
func (a *API) handleSessionExchange(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req sessionExchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	email, err := a.identity.VerifyAssertion(req.Assertion)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	user, err := a.dir.EnsureUser(r.Context(), email)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	principal := auth.Principal{ID: user.ID, Email: user.Email, Role: user.Role}
	token, expiresAt, err := a.sessions.Issue(principal)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.session.issue", map[string]any{
		"user_id": user.ID,
		"role":    string(user.Role),
	})

	http.SetCookie(w, a.sessionCookie(token, expiresAt))
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}
