package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agencydesk.io/internal/ai"
	"agencydesk.io/internal/audit"
	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/directory"
	"agencydesk.io/internal/obs"
)

// Stable machine-readable error codes. Clients branch on these, never on
// message text.
const (
	codeValidation     = "VALIDATION_ERROR"
	codeAuthentication = "AUTHENTICATION_ERROR"
	codeAuthorization  = "AUTHORIZATION_ERROR"
	codeNotFound       = "NOT_FOUND_ERROR"
	codeRateLimited    = "RATE_LIMIT_EXCEEDED"
	codeDatabase       = "DATABASE_ERROR"
	codeExternalAPI    = "EXTERNAL_API_ERROR"
	codeInternal       = "INTERNAL_ERROR"
)

type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	Timestamp  string `json:"timestamp"`
	RequestID  string `json:"request_id,omitempty"`
	Details    any    `json:"details,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

// apiError is a classified error ready for the wire.
type apiError struct {
	status  int
	code    string
	message string
	details any
}

// classify maps an internal error to the public taxonomy. Sentinels first,
// then ordered substring heuristics for driver errors that carry no sentinel.
func classify(err error) apiError {
	var verr *directory.ValidationError
	switch {
	case errors.As(err, &verr):
		return apiError{http.StatusBadRequest, codeValidation, "validation failed", verr.Fields}
	case errors.Is(err, directory.ErrInvalidInput):
		return apiError{http.StatusBadRequest, codeValidation, "invalid input", nil}
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnauthenticated):
		return apiError{http.StatusUnauthorized, codeAuthentication, "authentication required", nil}
	case errors.Is(err, auth.ErrDomainNotAllowed), errors.Is(err, directory.ErrForbidden):
		return apiError{http.StatusForbidden, codeAuthorization, "access denied", nil}
	case errors.Is(err, directory.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return apiError{http.StatusNotFound, codeNotFound, "resource not found", nil}
	case errors.Is(err, directory.ErrConflict):
		return apiError{http.StatusConflict, codeValidation, "resource conflict", nil}
	case errors.Is(err, ai.ErrUpstream):
		return apiError{http.StatusBadGateway, codeExternalAPI, "external service unavailable", nil}
	}

	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"sqlstate", "pq:", "pgx", "database", "sql:", "connection refused"} {
		if strings.Contains(msg, needle) {
			return apiError{http.StatusInternalServerError, codeDatabase, "database operation failed", nil}
		}
	}
	for _, needle := range []string{"context deadline exceeded", "upstream", "bad gateway"} {
		if strings.Contains(msg, needle) {
			return apiError{http.StatusBadGateway, codeExternalAPI, "external service unavailable", nil}
		}
	}
	return apiError{http.StatusInternalServerError, codeInternal, "internal server error", nil}
}

// writeErr classifies, logs the full detail server-side, and emits the
// sanitized envelope. Raw error text reaches the client only outside
// production, and only in the details field.
func (a *API) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	ae := classify(err)

	actor := "anonymous"
	if p, ok := auth.PrincipalFromContext(r.Context()); ok {
		actor = p.ID
	}
	obs.Emit("error", "request_failed", map[string]any{
		"request_id": audit.RequestIDFromContext(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     ae.status,
		"code":       ae.code,
		"actor":      actor,
		"error":      err.Error(),
	})

	details := ae.details
	if details == nil && !a.production {
		details = err.Error()
	}
	writeEnvelope(w, r, ae.status, errorResponse{
		Error:   ae.message,
		Code:    ae.code,
		Details: details,
	})
}

// writeErrorCode emits an envelope for a failure produced at the HTTP layer
// itself (no internal error to classify).
func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, r, status, errorResponse{Error: message, Code: code})
}

// writeRateLimited emits the 429 envelope with the Retry-After header. Used by
// both the IP and user limiters.
func writeRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	secs := int(retryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeEnvelope(w, r, http.StatusTooManyRequests, errorResponse{
		Error:      "rate limit exceeded, retry later",
		Code:       codeRateLimited,
		RetryAfter: secs,
	})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
	if resp.RequestID == "" {
		resp.RequestID = audit.RequestIDFromContext(r.Context())
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
