package httpapi

import (
	"net/http"
	"strings"
	"time"

	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/obs"
)

const (
	authHeader    = "Authorization"
	bearer        = "Bearer "
	sessionCookie = "ad_session"
	sessionHeader = "X-Session-Token"
)

var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/api/info",
	"/api/auth/session",
}

// withSession resolves the session token on every non-public request. Any
// failure collapses to one generic 401; the cause is never distinguished to
// the client.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		principal, issuedAt, err := a.sessions.Verify(extractToken(r))
		if err != nil {
			writeErrorCode(w, r, http.StatusUnauthorized, codeAuthentication, "authentication required")
			return
		}

		// Sliding refresh: a day of activity buys a fresh seven-day token.
		if a.sessions.NeedsRefresh(issuedAt) {
			if fresh, expiresAt, err := a.sessions.Issue(principal); err == nil {
				w.Header().Set(sessionHeader, fresh)
				http.SetCookie(w, a.sessionCookie(fresh, expiresAt))
			}
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal fetches the authenticated principal; a miss means the pipeline is
// misconfigured, so it answers 401 itself.
func (a *API) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusUnauthorized, codeAuthentication, "authentication required")
		return auth.Principal{}, false
	}
	return p, true
}

// limitUser applies the per-user window to quota-bearing routes. It runs after
// session resolution, so the subject key is the stable user id rather than
// anything client-controlled.
func (a *API) limitUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := a.principal(w, r)
		if !ok {
			return
		}
		decision := a.userLimiter.Allow("user:"+p.ID, time.Now())
		if !decision.OK {
			obs.CountRateLimitRejection("user")
			writeRateLimited(w, r, decision.RetryAfter)
			return
		}
		next(w, r)
	}
}

func (a *API) sessionCookie(token string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   a.production,
		SameSite: http.SameSiteLaxMode,
	}
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get(authHeader))
	if header != "" && strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return strings.TrimSpace(header[len(bearer):])
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
