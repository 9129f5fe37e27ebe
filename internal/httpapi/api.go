// Package httpapi is the HTTP layer: routing, the request pipeline
// (rate limiting, session resolution, body ceilings), and the mapping from
// internal errors to the public taxonomy.
package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"agencydesk.io/internal/ai"
	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/directory"
	"agencydesk.io/internal/obs"
	"agencydesk.io/internal/ratelimit"
)

// Completer produces a completion for a system+user prompt pair.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// NewsSearcher fetches recent articles for a query.
type NewsSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]ai.Article, error)
}

// ReadyProbe reports readiness (DB reachability when a DB is configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the API's collaborators. Sessions, Identity, and Directory
// are required; LLM and News may be nil when the provider keys are absent.
type Config struct {
	Version      string
	Production   bool
	ReadyProbe   ReadyProbe
	Sessions     *auth.Sessions
	Identity     *auth.Identity
	Directory    *directory.Service
	LLM          Completer
	News         NewsSearcher
	IPLimiter    *ratelimit.Limiter
	UserLimiter  *ratelimit.Limiter
	MaxBodyBytes int64
}

// API is the HTTP layer.
type API struct {
	mux          *http.ServeMux
	version      string
	production   bool
	readyProbe   ReadyProbe
	sessions     *auth.Sessions
	identity     *auth.Identity
	dir          *directory.Service
	llm          Completer
	news         NewsSearcher
	ipLimiter    *ratelimit.Limiter
	userLimiter  *ratelimit.Limiter
	maxBodyBytes int64
}

// New constructs the API and registers routes.
func New(cfg Config) (*API, error) {
	if cfg.Sessions == nil || cfg.Identity == nil || cfg.Directory == nil {
		return nil, errors.New("httpapi: sessions, identity, and directory are required")
	}
	if cfg.IPLimiter == nil || cfg.UserLimiter == nil {
		return nil, errors.New("httpapi: rate limiters are required")
	}
	if cfg.MaxBodyBytes <= 0 {
		return nil, errors.New("httpapi: max body bytes must be positive")
	}
	a := &API{
		mux:          http.NewServeMux(),
		version:      cfg.Version,
		production:   cfg.Production,
		readyProbe:   cfg.ReadyProbe,
		sessions:     cfg.Sessions,
		identity:     cfg.Identity,
		dir:          cfg.Directory,
		llm:          cfg.LLM,
		news:         cfg.News,
		ipLimiter:    cfg.IPLimiter,
		userLimiter:  cfg.UserLimiter,
		maxBodyBytes: cfg.MaxBodyBytes,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/api/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/session", a.handleSessionExchange)

	a.mux.HandleFunc("/api/clients", a.handleClients)
	a.mux.HandleFunc("/api/clients/", a.handleClientScoped)
	a.mux.HandleFunc("/api/client-activities", a.handleActivities)
	a.mux.HandleFunc("/api/client-activities/", a.handleActivityScoped)
	a.mux.HandleFunc("/api/users/", a.handleUserScoped)

	a.mux.HandleFunc("/api/analyze-trends", a.limitUser(a.handleAnalyzeTrends))
	a.mux.HandleFunc("/api/generate-ideas", a.limitUser(a.handleGenerateIdeas))
	a.mux.HandleFunc("/api/generate-headlines", a.limitUser(a.handleGenerateHeadlines))
	a.mux.HandleFunc("/api/generate-press-release", a.limitUser(a.handleGeneratePressRelease))
	a.mux.HandleFunc("/api/news", a.limitUser(a.handleNews))
	a.mux.HandleFunc("/api/usage-dashboard", a.handleUsageDashboard)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeErrorCode(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	})

	return a, nil
}

// Handler composes the middleware pipeline around the mux. Order matters:
// the IP limiter runs before session resolution so unauthenticated floods
// never reach token verification or the database.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.mux)
	h = IPRateLimit(h, a.ipLimiter, !a.production)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}
