package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"agencydesk.io/internal/ai"
	"agencydesk.io/internal/auth"
	"agencydesk.io/internal/config"
	"agencydesk.io/internal/directory"
	"agencydesk.io/internal/httpapi"
	"agencydesk.io/internal/obs"
	"agencydesk.io/internal/ratelimit"
	"agencydesk.io/internal/store/memory"
	"agencydesk.io/internal/store/pg"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("AGENCYDESK_COMMIT"))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Postgres when a DSN is set, in-memory otherwise (dev runs and tests).
	var (
		store directory.Store
		db    *sql.DB
	)
	if cfg.PGDSN != "" {
		pgStore, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		log.Println("no AGENCYDESK_PG_DSN set, using in-memory store")
		store = memory.New()
	}

	dir, err := directory.NewService(store)
	if err != nil {
		log.Fatalf("directory: %v", err)
	}

	sessions, err := auth.NewSessions(cfg.SessionSecret)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	identity, err := auth.NewIdentity(cfg.IdPSecret, cfg.IdPIssuer, cfg.AllowedDomains)
	if err != nil {
		log.Fatalf("identity: %v", err)
	}

	ipLimiter, err := ratelimit.New(ratelimit.NewMemoryStore(), cfg.Rate.IPLimit, cfg.Rate.Window)
	if err != nil {
		log.Fatalf("ip limiter: %v", err)
	}
	userLimiter, err := ratelimit.New(ratelimit.NewMemoryStore(), cfg.Rate.UserLimit, cfg.Rate.Window)
	if err != nil {
		log.Fatalf("user limiter: %v", err)
	}

	var llm httpapi.Completer
	if cfg.OpenAIKey != "" {
		client, err := ai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, cfg.Upstream.LLM)
		if err != nil {
			log.Fatalf("llm client: %v", err)
		}
		llm = client
	} else {
		log.Println("no AGENCYDESK_OPENAI_API_KEY set, content generation disabled")
	}

	var news httpapi.NewsSearcher
	if cfg.NewsAPIKey != "" {
		client, err := ai.NewNewsClient(cfg.NewsBaseURL, cfg.NewsAPIKey, cfg.Upstream.News)
		if err != nil {
			log.Fatalf("news client: %v", err)
		}
		news = client
	}

	api, err := httpapi.New(httpapi.Config{
		Version:      version,
		Production:   cfg.Production(),
		ReadyProbe:   httpapi.ReadyProbe{DB: db},
		Sessions:     sessions,
		Identity:     identity,
		Directory:    dir,
		LLM:          llm,
		News:         news,
		IPLimiter:    ipLimiter,
		UserLimiter:  userLimiter,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		log.Fatalf("httpapi: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      90 * time.Second, // generation calls can be slow
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting agencydesk-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
