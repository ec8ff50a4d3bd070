// Package web implements the local dashboard JSON API for atsdesk:
// batch job control, run history with xlsx export, parse cache management
// and pass-through of backend summary and history.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/atsdesk/atsdesk/app/api"
	"github.com/atsdesk/atsdesk/app/batch"
	"github.com/atsdesk/atsdesk/app/cache"
	"github.com/atsdesk/atsdesk/app/store"
)

// JobRunner starts and controls batch jobs
type JobRunner interface {
	Start(ctx context.Context, req batch.Request) (*batch.Job, error)
	Current() (batch.Info, bool)
	Cancel() bool
}

// RunStore provides recorded runs
type RunStore interface {
	List(ctx context.Context, limit int) ([]store.Run, error)
	Get(ctx context.Context, id int64) (store.Run, error)
}

// ParseCache reports and clears cached parse results
type ParseCache interface {
	Stats() cache.Stats
	Clear()
}

// Backend is the part of the backend API exposed on the dashboard
type Backend interface {
	DashboardSummary(ctx context.Context) (api.SummaryResponse, error)
	History(ctx context.Context, limit int, kind string) (api.HistoryResponse, error)
}

// Config holds server configuration
type Config struct {
	Version      string
	Hostname     string
	PasswordHash string // bcrypt hash for basic auth (empty to disable)
	Runner       JobRunner
	Runs         RunStore   // optional, run history disabled if nil
	Cache        ParseCache // optional
	Backend      Backend    // optional
}

// Server is the dashboard web server
type Server struct {
	Config
	ctx            context.Context // parent of started jobs, canceled on shutdown
	csrfProtection *http.CrossOriginProtection
	loginLimiter   *limiter.Limiter
}

// New makes dashboard server
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("web server initialization failed: job runner is required")
	}
	lmt := tollbooth.NewLimiter(5, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
	lmt.SetMessage(`{"error":"too many login attempts"}`)
	lmt.SetMessageContentType("application/json")
	return &Server{
		Config:         cfg,
		ctx:            context.Background(),
		csrfProtection: http.NewCrossOriginProtection(),
		loginLimiter:   lmt,
	}, nil
}

// Run starts the web server and blocks till ctx canceled
func (s *Server) Run(ctx context.Context, address string) error {
	s.ctx = ctx
	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting dashboard server on %s", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("atsdesk", "atsdesk", s.Version),
		rest.Ping,
		rest.Trace,
		rest.SizeLimit(64*1024),
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	if s.PasswordHash != "" {
		log.Printf("[INFO] authentication enabled for dashboard")
		router.Use(s.authMiddleware)
		router.With(s.csrfProtection.Handler, tollbooth.HTTPMiddleware(s.loginLimiter)).HandleFunc("POST /login", s.handleLogin)
		router.HandleFunc("POST /logout", s.handleLogout)
	}

	router.Mount("/api/v1").Route(func(apiGroup *routegroup.Bundle) {
		apiGroup.Use(rest.NoCache)
		apiGroup.Use(s.csrfProtection.Handler)

		apiGroup.HandleFunc("GET /job", s.handleCurrentJob)
		apiGroup.HandleFunc("POST /job", s.handleStartJob)
		apiGroup.HandleFunc("DELETE /job", s.handleCancelJob)

		apiGroup.HandleFunc("GET /runs", s.handleRuns)
		apiGroup.HandleFunc("GET /runs/{id}", s.handleRun)
		apiGroup.HandleFunc("GET /runs/{id}/xlsx", s.handleRunExport)

		apiGroup.HandleFunc("GET /cache", s.handleCacheStats)
		apiGroup.HandleFunc("DELETE /cache", s.handleCacheClear)

		apiGroup.HandleFunc("GET /backend/summary", s.handleBackendSummary)
		apiGroup.HandleFunc("GET /backend/history", s.handleBackendHistory)
	})

	return router
}
