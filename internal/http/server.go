// Package http serves the ledger's JSON API together with health, readiness
// and metrics endpoints.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"bartab/internal/clock"
	"bartab/internal/log"
	"bartab/internal/metrics"
	"bartab/internal/middleware/ratelimit"
	"bartab/internal/middleware/security"
	"bartab/internal/middleware/trace"
	"bartab/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune the server. Zero values fall back to defaults.
type Options struct {
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *log.Logger
	Metrics            *metrics.Metrics
	// Clock drives rate limiting windows.
	Clock clock.Clock
}

// Server embeds http.Server so callers can ListenAndServe directly.
type Server struct {
	http.Server

	ledger   *services.Ledger
	split    *services.SplitBilling
	store    Pinger
	metrics  *metrics.Metrics
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.Ledger, split *services.SplitBilling, store Pinger, opts Options) (*Server, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}

	detector, err := security.NewDetector(opts.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      opts.RequestTimeout + 10*time.Second,
			IdleTimeout:       60 * time.Second,
		},
		ledger:   ledger,
		split:    split,
		store:    store,
		metrics:  opts.Metrics,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		detector: detector,
		started:  time.Now(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			Clock:             opts.Clock,
		}),
	}
	s.Handler = s.routes(opts.RequestTimeout)
	return s, nil
}

func (s *Server) routes(timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.metrics).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, writeRateLimited))
		r.Use(withTimeout(timeout))

		r.Post("/consumptions", s.handleRecordConsumption)
		r.Get("/debts", s.handleDebts)
		r.Post("/reset-debt", s.handleResetDebt)
		r.Post("/reset-debt/all", s.handleResetAll)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions/undo", s.handleUndo)
		r.Patch("/transactions/{id}", s.handleCorrectTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)

		r.Get("/persons", s.handleListPersons)
		r.Post("/persons", s.handleRegisterPerson)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found", Code: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Code: "method_not_allowed"})
	})
	return r
}

// Shutdown stops the rate limiter and drains the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
