// Package api provides the HTTP status and JSON view of a running regcat
// server. It answers health checks, reports server and catalog counters,
// and exposes the same search and detail lookups as the line protocol.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/wesm/regcat/internal/server"
	"github.com/wesm/regcat/internal/store"
)

// StatsSource reports live query server counters.
type StatsSource interface {
	Stats() server.Stats
}

// CatalogStats reports catalog row counts.
type CatalogStats func() (*store.Stats, error)

// Options configures the status server.
type Options struct {
	Addr         string
	RateLimitQPS float64 // per client; 0 means 10
	RateBurst    int     // 0 means twice the QPS
}

// Server is the HTTP status server.
type Server struct {
	opts        Options
	open        server.Opener
	stats       StatsSource
	catalog     CatalogStats
	logger      *slog.Logger
	router      chi.Router
	server      *http.Server
	rateLimiter *RateLimiter
}

// NewServer creates a status server. Any of open, stats, or catalog may be
// nil, in which case the routes that need them answer 503.
func NewServer(opts Options, open server.Opener, stats StatsSource, catalog CatalogStats, logger *slog.Logger) *Server {
	if opts.RateLimitQPS <= 0 {
		opts.RateLimitQPS = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = int(2 * opts.RateLimitQPS)
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:    opts,
		open:    open,
		stats:   stats,
		catalog: catalog,
		logger:  logger,
	}
	s.router = s.setupRouter()
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	s.rateLimiter = NewRateLimiter(s.opts.RateLimitQPS, s.opts.RateBurst)
	r.Use(RateLimitMiddleware(s.rateLimiter))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/classes", s.handleSearch)
		r.Get("/classes/{id}", s.handleDetail)
	})

	return r
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve serves HTTP on ln until Shutdown is called. It returns nil after a
// clean shutdown, including when Shutdown ran first.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting status server", "addr", ln.Addr().String())
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
