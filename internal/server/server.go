// Package server implements the regcat query server. Each accepted
// connection is served by its own goroutine, which reads one request, opens
// its own read-only catalog engine, answers, and closes the connection.
// Handlers share no mutable state beyond atomic counters, and a panic or
// slow request in one handler never blocks the accept loop or other handlers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/wesm/regcat/internal/query"
	"github.com/wesm/regcat/internal/wire"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Opener opens a fresh catalog engine for one request. The server closes it
// when the request is done.
type Opener func(ctx context.Context) (query.Engine, error)

// Options configures a Server.
type Options struct {
	Addr          string        // listen address, e.g. ":5500"
	Delay         time.Duration // CPU time burned before answering each request
	MaxConcurrent int64         // handlers doing work at once; 0 means 64
	RateLimitQPS  float64       // requests per second across all connections; 0 disables
	ReadTimeout   time.Duration // bound on receiving the request; 0 means 10s
	WriteTimeout  time.Duration // bound on sending the response; 0 means 10s
}

// Stats is a snapshot of server counters.
type Stats struct {
	Accepted  int64 `json:"accepted"`
	InFlight  int64 `json:"in_flight"`
	Searches  int64 `json:"searches"`
	Details   int64 `json:"details"`
	NotFound  int64 `json:"not_found"`
	Failures  int64 `json:"failures"`
	Malformed int64 `json:"malformed"`
	Panics    int64 `json:"panics"`
}

// Server accepts connections and dispatches them to isolated handlers.
type Server struct {
	opts    Options
	open    Opener
	logger  *slog.Logger
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	accepted  atomic.Int64
	inFlight  atomic.Int64
	searches  atomic.Int64
	details   atomic.Int64
	notFound  atomic.Int64
	failures  atomic.Int64
	malformed atomic.Int64
	panics    atomic.Int64

	wg sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
}

// New creates a server. open is called once per request.
func New(opts Options, open Opener, logger *slog.Logger) *Server {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 64
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		opts:   opts,
		open:   open,
		logger: logger,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
	}
	if opts.RateLimitQPS > 0 {
		burst := int(opts.RateLimitQPS)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitQPS), burst)
	}
	return s
}

// ListenAndServe listens on the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Addr returns the listener address once serving has started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections on ln until ctx is done, then closes ln and waits
// for in-flight handlers. It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.Info("listening", "addr", ln.Addr().String(), "delay", s.opts.Delay, "max_concurrent", s.opts.MaxConcurrent)

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("shutting down, waiting for handlers", "in_flight", s.inFlight.Load())
				s.wg.Wait()
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				s.logger.Warn("accept error, retrying", "error", err, "backoff", backoff)
				time.Sleep(backoff)
				continue
			}
			s.wg.Wait()
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		s.accepted.Add(1)

		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}

// Stats returns a snapshot of the server counters.
func (s *Server) Stats() Stats {
	return Stats{
		Accepted:  s.accepted.Load(),
		InFlight:  s.inFlight.Load(),
		Searches:  s.searches.Load(),
		Details:   s.details.Load(),
		NotFound:  s.notFound.Load(),
		Failures:  s.failures.Load(),
		Malformed: s.malformed.Load(),
		Panics:    s.panics.Load(),
	}
}

// handleConn serves exactly one request on conn and closes it.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log := s.logger.With("conn", uuid.NewString(), "remote", conn.RemoteAddr().String())
	log.Debug("accepted connection")

	if err := s.sem.Acquire(ctx, 1); err != nil {
		log.Warn("dropping connection during shutdown")
		return
	}
	defer s.sem.Release(1)

	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	start := time.Now()
	resp, ok := s.process(ctx, conn, log)
	if !ok {
		return
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		log.Warn("set write deadline", "error", err)
	}
	err := wire.WriteResponse(conn, resp)
	var pe *wire.ProtocolError
	if errors.As(err, &pe) {
		// Refused before any byte was sent, so the client can still get an answer.
		resp = s.failure(log, eris.Wrap(err, "encode response"))
		err = wire.WriteResponse(conn, resp)
	}
	if err != nil {
		log.Warn("write response, dropping connection", "error", err)
		return
	}
	log.Debug("wrote response", "success", resp.Success, "duration", time.Since(start))
}

// process reads and answers one request. ok is false when no response
// should be written because the request never arrived.
func (s *Server) process(ctx context.Context, conn net.Conn, log *slog.Logger) (resp wire.Response, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.failures.Add(1)
			log.Error("handler panic", "panic", fmt.Sprint(r))
			resp, ok = wire.FailureResponse(wire.KindServiceError, wire.ServiceErrorMessage), true
		}
	}()

	if err := conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
		log.Warn("set read deadline", "error", err)
	}
	req, err := wire.ReadRequest(conn)
	if err != nil {
		s.malformed.Add(1)
		if errors.Is(err, wire.ErrTruncated) {
			log.Warn("client closed before sending a request", "error", err)
			return wire.Response{}, false
		}
		log.Warn("malformed request", "error", err)
		return wire.FailureResponse(wire.KindServiceError, wire.ServiceErrorMessage), true
	}
	log = log.With("request", req.String())
	log.Info("received request")

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return s.failure(log, eris.Wrap(err, "rate limit wait")), true
		}
	}

	consumeCPU(ctx, s.opts.Delay)

	engine, err := s.open(ctx)
	if err != nil {
		return s.failure(log, err), true
	}
	defer engine.Close()

	if req.IsSearch {
		s.searches.Add(1)
		rows, err := engine.Summaries(ctx, query.BuildCondition(req.Criteria))
		if err != nil {
			return s.failure(log, err), true
		}
		return wire.SearchSuccess(rows), true
	}

	s.details.Add(1)
	detail, err := engine.Detail(ctx, req.ClassID)
	if err != nil {
		return s.failure(log, err), true
	}
	if detail == nil {
		return s.failure(log, eris.Errorf("engine returned no detail for class %d", req.ClassID)), true
	}
	return wire.DetailSuccess(detail), true
}

// failure converts err into a response. Lookup misses keep their message;
// everything else is logged in full and answered with the generic message.
func (s *Server) failure(log *slog.Logger, err error) wire.Response {
	var nf *query.NotFoundError
	if errors.As(err, &nf) {
		s.notFound.Add(1)
		log.Info("class not found", "class_id", nf.ClassID)
		return wire.FailureResponse(wire.KindNotFound, nf.Error())
	}
	s.failures.Add(1)
	log.Error("request failed", "error", eris.ToString(err, true))
	return wire.FailureResponse(wire.KindServiceError, wire.ServiceErrorMessage)
}

// consumeCPU keeps the calling goroutine busy for d. It simulates an
// expensive request without holding anything another connection needs.
func consumeCPU(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return
		}
	}
}
