// Package http exposes the reconciliation engine as a JSON API.
//
// Caller identity is taken from headers set by the upstream session layer;
// every handler resolves it into a scope before touching data.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventfees/internal/amqp"
	"eventfees/internal/core"
	"eventfees/internal/log"
	"eventfees/internal/scope"
	"eventfees/internal/services"
)

// Reconciliation is the scoped engine surface served over HTTP.
type Reconciliation interface {
	Authorize(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID) (core.ScopeKey, error)
	Snapshot(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID) (core.FinancialSnapshot, error)
	EventReport(ctx context.Context, id scope.Identity, eventID core.EventID) (services.EventReport, error)
	ListFundTransfers(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID) ([]core.FundTransfer, error)
	GetFundTransfer(ctx context.Context, id scope.Identity, eventID core.EventID, institutionID core.InstitutionID, transferID core.TransferID) (core.FundTransfer, error)
	ResultLabels(ctx context.Context, id scope.Identity, eventID core.EventID) (core.ResultLabels, error)
}

// RecomputePublisher enqueues recompute requests
type RecomputePublisher interface {
	PublishRecompute(ctx context.Context, msg *amqp.RecomputeMessage) error
}

// Pinger reports whether the data backend can serve queries
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators. Publisher and Gatherer are
// optional: without a publisher recompute requests are refused, without a
// gatherer /metrics is not mounted.
type Options struct {
	Reconciler Reconciliation
	Publisher  RecomputePublisher
	Readiness  Pinger
	Gatherer   prometheus.Gatherer
	Logger     *log.Logger
}

type Server struct {
	http.Server
	reconciler  Reconciliation
	publisher   RecomputePublisher
	readiness   Pinger
	logger      *log.Logger
	access      *log.StructuredLogger
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &Server{
		reconciler:  opts.Reconciler,
		publisher:   opts.Publisher,
		readiness:   opts.Readiness,
		logger:      logger.WithComponent(log.ComponentHTTP),
		access:      log.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(),
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.Gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/events/{eventID}", func(r chi.Router) {
		r.Get("/report", s.handleEventReport)
		r.Get("/result-labels", s.handleResultLabels)

		r.Route("/institutions/{institutionID}", func(r chi.Router) {
			r.Get("/snapshot", s.handleSnapshot)
			r.Get("/fund-transfers", s.handleListFundTransfers)
			r.Get("/fund-transfers/{transferID}", s.handleGetFundTransfer)
			r.With(s.rateLimit).Post("/recompute", s.handleRecompute)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// accessLog logs request start and completion with the captured status.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := clientIP(r)
		s.access.LogHTTPStart(r.Context(), r, clientIP)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.access.LogHTTPEnd(r.Context(), r, status, time.Since(start).Milliseconds(), clientIP)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.readiness.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
