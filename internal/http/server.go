// Package http serves the dashboard JSON API, the websocket push endpoint
// and the operational probes.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"qcdash/internal/aggregate"
	"qcdash/internal/cache"
	"qcdash/internal/core"
	qclog "qcdash/internal/log"
	"qcdash/internal/middleware/ratelimit"
	"qcdash/internal/middleware/security"
	"qcdash/internal/middleware/trace"
	"qcdash/internal/services"
)

// DashboardReader is the read side of the snapshot.
type DashboardReader interface {
	Dashboard(filter core.FilterSpec) aggregate.Dashboard
	FilterOptions() aggregate.FilterOptions
	Records() []core.InspectionRecord
	Record(id string) (core.InspectionRecord, bool)
	Refresh(ctx context.Context) (services.Status, error)
	Status() services.Status
}

// InspectionWriter forwards writes upstream.
type InspectionWriter interface {
	Create(ctx context.Context, rec core.InspectionRecord) (core.InspectionRecord, error)
	Update(ctx context.Context, id string, rec core.InspectionRecord) (core.InspectionRecord, error)
	Delete(ctx context.Context, id string) error
}

// PushHub upgrades /ws connections and reports how many are open.
type PushHub interface {
	http.Handler
	Clients() int
}

// CacheStats exposes view cache counters for /metrics.
type CacheStats interface {
	Stats() cache.Stats
}

// EventStats exposes push event counters for /metrics.
type EventStats interface {
	Stats() (processed, failed int64)
}

// Options configures NewServer. Dashboard and Inspections are required.
type Options struct {
	Addr           string
	Dashboard      DashboardReader
	Inspections    InspectionWriter
	Hub            PushHub
	Views          CacheStats
	Events         EventStats
	Logger         *qclog.Logger
	TrustedProxies []string
	RateLimit      ratelimit.Config
	// AMQPEnabled is reported by /readyz.
	AMQPEnabled bool
}

// Server is the HTTP front of the dashboard.
type Server struct {
	http.Server

	dashboard   DashboardReader
	inspections InspectionWriter
	hub         PushHub
	views       CacheStats
	events      EventStats
	logger      *qclog.Logger
	structured  *qclog.StructuredLogger
	amqpEnabled bool
	started     time.Time

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer builds the mux and middleware chain.
func NewServer(opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = qclog.New(qclog.DefaultConfig())
	}
	httpLogger := logger.WithComponent(qclog.ComponentHTTP)

	detector, err := security.NewDetector(opts.TrustedProxies,
		logger.WithComponent(qclog.ComponentSecurity).Slog())
	if err != nil {
		return nil, err
	}

	s := &Server{
		dashboard:   opts.Dashboard,
		inspections: opts.Inspections,
		hub:         opts.Hub,
		views:       opts.Views,
		events:      opts.Events,
		logger:      httpLogger,
		structured:  qclog.NewStructuredLogger(httpLogger),
		amqpEnabled: opts.AMQPEnabled,
		started:     time.Now(),
		detector:    detector,
		rateLimiter: ratelimit.NewLimiter(opts.RateLimit),
		tracer:      trace.NewMiddleware(detector.ExtractClientIP, httpLogger),
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	api := http.NewServeMux()
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("GET /api/filters", s.handleFilters)
	api.HandleFunc("GET /api/inspections", s.handleListInspections)
	api.HandleFunc("GET /api/inspections/{id}", s.handleGetInspection)
	api.HandleFunc("POST /api/inspections", s.handleCreateInspection)
	api.HandleFunc("PUT /api/inspections/{id}", s.handleUpdateInspection)
	api.HandleFunc("DELETE /api/inspections/{id}", s.handleDeleteInspection)
	api.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.Handle("/api/", security.NoStore(api))

	if s.hub != nil {
		mux.Handle("GET /ws", s.hub)
	}
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly,
		func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		})

	// Outermost first.
	return chain(mux,
		s.detector.Middleware,
		security.Headers,
		s.tracer.Middleware,
		qclog.Middleware(s.logger),
		qclog.RequestIDMiddleware(trace.GetRequestID),
		limited,
	)
}

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Shutdown stops accepting requests and releases background resources.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", qclog.FieldOperation, qclog.OpShutdown)
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
