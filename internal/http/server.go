// Package http exposes reports and drill-downs as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/cache"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/core"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/middleware/ratelimit"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/middleware/security"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/middleware/trace"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/report"
)

// ReportService is the part of *report.Engine the server needs.
type ReportService interface {
	GenerateReportAsOf(ctx context.Context, projectID string, fy fiscal.Year, asOf time.Time) (*report.Report, error)
	DrillDownAsOf(ctx context.Context, projectID string, month fiscal.Month, kind core.Kind, asOf time.Time) ([]report.TransactionDetail, error)
	BaseCurrency() string
	Now() time.Time
}

// reportKey identifies one cached report. The as-of day is part of the
// key since it changes which income is recognized.
type reportKey struct {
	projectID string
	year      fiscal.Year
	asOf      string
}

type Options struct {
	Addr               string
	CacheSize          int
	CacheTTL           time.Duration
	// RateLimitPerMinute caps API requests per client; 0 disables it.
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	engine  ReportService
	logger  *log.Logger
	tracer  *trace.Middleware
	limiter *ratelimit.Limiter
	started time.Time

	// Generated reports, including the warnings raised while building them.
	reports *cache.LRUCache[reportKey, *reportResponse]

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(engine ReportService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default(log.ComponentHTTP)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	mux := http.NewServeMux()
	s := &Server{
		engine:  engine,
		logger:  opts.Logger,
		tracer:  trace.NewMiddleware(opts.Logger.WithComponent(log.ComponentTrace)),
		started: time.Now(),
		reports: cache.NewLRUCache[reportKey, *reportResponse](opts.CacheSize, opts.CacheTTL),
	}

	api := func(h http.HandlerFunc) http.Handler { return h }
	if opts.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
		resolver := security.NewIPResolver()
		limit := s.limiter.Middleware(resolver.ClientIP, func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, resolver.ClientIP(r),
				log.FieldPath, r.URL.Path)
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:     "rate limit exceeded",
				RequestID: trace.GetRequestID(r.Context()),
			})
		})
		api = func(h http.HandlerFunc) http.Handler { return limit(h) }
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /api/projects/{id}/reports/{fy}", api(s.handleReport))
	mux.Handle("GET /api/projects/{id}/months/{month}/{kind}", api(s.handleDrillDown))

	var handler http.Handler = mux
	handler = security.Headers(security.DefaultHeadersConfig())(handler)
	handler = log.RequestIDMiddleware(trace.RequestIDFrom)(handler)
	handler = log.Middleware(opts.Logger)(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Cache exposes the report cache so a cache.Manager can expire entries.
func (s *Server) Cache() cache.Cleaner {
	return s.reports
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
		s.reports.Purge()
	})
	return shutdownErr
}
