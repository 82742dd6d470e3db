package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/middleware/trace"
	"cashflow/internal/storage"
)

// ForecastService is what the API needs from the forecasting pipeline.
// *services.ForecastService implements it.
type ForecastService interface {
	Generate(ctx context.Context, currency string) (core.ProjectionResult, error)
	Latest(ctx context.Context) (core.ProjectionResult, bool)
	Inspect(ctx context.Context) (storage.LoadOutcome, error)
	HistoricalYearly(ctx context.Context, currency string) ([]core.HistoricalYear, error)
	InProgress() bool
	DefaultCurrency() string
}

// Options tunes the server. Zero values fall back to defaults.
type Options struct {
	// GenerateLimit caps POST /api/forecast per client and minute.
	GenerateLimit int
	ReadyTimeout  time.Duration
}

type Server struct {
	http.Server
	svc        ForecastService
	logger     *log.StructuredLogger
	limiter    *ratelimit.Limiter
	trace      *trace.Middleware
	readyLimit time.Duration
	started    time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc ForecastService, logger *log.Logger, opts Options) *Server {
	if opts.GenerateLimit <= 0 {
		opts.GenerateLimit = 6
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)
	resolver := security.NewClientIPResolver()

	s := &Server{
		svc:        svc,
		logger:     log.NewStructuredLogger(httpLogger),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{Requests: opts.GenerateLimit, Window: time.Minute}),
		trace:      trace.NewMiddleware(httpLogger, resolver.ClientIP),
		readyLimit: opts.ReadyTimeout,
		started:    time.Now(),
	}

	limited := s.limiter.Middleware(resolver.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, resolver.ClientIP(r),
			log.FieldComponent, log.ComponentRateLimit)
		TooManyRequestsError().Write(w)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("POST /api/forecast", limited(http.HandlerFunc(s.handleGenerate)))
	mux.HandleFunc("GET /api/forecast", s.handleLatest)
	mux.HandleFunc("GET /api/forecast/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	// POST /api/forecast trains both models before replying.
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.trace.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
