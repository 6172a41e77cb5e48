package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"tradejoy/internal/core"
	"tradejoy/internal/intent"
	"tradejoy/internal/ledger"
	"tradejoy/internal/log"
	"tradejoy/internal/middleware/ratelimit"
	"tradejoy/internal/middleware/security"
	"tradejoy/internal/middleware/trace"
)

// Ledger is the part of the ledger controller the API drives.
type Ledger interface {
	Record(ctx context.Context, e core.Entry) (core.Transaction, error)
	Delete(ctx context.Context, id int64) (core.Transaction, error)
	List(limit int) []core.Transaction
	Totals() core.Totals
	Daily(days int) []core.DailyTotals
	SalesByCategory() []core.CategoryAmount
	Profile() core.Profile
	UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error)
}

// Options wires the server's collaborators. Voice defaults to the ledger
// interpreter with the built-in keywords, Commands to the trading one.
type Options struct {
	Ledger             Ledger
	Voice              *intent.Interpreter
	Commands           *intent.Interpreter
	Coach              ledger.Coach
	Logger             *log.Logger
	RateLimitPerMinute int
	Clock              func() time.Time
	// Ready reports whether dependencies such as the journal are usable.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server

	ledger   Ledger
	voice    *intent.Interpreter
	commands *intent.Interpreter
	coach    ledger.Coach
	logger   *log.Logger
	clock    func() time.Time
	ready    func(ctx context.Context) error

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Voice == nil {
		opts.Voice = intent.NewLedger(intent.DefaultKeywords())
	}
	if opts.Commands == nil {
		opts.Commands = intent.NewTrading()
	}
	if opts.Coach == (ledger.Coach{}) {
		opts.Coach = ledger.DefaultCoach()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		ledger:   opts.Ledger,
		voice:    opts.Voice,
		commands: opts.Commands,
		coach:    opts.Coach,
		logger:   logger,
		clock:    opts.Clock,
		ready:    opts.Ready,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.Handle("POST /api/transactions", s.limited(s.handleCreateTransaction))
	mux.Handle("DELETE /api/transactions/{id}", s.limited(s.handleDeleteTransaction))
	mux.Handle("POST /api/voice-command", s.limited(s.handleVoiceCommand))
	mux.Handle("POST /api/interpret", s.limited(s.handleInterpret))
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/coach-tip", s.handleCoachTip)
	mux.HandleFunc("GET /api/analytics", s.handleAnalytics)
	mux.HandleFunc("GET /api/export.xlsx", s.handleExport)
	mux.HandleFunc("GET /api/profile", s.handleGetProfile)
	mux.Handle("POST /api/profile", s.limited(s.handleUpdateProfile))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var h http.Handler = security.NoStore(mux)
	h = headers.Middleware(h)
	h = s.tracer.Middleware(h)
	h = detector.Middleware(opts.Logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// limited applies the per-client write rate limit.
func (s *Server) limited(next http.HandlerFunc) http.Handler {
	rlLogger := s.logger.WithComponent(log.ComponentRateLimit)
	return s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		rlLogger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})(next)
}

// requestLogger returns the request-scoped logger set by the trace
// middleware, falling back to the server logger.
func (s *Server) requestLogger(r *http.Request) *log.Logger {
	if l, ok := log.Lookup(r.Context()); ok {
		return l.WithComponent(log.ComponentHTTP)
	}
	return s.logger
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.requestLogger(r).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
