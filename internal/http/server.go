package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"parcelas/internal/cache"
	"parcelas/internal/core"
	applog "parcelas/internal/log"
	"parcelas/internal/middleware/ratelimit"
	"parcelas/internal/middleware/security"
	"parcelas/internal/middleware/trace"
)

// Ledger is the application surface the API serves.
type Ledger interface {
	CreateMovement(ctx context.Context, ownerID string, req core.MovementRequest) ([]core.Entry, error)
	ListEntries(ctx context.Context, ownerID string, from, to core.Date) ([]core.Entry, error)
	DeleteEntry(ctx context.Context, ownerID, entryID string) error

	CategoryStats(ctx context.Context, ownerID string, from, to core.Date) ([]core.CategoryStat, error)
	BalanceStats(ctx context.Context, ownerID string, from, to core.Date) (core.BalanceStats, error)
	Overview(ctx context.Context, ownerID string, from, to core.Date) (core.Overview, error)
	PeriodSeries(ctx context.Context, ownerID string, tf core.Timeframe, p core.Period) ([]core.HistoryPoint, error)
	DistinctYears(ctx context.Context, ownerID string) ([]int, error)

	ListCategories(ctx context.Context, ownerID string, typ core.TransactionType) ([]core.Category, error)
	CreateCategory(ctx context.Context, ownerID string, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, ownerID, categoryID string) error

	ListResponsibles(ctx context.Context) ([]core.Responsible, error)
	CreateResponsible(ctx context.Context, r core.Responsible) (core.Responsible, error)
	DeleteResponsible(ctx context.Context, id string) error

	GetSettings(ctx context.Context, ownerID string) (core.UserSettings, error)
	UpdateSettings(ctx context.Context, ownerID string, us core.UserSettings) (core.UserSettings, error)

	Ping(ctx context.Context) error
}

// Options tune the server; zero values fall back to defaults.
type Options struct {
	UserHeader         string
	RateLimitPerMinute int
	Logger             *applog.Logger
	Caches             *cache.Manager
}

type Server struct {
	http.Server
	ledger     Ledger
	userHeader string
	logger     *applog.Logger
	caches     *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	startedAt        time.Time
	now              func() time.Time
	movementsCreated atomic.Int64

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	if opts.UserHeader == "" {
		opts.UserHeader = "X-User-ID"
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}

	detector := security.NewDetector()
	s := &Server{
		ledger:           ledger,
		userHeader:       opts.UserHeader,
		logger:           opts.Logger.WithComponent(applog.ComponentHTTP),
		caches:           opts.Caches,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, opts.Logger),
		startedAt:        time.Now(),
		now:              time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/movements", s.withOwner(s.handleCreateMovement))
	mux.HandleFunc("GET /api/transactions", s.withOwner(s.handleListTransactions))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withOwner(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/stats/categories", s.withOwner(s.handleCategoryStats))
	mux.HandleFunc("GET /api/stats/balance", s.withOwner(s.handleBalanceStats))
	mux.HandleFunc("GET /api/overview", s.withOwner(s.handleOverview))
	mux.HandleFunc("GET /api/history-data", s.withOwner(s.handleHistoryData))
	mux.HandleFunc("GET /api/history-periods", s.withOwner(s.handleHistoryPeriods))

	mux.HandleFunc("GET /api/categories", s.withOwner(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.withOwner(s.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.withOwner(s.handleDeleteCategory))

	mux.HandleFunc("GET /api/responsibles", s.withOwner(s.handleListResponsibles))
	mux.HandleFunc("POST /api/responsibles", s.withOwner(s.handleCreateResponsible))
	mux.HandleFunc("DELETE /api/responsibles/{id}", s.withOwner(s.handleDeleteResponsible))

	mux.HandleFunc("GET /api/settings", s.withOwner(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", s.withOwner(s.handleUpdateSettings))

	// Outermost first: trace, headers, detection, then write rate limiting.
	var handler http.Handler = mux
	handler = applog.ComponentMiddleware(applog.ComponentHTTP)(handler)
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, ratelimit.WritesOnly, s.handleRateLimited)(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
}
