package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"keuangan/internal/core"
	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
	"keuangan/internal/metrics"
	"keuangan/internal/middleware/ratelimit"
	"keuangan/internal/middleware/security"
	"keuangan/internal/middleware/trace"
	appweb "keuangan/web"
)

// Ledger is the part of the ledger engine the HTTP layer drives.
type Ledger interface {
	AppendIncome(ctx context.Context, date core.Date, source string, amount core.Money) ([]core.IncomeRecord, error)
	AppendExpense(ctx context.Context, date core.Date, name string, amount core.Money, category string) ([]core.ExpenseRecord, error)
	DeleteIncome(ctx context.Context, pos int) ([]core.IncomeRecord, error)
	DeleteExpense(ctx context.Context, pos int) ([]core.ExpenseRecord, error)
	ClearExpenses(ctx context.Context) error
	Flush(ctx context.Context) error
	Dirty() bool
	Unreadable() []string

	Tables() ledger.Tables
	Summarize() core.Summary
	SeriesByDate() ledger.DateSeries
	DailySeries(year, month int) []core.DatePoint
	SeriesByCategory() []core.CategoryAmount
	View(year, month int) ledger.View
}

var _ Ledger = (*ledger.Engine)(nil)

// Options tune the server. Zero values are usable.
type Options struct {
	RateLimitPerMinute int
	// Metrics enables /metrics and per-route request metrics when set.
	Metrics *metrics.Registry
	Logger  *applog.Logger
	Now     func() time.Time
}

type Server struct {
	http.Server
	ledger    Ledger
	templates *template.Template
	metrics   *metrics.Registry
	limiter   *ratelimit.Limiter
	clientIP  *security.ClientIP
	logger    *applog.Logger
	now       func() time.Time
	started   time.Time
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, l Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		ledger:   l,
		metrics:  opts.Metrics,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		clientIP: security.NewClientIP(),
		logger:   opts.Logger.WithComponent(applog.ComponentHTTP),
		now:      opts.Now,
		started:  opts.Now(),
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	var observe trace.Observer
	if s.metrics != nil {
		observe = s.metrics.ObserveHTTP
	}
	tracer := trace.NewMiddleware(s.logger, s.clientIP.Extract, observe)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           headers.Middleware(tracer.Middleware(s.routes())),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("GET /api/income", s.handleListIncome)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/series/date", s.handleSeriesByDate)
	mux.HandleFunc("GET /api/series/category", s.handleSeriesByCategory)

	mux.Handle("POST /api/income", s.limited(s.handleCreateIncome))
	mux.Handle("DELETE /api/income/{pos}", s.limited(s.handleDeleteIncome))
	mux.Handle("POST /api/expenses", s.limited(s.handleCreateExpense))
	mux.Handle("DELETE /api/expenses/{pos}", s.limited(s.handleDeleteExpense))
	mux.Handle("DELETE /api/expenses", s.limited(s.handleClearExpenses))
	mux.Handle("POST /api/flush", s.limited(s.handleFlush))

	// Dashboard forms redirect back to the dashboard.
	mux.Handle("POST /income", s.limited(s.handleFormIncome))
	mux.Handle("POST /income/{pos}/delete", s.limited(s.handleFormDeleteIncome))
	mux.Handle("POST /expenses", s.limited(s.handleFormExpense))
	mux.Handle("POST /expenses/{pos}/delete", s.limited(s.handleFormDeleteExpense))
	mux.Handle("POST /expenses/clear", s.limited(s.handleFormClearExpenses))
	mux.Handle("POST /flush", s.limited(s.handleFormFlush))

	return mux
}

// limited applies per-IP rate limiting. Only mutations are limited.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return s.limiter.Middleware(s.clientIP.Extract, s.onRateLimited)(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.RateLimited.Inc()
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clientIP.Extract(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}
