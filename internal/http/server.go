package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cashbook/internal/core"
	applog "cashbook/internal/log"
	"cashbook/internal/middleware/ratelimit"
	"cashbook/internal/middleware/security"
	"cashbook/internal/middleware/trace"
)

// Ledger is the part of the ledger service the API exposes.
type Ledger interface {
	CreateExpense(ctx context.Context, draft core.ExpenseDraft) (core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	MoveExpense(ctx context.Context, id, targetDate string) (core.Expense, error)
	ExpenseMoves(ctx context.Context, id string) ([]core.ExpenseMove, error)
	DailyExpenses(ctx context.Context, date string) (core.DailyExpenses, error)
	MonthExpenses(ctx context.Context, year, month int) ([]core.Expense, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	MonthlyExpenseSummary(ctx context.Context, year, month int) ([]core.DaySummary, error)

	SetCashAtHand(ctx context.Context, entry core.CashEntry) (core.CashSnapshot, error)
	GetCashSnapshot(ctx context.Context, date string) (core.CashSnapshot, error)
	CashHistory(ctx context.Context, year, month int) ([]core.CashSnapshot, error)
	ListCashSnapshots(ctx context.Context) ([]core.CashSnapshot, error)

	CreateHoliday(ctx context.Context, draft core.HolidayDraft) (core.Holiday, error)
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]core.Holiday, error)
	YearlyHolidays(ctx context.Context, year int) (core.YearlyHolidays, error)

	BusinessDay(ctx context.Context, date string) (core.BusinessDay, error)
	Ready(ctx context.Context) error
}

type Options struct {
	// RequestsPerMinute bounds writes per client IP.
	RequestsPerMinute int
	// TrustedProxies lists CIDRs allowed to set the client address headers.
	TrustedProxies []string
	Logger         *applog.Logger
	ReadyTimeout   time.Duration
}

type Server struct {
	http.Server
	ledger       Ledger
	limiter      *ratelimit.Limiter
	detector     *security.Detector
	tracer       *trace.Middleware
	readyTimeout time.Duration
	shutdownOnce sync.Once
}

// NewServer wires the ledger API routes and middleware into an http.Server.
func NewServer(addr string, ledger Ledger, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}

	s := &Server{
		ledger:       ledger,
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		detector:     security.NewDetector(),
		readyTimeout: opts.ReadyTimeout,
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			opts.Logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ClientIP, opts.Logger.WithComponent(applog.ComponentHTTP))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.Handle("POST /api/expenses", s.limited(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.Handle("POST /api/expenses/{id}/move", s.limited(s.handleMoveExpense))
	mux.HandleFunc("GET /api/expenses/{id}/moves", s.handleExpenseMoves)

	mux.HandleFunc("GET /api/cash", s.handleGetCash)
	mux.Handle("PUT /api/cash", s.limited(s.handleSetCash))

	mux.HandleFunc("GET /api/holidays", s.handleListHolidays)
	mux.Handle("POST /api/holidays", s.limited(s.handleCreateHoliday))
	mux.Handle("DELETE /api/holidays/{id}", s.limited(s.handleDeleteHoliday))

	mux.HandleFunc("GET /api/calendar/business-day", s.handleBusinessDay)
	mux.HandleFunc("GET /api/reports/expenses.xlsx", s.handleExpenseReport)

	var h http.Handler = mux
	h = applog.Middleware(opts.Logger, trace.RequestID)(h)
	h = s.tracer.Middleware(h)
	h = s.detector.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// limited applies the per-client write budget.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: apiError{
			Code:    "rate_limited",
			Message: "rate limit exceeded, please try again later",
		}})
	})(h)
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()
	if err := s.ledger.Ready(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
