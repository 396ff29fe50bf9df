package http

import (
	"net/http"
	"strings"
	"time"

	applog "keuangan/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the server can take writes durably. A dirty
// ledger means the last persist failed and the store is behind memory; an
// unreadable table means writes are refused until it reads again.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch unreadable := s.ledger.Unreadable(); {
	case s.ledger.Dirty():
		checks["store"] = "dirty: last persist failed"
		status, code = "not_ready", http.StatusServiceUnavailable
	case len(unreadable) > 0:
		checks["store"] = "unreadable: " + strings.Join(unreadable, ", ")
		status, code = "not_ready", http.StatusServiceUnavailable
	default:
		checks["store"] = "ok"
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
	}).Write(w)
}

// handleFlush retries persisting after a failed write.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Flush(r.Context()); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Ledger flush failed",
			applog.FieldOperation, applog.OpPersist,
			applog.FieldError, err)
		LedgerError(err, nil).Write(w)
		return
	}
	NewJSONResponse().Body(map[string]any{"durable": true}).Write(w)
}

// handleLedger returns both tables with their current positions.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	t := s.ledger.Tables()
	NewJSONResponse().Body(map[string]any{
		"income":   toIncomeList(t.Income),
		"expenses": toExpenseList(t.Expenses),
		"durable":  !s.ledger.Dirty(),
	}).Write(w)
}

// handleSummary returns the aggregates, recomputed on every call.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(toSummary(s.ledger.Summarize())).Write(w)
}

// handleSeriesByDate returns the per-date series. With year and month it
// returns the dense daily axis of that month instead.
func (s *Server) handleSeriesByDate(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if params.Set {
		NewJSONResponse().Body(map[string]any{
			"year":   params.Year,
			"month":  params.Month,
			"points": toDatePoints(s.ledger.DailySeries(params.Year, params.Month)),
		}).Write(w)
		return
	}

	series := s.ledger.SeriesByDate()
	NewJSONResponse().Body(map[string]any{
		"income":  toDateAmounts(series.Income),
		"expense": toDateAmounts(series.Expense),
		"merged":  toDatePoints(series.Merged()),
	}).Write(w)
}

// handleSeriesByCategory returns expense sums per category.
func (s *Server) handleSeriesByCategory(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"categories": toCategories(s.ledger.SeriesByCategory()),
	}).Write(w)
}
