package http

import (
	"fmt"
	"html/template"
	"net/http"

	"keuangan/internal/core"
	applog "keuangan/internal/log"
)

var templateFuncs = template.FuncMap{
	"rupiah": func(m core.Money) string { return m.Rupiah() },
	"percent": func(f float64) string {
		return fmt.Sprintf("%.2f%%", f)
	},
	// share is the width of a bar relative to top, in whole percent.
	"share": func(part, top core.Money) int {
		if top.Cents <= 0 {
			return 0
		}
		return int(part.Cents * 100 / top.Cents)
	},
}

type dashboardData struct {
	Year       int
	Month      int
	Income     []core.IncomeRecord
	Expenses   []core.ExpenseRecord
	Summary    core.Summary
	Categories []core.CategoryAmount
	Daily      []core.DatePoint
	// DailyMax scales the daily bars.
	DailyMax   core.Money
	Durable    bool
	Unreadable []string
	// Notice is the outcome of the last form post, if any.
	Notice string
}

// handleIndex renders the dashboard: both tables, the summary and the
// current month's chart data.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	params, err := ParseMonthParams(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !params.Set {
		now := s.now().UTC()
		params = MonthParams{Year: now.Year(), Month: int(now.Month()), Set: true}
	}

	view := s.ledger.View(params.Year, params.Month)
	data := dashboardData{
		Year:       params.Year,
		Month:      params.Month,
		Income:     view.Income,
		Expenses:   view.Expenses,
		Summary:    view.Summary,
		Categories: view.Categories,
		Daily:      view.Daily,
		Durable:    !view.Dirty,
		Unreadable: view.Unreadable,
		Notice:     formNotices[r.URL.Query().Get("status")],
	}
	for _, p := range data.Daily {
		if p.Income.Cents > data.DailyMax.Cents {
			data.DailyMax = p.Income
		}
		if p.Expense.Cents > data.DailyMax.Cents {
			data.DailyMax = p.Expense
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Index template execution failed",
			applog.FieldError, err,
			"template", "index.html")
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}
