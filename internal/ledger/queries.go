package ledger

import "keuangan/internal/core"

// DateSeries holds per-date sums for each collection, ascending by date.
type DateSeries struct {
	Income  []core.DateAmount
	Expense []core.DateAmount
}

// Merged outer-joins both series on date, counting missing sides as zero.
func (s DateSeries) Merged() []core.DatePoint {
	return core.MergeDateSeries(s.Income, s.Expense)
}

// Summarize recomputes totals, ratio and largest expense.
func (e *Engine) Summarize() core.Summary {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return core.Summarize(e.income, e.expenses)
}

// SeriesByDate groups both collections by date.
func (e *Engine) SeriesByDate() DateSeries {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return DateSeries{
		Income:  core.IncomeByDate(e.income),
		Expense: core.ExpenseByDate(e.expenses),
	}
}

// DailySeries returns the merged chart series on a dense day-1..N axis for
// one month.
func (e *Engine) DailySeries(year, month int) []core.DatePoint {
	return core.DenseMonth(e.SeriesByDate().Merged(), year, month)
}

// SeriesByCategory groups expenses by category, ascending by name.
func (e *Engine) SeriesByCategory() []core.CategoryAmount {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return core.ExpenseByCategory(e.expenses)
}

// View is everything the dashboard renders, taken from one state.
type View struct {
	Tables
	Summary    core.Summary
	Categories []core.CategoryAmount
	// Daily is the dense day-1..N series of the requested month.
	Daily      []core.DatePoint
	Dirty      bool
	Unreadable []string
}

// View computes the tables, aggregates and one month's daily series under a
// single read lock, so a concurrent write cannot split them.
func (e *Engine) View(year, month int) View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	merged := core.MergeDateSeries(core.IncomeByDate(e.income), core.ExpenseByDate(e.expenses))
	return View{
		Tables:     e.tablesLocked(),
		Summary:    core.Summarize(e.income, e.expenses),
		Categories: core.ExpenseByCategory(e.expenses),
		Daily:      core.DenseMonth(merged, year, month),
		Dirty:      e.dirty,
		Unreadable: e.unreadableNames(),
	}
}
