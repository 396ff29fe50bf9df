package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// DateAmount is one point of a single-collection date series.
type DateAmount struct {
	Date   Date
	Amount Money
}

// DatePoint is one point of the merged income/expense chart.
type DatePoint struct {
	Date    Date
	Income  Money
	Expense Money
}

// IndexedExpense pairs an expense with its current position.
type IndexedExpense struct {
	Position int
	Record   ExpenseRecord
}

// Summary holds the aggregates shown under the ledger tables.
type Summary struct {
	TotalIncome  Money
	TotalExpense Money
	Balance      Money
	// ExpenseRatioPercent is 0 when RatioDefined is false (no income yet).
	ExpenseRatioPercent float64
	RatioDefined        bool
	// LargestExpense is nil when there are no expenses.
	LargestExpense *IndexedExpense
	IncomeCount    int
	ExpenseCount   int
}

// Summarize computes totals, the expense ratio and the largest expense.
// Ties on the largest amount resolve to the lowest position.
func Summarize(income []IncomeRecord, expenses []ExpenseRecord) Summary {
	s := Summary{IncomeCount: len(income), ExpenseCount: len(expenses)}
	for _, r := range income {
		s.TotalIncome = s.TotalIncome.Add(r.Amount)
	}
	for i, r := range expenses {
		s.TotalExpense = s.TotalExpense.Add(r.Amount)
		if s.LargestExpense == nil || r.Amount.Cents > s.LargestExpense.Record.Amount.Cents {
			s.LargestExpense = &IndexedExpense{Position: i, Record: r}
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	if s.TotalIncome.Cents > 0 {
		s.RatioDefined = true
		s.ExpenseRatioPercent = float64(s.TotalExpense.Cents) / float64(s.TotalIncome.Cents) * 100
	}
	return s
}

// IncomeByDate sums income amounts per date, ascending by date.
func IncomeByDate(income []IncomeRecord) []DateAmount {
	acc := make(map[time.Time]int64)
	for _, r := range income {
		acc[r.Date.Time] += r.Amount.Cents
	}
	return sortedDateAmounts(acc)
}

// ExpenseByDate sums expense amounts per date, ascending by date.
func ExpenseByDate(expenses []ExpenseRecord) []DateAmount {
	acc := make(map[time.Time]int64)
	for _, r := range expenses {
		acc[r.Date.Time] += r.Amount.Cents
	}
	return sortedDateAmounts(acc)
}

// ExpenseByCategory sums expense amounts per category, ascending by name.
func ExpenseByCategory(expenses []ExpenseRecord) []CategoryAmount {
	acc := make(map[string]int64)
	for _, r := range expenses {
		acc[r.Category] += r.Amount.Cents
	}
	out := make([]CategoryAmount, 0, len(acc))
	for name, cents := range acc {
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MergeDateSeries outer-joins the two series on date; a date missing from
// one side counts as zero there.
func MergeDateSeries(income, expense []DateAmount) []DatePoint {
	acc := make(map[time.Time]*DatePoint)
	point := func(d Date) *DatePoint {
		p, ok := acc[d.Time]
		if !ok {
			p = &DatePoint{Date: d}
			acc[d.Time] = p
		}
		return p
	}
	for _, a := range income {
		p := point(a.Date)
		p.Income = p.Income.Add(a.Amount)
	}
	for _, a := range expense {
		p := point(a.Date)
		p.Expense = p.Expense.Add(a.Amount)
	}
	out := make([]DatePoint, 0, len(acc))
	for _, p := range acc {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Time.Before(out[j].Date.Time) })
	return out
}

// DenseMonth lays the merged points onto a day-1..N axis for one month,
// filling days without records with zeros. Points outside the month are ignored.
func DenseMonth(points []DatePoint, year, month int) []DatePoint {
	days := DaysIn(year, month)
	out := make([]DatePoint, days)
	for i := range out {
		out[i].Date = NewDate(year, month, i+1)
	}
	for _, p := range points {
		if p.Date.Year() != year || int(p.Date.Month()) != month {
			continue
		}
		slot := &out[p.Date.Day()-1]
		slot.Income = slot.Income.Add(p.Income)
		slot.Expense = slot.Expense.Add(p.Expense)
	}
	return out
}

func sortedDateAmounts(acc map[time.Time]int64) []DateAmount {
	out := make([]DateAmount, 0, len(acc))
	for t, cents := range acc {
		out = append(out, DateAmount{Date: Date{Time: t}, Amount: Money{Cents: cents}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Time.Before(out[j].Date.Time) })
	return out
}
