package http

import (
	"strings"
	"time"

	"keuangan/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// today returns the calendar date of now in UTC.
func today(now time.Time) core.Date {
	now = now.UTC()
	return core.NewDate(now.Year(), int(now.Month()), now.Day())
}

type moneyJSON struct {
	Cents   int64  `json:"cents"`
	Decimal string `json:"decimal"`
	Display string `json:"display"`
}

func toMoney(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Decimal: m.Decimal(), Display: m.Rupiah()}
}

type incomeJSON struct {
	Position int       `json:"position"`
	Date     string    `json:"date"`
	Source   string    `json:"source"`
	Amount   moneyJSON `json:"amount"`
}

type expenseJSON struct {
	Position int       `json:"position"`
	Date     string    `json:"date"`
	Name     string    `json:"name"`
	Amount   moneyJSON `json:"amount"`
	Category string    `json:"category"`
}

func toIncomeList(recs []core.IncomeRecord) []incomeJSON {
	out := make([]incomeJSON, len(recs))
	for i, r := range recs {
		out[i] = incomeJSON{Position: i, Date: r.Date.String(), Source: r.Source, Amount: toMoney(r.Amount)}
	}
	return out
}

func toExpenseList(recs []core.ExpenseRecord) []expenseJSON {
	out := make([]expenseJSON, len(recs))
	for i, r := range recs {
		out[i] = expenseJSON{Position: i, Date: r.Date.String(), Name: r.Name, Amount: toMoney(r.Amount), Category: r.Category}
	}
	return out
}

type summaryJSON struct {
	TotalIncome  moneyJSON `json:"total_income"`
	TotalExpense moneyJSON `json:"total_expense"`
	Balance      moneyJSON `json:"balance"`
	// ExpenseRatioPercent is null while there is no income.
	ExpenseRatioPercent *float64     `json:"expense_ratio_percent"`
	LargestExpense      *expenseJSON `json:"largest_expense"`
	IncomeCount         int          `json:"income_count"`
	ExpenseCount        int          `json:"expense_count"`
}

func toSummary(s core.Summary) summaryJSON {
	out := summaryJSON{
		TotalIncome:  toMoney(s.TotalIncome),
		TotalExpense: toMoney(s.TotalExpense),
		Balance:      toMoney(s.Balance),
		IncomeCount:  s.IncomeCount,
		ExpenseCount: s.ExpenseCount,
	}
	if s.RatioDefined {
		ratio := s.ExpenseRatioPercent
		out.ExpenseRatioPercent = &ratio
	}
	if s.LargestExpense != nil {
		r := s.LargestExpense.Record
		out.LargestExpense = &expenseJSON{
			Position: s.LargestExpense.Position,
			Date:     r.Date.String(),
			Name:     r.Name,
			Amount:   toMoney(r.Amount),
			Category: r.Category,
		}
	}
	return out
}

type dateAmountJSON struct {
	Date   string    `json:"date"`
	Amount moneyJSON `json:"amount"`
}

type datePointJSON struct {
	Date    string    `json:"date"`
	Income  moneyJSON `json:"income"`
	Expense moneyJSON `json:"expense"`
}

type categoryJSON struct {
	Category string    `json:"category"`
	Amount   moneyJSON `json:"amount"`
}

func toDateAmounts(in []core.DateAmount) []dateAmountJSON {
	out := make([]dateAmountJSON, len(in))
	for i, p := range in {
		out[i] = dateAmountJSON{Date: p.Date.String(), Amount: toMoney(p.Amount)}
	}
	return out
}

func toDatePoints(in []core.DatePoint) []datePointJSON {
	out := make([]datePointJSON, len(in))
	for i, p := range in {
		out[i] = datePointJSON{Date: p.Date.String(), Income: toMoney(p.Income), Expense: toMoney(p.Expense)}
	}
	return out
}

func toCategories(in []core.CategoryAmount) []categoryJSON {
	out := make([]categoryJSON, len(in))
	for i, c := range in {
		out[i] = categoryJSON{Category: c.Name, Amount: toMoney(c.Amount)}
	}
	return out
}
