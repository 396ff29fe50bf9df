package core

import "testing"

func rp(whole int64) Money { return Money{Cents: whole * 100} }

func TestSummarizeScenario(t *testing.T) {
	income := []IncomeRecord{{Date: NewDate(2025, 1, 1), Source: "gaji", Amount: rp(5_000_000)}}
	expenses := []ExpenseRecord{
		{Date: NewDate(2025, 1, 2), Name: "makan", Amount: rp(50_000), Category: "food"},
		{Date: NewDate(2025, 1, 3), Name: "transport", Amount: rp(200_000), Category: "food"},
	}
	s := Summarize(income, expenses)
	if s.TotalIncome != rp(5_000_000) || s.TotalExpense != rp(250_000) || s.Balance != rp(4_750_000) {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if !s.RatioDefined || s.ExpenseRatioPercent != 5.0 {
		t.Fatalf("unexpected ratio: %v defined=%v", s.ExpenseRatioPercent, s.RatioDefined)
	}
	if s.LargestExpense == nil || s.LargestExpense.Record.Name != "transport" || s.LargestExpense.Position != 1 {
		t.Fatalf("unexpected largest: %+v", s.LargestExpense)
	}
	cats := ExpenseByCategory(expenses)
	if len(cats) != 1 || cats[0].Name != "food" || cats[0].Amount != rp(250_000) {
		t.Fatalf("unexpected categories: %+v", cats)
	}
}

func TestSummarizeEmptyAndZeroIncome(t *testing.T) {
	s := Summarize(nil, nil)
	if s.LargestExpense != nil || s.RatioDefined || s.ExpenseRatioPercent != 0 {
		t.Fatalf("unexpected empty summary: %+v", s)
	}

	s = Summarize(nil, []ExpenseRecord{{Date: NewDate(2025, 1, 1), Name: "x", Amount: rp(500)}})
	if s.RatioDefined || s.ExpenseRatioPercent != 0 {
		t.Fatalf("ratio must be sentinel without income: %+v", s)
	}
	if s.Balance != rp(-500) {
		t.Fatalf("unexpected balance %v", s.Balance)
	}
}

func TestSummarizeTieBreakFirstWins(t *testing.T) {
	expenses := []ExpenseRecord{
		{Date: NewDate(2025, 1, 1), Name: "a", Amount: rp(10)},
		{Date: NewDate(2025, 1, 1), Name: "b", Amount: rp(30)},
		{Date: NewDate(2025, 1, 1), Name: "c", Amount: rp(30)},
	}
	s := Summarize(nil, expenses)
	if s.LargestExpense.Record.Name != "b" || s.LargestExpense.Position != 1 {
		t.Fatalf("expected first max to win, got %+v", s.LargestExpense)
	}
}

func TestMergeDateSeriesOuterJoin(t *testing.T) {
	income := IncomeByDate([]IncomeRecord{
		{Date: NewDate(2025, 1, 1), Amount: rp(100)},
		{Date: NewDate(2025, 1, 1), Amount: rp(50)},
		{Date: NewDate(2025, 1, 5), Amount: rp(10)},
	})
	expense := ExpenseByDate([]ExpenseRecord{
		{Date: NewDate(2025, 1, 3), Amount: rp(20)},
		{Date: NewDate(2025, 1, 5), Amount: rp(5)},
	})
	if len(income) != 2 || income[0].Amount != rp(150) {
		t.Fatalf("unexpected income series: %+v", income)
	}
	merged := MergeDateSeries(income, expense)
	want := []struct {
		day           int
		income, spend int64
	}{{1, 150, 0}, {3, 0, 20}, {5, 10, 5}}
	if len(merged) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(merged))
	}
	for i, w := range want {
		p := merged[i]
		if p.Date.Day() != w.day || p.Income != rp(w.income) || p.Expense != rp(w.spend) {
			t.Fatalf("point %d: got %+v", i, p)
		}
	}
}

func TestDenseMonth(t *testing.T) {
	points := []DatePoint{
		{Date: NewDate(2025, 2, 3), Income: rp(7)},
		{Date: NewDate(2025, 3, 1), Expense: rp(9)}, // other month, ignored
	}
	dense := DenseMonth(points, 2025, 2)
	if len(dense) != 28 {
		t.Fatalf("expected 28 days, got %d", len(dense))
	}
	if dense[2].Income != rp(7) || dense[0].Income.Cents != 0 || dense[27].Date.Day() != 28 {
		t.Fatalf("unexpected dense axis: %+v", dense[:3])
	}
}
