package storage

import (
	"context"
	"path/filepath"
	"testing"

	"keuangan/internal/core"
	"keuangan/internal/ledger"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "ledger.db")
	repo, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func TestSQLiteRepository_EmptyLoad(t *testing.T) {
	repo, _ := newTestRepo(t)
	snap, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Income) != 0 || len(snap.Expenses) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSQLiteRepository_SaveReplacesTables(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepo(t)

	first := ledger.Snapshot{
		Income: []core.IncomeRecord{
			{Date: core.NewDate(2025, 1, 1), Source: "gaji", Amount: core.Money{Cents: 500_000_000}},
			{Date: core.NewDate(2025, 1, 15), Source: "bonus", Amount: core.Money{Cents: 1}},
		},
		Expenses: []core.ExpenseRecord{
			{Date: core.NewDate(2025, 1, 2), Name: "makan", Amount: core.Money{Cents: 5_000_000}, Category: "food"},
		},
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}

	second := ledger.Snapshot{
		Income: first.Income[1:],
		Expenses: []core.ExpenseRecord{
			{Date: core.NewDate(2025, 1, 3), Name: "transport", Amount: core.Money{Cents: 20_000_000}, Category: ""},
			first.Expenses[0],
		},
	}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("save: %v", err)
	}
	repo.Close()

	reopened, err := NewSQLiteRepository(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Income) != 1 || got.Income[0].Source != "bonus" {
		t.Fatalf("unexpected income: %+v", got.Income)
	}
	if len(got.Expenses) != 2 {
		t.Fatalf("expected 2 expenses, got %d", len(got.Expenses))
	}
	if got.Expenses[0].Name != "transport" || got.Expenses[1].Name != "makan" {
		t.Fatalf("position order not preserved: %+v", got.Expenses)
	}
	if got.Expenses[1] != first.Expenses[0] {
		t.Fatalf("round trip mismatch: got %+v want %+v", got.Expenses[1], first.Expenses[0])
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	v1, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	v2, err := RunMigrations(path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if v1 != 1 || v2 != 1 {
		t.Fatalf("expected schema version 1, got %d then %d", v1, v2)
	}
}
