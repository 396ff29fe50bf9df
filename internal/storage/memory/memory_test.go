package memory

import (
	"context"
	"testing"

	"keuangan/internal/core"
	"keuangan/internal/ledger"
)

func TestMemoryStoreSaveAndLoad(t *testing.T) {
	s := New(nil, nil)
	snap, err := s.Load(context.Background())
	if err != nil || len(snap.Income) != 0 || len(snap.Expenses) != 0 {
		t.Fatalf("unexpected initial snapshot: %+v err=%v", snap, err)
	}

	in := []core.IncomeRecord{{Date: core.NewDate(2025, 1, 1), Source: "gaji", Amount: core.Money{Cents: 100}}}
	if err := s.Save(context.Background(), ledger.Snapshot{Income: in}); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Mutating the caller's slice must not leak into the store.
	in[0].Source = "changed"

	snap, _ = s.Load(context.Background())
	if len(snap.Income) != 1 || snap.Income[0].Source != "gaji" {
		t.Fatalf("unexpected income: %+v", snap.Income)
	}
	if s.Saves() != 1 {
		t.Fatalf("expected 1 save, got %d", s.Saves())
	}
}
