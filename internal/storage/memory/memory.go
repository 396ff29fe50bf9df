// Package memory is a process-local ledger store. Nothing survives a
// restart; it backs the "memory" backend and tests.
package memory

import (
	"context"
	"sync"

	"keuangan/internal/core"
	"keuangan/internal/ledger"
)

type Store struct {
	mu       sync.Mutex
	income   []core.IncomeRecord
	expenses []core.ExpenseRecord
	saves    int
}

var _ ledger.Store = (*Store)(nil)

func New(income []core.IncomeRecord, expenses []core.ExpenseRecord) *Store {
	return &Store{
		income:   append([]core.IncomeRecord(nil), income...),
		expenses: append([]core.ExpenseRecord(nil), expenses...),
	}
}

// Load returns copies of the stored tables.
func (s *Store) Load(_ context.Context) (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Snapshot{
		Income:   append([]core.IncomeRecord(nil), s.income...),
		Expenses: append([]core.ExpenseRecord(nil), s.expenses...),
	}, nil
}

// Save replaces the stored tables.
func (s *Store) Save(_ context.Context, snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.income = append([]core.IncomeRecord(nil), snap.Income...)
	s.expenses = append([]core.ExpenseRecord(nil), snap.Expenses...)
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
