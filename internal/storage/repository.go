// Package storage persists the ledger in a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"keuangan/internal/core"
	"keuangan/internal/ledger"
	applog "keuangan/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	dbPath  string
	db      *sql.DB
	queries *Queries
	logger  *applog.Logger
}

var (
	_ ledger.Store  = (*SQLiteRepository)(nil)
	_ ledger.Locker = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentStorage)
	logger.Info("SQLite ledger ready",
		applog.FieldOperation, applog.OpMigrate,
		"path", dbPath,
		"schema_version", version)

	return &SQLiteRepository{
		dbPath:  dbPath,
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements ledger.Store. A table that cannot be queried or holds a
// row that does not decode is reported in a *ledger.LoadError; the other
// table is still returned.
func (r *SQLiteRepository) Load(ctx context.Context) (ledger.Snapshot, error) {
	var (
		snap    ledger.Snapshot
		loadErr ledger.LoadError
		err     error
	)
	if snap.Income, err = r.loadIncome(ctx); err != nil {
		loadErr.Income = err
	}
	if snap.Expenses, err = r.loadExpenses(ctx); err != nil {
		loadErr.Expense = err
	}
	return snap, loadErr.OrNil()
}

func (r *SQLiteRepository) loadIncome(ctx context.Context) ([]core.IncomeRecord, error) {
	rows, err := r.queries.ListIncome(ctx)
	if err != nil {
		return nil, fmt.Errorf("list income: %w", err)
	}
	var out []core.IncomeRecord
	for _, row := range rows {
		d, err := core.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("income position %d: %w", row.Position, err)
		}
		out = append(out, core.IncomeRecord{
			Date:   d,
			Source: row.Source,
			Amount: core.Money{Cents: row.AmountCents},
		})
	}
	return out, nil
}

func (r *SQLiteRepository) loadExpenses(ctx context.Context) ([]core.ExpenseRecord, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	var out []core.ExpenseRecord
	for _, row := range rows {
		d, err := core.ParseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("expense position %d: %w", row.Position, err)
		}
		out = append(out, core.ExpenseRecord{
			Date:     d,
			Name:     row.Name,
			Amount:   core.Money{Cents: row.AmountCents},
			Category: row.Category,
		})
	}
	return out, nil
}

// Lock implements ledger.Locker. Every process using the database takes
// the same lock file before reading and rewriting the tables.
func (r *SQLiteRepository) Lock(ctx context.Context) (func() error, error) {
	fl := flock.New(r.dbPath + ".lock")
	locked, err := fl.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("lock %s: not acquired", fl.Path())
	}
	return fl.Close, nil
}

// Save implements ledger.Store. Both tables are rewritten in one transaction.
func (r *SQLiteRepository) Save(ctx context.Context, snap ledger.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteAllIncome(ctx); err != nil {
		return fmt.Errorf("clear income: %w", err)
	}
	if err := q.DeleteAllExpenses(ctx); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}
	for i, rec := range snap.Income {
		if err := q.InsertIncome(ctx, InsertIncomeParams{
			Position:    int64(i),
			Date:        rec.Date.String(),
			Source:      rec.Source,
			AmountCents: rec.Amount.Cents,
		}); err != nil {
			return fmt.Errorf("insert income %d: %w", i, err)
		}
	}
	for i, rec := range snap.Expenses {
		if err := q.InsertExpense(ctx, InsertExpenseParams{
			Position:    int64(i),
			Date:        rec.Date.String(),
			Name:        rec.Name,
			AmountCents: rec.Amount.Cents,
			Category:    rec.Category,
		}); err != nil {
			return fmt.Errorf("insert expense %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.DebugContext(ctx, "Ledger saved to SQLite",
		applog.FieldOperation, applog.OpPersist,
		"income_records", len(snap.Income),
		"expense_records", len(snap.Expenses))
	return nil
}
