// Package csvfile persists the ledger as two CSV files, one per table.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"keuangan/internal/ledger"
	"keuangan/internal/tabular"
)

const (
	DefaultIncomeFile  = "pemasukan.csv"
	DefaultExpenseFile = "pengeluaran.csv"
)

// Store reads and rewrites the income and expense files.
type Store struct {
	incomePath  string
	expensePath string
	legacy      tabular.Legacy
}

var (
	_ ledger.Store       = (*Store)(nil)
	_ ledger.Locker      = (*Store)(nil)
	_ ledger.Quarantiner = (*Store)(nil)
)

const lockRetryDelay = 20 * time.Millisecond

// New returns a store for the two files. Relative names are resolved
// against dir.
func New(dir, incomeFile, expenseFile string, legacy tabular.Legacy) *Store {
	if incomeFile == "" {
		incomeFile = DefaultIncomeFile
	}
	if expenseFile == "" {
		expenseFile = DefaultExpenseFile
	}
	return &Store{
		incomePath:  resolve(dir, incomeFile),
		expensePath: resolve(dir, expenseFile),
		legacy:      legacy,
	}
}

func resolve(dir, name string) string {
	if filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// Paths returns the income and expense file paths.
func (s *Store) Paths() (string, string) {
	return s.incomePath, s.expensePath
}

// Load reads both files. A missing file is an empty table. The files are
// read independently: one that cannot be read is reported in a
// *ledger.LoadError while the other is still returned.
func (s *Store) Load(ctx context.Context) (ledger.Snapshot, error) {
	var (
		snap    ledger.Snapshot
		loadErr ledger.LoadError
	)

	income, notes, err := loadTable(s.incomePath, s.legacy, tabular.DecodeIncome)
	if err != nil {
		loadErr.Income = err
	} else {
		snap.Income = income
		snap.Normalized = append(snap.Normalized, notes...)
	}

	if err := ctx.Err(); err != nil {
		return ledger.Snapshot{}, err
	}

	expenses, notes, err := loadTable(s.expensePath, s.legacy, tabular.DecodeExpenses)
	if err != nil {
		loadErr.Expense = err
	} else {
		snap.Expenses = expenses
		snap.Normalized = append(snap.Normalized, notes...)
	}
	return snap, loadErr.OrNil()
}

func loadTable[T any](path string, legacy tabular.Legacy, decode func([][]string, tabular.Legacy) ([]T, []string, error)) ([]T, []string, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, nil, err
	}
	records, notes, err := decode(rows, legacy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return records, notes, nil
}

// Lock implements ledger.Locker with an advisory lock file next to the
// income file, so the server and the CLI do not overwrite each other.
func (s *Store) Lock(ctx context.Context) (func() error, error) {
	dir := filepath.Dir(s.incomePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	fl := flock.New(s.incomePath + ".lock")
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to lock %s", fl.Path())
	}
	return fl.Close, nil
}

// SetAside implements ledger.Quarantiner. The unreadable file is renamed
// with a .corrupt-<timestamp> suffix and left for manual repair.
func (s *Store) SetAside(_ context.Context, table string) (string, error) {
	path := s.incomePath
	if table == ledger.TableExpense {
		path = s.expensePath
	}
	dest := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(path, dest); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to set aside %s: %w", path, err)
	}
	return dest, nil
}

// Save rewrites both files. Each file is replaced atomically; the pair is not.
func (s *Store) Save(ctx context.Context, snap ledger.Snapshot) error {
	if err := writeRows(s.incomePath, tabular.EncodeIncome(snap.Income)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeRows(s.expensePath, tabular.EncodeExpenses(snap.Expenses))
}

func readRows(path string) ([][]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record from %s: %w", path, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func writeRows(path string, rows [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
