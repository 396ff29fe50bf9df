package csvfile

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keuangan/internal/core"
	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
	"keuangan/internal/tabular"
)

var legacy = tabular.Legacy{Year: 2025, Month: 1}

func writeCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, csv.NewWriter(f).WriteAll(rows))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestStore_LoadMissingFilesIsEmpty(t *testing.T) {
	s := New(t.TempDir(), "", "", legacy)
	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Income)
	assert.Empty(t, snap.Expenses)
	assert.Empty(t, snap.Normalized)
}

func TestStore_SaveThenLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(dir, "", "", legacy)

	want := ledger.Snapshot{
		Income: []core.IncomeRecord{
			{Date: core.NewDate(2025, 1, 1), Source: "gaji", Amount: core.Money{Cents: 500_000_000}},
		},
		Expenses: []core.ExpenseRecord{
			{Date: core.NewDate(2025, 1, 2), Name: "makan, minum", Amount: core.Money{Cents: 5_000_050}, Category: "food"},
			{Date: core.NewDate(2025, 1, 3), Name: "parkir", Amount: core.Money{Cents: 200}, Category: ""},
		},
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := New(dir, "", "", legacy).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Income, got.Income)
	assert.Equal(t, want.Expenses, got.Expenses)
	assert.Empty(t, got.Normalized)

	rows := readCSV(t, filepath.Join(dir, DefaultExpenseFile))
	assert.Equal(t, tabular.ExpenseHeader, rows[0])
	assert.Equal(t, []string{"2025-01-02", "makan, minum", "50000.5", "food"}, rows[1])

	leftovers, err := filepath.Glob(filepath.Join(dir, ".*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files must not remain")
}

func TestStore_LoadLegacyFiles(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, DefaultIncomeFile), [][]string{
		{"Tanggal", "Sumber", "Jumlah (Rp)"},
		{"1", "gaji", "5000000.0"},
	})
	writeCSV(t, filepath.Join(dir, DefaultExpenseFile), [][]string{
		{"Tanggal", "Nama", "Jumlah (Rp)"},
		{"2", "makan", "50000"},
	})

	snap, err := New(dir, "", "", legacy).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Income, 1)
	assert.Equal(t, core.NewDate(2025, 1, 1), snap.Income[0].Date)
	assert.Equal(t, int64(500_000_000), snap.Income[0].Amount.Cents)
	require.Len(t, snap.Expenses, 1)
	assert.Equal(t, core.UncategorizedCategory, snap.Expenses[0].Category)
	assert.Len(t, snap.Normalized, 3)
}

func TestStore_LoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, DefaultIncomeFile), [][]string{
		{"Tanggal", "Sumber", "Jumlah (Rp)"},
		{"2025-01-01", "gaji", "lima juta"},
	})
	_, err := New(dir, "", "", legacy).Load(context.Background())
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestStore_AbsolutePathsIgnoreDir(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "in.csv")
	s := New("/does/not/matter", abs, "out.csv", legacy)
	in, out := s.Paths()
	assert.Equal(t, abs, in)
	assert.Equal(t, filepath.Join("/does/not/matter", "out.csv"), out)
}

func writeLedgerWithBadExpense(t *testing.T, dir string) {
	t.Helper()
	writeCSV(t, filepath.Join(dir, DefaultIncomeFile), [][]string{
		{"Tanggal", "Sumber", "Jumlah (Rp)"},
		{"2025-01-01", "gaji", "5000000"},
		{"2025-01-02", "bonus", "250000"},
	})
	writeCSV(t, filepath.Join(dir, DefaultExpenseFile), [][]string{
		{"Tanggal", "Nama", "Jumlah (Rp)", "Kategori"},
		{"2025-01-03", "makan", "Rp 50.000", "food"},
	})
}

func TestStore_LoadKeepsReadableFile(t *testing.T) {
	dir := t.TempDir()
	writeLedgerWithBadExpense(t, dir)

	snap, err := New(dir, "", "", legacy).Load(context.Background())
	var loadErr *ledger.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.NoError(t, loadErr.Income)
	assert.ErrorIs(t, loadErr.Expense, core.ErrInvalidInput)
	require.Len(t, snap.Income, 2)
	assert.Equal(t, "bonus", snap.Income[1].Source)
	assert.Empty(t, snap.Expenses)
}

func TestEngine_UnreadableFileIsSetAsideNotOverwritten(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeLedgerWithBadExpense(t, dir)
	original, err := os.ReadFile(filepath.Join(dir, DefaultExpenseFile))
	require.NoError(t, err)

	e := ledger.New(New(dir, "", "", legacy), ledger.WithLogger(applog.Discard()))
	tables, err := e.Load(ctx)
	require.NoError(t, err)
	require.Len(t, tables.Income, 2)
	assert.Equal(t, []string{ledger.TableExpense}, e.Unreadable())

	_, err = e.AppendIncome(ctx, core.NewDate(2025, 1, 5), "freelance", core.Money{Cents: 100})
	require.NoError(t, err)
	assert.Empty(t, e.Unreadable())

	rows := readCSV(t, filepath.Join(dir, DefaultIncomeFile))
	require.Len(t, rows, 4)
	assert.Equal(t, "gaji", rows[1][1])
	assert.Equal(t, "bonus", rows[2][1])
	assert.Equal(t, "freelance", rows[3][1])

	aside, err := filepath.Glob(filepath.Join(dir, DefaultExpenseFile+".corrupt-*"))
	require.NoError(t, err)
	require.Len(t, aside, 1)
	kept, err := os.ReadFile(aside[0])
	require.NoError(t, err)
	assert.Equal(t, original, kept)
}

func TestEngine_SharedDirectoryKeepsBothWriters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	server := ledger.New(New(dir, "", "", legacy), ledger.WithLogger(applog.Discard()))
	_, err := server.Load(ctx)
	require.NoError(t, err)
	cli := ledger.New(New(dir, "", "", legacy), ledger.WithLogger(applog.Discard()))
	_, err = cli.Load(ctx)
	require.NoError(t, err)

	_, err = cli.AppendIncome(ctx, core.NewDate(2025, 1, 1), "from-cli", core.Money{Cents: 100})
	require.NoError(t, err)
	got, err := server.AppendIncome(ctx, core.NewDate(2025, 1, 2), "from-server", core.Money{Cents: 100})
	require.NoError(t, err)
	require.Len(t, got, 2)

	snap, err := New(dir, "", "", legacy).Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Income, 2)
	assert.Equal(t, "from-cli", snap.Income[0].Source)
	assert.Equal(t, "from-server", snap.Income[1].Source)
}

func TestStore_LockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, "", "", legacy)
	b := New(dir, "", "", legacy)

	unlock, err := a.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = b.Lock(ctx)
	require.Error(t, err, "second holder must wait while the first holds the lock")

	require.NoError(t, unlock())
	unlockB, err := b.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlockB())
}
