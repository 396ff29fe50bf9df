// Package tabular converts ledger records to and from header-addressed rows.
// The CSV files and the Google Sheets tabs share this layout, so both stores
// go through the same codec.
package tabular

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"keuangan/internal/core"
)

const (
	ColDate     = "Tanggal"
	ColSource   = "Sumber"
	ColAmount   = "Jumlah (Rp)"
	ColName     = "Nama"
	ColCategory = "Kategori"
)

var (
	IncomeHeader  = []string{ColDate, ColSource, ColAmount}
	ExpenseHeader = []string{ColDate, ColName, ColAmount, ColCategory}
)

var ErrMissingColumn = errors.New("missing column")

// Legacy is the month that bare day-of-month dates are placed in.
type Legacy struct {
	Year  int
	Month int
}

// CurrentMonth returns the legacy month for the given instant.
func CurrentMonth(now time.Time) Legacy {
	return Legacy{Year: now.Year(), Month: int(now.Month())}
}

func (l Legacy) orNow() Legacy {
	if l.Year <= 0 || l.Month < 1 || l.Month > 12 {
		return CurrentMonth(time.Now())
	}
	return l
}

// RowError reports the data row (1-based, header excluded) that failed to decode.
type RowError struct {
	Row    int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d column %q: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// DecodeIncome reads income rows. rows[0] must be the header; an empty
// matrix is an empty table. The returned notes describe normalizations that
// were applied and should be persisted.
func DecodeIncome(rows [][]string, legacy Legacy) ([]core.IncomeRecord, []string, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	cols, err := locate(rows[0], ColDate, ColSource, ColAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("income header: %w", err)
	}
	legacy = legacy.orNow()

	var (
		out     []core.IncomeRecord
		coerced int
	)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		date, wasLegacy, err := decodeDate(safeGet(row, cols[0]), legacy)
		if err != nil {
			return nil, nil, &RowError{Row: i + 1, Column: ColDate, Err: err}
		}
		amount, err := core.ParseStoredAmount(safeGet(row, cols[2]))
		if err != nil {
			return nil, nil, &RowError{Row: i + 1, Column: ColAmount, Err: err}
		}
		if wasLegacy {
			coerced++
		}
		out = append(out, core.IncomeRecord{
			Date:   date,
			Source: strings.TrimSpace(safeGet(row, cols[1])),
			Amount: amount,
		})
	}

	var notes []string
	if coerced > 0 {
		notes = append(notes, coercionNote("income", coerced, legacy))
	}
	return out, notes, nil
}

// DecodeExpenses reads expense rows. A header without Kategori is legacy
// data: every row gets core.UncategorizedCategory and a note is returned.
func DecodeExpenses(rows [][]string, legacy Legacy) ([]core.ExpenseRecord, []string, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	cols, err := locate(rows[0], ColDate, ColName, ColAmount)
	if err != nil {
		return nil, nil, fmt.Errorf("expense header: %w", err)
	}
	catCol := indexOf(rows[0], ColCategory)
	legacy = legacy.orNow()

	var (
		out     []core.ExpenseRecord
		coerced int
	)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		date, wasLegacy, err := decodeDate(safeGet(row, cols[0]), legacy)
		if err != nil {
			return nil, nil, &RowError{Row: i + 1, Column: ColDate, Err: err}
		}
		amount, err := core.ParseStoredAmount(safeGet(row, cols[2]))
		if err != nil {
			return nil, nil, &RowError{Row: i + 1, Column: ColAmount, Err: err}
		}
		if wasLegacy {
			coerced++
		}
		category := core.UncategorizedCategory
		if catCol >= 0 {
			category = strings.TrimSpace(safeGet(row, catCol))
		}
		out = append(out, core.ExpenseRecord{
			Date:     date,
			Name:     strings.TrimSpace(safeGet(row, cols[1])),
			Amount:   amount,
			Category: category,
		})
	}

	var notes []string
	if catCol < 0 {
		notes = append(notes, fmt.Sprintf("expense: backfilled %s with %q", ColCategory, core.UncategorizedCategory))
	}
	if coerced > 0 {
		notes = append(notes, coercionNote("expense", coerced, legacy))
	}
	return out, notes, nil
}

// EncodeIncome renders the header followed by one row per record.
func EncodeIncome(recs []core.IncomeRecord) [][]string {
	rows := make([][]string, 0, len(recs)+1)
	rows = append(rows, append([]string(nil), IncomeHeader...))
	for _, r := range recs {
		rows = append(rows, []string{r.Date.String(), r.Source, r.Amount.Decimal()})
	}
	return rows
}

// EncodeExpenses renders the header followed by one row per record.
func EncodeExpenses(recs []core.ExpenseRecord) [][]string {
	rows := make([][]string, 0, len(recs)+1)
	rows = append(rows, append([]string(nil), ExpenseHeader...))
	for _, r := range recs {
		rows = append(rows, []string{r.Date.String(), r.Name, r.Amount.Decimal(), r.Category})
	}
	return rows
}

// decodeDate accepts YYYY-MM-DD or a bare day-of-month ("7", "7.0").
func decodeDate(s string, legacy Legacy) (core.Date, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.Date{}, false, core.ErrInvalidDate
	}
	if d, err := core.ParseDate(s); err == nil {
		return d, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return core.Date{}, false, fmt.Errorf("unrecognized date %q", s)
	}
	return core.DayInMonth(legacy.Year, legacy.Month, int(f)), true, nil
}

func coercionNote(table string, n int, legacy Legacy) string {
	return fmt.Sprintf("%s: coerced %d day-of-month dates into %04d-%02d", table, n, legacy.Year, legacy.Month)
}

func locate(header []string, names ...string) ([]int, error) {
	idx := make([]int, len(names))
	var missing []string
	for i, name := range names {
		idx[i] = indexOf(header, name)
		if idx[i] < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s; got headers=%v", ErrMissingColumn, strings.Join(missing, ","), header)
	}
	return idx, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(v, "\ufeff")), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// ToStrings flattens a row of spreadsheet cell values. Numbers come back
// from the Sheets API as float64 and are rendered without exponent.
func ToStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case float64:
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

// ToCells converts encoded rows into the value matrix the Sheets API takes.
func ToCells(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}
