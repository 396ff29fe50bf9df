package ledger

import (
	"errors"
	"fmt"
	"strings"

	"keuangan/internal/core"
)

var (
	// ErrInvalidInput is returned (wrapped) for rejected appends.
	ErrInvalidInput = core.ErrInvalidInput
	// ErrIndexOutOfRange is returned when a delete targets a missing position.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrPersistence matches every *PersistenceError via errors.Is.
	ErrPersistence = errors.New("persistence error")
	// ErrUnreadableSource is returned for mutations refused because a table
	// could not be read and the store cannot move it out of the way.
	ErrUnreadableSource = errors.New("ledger source unreadable")
)

// LoadError lists the tables a store could not read. Stores return it
// together with a snapshot that still holds every readable table.
type LoadError struct {
	Income  error
	Expense error
}

func (e *LoadError) Error() string {
	var parts []string
	if e.Income != nil {
		parts = append(parts, fmt.Sprintf("%s: %v", TableIncome, e.Income))
	}
	if e.Expense != nil {
		parts = append(parts, fmt.Sprintf("%s: %v", TableExpense, e.Expense))
	}
	return "unreadable tables: " + strings.Join(parts, "; ")
}

func (e *LoadError) Unwrap() []error {
	var errs []error
	if e.Income != nil {
		errs = append(errs, e.Income)
	}
	if e.Expense != nil {
		errs = append(errs, e.Expense)
	}
	return errs
}

// OrNil returns nil when every table was readable.
func (e *LoadError) OrNil() error {
	if e.Income == nil && e.Expense == nil {
		return nil
	}
	return e
}

// unreadableTables maps each table that failed to load to its error. An
// error that is not a LoadError means neither table was read.
func unreadableTables(err error) map[string]error {
	if err == nil {
		return nil
	}
	var le *LoadError
	if !errors.As(err, &le) {
		return map[string]error{TableIncome: err, TableExpense: err}
	}
	out := make(map[string]error, 2)
	if le.Income != nil {
		out[TableIncome] = le.Income
	}
	if le.Expense != nil {
		out[TableExpense] = le.Expense
	}
	return out
}

// PersistenceError reports that the store could not be read or written.
// After a failed write the in-memory ledger is ahead of the store until
// Flush succeeds.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func indexError(table string, pos, size int) error {
	return fmt.Errorf("%w: %s position %d (have %d records)", ErrIndexOutOfRange, table, pos, size)
}
