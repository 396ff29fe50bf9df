package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the on-disk representation of a ledger date.
const DateLayout = "2006-01-02"

// UncategorizedCategory is backfilled into expense rows persisted before
// the category column existed.
const UncategorizedCategory = "Tanpa Kategori"

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	IncomeRecord struct {
		Date   Date
		Source string
		Amount Money
	}

	ExpenseRecord struct {
		Date     Date
		Name     string
		Amount   Money
		Category string
	}
)

var (
	// ErrInvalidInput is the parent of every boundary validation failure.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidDate   = fmt.Errorf("%w: date cannot be zero", ErrInvalidInput)
	ErrInvalidAmount = fmt.Errorf("%w: amount must be greater than zero", ErrInvalidInput)
	ErrEmptySource   = fmt.Errorf("%w: empty income source", ErrInvalidInput)
	ErrEmptyName     = fmt.Errorf("%w: empty expense name", ErrInvalidInput)
	ErrTextTooLong   = fmt.Errorf("%w: text too long (max 200 characters)", ErrInvalidInput)
)

const maxTextLen = 200

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DayInMonth builds a date inside the given month, clamping day to the
// month's last day. Legacy rows that only stored a day-of-month go through here.
func DayInMonth(year, month, day int) Date {
	if day < 1 {
		day = 1
	}
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// DaysIn returns the number of days of the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

func (r IncomeRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Source) == "" {
		return ErrEmptySource
	}
	if len(r.Source) > maxTextLen {
		return ErrTextTooLong
	}
	return r.Amount.Validate()
}

// Validate checks the boundary rules. Category is optional: an empty
// category is a legitimate user choice and is kept as-is.
func (r ExpenseRecord) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if len(r.Name) > maxTextLen || len(r.Category) > maxTextLen {
		return ErrTextTooLong
	}
	return r.Amount.Validate()
}
