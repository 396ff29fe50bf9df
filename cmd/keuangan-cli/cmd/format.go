package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"keuangan/internal/core"
	"keuangan/internal/ledger"
)

var (
	header   = color.New(color.Bold)
	warn     = color.New(color.FgYellow)
	negative = color.New(color.FgRed)
	positive = color.New(color.FgGreen)
)

// parseDateAmount reads the --date flag and an amount argument. An empty
// date means today on the local calendar.
func parseDateAmount(date, amount string) (core.Date, core.Money, error) {
	var d core.Date
	if strings.TrimSpace(date) == "" {
		now := time.Now()
		d = core.NewDate(now.Year(), int(now.Month()), now.Day())
	} else {
		parsed, err := core.ParseDate(strings.TrimSpace(date))
		if err != nil {
			return core.Date{}, core.Money{}, fmt.Errorf("%w: date must be YYYY-MM-DD", core.ErrInvalidInput)
		}
		d = parsed
	}

	cents, err := core.ParseDecimalToCents(amount)
	if err != nil {
		return core.Date{}, core.Money{}, err
	}
	return d, core.Money{Cents: cents}, nil
}

func parsePosition(s string) (int, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("position must be an integer: %q", s)
	}
	return pos, nil
}

// describe turns engine errors into messages for the terminal.
func describe(err error) error {
	var perr *ledger.PersistenceError
	if errors.As(err, &perr) {
		return fmt.Errorf("change applied in memory but not saved (%s): %w", perr.Op, perr.Err)
	}
	return err
}

func money(m core.Money) string {
	s := m.Rupiah()
	if m.Cents < 0 {
		return negative.Sprint(s)
	}
	return s
}

func printIncome(out io.Writer, income []core.IncomeRecord) error {
	if len(income) == 0 {
		fmt.Fprintln(out, warn.Sprint("No income recorded"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header.Sprint("#\tDATE\tSOURCE\tAMOUNT"))
	for i, r := range income {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, r.Date, r.Source, money(r.Amount))
	}
	return tw.Flush()
}

func printExpenses(out io.Writer, expenses []core.ExpenseRecord) error {
	if len(expenses) == 0 {
		fmt.Fprintln(out, warn.Sprint("No expenses recorded"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header.Sprint("#\tDATE\tNAME\tCATEGORY\tAMOUNT"))
	for i, r := range expenses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, r.Date, r.Name, r.Category, money(r.Amount))
	}
	return tw.Flush()
}

func printSummary(out io.Writer, s core.Summary) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total income\t%s\t(%d records)\n", money(s.TotalIncome), s.IncomeCount)
	fmt.Fprintf(tw, "Total expense\t%s\t(%d records)\n", money(s.TotalExpense), s.ExpenseCount)

	balance := money(s.Balance)
	if s.Balance.Cents > 0 {
		balance = positive.Sprint(s.Balance.Rupiah())
	}
	fmt.Fprintf(tw, "Balance\t%s\t\n", balance)

	if s.RatioDefined {
		fmt.Fprintf(tw, "Expense ratio\t%.2f%%\t\n", s.ExpenseRatioPercent)
	} else {
		fmt.Fprintf(tw, "Expense ratio\t%s\t\n", warn.Sprint("n/a (no income)"))
	}

	if s.LargestExpense != nil {
		r := s.LargestExpense.Record
		fmt.Fprintf(tw, "Largest expense\t%s\t#%d %s on %s\n", money(r.Amount), s.LargestExpense.Position, r.Name, r.Date)
	} else {
		fmt.Fprintf(tw, "Largest expense\t-\t\n")
	}
	return tw.Flush()
}

func printDatePoints(out io.Writer, points []core.DatePoint) error {
	if len(points) == 0 {
		fmt.Fprintln(out, warn.Sprint("No records"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header.Sprint("DATE\tINCOME\tEXPENSE"))
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Date, money(p.Income), money(p.Expense))
	}
	return tw.Flush()
}

func printCategories(out io.Writer, cats []core.CategoryAmount) error {
	if len(cats) == 0 {
		fmt.Fprintln(out, warn.Sprint("No expenses recorded"))
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header.Sprint("CATEGORY\tAMOUNT"))
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, money(c.Amount))
	}
	return tw.Flush()
}
