package http

import (
	"errors"
	"net/http"
	"strings"

	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"expenses": toExpenseList(s.ledger.Tables().Expenses),
	}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	logger := applog.FromContext(r.Context())

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		logger.WarnContext(r.Context(), "Parse body error", applog.FieldError, err, applog.FieldPath, r.URL.Path)
		BadRequestError("invalid request body").Write(w)
		return
	}

	entry, err := parseEntry(p, today(s.now()))
	if err != nil {
		LedgerError(err, nil).Write(w)
		return
	}
	name := p.Get("name")
	category := p.Get("category")

	expenses, err := s.ledger.AppendExpense(r.Context(), entry.Date, name, entry.Amount, category)
	if err != nil {
		if errorsIsPersistence(err) {
			fields := applog.NewFields().
				WithRecord(ledger.TableExpense, entry.Date.String(), name, entry.Amount.Cents).
				WithOperation(applog.OpAppend).
				WithError(err)
			fields[applog.FieldCategory] = category
			logger.ErrorContext(r.Context(), "Expense not persisted", fields.ToSlice()...)
		}
		LedgerError(err, toExpenseList(expenses)).Write(w)
		return
	}

	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{
		"position": len(expenses) - 1,
		"expenses": toExpenseList(expenses),
	}).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	expenses, err := s.ledger.DeleteExpense(r.Context(), pos)
	if err != nil {
		if errorsIsPersistence(err) {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Expense delete not persisted", applog.NewFields().
				WithPosition(ledger.TableExpense, pos).
				WithOperation(applog.OpDelete).
				WithError(err).ToSlice()...)
		}
		LedgerError(err, toExpenseList(expenses)).Write(w)
		return
	}

	NewJSONResponse().Body(map[string]any{
		"expenses": toExpenseList(expenses),
	}).Write(w)
}

// handleClearExpenses drops every expense. It requires confirm=yes so a
// stray DELETE cannot wipe the table.
func (s *Server) handleClearExpenses(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.URL.Query().Get("confirm"), "yes") {
		BadRequestError("clearing all expenses requires confirm=yes").Write(w)
		return
	}

	if err := s.ledger.ClearExpenses(r.Context()); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Expense clear not persisted",
			applog.FieldOperation, applog.OpClear,
			applog.FieldError, err)
		LedgerError(err, []expenseJSON{}).Write(w)
		return
	}

	NewJSONResponse().Body(map[string]any{
		"expenses": []expenseJSON{},
	}).Write(w)
}

func errorsIsPersistence(err error) bool {
	return errors.Is(err, ledger.ErrPersistence)
}
