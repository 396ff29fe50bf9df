package http

import (
	"net/http"

	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
)

func (s *Server) handleListIncome(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"income": toIncomeList(s.ledger.Tables().Income),
	}).Write(w)
}

func (s *Server) handleCreateIncome(w http.ResponseWriter, r *http.Request) {
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
	source := p.Get("source")

	income, err := s.ledger.AppendIncome(r.Context(), entry.Date, source, entry.Amount)
	if err != nil {
		if errorsIsPersistence(err) {
			logger.ErrorContext(r.Context(), "Income not persisted", applog.NewFields().
				WithRecord(ledger.TableIncome, entry.Date.String(), source, entry.Amount.Cents).
				WithOperation(applog.OpAppend).
				WithError(err).ToSlice()...)
		}
		LedgerError(err, toIncomeList(income)).Write(w)
		return
	}

	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{
		"position": len(income) - 1,
		"income":   toIncomeList(income),
	}).Write(w)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	income, err := s.ledger.DeleteIncome(r.Context(), pos)
	if err != nil {
		if errorsIsPersistence(err) {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Income delete not persisted", applog.NewFields().
				WithPosition(ledger.TableIncome, pos).
				WithOperation(applog.OpDelete).
				WithError(err).ToSlice()...)
		}
		LedgerError(err, toIncomeList(income)).Write(w)
		return
	}

	NewJSONResponse().Body(map[string]any{
		"income": toIncomeList(income),
	}).Write(w)
}
