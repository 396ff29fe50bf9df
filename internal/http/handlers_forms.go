package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
)

// Outcome codes carried back to the dashboard in ?status=.
const (
	formSaved      = "saved"
	formInvalid    = "invalid"
	formNotFound   = "notfound"
	formUnsaved    = "unsaved"
	formUnreadable = "unreadable"
	formConfirm    = "confirm"
	formFailed     = "error"
)

var formNotices = map[string]string{
	formSaved:      "Tersimpan.",
	formInvalid:    "Input ditolak: jumlah harus lebih dari nol, nama atau sumber wajib diisi, tanggal YYYY-MM-DD.",
	formNotFound:   "Baris tidak ditemukan. Tabel mungkin sudah berubah.",
	formUnsaved:    "Perubahan diterapkan tetapi belum tersimpan.",
	formUnreadable: "Sumber data tidak terbaca. Perubahan ditolak.",
	formConfirm:    "Centang konfirmasi untuk menghapus semua pengeluaran.",
	formFailed:     "Terjadi kesalahan.",
}

// redirectHome answers a dashboard form with 303 See Other so a reload does
// not repost it.
func redirectHome(w http.ResponseWriter, r *http.Request, status string) {
	http.Redirect(w, r, "/?"+url.Values{"status": {status}}.Encode(), http.StatusSeeOther)
}

// formStatus maps the outcome of an engine call to a dashboard notice.
func formStatus(err error) string {
	switch {
	case err == nil:
		return formSaved
	case errors.Is(err, ledger.ErrInvalidInput):
		return formInvalid
	case errors.Is(err, ledger.ErrIndexOutOfRange):
		return formNotFound
	case errors.Is(err, ledger.ErrUnreadableSource):
		return formUnreadable
	case errors.Is(err, ledger.ErrPersistence):
		return formUnsaved
	default:
		return formFailed
	}
}

func (s *Server) finishForm(w http.ResponseWriter, r *http.Request, op string, err error) {
	if err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Dashboard form rejected",
			applog.FieldOperation, op,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
	redirectHome(w, r, formStatus(err))
}

func (s *Server) handleFormIncome(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.finishForm(w, r, applog.OpAppend, errors.Join(ledger.ErrInvalidInput, err))
		return
	}
	entry, err := parseEntry(p, today(s.now()))
	if err == nil {
		_, err = s.ledger.AppendIncome(r.Context(), entry.Date, p.Get("source"), entry.Amount)
	}
	s.finishForm(w, r, applog.OpAppend, err)
}

func (s *Server) handleFormExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		s.finishForm(w, r, applog.OpAppend, errors.Join(ledger.ErrInvalidInput, err))
		return
	}
	entry, err := parseEntry(p, today(s.now()))
	if err == nil {
		_, err = s.ledger.AppendExpense(r.Context(), entry.Date, p.Get("name"), entry.Amount, p.Get("category"))
	}
	s.finishForm(w, r, applog.OpAppend, err)
}

func (s *Server) handleFormDeleteIncome(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err == nil {
		_, err = s.ledger.DeleteIncome(r.Context(), pos)
	} else {
		err = errors.Join(ledger.ErrIndexOutOfRange, err)
	}
	s.finishForm(w, r, applog.OpDelete, err)
}

func (s *Server) handleFormDeleteExpense(w http.ResponseWriter, r *http.Request) {
	pos, err := parsePosition(r)
	if err == nil {
		_, err = s.ledger.DeleteExpense(r.Context(), pos)
	} else {
		err = errors.Join(ledger.ErrIndexOutOfRange, err)
	}
	s.finishForm(w, r, applog.OpDelete, err)
}

// handleFormClearExpenses needs the confirm checkbox ticked.
func (s *Server) handleFormClearExpenses(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil || !strings.EqualFold(p.Get("confirm"), "yes") {
		redirectHome(w, r, formConfirm)
		return
	}
	s.finishForm(w, r, applog.OpClear, s.ledger.ClearExpenses(r.Context()))
}

func (s *Server) handleFormFlush(w http.ResponseWriter, r *http.Request) {
	s.finishForm(w, r, applog.OpPersist, s.ledger.Flush(r.Context()))
}
