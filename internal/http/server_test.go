package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"

	"keuangan/internal/core"
	"keuangan/internal/ledger"
	"keuangan/internal/ledger/mocks"
	applog "keuangan/internal/log"
	"keuangan/internal/metrics"
	"keuangan/internal/storage/memory"
)

var fixedNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, store ledger.Store, reg *metrics.Registry) (*Server, *ledger.Engine) {
	t.Helper()
	engine := ledger.New(store, ledger.WithLogger(applog.Discard()))
	if _, err := engine.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv := NewServer(":0", engine, Options{
		RateLimitPerMinute: 1000,
		Metrics:            reg,
		Logger:             applog.Discard(),
		Now:                func() time.Time { return fixedNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, engine
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	} else if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(nil, nil), nil)

	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Belum ada pemasukan") {
		t.Fatalf("index body missing empty income row")
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("security headers missing")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Errorf("request id header missing")
	}

	for _, path := range []string{"/healthz", "/readyz", "/static/app.css"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := do(t, srv, http.MethodGet, "/nope", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestScenarioThroughAPI(t *testing.T) {
	srv, _ := newTestServer(t, memory.New(nil, nil), nil)

	steps := []struct {
		target, body string
	}{
		{"/api/income", `{"date":"2025-01-01","source":"gaji","amount":"5000000"}`},
		{"/api/expenses", `{"date":"2025-01-02","name":"makan","amount":50000,"category":"food"}`},
		{"/api/expenses", "date=2025-01-03&name=transport&amount=200000&category=food"},
	}
	for _, s := range steps {
		if rr := do(t, srv, http.MethodPost, s.target, s.body); rr.Code != http.StatusCreated {
			t.Fatalf("POST %s status=%d body=%s", s.target, rr.Code, rr.Body.String())
		}
	}

	sum := decode(t, do(t, srv, http.MethodGet, "/api/summary", ""))
	if got := sum["total_income"].(map[string]any)["cents"].(float64); got != 500000000 {
		t.Errorf("total income cents=%v", got)
	}
	if got := sum["balance"].(map[string]any)["display"]; got != "Rp 4,750,000" {
		t.Errorf("balance display=%v", got)
	}
	if got := sum["expense_ratio_percent"].(float64); got != 5 {
		t.Errorf("ratio=%v", got)
	}
	if got := sum["largest_expense"].(map[string]any)["name"]; got != "transport" {
		t.Errorf("largest=%v", got)
	}

	cats := decode(t, do(t, srv, http.MethodGet, "/api/series/category", ""))["categories"].([]any)
	if len(cats) != 1 || cats[0].(map[string]any)["category"] != "food" {
		t.Fatalf("categories=%v", cats)
	}

	series := decode(t, do(t, srv, http.MethodGet, "/api/series/date", ""))
	if merged := series["merged"].([]any); len(merged) != 3 {
		t.Fatalf("merged=%v", merged)
	}

	daily := decode(t, do(t, srv, http.MethodGet, "/api/series/date?year=2025&month=2", ""))
	if points := daily["points"].([]any); len(points) != 28 {
		t.Fatalf("february should have 28 points, got %d", len(points))
	}
}

func TestCreateDefaultsDateToToday(t *testing.T) {
	srv, engine := newTestServer(t, memory.New(nil, nil), nil)

	rr := do(t, srv, http.MethodPost, "/api/income", "source=bonus&amount=10,5")
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := engine.Income()[0]
	if got.Date != core.NewDate(2025, 1, 15) || got.Amount.Cents != 1050 {
		t.Fatalf("record=%+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	srv, engine := newTestServer(t, memory.New(nil, nil), nil)

	tests := []struct {
		name, target, body string
		want               int
	}{
		{"zero amount", "/api/income", `{"source":"gaji","amount":"0"}`, http.StatusUnprocessableEntity},
		{"negative amount", "/api/expenses", `{"name":"x","amount":"-5"}`, http.StatusUnprocessableEntity},
		{"blank source", "/api/income", `{"source":"  ","amount":"10"}`, http.StatusUnprocessableEntity},
		{"blank name", "/api/expenses", "name=&amount=10", http.StatusUnprocessableEntity},
		{"bad date", "/api/income", `{"date":"15/01/2025","source":"gaji","amount":"10"}`, http.StatusUnprocessableEntity},
		{"malformed json", "/api/income", `{"source":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.target, tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	tables := engine.Tables()
	if len(tables.Income)+len(tables.Expenses) != 0 {
		t.Fatalf("rejected requests must not mutate: %+v", tables)
	}
}

func TestDeleteAndClear(t *testing.T) {
	store := memory.New(
		[]core.IncomeRecord{
			{Date: core.NewDate(2025, 1, 1), Source: "a", Amount: core.Money{Cents: 100}},
			{Date: core.NewDate(2025, 1, 2), Source: "b", Amount: core.Money{Cents: 200}},
		},
		[]core.ExpenseRecord{
			{Date: core.NewDate(2025, 1, 1), Name: "x", Amount: core.Money{Cents: 100}},
			{Date: core.NewDate(2025, 1, 2), Name: "y", Amount: core.Money{Cents: 200}},
		},
	)
	srv, engine := newTestServer(t, store, nil)

	if rr := do(t, srv, http.MethodDelete, "/api/income/99", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("out of range status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/income/abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric status=%d", rr.Code)
	}

	rr := do(t, srv, http.MethodDelete, "/api/income/0", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	income := decode(t, rr)["income"].([]any)
	if len(income) != 1 || income[0].(map[string]any)["source"] != "b" || income[0].(map[string]any)["position"].(float64) != 0 {
		t.Fatalf("income after delete=%v", income)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/expenses/1", ""); rr.Code != http.StatusOK {
		t.Fatalf("delete expense status=%d", rr.Code)
	}

	if rr := do(t, srv, http.MethodDelete, "/api/expenses", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("clear without confirm status=%d", rr.Code)
	}
	if len(engine.Expenses()) != 1 {
		t.Fatal("unconfirmed clear must not mutate")
	}
	if rr := do(t, srv, http.MethodDelete, "/api/expenses?confirm=yes", ""); rr.Code != http.StatusOK {
		t.Fatalf("clear status=%d", rr.Code)
	}
	if len(engine.Expenses()) != 0 {
		t.Fatal("expenses should be cleared")
	}
}

func TestPersistenceFailureReportsNotDurable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(ledger.Snapshot{}, nil)
	gomock.InOrder(
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
	)

	reg := metrics.New()
	srv, engine := newTestServer(t, store, reg)

	rr := do(t, srv, http.MethodPost, "/api/income", `{"date":"2025-01-01","source":"gaji","amount":"100"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decode(t, rr)
	if body["durable"] != false {
		t.Fatalf("durable=%v", body["durable"])
	}
	if recs := body["records"].([]any); len(recs) != 1 {
		t.Fatalf("in-memory records=%v", recs)
	}
	if !engine.Dirty() {
		t.Fatal("engine should be dirty")
	}
	if rr := do(t, srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz while dirty status=%d", rr.Code)
	}

	if rr := do(t, srv, http.MethodPost, "/api/flush", ""); rr.Code != http.StatusOK {
		t.Fatalf("flush status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/readyz", ""); rr.Code != http.StatusOK {
		t.Fatalf("readyz after flush status=%d", rr.Code)
	}

	m := do(t, srv, http.MethodGet, "/metrics", "")
	if !strings.Contains(m.Body.String(), `route="POST /api/income"`) {
		t.Errorf("metrics missing route label")
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	engine := ledger.New(memory.New(nil, nil), ledger.WithLogger(applog.Discard()))
	reg := metrics.New()
	srv := NewServer(":0", engine, Options{RateLimitPerMinute: 1, Metrics: reg, Logger: applog.Discard()})
	defer srv.Shutdown(context.Background())

	form := url.Values{"source": {"gaji"}, "amount": {"1"}}.Encode()
	if rr := do(t, srv, http.MethodPost, "/api/income", form); rr.Code != http.StatusCreated {
		t.Fatalf("first status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/income", form)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	for i := 0; i < 3; i++ {
		if rr := do(t, srv, http.MethodGet, "/api/summary", ""); rr.Code != http.StatusOK {
			t.Fatalf("reads are not limited, status=%d", rr.Code)
		}
	}
}

func TestDashboardForms(t *testing.T) {
	srv, engine := newTestServer(t, memory.New(nil, nil), nil)

	post := func(target, body string) string {
		t.Helper()
		rr := do(t, srv, http.MethodPost, target, body)
		if rr.Code != http.StatusSeeOther {
			t.Fatalf("POST %s status=%d body=%s", target, rr.Code, rr.Body.String())
		}
		return rr.Header().Get("Location")
	}

	if loc := post("/income", "date=2025-01-01&source=gaji&amount=5000000"); loc != "/?status=saved" {
		t.Fatalf("location=%q", loc)
	}
	if loc := post("/expenses", "name=makan&amount=50000&category=food"); loc != "/?status=saved" {
		t.Fatalf("location=%q", loc)
	}
	if loc := post("/expenses", "name=&amount=10"); loc != "/?status=invalid" {
		t.Fatalf("blank name location=%q", loc)
	}
	if got := engine.Expenses(); len(got) != 1 || got[0].Date != core.NewDate(2025, 1, 15) {
		t.Fatalf("expenses=%+v", got)
	}

	rr := do(t, srv, http.MethodGet, "/?status=saved", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	for _, want := range []string{"Tersimpan.", `action="/income/0/delete"`, `action="/expenses/0/delete"`, `action="/expenses/clear"`} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("index missing %q", want)
		}
	}

	if loc := post("/income/5/delete", ""); loc != "/?status=notfound" {
		t.Fatalf("out of range location=%q", loc)
	}
	if loc := post("/income/0/delete", ""); loc != "/?status=saved" {
		t.Fatalf("delete location=%q", loc)
	}
	if len(engine.Income()) != 0 {
		t.Fatal("income should be deleted")
	}

	if loc := post("/expenses/clear", ""); loc != "/?status=confirm" {
		t.Fatalf("unconfirmed clear location=%q", loc)
	}
	if len(engine.Expenses()) != 1 {
		t.Fatal("unconfirmed clear must not mutate")
	}
	if loc := post("/expenses/clear", "confirm=yes"); loc != "/?status=saved" {
		t.Fatalf("clear location=%q", loc)
	}
	if len(engine.Expenses()) != 0 {
		t.Fatal("expenses should be cleared")
	}
}

func TestFormFlushRetriesPersist(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	store.EXPECT().Load(gomock.Any()).Return(ledger.Snapshot{}, nil)
	gomock.InOrder(
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("disk full")),
		store.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil),
	)
	srv, engine := newTestServer(t, store, nil)

	rr := do(t, srv, http.MethodPost, "/income", "source=gaji&amount=100")
	if loc := rr.Header().Get("Location"); loc != "/?status=unsaved" {
		t.Fatalf("location=%q", loc)
	}
	if !strings.Contains(do(t, srv, http.MethodGet, "/", "").Body.String(), `action="/flush"`) {
		t.Fatal("dirty dashboard should offer a flush button")
	}

	rr = do(t, srv, http.MethodPost, "/flush", "")
	if loc := rr.Header().Get("Location"); loc != "/?status=saved" {
		t.Fatalf("flush location=%q", loc)
	}
	if engine.Dirty() {
		t.Fatal("engine should be clean after flush")
	}
}

func TestUnreadableSourceRefusesWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	income := []core.IncomeRecord{{Date: core.NewDate(2025, 1, 1), Source: "gaji", Amount: core.Money{Cents: 100}}}
	store.EXPECT().Load(gomock.Any()).
		Return(ledger.Snapshot{Income: income}, &ledger.LoadError{Expense: errors.New("bad amount")}).
		AnyTimes()
	srv, engine := newTestServer(t, store, nil)

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
	if got := decode(t, rr)["checks"].(map[string]any)["store"]; got != "unreadable: expense" {
		t.Fatalf("store check=%v", got)
	}

	rr = do(t, srv, http.MethodPost, "/api/income", `{"source":"bonus","amount":"10"}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("append status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = do(t, srv, http.MethodPost, "/expenses", "name=makan&amount=10")
	if loc := rr.Header().Get("Location"); loc != "/?status=unreadable" {
		t.Fatalf("form location=%q", loc)
	}
	if got := engine.Income(); len(got) != 1 || got[0].Source != "gaji" {
		t.Fatalf("readable table should be kept unchanged: %+v", got)
	}

	body := do(t, srv, http.MethodGet, "/", "").Body.String()
	if !strings.Contains(body, "Tabel tidak terbaca: expense") {
		t.Fatal("dashboard should name the unreadable table")
	}
}
