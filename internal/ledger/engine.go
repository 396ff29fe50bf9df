// Package ledger owns the income and expense collections for one process.
//
// Every mutation validates first, then changes the in-memory tables, then
// rewrites the whole store. Aggregates are recomputed from the full
// collections on every query; record counts are small enough that no
// caching is kept.
package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"keuangan/internal/core"
	applog "keuangan/internal/log"
)

// Engine is the single owner of both record collections.
type Engine struct {
	mu       sync.RWMutex
	store    Store
	income   []core.IncomeRecord
	expenses []core.ExpenseRecord
	dirty    bool
	// unreadable holds the tables whose source failed to load. They are
	// never written over until the store sets them aside or they read
	// cleanly again.
	unreadable map[string]error

	logger    *applog.Logger
	publisher Publisher
	recorder  Recorder
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for load warnings and mutation logs.
func WithLogger(l *applog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.WithComponent(applog.ComponentLedger)
		}
	}
}

// WithPublisher sets the sink notified after each persisted mutation.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine backed by store. Call Load before serving.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		logger: applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentLedger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the in-memory tables with the persisted ones. A table that
// cannot be read starts empty and is not overwritten until it reads again or
// the store sets it aside; the other table loads normally. When the store had
// to normalize legacy rows, the normalized tables are written back once; a
// failure there is returned but the loaded tables stay usable.
func (e *Engine) Load(ctx context.Context) (Tables, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	release, err := e.lockStore(ctx)
	if err != nil {
		return e.tablesLocked(), err
	}
	defer release()

	snap, err := e.store.Load(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return e.tablesLocked(), ctxErr
	}
	e.unreadable = unreadableTables(err)
	if _, failed := e.unreadable[TableIncome]; failed {
		snap.Income = nil
	}
	if _, failed := e.unreadable[TableExpense]; failed {
		snap.Expenses = nil
	}
	if err != nil {
		e.logger.WarnContext(ctx, "Ledger tables unreadable, starting them empty",
			applog.FieldOperation, applog.OpLoad,
			"tables", strings.Join(e.unreadableNames(), ","),
			applog.FieldError, err)
	}
	e.income = snap.Income
	e.expenses = snap.Expenses
	e.dirty = false
	e.recordCounts()

	e.logger.InfoContext(ctx, "Ledger loaded",
		"income_records", len(e.income),
		"expense_records", len(e.expenses))

	if len(snap.Normalized) > 0 {
		e.logger.InfoContext(ctx, "Normalizing legacy ledger data",
			applog.FieldOperation, applog.OpMigrate,
			"steps", strings.Join(snap.Normalized, "; "))
		if err := e.prepareWriteLocked(ctx); err != nil {
			return e.tablesLocked(), err
		}
		if err := e.persistLocked(ctx, OpNormalize); err != nil {
			return e.tablesLocked(), err
		}
		e.publish(ctx, ChangeEvent{Kind: ChangeNormalized, Position: -1, Records: len(e.expenses)})
	}
	return e.tablesLocked(), nil
}

// AppendIncome validates and appends an income record, then persists.
func (e *Engine) AppendIncome(ctx context.Context, date core.Date, source string, amount core.Money) ([]core.IncomeRecord, error) {
	rec := core.IncomeRecord{Date: date, Source: strings.TrimSpace(source), Amount: amount}
	if err := rec.Validate(); err != nil {
		e.observe(OpAppend, TableIncome, err)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	release, err := e.beginWriteLocked(ctx)
	if err != nil {
		e.observe(OpAppend, TableIncome, err)
		return copyIncome(e.income), err
	}
	defer release()

	e.income = append(e.income, rec)
	pos := len(e.income) - 1
	err = e.persistLocked(ctx, OpAppend)
	e.observe(OpAppend, TableIncome, err)
	if err != nil {
		return copyIncome(e.income), err
	}
	e.logger.InfoContext(ctx, "Income appended", applog.NewFields().
		WithRecord(TableIncome, rec.Date.String(), rec.Source, rec.Amount.Cents).
		WithOperation(applog.OpAppend).ToSlice()...)
	e.publish(ctx, ChangeEvent{Kind: ChangeAppended, Table: TableIncome, Position: pos, Records: len(e.income)})
	return copyIncome(e.income), nil
}

// AppendExpense validates and appends an expense record, then persists.
// An empty category is kept as-is.
func (e *Engine) AppendExpense(ctx context.Context, date core.Date, name string, amount core.Money, category string) ([]core.ExpenseRecord, error) {
	rec := core.ExpenseRecord{
		Date:     date,
		Name:     strings.TrimSpace(name),
		Amount:   amount,
		Category: strings.TrimSpace(category),
	}
	if err := rec.Validate(); err != nil {
		e.observe(OpAppend, TableExpense, err)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	release, err := e.beginWriteLocked(ctx)
	if err != nil {
		e.observe(OpAppend, TableExpense, err)
		return copyExpenses(e.expenses), err
	}
	defer release()

	e.expenses = append(e.expenses, rec)
	pos := len(e.expenses) - 1
	err = e.persistLocked(ctx, OpAppend)
	e.observe(OpAppend, TableExpense, err)
	if err != nil {
		return copyExpenses(e.expenses), err
	}
	e.logger.InfoContext(ctx, "Expense appended", applog.NewFields().
		WithRecord(TableExpense, rec.Date.String(), rec.Name, rec.Amount.Cents).
		WithOperation(applog.OpAppend).ToSlice()...)
	e.publish(ctx, ChangeEvent{Kind: ChangeAppended, Table: TableExpense, Position: pos, Records: len(e.expenses)})
	return copyExpenses(e.expenses), nil
}

// DeleteIncome removes the income record at pos; later records shift down.
func (e *Engine) DeleteIncome(ctx context.Context, pos int) ([]core.IncomeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	release, err := e.beginWriteLocked(ctx)
	if err != nil {
		e.observe(OpDelete, TableIncome, err)
		return copyIncome(e.income), err
	}
	defer release()

	if pos < 0 || pos >= len(e.income) {
		err := indexError(TableIncome, pos, len(e.income))
		e.observe(OpDelete, TableIncome, err)
		return nil, err
	}
	e.income = append(e.income[:pos:pos], e.income[pos+1:]...)
	err = e.persistLocked(ctx, OpDelete)
	e.observe(OpDelete, TableIncome, err)
	if err != nil {
		return copyIncome(e.income), err
	}
	e.logger.InfoContext(ctx, "Income deleted", applog.NewFields().
		WithPosition(TableIncome, pos).WithOperation(applog.OpDelete).ToSlice()...)
	e.publish(ctx, ChangeEvent{Kind: ChangeDeleted, Table: TableIncome, Position: pos, Records: len(e.income)})
	return copyIncome(e.income), nil
}

// DeleteExpense removes the expense record at pos; later records shift down.
func (e *Engine) DeleteExpense(ctx context.Context, pos int) ([]core.ExpenseRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	release, err := e.beginWriteLocked(ctx)
	if err != nil {
		e.observe(OpDelete, TableExpense, err)
		return copyExpenses(e.expenses), err
	}
	defer release()

	if pos < 0 || pos >= len(e.expenses) {
		err := indexError(TableExpense, pos, len(e.expenses))
		e.observe(OpDelete, TableExpense, err)
		return nil, err
	}
	e.expenses = append(e.expenses[:pos:pos], e.expenses[pos+1:]...)
	err = e.persistLocked(ctx, OpDelete)
	e.observe(OpDelete, TableExpense, err)
	if err != nil {
		return copyExpenses(e.expenses), err
	}
	e.logger.InfoContext(ctx, "Expense deleted", applog.NewFields().
		WithPosition(TableExpense, pos).WithOperation(applog.OpDelete).ToSlice()...)
	e.publish(ctx, ChangeEvent{Kind: ChangeDeleted, Table: TableExpense, Position: pos, Records: len(e.expenses)})
	return copyExpenses(e.expenses), nil
}

// ClearExpenses drops every expense record. There is no undo.
func (e *Engine) ClearExpenses(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	release, err := e.beginWriteLocked(ctx)
	if err != nil {
		e.observe(OpClear, TableExpense, err)
		return err
	}
	defer release()

	removed := len(e.expenses)
	e.expenses = nil
	err = e.persistLocked(ctx, OpClear)
	e.observe(OpClear, TableExpense, err)
	if err != nil {
		return err
	}
	e.logger.WarnContext(ctx, "Expenses cleared",
		applog.FieldOperation, applog.OpClear,
		applog.FieldRecords, removed)
	e.publish(ctx, ChangeEvent{Kind: ChangeCleared, Table: TableExpense, Position: -1})
	return nil
}

// Flush retries persisting the in-memory tables after a failed write.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.dirty {
		return nil
	}
	release, err := e.beginWriteLocked(ctx)
	if err != nil {
		return err
	}
	defer release()
	return e.persistLocked(ctx, OpFlush)
}

// Unreadable lists the tables whose source could not be read, sorted.
func (e *Engine) Unreadable() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.unreadableNames()
}

// Dirty reports whether the in-memory tables are ahead of the store.
func (e *Engine) Dirty() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dirty
}

// Income returns a copy of the income table.
func (e *Engine) Income() []core.IncomeRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyIncome(e.income)
}

// Expenses returns a copy of the expense table.
func (e *Engine) Expenses() []core.ExpenseRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return copyExpenses(e.expenses)
}

// Tables returns a copy of both tables taken under one lock.
func (e *Engine) Tables() Tables {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tablesLocked()
}

func (e *Engine) tablesLocked() Tables {
	return Tables{Income: copyIncome(e.income), Expenses: copyExpenses(e.expenses)}
}

// lockStore takes the cross-process lock of stores that have one.
func (e *Engine) lockStore(ctx context.Context) (func(), error) {
	l, ok := e.store.(Locker)
	if !ok {
		return func() {}, nil
	}
	unlock, err := l.Lock(ctx)
	if err != nil {
		return nil, fmt.Errorf("lock ledger store: %w", err)
	}
	return func() {
		if err := unlock(); err != nil {
			e.logger.WarnContext(ctx, "Failed to unlock ledger store", applog.FieldError, err)
		}
	}, nil
}

// beginWriteLocked prepares a mutation. It takes the store lock, rereads
// the store when another process may have written it (or a table was
// unreadable), and makes sure no unreadable source would be overwritten.
// A dirty engine is not reread: its unsaved changes win. Callers hold e.mu
// and call the returned release when done.
func (e *Engine) beginWriteLocked(ctx context.Context) (func(), error) {
	release, err := e.lockStore(ctx)
	if err != nil {
		return nil, err
	}
	_, shared := e.store.(Locker)
	if !e.dirty && (shared || len(e.unreadable) > 0) {
		if err := e.refreshLocked(ctx); err != nil {
			release()
			return nil, err
		}
	}
	if err := e.prepareWriteLocked(ctx); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// refreshLocked replaces every table that reads cleanly with its persisted
// version. A table that fails keeps its in-memory copy and is marked
// unreadable.
func (e *Engine) refreshLocked(ctx context.Context) error {
	snap, err := e.store.Load(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	failed := unreadableTables(err)
	if cause, ok := failed[TableIncome]; ok {
		e.markUnreadable(TableIncome, cause)
	} else {
		e.income = snap.Income
		delete(e.unreadable, TableIncome)
	}
	if cause, ok := failed[TableExpense]; ok {
		e.markUnreadable(TableExpense, cause)
	} else {
		e.expenses = snap.Expenses
		delete(e.unreadable, TableExpense)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "Ledger tables unreadable on reload",
			applog.FieldOperation, applog.OpLoad,
			"tables", strings.Join(e.unreadableNames(), ","),
			applog.FieldError, err)
	}
	e.recordCounts()
	return nil
}

// prepareWriteLocked clears the way for a Save. Unreadable sources are set
// aside when the store supports it; otherwise the write is refused.
func (e *Engine) prepareWriteLocked(ctx context.Context) error {
	if len(e.unreadable) == 0 {
		return nil
	}
	q, ok := e.store.(Quarantiner)
	if !ok {
		var parts []string
		for _, table := range e.unreadableNames() {
			parts = append(parts, fmt.Sprintf("%s: %v", table, e.unreadable[table]))
		}
		return fmt.Errorf("%w: %s", ErrUnreadableSource, strings.Join(parts, "; "))
	}
	for _, table := range e.unreadableNames() {
		dest, err := q.SetAside(ctx, table)
		if err != nil {
			return fmt.Errorf("%w: set aside %s: %v", ErrUnreadableSource, table, err)
		}
		e.logger.WarnContext(ctx, "Unreadable ledger source set aside",
			applog.FieldTable, table,
			"moved_to", dest)
		delete(e.unreadable, table)
	}
	return nil
}

func (e *Engine) markUnreadable(table string, err error) {
	if e.unreadable == nil {
		e.unreadable = make(map[string]error, 2)
	}
	e.unreadable[table] = err
}

func (e *Engine) unreadableNames() []string {
	names := make([]string, 0, len(e.unreadable))
	for table := range e.unreadable {
		names = append(names, table)
	}
	sort.Strings(names)
	return names
}

// persistLocked writes both tables. Callers hold e.mu.
func (e *Engine) persistLocked(ctx context.Context, op string) error {
	start := time.Now()
	err := e.store.Save(ctx, Snapshot{Income: copyIncome(e.income), Expenses: copyExpenses(e.expenses)})
	if e.recorder != nil {
		e.recorder.ObservePersist(time.Since(start), err)
	}
	e.recordCounts()
	if err != nil {
		e.dirty = true
		e.logger.ErrorContext(ctx, "Ledger persist failed, in-memory state is not durable",
			applog.FieldOperation, op,
			applog.FieldError, err)
		return &PersistenceError{Op: op, Err: err}
	}
	e.dirty = false
	return nil
}

func (e *Engine) publish(ctx context.Context, ev ChangeEvent) {
	if e.publisher == nil {
		return
	}
	ev.At = e.now()
	if err := e.publisher.PublishChange(ctx, ev); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish ledger change",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldTable, ev.Table,
			applog.FieldError, err)
	}
}

func (e *Engine) observe(op, table string, err error) {
	if e.recorder != nil {
		e.recorder.ObserveMutation(op, table, err)
	}
}

func (e *Engine) recordCounts() {
	if e.recorder == nil {
		return
	}
	e.recorder.SetRecordCount(TableIncome, len(e.income))
	e.recorder.SetRecordCount(TableExpense, len(e.expenses))
}

// Operation names passed to PersistenceError and metrics.
const (
	OpAppend    = "append"
	OpDelete    = "delete"
	OpClear     = "clear"
	OpFlush     = "flush"
	OpNormalize = "normalize"
)

func copyIncome(in []core.IncomeRecord) []core.IncomeRecord {
	return append([]core.IncomeRecord(nil), in...)
}

func copyExpenses(in []core.ExpenseRecord) []core.ExpenseRecord {
	return append([]core.ExpenseRecord(nil), in...)
}
