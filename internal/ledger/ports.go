package ledger

import (
	"context"
	"time"

	"keuangan/internal/core"
)

// Table names used in events, logs and metrics.
const (
	TableIncome  = "income"
	TableExpense = "expense"
)

// Snapshot is the full persisted state of both collections.
type Snapshot struct {
	Income   []core.IncomeRecord
	Expenses []core.ExpenseRecord
	// Normalized lists the one-time fixes a store applied while decoding
	// legacy data (category backfill, date coercion). Non-empty means the
	// snapshot differs from what is on disk and should be written back.
	Normalized []string
}

// Ports for outbound adapters.
//
//go:generate mockgen -destination=mocks/mock_store.go -package=mocks keuangan/internal/ledger Store
type (
	Store interface {
		// Load returns both collections. A store with nothing persisted yet
		// returns an empty snapshot and no error. When only some tables fail
		// to read it returns the others with a *LoadError.
		Load(ctx context.Context) (Snapshot, error)
		// Save replaces the persisted collections with s.
		Save(ctx context.Context, s Snapshot) error
	}

	// Locker is implemented by stores that several processes may share.
	// The engine holds the lock across reload, mutate and save.
	Locker interface {
		Lock(ctx context.Context) (unlock func() error, err error)
	}

	// Quarantiner is implemented by stores that can move an unreadable
	// table's source aside, so the next Save does not overwrite it. It
	// returns where the source went.
	Quarantiner interface {
		SetAside(ctx context.Context, table string) (string, error)
	}

	// Publisher receives a notification after every durable mutation.
	Publisher interface {
		PublishChange(ctx context.Context, ev ChangeEvent) error
	}

	// Recorder collects operational metrics.
	Recorder interface {
		ObserveMutation(op, table string, err error)
		ObservePersist(d time.Duration, err error)
		SetRecordCount(table string, n int)
	}
)

// ChangeKind describes what a mutation did.
type ChangeKind string

const (
	ChangeAppended   ChangeKind = "appended"
	ChangeDeleted    ChangeKind = "deleted"
	ChangeCleared    ChangeKind = "cleared"
	ChangeNormalized ChangeKind = "normalized"
)

// ChangeEvent is emitted after a mutation has been persisted.
type ChangeEvent struct {
	Kind     ChangeKind
	Table    string
	Position int
	Records  int
	At       time.Time
}

// Tables is a copy of both collections handed to callers.
type Tables struct {
	Income   []core.IncomeRecord
	Expenses []core.ExpenseRecord
}
