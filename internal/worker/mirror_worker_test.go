package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keuangan/internal/amqp"
	"keuangan/internal/core"
	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
	"keuangan/internal/storage/memory"
)

type failingStore struct{ err error }

func (f failingStore) Load(context.Context) (ledger.Snapshot, error) { return ledger.Snapshot{}, f.err }
func (f failingStore) Save(context.Context, ledger.Snapshot) error   { return f.err }

func seeded() *memory.Store {
	return memory.New(
		[]core.IncomeRecord{{Date: core.NewDate(2025, 1, 1), Source: "gaji", Amount: core.Money{Cents: 100}}},
		[]core.ExpenseRecord{{Date: core.NewDate(2025, 1, 2), Name: "makan", Amount: core.Money{Cents: 50}, Category: "food"}},
	)
}

func TestMirrorWorker_SyncCopiesSnapshot(t *testing.T) {
	ctx := context.Background()
	source := seeded()
	mirror := memory.New(nil, nil)
	w := NewMirrorWorker(source, mirror, applog.Discard())

	require.NoError(t, w.Sync(ctx))

	want, _ := source.Load(ctx)
	got, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.Income, got.Income)
	assert.Equal(t, want.Expenses, got.Expenses)

	n, last := w.Stats()
	assert.Equal(t, 1, n)
	assert.False(t, last.IsZero())
}

func TestMirrorWorker_SyncsWhenPublisherClockIsBehind(t *testing.T) {
	ctx := context.Background()
	source := seeded()
	mirror := memory.New(nil, nil)
	w := NewMirrorWorker(source, mirror, applog.Discard())
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	require.NoError(t, w.HandleChangeMessage(ctx, &amqp.ChangeMessage{ID: "a", Timestamp: base.Add(-time.Hour)}))
	assert.Equal(t, 1, mirror.Saves())

	// The next change lands in the primary after that copy, stamped by a
	// publisher whose clock is an hour behind the worker's.
	snap, err := source.Load(ctx)
	require.NoError(t, err)
	snap.Expenses = append(snap.Expenses, core.ExpenseRecord{Date: core.NewDate(2025, 1, 3), Name: "bensin", Amount: core.Money{Cents: 20}})
	require.NoError(t, source.Save(ctx, snap))

	require.NoError(t, w.HandleChangeMessage(ctx, &amqp.ChangeMessage{ID: "b", Timestamp: base.Add(-time.Hour + time.Millisecond)}))
	assert.Equal(t, 2, mirror.Saves())
	got, err := mirror.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Expenses, 2, "the later change reaches the mirror")
}

func TestMirrorWorker_SkipsMessageCoveredByLaterCopy(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New(nil, nil)
	w := NewMirrorWorker(seeded(), mirror, applog.Discard())
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// A periodic copy started at base+10s, after the message arrived at base.
	w.now = func() time.Time { return base.Add(10 * time.Second) }
	require.NoError(t, w.Sync(ctx))
	w.now = func() time.Time { return base }

	require.NoError(t, w.HandleChangeMessage(ctx, &amqp.ChangeMessage{ID: "a", Timestamp: base.Add(time.Hour)}))
	assert.Equal(t, 1, mirror.Saves(), "message is covered whatever its publisher stamped")
}

func TestMirrorWorker_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := NewMirrorWorker(failingStore{err: boom}, memory.New(nil, nil), nil).Sync(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "load primary store")

	err = NewMirrorWorker(seeded(), failingStore{err: boom}, nil).Sync(ctx)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "save mirror store")
}

func TestMirrorWorker_RunStopsOnCancel(t *testing.T) {
	mirror := memory.New(nil, nil)
	w := NewMirrorWorker(seeded(), mirror, applog.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return mirror.Saves() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
