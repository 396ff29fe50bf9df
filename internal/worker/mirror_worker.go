// Package worker keeps a secondary store in step with the primary ledger store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"keuangan/internal/amqp"
	"keuangan/internal/ledger"
	applog "keuangan/internal/log"
)

// MirrorWorker copies the primary store's snapshot into a mirror store.
// It runs on change notifications and, as a backstop for lost messages,
// on a fixed interval.
type MirrorWorker struct {
	source ledger.Store
	mirror ledger.Store
	logger *applog.Logger
	now    func() time.Time

	mu       sync.Mutex
	lastSync time.Time
	syncs    int
}

func NewMirrorWorker(source, mirror ledger.Store, logger *applog.Logger) *MirrorWorker {
	if logger == nil {
		logger = applog.Discard()
	}
	return &MirrorWorker{
		source: source,
		mirror: mirror,
		logger: logger.WithComponent(applog.ComponentWorker),
		now:    time.Now,
	}
}

// HandleChangeMessage mirrors the ledger after a change notification. The
// change was persisted before the message was published, so a copy that
// started after the message arrived already holds it and the message is
// skipped. Only the worker's own clock is compared; the publisher's
// timestamp comes from another machine and says nothing about lastSync.
func (w *MirrorWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	received := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastSync.After(received) {
		w.logger.DebugContext(ctx, "Change already mirrored, skipping",
			"message_id", msg.ID,
			"kind", msg.Kind)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing change message",
		"message_id", msg.ID,
		"kind", msg.Kind,
		"published_at", msg.Timestamp,
		applog.FieldTable, msg.Table,
		applog.FieldPosition, msg.Position)
	return w.syncLocked(ctx)
}

// Sync copies the current primary snapshot into the mirror.
func (w *MirrorWorker) Sync(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked(ctx)
}

func (w *MirrorWorker) syncLocked(ctx context.Context) error {
	started := w.now()
	snap, err := w.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load primary store: %w", err)
	}
	snap.Normalized = nil
	if err := w.mirror.Save(ctx, snap); err != nil {
		return fmt.Errorf("save mirror store: %w", err)
	}
	w.lastSync = started
	w.syncs++

	w.logger.InfoContext(ctx, "Ledger mirrored",
		applog.FieldOperation, applog.OpMirror,
		"income_records", len(snap.Income),
		"expense_records", len(snap.Expenses))
	return nil
}

// Run mirrors once at startup and then on every tick until ctx is done.
// Failures are logged and retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if err := w.Sync(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup mirror failed", applog.FieldError, err)
	}
	if interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "Periodic mirror failed", applog.FieldError, err)
			}
		}
	}
}

// Stats reports how many copies completed and when the last one started.
func (w *MirrorWorker) Stats() (int, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncs, w.lastSync
}
