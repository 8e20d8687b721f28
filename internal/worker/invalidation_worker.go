package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"parcelas/internal/amqp"
)

// Invalidator drops cached aggregates of one owner.
type Invalidator interface {
	Invalidate(ownerID string) int
}

// Consumer delivers ledger events until ctx is done.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error
}

// InvalidationWorker keeps this instance's aggregation cache consistent
// with writes made by other instances.
type InvalidationWorker struct {
	cache  Invalidator
	origin string
}

// NewInvalidationWorker ignores events published with origin, since the
// writing instance already invalidated its own cache.
func NewInvalidationWorker(cache Invalidator, origin string) *InvalidationWorker {
	return &InvalidationWorker{cache: cache, origin: origin}
}

// HandleEvent processes a single ledger event from AMQP
func (w *InvalidationWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	if ev == nil || ev.OwnerID == "" {
		return fmt.Errorf("malformed ledger event")
	}
	if w.origin != "" && ev.Origin == w.origin {
		slog.DebugContext(ctx, "Skipping own ledger event", "event_kind", ev.Kind, "owner_id", ev.OwnerID)
		return nil
	}

	switch ev.Kind {
	case amqp.EventEntriesCreated, amqp.EventEntryDeleted, amqp.EventCategoryDeleted:
	default:
		slog.WarnContext(ctx, "Unknown ledger event kind, invalidating anyway",
			"event_kind", ev.Kind,
			"owner_id", ev.OwnerID)
	}

	removed := w.cache.Invalidate(ev.OwnerID)
	slog.InfoContext(ctx, "Invalidated cached aggregates",
		"event_kind", ev.Kind,
		"owner_id", ev.OwnerID,
		"origin", ev.Origin,
		"removed", removed,
		"timestamp", ev.Timestamp)
	return nil
}

// Run consumes events until ctx is cancelled. Cancellation is not an error.
func (w *InvalidationWorker) Run(ctx context.Context, consumer Consumer) error {
	slog.InfoContext(ctx, "Starting cache invalidation worker", "origin", w.origin)
	err := consumer.Consume(ctx, w.HandleEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume ledger events: %w", err)
	}
	slog.InfoContext(ctx, "Cache invalidation worker stopped")
	return nil
}
