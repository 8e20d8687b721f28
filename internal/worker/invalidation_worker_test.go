package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelas/internal/amqp"
)

type fakeInvalidator struct {
	owners []string
}

func (f *fakeInvalidator) Invalidate(ownerID string) int {
	f.owners = append(f.owners, ownerID)
	return 2
}

type fakeConsumer struct {
	events []*amqp.LedgerEvent
	err    error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler func(context.Context, *amqp.LedgerEvent) error) error {
	for _, ev := range f.events {
		if err := handler(ctx, ev); err != nil {
			return err
		}
	}
	if f.err != nil {
		return f.err
	}
	return ctx.Err()
}

func TestHandleEventInvalidatesOwner(t *testing.T) {
	inv := &fakeInvalidator{}
	w := NewInvalidationWorker(inv, "instance-a")

	ev := amqp.NewEntriesCreatedEvent("user-1", "mov-1", []string{"e1", "e2"})
	ev.Origin = "instance-b"
	require.NoError(t, w.HandleEvent(context.Background(), ev))

	cat := amqp.NewCategoryDeletedEvent("user-2", "cat-1")
	cat.Origin = "instance-b"
	require.NoError(t, w.HandleEvent(context.Background(), cat))

	assert.Equal(t, []string{"user-1", "user-2"}, inv.owners)
}

func TestHandleEventSkipsOwnEvents(t *testing.T) {
	inv := &fakeInvalidator{}
	w := NewInvalidationWorker(inv, "instance-a")

	ev := amqp.NewEntryDeletedEvent("user-1", "e1")
	ev.Origin = "instance-a"
	require.NoError(t, w.HandleEvent(context.Background(), ev))
	assert.Empty(t, inv.owners)
}

func TestHandleEventRejectsMalformed(t *testing.T) {
	w := NewInvalidationWorker(&fakeInvalidator{}, "")
	assert.Error(t, w.HandleEvent(context.Background(), nil))
	assert.Error(t, w.HandleEvent(context.Background(), &amqp.LedgerEvent{Kind: amqp.EventEntryDeleted}))
}

func TestRun(t *testing.T) {
	t.Run("cancellation is clean", func(t *testing.T) {
		inv := &fakeInvalidator{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		consumer := &fakeConsumer{events: []*amqp.LedgerEvent{amqp.NewEntryDeletedEvent("user-1", "e1")}}
		require.NoError(t, NewInvalidationWorker(inv, "me").Run(ctx, consumer))
		assert.Equal(t, []string{"user-1"}, inv.owners)
	})

	t.Run("consumer failure surfaces", func(t *testing.T) {
		consumer := &fakeConsumer{err: errors.New("channel closed")}
		err := NewInvalidationWorker(&fakeInvalidator{}, "me").Run(context.Background(), consumer)
		assert.ErrorContains(t, err, "channel closed")
	})
}
