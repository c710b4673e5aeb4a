package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/platform"
	"github.com/channelsync/backend/internal/domain/shared"
	syncdomain "github.com/channelsync/backend/internal/domain/sync"
)

// recordingHandler captures every event it receives
type recordingHandler struct {
	mu     sync.Mutex
	types  []string
	events []shared.DomainEvent
	err    error
}

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) EventTypes() []string {
	return h.types
}

func (h *recordingHandler) received() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.events...)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	ctx := context.Background()

	t.Run("delivers to subscribed handler", func(t *testing.T) {
		handler := &recordingHandler{types: []string{syncdomain.EventTypeSyncRunCompleted}}
		bus.Subscribe(handler)

		event := syncdomain.NewSyncRunCompletedEvent(uuid.New(), platform.CodeEbay, 3, 1)
		err := bus.Publish(ctx, event)

		require.NoError(t, err)
		received := handler.received()
		require.Len(t, received, 1)
		assert.Equal(t, syncdomain.EventTypeSyncRunCompleted, received[0].EventType())

		bus.Unsubscribe(handler)
	})

	t.Run("does not deliver other event types", func(t *testing.T) {
		handler := &recordingHandler{types: []string{syncdomain.EventTypeSyncRunFailed}}
		bus.Subscribe(handler)

		err := bus.Publish(ctx, syncdomain.NewSyncRunStartedEvent(uuid.New(), platform.CodeEtsy))

		require.NoError(t, err)
		assert.Empty(t, handler.received())

		bus.Unsubscribe(handler)
	})

	t.Run("wildcard handler receives all events", func(t *testing.T) {
		handler := &recordingHandler{}
		bus.Subscribe(handler)

		runID := uuid.New()
		err := bus.Publish(ctx,
			syncdomain.NewSyncRunStartedEvent(runID, platform.CodeMercari),
			syncdomain.NewSyncRunFailedEvent(runID, platform.CodeMercari, "fetch timeout"),
		)

		require.NoError(t, err)
		assert.Len(t, handler.received(), 2)

		bus.Unsubscribe(handler)
	})

	t.Run("handler failure does not block other handlers", func(t *testing.T) {
		failing := &recordingHandler{
			types: []string{syncdomain.EventTypeSyncRunCompleted},
			err:   errors.New("handler broken"),
		}
		healthy := &recordingHandler{types: []string{syncdomain.EventTypeSyncRunCompleted}}
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		err := bus.Publish(ctx, syncdomain.NewSyncRunCompletedEvent(uuid.New(), platform.CodePoshmark, 1, 0))

		require.NoError(t, err)
		assert.Len(t, healthy.received(), 1)

		bus.Unsubscribe(failing)
		bus.Unsubscribe(healthy)
	})

	t.Run("unsubscribed handler stops receiving events", func(t *testing.T) {
		handler := &recordingHandler{types: []string{syncdomain.EventTypeSyncRunStarted}}
		bus.Subscribe(handler)
		bus.Unsubscribe(handler)

		err := bus.Publish(ctx, syncdomain.NewSyncRunStartedEvent(uuid.New(), platform.CodeEbay))

		require.NoError(t, err)
		assert.Empty(t, handler.received())
	})
}

func TestIdempotentHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("processes an event once", func(t *testing.T) {
		inner := &recordingHandler{types: []string{syncdomain.EventTypeSyncRunCompleted}}
		store := &fakeIdempotencyStore{seen: make(map[string]bool)}
		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		event := syncdomain.NewSyncRunCompletedEvent(uuid.New(), platform.CodeEbay, 1, 0)

		require.NoError(t, handler.Handle(ctx, event))
		require.NoError(t, handler.Handle(ctx, event))

		assert.Len(t, inner.received(), 1, "duplicate delivery should be skipped")
	})

	t.Run("store failure falls through to processing", func(t *testing.T) {
		inner := &recordingHandler{types: []string{syncdomain.EventTypeSyncRunCompleted}}
		store := &fakeIdempotencyStore{failing: true}
		handler := NewIdempotentHandler(inner, store, zap.NewNop())

		err := handler.Handle(ctx, syncdomain.NewSyncRunCompletedEvent(uuid.New(), platform.CodeEtsy, 2, 0))

		require.NoError(t, err)
		assert.Len(t, inner.received(), 1, "events should not be dropped on store failure")
	})

	t.Run("disabled config bypasses the store", func(t *testing.T) {
		inner := &recordingHandler{types: []string{syncdomain.EventTypeSyncRunCompleted}}
		store := &fakeIdempotencyStore{failing: true}
		handler := NewIdempotentHandler(inner, store, zap.NewNop(),
			WithIdempotencyConfig(shared.IdempotencyConfig{Enabled: false}),
		)

		event := syncdomain.NewSyncRunCompletedEvent(uuid.New(), platform.CodeMercari, 1, 0)
		require.NoError(t, handler.Handle(ctx, event))
		require.NoError(t, handler.Handle(ctx, event))

		assert.Len(t, inner.received(), 2)
	})
}

// fakeIdempotencyStore is a controllable test double
type fakeIdempotencyStore struct {
	mu      sync.Mutex
	seen    map[string]bool
	failing bool
}

func (s *fakeIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.failing {
		return false, errors.New("store unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *fakeIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	if s.failing {
		return false, errors.New("store unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[key], nil
}

func (s *fakeIdempotencyStore) Close() error { return nil }
