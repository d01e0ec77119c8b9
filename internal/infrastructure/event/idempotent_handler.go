package event

import (
	"context"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotentHandler lets a subscriber see each ledger event once even though
// the outbox delivers at least once. The event ID is claimed in the store
// before the inner handler runs and given back if the handler fails, so the
// outbox retry is not mistaken for a duplicate.
type IdempotentHandler struct {
	name   string
	next   shared.EventHandler
	store  shared.IdempotencyStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewIdempotentHandler wraps next under name, which scopes its keys so two
// subscribers of one event do not suppress each other. A nil store turns
// deduplication off.
func NewIdempotentHandler(name string, next shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotentHandler{
		name:   name,
		next:   next,
		store:  store,
		ttl:    shared.DefaultIdempotencyTTL,
		logger: logger.With(zap.String("subscriber", name)),
	}
}

// WithTTL changes how long consumed event IDs are remembered
func (h *IdempotentHandler) WithTTL(ttl time.Duration) *IdempotentHandler {
	if ttl > 0 {
		h.ttl = ttl
	}
	return h
}

// ConsumedKey is the store key recording that subscriber consumed eventID
func ConsumedKey(subscriber, eventID string) string {
	return "consumed:" + subscriber + ":" + eventID
}

func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.store == nil {
		return h.next.Handle(ctx, event)
	}

	key := ConsumedKey(h.name, event.EventID().String())
	first, err := h.store.MarkProcessed(ctx, key, h.ttl)
	switch {
	case err != nil:
		// handle anyway; subscribers tolerate the rare duplicate
		h.logger.Warn("idempotency store unavailable, handling without dedup",
			zap.String("event_type", event.EventType()),
			zap.Stringer("event_id", event.EventID()),
			zap.Error(err))
	case !first:
		h.logger.Debug("already consumed",
			zap.String("event_type", event.EventType()),
			zap.Stringer("event_id", event.EventID()))
		return nil
	}

	if err := h.next.Handle(ctx, event); err != nil {
		if relErr := h.store.Release(ctx, key); relErr != nil {
			h.logger.Warn("release consumed key", zap.String("key", key), zap.Error(relErr))
		}
		return err
	}
	return nil
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
