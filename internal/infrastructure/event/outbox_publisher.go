package event

import (
	"context"
	"fmt"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"gorm.io/gorm"
)

// OutboxPublisher turns the events raised inside a unit of work into outbox
// rows of the same transaction. Events committed together share CreatedAt and
// keep their raise order through Seq.
type OutboxPublisher struct {
	serializer *EventSerializer
	now        func() time.Time
}

// NewOutboxPublisher creates a publisher stamping entries with the wall clock
func NewOutboxPublisher(serializer *EventSerializer) *OutboxPublisher {
	return &OutboxPublisher{
		serializer: serializer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PublishWithTx writes events through tx, which must be the *gorm.DB of the
// transaction that saves the invoice or payment.
func (p *OutboxPublisher) PublishWithTx(ctx context.Context, tx any, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	db, ok := tx.(*gorm.DB)
	if !ok {
		return fmt.Errorf("outbox publisher needs a *gorm.DB transaction, got %T", tx)
	}

	committedAt := p.now()
	entries := make([]*shared.OutboxEntry, len(events))
	for i, e := range events {
		payload, err := p.serializer.Serialize(e)
		if err != nil {
			return fmt.Errorf("serialize %s: %w", e.EventType(), err)
		}
		entries[i] = shared.NewOutboxEntry(e, payload, i, committedAt)
	}
	return NewGormOutboxRepository(db).Append(ctx, entries...)
}

var _ shared.TxEventPublisher = (*OutboxPublisher)(nil)
