package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by an aggregate and delivered through the
// outbox after its transaction commits.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
}

// StreamKeyed is implemented by events that are ordered with another
// aggregate's history. A payment event carries its invoice's ID so that a
// PaymentStatusChanged is never delivered ahead of the InvoiceCreated it
// settles.
type StreamKeyed interface {
	StreamKey() uuid.UUID
}

// StreamKeyOf is the ordering key of e: its StreamKey when it has one,
// otherwise the ID of the aggregate that raised it.
func StreamKeyOf(e DomainEvent) uuid.UUID {
	if k, ok := e.(StreamKeyed); ok && k.StreamKey() != uuid.Nil {
		return k.StreamKey()
	}
	return e.AggregateID()
}

// BaseDomainEvent carries the envelope every ledger event serializes with.
// Concrete events embed it and add their payload fields.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	AggID     uuid.UUID `json:"aggregate_id"`
	AggType   string    `json:"aggregate_type"`
}

// NewBaseDomainEvent stamps a fresh envelope for aggregate aggID
func NewBaseDomainEvent(eventType, aggType string, aggID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		AggID:     aggID,
		AggType:   aggType,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Timestamp }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.AggID }
func (e *BaseDomainEvent) AggregateType() string  { return e.AggType }
