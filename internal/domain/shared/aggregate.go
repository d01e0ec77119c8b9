package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity is the identity and audit stamp of a stored record
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity assigns a random ID; both stamps share one instant
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// BaseAggregateRoot is embedded by invoices and payments.
// Version starts at 1 and grows by one per state change. Events wait in the
// aggregate until the unit of work moves them into the outbox.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
	pending []DomainEvent
}

// NewBaseAggregateRoot returns a version 1 root with no pending events
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// Touch records a state change made at now
func (a *BaseAggregateRoot) Touch(now time.Time) {
	a.UpdatedAt = now
	a.Version++
}

// GetVersion returns the stored version
func (a *BaseAggregateRoot) GetVersion() int { return a.Version }

// AddDomainEvent queues an event for the outbox
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the queued events in the order they were raised
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent { return a.pending }

// ClearDomainEvents drops the queue once the events are stored
func (a *BaseAggregateRoot) ClearDomainEvents() { a.pending = nil }
