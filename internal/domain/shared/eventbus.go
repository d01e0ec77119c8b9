package shared

import "context"

// EventHandler consumes ledger events after they leave the outbox. An empty
// EventTypes means every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher fans delivered events out to their handlers
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus is an EventPublisher that handlers can join and leave while it
// runs
type EventBus interface {
	EventPublisher
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TxEventPublisher records events in the transaction that changed the
// invoice or payment, so both commit or neither does. tx is the open
// *gorm.DB.
type TxEventPublisher interface {
	PublishWithTx(ctx context.Context, tx any, events ...DomainEvent) error
}
