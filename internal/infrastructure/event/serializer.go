package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
)

// ErrUnknownEventType is returned when decoding a type nobody registered
var ErrUnknownEventType = errors.New("unknown event type")

// EventSerializer stores ledger events as JSON and decodes them back into
// their concrete struct by event type name, so bus subscribers can type-switch
// on what they receive from the outbox.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]func() shared.DomainEvent
}

// NewEventSerializer returns a serializer with nothing registered
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]func() shared.DomainEvent)}
}

// NewInvoicingSerializer knows every invoice and payment event
func NewInvoicingSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterEvent[invoicing.InvoiceCreatedEvent](s, invoicing.EventTypeInvoiceCreated)
	RegisterEvent[invoicing.InvoiceStatusChangedEvent](s, invoicing.EventTypeInvoiceStatusChanged)
	RegisterEvent[invoicing.InvoicePaidEvent](s, invoicing.EventTypeInvoicePaid)
	RegisterEvent[invoicing.PaymentRecordedEvent](s, invoicing.EventTypePaymentRecorded)
	RegisterEvent[invoicing.PaymentStatusChangedEvent](s, invoicing.EventTypePaymentStatusChanged)
	return s
}

// RegisterEvent decodes eventType into a *T
func RegisterEvent[T any, PT interface {
	*T
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[eventType] = func() shared.DomainEvent { return PT(new(T)) }
}

func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event.EventType(), err)
	}
	return data, nil
}

func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("decode %s: %w", eventType, err)
	}
	return event, nil
}

// Knows reports whether eventType can be decoded
func (s *EventSerializer) Knows(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}
