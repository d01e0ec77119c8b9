package invoicing

import (
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeInvoiceCreated       = "InvoiceCreated"
	EventTypeInvoiceStatusChanged = "InvoiceStatusChanged"
	EventTypeInvoicePaid          = "InvoicePaid"
	EventTypePaymentRecorded      = "PaymentRecorded"
	EventTypePaymentStatusChanged = "PaymentStatusChanged"
)

// StatusChangeReason tells consumers what drove an invoice status change
type StatusChangeReason string

const (
	StatusChangeReasonManual  StatusChangeReason = "MANUAL"
	StatusChangeReasonPayment StatusChangeReason = "PAYMENT"
	StatusChangeReasonOverdue StatusChangeReason = "OVERDUE"
)

// InvoiceCreatedEvent is raised when a new invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	LeadID        uuid.UUID       `json:"lead_id"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	DueDate       time.Time       `json:"due_date"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		LeadID:          inv.LeadID,
		Total:           inv.Total,
		Currency:        inv.Currency.String(),
		DueDate:         inv.DueDate,
	}
}

// InvoiceStatusChangedEvent is raised whenever the invoice status moves
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID          `json:"invoice_id"`
	InvoiceNumber string             `json:"invoice_number"`
	FromStatus    InvoiceStatus      `json:"from_status"`
	ToStatus      InvoiceStatus      `json:"to_status"`
	Reason        StatusChangeReason `json:"reason"`
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from, to InvoiceStatus, reason StatusChangeReason) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		FromStatus:      from,
		ToStatus:        to,
		Reason:          reason,
	}
}

// InvoicePaidEvent is raised once when completed payments reach the total
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	PaidAt        time.Time       `json:"paid_at"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice, totalPaid decimal.Decimal) *InvoicePaidEvent {
	paidAt := time.Now()
	if inv.PaidDate != nil {
		paidAt = *inv.PaidDate
	}
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, AggregateTypeInvoice, inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Total:           inv.Total,
		TotalPaid:       totalPaid,
		PaidAt:          paidAt,
	}
}

// PaymentRecordedEvent is raised when a payment is first recorded
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		Method:          p.Method,
	}
}

// StreamKey orders the payment with its invoice's events
func (e *PaymentRecordedEvent) StreamKey() uuid.UUID { return e.InvoiceID }

// PaymentStatusChangedEvent is raised when a payment completes or fails
type PaymentStatusChangedEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID       `json:"payment_id"`
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	FromStatus PaymentStatus   `json:"from_status"`
	ToStatus   PaymentStatus   `json:"to_status"`
}

// NewPaymentStatusChangedEvent creates a new PaymentStatusChangedEvent
func NewPaymentStatusChangedEvent(p *Payment, from PaymentStatus) *PaymentStatusChangedEvent {
	return &PaymentStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentStatusChanged, AggregateTypePayment, p.ID),
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
		Method:          p.Method,
		FromStatus:      from,
		ToStatus:        p.Status,
	}
}

// StreamKey orders the payment with its invoice's events
func (e *PaymentStatusChangedEvent) StreamKey() uuid.UUID { return e.InvoiceID }
