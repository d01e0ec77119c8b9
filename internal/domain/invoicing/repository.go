package invoicing

import (
	"context"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Status *InvoiceStatus
	LeadID *uuid.UUID
}

// InvoiceRepository persists invoices together with their items
type InvoiceRepository interface {
	// FindByID loads an invoice with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate loads an invoice and locks its row until the
	// surrounding transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindLastNumberWithPrefix returns the greatest invoice number starting
	// with prefix, or "" when there is none
	FindLastNumberWithPrefix(ctx context.Context, prefix string) (string, error)

	// FindAll lists invoices without items
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// FindOverdueCandidates lists SENT/VIEWED invoices due before asOf
	FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error)

	// Create inserts an invoice and its items
	Create(ctx context.Context, invoice *Invoice) error

	// Update writes the mutable header fields (status, paid date, notes, terms)
	Update(ctx context.Context, invoice *Invoice) error

	// Delete hard deletes the invoice, its items and its payments
	Delete(ctx context.Context, id uuid.UUID) error
}

// PaymentRepository persists payments
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)

	// SumCompleted returns the sum of COMPLETED amounts for an invoice
	SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)

	Create(ctx context.Context, payment *Payment) error
	Update(ctx context.Context, payment *Payment) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// NumberSequence hands out per-year invoice sequence values.
// Next must be called inside a transaction; the counter row stays locked
// until that transaction commits or rolls back.
type NumberSequence interface {
	Next(ctx context.Context, year int) (string, error)
}

// Repositories is the set of repositories bound to one transaction
type Repositories struct {
	Invoices InvoiceRepository
	Payments PaymentRepository
	Numbers  NumberSequence
	// Events stores domain events in the outbox inside the same transaction
	Events shared.EventPublisher
}

// UnitOfWork runs fn in a single database transaction. fn's error rolls back
// every write, including outbox events.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
