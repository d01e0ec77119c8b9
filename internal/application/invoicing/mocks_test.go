package invoicing

import (
	"context"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockInvoiceRepository is a mock implementation of invoicing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindLastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	args := m.Called(ctx, prefix)
	return args.String(0), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]invoicing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, inv *invoicing.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockPaymentRepository is a mock implementation of invoicing.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, invoiceID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *invoicing.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) Update(ctx context.Context, p *invoicing.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockNumberSequence is a mock implementation of invoicing.NumberSequence
type MockNumberSequence struct {
	mock.Mock
}

func (m *MockNumberSequence) Next(ctx context.Context, year int) (string, error) {
	args := m.Called(ctx, year)
	return args.String(0), args.Error(1)
}

// recordingPublisher collects published events
type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// fakeUnitOfWork runs fn against the mock repositories. Events published by
// a failed fn are discarded, like a rolled back transaction.
type fakeUnitOfWork struct {
	repos     invoicing.Repositories
	publisher *recordingPublisher
	calls     int
}

func newFakeUnitOfWork(invoices *MockInvoiceRepository, payments *MockPaymentRepository, numbers *MockNumberSequence) *fakeUnitOfWork {
	pub := &recordingPublisher{}
	return &fakeUnitOfWork{
		repos: invoicing.Repositories{
			Invoices: invoices,
			Payments: payments,
			Numbers:  numbers,
			Events:   pub,
		},
		publisher: pub,
	}
}

func (u *fakeUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos invoicing.Repositories) error) error {
	u.calls++
	before := len(u.publisher.events)
	if err := fn(ctx, u.repos); err != nil {
		u.publisher.events = u.publisher.events[:before]
		return err
	}
	return nil
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	return nil
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestInvoice builds a DRAFT invoice with a single line totaling total
func newTestInvoice(total string, issued time.Time) *invoicing.Invoice {
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		InvoiceNumber: "INV-2025-0001",
		LeadID:        uuid.New(),
		Items: []invoicing.ItemInput{
			{Description: "Consulting", Quantity: decimal.NewFromInt(1), UnitPrice: dec(total)},
		},
		IssueDate: issued,
	})
	if err != nil {
		panic(err)
	}
	inv.ClearDomainEvents()
	return inv
}

func newTestPayment(invoiceID uuid.UUID, amount string) *invoicing.Payment {
	p, err := invoicing.NewPayment(invoiceID, dec(amount), "bank_transfer", nil, nil)
	if err != nil {
		panic(err)
	}
	p.ClearDomainEvents()
	return p
}

func fixedTime() time.Time {
	return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
}
