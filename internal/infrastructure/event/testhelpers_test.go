package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupOutboxDB opens an in-memory sqlite database holding only the outbox table
func setupOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.OutboxRecord{}))
	return db
}

// t0 is the wall clock the outbox tests start from
var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newPaymentRecorded(t *testing.T) *invoicing.PaymentRecordedEvent {
	t.Helper()
	return paymentRecordedFor(t, uuid.New())
}

func paymentRecordedFor(t *testing.T, invoiceID uuid.UUID) *invoicing.PaymentRecordedEvent {
	t.Helper()
	p, err := invoicing.NewPayment(invoiceID, decimal.RequireFromString("120.50"), "card", nil, nil)
	require.NoError(t, err)
	return invoicing.NewPaymentRecordedEvent(p)
}

// entryFor serializes evt into a pending entry created at the given time
func entryFor(t *testing.T, evt shared.DomainEvent, seq int, at time.Time) *shared.OutboxEntry {
	t.Helper()
	payload, err := NewInvoicingSerializer().Serialize(evt)
	require.NoError(t, err)
	return shared.NewOutboxEntry(evt, payload, seq, at)
}

func newEntry(t *testing.T) *shared.OutboxEntry {
	t.Helper()
	return entryFor(t, newPaymentRecorded(t), 0, t0)
}

// fakeClock is a settable clock for processor tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingHandler remembers every event it receives
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

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) Received() []shared.DomainEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]shared.DomainEvent(nil), h.events...)
}
