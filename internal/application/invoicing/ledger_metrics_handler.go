package invoicing

import (
	"context"
	"fmt"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerRecorder receives ledger business metrics
type LedgerRecorder interface {
	RecordInvoiceCreated(ctx context.Context, currency string, total decimal.Decimal)
	RecordInvoiceStatusChange(ctx context.Context, to, reason string)
	RecordInvoicePaid(ctx context.Context)
	RecordPaymentCompleted(ctx context.Context, method string, amount decimal.Decimal)
}

// LedgerMetricsHandler turns delivered ledger events into business metrics.
// It should be wrapped in an idempotent handler so redelivered events are
// counted once.
type LedgerMetricsHandler struct {
	recorder LedgerRecorder
	logger   *zap.Logger
}

// NewLedgerMetricsHandler creates a new LedgerMetricsHandler
func NewLedgerMetricsHandler(recorder LedgerRecorder, logger *zap.Logger) *LedgerMetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerMetricsHandler{recorder: recorder, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *LedgerMetricsHandler) EventTypes() []string {
	return []string{
		invoicing.EventTypeInvoiceCreated,
		invoicing.EventTypeInvoiceStatusChanged,
		invoicing.EventTypeInvoicePaid,
		invoicing.EventTypePaymentStatusChanged,
	}
}

// Handle records the metric matching the event
func (h *LedgerMetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *invoicing.InvoiceCreatedEvent:
		h.recorder.RecordInvoiceCreated(ctx, e.Currency, e.Total)
	case *invoicing.InvoiceStatusChangedEvent:
		h.recorder.RecordInvoiceStatusChange(ctx, e.ToStatus.String(), string(e.Reason))
	case *invoicing.InvoicePaidEvent:
		h.recorder.RecordInvoicePaid(ctx)
	case *invoicing.PaymentStatusChangedEvent:
		if e.ToStatus == invoicing.PaymentStatusCompleted {
			h.recorder.RecordPaymentCompleted(ctx, e.Method, e.Amount)
		}
	default:
		return fmt.Errorf("unexpected event type %T for %s", event, event.EventType())
	}

	h.logger.Debug("Ledger metric recorded",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
	)
	return nil
}

var _ shared.EventHandler = (*LedgerMetricsHandler)(nil)
