package invoicing

import (
	"strings"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypePayment is the aggregate name used by payment events
const AggregateTypePayment = "Payment"

// Payment is a recorded payment attempt against an invoice.
// Nothing is captured from a gateway; the record is the ledger entry.
type Payment struct {
	shared.BaseAggregateRoot
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Status        PaymentStatus   `json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
}

// NewPayment creates a PENDING payment
func NewPayment(invoiceID uuid.UUID, amount decimal.Decimal, method string, transactionID, notes *string) (*Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, shared.NewValidationError("invoice id is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("payment amount must be greater than 0, got %s", amount.String())
	}
	if err := valueobject.CheckAmount("payment amount", amount); err != nil {
		return nil, err
	}
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, shared.NewValidationError("payment method is required")
	}

	p := &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceID:         invoiceID,
		Amount:            amount,
		Method:            method,
		TransactionID:     transactionID,
		Status:            PaymentStatusPending,
		Notes:             notes,
	}
	p.AddDomainEvent(NewPaymentRecordedEvent(p))
	return p, nil
}

// MarkStatus moves the payment to status. COMPLETED stamps PaidAt; any
// other status clears it since the payment no longer counts as paid.
// Returns true if the status actually changed.
func (p *Payment) MarkStatus(status PaymentStatus, now time.Time) (bool, error) {
	if !status.IsValid() {
		return false, shared.NewValidationError("unknown payment status %q", status)
	}
	if p.Status == status {
		return false, nil
	}

	from := p.Status
	p.Status = status
	if status == PaymentStatusCompleted {
		stamp := now
		p.PaidAt = &stamp
	} else {
		p.PaidAt = nil
	}
	p.Touch(now)
	p.AddDomainEvent(NewPaymentStatusChangedEvent(p, from))
	return true, nil
}

// IsCompleted returns true if the payment counts toward the invoice balance
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// TotalCompleted sums the amounts of COMPLETED payments
func TotalCompleted(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for i := range payments {
		if payments[i].IsCompleted() {
			total = total.Add(payments[i].Amount)
		}
	}
	return total
}

// RemainingBalance returns what is still owed on inv given its payments.
// Only COMPLETED payments count.
func RemainingBalance(inv *Invoice, payments []Payment) decimal.Decimal {
	return inv.RemainingBalance(TotalCompleted(payments))
}
