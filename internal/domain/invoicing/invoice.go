package invoicing

import (
	"strings"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Due-date bounds in days from the issue date
const (
	DefaultDueDays = 30
	MaxDueDays     = 365
)

// AggregateTypeInvoice is the aggregate name used by invoice events
const AggregateTypeInvoice = "Invoice"

// InvoiceItem is one billable line. Items are created with the invoice and
// never edited afterwards.
type InvoiceItem struct {
	ID          uuid.UUID       `json:"id"`
	InvoiceID   uuid.UUID       `json:"invoice_id"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// ItemInput describes a line item at creation time
type ItemInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Invoice is the billing document aggregate root
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber   string               `json:"invoice_number"`
	LeadID          uuid.UUID            `json:"lead_id"`
	OrderID         *uuid.UUID           `json:"order_id,omitempty"`
	IssueDate       time.Time            `json:"issue_date"`
	DueDate         time.Time            `json:"due_date"`
	PaidDate        *time.Time           `json:"paid_date,omitempty"`
	Status          InvoiceStatus        `json:"status"`
	Subtotal        decimal.Decimal      `json:"subtotal"`
	DiscountPercent decimal.Decimal      `json:"discount_percent"`
	DiscountAmount  decimal.Decimal      `json:"discount_amount"`
	TaxRatePercent  decimal.Decimal      `json:"tax_rate_percent"`
	TaxAmount       decimal.Decimal      `json:"tax_amount"`
	Total           decimal.Decimal      `json:"total"`
	Currency        valueobject.Currency `json:"currency"`
	Notes           *string              `json:"notes,omitempty"`
	Terms           *string              `json:"terms,omitempty"`
	Items           []InvoiceItem        `json:"items"`
}

// NewInvoiceParams collects the inputs of NewInvoice
type NewInvoiceParams struct {
	InvoiceNumber   string
	LeadID          uuid.UUID
	OrderID         *uuid.UUID
	Items           []ItemInput
	TaxRatePercent  decimal.Decimal
	DiscountPercent decimal.Decimal
	// DueDays is added to IssueDate; nil means DefaultDueDays
	DueDays   *int
	IssueDate time.Time
	Currency  string
	Notes     *string
	Terms     *string
}

// ValidateNewInvoice checks everything NewInvoice checks except the number,
// so callers can reject bad input before allocating a number.
func ValidateNewInvoice(p NewInvoiceParams) (Totals, error) {
	if p.LeadID == uuid.Nil {
		return Totals{}, shared.NewValidationError("lead id is required")
	}
	if p.DueDays != nil && (*p.DueDays < 0 || *p.DueDays > MaxDueDays) {
		return Totals{}, shared.NewValidationError("due days must be between 0 and %d, got %d", MaxDueDays, *p.DueDays)
	}
	if p.Currency != "" {
		if _, err := valueobject.ParseCurrency(p.Currency); err != nil {
			return Totals{}, err
		}
	}
	lines := make([]LineInput, len(p.Items))
	for i, item := range p.Items {
		if strings.TrimSpace(item.Description) == "" {
			return Totals{}, shared.NewValidationError("item %d: description is required", i+1)
		}
		lines[i] = LineInput{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	return ComputeTotals(lines, p.TaxRatePercent, p.DiscountPercent)
}

// NewInvoice builds a DRAFT invoice with frozen totals and a derived due date
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if _, _, err := ParseInvoiceNumber(p.InvoiceNumber); err != nil {
		return nil, err
	}
	totals, err := ValidateNewInvoice(p)
	if err != nil {
		return nil, err
	}

	currency := valueobject.DefaultCurrency
	if p.Currency != "" {
		currency, _ = valueobject.ParseCurrency(p.Currency)
	}
	dueDays := DefaultDueDays
	if p.DueDays != nil {
		dueDays = *p.DueDays
	}
	issueDate := p.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now()
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     p.InvoiceNumber,
		LeadID:            p.LeadID,
		OrderID:           p.OrderID,
		IssueDate:         issueDate,
		DueDate:           issueDate.AddDate(0, 0, dueDays),
		Status:            InvoiceStatusDraft,
		Subtotal:          totals.Subtotal,
		DiscountPercent:   p.DiscountPercent,
		DiscountAmount:    totals.DiscountAmount,
		TaxRatePercent:    p.TaxRatePercent,
		TaxAmount:         totals.TaxAmount,
		Total:             totals.Total,
		Currency:          currency,
		Notes:             p.Notes,
		Terms:             p.Terms,
		Items:             make([]InvoiceItem, len(p.Items)),
	}
	for i, item := range p.Items {
		inv.Items[i] = InvoiceItem{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Position:    i,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   ComputeLineTotal(item.Quantity, item.UnitPrice),
		}
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

// InvoicePatch is a partial update. Nil fields are left untouched.
type InvoicePatch struct {
	Status   *InvoiceStatus
	PaidDate *time.Time
	Notes    *string
	Terms    *string
}

// IsEmpty reports whether the patch carries no fields
func (p InvoicePatch) IsEmpty() bool {
	return p.Status == nil && p.PaidDate == nil && p.Notes == nil && p.Terms == nil
}

// ApplyPatch applies an administrative update. Any status may be set from any
// other status, including backward moves such as PAID to DRAFT. Setting PAID
// without a paid date stamps now.
func (inv *Invoice) ApplyPatch(patch InvoicePatch, now time.Time) error {
	if patch.IsEmpty() {
		return shared.NewValidationError("patch must set at least one of status, paid date, notes or terms")
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return shared.NewValidationError("unknown invoice status %q", *patch.Status)
	}

	if patch.Notes != nil {
		inv.Notes = patch.Notes
	}
	if patch.Terms != nil {
		inv.Terms = patch.Terms
	}
	if patch.PaidDate != nil {
		paid := *patch.PaidDate
		inv.PaidDate = &paid
	}
	if patch.Status != nil {
		from := inv.Status
		to := *patch.Status
		if to == InvoiceStatusPaid && patch.PaidDate == nil {
			stamp := now
			inv.PaidDate = &stamp
		}
		if from != to {
			inv.Status = to
			inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, to, StatusChangeReasonManual))
		}
	}

	inv.Touch(now)
	return nil
}

// ApplyPaymentCompletion runs the promotion rule after a payment completes.
// totalPaid is the sum of all COMPLETED payments, including the new one.
// Reaching the total marks the invoice PAID; any payment on a DRAFT invoice
// moves it to SENT; otherwise nothing changes. Returns true if the status moved.
func (inv *Invoice) ApplyPaymentCompletion(totalPaid decimal.Decimal, now time.Time) bool {
	from := inv.Status

	switch {
	case totalPaid.GreaterThanOrEqual(inv.Total):
		if from == InvoiceStatusPaid {
			return false
		}
		stamp := now
		inv.Status = InvoiceStatusPaid
		inv.PaidDate = &stamp
		inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, InvoiceStatusPaid, StatusChangeReasonPayment))
		inv.AddDomainEvent(NewInvoicePaidEvent(inv, totalPaid))
	case from == InvoiceStatusDraft:
		inv.Status = InvoiceStatusSent
		inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, InvoiceStatusSent, StatusChangeReasonPayment))
	default:
		return false
	}

	inv.Touch(now)
	return true
}

// RemainingBalance returns Total - totalPaid. Overpayment yields a negative value.
func (inv *Invoice) RemainingBalance(totalPaid decimal.Decimal) decimal.Decimal {
	return inv.Total.Sub(totalPaid)
}

// IsOverdue reports whether a sent invoice is past its due date
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.Status.IsAwaitingPayment() && now.After(inv.DueDate)
}

// MarkOverdue moves a sent invoice past its due date to OVERDUE.
// Returns false when the invoice does not qualify.
func (inv *Invoice) MarkOverdue(now time.Time) bool {
	if !inv.IsOverdue(now) {
		return false
	}
	from := inv.Status
	inv.Status = InvoiceStatusOverdue
	inv.Touch(now)
	inv.AddDomainEvent(NewInvoiceStatusChangedEvent(inv, from, InvoiceStatusOverdue, StatusChangeReasonOverdue))
	return true
}
