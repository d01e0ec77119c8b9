package invoicing

import (
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItemInput is one line of an invoice request
type LineItemInput struct {
	Description string          `json:"description" binding:"max=500" example:"Website redesign"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string" example:"2"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string" example:"100.00"`
}

// ComputeTotalsInput asks for a totals preview. Nothing is persisted.
type ComputeTotalsInput struct {
	Items           []LineItemInput `json:"items" binding:"required,min=1,dive"`
	TaxRatePercent  decimal.Decimal `json:"tax_rate_percent" swaggertype:"string" example:"5"`
	DiscountPercent decimal.Decimal `json:"discount_percent" swaggertype:"string" example:"10"`
}

// TotalsResponse is the result of the totals computation
type TotalsResponse struct {
	Subtotal       decimal.Decimal   `json:"subtotal" swaggertype:"string"`
	DiscountAmount decimal.Decimal   `json:"discount_amount" swaggertype:"string"`
	AfterDiscount  decimal.Decimal   `json:"after_discount" swaggertype:"string"`
	TaxAmount      decimal.Decimal   `json:"tax_amount" swaggertype:"string"`
	Total          decimal.Decimal   `json:"total" swaggertype:"string"`
	LineTotals     []decimal.Decimal `json:"line_totals" swaggertype:"array,string"`
}

// InvoiceNumberResponse carries a freshly allocated number
type InvoiceNumberResponse struct {
	InvoiceNumber string `json:"invoice_number" example:"INV-2025-0001"`
}

// CreateInvoiceInput creates a DRAFT invoice. Due days default to the
// configured value; currency defaults to the configured currency.
type CreateInvoiceInput struct {
	LeadID          uuid.UUID       `json:"lead_id" binding:"required"`
	OrderID         *uuid.UUID      `json:"order_id,omitempty"`
	Items           []LineItemInput `json:"items" binding:"required,min=1,dive"`
	TaxRatePercent  decimal.Decimal `json:"tax_rate_percent" swaggertype:"string"`
	DiscountPercent decimal.Decimal `json:"discount_percent" swaggertype:"string"`
	DueDays         *int            `json:"due_days,omitempty" binding:"omitempty,min=0,max=365"`
	IssueDate       *time.Time      `json:"issue_date,omitempty"`
	Currency        string          `json:"currency,omitempty" binding:"omitempty,currency_code" example:"USD"`
	Notes           *string         `json:"notes,omitempty" binding:"omitempty,max=2000"`
	Terms           *string         `json:"terms,omitempty" binding:"omitempty,max=2000"`
}

// PatchInvoiceInput is a partial administrative update
type PatchInvoiceInput struct {
	Status   *string    `json:"status,omitempty" example:"SENT"`
	PaidDate *time.Time `json:"paid_date,omitempty"`
	Notes    *string    `json:"notes,omitempty" binding:"omitempty,max=2000"`
	Terms    *string    `json:"terms,omitempty" binding:"omitempty,max=2000"`
}

// ListInvoicesInput filters the invoice listing
type ListInvoicesInput struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status"`
	LeadID   string `form:"lead_id" binding:"omitempty,uuid"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InvoiceItemResponse is one invoice line
type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Position    int             `json:"position"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string"`
	UnitPrice   decimal.Decimal `json:"unit_price" swaggertype:"string"`
	LineTotal   decimal.Decimal `json:"line_total" swaggertype:"string"`
}

// InvoiceResponse is the invoice header plus its items
type InvoiceResponse struct {
	ID              uuid.UUID             `json:"id"`
	InvoiceNumber   string                `json:"invoice_number"`
	LeadID          uuid.UUID             `json:"lead_id"`
	OrderID         *uuid.UUID            `json:"order_id,omitempty"`
	IssueDate       time.Time             `json:"issue_date"`
	DueDate         time.Time             `json:"due_date"`
	PaidDate        *time.Time            `json:"paid_date,omitempty"`
	Status          string                `json:"status"`
	Subtotal        decimal.Decimal       `json:"subtotal" swaggertype:"string"`
	DiscountPercent decimal.Decimal       `json:"discount_percent" swaggertype:"string"`
	DiscountAmount  decimal.Decimal       `json:"discount_amount" swaggertype:"string"`
	TaxRatePercent  decimal.Decimal       `json:"tax_rate_percent" swaggertype:"string"`
	TaxAmount       decimal.Decimal       `json:"tax_amount" swaggertype:"string"`
	Total           decimal.Decimal       `json:"total" swaggertype:"string"`
	Currency        string                `json:"currency"`
	Notes           *string               `json:"notes,omitempty"`
	Terms           *string               `json:"terms,omitempty"`
	Items           []InvoiceItemResponse `json:"items,omitempty"`
	Version         int                   `json:"version"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// InvoiceDetailResponse is an invoice with its payments and ledger figures
type InvoiceDetailResponse struct {
	InvoiceResponse
	Payments         []PaymentResponse `json:"payments"`
	TotalPaid        decimal.Decimal   `json:"total_paid" swaggertype:"string"`
	RemainingBalance decimal.Decimal   `json:"remaining_balance" swaggertype:"string"`
}

// BalanceResponse reports what has been paid and what remains.
// RemainingBalance is negative on overpayment.
type BalanceResponse struct {
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	Total            decimal.Decimal `json:"total" swaggertype:"string"`
	TotalPaid        decimal.Decimal `json:"total_paid" swaggertype:"string"`
	RemainingBalance decimal.Decimal `json:"remaining_balance" swaggertype:"string"`
	Currency         string          `json:"currency"`
}

// RecordPaymentInput records a PENDING payment against an invoice
type RecordPaymentInput struct {
	InvoiceID     uuid.UUID       `json:"-"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"400.00"`
	Method        string          `json:"method" binding:"required,max=50" example:"bank_transfer"`
	TransactionID *string         `json:"transaction_id,omitempty" binding:"omitempty,max=255"`
	Notes         *string         `json:"notes,omitempty" binding:"omitempty,max=2000"`
	// IdempotencyKey comes from the Idempotency-Key header
	IdempotencyKey string `json:"-"`
}

// MarkPaymentStatusInput moves a payment to a new status
type MarkPaymentStatusInput struct {
	Status string `json:"status" binding:"required" example:"COMPLETED"`
}

// PaymentResponse is a single payment
type PaymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string"`
	Method        string          `json:"method"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	Status        string          `json:"status"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PaymentStatusResult is a payment after a status change, with the state of
// its invoice after promotion
type PaymentStatusResult struct {
	Payment          PaymentResponse `json:"payment"`
	InvoiceStatus    string          `json:"invoice_status"`
	InvoicePromoted  bool            `json:"invoice_promoted"`
	TotalPaid        decimal.Decimal `json:"total_paid" swaggertype:"string"`
	RemainingBalance decimal.Decimal `json:"remaining_balance" swaggertype:"string"`
}

// ToInvoiceResponse converts a domain invoice
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:              inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		LeadID:          inv.LeadID,
		OrderID:         inv.OrderID,
		IssueDate:       inv.IssueDate,
		DueDate:         inv.DueDate,
		PaidDate:        inv.PaidDate,
		Status:          inv.Status.String(),
		Subtotal:        inv.Subtotal,
		DiscountPercent: inv.DiscountPercent,
		DiscountAmount:  inv.DiscountAmount,
		TaxRatePercent:  inv.TaxRatePercent,
		TaxAmount:       inv.TaxAmount,
		Total:           inv.Total,
		Currency:        inv.Currency.String(),
		Notes:           inv.Notes,
		Terms:           inv.Terms,
		Version:         inv.Version,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
	if len(inv.Items) > 0 {
		resp.Items = make([]InvoiceItemResponse, len(inv.Items))
		for i, item := range inv.Items {
			resp.Items[i] = InvoiceItemResponse{
				ID:          item.ID,
				Position:    item.Position,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				LineTotal:   item.LineTotal,
			}
		}
	}
	return resp
}

// ToPaymentResponse converts a domain payment
func ToPaymentResponse(p *invoicing.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		Amount:        p.Amount,
		Method:        p.Method,
		TransactionID: p.TransactionID,
		Status:        p.Status.String(),
		PaidAt:        p.PaidAt,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// ToPaymentResponses converts a slice of domain payments
func ToPaymentResponses(payments []invoicing.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out
}

// ToInvoiceDetailResponse converts a snapshot
func ToInvoiceDetailResponse(snap invoicing.InvoiceSnapshot) InvoiceDetailResponse {
	return InvoiceDetailResponse{
		InvoiceResponse:  ToInvoiceResponse(&snap.Invoice),
		Payments:         ToPaymentResponses(snap.Payments),
		TotalPaid:        snap.TotalPaid,
		RemainingBalance: snap.RemainingBalance,
	}
}
