package invoicing

import "github.com/shopspring/decimal"

// InvoiceSnapshot is a fully loaded, read-only view of an invoice with its
// items, payments and ledger figures
type InvoiceSnapshot struct {
	Invoice          Invoice         `json:"invoice"`
	Payments         []Payment       `json:"payments"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
}

// NewInvoiceSnapshot derives the ledger figures from the payments
func NewInvoiceSnapshot(inv Invoice, payments []Payment) InvoiceSnapshot {
	totalPaid := TotalCompleted(payments)
	if payments == nil {
		payments = []Payment{}
	}
	return InvoiceSnapshot{
		Invoice:          inv,
		Payments:         payments,
		TotalPaid:        totalPaid,
		RemainingBalance: RemainingBalance(&inv, payments),
	}
}
