package models

import (
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentModel is the persistence model for the Payment aggregate root
type PaymentModel struct {
	AggregateModel
	InvoiceID     uuid.UUID               `gorm:"type:uuid;not null;index:idx_payments_invoice_status,priority:1"`
	Amount        decimal.Decimal         `gorm:"type:decimal(12,2);not null"`
	Method        string                  `gorm:"type:varchar(50);not null"`
	TransactionID *string                 `gorm:"type:varchar(255)"`
	Status        invoicing.PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_payments_invoice_status,priority:2"`
	PaidAt        *time.Time
	Notes         *string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *invoicing.Payment {
	p := &invoicing.Payment{
		InvoiceID:     m.InvoiceID,
		Amount:        m.Amount,
		Method:        m.Method,
		TransactionID: m.TransactionID,
		Status:        m.Status,
		PaidAt:        m.PaidAt,
		Notes:         m.Notes,
	}
	m.PopulateAggregateRoot(&p.BaseAggregateRoot)
	return p
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *invoicing.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.InvoiceID = p.InvoiceID
	m.Amount = p.Amount
	m.Method = p.Method
	m.TransactionID = p.TransactionID
	m.Status = p.Status
	m.PaidAt = p.PaidAt
	m.Notes = p.Notes
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *invoicing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}
