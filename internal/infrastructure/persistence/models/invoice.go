package models

import (
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber   string                  `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_number"`
	LeadID          uuid.UUID               `gorm:"type:uuid;not null;index"`
	OrderID         *uuid.UUID              `gorm:"type:uuid;index"`
	IssueDate       time.Time               `gorm:"not null"`
	DueDate         time.Time               `gorm:"not null;index:idx_invoices_status_due,priority:2"`
	PaidDate        *time.Time
	Status          invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index:idx_invoices_status_due,priority:1"`
	Subtotal        decimal.Decimal         `gorm:"type:decimal(12,2);not null"`
	DiscountPercent decimal.Decimal         `gorm:"type:decimal(5,2);not null"`
	DiscountAmount  decimal.Decimal         `gorm:"type:decimal(12,2);not null"`
	TaxRatePercent  decimal.Decimal         `gorm:"type:decimal(5,2);not null"`
	TaxAmount       decimal.Decimal         `gorm:"type:decimal(12,2);not null"`
	Total           decimal.Decimal         `gorm:"type:decimal(12,2);not null"`
	Currency        string                  `gorm:"type:varchar(3);not null;default:'USD'"`
	Notes           *string                 `gorm:"type:text"`
	Terms           *string                 `gorm:"type:text"`
	Items           []InvoiceItemModel      `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		InvoiceNumber:   m.InvoiceNumber,
		LeadID:          m.LeadID,
		OrderID:         m.OrderID,
		IssueDate:       m.IssueDate,
		DueDate:         m.DueDate,
		PaidDate:        m.PaidDate,
		Status:          m.Status,
		Subtotal:        m.Subtotal,
		DiscountPercent: m.DiscountPercent,
		DiscountAmount:  m.DiscountAmount,
		TaxRatePercent:  m.TaxRatePercent,
		TaxAmount:       m.TaxAmount,
		Total:           m.Total,
		Currency:        valueobject.Currency(m.Currency),
		Notes:           m.Notes,
		Terms:           m.Terms,
		Items:           make([]invoicing.InvoiceItem, len(m.Items)),
	}
	m.PopulateAggregateRoot(&inv.BaseAggregateRoot)
	for i := range m.Items {
		inv.Items[i] = m.Items[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.LeadID = inv.LeadID
	m.OrderID = inv.OrderID
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.PaidDate = inv.PaidDate
	m.Status = inv.Status
	m.Subtotal = inv.Subtotal
	m.DiscountPercent = inv.DiscountPercent
	m.DiscountAmount = inv.DiscountAmount
	m.TaxRatePercent = inv.TaxRatePercent
	m.TaxAmount = inv.TaxAmount
	m.Total = inv.Total
	m.Currency = inv.Currency.String()
	m.Notes = inv.Notes
	m.Terms = inv.Terms
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		m.Items[i].FromDomain(&inv.Items[i])
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *invoicing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is the persistence model for invoice line items
type InvoiceItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_invoice_items_invoice_position,priority:1"`
	Position    int             `gorm:"not null;index:idx_invoice_items_invoice_position,priority:2"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() invoicing.InvoiceItem {
	return invoicing.InvoiceItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		Position:    m.Position,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		LineTotal:   m.LineTotal,
	}
}

// FromDomain populates the persistence model from a domain InvoiceItem
func (m *InvoiceItemModel) FromDomain(item *invoicing.InvoiceItem) {
	m.ID = item.ID
	m.InvoiceID = item.InvoiceID
	m.Position = item.Position
	m.Description = item.Description
	m.Quantity = item.Quantity
	m.UnitPrice = item.UnitPrice
	m.LineTotal = item.LineTotal
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
}

// InvoiceNumberSequenceModel holds the last issued sequence value for a year
type InvoiceNumberSequenceModel struct {
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvoiceNumberSequenceModel) TableName() string {
	return "invoice_number_sequences"
}
