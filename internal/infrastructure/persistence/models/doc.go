// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: shared columns (BaseModel, AggregateModel)
//   - invoice.go: invoices, invoice_items and invoice_number_sequences
//   - payment.go: payments
//   - outbox.go: outbox pattern model for event delivery
package models
