package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID, items included
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds an invoice and takes a row lock on it.
// sqlite has no row locks; its single-writer transactions give the same ordering.
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormInvoiceRepository) find(ctx context.Context, query *gorm.DB, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := query.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("invoice", id)
		}
		return nil, translateError(err, "failed to load invoice")
	}
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("position ASC").
		Find(&model.Items).Error; err != nil {
		return nil, translateError(err, "failed to load invoice items")
	}
	return model.ToDomain(), nil
}

// FindLastNumberWithPrefix returns the greatest invoice number starting with prefix.
// Sequences are zero-padded to four digits, so ordering by length first keeps
// INV-2025-10000 after INV-2025-9999.
func (r *GormInvoiceRepository) FindLastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Order("LENGTH(invoice_number) DESC").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &numbers).Error; err != nil {
		return "", translateError(err, "failed to read last invoice number")
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

// FindAll lists invoices matching filter, without their items
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	filter.Filter = filter.Normalize()

	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, translateError(err, "failed to count invoices")
	}

	var invoiceModels []models.InvoiceModel
	if err := query.
		Clauses(invoiceOrder(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&invoiceModels).Error; err != nil {
		return nil, 0, translateError(err, "failed to list invoices")
	}

	invoices := make([]invoicing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices, total, nil
}

// FindOverdueCandidates returns SENT/VIEWED invoices whose due date is before asOf
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("status IN ? AND due_date < ?",
			[]invoicing.InvoiceStatus{invoicing.InvoiceStatusSent, invoicing.InvoiceStatusViewed}, asOf).
		Order("due_date ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return nil, translateError(err, "failed to find overdue invoices")
	}
	return ids, nil
}

// Create inserts an invoice and its items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *invoicing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	items := model.Items
	model.Items = nil

	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
		return translateError(err, "failed to create invoice")
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return translateError(err, "failed to create invoice items")
		}
	}
	return nil
}

// Update writes the mutable header columns of an invoice.
// Line items and money columns are fixed at creation.
func (r *GormInvoiceRepository) Update(ctx context.Context, invoice *invoicing.Invoice) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"status":     invoice.Status,
			"paid_date":  invoice.PaidDate,
			"notes":      invoice.Notes,
			"terms":      invoice.Terms,
			"version":    invoice.Version,
			"updated_at": invoice.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "failed to update invoice")
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("invoice", invoice.ID)
	}
	return nil
}

// Delete hard deletes an invoice together with its items and payments
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("invoice_id = ?", id).Delete(&models.PaymentModel{}).Error; err != nil {
		return translateError(err, "failed to delete invoice payments")
	}
	if err := db.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return translateError(err, "failed to delete invoice items")
	}
	result := db.Where("id = ?", id).Delete(&models.InvoiceModel{})
	if result.Error != nil {
		return translateError(result.Error, "failed to delete invoice")
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("invoice", id)
	}
	return nil
}

var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
