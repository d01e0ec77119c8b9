package persistence

import (
	"context"
	"errors"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentRepository implements invoicing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("payment", id)
		}
		return nil, translateError(err, "failed to load payment")
	}
	return model.ToDomain(), nil
}

// FindByInvoice lists an invoice's payments, oldest first
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, translateError(err, "failed to list payments")
	}
	payments := make([]invoicing.Payment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = *paymentModels[i].ToDomain()
	}
	return payments, nil
}

// SumCompleted returns the total of COMPLETED payments for an invoice.
// The amounts are added with decimal arithmetic here; SQL SUM over sqlite
// numeric columns goes through float64.
func (r *GormPaymentRepository) SumCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Select("id", "amount", "status").
		Where("invoice_id = ? AND status = ?", invoiceID, invoicing.PaymentStatusCompleted).
		Find(&rows).Error; err != nil {
		return decimal.Zero, translateError(err, "failed to sum completed payments")
	}
	payments := make([]invoicing.Payment, len(rows))
	for i := range rows {
		payments[i] = invoicing.Payment{Amount: rows[i].Amount, Status: rows[i].Status}
	}
	return invoicing.TotalCompleted(payments), nil
}

// Create inserts a payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *invoicing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "failed to create payment")
	}
	return nil
}

// Update writes the status, paid_at and version of a payment
func (r *GormPaymentRepository) Update(ctx context.Context, payment *invoicing.Payment) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ?", payment.ID).
		Updates(map[string]any{
			"status":     payment.Status,
			"paid_at":    payment.PaidAt,
			"version":    payment.Version,
			"updated_at": payment.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "failed to update payment")
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("payment", payment.ID)
	}
	return nil
}

// Delete hard deletes a payment
func (r *GormPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PaymentModel{})
	if result.Error != nil {
		return translateError(result.Error, "failed to delete payment")
	}
	if result.RowsAffected == 0 {
		return shared.NewNotFoundError("payment", id)
	}
	return nil
}

var _ invoicing.PaymentRepository = (*GormPaymentRepository)(nil)
