package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormNumberSequence hands out invoice numbers from the per-year counter rows
// in invoice_number_sequences. The counter row is locked FOR UPDATE, so
// concurrent creators queue on the row rather than racing on max+1.
type GormNumberSequence struct {
	db *gorm.DB
}

// NewGormNumberSequence creates a new GormNumberSequence
func NewGormNumberSequence(db *gorm.DB) *GormNumberSequence {
	return &GormNumberSequence{db: db}
}

// Next increments the counter for year and returns the formatted number.
// A missing row is seeded from the highest number already stored for that
// year, so databases populated before the counter existed continue their series.
func (s *GormNumberSequence) Next(ctx context.Context, year int) (string, error) {
	db := s.db.WithContext(ctx)

	row, err := s.lockRow(db, year)
	if err != nil {
		return "", err
	}
	if row == nil {
		if err := s.seed(ctx, db, year); err != nil {
			return "", err
		}
		if row, err = s.lockRow(db, year); err != nil {
			return "", err
		}
		if row == nil {
			return "", translateError(gorm.ErrRecordNotFound, "invoice number sequence vanished")
		}
	}

	row.LastValue++
	row.UpdatedAt = time.Now()
	if err := db.Model(&models.InvoiceNumberSequenceModel{}).
		Where("year = ?", year).
		Updates(map[string]any{"last_value": row.LastValue, "updated_at": row.UpdatedAt}).Error; err != nil {
		return "", translateError(err, "failed to advance invoice number sequence")
	}
	return invoicing.FormatInvoiceNumber(year, row.LastValue), nil
}

func (s *GormNumberSequence) lockRow(db *gorm.DB, year int) (*models.InvoiceNumberSequenceModel, error) {
	var row models.InvoiceNumberSequenceModel
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("year = ?", year).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translateError(err, "failed to lock invoice number sequence")
	}
	return &row, nil
}

// seed inserts the counter row for year. Two transactions seeding the same
// year at once both end up locking the single row that wins the insert.
func (s *GormNumberSequence) seed(ctx context.Context, db *gorm.DB, year int) error {
	last, err := NewGormInvoiceRepository(db).FindLastNumberWithPrefix(ctx, invoicing.NumberPrefix(year))
	if err != nil {
		return err
	}
	seq, err := invoicing.NextSequence(last, year)
	if err != nil {
		return err
	}
	row := models.InvoiceNumberSequenceModel{
		Year:      year,
		LastValue: seq - 1,
		UpdatedAt: time.Now(),
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return translateError(err, "failed to seed invoice number sequence")
	}
	return nil
}

var _ invoicing.NumberSequence = (*GormNumberSequence)(nil)
