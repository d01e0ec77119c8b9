package persistence

import (
	"testing"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory sqlite database with the invoicing schema.
// One connection only: every new :memory: connection would be an empty database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

var testIssueDate = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestInvoice builds a DRAFT invoice totalling 236.25
// (250 subtotal, 10% discount, 5% tax)
func newTestInvoice(t *testing.T, number string) *invoicing.Invoice {
	t.Helper()
	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		InvoiceNumber: number,
		LeadID:        uuid.New(),
		Items: []invoicing.ItemInput{
			{Description: "Design sprint", Quantity: dec("2"), UnitPrice: dec("100")},
			{Description: "Hosting", Quantity: dec("1"), UnitPrice: dec("50")},
		},
		TaxRatePercent:  dec("5"),
		DiscountPercent: dec("10"),
		IssueDate:       testIssueDate,
	})
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}
