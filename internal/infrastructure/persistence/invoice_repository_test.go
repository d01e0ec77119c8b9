package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormInvoiceRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-2025-0001")
	notes := "Net 30"
	inv.Notes = &notes
	require.NoError(t, repo.Create(ctx, inv))

	found, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, "INV-2025-0001", found.InvoiceNumber)
	assert.Equal(t, invoicing.InvoiceStatusDraft, found.Status)
	assert.Equal(t, inv.LeadID, found.LeadID)
	assert.True(t, found.Subtotal.Equal(dec("250")))
	assert.True(t, found.DiscountAmount.Equal(dec("25")))
	assert.True(t, found.TaxAmount.Equal(dec("11.25")))
	assert.True(t, found.Total.Equal(dec("236.25")))
	assert.Equal(t, "USD", found.Currency.String())
	require.NotNil(t, found.Notes)
	assert.Equal(t, "Net 30", *found.Notes)
	assert.Equal(t, 1, found.Version)

	require.Len(t, found.Items, 2)
	assert.Equal(t, "Design sprint", found.Items[0].Description)
	assert.Equal(t, 0, found.Items[0].Position)
	assert.True(t, found.Items[0].LineTotal.Equal(dec("200")))
	assert.Equal(t, "Hosting", found.Items[1].Description)
}

func TestGormInvoiceRepository_FindByID_NotFound(t *testing.T) {
	repo := NewGormInvoiceRepository(setupTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.True(t, shared.IsNotFound(err))
}

func TestGormInvoiceRepository_DuplicateNumberIsConflict(t *testing.T) {
	repo := NewGormInvoiceRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestInvoice(t, "INV-2025-0001")))

	err := repo.Create(ctx, newTestInvoice(t, "INV-2025-0001"))
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err), "got %v", err)
}

func TestGormInvoiceRepository_FindLastNumberWithPrefix(t *testing.T) {
	repo := NewGormInvoiceRepository(setupTestDB(t))
	ctx := context.Background()

	last, err := repo.FindLastNumberWithPrefix(ctx, invoicing.NumberPrefix(2025))
	require.NoError(t, err)
	assert.Empty(t, last)

	for _, n := range []string{"INV-2025-0002", "INV-2025-9999", "INV-2025-10000", "INV-2024-0050"} {
		require.NoError(t, repo.Create(ctx, newTestInvoice(t, n)))
	}

	last, err = repo.FindLastNumberWithPrefix(ctx, invoicing.NumberPrefix(2025))
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-10000", last, "a five digit sequence sorts after 9999")

	last, err = repo.FindLastNumberWithPrefix(ctx, invoicing.NumberPrefix(2024))
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-0050", last)
}

func TestGormInvoiceRepository_FindAll(t *testing.T) {
	repo := NewGormInvoiceRepository(setupTestDB(t))
	ctx := context.Background()

	lead := uuid.New()
	for i, n := range []string{"INV-2025-0001", "INV-2025-0002", "INV-2025-0003"} {
		inv := newTestInvoice(t, n)
		if i < 2 {
			inv.LeadID = lead
		}
		if i == 2 {
			inv.Status = invoicing.InvoiceStatusSent
		}
		require.NoError(t, repo.Create(ctx, inv))
	}

	t.Run("filters by lead", func(t *testing.T) {
		list, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{Filter: shared.DefaultFilter(), LeadID: &lead})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, list, 2)
		assert.Empty(t, list[0].Items, "listings do not load items")
	})

	t.Run("filters by status", func(t *testing.T) {
		status := invoicing.InvoiceStatusSent
		list, total, err := repo.FindAll(ctx, invoicing.InvoiceFilter{Filter: shared.DefaultFilter(), Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "INV-2025-0003", list[0].InvoiceNumber)
	})

	t.Run("pages and sorts", func(t *testing.T) {
		filter := invoicing.InvoiceFilter{Filter: shared.Filter{Page: 2, PageSize: 2, OrderBy: "invoice_number", OrderDir: "asc"}}
		list, total, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, list, 1)
		assert.Equal(t, "INV-2025-0003", list[0].InvoiceNumber)
	})
}

func TestGormInvoiceRepository_Update(t *testing.T) {
	repo := NewGormInvoiceRepository(setupTestDB(t))
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-2025-0001")
	require.NoError(t, repo.Create(ctx, inv))

	paid := invoicing.InvoiceStatusPaid
	require.NoError(t, inv.ApplyPatch(invoicing.InvoicePatch{Status: &paid}, time.Now().UTC()))
	require.NoError(t, repo.Update(ctx, inv))

	found, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.InvoiceStatusPaid, found.Status)
	assert.NotNil(t, found.PaidDate)
	assert.Equal(t, 2, found.Version)

	missing := newTestInvoice(t, "INV-2025-0002")
	assert.True(t, shared.IsNotFound(repo.Update(ctx, missing)))
}

func TestGormInvoiceRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	invoices := NewGormInvoiceRepository(db)
	payments := NewGormPaymentRepository(db)
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-2025-0001")
	require.NoError(t, invoices.Create(ctx, inv))
	p, err := invoicing.NewPayment(inv.ID, dec("10"), "card", nil, nil)
	require.NoError(t, err)
	require.NoError(t, payments.Create(ctx, p))

	require.NoError(t, invoices.Delete(ctx, inv.ID))

	_, err = invoices.FindByID(ctx, inv.ID)
	assert.True(t, shared.IsNotFound(err))
	list, err := payments.FindByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	var items int64
	require.NoError(t, db.Table("invoice_items").Where("invoice_id = ?", inv.ID).Count(&items).Error)
	assert.Zero(t, items)

	assert.True(t, shared.IsNotFound(invoices.Delete(ctx, inv.ID)))
}

func TestGormInvoiceRepository_FindOverdueCandidates(t *testing.T) {
	repo := NewGormInvoiceRepository(setupTestDB(t))
	ctx := context.Background()

	sentLate := newTestInvoice(t, "INV-2025-0001")
	sentLate.Status = invoicing.InvoiceStatusSent
	viewedLate := newTestInvoice(t, "INV-2025-0002")
	viewedLate.Status = invoicing.InvoiceStatusViewed
	draftLate := newTestInvoice(t, "INV-2025-0003")
	sentOnTime := newTestInvoice(t, "INV-2025-0004")
	sentOnTime.Status = invoicing.InvoiceStatusSent
	sentOnTime.DueDate = testIssueDate.AddDate(1, 0, 0)

	for _, inv := range []*invoicing.Invoice{sentLate, viewedLate, draftLate, sentOnTime} {
		require.NoError(t, repo.Create(ctx, inv))
	}

	asOf := testIssueDate.AddDate(0, 2, 0)
	ids, err := repo.FindOverdueCandidates(ctx, asOf, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{sentLate.ID, viewedLate.ID}, ids)

	ids, err = repo.FindOverdueCandidates(ctx, asOf, 1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestGormInvoiceRepository_FindByIDForUpdate_LocksRow(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT \* FROM "invoices" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_number", "status", "total"}).
			AddRow(id.String(), "INV-2025-0001", "SENT", "100.00"))
	mock.ExpectQuery(`SELECT \* FROM "invoice_items" WHERE invoice_id = \$1 ORDER BY position ASC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invoice_id", "position", "description"}))

	inv, err := NewGormInvoiceRepository(db.DB).FindByIDForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, invoicing.InvoiceStatusSent, inv.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormInvoiceRepository_DriverErrorIsPersistence(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "invoices"`).WillReturnError(assert.AnError)

	_, err := NewGormInvoiceRepository(db.DB).FindByID(context.Background(), uuid.New())
	assert.True(t, shared.IsPersistence(err))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestGormInvoiceRepository_RoundedAmountsSurviveReload(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormInvoiceRepository(db)
	ctx := context.Background()

	inv, err := invoicing.NewInvoice(invoicing.NewInvoiceParams{
		InvoiceNumber: "INV-2025-0001",
		LeadID:        uuid.New(),
		Items: []invoicing.ItemInput{
			{Description: "Retainer", Quantity: dec("1"), UnitPrice: dec("1")},
			{Description: "Half hour", Quantity: dec("0.5"), UnitPrice: dec("0.33")},
		},
		TaxRatePercent:  dec("0.5"),
		DiscountPercent: dec("0.5"),
		IssueDate:       testIssueDate,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, inv))

	found, err := repo.FindByID(ctx, inv.ID)
	require.NoError(t, err)

	for name, pair := range map[string][2]string{
		"subtotal": {inv.Subtotal.String(), found.Subtotal.String()},
		"discount": {inv.DiscountAmount.String(), found.DiscountAmount.String()},
		"tax":      {inv.TaxAmount.String(), found.TaxAmount.String()},
		"total":    {inv.Total.String(), found.Total.String()},
		"line":     {inv.Items[1].LineTotal.String(), found.Items[1].LineTotal.String()},
	} {
		assert.Equal(t, pair[0], pair[1], name)
	}
	assert.True(t, found.Total.Equal(found.Subtotal.Sub(found.DiscountAmount).Add(found.TaxAmount)))
	assert.Equal(t, "1.17", found.Subtotal.String())
	assert.Equal(t, "0.01", found.DiscountAmount.String())
	assert.Equal(t, "0.01", found.TaxAmount.String())
	assert.Equal(t, "1.17", found.Total.String())
}
