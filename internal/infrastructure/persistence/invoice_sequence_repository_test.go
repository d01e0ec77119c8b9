package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGormNumberSequence_Next(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	next := func(year int) string {
		var number string
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			number, err = NewGormNumberSequence(tx).Next(ctx, year)
			return err
		})
		require.NoError(t, err)
		return number
	}

	assert.Equal(t, "INV-2025-0001", next(2025))
	assert.Equal(t, "INV-2025-0002", next(2025))
	assert.Equal(t, "INV-2026-0001", next(2026), "a new year restarts at 1")
	assert.Equal(t, "INV-2025-0003", next(2025))
}

func TestGormNumberSequence_SeedsFromExistingInvoices(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	invoices := NewGormInvoiceRepository(db)
	require.NoError(t, invoices.Create(ctx, newTestInvoice(t, "INV-2025-0041")))
	require.NoError(t, invoices.Create(ctx, newTestInvoice(t, "INV-2024-0900")))

	var number string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		number, err = NewGormNumberSequence(tx).Next(ctx, 2025)
		return err
	}))
	assert.Equal(t, "INV-2025-0042", number)
}

func TestGormNumberSequence_RollbackReleasesNumber(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := NewGormNumberSequence(tx).Next(ctx, 2025)
		require.NoError(t, err)
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var number string
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		number, err = NewGormNumberSequence(tx).Next(ctx, 2025)
		return err
	}))
	assert.Equal(t, "INV-2025-0001", number)
}

func TestGormNumberSequence_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	uow := NewGormUnitOfWork(db, nil)

	const workers = 20
	var (
		mu      sync.Mutex
		numbers = make(map[string]bool)
		wg      sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
				number, err := repos.Numbers.Next(ctx, 2025)
				if err != nil {
					return err
				}
				mu.Lock()
				numbers[number] = true
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, workers)
	for seq := 1; seq <= workers; seq++ {
		assert.True(t, numbers[invoicing.FormatInvoiceNumber(2025, seq)], "missing sequence %d", seq)
	}
}

func TestGormNumberSequence_LocksCounterRow(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT \* FROM "invoice_number_sequences" WHERE year = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"year", "last_value", "updated_at"}).AddRow(2025, 7, time.Now()))
	mock.ExpectExec(`UPDATE "invoice_number_sequences" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	number, err := NewGormNumberSequence(db.DB).Next(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0008", number)
	assert.NoError(t, mock.ExpectationsWereMet())
}
