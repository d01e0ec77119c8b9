//go:build integration

package persistence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/infrastructure/migration"
	"github.com/agencyhq/invoicing/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newPostgresDB starts a throwaway postgres and applies the embedded migrations
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("invoicing_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.NewFromFS(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func TestPostgres_ConcurrentNumbering(t *testing.T) {
	db := newPostgresDB(t)
	uow := NewGormUnitOfWork(db, nil)
	ctx := context.Background()

	const workers = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for i := 0; i < workers; i++ {
		// placeholder number, replaced by the sequence inside the transaction
		inv := newTestInvoice(t, "INV-1999-0001")
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
				number, err := repos.Numbers.Next(ctx, 2025)
				if err != nil {
					return err
				}
				inv.InvoiceNumber = number
				return repos.Invoices.Create(ctx, inv)
			})
			if assert.NoError(t, err) {
				mu.Lock()
				numbers[inv.InvoiceNumber] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, workers)
	assert.True(t, numbers["INV-2025-0001"])
	assert.True(t, numbers[invoicing.FormatInvoiceNumber(2025, workers)])
}

func TestPostgres_PaymentCompletionLocksInvoice(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()

	inv := newTestInvoice(t, "INV-2025-0001")
	require.NoError(t, NewGormInvoiceRepository(db).Create(ctx, inv))

	payments := NewGormPaymentRepository(db)
	p, err := invoicing.NewPayment(inv.ID, inv.Total, "card", nil, nil)
	require.NoError(t, err)
	require.NoError(t, payments.Create(ctx, p))

	uow := NewGormUnitOfWork(db, nil)
	require.NoError(t, uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		locked, err := repos.Invoices.FindByIDForUpdate(ctx, inv.ID)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if _, err := p.MarkStatus(invoicing.PaymentStatusCompleted, now); err != nil {
			return err
		}
		if err := repos.Payments.Update(ctx, p); err != nil {
			return err
		}
		paid, err := repos.Payments.SumCompleted(ctx, inv.ID)
		if err != nil {
			return err
		}
		locked.ApplyPaymentCompletion(paid, now)
		return repos.Invoices.Update(ctx, locked)
	}))

	found, err := NewGormInvoiceRepository(db).FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoicing.InvoiceStatusPaid, found.Status)
	assert.NotNil(t, found.PaidDate)
}
