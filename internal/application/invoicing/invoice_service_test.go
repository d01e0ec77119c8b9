package invoicing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type invoiceFixture struct {
	invoices *MockInvoiceRepository
	payments *MockPaymentRepository
	numbers  *MockNumberSequence
	uow      *fakeUnitOfWork
	svc      *InvoiceService
	now      time.Time
}

func newInvoiceFixture(t *testing.T) *invoiceFixture {
	t.Helper()
	f := &invoiceFixture{
		invoices: new(MockInvoiceRepository),
		payments: new(MockPaymentRepository),
		numbers:  new(MockNumberSequence),
		now:      time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	f.uow = newFakeUnitOfWork(f.invoices, f.payments, f.numbers)
	f.svc = NewInvoiceService(f.uow, f.invoices, f.payments, ServiceConfig{OverdueBatchSize: 10}, zaptest.NewLogger(t))
	f.svc.now = func() time.Time { return f.now }
	return f
}

func validCreateInput() CreateInvoiceInput {
	return CreateInvoiceInput{
		LeadID: uuid.New(),
		Items: []LineItemInput{
			{Description: "Design", Quantity: dec("2"), UnitPrice: dec("100")},
			{Description: "Hosting", Quantity: dec("1"), UnitPrice: dec("50")},
		},
		TaxRatePercent:  dec("5"),
		DiscountPercent: dec("10"),
	}
}

func TestInvoiceService_ComputeTotals(t *testing.T) {
	f := newInvoiceFixture(t)
	in := validCreateInput()

	resp, err := f.svc.ComputeTotals(context.Background(), ComputeTotalsInput{
		Items:           in.Items,
		TaxRatePercent:  in.TaxRatePercent,
		DiscountPercent: in.DiscountPercent,
	})
	require.NoError(t, err)
	assert.True(t, dec("250").Equal(resp.Subtotal))
	assert.True(t, dec("25").Equal(resp.DiscountAmount))
	assert.True(t, dec("225").Equal(resp.AfterDiscount))
	assert.True(t, dec("11.25").Equal(resp.TaxAmount))
	assert.True(t, dec("236.25").Equal(resp.Total))
	require.Len(t, resp.LineTotals, 2)
	assert.True(t, dec("200").Equal(resp.LineTotals[0]))

	_, err = f.svc.ComputeTotals(context.Background(), ComputeTotalsInput{})
	assert.True(t, shared.IsValidation(err))
	assert.Zero(t, f.uow.calls, "totals preview must not open a transaction")
}

func TestInvoiceService_AllocateInvoiceNumber(t *testing.T) {
	f := newInvoiceFixture(t)
	f.numbers.On("Next", mock.Anything, 2025).Return("INV-2025-0042", nil).Once()

	resp, err := f.svc.AllocateInvoiceNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0042", resp.InvoiceNumber)
	f.numbers.AssertExpectations(t)
}

func TestInvoiceService_CreateInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	f.numbers.On("Next", mock.Anything, 2025).Return("INV-2025-0001", nil).Once()
	f.invoices.On("Create", mock.Anything, mock.AnythingOfType("*invoicing.Invoice")).Return(nil).Once()

	resp, err := f.svc.CreateInvoice(context.Background(), validCreateInput())
	require.NoError(t, err)

	assert.Equal(t, "INV-2025-0001", resp.InvoiceNumber)
	assert.Equal(t, "DRAFT", resp.Status)
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, f.now, resp.IssueDate)
	assert.Equal(t, f.now.AddDate(0, 0, 30), resp.DueDate)
	assert.True(t, dec("236.25").Equal(resp.Total))
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, []string{invoicing.EventTypeInvoiceCreated}, f.uow.publisher.types())

	f.numbers.AssertExpectations(t)
	f.invoices.AssertExpectations(t)
}

func TestInvoiceService_CreateInvoice_ExplicitDueDaysAndCurrency(t *testing.T) {
	f := newInvoiceFixture(t)
	f.numbers.On("Next", mock.Anything, f.now.Year()).Return("INV-2025-0009", nil).Once()
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	issued := time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC)
	zero := 0
	in := validCreateInput()
	in.IssueDate = &issued
	in.DueDays = &zero
	in.Currency = "eur"

	resp, err := f.svc.CreateInvoice(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, issued, resp.DueDate, "zero due days means due on issue")
	assert.Equal(t, "EUR", resp.Currency)
	assert.Equal(t, "INV-2025-0009", resp.InvoiceNumber)
	f.numbers.AssertExpectations(t)
}

func TestInvoiceService_CreateInvoice_NumberYearFollowsClock(t *testing.T) {
	for _, issued := range []time.Time{
		time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2031, 1, 15, 0, 0, 0, 0, time.UTC),
	} {
		t.Run(issued.Format("2006"), func(t *testing.T) {
			f := newInvoiceFixture(t)
			f.numbers.On("Next", mock.Anything, f.now.Year()).Return("INV-2025-0001", nil).Once()
			f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

			in := validCreateInput()
			in.IssueDate = &issued

			resp, err := f.svc.CreateInvoice(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, "INV-2025-0001", resp.InvoiceNumber)
			assert.Equal(t, issued, resp.IssueDate)
			f.numbers.AssertExpectations(t)
			f.numbers.AssertNotCalled(t, "Next", mock.Anything, issued.Year())
		})
	}
}

func TestInvoiceService_CreateInvoice_ValidationBeforeNumbering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateInvoiceInput)
	}{
		{"no items", func(in *CreateInvoiceInput) { in.Items = nil }},
		{"zero quantity", func(in *CreateInvoiceInput) { in.Items[0].Quantity = decimal.Zero }},
		{"negative price", func(in *CreateInvoiceInput) { in.Items[1].UnitPrice = dec("-1") }},
		{"tax over 100", func(in *CreateInvoiceInput) { in.TaxRatePercent = dec("101") }},
		{"negative discount", func(in *CreateInvoiceInput) { in.DiscountPercent = dec("-5") }},
		{"missing lead", func(in *CreateInvoiceInput) { in.LeadID = uuid.Nil }},
		{"due days too large", func(in *CreateInvoiceInput) { d := 400; in.DueDays = &d }},
		{"bad currency", func(in *CreateInvoiceInput) { in.Currency = "DOLLARS" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvoiceFixture(t)
			in := validCreateInput()
			tt.mutate(&in)

			_, err := f.svc.CreateInvoice(context.Background(), in)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err), "got %v", err)
			f.numbers.AssertNotCalled(t, "Next", mock.Anything, mock.Anything)
			assert.Zero(t, f.uow.calls)
		})
	}
}

func TestInvoiceService_CreateInvoice_RetriesNumberConflict(t *testing.T) {
	f := newInvoiceFixture(t)
	f.numbers.On("Next", mock.Anything, 2025).Return("INV-2025-0001", nil).Once()
	f.numbers.On("Next", mock.Anything, 2025).Return("INV-2025-0002", nil).Once()
	f.invoices.On("Create", mock.Anything, mock.Anything).
		Return(shared.NewConflictError("duplicate invoice number")).Once()
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	resp, err := f.svc.CreateInvoice(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0002", resp.InvoiceNumber)
	assert.Equal(t, 2, f.uow.calls)
	assert.Len(t, f.uow.publisher.events, 1, "events of the rolled back attempt are discarded")
}

func TestInvoiceService_CreateInvoice_GivesUpAfterRetries(t *testing.T) {
	f := newInvoiceFixture(t)
	f.numbers.On("Next", mock.Anything, 2025).Return("INV-2025-0001", nil)
	f.invoices.On("Create", mock.Anything, mock.Anything).Return(shared.NewConflictError("duplicate invoice number"))

	_, err := f.svc.CreateInvoice(context.Background(), validCreateInput())
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, DefaultServiceConfig().NumberRetryAttempts, f.uow.calls)
}

func TestInvoiceService_CreateInvoice_PersistenceErrorIsNotRetried(t *testing.T) {
	f := newInvoiceFixture(t)
	f.numbers.On("Next", mock.Anything, 2025).
		Return("", shared.NewPersistenceError("database unavailable", errors.New("dial tcp"))).Once()

	_, err := f.svc.CreateInvoice(context.Background(), validCreateInput())
	assert.True(t, shared.IsPersistence(err))
	assert.Equal(t, 1, f.uow.calls)
}

func TestInvoiceService_GetInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	inv := newTestInvoice("1000", f.now)
	completed := newTestPayment(inv.ID, "400")
	completed.Status = invoicing.PaymentStatusCompleted
	pending := newTestPayment(inv.ID, "300")

	f.invoices.On("FindByID", mock.Anything, inv.ID).Return(inv, nil)
	f.payments.On("FindByInvoice", mock.Anything, inv.ID).Return([]invoicing.Payment{*completed, *pending}, nil)

	resp, err := f.svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, resp.ID)
	assert.Len(t, resp.Payments, 2)
	assert.True(t, dec("400").Equal(resp.TotalPaid))
	assert.True(t, dec("600").Equal(resp.RemainingBalance))
}

func TestInvoiceService_GetInvoice_NotFound(t *testing.T) {
	f := newInvoiceFixture(t)
	id := uuid.New()
	f.invoices.On("FindByID", mock.Anything, id).Return(nil, shared.NewNotFoundError("invoice", id))

	_, err := f.svc.GetInvoice(context.Background(), id)
	assert.True(t, shared.IsNotFound(err))
	f.payments.AssertNotCalled(t, "FindByInvoice", mock.Anything, mock.Anything)
}

func TestInvoiceService_ListInvoices(t *testing.T) {
	f := newInvoiceFixture(t)
	leadID := uuid.New()
	inv := newTestInvoice("100", f.now)

	f.invoices.On("FindAll", mock.Anything, mock.MatchedBy(func(filter invoicing.InvoiceFilter) bool {
		return filter.Status != nil && *filter.Status == invoicing.InvoiceStatusSent &&
			filter.LeadID != nil && *filter.LeadID == leadID &&
			filter.Page == 2 && filter.PageSize == 20 && filter.OrderDir == "desc"
	})).Return([]invoicing.Invoice{*inv}, int64(21), nil).Once()

	result, err := f.svc.ListInvoices(context.Background(), ListInvoicesInput{
		Page:   2,
		Status: "sent",
		LeadID: leadID.String(),
	})
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.Equal(t, int64(21), result.Total)
	assert.Equal(t, 2, result.TotalPages)
	f.invoices.AssertExpectations(t)
}

func TestInvoiceService_ListInvoices_InvalidFilter(t *testing.T) {
	f := newInvoiceFixture(t)

	_, err := f.svc.ListInvoices(context.Background(), ListInvoicesInput{Status: "ARCHIVED"})
	assert.True(t, shared.IsValidation(err))

	_, err = f.svc.ListInvoices(context.Background(), ListInvoicesInput{LeadID: "not-a-uuid"})
	assert.True(t, shared.IsValidation(err))
	f.invoices.AssertNotCalled(t, "FindAll", mock.Anything, mock.Anything)
}

func TestInvoiceService_PatchInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	inv := newTestInvoice("500", f.now.AddDate(0, 0, -5))
	f.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
	f.invoices.On("Update", mock.Anything, inv).Return(nil)

	status := "paid"
	notes := "settled by wire"
	resp, err := f.svc.PatchInvoice(context.Background(), inv.ID, PatchInvoiceInput{Status: &status, Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, "PAID", resp.Status)
	require.NotNil(t, resp.PaidDate)
	assert.Equal(t, f.now, *resp.PaidDate)
	assert.Equal(t, &notes, resp.Notes)
	assert.Equal(t, []string{invoicing.EventTypeInvoiceStatusChanged}, f.uow.publisher.types())

	changed := f.uow.publisher.events[0].(*invoicing.InvoiceStatusChangedEvent)
	assert.Equal(t, invoicing.StatusChangeReasonManual, changed.Reason)
	assert.Equal(t, invoicing.InvoiceStatusDraft, changed.FromStatus)
}

func TestInvoiceService_PatchInvoice_Rejected(t *testing.T) {
	f := newInvoiceFixture(t)
	inv := newTestInvoice("500", f.now)
	f.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)

	_, err := f.svc.PatchInvoice(context.Background(), inv.ID, PatchInvoiceInput{})
	assert.True(t, shared.IsValidation(err), "empty patch")

	bogus := "SHIPPED"
	_, err = f.svc.PatchInvoice(context.Background(), inv.ID, PatchInvoiceInput{Status: &bogus})
	assert.True(t, shared.IsValidation(err), "unknown status")

	f.invoices.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	assert.Empty(t, f.uow.publisher.events)
}

func TestInvoiceService_DeleteInvoice(t *testing.T) {
	f := newInvoiceFixture(t)
	inv := newTestInvoice("500", f.now)
	missing := uuid.New()
	f.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
	f.invoices.On("Delete", mock.Anything, inv.ID).Return(nil).Once()
	f.invoices.On("FindByIDForUpdate", mock.Anything, missing).Return(nil, shared.NewNotFoundError("invoice", missing))

	require.NoError(t, f.svc.DeleteInvoice(context.Background(), inv.ID))
	assert.True(t, shared.IsNotFound(f.svc.DeleteInvoice(context.Background(), missing)))
	f.invoices.AssertNumberOfCalls(t, "Delete", 1)
}

func TestInvoiceService_MarkOverdue(t *testing.T) {
	f := newInvoiceFixture(t)
	asOf := f.now

	overdue := newTestInvoice("100", asOf.AddDate(0, 0, -45))
	overdue.Status = invoicing.InvoiceStatusSent
	paidMeanwhile := newTestInvoice("100", asOf.AddDate(0, 0, -45))
	paidMeanwhile.Status = invoicing.InvoiceStatusPaid
	broken := uuid.New()

	f.invoices.On("FindOverdueCandidates", mock.Anything, asOf, 10).
		Return([]uuid.UUID{overdue.ID, paidMeanwhile.ID, broken}, nil).Once()
	f.invoices.On("FindByIDForUpdate", mock.Anything, overdue.ID).Return(overdue, nil)
	f.invoices.On("FindByIDForUpdate", mock.Anything, paidMeanwhile.ID).Return(paidMeanwhile, nil)
	f.invoices.On("FindByIDForUpdate", mock.Anything, broken).
		Return(nil, shared.NewPersistenceError("lock timeout", errors.New("canceling statement")))
	f.invoices.On("Update", mock.Anything, overdue).Return(nil).Once()

	marked, err := f.svc.MarkOverdue(context.Background(), asOf)
	assert.Equal(t, 1, marked)
	require.Error(t, err)
	assert.True(t, shared.IsPersistence(err))

	assert.Equal(t, invoicing.InvoiceStatusOverdue, overdue.Status)
	assert.Equal(t, invoicing.InvoiceStatusPaid, paidMeanwhile.Status)
	require.Len(t, f.uow.publisher.events, 1)
	changed := f.uow.publisher.events[0].(*invoicing.InvoiceStatusChangedEvent)
	assert.Equal(t, invoicing.StatusChangeReasonOverdue, changed.Reason)
	f.invoices.AssertExpectations(t)
}

func TestInvoiceService_MarkOverdue_Batches(t *testing.T) {
	f := newInvoiceFixture(t)
	f.svc.config.OverdueBatchSize = 2
	asOf := f.now

	var invs []*invoicing.Invoice
	for range 3 {
		inv := newTestInvoice("10", asOf.AddDate(0, 0, -60))
		inv.Status = invoicing.InvoiceStatusViewed
		invs = append(invs, inv)
		f.invoices.On("FindByIDForUpdate", mock.Anything, inv.ID).Return(inv, nil)
		f.invoices.On("Update", mock.Anything, inv).Return(nil)
	}
	f.invoices.On("FindOverdueCandidates", mock.Anything, asOf, 2).
		Return([]uuid.UUID{invs[0].ID, invs[1].ID}, nil).Once()
	f.invoices.On("FindOverdueCandidates", mock.Anything, asOf, 2).
		Return([]uuid.UUID{invs[2].ID}, nil).Once()

	marked, err := f.svc.MarkOverdue(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 3, marked)
	f.invoices.AssertNumberOfCalls(t, "FindOverdueCandidates", 2)
}
