package invoicing

import (
	"testing"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var issueDay = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func newTestInvoice(t *testing.T, price string) *Invoice {
	t.Helper()
	inv, err := NewInvoice(NewInvoiceParams{
		InvoiceNumber: "INV-2025-0001",
		LeadID:        uuid.New(),
		Items:         []ItemInput{{Description: "Website audit", Quantity: d("1"), UnitPrice: d(price)}},
		IssueDate:     issueDay,
	})
	require.NoError(t, err)
	inv.ClearDomainEvents()
	return inv
}

func ptr[T any](v T) *T { return &v }

func eventTypes(events []shared.DomainEvent) []string {
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.EventType()
	}
	return types
}

func TestNewInvoice(t *testing.T) {
	leadID := uuid.New()
	orderID := uuid.New()

	inv, err := NewInvoice(NewInvoiceParams{
		InvoiceNumber: "INV-2024-0007",
		LeadID:        leadID,
		OrderID:       &orderID,
		Items: []ItemInput{
			{Description: "SEO package", Quantity: d("2"), UnitPrice: d("100")},
			{Description: " Landing page ", Quantity: d("1"), UnitPrice: d("50")},
		},
		TaxRatePercent:  d("5"),
		DiscountPercent: d("10"),
		DueDays:         ptr(14),
		IssueDate:       issueDay,
		Currency:        "eur",
		Notes:           ptr("Thanks"),
	})
	require.NoError(t, err)

	assert.Equal(t, InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "INV-2024-0007", inv.InvoiceNumber)
	assert.Equal(t, leadID, inv.LeadID)
	assert.Equal(t, &orderID, inv.OrderID)
	assert.Equal(t, issueDay.AddDate(0, 0, 14), inv.DueDate)
	assert.Nil(t, inv.PaidDate)
	assert.Equal(t, "EUR", inv.Currency.String())
	assert.Equal(t, "236.25", inv.Total.String())
	assert.Equal(t, "25", inv.DiscountAmount.String())
	assert.Equal(t, "11.25", inv.TaxAmount.String())
	assert.True(t, inv.Total.Equal(inv.Subtotal.Sub(inv.DiscountAmount).Add(inv.TaxAmount)))

	require.Len(t, inv.Items, 2)
	assert.Equal(t, 0, inv.Items[0].Position)
	assert.Equal(t, "Landing page", inv.Items[1].Description)
	assert.True(t, inv.Items[0].LineTotal.Equal(d("200")))
	assert.Equal(t, inv.ID, inv.Items[1].InvoiceID)

	assert.Equal(t, []string{EventTypeInvoiceCreated}, eventTypes(inv.GetDomainEvents()))
}

func TestNewInvoice_Defaults(t *testing.T) {
	inv := newTestInvoice(t, "500")

	assert.Equal(t, issueDay.AddDate(0, 0, DefaultDueDays), inv.DueDate)
	assert.Equal(t, "USD", inv.Currency.String())
	assert.True(t, inv.DiscountPercent.IsZero())
}

func TestNewInvoice_Validation(t *testing.T) {
	base := func() NewInvoiceParams {
		return NewInvoiceParams{
			InvoiceNumber: "INV-2025-0001",
			LeadID:        uuid.New(),
			Items:         []ItemInput{{Description: "x", Quantity: d("1"), UnitPrice: d("1")}},
		}
	}

	tests := []struct {
		name   string
		mutate func(p *NewInvoiceParams)
	}{
		{"bad number", func(p *NewInvoiceParams) { p.InvoiceNumber = "2025-1" }},
		{"missing lead", func(p *NewInvoiceParams) { p.LeadID = uuid.Nil }},
		{"no items", func(p *NewInvoiceParams) { p.Items = nil }},
		{"blank description", func(p *NewInvoiceParams) { p.Items[0].Description = "  " }},
		{"zero quantity", func(p *NewInvoiceParams) { p.Items[0].Quantity = decimal.Zero }},
		{"negative due days", func(p *NewInvoiceParams) { p.DueDays = ptr(-1) }},
		{"due days too large", func(p *NewInvoiceParams) { p.DueDays = ptr(MaxDueDays + 1) }},
		{"bad currency", func(p *NewInvoiceParams) { p.Currency = "EURO" }},
		{"discount out of range", func(p *NewInvoiceParams) { p.DiscountPercent = d("150") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(&p)
			inv, err := NewInvoice(p)
			assert.Nil(t, inv)
			assert.True(t, shared.IsValidation(err), "got %v", err)
		})
	}
}

func TestInvoice_ApplyPatch(t *testing.T) {
	now := issueDay.Add(48 * time.Hour)

	t.Run("PAID without paid date stamps now", func(t *testing.T) {
		inv := newTestInvoice(t, "100")
		require.NoError(t, inv.ApplyPatch(InvoicePatch{Status: ptr(InvoiceStatusPaid)}, now))

		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		require.NotNil(t, inv.PaidDate)
		assert.Equal(t, now, *inv.PaidDate)
		assert.Equal(t, 2, inv.GetVersion())
		assert.Equal(t, []string{EventTypeInvoiceStatusChanged}, eventTypes(inv.GetDomainEvents()))
	})

	t.Run("PAID with explicit paid date keeps it", func(t *testing.T) {
		inv := newTestInvoice(t, "100")
		paid := issueDay.Add(time.Hour)
		require.NoError(t, inv.ApplyPatch(InvoicePatch{Status: ptr(InvoiceStatusPaid), PaidDate: &paid}, now))
		assert.Equal(t, paid, *inv.PaidDate)
	})

	t.Run("notes and terms only", func(t *testing.T) {
		inv := newTestInvoice(t, "100")
		require.NoError(t, inv.ApplyPatch(InvoicePatch{Notes: ptr("n"), Terms: ptr("net 30")}, now))

		assert.Equal(t, InvoiceStatusDraft, inv.Status)
		assert.Equal(t, "n", *inv.Notes)
		assert.Equal(t, "net 30", *inv.Terms)
		assert.Empty(t, inv.GetDomainEvents())
	})

	// Backward moves are allowed on purpose: the administrative patch has no
	// transition table.
	t.Run("PAID to DRAFT is permitted", func(t *testing.T) {
		inv := newTestInvoice(t, "100")
		require.NoError(t, inv.ApplyPatch(InvoicePatch{Status: ptr(InvoiceStatusPaid)}, now))
		require.NoError(t, inv.ApplyPatch(InvoicePatch{Status: ptr(InvoiceStatusDraft)}, now))

		assert.Equal(t, InvoiceStatusDraft, inv.Status)
		assert.NotNil(t, inv.PaidDate, "paid date is not cleared by a status patch")
	})

	t.Run("any status reachable from any status", func(t *testing.T) {
		for _, from := range AllInvoiceStatuses() {
			for _, to := range AllInvoiceStatuses() {
				inv := newTestInvoice(t, "100")
				inv.Status = from
				require.NoError(t, inv.ApplyPatch(InvoicePatch{Status: ptr(to)}, now))
				assert.Equal(t, to, inv.Status)
			}
		}
	})

	t.Run("unknown status rejected", func(t *testing.T) {
		inv := newTestInvoice(t, "100")
		err := inv.ApplyPatch(InvoicePatch{Status: ptr(InvoiceStatus("ARCHIVED"))}, now)
		assert.True(t, shared.IsValidation(err))
		assert.Equal(t, InvoiceStatusDraft, inv.Status)
	})

	t.Run("empty patch rejected", func(t *testing.T) {
		inv := newTestInvoice(t, "100")
		assert.True(t, shared.IsValidation(inv.ApplyPatch(InvoicePatch{}, now)))
	})
}

func TestInvoice_ApplyPaymentCompletion(t *testing.T) {
	now := issueDay.Add(72 * time.Hour)

	t.Run("partial payment promotes DRAFT to SENT", func(t *testing.T) {
		inv := newTestInvoice(t, "1000")

		changed := inv.ApplyPaymentCompletion(d("400"), now)

		assert.True(t, changed)
		assert.Equal(t, InvoiceStatusSent, inv.Status)
		assert.Nil(t, inv.PaidDate)
		assert.True(t, inv.RemainingBalance(d("400")).Equal(d("600")))
	})

	t.Run("second partial payment leaves SENT alone", func(t *testing.T) {
		inv := newTestInvoice(t, "1000")
		inv.ApplyPaymentCompletion(d("400"), now)
		inv.ClearDomainEvents()

		changed := inv.ApplyPaymentCompletion(d("700"), now)

		assert.False(t, changed)
		assert.Equal(t, InvoiceStatusSent, inv.Status)
		assert.Empty(t, inv.GetDomainEvents())
	})

	t.Run("partial payment on VIEWED leaves status", func(t *testing.T) {
		inv := newTestInvoice(t, "1000")
		inv.Status = InvoiceStatusViewed
		assert.False(t, inv.ApplyPaymentCompletion(d("1"), now))
		assert.Equal(t, InvoiceStatusViewed, inv.Status)
	})

	t.Run("exact payment marks PAID", func(t *testing.T) {
		inv := newTestInvoice(t, "500")

		changed := inv.ApplyPaymentCompletion(d("500"), now)

		assert.True(t, changed)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		require.NotNil(t, inv.PaidDate)
		assert.Equal(t, now, *inv.PaidDate)
		assert.True(t, inv.RemainingBalance(d("500")).IsZero())
		assert.Equal(t, []string{EventTypeInvoiceStatusChanged, EventTypeInvoicePaid}, eventTypes(inv.GetDomainEvents()))
	})

	t.Run("overpayment marks PAID with negative balance", func(t *testing.T) {
		inv := newTestInvoice(t, "500")

		inv.ApplyPaymentCompletion(d("700"), now)

		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.Equal(t, "-200", inv.RemainingBalance(d("700")).String())
	})

	t.Run("promotion to PAID happens once", func(t *testing.T) {
		inv := newTestInvoice(t, "500")
		require.True(t, inv.ApplyPaymentCompletion(d("500"), now))
		firstPaid := *inv.PaidDate
		version := inv.GetVersion()
		inv.ClearDomainEvents()

		changed := inv.ApplyPaymentCompletion(d("650"), now.Add(time.Hour))

		assert.False(t, changed)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.Equal(t, firstPaid, *inv.PaidDate)
		assert.Equal(t, version, inv.GetVersion())
		assert.Empty(t, inv.GetDomainEvents())
	})

	t.Run("zero total invoice is paid by any completion", func(t *testing.T) {
		inv := newTestInvoice(t, "0")
		assert.True(t, inv.ApplyPaymentCompletion(decimal.Zero, now))
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
	})
}

func TestInvoice_MarkOverdue(t *testing.T) {
	inv := newTestInvoice(t, "100")
	afterDue := inv.DueDate.Add(time.Minute)

	assert.False(t, inv.MarkOverdue(afterDue), "drafts are never overdue")

	inv.Status = InvoiceStatusSent
	assert.False(t, inv.MarkOverdue(inv.DueDate), "due date itself is not overdue")
	assert.True(t, inv.MarkOverdue(afterDue))
	assert.Equal(t, InvoiceStatusOverdue, inv.Status)
	assert.False(t, inv.MarkOverdue(afterDue))

	paid := newTestInvoice(t, "100")
	paid.Status = InvoiceStatusPaid
	assert.False(t, paid.IsOverdue(afterDue))
}

func TestNewInvoiceSnapshot(t *testing.T) {
	inv := newTestInvoice(t, "1000")
	payments := []Payment{
		{InvoiceID: inv.ID, Amount: d("400"), Status: PaymentStatusCompleted},
		{InvoiceID: inv.ID, Amount: d("300"), Status: PaymentStatusPending},
		{InvoiceID: inv.ID, Amount: d("50"), Status: PaymentStatusFailed},
	}

	snap := NewInvoiceSnapshot(*inv, payments)

	assert.True(t, snap.TotalPaid.Equal(d("400")))
	assert.True(t, snap.RemainingBalance.Equal(d("600")))
	assert.Len(t, snap.Payments, 3)
	assert.NotNil(t, NewInvoiceSnapshot(*inv, nil).Payments)
}
