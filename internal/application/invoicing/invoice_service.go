package invoicing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ServiceConfig holds the ledger defaults used by the services
type ServiceConfig struct {
	DefaultDueDays      int
	DefaultCurrency     string
	NumberRetryAttempts int
	OverdueBatchSize    int
}

// DefaultServiceConfig returns the default ledger settings
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultDueDays:      invoicing.DefaultDueDays,
		DefaultCurrency:     "USD",
		NumberRetryAttempts: 3,
		OverdueBatchSize:    100,
	}
}

func (c ServiceConfig) normalize() ServiceConfig {
	d := DefaultServiceConfig()
	if c.DefaultDueDays <= 0 || c.DefaultDueDays > invoicing.MaxDueDays {
		c.DefaultDueDays = d.DefaultDueDays
	}
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = d.DefaultCurrency
	}
	if c.NumberRetryAttempts < 1 {
		c.NumberRetryAttempts = d.NumberRetryAttempts
	}
	if c.OverdueBatchSize < 1 {
		c.OverdueBatchSize = d.OverdueBatchSize
	}
	return c
}

// InvoiceService handles invoice operations
type InvoiceService struct {
	uow      invoicing.UnitOfWork
	invoices invoicing.InvoiceRepository
	payments invoicing.PaymentRepository
	config   ServiceConfig
	now      func() time.Time
	logger   *zap.Logger
}

// NewInvoiceService creates a new InvoiceService. invoices and payments are
// used for reads outside a transaction.
func NewInvoiceService(
	uow invoicing.UnitOfWork,
	invoices invoicing.InvoiceRepository,
	payments invoicing.PaymentRepository,
	config ServiceConfig,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		uow:      uow,
		invoices: invoices,
		payments: payments,
		config:   config.normalize(),
		now:      time.Now,
		logger:   logger,
	}
}

// ComputeTotals previews the totals of a set of lines without persisting anything
func (s *InvoiceService) ComputeTotals(ctx context.Context, req ComputeTotalsInput) (*TotalsResponse, error) {
	_, span := telemetry.StartServiceSpan(ctx, "invoice", "compute_totals",
		telemetry.WithAttribute(telemetry.SpanAttrItemCount, len(req.Items)),
	)
	defer span.End()

	lines := make([]invoicing.LineInput, len(req.Items))
	lineTotals := make([]decimal.Decimal, len(req.Items))
	for i, item := range req.Items {
		lines[i] = invoicing.LineInput{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
		lineTotals[i] = invoicing.ComputeLineTotal(item.Quantity, item.UnitPrice)
	}

	totals, err := invoicing.ComputeTotals(lines, req.TaxRatePercent, req.DiscountPercent)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &TotalsResponse{
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		AfterDiscount:  totals.AfterDiscount,
		TaxAmount:      totals.TaxAmount,
		Total:          totals.Total,
		LineTotals:     lineTotals,
	}, nil
}

// AllocateInvoiceNumber reserves the next number for the current year.
// The number is consumed even if no invoice is ever created with it.
func (s *InvoiceService) AllocateInvoiceNumber(ctx context.Context) (*InvoiceNumberResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "allocate_number")
	defer span.End()

	var number string
	err := s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		var err error
		number, err = repos.Numbers.Next(ctx, s.now().Year())
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceNumber, number)
	return &InvoiceNumberResponse{InvoiceNumber: number}, nil
}

// CreateInvoice creates a DRAFT invoice with a freshly allocated number.
// Input is validated before a number is drawn; a number collision is retried.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create",
		telemetry.WithAttribute(telemetry.SpanAttrItemCount, len(req.Items)),
	)
	defer span.End()

	params := s.newInvoiceParams(req)
	if _, err := invoicing.ValidateNewInvoice(params); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		created *invoicing.Invoice
		err     error
	)
	for attempt := 1; attempt <= s.config.NumberRetryAttempts; attempt++ {
		created, err = s.createOnce(ctx, params)
		if err == nil || !shared.IsConflict(err) {
			break
		}
		telemetry.AddEvent(span, "number_conflict", telemetry.SpanAttrAttempt, attempt)
		s.logger.Warn("Invoice number conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, created.ID,
		telemetry.SpanAttrInvoiceNumber, created.InvoiceNumber,
	)
	s.logger.Info("Invoice created",
		zap.String("invoice_id", created.ID.String()),
		zap.String("invoice_number", created.InvoiceNumber),
		zap.String("total", created.Total.String()),
	)
	resp := ToInvoiceResponse(created)
	return &resp, nil
}

func (s *InvoiceService) createOnce(ctx context.Context, params invoicing.NewInvoiceParams) (*invoicing.Invoice, error) {
	var created *invoicing.Invoice
	err := s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		// The series follows the calendar year the number is drawn in, not
		// the issue date the caller supplied.
		number, err := repos.Numbers.Next(ctx, s.now().Year())
		if err != nil {
			return err
		}
		p := params
		p.InvoiceNumber = number
		inv, err := invoicing.NewInvoice(p)
		if err != nil {
			return err
		}
		if err := repos.Invoices.Create(ctx, inv); err != nil {
			return err
		}
		if err := publishEvents(ctx, repos, &inv.BaseAggregateRoot); err != nil {
			return err
		}
		created = inv
		return nil
	})
	return created, err
}

func (s *InvoiceService) newInvoiceParams(req CreateInvoiceInput) invoicing.NewInvoiceParams {
	dueDays := s.config.DefaultDueDays
	if req.DueDays != nil {
		dueDays = *req.DueDays
	}
	issueDate := s.now()
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issueDate = *req.IssueDate
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = s.config.DefaultCurrency
	}

	items := make([]invoicing.ItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = invoicing.ItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		}
	}
	return invoicing.NewInvoiceParams{
		LeadID:          req.LeadID,
		OrderID:         req.OrderID,
		Items:           items,
		TaxRatePercent:  req.TaxRatePercent,
		DiscountPercent: req.DiscountPercent,
		DueDays:         &dueDays,
		IssueDate:       issueDate,
		Currency:        currency,
		Notes:           req.Notes,
		Terms:           req.Terms,
	}
}

// GetInvoice returns an invoice with its items, payments and balance
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*InvoiceDetailResponse, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceDetailResponse(*snap)
	return &resp, nil
}

// Snapshot loads the read-only view used for responses and documents
func (s *InvoiceService) Snapshot(ctx context.Context, id uuid.UUID) (*invoicing.InvoiceSnapshot, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "snapshot",
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, id),
	)
	defer span.End()

	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	payments, err := s.payments.FindByInvoice(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	snap := invoicing.NewInvoiceSnapshot(*inv, payments)
	return &snap, nil
}

// ListInvoices lists invoices, newest first unless ordered otherwise
func (s *InvoiceService) ListInvoices(ctx context.Context, req ListInvoicesInput) (*shared.Paginated[InvoiceResponse], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "list")
	defer span.End()

	filter := invoicing.InvoiceFilter{
		Filter: shared.Filter{
			Page:     req.Page,
			PageSize: req.PageSize,
			OrderBy:  req.OrderBy,
			OrderDir: req.OrderDir,
		}.Normalize(),
	}
	if req.Status != "" {
		status := invoicing.InvoiceStatus(strings.ToUpper(req.Status))
		if !status.IsValid() {
			return nil, shared.NewValidationError("unknown invoice status %q", req.Status)
		}
		filter.Status = &status
	}
	if req.LeadID != "" {
		leadID, err := uuid.Parse(req.LeadID)
		if err != nil {
			return nil, shared.NewValidationError("invalid lead id %q", req.LeadID)
		}
		filter.LeadID = &leadID
	}

	invoices, total, err := s.invoices.FindAll(ctx, filter)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	items := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		items[i] = ToInvoiceResponse(&invoices[i])
	}
	result := shared.NewPaginated(items, total, filter.Page, filter.PageSize)
	return &result, nil
}

// PatchInvoice applies an administrative update. Status may move in any
// direction; the ledger does not enforce a state machine here.
func (s *InvoiceService) PatchInvoice(ctx context.Context, id uuid.UUID, req PatchInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "patch",
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, id),
	)
	defer span.End()

	patch := invoicing.InvoicePatch{
		PaidDate: req.PaidDate,
		Notes:    req.Notes,
		Terms:    req.Terms,
	}
	if req.Status != nil {
		status := invoicing.InvoiceStatus(strings.ToUpper(strings.TrimSpace(*req.Status)))
		patch.Status = &status
	}

	var updated *invoicing.Invoice
	err := s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		inv, err := repos.Invoices.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := inv.ApplyPatch(patch, s.now()); err != nil {
			return err
		}
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		if err := publishEvents(ctx, repos, &inv.BaseAggregateRoot); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceStatus, updated.Status)
	resp := ToInvoiceResponse(updated)
	return &resp, nil
}

// DeleteInvoice hard deletes an invoice together with its items and payments
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "delete",
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, id),
	)
	defer span.End()

	err := s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		if _, err := repos.Invoices.FindByIDForUpdate(ctx, id); err != nil {
			return err
		}
		return repos.Invoices.Delete(ctx, id)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.logger.Info("Invoice deleted", zap.String("invoice_id", id.String()))
	return nil
}

// MarkOverdue moves every SENT or VIEWED invoice due before now to OVERDUE.
// Each invoice is handled in its own transaction so one failure does not
// block the rest; failures are joined into the returned error.
func (s *InvoiceService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "mark_overdue")
	defer span.End()

	var (
		marked int
		errs   []error
		seen   = make(map[uuid.UUID]struct{})
	)
	for {
		ids, err := s.invoices.FindOverdueCandidates(ctx, now, s.config.OverdueBatchSize)
		if err != nil {
			errs = append(errs, err)
			break
		}

		fresh := 0
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			fresh++

			changed, err := s.markOneOverdue(ctx, id, now)
			if err != nil {
				s.logger.Warn("Failed to mark invoice overdue",
					zap.String("invoice_id", id.String()),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}
			if changed {
				marked++
			}
		}

		// Failed rows stay candidates; stop once a batch brings nothing new.
		if len(ids) < s.config.OverdueBatchSize || fresh == 0 || ctx.Err() != nil {
			break
		}
	}

	telemetry.SetAttributes(span, "marked", marked)
	err := errors.Join(errs...)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return marked, err
}

func (s *InvoiceService) markOneOverdue(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	changed := false
	err := s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		inv, err := repos.Invoices.FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		// Re-checked under the row lock; a payment may have landed meanwhile.
		if !inv.MarkOverdue(now) {
			return nil
		}
		if err := repos.Invoices.Update(ctx, inv); err != nil {
			return err
		}
		changed = true
		return publishEvents(ctx, repos, &inv.BaseAggregateRoot)
	})
	return changed, err
}

// publishEvents hands the aggregate's pending events to the transactional
// publisher and clears them
func publishEvents(ctx context.Context, repos invoicing.Repositories, agg *shared.BaseAggregateRoot) error {
	events := agg.GetDomainEvents()
	if len(events) == 0 || repos.Events == nil {
		agg.ClearDomainEvents()
		return nil
	}
	if err := repos.Events.Publish(ctx, events...); err != nil {
		return err
	}
	agg.ClearDomainEvents()
	return nil
}
