package invoicing

import (
	"context"
	"strings"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyKeyPrefix = "payment:"

// PaymentService records payments and applies the invoice promotion rule
type PaymentService struct {
	uow            invoicing.UnitOfWork
	invoices       invoicing.InvoiceRepository
	payments       invoicing.PaymentRepository
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

// PaymentServiceOption configures a PaymentService
type PaymentServiceOption func(*PaymentService)

// WithIdempotencyStore enables Idempotency-Key handling for RecordPayment
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) PaymentServiceOption {
	return func(s *PaymentService) {
		s.idempotency = store
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	uow invoicing.UnitOfWork,
	invoices invoicing.InvoiceRepository,
	payments invoicing.PaymentRepository,
	logger *zap.Logger,
	opts ...PaymentServiceOption,
) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PaymentService{
		uow:            uow,
		invoices:       invoices,
		payments:       payments,
		idempotencyTTL: shared.DefaultIdempotencyTTL,
		now:            time.Now,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordPayment records a PENDING payment. Recording never changes the
// invoice status; only completion does. A repeated idempotency key is
// rejected with a conflict.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentInput) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record",
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, req.InvoiceID),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, req.Amount.String()),
	)
	defer span.End()

	payment, err := invoicing.NewPayment(req.InvoiceID, req.Amount, req.Method, req.TransactionID, req.Notes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, idempotencyKeyPrefix+key, s.idempotencyTTL)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, shared.NewPersistenceError("idempotency check failed", err)
		}
		if !fresh {
			err := shared.NewConflictError("a payment with idempotency key %q was already submitted", key)
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	err = s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		if _, err := repos.Invoices.FindByID(ctx, req.InvoiceID); err != nil {
			return err
		}
		if err := repos.Payments.Create(ctx, payment); err != nil {
			return err
		}
		return publishEvents(ctx, repos, &payment.BaseAggregateRoot)
	})
	if err != nil {
		if key != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyKeyPrefix+key); relErr != nil {
				s.logger.Warn("Failed to release idempotency key",
					zap.String("key", key),
					zap.Error(relErr),
				)
			}
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, payment.ID)
	s.logger.Info("Payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("invoice_id", payment.InvoiceID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", payment.Method),
	)
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// MarkPaymentStatus moves a payment to status. On COMPLETED the invoice is
// re-evaluated against the sum of completed payments in the same
// transaction, with the invoice row locked so concurrent completions
// serialize.
func (s *PaymentService) MarkPaymentStatus(ctx context.Context, id uuid.UUID, status string) (*PaymentStatusResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "mark_status",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, id),
		telemetry.WithAttribute(telemetry.SpanAttrPaymentStatus, status),
	)
	defer span.End()

	target := invoicing.PaymentStatus(strings.ToUpper(strings.TrimSpace(status)))
	if !target.IsValid() {
		err := shared.NewValidationError("unknown payment status %q", status)
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result PaymentStatusResult
	err := s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		payment, err := repos.Payments.FindByID(ctx, id)
		if err != nil {
			return err
		}
		inv, err := repos.Invoices.FindByIDForUpdate(ctx, payment.InvoiceID)
		if err != nil {
			return err
		}

		now := s.now()
		changed, err := payment.MarkStatus(target, now)
		if err != nil {
			return err
		}
		if changed {
			if err := repos.Payments.Update(ctx, payment); err != nil {
				return err
			}
			if err := publishEvents(ctx, repos, &payment.BaseAggregateRoot); err != nil {
				return err
			}
		}

		totalPaid, err := repos.Payments.SumCompleted(ctx, inv.ID)
		if err != nil {
			return err
		}
		promoted := false
		if target == invoicing.PaymentStatusCompleted {
			promoted = inv.ApplyPaymentCompletion(totalPaid, now)
			if promoted {
				if err := repos.Invoices.Update(ctx, inv); err != nil {
					return err
				}
				if err := publishEvents(ctx, repos, &inv.BaseAggregateRoot); err != nil {
					return err
				}
			}
		}

		result = PaymentStatusResult{
			Payment:          ToPaymentResponse(payment),
			InvoiceStatus:    inv.Status.String(),
			InvoicePromoted:  promoted,
			TotalPaid:        totalPaid,
			RemainingBalance: inv.RemainingBalance(totalPaid),
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceStatus, result.InvoiceStatus)
	if result.InvoicePromoted {
		s.logger.Info("Invoice status promoted by payment",
			zap.String("payment_id", id.String()),
			zap.String("invoice_id", result.Payment.InvoiceID.String()),
			zap.String("invoice_status", result.InvoiceStatus),
		)
	}
	return &result, nil
}

// CompletePayment marks a payment COMPLETED
func (s *PaymentService) CompletePayment(ctx context.Context, id uuid.UUID) (*PaymentStatusResult, error) {
	return s.MarkPaymentStatus(ctx, id, invoicing.PaymentStatusCompleted.String())
}

// GetPayment returns a single payment
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(payment)
	return &resp, nil
}

// ListPayments lists the payments of an invoice, oldest first
func (s *PaymentService) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]PaymentResponse, error) {
	if _, err := s.invoices.FindByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	payments, err := s.payments.FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return ToPaymentResponses(payments), nil
}

// DeletePayment hard deletes a payment. The invoice status is left as is,
// even when the deleted payment was what made it PAID.
func (s *PaymentService) DeletePayment(ctx context.Context, id uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, id),
	)
	defer span.End()

	err := s.uow.Do(ctx, func(ctx context.Context, repos invoicing.Repositories) error {
		if _, err := repos.Payments.FindByID(ctx, id); err != nil {
			return err
		}
		return repos.Payments.Delete(ctx, id)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.logger.Info("Payment deleted", zap.String("payment_id", id.String()))
	return nil
}

// TotalCompleted returns the sum of COMPLETED payments for an invoice
func (s *PaymentService) TotalCompleted(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.invoices.FindByID(ctx, invoiceID); err != nil {
		return decimal.Zero, err
	}
	return s.payments.SumCompleted(ctx, invoiceID)
}

// RemainingBalance returns Total minus completed payments. It is negative on
// overpayment.
func (s *PaymentService) RemainingBalance(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	balance, err := s.Balance(ctx, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.RemainingBalance, nil
}

// Balance reports total, paid and remaining for an invoice
func (s *PaymentService) Balance(ctx context.Context, invoiceID uuid.UUID) (*BalanceResponse, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	totalPaid, err := s.payments.SumCompleted(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		InvoiceID:        inv.ID,
		Total:            inv.Total,
		TotalPaid:        totalPaid,
		RemainingBalance: inv.RemainingBalance(totalPaid),
		Currency:         inv.Currency.String(),
	}, nil
}
