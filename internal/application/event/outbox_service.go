package event

import (
	"context"
	"errors"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// reviveBatch bounds how many dead entries ReviveAll loads per pass
const reviveBatch = 100

// OutboxEntryDTO is an outbox entry as operators see it. InvoiceID is the
// delivery stream the entry belongs to: the invoice itself for invoice events
// and the paid invoice for payment events.
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateType string     `json:"aggregate_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	NextAttemptAt *time.Time `json:"next_attempt_at,omitempty"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newOutboxEntryDTO(e *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            e.ID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		InvoiceID:     e.StreamKey,
		Status:        string(e.Status),
		Attempts:      e.Attempts,
		LastError:     e.LastError,
		NextAttemptAt: e.NextAttemptAt,
		DeliveredAt:   e.DeliveredAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// DeadLetterQuery pages through dead entries, optionally for one invoice
type DeadLetterQuery struct {
	InvoiceID string `form:"invoice_id" binding:"omitempty,uuid"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OutboxStatsDTO counts entries per status. Backlog is everything not yet
// SENT or DEAD.
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
	Sent       int64 `json:"sent"`
	Dead       int64 `json:"dead"`
	Backlog    int64 `json:"backlog"`
	Total      int64 `json:"total"`
}

// OutboxService is the operator's view of ledger event delivery: what is
// stuck, for which invoice, and putting dead events back in line.
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ListDead pages through entries that used up their attempts
func (s *OutboxService) ListDead(ctx context.Context, q DeadLetterQuery) (shared.Paginated[OutboxEntryDTO], error) {
	invoiceID, err := parseInvoiceID(q.InvoiceID)
	if err != nil {
		return shared.Paginated[OutboxEntryDTO]{}, err
	}
	page := shared.Filter{Page: q.Page, PageSize: q.PageSize}.Normalize()

	entries, total, err := s.repo.List(ctx, shared.OutboxQuery{
		Status:    shared.OutboxStatusDead,
		StreamKey: invoiceID,
		Page:      page.Page,
		PageSize:  page.PageSize,
	})
	if err != nil {
		s.logger.Error("list dead entries", zap.Error(err))
		return shared.Paginated[OutboxEntryDTO]{}, shared.NewPersistenceError("failed to list dead entries", err)
	}

	items := make([]OutboxEntryDTO, len(entries))
	for i, e := range entries {
		items[i] = newOutboxEntryDTO(e)
	}
	return shared.NewPaginated(items, total, page.Page, page.PageSize), nil
}

func (s *OutboxService) Get(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := newOutboxEntryDTO(entry)
	return &dto, nil
}

// Revive puts one dead entry back in line with a fresh attempt budget. Only
// DEAD entries can be revived; anything else is a conflict.
func (s *OutboxService) Revive(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.Revive(s.now()); err != nil {
		return nil, shared.NewConflictError("outbox entry %s is %s, only DEAD entries can be revived", id, entry.Status)
	}
	if err := s.repo.Save(ctx, entry); err != nil {
		s.logger.Error("save revived entry", zap.Stringer("id", id), zap.Error(err))
		return nil, shared.NewPersistenceError("failed to revive outbox entry", err)
	}

	s.logger.Info("dead entry revived",
		zap.Stringer("id", id),
		zap.String("event_type", entry.EventType),
		zap.Stringer("invoice_id", entry.StreamKey),
	)
	dto := newOutboxEntryDTO(entry)
	return &dto, nil
}

// ReviveAll revives every dead entry, or only those of one invoice when
// invoiceID is set, and returns how many were revived. Revived entries leave
// the dead set, so the first page is re-read until it comes back empty.
func (s *OutboxService) ReviveAll(ctx context.Context, invoiceID string) (int64, error) {
	streamKey, err := parseInvoiceID(invoiceID)
	if err != nil {
		return 0, err
	}

	var revived int64
	for {
		entries, _, err := s.repo.List(ctx, shared.OutboxQuery{
			Status:    shared.OutboxStatusDead,
			StreamKey: streamKey,
			Page:      1,
			PageSize:  reviveBatch,
		})
		if err != nil {
			s.logger.Error("list dead entries", zap.Error(err))
			return revived, shared.NewPersistenceError("failed to list dead entries", err)
		}

		progress := 0
		for _, e := range entries {
			if e.Revive(s.now()) != nil {
				continue
			}
			if err := s.repo.Save(ctx, e); err != nil {
				s.logger.Error("save revived entry", zap.Stringer("id", e.ID), zap.Error(err))
				continue
			}
			progress++
		}
		revived += int64(progress)

		if progress == 0 || len(entries) < reviveBatch {
			break
		}
	}

	s.logger.Info("dead entries revived", zap.Int64("count", revived), zap.Stringer("invoice_id", streamKey))
	return revived, nil
}

func (s *OutboxService) Stats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("count outbox entries", zap.Error(err))
		return nil, shared.NewPersistenceError("failed to count outbox entries", err)
	}

	stats := &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Failed:     counts[shared.OutboxStatusFailed],
		Sent:       counts[shared.OutboxStatusSent],
		Dead:       counts[shared.OutboxStatusDead],
	}
	stats.Backlog = stats.Pending + stats.Processing + stats.Failed
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func (s *OutboxService) load(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.Get(ctx, id)
	var de *shared.DomainError
	switch {
	case err == nil:
		return entry, nil
	case errors.As(err, &de):
		return nil, err
	default:
		s.logger.Error("load outbox entry", zap.Stringer("id", id), zap.Error(err))
		return nil, shared.NewPersistenceError("failed to load outbox entry", err)
	}
}

func parseInvoiceID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, shared.NewValidationError("invoice_id must be a UUID, got %q", raw)
	}
	return id, nil
}
