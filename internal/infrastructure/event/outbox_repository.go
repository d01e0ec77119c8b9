package event

import (
	"context"
	"errors"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// holdingStatuses keep later entries of the same stream waiting
var holdingStatuses = []shared.OutboxStatus{shared.OutboxStatusFailed, shared.OutboxStatusProcessing}

// GormOutboxRepository stores the ledger outbox in outbox_entries
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository binds the repository to db. Passing a transaction
// handle makes Append part of that transaction.
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

func (r *GormOutboxRepository) Append(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]*models.OutboxRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, models.NewOutboxRecord(e))
	}
	return r.db.WithContext(ctx).Create(records).Error
}

// ClaimDue locks the due rows with FOR UPDATE SKIP LOCKED so several
// processors can share the table; sqlite ignores the locking clause.
func (r *GormOutboxRepository) ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var claimed []*shared.OutboxEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		prior := tx.Session(&gorm.Session{NewDB: true}).
			Table("outbox_entries AS prior").
			Select("1").
			Where("prior.stream_key = outbox_entries.stream_key").
			Where("prior.status IN ?", holdingStatuses).
			Where("(prior.created_at < outbox_entries.created_at OR (prior.created_at = outbox_entries.created_at AND prior.seq < outbox_entries.seq))")

		var records []models.OutboxRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status = ? OR (status = ? AND next_attempt_at <= ?) OR (status = ? AND updated_at < ?))",
				shared.OutboxStatusPending,
				shared.OutboxStatusFailed, now,
				shared.OutboxStatusProcessing, staleBefore).
			Where("NOT EXISTS (?)", prior).
			Order("created_at ASC, seq ASC").
			Limit(limit).
			Find(&records).Error
		if err != nil || len(records) == 0 {
			return err
		}

		ids := make([]uuid.UUID, 0, len(records))
		for i := range records {
			entry := records[i].Entry()
			if err := entry.Claim(now); err != nil {
				return err
			}
			claimed = append(claimed, entry)
			ids = append(ids, entry.ID)
		}
		return tx.Model(&models.OutboxRecord{}).
			Where("id IN ?", ids).
			Updates(map[string]any{"status": shared.OutboxStatusProcessing, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *GormOutboxRepository) Save(ctx context.Context, entry *shared.OutboxEntry) error {
	return r.db.WithContext(ctx).Save(models.NewOutboxRecord(entry)).Error
}

func (r *GormOutboxRepository) Get(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var record models.OutboxRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewNotFoundError("outbox entry", id)
	}
	if err != nil {
		return nil, err
	}
	return record.Entry(), nil
}

func (r *GormOutboxRepository) List(ctx context.Context, q shared.OutboxQuery) ([]*shared.OutboxEntry, int64, error) {
	page := shared.Filter{Page: q.Page, PageSize: q.PageSize}.Normalize()

	matching := func(db *gorm.DB) *gorm.DB {
		if q.Status != "" {
			db = db.Where("status = ?", q.Status)
		}
		if q.StreamKey != uuid.Nil {
			db = db.Where("stream_key = ?", q.StreamKey)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.OutboxRecord{}).Scopes(matching).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.OutboxRecord
	if err := r.db.WithContext(ctx).Scopes(matching).
		Order("updated_at DESC, id").
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&records).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]*shared.OutboxEntry, len(records))
	for i := range records {
		entries[i] = records[i].Entry()
	}
	return entries, total, nil
}

func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var rows []struct {
		Status shared.OutboxStatus
		N      int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxRecord{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}

func (r *GormOutboxRepository) PurgeDelivered(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND delivered_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxRecord{})
	return res.RowsAffected, res.Error
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
