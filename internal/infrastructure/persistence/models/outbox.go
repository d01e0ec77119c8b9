package models

import (
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// OutboxRecord is a row of outbox_entries. The (stream_key, created_at, seq)
// index backs both the delivery claim and its per-invoice ordering check.
type OutboxRecord struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID           `gorm:"type:uuid;not null;uniqueIndex"`
	EventType     string              `gorm:"type:varchar(255);not null"`
	AggregateID   uuid.UUID           `gorm:"type:uuid;not null"`
	AggregateType string              `gorm:"type:varchar(255);not null"`
	StreamKey     uuid.UUID           `gorm:"type:uuid;not null;index:idx_outbox_stream,priority:1"`
	Seq           int                 `gorm:"not null;default:0;index:idx_outbox_stream,priority:3"`
	Payload       []byte              `gorm:"type:jsonb;not null"`
	Status        shared.OutboxStatus `gorm:"type:varchar(20);not null;default:PENDING;index:idx_outbox_status"`
	Attempts      int                 `gorm:"not null;default:0"`
	LastError     string              `gorm:"type:text"`
	NextAttemptAt *time.Time
	DeliveredAt   *time.Time
	CreatedAt     time.Time `gorm:"not null;autoCreateTime:false;index:idx_outbox_stream,priority:2"`
	UpdatedAt     time.Time `gorm:"not null;autoUpdateTime:false"`
}

// TableName keeps the table name stable across struct renames
func (OutboxRecord) TableName() string { return "outbox_entries" }

// NewOutboxRecord maps a domain entry onto a row. The struct conversion
// stops compiling if the row and the entry drift apart.
func NewOutboxRecord(e *shared.OutboxEntry) *OutboxRecord {
	r := OutboxRecord(*e)
	return &r
}

// Entry maps the row back to the domain
func (r *OutboxRecord) Entry() *shared.OutboxEntry {
	e := shared.OutboxEntry(*r)
	return &e
}
