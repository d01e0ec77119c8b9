package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is where an entry sits in its delivery lifecycle:
// PENDING -> PROCESSING -> SENT, with FAILED looping back to PROCESSING
// until the retry budget runs out and the entry goes DEAD.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

// ErrOutboxTransition is wrapped by every rejected lifecycle move
var ErrOutboxTransition = errors.New("outbox transition not allowed")

// RetryPolicy spaces out redelivery of a failing entry. The wait doubles
// from BaseDelay on every attempt and never exceeds MaxDelay; after
// MaxAttempts failures the entry is dead.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy gives up after five attempts spread over about 15s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Minute}
}

// Delay is the wait before the attempt following failure number attempt
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Exhausted reports whether attempts failures use up the budget
func (p RetryPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// OutboxEntry is a serialized ledger event written in the same transaction as
// the invoice or payment that raised it. Entries sharing a StreamKey are
// delivered in (CreatedAt, Seq) order; Seq is the event's position among the
// events committed together.
type OutboxEntry struct {
	ID            uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	StreamKey     uuid.UUID
	Seq           int
	Payload       []byte
	Status        OutboxStatus
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	DeliveredAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event as a PENDING entry
func NewOutboxEntry(event DomainEvent, payload []byte, seq int, now time.Time) *OutboxEntry {
	return &OutboxEntry{
		ID:            uuid.New(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		StreamKey:     StreamKeyOf(event),
		Seq:           seq,
		Payload:       payload,
		Status:        OutboxStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Claim takes the entry for a delivery attempt. PROCESSING entries may be
// claimed again once the worker holding them is presumed gone.
func (e *OutboxEntry) Claim(now time.Time) error {
	switch e.Status {
	case OutboxStatusPending, OutboxStatusFailed, OutboxStatusProcessing:
	default:
		return fmt.Errorf("%w: claim %s entry %s", ErrOutboxTransition, e.Status, e.ID)
	}
	e.Status = OutboxStatusProcessing
	e.UpdatedAt = now
	return nil
}

// Delivered records that every subscriber accepted the event
func (e *OutboxEntry) Delivered(now time.Time) {
	e.Status = OutboxStatusSent
	e.DeliveredAt = &now
	e.NextAttemptAt = nil
	e.UpdatedAt = now
}

// Failed records an unsuccessful attempt and schedules the next one. It
// returns true when the attempt used up the budget and the entry is dead.
func (e *OutboxEntry) Failed(now time.Time, cause error, policy RetryPolicy) bool {
	e.Attempts++
	e.LastError = cause.Error()
	e.UpdatedAt = now
	if policy.Exhausted(e.Attempts) {
		e.Status = OutboxStatusDead
		e.NextAttemptAt = nil
		return true
	}
	next := now.Add(policy.Delay(e.Attempts))
	e.Status = OutboxStatusFailed
	e.NextAttemptAt = &next
	return false
}

// Release returns a claimed entry to the queue without spending an attempt.
// A batch releases the rest of a stream once one of its entries fails.
func (e *OutboxEntry) Release(now time.Time) {
	if e.Attempts > 0 {
		e.Status = OutboxStatusFailed
		e.NextAttemptAt = &now
	} else {
		e.Status = OutboxStatusPending
	}
	e.UpdatedAt = now
}

// Revive puts a dead entry back in the queue with a fresh budget
func (e *OutboxEntry) Revive(now time.Time) error {
	if e.Status != OutboxStatusDead {
		return fmt.Errorf("%w: revive %s entry %s", ErrOutboxTransition, e.Status, e.ID)
	}
	e.Status = OutboxStatusPending
	e.Attempts = 0
	e.LastError = ""
	e.NextAttemptAt = nil
	e.UpdatedAt = now
	return nil
}

// OutboxQuery selects entries for operator listings. Zero fields match all.
type OutboxQuery struct {
	Status    OutboxStatus
	StreamKey uuid.UUID
	Page      int
	PageSize  int
}

// OutboxRepository stores outbox entries
type OutboxRepository interface {
	// Append inserts new entries
	Append(ctx context.Context, entries ...*OutboxEntry) error
	// ClaimDue moves up to limit deliverable entries to PROCESSING and returns
	// them in stream order. An entry is deliverable when it is PENDING, FAILED
	// with NextAttemptAt <= now, or PROCESSING since before staleBefore, and no
	// older entry of its stream is FAILED or PROCESSING. DEAD entries do not
	// hold their stream back.
	ClaimDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]*OutboxEntry, error)
	// Save writes back an entry's lifecycle fields
	Save(ctx context.Context, entry *OutboxEntry) error
	// Get loads one entry; a missing entry is a not found DomainError
	Get(ctx context.Context, id uuid.UUID) (*OutboxEntry, error)
	// List pages through entries matching q, newest activity first
	List(ctx context.Context, q OutboxQuery) ([]*OutboxEntry, int64, error)
	// CountByStatus counts entries per status
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
	// PurgeDelivered deletes SENT entries delivered before the cutoff
	PurgeDelivered(ctx context.Context, before time.Time) (int64, error)
}
