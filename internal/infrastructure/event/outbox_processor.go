package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery outcomes reported to a DeliveryObserver
const (
	DeliverySent  = "sent"
	DeliveryRetry = "retry"
	DeliveryDead  = "dead"
)

// DeliveryObserver is told how every delivery attempt ended
type DeliveryObserver interface {
	ObserveDelivery(ctx context.Context, eventType, outcome string)
}

// OutboxProcessorConfig tunes the relay from outbox_entries to the bus
type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// ClaimLease is how long an entry may sit in PROCESSING before another
	// processor assumes its worker died and claims it again
	ClaimLease time.Duration
	Retry      shared.RetryPolicy
	// Retention of SENT entries; zero keeps them forever
	Retention     time.Duration
	PurgeInterval time.Duration
}

// DefaultOutboxProcessorConfig polls every five seconds and keeps a week of
// delivered entries
func DefaultOutboxProcessorConfig() OutboxProcessorConfig {
	return OutboxProcessorConfig{
		BatchSize:     100,
		PollInterval:  5 * time.Second,
		ClaimLease:    5 * time.Minute,
		Retry:         shared.DefaultRetryPolicy(),
		Retention:     7 * 24 * time.Hour,
		PurgeInterval: time.Hour,
	}
}

// OutboxProcessorOption configures an OutboxProcessor
type OutboxProcessorOption func(*OutboxProcessor)

// WithDeliveryObserver reports every attempt to o
func WithDeliveryObserver(o DeliveryObserver) OutboxProcessorOption {
	return func(p *OutboxProcessor) { p.observer = o }
}

// WithProcessorClock replaces the wall clock
func WithProcessorClock(now func() time.Time) OutboxProcessorOption {
	return func(p *OutboxProcessor) { p.now = now }
}

// OutboxProcessor delivers committed ledger events to the bus. Within a batch
// it stops a stream at its first failure, so a later event of the same
// invoice waits until the earlier one is delivered or dead.
type OutboxProcessor struct {
	repo       shared.OutboxRepository
	bus        shared.EventPublisher
	serializer *EventSerializer
	cfg        OutboxProcessorConfig
	logger     *zap.Logger
	observer   DeliveryObserver
	now        func() time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewOutboxProcessor creates a stopped processor
func NewOutboxProcessor(
	repo shared.OutboxRepository,
	bus shared.EventPublisher,
	serializer *EventSerializer,
	cfg OutboxProcessorConfig,
	logger *zap.Logger,
	opts ...OutboxProcessorOption,
) *OutboxProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	p := &OutboxProcessor{
		repo:       repo,
		bus:        bus,
		serializer: serializer,
		cfg:        cfg,
		logger:     logger.Named("outbox"),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start runs the delivery loop until ctx ends or Stop is called
func (p *OutboxProcessor) Start(ctx context.Context) error {
	if p.done != nil {
		return errors.New("outbox processor already started")
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)

	p.logger.Info("outbox processor started",
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Int("max_attempts", p.cfg.Retry.MaxAttempts),
	)
	return nil
}

// Stop cancels the loop and waits for the batch in flight
func (p *OutboxProcessor) Stop(ctx context.Context) error {
	if p.done == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
		p.logger.Info("outbox processor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *OutboxProcessor) run(ctx context.Context) {
	defer close(p.done)

	poll := time.NewTicker(p.cfg.PollInterval)
	defer poll.Stop()

	var purge <-chan time.Time
	if p.cfg.Retention > 0 && p.cfg.PurgeInterval > 0 {
		t := time.NewTicker(p.cfg.PurgeInterval)
		defer t.Stop()
		purge = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			// a full batch means more is probably waiting
			for {
				claimed, _ := p.deliverBatch(ctx)
				if claimed < p.cfg.BatchSize || ctx.Err() != nil {
					break
				}
			}
		case <-purge:
			p.purge(ctx)
		}
	}
}

// ProcessOnce claims and delivers one batch, returning how many entries
// reached SENT
func (p *OutboxProcessor) ProcessOnce(ctx context.Context) int {
	_, sent := p.deliverBatch(ctx)
	return sent
}

func (p *OutboxProcessor) deliverBatch(ctx context.Context) (claimed, sent int) {
	now := p.now()
	entries, err := p.repo.ClaimDue(ctx, now, now.Add(-p.cfg.ClaimLease), p.cfg.BatchSize)
	if err != nil {
		p.logger.Error("claim outbox entries", zap.Error(err))
		return 0, 0
	}

	halted := make(map[uuid.UUID]bool)
	for _, entry := range entries {
		if halted[entry.StreamKey] {
			entry.Release(p.now())
			p.save(ctx, entry)
			continue
		}
		if err := p.deliver(ctx, entry); err != nil {
			halted[entry.StreamKey] = true
			p.failed(ctx, entry, err)
			continue
		}
		sent++
	}
	return len(entries), sent
}

func (p *OutboxProcessor) deliver(ctx context.Context, entry *shared.OutboxEntry) error {
	event, err := p.serializer.Deserialize(entry.EventType, entry.Payload)
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if err := p.bus.Publish(ctx, event); err != nil {
		return err
	}

	entry.Delivered(p.now())
	// a lost write leaves the entry PROCESSING; it is delivered again after
	// the lease and subscribers drop the duplicate by event ID
	p.save(ctx, entry)
	p.observe(ctx, entry.EventType, DeliverySent)
	p.logger.Debug("event delivered",
		zap.String("event_type", entry.EventType),
		zap.Stringer("event_id", entry.EventID),
		zap.Stringer("stream_key", entry.StreamKey),
	)
	return nil
}

func (p *OutboxProcessor) failed(ctx context.Context, entry *shared.OutboxEntry, cause error) {
	dead := entry.Failed(p.now(), cause, p.cfg.Retry)
	fields := []zap.Field{
		zap.String("event_type", entry.EventType),
		zap.Stringer("event_id", entry.EventID),
		zap.String("aggregate_type", entry.AggregateType),
		zap.Stringer("aggregate_id", entry.AggregateID),
		zap.Stringer("stream_key", entry.StreamKey),
		zap.Int("attempts", entry.Attempts),
		zap.Error(cause),
	}
	if dead {
		p.logger.Warn("event is dead after its last attempt; the stream moves on without it", fields...)
		p.observe(ctx, entry.EventType, DeliveryDead)
	} else {
		p.logger.Error("event delivery failed", append(fields, zap.Timep("next_attempt_at", entry.NextAttemptAt))...)
		p.observe(ctx, entry.EventType, DeliveryRetry)
	}
	p.save(ctx, entry)
}

func (p *OutboxProcessor) save(ctx context.Context, entry *shared.OutboxEntry) {
	if err := p.repo.Save(ctx, entry); err != nil {
		p.logger.Error("save outbox entry",
			zap.Stringer("id", entry.ID),
			zap.String("status", string(entry.Status)),
			zap.Error(err),
		)
	}
}

func (p *OutboxProcessor) observe(ctx context.Context, eventType, outcome string) {
	if p.observer != nil {
		p.observer.ObserveDelivery(ctx, eventType, outcome)
	}
}

func (p *OutboxProcessor) purge(ctx context.Context) {
	cutoff := p.now().Add(-p.cfg.Retention)
	n, err := p.repo.PurgeDelivered(ctx, cutoff)
	if err != nil {
		p.logger.Error("purge delivered entries", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("purged delivered entries", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
}
