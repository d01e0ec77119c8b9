package persistence

import (
	"context"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"gorm.io/gorm"
)

// GormUnitOfWork runs invoicing work in one database transaction, with every
// repository and the outbox bound to that transaction
type GormUnitOfWork struct {
	db        *gorm.DB
	publisher shared.TxEventPublisher
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
// publisher may be nil, in which case events are dropped.
func NewGormUnitOfWork(db *gorm.DB, publisher shared.TxEventPublisher) *GormUnitOfWork {
	return &GormUnitOfWork{db: db, publisher: publisher}
}

// Do runs fn inside a transaction. Returning an error from fn rolls back
// every write made through repos, outbox entries included.
func (u *GormUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos invoicing.Repositories) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, invoicing.Repositories{
			Invoices: NewGormInvoiceRepository(tx),
			Payments: NewGormPaymentRepository(tx),
			Numbers:  NewGormNumberSequence(tx),
			Events:   &txEventSink{publisher: u.publisher, tx: tx},
		})
	})
	return translateError(err, "transaction failed")
}

// txEventSink adapts a TxEventPublisher to EventPublisher for one transaction
type txEventSink struct {
	publisher shared.TxEventPublisher
	tx        *gorm.DB
}

func (s *txEventSink) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if s.publisher == nil || len(events) == 0 {
		return nil
	}
	return s.publisher.PublishWithTx(ctx, s.tx, events...)
}

var _ invoicing.UnitOfWork = (*GormUnitOfWork)(nil)
