package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/infrastructure/printing"
	"github.com/agencyhq/invoicing/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SnapshotLoader loads the read-only invoice view a document is rendered from
type SnapshotLoader interface {
	Snapshot(ctx context.Context, id uuid.UUID) (*invoicing.InvoiceSnapshot, error)
}

// DocumentStore keeps rendered documents and hands out download links
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
}

// DocumentResult is a rendered invoice. DownloadURL is set only when the
// document was archived to the store.
type DocumentResult struct {
	Document    *printing.RenderedDocument
	StorageKey  string
	DownloadURL string
	ExpiresAt   time.Time
}

// DocumentService renders invoices for download and optionally archives them
type DocumentService struct {
	loader    SnapshotLoader
	renderers map[printing.Format]printing.DocumentRenderer
	store     DocumentStore
	linkTTL   time.Duration
	logger    *zap.Logger
}

// NewDocumentService creates a DocumentService. store may be nil, in which
// case documents are only streamed back.
func NewDocumentService(
	loader SnapshotLoader,
	store DocumentStore,
	linkTTL time.Duration,
	logger *zap.Logger,
	renderers ...printing.DocumentRenderer,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	byFormat := make(map[printing.Format]printing.DocumentRenderer, len(renderers))
	for _, r := range renderers {
		if r != nil {
			byFormat[r.Format()] = r
		}
	}
	return &DocumentService{
		loader:    loader,
		renderers: byFormat,
		store:     store,
		linkTTL:   linkTTL,
		logger:    logger,
	}
}

// Formats lists the formats this service can produce
func (s *DocumentService) Formats() []printing.Format {
	formats := make([]printing.Format, 0, len(s.renderers))
	for _, f := range []printing.Format{printing.FormatHTML, printing.FormatPDF} {
		if _, ok := s.renderers[f]; ok {
			formats = append(formats, f)
		}
	}
	return formats
}

// Render renders an invoice in the requested format
func (s *DocumentService) Render(ctx context.Context, id uuid.UUID, format string) (*DocumentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "document", "render",
		telemetry.WithAttribute(telemetry.SpanAttrInvoiceID, id),
		telemetry.WithAttribute("format", format),
	)
	defer span.End()

	f, err := printing.ParseFormat(format)
	if err != nil {
		return nil, shared.NewValidationError("%s", err.Error())
	}
	renderer, ok := s.renderers[f]
	if !ok {
		return nil, shared.NewValidationError("document format %q is not enabled", f)
	}

	snap, err := s.loader.Snapshot(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	doc, err := renderer.Render(ctx, *snap)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	result := &DocumentResult{Document: doc}

	if s.store != nil {
		key := StorageKey(snap.Invoice, f)
		if err := s.store.Put(ctx, key, doc.Content, doc.ContentType); err != nil {
			// The rendered document is still returned to the caller.
			s.logger.Warn("Failed to archive invoice document",
				zap.String("invoice_id", id.String()),
				zap.String("key", key),
				zap.Error(err),
			)
			telemetry.AddEvent(span, "archive_failed", "key", key)
			return result, nil
		}
		url, expiresAt, err := s.store.PresignGet(ctx, key, s.linkTTL)
		if err != nil {
			s.logger.Warn("Failed to presign invoice document", zap.String("key", key), zap.Error(err))
			return result, nil
		}
		result.StorageKey = key
		result.DownloadURL = url
		result.ExpiresAt = expiresAt
	}

	s.logger.Debug("Invoice document rendered",
		zap.String("invoice_id", id.String()),
		zap.String("format", string(f)),
		zap.Int("bytes", len(doc.Content)),
		zap.Duration("duration", doc.RenderDuration),
	)
	return result, nil
}

// StorageKey returns "invoices/<issue year>/<number>.<ext>"
func StorageKey(inv invoicing.Invoice, format printing.Format) string {
	name := inv.InvoiceNumber
	if name == "" {
		name = inv.ID.String()
	}
	return fmt.Sprintf("invoices/%d/%s.%s", inv.IssueDate.Year(), name, format)
}
