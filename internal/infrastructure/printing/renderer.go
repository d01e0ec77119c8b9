package printing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/agencyhq/invoicing/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Format is the output format of a rendered document
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "html" or "pdf", case-insensitively. Empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", NewRenderError(ErrCodeUnsupportedFormat, "unsupported document format: "+s, nil)
	}
}

// Engine names accepted by printing.engine
const (
	EngineHTML     = "html"
	EngineChromedp = "chromedp"
)

// RenderedDocument is a rendered invoice ready to be served or archived
type RenderedDocument struct {
	Content     []byte
	ContentType string
	FileName    string
	// RenderDuration is how long the rendering took
	RenderDuration time.Duration
}

// DocumentRenderer renders an invoice snapshot
type DocumentRenderer interface {
	// Render produces the document in the renderer's native format
	Render(ctx context.Context, snapshot invoicing.InvoiceSnapshot) (*RenderedDocument, error)
	// Format reports the format Render produces
	Format() Format
	// Close releases any resources held by the renderer
	Close() error
}

// RenderError represents an error during document rendering
type RenderError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// Error codes for rendering failures
const (
	ErrCodeRenderTimeout     = "RENDER_TIMEOUT"
	ErrCodeRenderFailed      = "RENDER_FAILED"
	ErrCodeTemplateFailed    = "TEMPLATE_FAILED"
	ErrCodeInvalidPaperSize  = "INVALID_PAPER_SIZE"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
)

// NewRenderError creates a new RenderError
func NewRenderError(code, message string, cause error) *RenderError {
	return &RenderError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewRenderer builds the renderer selected by cfg.Engine. An empty engine
// means HTML.
func NewRenderer(cfg config.PrintingConfig, logger *zap.Logger) (DocumentRenderer, error) {
	html, err := NewHTMLRenderer(HTMLRendererConfig{CompanyName: cfg.CompanyName})
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Engine) {
	case "", EngineHTML:
		return html, nil
	case EngineChromedp:
		return NewChromedpRenderer(html, &ChromedpConfig{
			DefaultTimeout: cfg.Timeout,
			RemoteURL:      cfg.ChromeRemoteURL,
			PaperSize:      PaperSize(cfg.PaperSize),
			NoSandbox:      true,
			Logger:         logger,
		})
	default:
		return nil, fmt.Errorf("unknown printing engine %q", cfg.Engine)
	}
}

// documentFileName returns "<invoice number>.<ext>", falling back to the id
func documentFileName(snapshot invoicing.InvoiceSnapshot, format Format) string {
	name := snapshot.Invoice.InvoiceNumber
	if name == "" {
		name = snapshot.Invoice.ID.String()
	}
	return name + "." + string(format)
}
