package printing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultScale         = 1.0
	defaultMarginMM      = 12.0
)

// PaperSize names a supported paper format
type PaperSize string

const (
	PaperSizeA4     PaperSize = "A4"
	PaperSizeA5     PaperSize = "A5"
	PaperSizeLetter PaperSize = "LETTER"
	PaperSizeLegal  PaperSize = "LEGAL"
)

// paperDimensions holds width and height in millimeters
var paperDimensions = map[PaperSize][2]float64{
	PaperSizeA4:     {210, 297},
	PaperSizeA5:     {148, 210},
	PaperSizeLetter: {215.9, 279.4},
	PaperSizeLegal:  {215.9, 355.6},
}

// Dimensions returns width and height in millimeters
func (p PaperSize) Dimensions() (float64, float64, bool) {
	d, ok := paperDimensions[PaperSize(strings.ToUpper(string(p)))]
	return d[0], d[1], ok
}

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// DefaultTimeout for rendering operations
	DefaultTimeout time.Duration
	// RemoteURL is the websocket URL of a running Chrome. Empty launches one.
	RemoteURL string
	// PaperSize defaults to A4
	PaperSize PaperSize
	// MarginMM applies to all four sides
	MarginMM float64
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	Scale     float64
	Logger    *zap.Logger
}

// ChromedpRenderer prints the HTML invoice to PDF using Chrome DevTools Protocol
type ChromedpRenderer struct {
	html        *HTMLRenderer
	config      *ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates the renderer. Chrome itself is started lazily
// by the first Render.
func NewChromedpRenderer(html *HTMLRenderer, config *ChromedpConfig) (*ChromedpRenderer, error) {
	if html == nil {
		return nil, errors.New("html renderer is required")
	}
	if config == nil {
		config = &ChromedpConfig{}
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	if config.Scale == 0 {
		config.Scale = defaultScale
	}
	if config.MarginMM == 0 {
		config.MarginMM = defaultMarginMM
	}
	if config.PaperSize == "" {
		config.PaperSize = PaperSizeA4
	}
	if _, _, ok := config.PaperSize.Dimensions(); !ok {
		return nil, NewRenderError(ErrCodeInvalidPaperSize, "invalid paper size: "+string(config.PaperSize), nil)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{
		html:   html,
		config: config,
		logger: logger,
	}
	r.initAllocator()
	return r, nil
}

func (r *ChromedpRenderer) initAllocator() {
	if r.config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.config.RemoteURL)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Render implements DocumentRenderer
func (r *ChromedpRenderer) Render(ctx context.Context, snapshot invoicing.InvoiceSnapshot) (*RenderedDocument, error) {
	start := time.Now()

	html, err := r.html.RenderHTML(ctx, snapshot)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.DefaultTimeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// Bind the browser tab to the caller's deadline.
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	params := r.buildPrintParams()
	var pdfData []byte

	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(params.paperWidth).
				WithPaperHeight(params.paperHeight).
				WithMarginTop(params.margin).
				WithMarginRight(params.margin).
				WithMarginBottom(params.margin).
				WithMarginLeft(params.margin).
				WithScale(params.scale).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("PDF rendering timed out after %v", r.config.DefaultTimeout), err)
		case errors.Is(ctx.Err(), context.Canceled):
			return nil, NewRenderError(ErrCodeRenderTimeout, "PDF rendering was cancelled", err)
		}
		r.logger.Error("chromedp rendering failed", zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chromedp execution failed", err)
	}
	if len(pdfData) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil)
	}

	duration := time.Since(start)
	r.logger.Info("invoice PDF rendered",
		zap.String("invoice_number", snapshot.Invoice.InvoiceNumber),
		zap.Int("bytes", len(pdfData)),
		zap.Duration("duration", duration))

	return &RenderedDocument{
		Content:        pdfData,
		ContentType:    "application/pdf",
		FileName:       documentFileName(snapshot, FormatPDF),
		RenderDuration: duration,
	}, nil
}

// Format implements DocumentRenderer
func (r *ChromedpRenderer) Format() Format { return FormatPDF }

// HTML returns the renderer used for the intermediate document
func (r *ChromedpRenderer) HTML() *HTMLRenderer { return r.html }

type printParams struct {
	paperWidth  float64
	paperHeight float64
	margin      float64
	scale       float64
}

// buildPrintParams converts the configured paper to inches, which Chrome expects
func (r *ChromedpRenderer) buildPrintParams() printParams {
	width, height, _ := r.config.PaperSize.Dimensions()
	return printParams{
		paperWidth:  mmToInches(width),
		paperHeight: mmToInches(height),
		margin:      mmToInches(r.config.MarginMM),
		scale:       r.config.Scale,
	}
}

// Close releases resources held by the renderer
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var (
	_ DocumentRenderer = (*HTMLRenderer)(nil)
	_ DocumentRenderer = (*ChromedpRenderer)(nil)
)
