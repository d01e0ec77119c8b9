package printing

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/agencyhq/invoicing/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templateFS embed.FS

const invoiceTemplate = "templates/invoice.html"

// HTMLRendererConfig configures the HTML renderer
type HTMLRendererConfig struct {
	// CompanyName is printed in the document header
	CompanyName string
	// Language drives number formatting and title casing. Defaults to English.
	Language language.Tag
	// Now is used for the "generated at" footer. Defaults to time.Now.
	Now func() time.Time
}

// HTMLRenderer binds an InvoiceSnapshot to the embedded invoice template
type HTMLRenderer struct {
	tmpl    *template.Template
	company string
	now     func() time.Time
}

// documentData is the value the invoice template executes against
type documentData struct {
	CompanyName string
	GeneratedAt time.Time
	invoicing.InvoiceSnapshot
}

// NewHTMLRenderer parses the embedded invoice template
func NewHTMLRenderer(cfg HTMLRendererConfig) (*HTMLRenderer, error) {
	if cfg.Language == language.Und {
		cfg.Language = language.English
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	tmpl, err := template.New("invoice.html").Funcs(funcMap(cfg.Language)).ParseFS(templateFS, invoiceTemplate)
	if err != nil {
		return nil, NewRenderError(ErrCodeTemplateFailed, "failed to parse invoice template", err)
	}

	return &HTMLRenderer{
		tmpl:    tmpl,
		company: cfg.CompanyName,
		now:     cfg.Now,
	}, nil
}

// RenderHTML executes the template and returns the HTML document
func (r *HTMLRenderer) RenderHTML(ctx context.Context, snapshot invoicing.InvoiceSnapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	data := documentData{
		CompanyName:     r.company,
		GeneratedAt:     r.now().UTC(),
		InvoiceSnapshot: snapshot,
	}
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "failed to execute invoice template", err)
	}
	return buf.String(), nil
}

// Render implements DocumentRenderer
func (r *HTMLRenderer) Render(ctx context.Context, snapshot invoicing.InvoiceSnapshot) (*RenderedDocument, error) {
	start := time.Now()
	html, err := r.RenderHTML(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return &RenderedDocument{
		Content:        []byte(html),
		ContentType:    "text/html; charset=utf-8",
		FileName:       documentFileName(snapshot, FormatHTML),
		RenderDuration: time.Since(start),
	}, nil
}

// Format implements DocumentRenderer
func (r *HTMLRenderer) Format() Format { return FormatHTML }

// Close implements DocumentRenderer
func (r *HTMLRenderer) Close() error { return nil }

// funcMap returns the template functions for lang
func funcMap(lang language.Tag) template.FuncMap {
	printer := message.NewPrinter(lang)
	caser := cases.Title(lang)

	return template.FuncMap{
		// formatMoney groups thousands and keeps two decimals.
		// Example: 1265.4 -> "1,265.40"
		"formatMoney": func(d decimal.Decimal) string {
			return formatMoney(printer, d)
		},
		"formatQuantity": func(d decimal.Decimal) string {
			return d.String()
		},
		"formatPercent": func(d decimal.Decimal) string {
			return d.String() + "%"
		},
		"formatDate": formatDate,
		"formatDateTime": func(t time.Time) string {
			return t.Format("2006-01-02 15:04 MST")
		},
		"statusText": func(s any) string {
			return caser.String(strings.ToLower(strings.ReplaceAll(toString(s), "_", " ")))
		},
		"shortUUID": shortUUID,
		"inc":       func(i int) int { return i + 1 },
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
}

// formatMoney prints the integer part through printer for locale grouping and
// appends the fixed two-digit fraction.
func formatMoney(printer *message.Printer, d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	whole, _ := decimal.NewFromString(intPart)
	return sign + printer.Sprintf("%d", whole.IntPart()) + "." + frac
}

// formatDate accepts time.Time or *time.Time; nil and zero print as ""
func formatDate(v any) string {
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case *time.Time:
		if val != nil {
			t = *val
		}
	}
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func shortUUID(id uuid.UUID) string {
	s := id.String()
	if len(s) < 8 {
		return s
	}
	return strings.ToUpper(s[:8])
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case interface{ String() string }:
		return s.String()
	default:
		return ""
	}
}
