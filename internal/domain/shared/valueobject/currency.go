package valueobject

import (
	"strings"

	"github.com/agencyhq/invoicing/internal/domain/shared"
)

// Currency is an ISO 4217 style three-letter code.
// It is carried through untouched; no conversion happens anywhere.
type Currency string

// DefaultCurrency is used when an invoice is created without one
const DefaultCurrency Currency = "USD"

// ParseCurrency normalizes and validates a currency code
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", shared.NewValidationError("currency must be a 3-letter code, got %q", code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", shared.NewValidationError("currency must be a 3-letter code, got %q", code)
		}
	}
	return Currency(code), nil
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}
