package valueobject

import (
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Monetary columns are DECIMAL(12,2), quantities DECIMAL(10,2) and rates
// DECIMAL(5,2). Inputs outside those shapes are rejected here so nothing is
// rounded silently by the database.
const (
	AmountScale   int32 = 2
	QuantityScale int32 = 2
	PercentScale  int32 = 2
)

var (
	// MaxAmount is the largest value a DECIMAL(12,2) column holds
	MaxAmount = decimal.RequireFromString("9999999999.99")
	// MaxQuantity is the largest value a DECIMAL(10,2) column holds
	MaxQuantity = decimal.RequireFromString("99999999.99")
)

// RoundAmount rounds a computed amount to cents, half away from zero
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountScale)
}

// CheckScale fails when d has more than scale fractional digits
func CheckScale(name string, d decimal.Decimal, scale int32) error {
	if !d.Equal(d.Truncate(scale)) {
		return shared.NewValidationError("%s allows at most %d decimal places, got %s", name, scale, d.String())
	}
	return nil
}

// CheckAmount validates an amount entered by a caller: at most two decimals
// and within the column range.
func CheckAmount(name string, d decimal.Decimal) error {
	if err := CheckScale(name, d, AmountScale); err != nil {
		return err
	}
	return CheckRange(name, d, MaxAmount)
}

// CheckQuantity validates a line quantity
func CheckQuantity(name string, d decimal.Decimal) error {
	if err := CheckScale(name, d, QuantityScale); err != nil {
		return err
	}
	return CheckRange(name, d, MaxQuantity)
}

// CheckRange fails when |d| exceeds limit
func CheckRange(name string, d, limit decimal.Decimal) error {
	if d.Abs().GreaterThan(limit) {
		return shared.NewValidationError("%s exceeds the maximum of %s, got %s", name, limit.String(), d.String())
	}
	return nil
}
