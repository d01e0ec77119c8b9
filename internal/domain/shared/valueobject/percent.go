package valueobject

import (
	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Percent is a rate in the closed range [0, 100]
type Percent struct {
	value decimal.Decimal
}

// NewPercent validates that value lies in [0, 100] with at most two decimals
func NewPercent(name string, value decimal.Decimal) (Percent, error) {
	if value.IsNegative() || value.GreaterThan(hundred) {
		return Percent{}, shared.NewValidationError("%s must be between 0 and 100, got %s", name, value.String())
	}
	if err := CheckScale(name, value, PercentScale); err != nil {
		return Percent{}, err
	}
	return Percent{value: value}, nil
}

// ZeroPercent returns a 0% rate
func ZeroPercent() Percent {
	return Percent{value: decimal.Zero}
}

// Decimal returns the raw percentage value (e.g. 12.5 for 12.5%)
func (p Percent) Decimal() decimal.Decimal {
	return p.value
}

// Of returns amount * p / 100, unrounded
func (p Percent) Of(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.value).Div(hundred)
}

// AmountOf returns amount * p / 100 rounded to cents
func (p Percent) AmountOf(amount decimal.Decimal) decimal.Decimal {
	return RoundAmount(p.Of(amount))
}
