package invoicing

import (
	"fmt"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/agencyhq/invoicing/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LineInput is the arithmetic view of a line item
type LineInput struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Totals is the result of ComputeTotals. Every amount is in cents and
// Total == Subtotal - DiscountAmount + TaxAmount holds exactly.
type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	AfterDiscount  decimal.Decimal `json:"after_discount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

// ComputeLineTotal returns quantity * unitPrice rounded to cents
func ComputeLineTotal(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return valueobject.RoundAmount(quantity.Mul(unitPrice))
}

// ValidateLine checks the quantity and unit price of a single line
func ValidateLine(index int, line LineInput) error {
	if !line.Quantity.IsPositive() {
		return shared.NewValidationError("item %d: quantity must be greater than 0, got %s", index+1, line.Quantity.String())
	}
	if line.UnitPrice.IsNegative() {
		return shared.NewValidationError("item %d: unit price must not be negative, got %s", index+1, line.UnitPrice.String())
	}
	if err := valueobject.CheckQuantity(fmt.Sprintf("item %d: quantity", index+1), line.Quantity); err != nil {
		return err
	}
	if err := valueobject.CheckAmount(fmt.Sprintf("item %d: unit price", index+1), line.UnitPrice); err != nil {
		return err
	}
	return valueobject.CheckRange(fmt.Sprintf("item %d: line total", index+1),
		ComputeLineTotal(line.Quantity, line.UnitPrice), valueobject.MaxAmount)
}

// ComputeTotals computes subtotal, discount, tax and total for the given lines.
// The discount is applied to the subtotal first and tax is charged on the
// discounted amount. Reversing that order changes the result.
// Line totals, the discount and the tax are each rounded to cents half away
// from zero; the subtotal and total are exact sums of those rounded parts.
func ComputeTotals(lines []LineInput, taxRatePercent, discountPercent decimal.Decimal) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, shared.NewValidationError("an invoice must have at least one item")
	}
	discount, err := valueobject.NewPercent("discount", discountPercent)
	if err != nil {
		return Totals{}, err
	}
	tax, err := valueobject.NewPercent("tax rate", taxRatePercent)
	if err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	for i, line := range lines {
		if err := ValidateLine(i, line); err != nil {
			return Totals{}, err
		}
		subtotal = subtotal.Add(ComputeLineTotal(line.Quantity, line.UnitPrice))
	}

	discountAmount := discount.AmountOf(subtotal)
	afterDiscount := subtotal.Sub(discountAmount)
	taxAmount := tax.AmountOf(afterDiscount)
	total := afterDiscount.Add(taxAmount)

	if err := valueobject.CheckRange("subtotal", subtotal, valueobject.MaxAmount); err != nil {
		return Totals{}, err
	}
	if err := valueobject.CheckRange("total", total, valueobject.MaxAmount); err != nil {
		return Totals{}, err
	}

	return Totals{
		Subtotal:       subtotal,
		DiscountAmount: discountAmount,
		AfterDiscount:  afterDiscount,
		TaxAmount:      taxAmount,
		Total:          total,
	}, nil
}
