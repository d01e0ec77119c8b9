package invoicing

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agencyhq/invoicing/internal/domain/shared"
)

// InvoiceNumberPrefix is the fixed leading token of every invoice number
const InvoiceNumberPrefix = "INV"

// NumberPrefix returns "INV-<year>-"
func NumberPrefix(year int) string {
	return fmt.Sprintf("%s-%d-", InvoiceNumberPrefix, year)
}

// FormatInvoiceNumber renders INV-<year>-<seq>, zero padded to 4 digits
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("%s%04d", NumberPrefix(year), seq)
}

// ParseInvoiceNumber splits an invoice number into year and sequence
func ParseInvoiceNumber(number string) (year, seq int, err error) {
	parts := strings.Split(number, "-")
	if len(parts) != 3 || parts[0] != InvoiceNumberPrefix {
		return 0, 0, shared.NewValidationError("malformed invoice number %q", number)
	}
	year, err = strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 4 {
		return 0, 0, shared.NewValidationError("malformed invoice number %q", number)
	}
	if len(parts[2]) < 4 {
		return 0, 0, shared.NewValidationError("malformed invoice number %q", number)
	}
	seq, err = strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return 0, 0, shared.NewValidationError("malformed invoice number %q", number)
	}
	return year, seq, nil
}

// NextSequence applies the max+1 rule. lastNumber is the greatest number
// already issued for year, or "" when none exists. A lastNumber from another
// year restarts the sequence at 1.
func NextSequence(lastNumber string, year int) (int, error) {
	if lastNumber == "" {
		return 1, nil
	}
	lastYear, lastSeq, err := ParseInvoiceNumber(lastNumber)
	if err != nil {
		return 0, err
	}
	if lastYear != year {
		return 1, nil
	}
	return lastSeq + 1, nil
}
