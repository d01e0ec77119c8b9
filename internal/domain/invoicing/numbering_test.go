package invoicing

import (
	"testing"

	"github.com/agencyhq/invoicing/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2024-0007", FormatInvoiceNumber(2024, 7))
	assert.Equal(t, "INV-2025-0001", FormatInvoiceNumber(2025, 1))
	assert.Equal(t, "INV-2025-10000", FormatInvoiceNumber(2025, 10000))
	assert.Equal(t, "INV-2025-", NumberPrefix(2025))
}

func TestParseInvoiceNumber(t *testing.T) {
	year, seq, err := ParseInvoiceNumber("INV-2024-0007")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 7, seq)

	_, seq, err = ParseInvoiceNumber("INV-2024-12345")
	require.NoError(t, err)
	assert.Equal(t, 12345, seq)

	for _, bad := range []string{"", "INV-2024", "INV-24-0001", "ABC-2024-0001", "INV-2024-007", "INV-2024-0000", "INV-2024-00x1"} {
		_, _, err := ParseInvoiceNumber(bad)
		assert.True(t, shared.IsValidation(err), "expected validation error for %q", bad)
	}
}

func nextNumber(t *testing.T, last string, year int) string {
	t.Helper()
	seq, err := NextSequence(last, year)
	require.NoError(t, err)
	return FormatInvoiceNumber(year, seq)
}

func TestNextSequence(t *testing.T) {
	tests := []struct {
		name string
		last string
		year int
		want string
	}{
		{"first invoice ever", "", 2024, "INV-2024-0001"},
		{"next in same year", "INV-2024-0007", 2024, "INV-2024-0008"},
		{"year rollover", "INV-2024-9999", 2025, "INV-2025-0001"},
		{"past four digits", "INV-2025-9999", 2025, "INV-2025-10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextNumber(t, tt.last, tt.year))
		})
	}
}

func TestNextSequence_Monotonic(t *testing.T) {
	last := ""
	for i := 1; i <= 50; i++ {
		next := nextNumber(t, last, 2025)
		assert.Equal(t, FormatInvoiceNumber(2025, i), next)
		if last != "" {
			assert.Greater(t, next, last)
		}
		last = next
	}
}

func TestNextSequence_RejectsMalformedLast(t *testing.T) {
	_, err := NextSequence("INV-20X5-0001", 2025)
	assert.True(t, shared.IsValidation(err))
}
