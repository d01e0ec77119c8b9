package persistence

import (
	"strings"

	"gorm.io/gorm/clause"
)

// invoiceColumns are the invoice list orderings clients may ask for.
// Free-text columns are left out.
var invoiceColumns = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"issue_date":     true,
	"due_date":       true,
	"invoice_number": true,
	"total":          true,
	"status":         true,
}

// invoiceOrder turns a client supplied column and direction into an ORDER
// BY clause. Unknown columns fall back to created_at and anything but
// "asc" sorts descending. The id tie-breaker keeps pages stable when the
// column has duplicates.
func invoiceOrder(orderBy, orderDir string) clause.OrderBy {
	column := strings.TrimSpace(orderBy)
	if !invoiceColumns[column] {
		column = "created_at"
	}
	desc := !strings.EqualFold(strings.TrimSpace(orderDir), "asc")
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: clause.Column{Name: column}, Desc: desc},
		{Column: clause.Column{Name: "id"}, Desc: desc},
	}}
}
