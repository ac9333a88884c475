package persistence

import (
	"strings"
)

// sortColumns whitelists the columns a list query may order by
type sortColumns map[string]bool

var (
	invoiceSortColumns = sortColumns{
		"created_at":      true,
		"sequence_number": true,
		"status":          true,
		"issue_date":      true,
		"due_date":        true,
		"amount_gross":    true,
		"amount_paid":     true,
	}
	operationSortColumns = sortColumns{
		"created_at": true,
		"date":       true,
		"amount":     true,
		"category":   true,
		"method":     true,
		"direction":  true,
	}
)

// orderClause builds "column DIR, id ASC". Unknown columns fall back to
// fallback and anything but asc sorts descending, so the result is safe to
// hand to GORM's Order.
func (c sortColumns) orderClause(orderBy, orderDir, fallback string) string {
	column := strings.TrimSpace(orderBy)
	if !c[column] {
		column = fallback
	}
	dir := "DESC"
	if strings.EqualFold(strings.TrimSpace(orderDir), "asc") {
		dir = "ASC"
	}
	return column + " " + dir + ", id ASC"
}
