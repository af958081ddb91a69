package google

import (
	"fmt"
	"strings"
	"time"

	"bartab/internal/ports"
)

const lastColumn = "H"

func header() []any {
	return []any{"Transaction", "Created", "Person ID", "Person", "Item ID", "Item", "Quantity", "Amount"}
}

// rowValues lays out a row to match header.
func rowValues(r ports.ExportRow) []any {
	return []any{
		r.TransactionID,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.PersonID,
		r.PersonName,
		r.ItemID,
		r.ItemName,
		r.Quantity,
		r.Amount.String(),
	}
}

// findRow returns the 1-based sheet row holding id in column A, or 0.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i + 1
		}
	}
	return 0
}

func rowRange(sheet string, n int) string {
	return fmt.Sprintf("%s!A%d:%s%d", sheet, n, lastColumn, n)
}
