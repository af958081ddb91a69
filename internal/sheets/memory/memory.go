// Package memory is an in-process transaction exporter, used when no
// spreadsheet is configured and in tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"bartab/internal/ports"
)

type Exporter struct {
	mu   sync.Mutex
	rows map[string]ports.ExportRow
}

var _ ports.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{rows: map[string]ports.ExportRow{}}
}

func (e *Exporter) UpsertTransaction(_ context.Context, row ports.ExportRow) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows[row.TransactionID] = row
	return nil
}

func (e *Exporter) DeleteTransaction(_ context.Context, transactionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rows, transactionID)
	return nil
}

// Rows returns the mirrored rows, oldest first.
func (e *Exporter) Rows() []ports.ExportRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ports.ExportRow, 0, len(e.rows))
	for _, r := range e.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out
}
