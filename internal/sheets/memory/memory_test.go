package memory

import (
	"context"
	"testing"
	"time"

	"bartab/internal/core"
	"bartab/internal/ports"
)

func TestExporterUpsertAndDelete(t *testing.T) {
	e := New()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	_ = e.UpsertTransaction(ctx, ports.ExportRow{TransactionID: "b", CreatedAt: base.Add(time.Minute), Amount: core.Money{Cents: 250}})
	_ = e.UpsertTransaction(ctx, ports.ExportRow{TransactionID: "a", CreatedAt: base, Amount: core.Money{Cents: 265}})
	_ = e.UpsertTransaction(ctx, ports.ExportRow{TransactionID: "a", CreatedAt: base, Amount: core.Money{Cents: 200}})

	rows := e.Rows()
	if len(rows) != 2 || rows[0].TransactionID != "a" || rows[0].Amount.Cents != 200 {
		t.Fatalf("unexpected rows %+v", rows)
	}

	_ = e.DeleteTransaction(ctx, "a")
	_ = e.DeleteTransaction(ctx, "missing")
	if rows := e.Rows(); len(rows) != 1 || rows[0].TransactionID != "b" {
		t.Fatalf("unexpected rows after delete %+v", rows)
	}
}
