package google

import "testing"

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"Transaction"},
		{"tx-1"},
		{},
		{" tx-2 "},
	}
	tests := []struct {
		id   string
		want int
	}{
		{"tx-1", 2},
		{"tx-2", 4},
		{"tx-9", 0},
	}
	for _, tt := range tests {
		if got := findRow(values, tt.id); got != tt.want {
			t.Errorf("findRow(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}

func TestRowValuesMatchHeader(t *testing.T) {
	row := rowValues(exportRow("tx-1", 265))
	if len(row) != len(header()) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(header()))
	}
	if row[1] != "2025-03-01T18:00:00Z" || row[7] != "2.65" {
		t.Fatalf("unexpected row %v", row)
	}
	if got := rowRange("Transactions", 5); got != "Transactions!A5:H5" {
		t.Fatalf("unexpected range %s", got)
	}
}
