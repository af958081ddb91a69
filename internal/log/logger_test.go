package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestJSONLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentLedger, Output: &buf})

	logger.InfoContext(context.Background(), "Transaction recorded", FieldPersonID, int64(3))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != ComponentLedger {
		t.Fatalf("expected component %q, got %v", ComponentLedger, entry[FieldComponent])
	}
	if entry[FieldPersonID] != float64(3) {
		t.Fatalf("expected person_id 3, got %v", entry[FieldPersonID])
	}
}

func TestTextLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: "text", Component: ComponentApp, Output: &buf})

	logger.InfoContext(context.Background(), "hidden")
	logger.WarnContext(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentHTTP, Output: &buf})

	ctx := WithContext(context.Background(), base.With(FieldRequestID, "req_1"))
	FromContext(ctx).InfoContext(ctx, "inside")

	if !strings.Contains(buf.String(), `"request_id":"req_1"`) {
		t.Fatalf("expected request id in output, got %q", buf.String())
	}
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected fallback logger")
	}
}

func TestStructuredLoggerHTTPEndLevel(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf}))
	r := httptest.NewRequest(http.MethodPost, "/api/consumptions", nil)

	sl.LogHTTPEnd(context.Background(), r, "req_2", http.StatusNotFound, 3, "10.0.0.1")
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("expected WARN for 404, got %q", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "boom", errors.New("db down"), ComponentStorage, OpAppend, nil)
	if !strings.Contains(buf.String(), `"error":"db down"`) || !strings.Contains(buf.String(), `"component":"storage"`) {
		t.Fatalf("unexpected error entry %q", buf.String())
	}
}
