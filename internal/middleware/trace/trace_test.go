package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"bartab/internal/log"
	"bartab/internal/metrics"
)

func newRouter(buf *bytes.Buffer, m *metrics.Metrics) http.Handler {
	logger := log.New(log.Config{Level: slog.LevelDebug, Format: "json", Component: log.ComponentHTTP, Output: buf})
	mw := NewMiddleware(logger, func(*http.Request) string { return "203.0.113.7" }, m)

	r := chi.NewRouter()
	r.Use(mw.Middleware)
	r.Get("/api/transactions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			http.Error(w, "missing request id", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	return r
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	h := newRouter(&buf, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions/tx-1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from handler, got %d", rec.Code)
	}
	id := rec.Header().Get(HeaderRequestID)
	if !strings.HasPrefix(id, "req_") {
		t.Fatalf("expected generated request id, got %q", id)
	}
	out := buf.String()
	if !strings.Contains(out, id) || !strings.Contains(out, "203.0.113.7") {
		t.Fatalf("log output misses request id or client ip:\n%s", out)
	}
}

func TestMiddlewareHonorsIncomingRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"plain", "abc-123", true},
		{"uuid", "3f1c1f1e-6a0c-4f55-9d7e-0c2b5d8f1a22", true},
		{"spaces", "not ok", false},
		{"too long", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newRouter(&buf, nil)
			req := httptest.NewRequest(http.MethodGet, "/api/transactions/tx-1", nil)
			req.Header.Set(HeaderRequestID, tt.incoming)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(HeaderRequestID)
			if (got == tt.incoming) != tt.keep {
				t.Fatalf("incoming %q, response id %q, keep=%v", tt.incoming, got, tt.keep)
			}
		})
	}
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	h := newRouter(&buf, m)

	for _, id := range []string{"a", "b", "c"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/transactions/"+id, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	want := `bartab_http_requests_total{method="GET",route="/api/transactions/{id}",status="404"} 3`
	if !strings.Contains(body, want) {
		t.Fatalf("expected %s in metrics output", want)
	}
}
