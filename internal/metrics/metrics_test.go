package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.TransactionRecorded("per_unit", 250)
	m.SplitRequest("ok")
	m.LedgerError("append", "unknown_person")
	m.Event("transaction.created", "published", nil)
	m.HTTPRequest("GET", "/api/debts", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 from nil metrics handler, got %d", rec.Code)
	}
}

func TestCounters(t *testing.T) {
	m := New()
	m.TransactionRecorded("per_weight", 265)
	m.TransactionRecorded("per_weight", 265)
	m.SplitRequest("partial")
	m.Event("transaction.created", "published", errors.New("down"))

	if got := testutil.ToFloat64(m.transactions.WithLabelValues("per_weight")); got != 2 {
		t.Fatalf("expected 2 transactions, got %v", got)
	}
	if got := testutil.ToFloat64(m.chargedCents); got != 530 {
		t.Fatalf("expected 530 cents, got %v", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("transaction.created", "published", "error")); got != 1 {
		t.Fatalf("expected 1 failed publish, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.HTTPRequest("POST", "/api/consumptions", 201, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `bartab_http_requests_total{method="POST",route="/api/consumptions",status="201"} 1`) {
		t.Fatalf("expected request counter in output")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("expected runtime collectors in output")
	}
}
