package security

import (
	"bytes"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bartab/internal/log"
)

func TestExtractClientIP(t *testing.T) {
	d, err := NewDetector([]string{"10.0.0.0/8", "192.0.2.10"})
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.5:4000", "", "", "203.0.113.5"},
		{"untrusted peer ignores xff", "203.0.113.5:4000", "198.51.100.1", "", "203.0.113.5"},
		{"trusted cidr uses first xff", "10.1.2.3:4000", "198.51.100.1, 10.1.2.3", "", "198.51.100.1"},
		{"trusted single host", "192.0.2.10:80", "198.51.100.2", "", "198.51.100.2"},
		{"loopback falls back to x-real-ip", "127.0.0.1:80", "garbage", "198.51.100.3", "198.51.100.3"},
		{"trusted without headers", "10.1.2.3:4000", "", "", "10.1.2.3"},
		{"unparseable remote", "pipe", "198.51.100.1", "", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/debts", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewDetectorRejectsBadCIDR(t *testing.T) {
	if _, err := NewDetector([]string{"10.0.0.0/99"}); err == nil {
		t.Fatal("expected error for invalid CIDR")
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	d, _ := NewDetector(nil)
	tests := []struct {
		method string
		target string
		agent  string
		want   bool
	}{
		{http.MethodGet, "/api/debts", "Mozilla/5.0", false},
		{http.MethodGet, "/api/transactions?person_id=1", "curl/8.0", false},
		{http.MethodGet, "/.env", "", true},
		{http.MethodGet, "/api/transactions?person_id=1%20union%20select", "", true},
		{http.MethodGet, "/api/debts", "sqlmap/1.7", true},
		{"TRACE", "/", "", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, tt.target, nil)
		r.Header.Set("User-Agent", tt.agent)
		if got := d.DetectSuspiciousRequest(r); got != tt.want {
			t.Errorf("%s %s (%s): got %v, want %v", tt.method, tt.target, tt.agent, got, tt.want)
		}
	}
	if d.SuspiciousRequests() != 4 {
		t.Fatalf("expected 4 flagged requests, got %d", d.SuspiciousRequests())
	}
}

func TestDetectorMiddlewareLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})
	d, _ := NewDetector(nil)
	h := d.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("suspicious requests pass through, got %d", rec.Code)
	}
	if !strings.Contains(buf.String(), "Suspicious request") || !strings.Contains(buf.String(), `"component":"security"`) {
		t.Fatalf("expected a security warning, got %s", buf.String())
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/debts", nil))
	for key, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
		"Cache-Control":           "no-store",
	} {
		if got := rec.Header().Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must only be sent over TLS")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/debts", nil)
	req.TLS = &tls.ConnectionState{}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("unexpected HSTS %q", got)
	}
}
