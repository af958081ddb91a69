package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bartab/internal/core"
	"bartab/internal/log"
	"bartab/internal/services"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type failureBody struct {
	PersonID int64  `json:"person_id"`
	Error    string `json:"error"`
	Code     string `json:"code"`
}

// errorStatus maps a ledger error kind to its HTTP status.
var errorStatus = map[string]int{
	"invalid_quantity":     http.StatusUnprocessableEntity,
	"item_inactive":        http.StatusUnprocessableEntity,
	"empty_group":          http.StatusUnprocessableEntity,
	"empty_correction":     http.StatusUnprocessableEntity,
	"invalid_price":        http.StatusUnprocessableEntity,
	"invalid_name":         http.StatusUnprocessableEntity,
	"unknown_person":       http.StatusNotFound,
	"unknown_item":         http.StatusNotFound,
	"unknown_transaction":  http.StatusNotFound,
	"nothing_to_undo":      http.StatusNotFound,
	"invalid_request_body": http.StatusBadRequest,
	"timeout":              http.StatusGatewayTimeout,
}

// classify returns the status, stable code and client-facing message of err.
func classify(err error) (int, string, string) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, "invalid_request_body", err.Error()
	}
	kind := services.ErrorKind(err)
	if status, ok := errorStatus[kind]; ok {
		return status, kind, err.Error()
	}
	return http.StatusInternalServerError, "internal_error", "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", log.FieldError, err)
	}
}

// writeError renders err as {error, code}. Server-side failures are logged
// with the request-scoped logger; their details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code, msg := classify(err)
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
	}
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

func writeQueryError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_query"})
}

// writePartialFailure reports a split request where some entries failed.
// The committed entries are listed next to the failures.
func writePartialFailure(w http.ResponseWriter, res services.SplitResult, pf *core.PartialFailureError) {
	body := struct {
		splitResultDTO
		Failures []failureBody `json:"failures"`
	}{splitResultDTO: newSplitResultDTO(res)}
	for _, f := range pf.Failures {
		_, code, msg := classify(f.Err)
		body.Failures = append(body.Failures, failureBody{PersonID: f.PersonID, Error: msg, Code: code})
	}
	writeJSON(w, http.StatusMultiStatus, body)
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).
		WarnContext(r.Context(), "Rate limit exceeded", log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later", Code: "rate_limited"})
}

// withTimeout bounds every ledger call made while serving a request.
func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
