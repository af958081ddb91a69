package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bartab/internal/core"
)

const maxBodyBytes = 64 << 10

// errBadRequest marks malformed input that never reached the ledger.
var errBadRequest = errors.New("invalid request body")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// flexNumber holds a decimal given either as a JSON number or a string.
// Strings may use a comma as decimal separator.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = flexNumber(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return fmt.Errorf("expected a number or a decimal string")
	}
	*n = flexNumber(num.String())
	return nil
}

// quantity parses n as a weight or count. A nil receiver means "absent".
func (n *flexNumber) quantity() (*decimal.Decimal, error) {
	if n == nil {
		return nil, nil
	}
	q, err := core.ParseQuantity(string(*n))
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (n *flexNumber) money() (*core.Money, error) {
	if n == nil {
		return nil, nil
	}
	m, err := core.ParseMoney(string(*n))
	if err != nil {
		return nil, err
	}
	return &m, nil
}

type consumptionRequest struct {
	PersonIDs     []int64     `json:"person_ids"`
	ItemID        int64       `json:"item_id"`
	TotalQuantity *flexNumber `json:"total_quantity"`
}

type personRefRequest struct {
	PersonID int64 `json:"person_id"`
}

type correctionRequest struct {
	Quantity *flexNumber `json:"quantity"`
	Price    *flexNumber `json:"price"`
}

type personRequest struct {
	Name  string `json:"name"`
	Guest bool   `json:"guest"`
}

// decodeJSON reads a single JSON object into v. Unknown fields and trailing
// data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return badRequest("empty body")
		case errors.As(err, &maxErr):
			return badRequest("body exceeds %d bytes", maxErr.Limit)
		default:
			return badRequest("%v", err)
		}
	}
	if dec.More() {
		return badRequest("unexpected data after JSON object")
	}
	return nil
}

// parseTransactionFilter reads limit, offset and person_id from the query.
// Missing values keep the ledger defaults.
func parseTransactionFilter(q url.Values) (core.TransactionFilter, error) {
	var f core.TransactionFilter
	fields := []struct {
		name string
		dst  func(int64)
	}{
		{"limit", func(v int64) { f.Limit = int(v) }},
		{"offset", func(v int64) { f.Offset = int(v) }},
		{"person_id", func(v int64) { f.PersonID = v }},
	}
	for _, fld := range fields {
		raw := strings.TrimSpace(q.Get(fld.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			return core.TransactionFilter{}, fmt.Errorf("%s must be a non-negative integer", fld.name)
		}
		fld.dst(v)
	}
	return f, nil
}
