// Package core holds the ledger data model, money handling and the error
// taxonomy shared by every other package.
//
// Amounts are kept as integer cents. Quantities and per-gram prices are
// decimals with three fractional digits.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// RoundMoney rounds d half-up to cents. Amounts that do not fit in int64
// cents fail with ErrAmountOverflow.
//
// Examples:
//
//	RoundMoney(2.65)   -> 265
//	RoundMoney(2.645)  -> 265
//	RoundMoney(2.6449) -> 264
func RoundMoney(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if !cents.BigInt().IsInt64() {
		return Money{}, ErrAmountOverflow
	}
	return Money{Cents: cents.IntPart()}, nil
}

func MoneyFromCents(c int64) Money {
	return Money{Cents: c}
}

func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String renders the amount with exactly two fractional digits, e.g. "2.65".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalText lets Money travel as a decimal string in JSON and YAML.
func (m Money) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalText(b []byte) error {
	parsed, err := ParseMoney(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMoney converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Zero is
// allowed, negative amounts are not.
func ParseMoney(s string) (Money, error) {
	d, err := parseDecimal(s)
	if err != nil || d.IsNegative() {
		return Money{}, ErrInvalidPrice
	}
	m, err := RoundMoney(d)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %w", ErrInvalidPrice, err)
	}
	return m, nil
}

// ParseQuantity parses a weight or count and rounds it to three decimals.
// Non-positive values are rejected.
func ParseQuantity(s string) (decimal.Decimal, error) {
	d, err := parseDecimal(s)
	if err != nil {
		return decimal.Zero, ErrInvalidQuantity
	}
	d = NormalizeQuantity(d)
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidQuantity
	}
	return d, nil
}

// NormalizeQuantity rounds q to the precision quantities are stored with.
func NormalizeQuantity(q decimal.Decimal) decimal.Decimal {
	return q.Round(QuantityPlaces)
}

// FormatQuantity renders q with three fractional digits, e.g. "45.000".
func FormatQuantity(q decimal.Decimal) string {
	return q.StringFixed(QuantityPlaces)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" || strings.HasPrefix(s, "+") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
