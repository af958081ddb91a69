package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
	}{
		{"2.65", 265},
		{"2.645", 265}, // half-up
		{"2.6449", 264},
		{"4.5", 450},
		{"0.005", 1},
		{"0.0049", 0},
		{"0", 0},
	}
	for _, tc := range cases {
		got, err := RoundMoney(decimal.RequireFromString(tc.in))
		if err != nil || got.Cents != tc.out {
			t.Fatalf("%s expected %d cents, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
		}
	}
}

func TestRoundMoneyRange(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"92233720368547758.07", true}, // max int64 cents
		{"-92233720368547758.08", true},
		{"92233720368547758.08", false},
		{"100000000000000000000", false},
		{"-1e30", false},
	}
	for _, tc := range cases {
		_, err := RoundMoney(decimal.RequireFromString(tc.in))
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrAmountOverflow) {
			t.Fatalf("%s: expected ErrAmountOverflow, got %v", tc.in, err)
		}
	}
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
		{"100000000000000000000", 0, false},
		{"1e20", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("%q expected ErrInvalidPrice, got %d (err=%v)", tc.in, got.Cents, err)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"45", "45.000", true},
		{"45,5", "45.500", true},
		{"0.0015", "0.002", true},
		{"0.0004", "", false}, // rounds to zero
		{"0", "", false},
		{"-3", "", false},
		{"x", "", false},
	}
	for _, tc := range cases {
		got, err := ParseQuantity(tc.in)
		if !tc.ok {
			if err != ErrInvalidQuantity {
				t.Fatalf("%q expected ErrInvalidQuantity, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || FormatQuantity(got) != tc.out {
			t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, FormatQuantity(got), err)
		}
	}
}

func TestMoneyText(t *testing.T) {
	m := MoneyFromCents(265)
	b, err := m.MarshalText()
	if err != nil || string(b) != "2.65" {
		t.Fatalf("unexpected text %q err=%v", b, err)
	}
	var back Money
	if err := back.UnmarshalText([]byte("2,65")); err != nil || back != m {
		t.Fatalf("unexpected round trip %v err=%v", back, err)
	}
	if MoneyFromCents(5).String() != "0.05" {
		t.Fatalf("unexpected string %s", MoneyFromCents(5).String())
	}
}
