package services

import (
	"context"
	"errors"
	"testing"

	"bartab/internal/core"
)

func TestSplitPerWeightPricesEachShare(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.split.Record(ctx, SplitRequest{
		ItemID:        coffeeID,
		PersonIDs:     []int64{f.anna.ID, f.bob.ID},
		TotalQuantity: dec("90"),
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if res.Requested != 2 || res.Succeeded != 2 || len(res.Transactions) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	for i, want := range []int64{f.anna.ID, f.bob.ID} {
		tx := res.Transactions[i]
		if tx.PersonID != want {
			t.Fatalf("expected request order, got person %d at %d", tx.PersonID, i)
		}
		if tx.Amount.Cents != 265 || core.FormatQuantity(tx.Quantity) != "45.000" {
			t.Fatalf("expected 45g at 2.65 each, got %+v", tx)
		}
	}

	s, _ := f.ledger.Summary(ctx)
	if s.Total.Cents != 530 {
		t.Fatalf("expected group total 530, got %d", s.Total.Cents)
	}
}

func TestSplitSinglePersonMatchesAppend(t *testing.T) {
	f := newFixture(t)
	res, err := f.split.Record(context.Background(), SplitRequest{
		ItemID:        coffeeID,
		PersonIDs:     []int64{f.anna.ID},
		TotalQuantity: dec("90"),
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	// 90g falls outside every tier.
	if res.Transactions[0].Amount.Cents != 450 {
		t.Fatalf("expected 450, got %d", res.Transactions[0].Amount.Cents)
	}
}

func TestSplitUnevenWeight(t *testing.T) {
	f := newFixture(t)
	carl, _ := f.ledger.RegisterPerson(context.Background(), "Carl", false)

	res, err := f.split.Record(context.Background(), SplitRequest{
		ItemID:        coffeeID,
		PersonIDs:     []int64{f.anna.ID, f.bob.ID, carl.ID},
		TotalQuantity: dec("100"),
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	for _, tx := range res.Transactions {
		// 33.333g * 0.05 + 0.20 = 1.86665
		if core.FormatQuantity(tx.Quantity) != "33.333" || tx.Amount.Cents != 187 {
			t.Fatalf("unexpected share %+v", tx)
		}
	}
}

func TestSplitPerUnitChargesEveryone(t *testing.T) {
	f := newFixture(t)
	res, err := f.split.Record(context.Background(), SplitRequest{
		ItemID:    beerID,
		PersonIDs: []int64{f.anna.ID, f.bob.ID, f.anna.ID},
	})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if res.Requested != 2 || len(res.Transactions) != 2 {
		t.Fatalf("duplicates must collapse, got %+v", res)
	}
	s, _ := f.ledger.Summary(context.Background())
	if s.Total.Cents != 500 {
		t.Fatalf("expected 2 x 250, got %d", s.Total.Cents)
	}
}

func TestSplitPartialFailure(t *testing.T) {
	f := newFixture(t)
	res, err := f.split.Record(context.Background(), SplitRequest{
		ItemID:    beerID,
		PersonIDs: []int64{f.anna.ID, 999, f.bob.ID},
	})

	var pf *core.PartialFailureError
	if !errors.As(err, &pf) {
		t.Fatalf("expected *PartialFailureError, got %v", err)
	}
	if !errors.Is(err, core.ErrPartialBatchFailure) {
		t.Fatalf("expected to match ErrPartialBatchFailure")
	}
	if pf.Requested != 3 || pf.Succeeded != 2 || len(pf.Failures) != 1 {
		t.Fatalf("unexpected failure report %+v", pf)
	}
	if pf.Failures[0].PersonID != 999 || !errors.Is(pf.Failures[0].Err, core.ErrUnknownPerson) {
		t.Fatalf("unexpected failure entry %+v", pf.Failures[0])
	}
	if res.Succeeded != 2 {
		t.Fatalf("successful entries must be reported, got %+v", res)
	}

	page, _ := f.ledger.List(context.Background(), core.TransactionFilter{})
	if page.Total != 2 {
		t.Fatalf("successful entries stay committed, got %d", page.Total)
	}
}

func TestSplitSinglePersonReturnsRawError(t *testing.T) {
	f := newFixture(t)
	_, err := f.split.Record(context.Background(), SplitRequest{ItemID: beerID, PersonIDs: []int64{999}})
	if !errors.Is(err, core.ErrUnknownPerson) {
		t.Fatalf("expected ErrUnknownPerson, got %v", err)
	}
	var pf *core.PartialFailureError
	if errors.As(err, &pf) {
		t.Fatalf("single-person requests must not wrap the error")
	}
}

func TestSplitRejectsBeforeAppending(t *testing.T) {
	f := newFixture(t)
	both := []int64{f.anna.ID, f.bob.ID}

	cases := []struct {
		name string
		req  SplitRequest
		want error
	}{
		{"empty group", SplitRequest{ItemID: beerID}, core.ErrEmptyGroup},
		{"unknown item", SplitRequest{ItemID: 999, PersonIDs: both}, core.ErrUnknownItem},
		{"inactive item", SplitRequest{ItemID: retiredID, PersonIDs: both}, core.ErrItemInactive},
		{"per-unit with quantity", SplitRequest{ItemID: beerID, PersonIDs: both, TotalQuantity: dec("2")}, core.ErrInvalidQuantity},
		{"missing weight", SplitRequest{ItemID: coffeeID, PersonIDs: both}, core.ErrInvalidQuantity},
		{"share rounds to zero", SplitRequest{ItemID: coffeeID, PersonIDs: both, TotalQuantity: dec("0.0008")}, core.ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.split.Record(context.Background(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	page, _ := f.ledger.List(context.Background(), core.TransactionFilter{})
	if page.Total != 0 {
		t.Fatalf("rejected requests must not append, got %d", page.Total)
	}
}
