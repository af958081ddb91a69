// Package portstest holds a behavioural test suite every ports.Store
// implementation must pass.
package portstest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bartab/internal/core"
	"bartab/internal/ports"
)

var base = time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

// Run exercises newStore against the store contract. newStore must return an
// empty store; it is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) ports.Store) {
	t.Run("catalog", func(t *testing.T) { testCatalog(t, newStore(t)) })
	t.Run("persons", func(t *testing.T) { testPersons(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("summary", func(t *testing.T) { testSummary(t, newStore(t)) })
	t.Run("latest", func(t *testing.T) { testLatest(t, newStore(t)) })
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testCatalog(t *testing.T, s ports.Store) {
	ctx := context.Background()
	coffee := core.Item{ID: 1, Name: "Coffee", Mode: core.PerWeight, UnitPrice: dec("0.05"), Active: true}
	if err := s.UpsertItem(ctx, coffee); err != nil {
		t.Fatalf("UpsertItem: %v", err)
	}
	coffee.UnitPrice = dec("0.055")
	if err := s.UpsertItem(ctx, coffee); err != nil {
		t.Fatalf("UpsertItem update: %v", err)
	}
	got, err := s.Item(ctx, 1)
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if got.Name != "Coffee" || got.Mode != core.PerWeight || !got.UnitPrice.Equal(dec("0.055")) || !got.Active {
		t.Fatalf("unexpected item %+v", got)
	}
	if _, err := s.Item(ctx, 99); !errors.Is(err, core.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if err := s.UpsertItem(ctx, core.Item{ID: 2, Name: "Bad", Mode: "x"}); err == nil {
		t.Fatalf("expected invalid item to be rejected")
	}

	tiers := []core.SurchargeTier{
		{ID: 3, Label: "large", Min: dec("40"), Max: dec("60"), Surcharge: dec("0.40"), Active: true, SortOrder: 2},
		{ID: 1, Label: "small", Min: dec("0"), Max: dec("20"), Surcharge: dec("0"), Active: true, SortOrder: 0},
		{ID: 2, Label: "medium", Min: dec("20"), Max: dec("40"), Surcharge: dec("0.20"), Active: false, SortOrder: 1},
	}
	for _, tier := range tiers {
		if err := s.UpsertTier(ctx, tier); err != nil {
			t.Fatalf("UpsertTier: %v", err)
		}
	}
	active, err := s.ActiveTiers(ctx)
	if err != nil {
		t.Fatalf("ActiveTiers: %v", err)
	}
	if len(active) != 2 || active[0].ID != 1 || active[1].ID != 3 {
		t.Fatalf("unexpected active tiers %+v", active)
	}
	if !active[1].Surcharge.Equal(dec("0.4")) || !active[1].Max.Equal(dec("60")) {
		t.Fatalf("tier values not preserved: %+v", active[1])
	}
}

func testPersons(t *testing.T, s ports.Store) {
	ctx := context.Background()
	bob, err := s.CreatePerson(ctx, core.Person{Name: "Bob", Active: true, CreatedAt: base})
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	anna, err := s.CreatePerson(ctx, core.Person{Name: "Anna", Guest: true, Active: true, CreatedAt: base})
	if err != nil {
		t.Fatalf("CreatePerson: %v", err)
	}
	if bob.ID == 0 || anna.ID == 0 || bob.ID == anna.ID {
		t.Fatalf("expected distinct ids, got %d and %d", bob.ID, anna.ID)
	}
	if _, err := s.CreatePerson(ctx, core.Person{Name: " "}); !errors.Is(err, core.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	got, err := s.Person(ctx, anna.ID)
	if err != nil {
		t.Fatalf("Person: %v", err)
	}
	if got.Name != "Anna" || !got.Guest || got.CheckpointAt != nil || !got.CreatedAt.Equal(base) {
		t.Fatalf("unexpected person %+v", got)
	}
	if _, err := s.Person(ctx, 9999); !errors.Is(err, core.ErrUnknownPerson) {
		t.Fatalf("expected ErrUnknownPerson, got %v", err)
	}

	list, err := s.ListPersons(ctx)
	if err != nil {
		t.Fatalf("ListPersons: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Anna" || list[1].Name != "Bob" {
		t.Fatalf("expected persons sorted by name, got %+v", list)
	}

	reset := base.Add(time.Hour)
	if err := s.ResetCheckpoint(ctx, bob.ID, reset); err != nil {
		t.Fatalf("ResetCheckpoint: %v", err)
	}
	got, _ = s.Person(ctx, bob.ID)
	if got.CheckpointAt == nil || !got.CheckpointAt.Equal(reset) {
		t.Fatalf("expected checkpoint %v, got %v", reset, got.CheckpointAt)
	}
	if err := s.ResetCheckpoint(ctx, 9999, reset); !errors.Is(err, core.ErrUnknownPerson) {
		t.Fatalf("expected ErrUnknownPerson, got %v", err)
	}

	all := base.Add(2 * time.Hour)
	ids, err := s.ResetAllCheckpoints(ctx, all)
	if err != nil {
		t.Fatalf("ResetAllCheckpoints: %v", err)
	}
	lo, hi := bob.ID, anna.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	if len(ids) != 2 || ids[0] != lo || ids[1] != hi {
		t.Fatalf("expected ids [%d %d], got %v", lo, hi, ids)
	}
	for _, id := range ids {
		got, _ = s.Person(ctx, id)
		if got.CheckpointAt == nil || !got.CheckpointAt.Equal(all) {
			t.Fatalf("person %d: expected checkpoint %v, got %v", id, all, got.CheckpointAt)
		}
	}
}

func newTx(id string, personID int64, cents int64, at time.Time) core.Transaction {
	return core.Transaction{
		ID:        id,
		PersonID:  personID,
		ItemID:    1,
		Quantity:  core.One,
		Amount:    core.MoneyFromCents(cents),
		CreatedAt: at,
	}
}

func testTransactions(t *testing.T, s ports.Store) {
	ctx := context.Background()
	anna, _ := s.CreatePerson(ctx, core.Person{Name: "Anna", Active: true, CreatedAt: base})
	bob, _ := s.CreatePerson(ctx, core.Person{Name: "Bob", Active: true, CreatedAt: base})

	if err := s.InsertTransaction(ctx, newTx("t0", 9999, 100, base)); !errors.Is(err, core.ErrUnknownPerson) {
		t.Fatalf("expected ErrUnknownPerson for dangling person, got %v", err)
	}

	for i, tx := range []core.Transaction{
		newTx("t1", anna.ID, 250, base.Add(1*time.Minute)),
		newTx("t2", bob.ID, 265, base.Add(2*time.Minute)),
		newTx("t3", anna.ID, 150, base.Add(3*time.Minute)),
	} {
		if err := s.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("InsertTransaction %d: %v", i, err)
		}
	}

	weighed := newTx("t4", bob.ID, 265, base.Add(4*time.Minute))
	weighed.Quantity = dec("45.5")
	if err := s.InsertTransaction(ctx, weighed); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	got, err := s.Transaction(ctx, "t4")
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if !got.Quantity.Equal(dec("45.5")) || got.Amount.Cents != 265 || !got.CreatedAt.Equal(weighed.CreatedAt) {
		t.Fatalf("unexpected transaction %+v", got)
	}
	if _, err := s.Transaction(ctx, "nope"); !errors.Is(err, core.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}

	page, total, err := s.ListTransactions(ctx, core.TransactionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if total != 4 || len(page) != 2 || page[0].ID != "t4" || page[1].ID != "t3" {
		t.Fatalf("unexpected first page total=%d %+v", total, page)
	}
	page, _, _ = s.ListTransactions(ctx, core.TransactionFilter{Limit: 2, Offset: 2})
	if len(page) != 2 || page[0].ID != "t2" || page[1].ID != "t1" {
		t.Fatalf("unexpected second page %+v", page)
	}
	page, total, _ = s.ListTransactions(ctx, core.TransactionFilter{PersonID: anna.ID, Limit: 10})
	if total != 2 || len(page) != 2 || page[0].ID != "t3" {
		t.Fatalf("unexpected filtered page total=%d %+v", total, page)
	}

	got.Amount = core.MoneyFromCents(100)
	got.Quantity = dec("20")
	if err := s.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	got, _ = s.Transaction(ctx, "t4")
	if got.Amount.Cents != 100 || !got.Quantity.Equal(dec("20")) || !got.CreatedAt.Equal(weighed.CreatedAt) {
		t.Fatalf("update not applied or timestamp changed: %+v", got)
	}
	if err := s.UpdateTransaction(ctx, newTx("nope", anna.ID, 1, base)); !errors.Is(err, core.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}

	if err := s.DeleteTransaction(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "t1"); !errors.Is(err, core.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction on second delete, got %v", err)
	}
	if _, total, _ := s.ListTransactions(ctx, core.TransactionFilter{}); total != 3 {
		t.Fatalf("expected 3 transactions after delete, got %d", total)
	}
}

func testSummary(t *testing.T, s ports.Store) {
	ctx := context.Background()
	anna, _ := s.CreatePerson(ctx, core.Person{Name: "Anna", Active: true, CreatedAt: base})
	bob, _ := s.CreatePerson(ctx, core.Person{Name: "Bob", Active: true, CreatedAt: base})
	carl, _ := s.CreatePerson(ctx, core.Person{Name: "Carl", Active: true, CreatedAt: base})

	_ = s.InsertTransaction(ctx, newTx("a1", anna.ID, 265, base.Add(1*time.Minute)))
	_ = s.InsertTransaction(ctx, newTx("a2", anna.ID, 265, base.Add(2*time.Minute)))
	_ = s.InsertTransaction(ctx, newTx("b1", bob.ID, 250, base.Add(3*time.Minute)))

	sum, err := s.DebtSummary(ctx)
	if err != nil {
		t.Fatalf("DebtSummary: %v", err)
	}
	if sum.Total.Cents != 780 || len(sum.PerPerson) != 3 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if row, _ := sum.For(anna.ID); row.Total.Cents != 530 || row.Count != 2 {
		t.Fatalf("unexpected anna row %+v", row)
	}
	if row, ok := sum.For(carl.ID); !ok || row.Total.Cents != 0 || row.Count != 0 {
		t.Fatalf("expected zero row for carl, got %+v ok=%v", row, ok)
	}

	// Checkpoint at the instant of a2: a2 is not strictly after, so it drops out.
	_ = s.ResetCheckpoint(ctx, anna.ID, base.Add(2*time.Minute))
	_ = s.InsertTransaction(ctx, newTx("a3", anna.ID, 100, base.Add(5*time.Minute)))

	sum, _ = s.DebtSummary(ctx)
	if row, _ := sum.For(anna.ID); row.Total.Cents != 100 || row.Count != 1 {
		t.Fatalf("expected only post-checkpoint amount, got %+v", row)
	}
	if row, _ := sum.For(bob.ID); row.Total.Cents != 250 {
		t.Fatalf("reset must not touch other persons, got %+v", row)
	}
	if sum.Total.Cents != 350 {
		t.Fatalf("expected grand total 350, got %d", sum.Total.Cents)
	}
	if _, total, _ := s.ListTransactions(ctx, core.TransactionFilter{PersonID: anna.ID}); total != 3 {
		t.Fatalf("reset must keep history, got %d rows", total)
	}
}

func testLatest(t *testing.T, s ports.Store) {
	ctx := context.Background()
	anna, _ := s.CreatePerson(ctx, core.Person{Name: "Anna", Active: true, CreatedAt: base})

	if _, err := s.LatestTransaction(ctx, anna.ID); !errors.Is(err, core.ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
	_ = s.InsertTransaction(ctx, newTx("x1", anna.ID, 100, base.Add(time.Minute)))
	_ = s.InsertTransaction(ctx, newTx("x2", anna.ID, 200, base.Add(2*time.Minute)))

	got, err := s.LatestTransaction(ctx, anna.ID)
	if err != nil || got.ID != "x2" {
		t.Fatalf("expected x2, got %+v err=%v", got, err)
	}

	_ = s.ResetCheckpoint(ctx, anna.ID, base.Add(3*time.Minute))
	if _, err := s.LatestTransaction(ctx, anna.ID); !errors.Is(err, core.ErrNothingToUndo) {
		t.Fatalf("entries before the checkpoint must not be undoable, got %v", err)
	}
}
