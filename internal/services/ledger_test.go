package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bartab/internal/amqp"
	"bartab/internal/clock"
	"bartab/internal/core"
	"bartab/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	store     *memory.Store
	ledger    *Ledger
	split     *SplitBilling
	clock     *clock.Manual
	publisher *recordingPublisher
	anna      core.Person
	bob       core.Person
}

const (
	coffeeID  int64 = 1
	beerID    int64 = 2
	retiredID int64 = 3

	startEpoch = "2025-03-01T18:00:00Z"
)

func dec(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	start, _ := time.Parse(time.RFC3339, startEpoch)

	f := &fixture{
		store:     memory.New(),
		clock:     clock.NewManual(start),
		publisher: &recordingPublisher{},
	}
	var seq int64
	f.ledger = NewLedger(f.store, f.store,
		WithClock(f.clock),
		WithPublisher(f.publisher),
		WithIDGenerator(func() string { return fmt.Sprintf("tx-%03d", atomic.AddInt64(&seq, 1)) }),
	)
	f.split = NewSplitBilling(f.ledger, 4)

	mustDo(t, f.store.UpsertItem(ctx, core.Item{ID: coffeeID, Name: "Coffee", Mode: core.PerWeight, UnitPrice: *dec("0.05"), Active: true}))
	mustDo(t, f.store.UpsertItem(ctx, core.Item{ID: beerID, Name: "Beer", Mode: core.PerUnit, UnitPrice: *dec("2.50"), Active: true}))
	mustDo(t, f.store.UpsertItem(ctx, core.Item{ID: retiredID, Name: "Old", Mode: core.PerUnit, UnitPrice: *dec("1"), Active: false}))
	for i, tier := range [][3]string{{"0", "20", "0.00"}, {"20", "40", "0.20"}, {"40", "60", "0.40"}} {
		mustDo(t, f.store.UpsertTier(ctx, core.SurchargeTier{
			ID: int64(i + 1), Min: *dec(tier[0]), Max: *dec(tier[1]), Surcharge: *dec(tier[2]), Active: true,
		}))
	}

	var err error
	if f.anna, err = f.ledger.RegisterPerson(ctx, "Anna", false); err != nil {
		t.Fatalf("register: %v", err)
	}
	if f.bob, err = f.ledger.RegisterPerson(ctx, " Bob ", true); err != nil {
		t.Fatalf("register: %v", err)
	}
	return f
}

func mustDo(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) debtOf(t *testing.T, personID int64) int64 {
	t.Helper()
	s, err := f.ledger.Summary(context.Background())
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	row, ok := s.For(personID)
	if !ok {
		t.Fatalf("person %d missing from summary", personID)
	}
	return row.Total.Cents
}

func TestAppendPricesAndStores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.ledger.Append(ctx, f.anna.ID, coffeeID, dec("45"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if tx.Amount.Cents != 265 || core.FormatQuantity(tx.Quantity) != "45.000" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !tx.CreatedAt.Equal(f.clock.Now()) || tx.ID != "tx-001" {
		t.Fatalf("unexpected id or timestamp %+v", tx)
	}
	stored, err := f.store.Transaction(ctx, tx.ID)
	if err != nil || stored.Amount != tx.Amount {
		t.Fatalf("expected stored copy, got %+v err=%v", stored, err)
	}
	if got := f.publisher.types(); len(got) != 1 || got[0] != amqp.EventTransactionCreated {
		t.Fatalf("expected one created event, got %v", got)
	}
	if f.bob.Name != "Bob" || !f.bob.Guest {
		t.Fatalf("expected trimmed guest registration, got %+v", f.bob)
	}
}

func TestAppendErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		person int64
		item   int64
		qty    *decimal.Decimal
		want   error
	}{
		{"unknown person", 999, beerID, nil, core.ErrUnknownPerson},
		{"unknown item", f.anna.ID, 999, nil, core.ErrUnknownItem},
		{"inactive item", f.anna.ID, retiredID, nil, core.ErrItemInactive},
		{"missing weight", f.anna.ID, coffeeID, nil, core.ErrInvalidQuantity},
		{"negative weight", f.anna.ID, coffeeID, dec("-1"), core.ErrInvalidQuantity},
		{"quantity on per-unit", f.anna.ID, beerID, dec("3"), core.ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.ledger.Append(ctx, tc.person, tc.item, tc.qty); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	page, _ := f.ledger.List(ctx, core.TransactionFilter{})
	if page.Total != 0 {
		t.Fatalf("failed appends must not store anything, got %d", page.Total)
	}
	if len(f.publisher.types()) != 0 {
		t.Fatalf("failed appends must not publish")
	}
}

func TestPublishFailureDoesNotFailAppend(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	if _, err := f.ledger.Append(context.Background(), f.anna.ID, beerID, nil); err != nil {
		t.Fatalf("append should succeed when publishing fails: %v", err)
	}
	if f.debtOf(t, f.anna.ID) != 250 {
		t.Fatalf("expected the transaction to be committed")
	}
}

func TestResetDebtCheckpoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustAppend(t, f, f.anna.ID, beerID, nil)
	mustAppend(t, f, f.bob.ID, beerID, nil)
	f.clock.Advance(time.Minute)

	if err := f.ledger.ResetDebt(ctx, f.anna.ID); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if got := f.debtOf(t, f.anna.ID); got != 0 {
		t.Fatalf("expected 0 after reset, got %d", got)
	}
	if got := f.debtOf(t, f.bob.ID); got != 250 {
		t.Fatalf("reset must not affect others, got %d", got)
	}

	f.clock.Advance(time.Minute)
	mustAppend(t, f, f.anna.ID, coffeeID, dec("45"))
	if got := f.debtOf(t, f.anna.ID); got != 265 {
		t.Fatalf("expected re-accumulation to 265, got %d", got)
	}

	page, _ := f.ledger.List(ctx, core.TransactionFilter{PersonID: f.anna.ID})
	if page.Total != 2 {
		t.Fatalf("reset must keep history, got %d", page.Total)
	}
	if err := f.ledger.ResetDebt(ctx, 999); !errors.Is(err, core.ErrUnknownPerson) {
		t.Fatalf("expected ErrUnknownPerson, got %v", err)
	}
	if got := f.publisher.types(); got[2] != amqp.EventDebtReset {
		t.Fatalf("expected debt.reset event, got %v", got)
	}
}

func TestResetAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mustAppend(t, f, f.anna.ID, beerID, nil)
	mustAppend(t, f, f.bob.ID, coffeeID, dec("45"))
	f.clock.Advance(time.Minute)

	ids, err := f.ledger.ResetAll(ctx)
	if err != nil {
		t.Fatalf("reset all: %v", err)
	}
	if len(ids) != 2 || ids[0] != f.anna.ID || ids[1] != f.bob.ID {
		t.Fatalf("expected both persons reset, got %v", ids)
	}
	s, _ := f.ledger.Summary(ctx)
	if s.Total.Cents != 0 {
		t.Fatalf("expected zero total after reset all, got %d", s.Total.Cents)
	}
	for _, id := range ids {
		p, _ := f.store.Person(ctx, id)
		if p.CheckpointAt == nil || !p.CheckpointAt.Equal(f.clock.Now()) {
			t.Fatalf("expected checkpoint %v for person %d, got %v", f.clock.Now(), id, p.CheckpointAt)
		}
	}

	resets := 0
	for _, typ := range f.publisher.types() {
		if typ == amqp.EventDebtReset {
			resets++
		}
	}
	if resets != 2 {
		t.Fatalf("expected one debt.reset event per person, got %d", resets)
	}

	f.clock.Advance(time.Minute)
	mustAppend(t, f, f.bob.ID, beerID, nil)
	if got := f.debtOf(t, f.bob.ID); got != 250 {
		t.Fatalf("expected re-accumulation to 250, got %d", got)
	}
}

func TestCorrect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx := mustAppend(t, f, f.anna.ID, coffeeID, dec("45"))

	got, err := f.ledger.Correct(ctx, tx.ID, nil, &core.Money{Cents: 200})
	if err != nil || got.Amount.Cents != 200 || !got.Quantity.Equal(tx.Quantity) {
		t.Fatalf("price correction: %+v err=%v", got, err)
	}

	// A quantity correction keeps the frozen amount.
	got, err = f.ledger.Correct(ctx, tx.ID, dec("30"), nil)
	if err != nil || got.Amount.Cents != 200 || core.FormatQuantity(got.Quantity) != "30.000" {
		t.Fatalf("quantity correction: %+v err=%v", got, err)
	}
	if f.debtOf(t, f.anna.ID) != 200 {
		t.Fatalf("summary should reflect the corrected amount")
	}

	if _, err := f.ledger.Correct(ctx, "missing", nil, &core.Money{Cents: 1}); !errors.Is(err, core.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}
	if _, err := f.ledger.Correct(ctx, tx.ID, nil, nil); !errors.Is(err, core.ErrEmptyCorrection) {
		t.Fatalf("expected ErrEmptyCorrection, got %v", err)
	}
	if _, err := f.ledger.Correct(ctx, tx.ID, dec("0"), nil); !errors.Is(err, core.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := f.ledger.Correct(ctx, tx.ID, nil, &core.Money{Cents: -5}); !errors.Is(err, core.ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a1 := mustAppend(t, f, f.anna.ID, beerID, nil)
	mustAppend(t, f, f.anna.ID, coffeeID, dec("45"))
	mustAppend(t, f, f.bob.ID, beerID, nil)

	if err := f.ledger.Remove(ctx, a1.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := f.debtOf(t, f.anna.ID); got != 265 {
		t.Fatalf("expected 265 after removing 250, got %d", got)
	}
	if got := f.debtOf(t, f.bob.ID); got != 250 {
		t.Fatalf("other persons must be untouched, got %d", got)
	}
	page, _ := f.ledger.List(ctx, core.TransactionFilter{})
	for _, tx := range page.Transactions {
		if tx.ID == a1.ID {
			t.Fatalf("removed transaction still listed")
		}
	}
	if err := f.ledger.Remove(ctx, a1.ID); !errors.Is(err, core.ErrUnknownTransaction) {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}
}

func TestUndo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.ledger.Undo(ctx, f.anna.ID); !errors.Is(err, core.ErrNothingToUndo) {
		t.Fatalf("expected ErrNothingToUndo, got %v", err)
	}
	if _, err := f.ledger.Undo(ctx, 999); !errors.Is(err, core.ErrUnknownPerson) {
		t.Fatalf("expected ErrUnknownPerson, got %v", err)
	}

	mustAppend(t, f, f.anna.ID, beerID, nil)
	f.clock.Advance(time.Second)
	last := mustAppend(t, f, f.anna.ID, coffeeID, dec("45"))

	undone, err := f.ledger.Undo(ctx, f.anna.ID)
	if err != nil || undone.ID != last.ID {
		t.Fatalf("expected to undo %s, got %+v err=%v", last.ID, undone, err)
	}
	if got := f.debtOf(t, f.anna.ID); got != 250 {
		t.Fatalf("expected 250 after undo, got %d", got)
	}
}

func TestListPaging(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		mustAppend(t, f, f.anna.ID, beerID, nil)
		f.clock.Advance(time.Second)
	}

	page, err := f.ledger.List(ctx, core.TransactionFilter{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || len(page.Transactions) != 2 || page.Limit != 2 || page.Offset != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if page.Transactions[0].ID != "tx-004" || page.Transactions[1].ID != "tx-003" {
		t.Fatalf("expected newest first, got %s, %s", page.Transactions[0].ID, page.Transactions[1].ID)
	}
}

func TestRegisterPersonValidation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.RegisterPerson(context.Background(), "   ", false); !errors.Is(err, core.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	persons, _ := f.ledger.Persons(context.Background())
	if len(persons) != 2 {
		t.Fatalf("expected 2 persons, got %d", len(persons))
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[error]string{
		core.ErrInvalidQuantity:                        "invalid_quantity",
		fmt.Errorf("wrap: %w", core.ErrUnknownPerson): "unknown_person",
		&core.PartialFailureError{Requested: 2}:        "partial_batch_failure",
		context.DeadlineExceeded:                       "timeout",
		errors.New("disk full"):                        "internal",
	}
	for err, want := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %s, want %s", err, got, want)
		}
	}
}

func mustAppend(t *testing.T, f *fixture, personID, itemID int64, qty *decimal.Decimal) core.Transaction {
	t.Helper()
	tx, err := f.ledger.Append(context.Background(), personID, itemID, qty)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return tx
}
