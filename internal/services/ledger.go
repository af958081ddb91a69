package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bartab/internal/amqp"
	"bartab/internal/clock"
	"bartab/internal/core"
	"bartab/internal/log"
	"bartab/internal/metrics"
	"bartab/internal/ports"
	"bartab/internal/pricing"
)

type Publisher = ports.EventPublisher

// LedgerStore is the persistence the ledger needs besides the catalog.
type LedgerStore interface {
	ports.PersonStore
	ports.TransactionStore
}

// Ledger owns the lifecycle of priced transactions and per-person debt
// checkpoints.
type Ledger struct {
	catalog   ports.CatalogReader
	store     LedgerStore
	publisher Publisher
	clock     clock.Clock
	newID     func() string
	metrics   *metrics.Metrics
}

type LedgerOption func(*Ledger)

func WithPublisher(p Publisher) LedgerOption {
	return func(l *Ledger) { l.publisher = p }
}

func WithClock(c clock.Clock) LedgerOption {
	return func(l *Ledger) { l.clock = c }
}

func WithIDGenerator(fn func() string) LedgerOption {
	return func(l *Ledger) { l.newID = fn }
}

func WithMetrics(m *metrics.Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = m }
}

func NewLedger(catalog ports.CatalogReader, store LedgerStore, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		catalog: catalog,
		store:   store,
		clock:   clock.NewSystem(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Page is one page of the transaction log.
type Page struct {
	Transactions []core.Transaction
	Total        int
	Limit        int
	Offset       int
}

// Append prices one consumption for a person and stores it.
func (l *Ledger) Append(ctx context.Context, personID, itemID int64, qty *decimal.Decimal) (core.Transaction, error) {
	item, err := l.catalog.Item(ctx, itemID)
	if err != nil {
		l.fail(log.OpAppend, err)
		return core.Transaction{}, err
	}
	var tiers []core.SurchargeTier
	if item.Mode == core.PerWeight {
		if tiers, err = l.catalog.ActiveTiers(ctx); err != nil {
			l.fail(log.OpAppend, err)
			return core.Transaction{}, fmt.Errorf("load surcharge tiers: %w", err)
		}
	}
	tx, err := l.record(ctx, personID, item, tiers, qty)
	if err != nil {
		l.fail(log.OpAppend, err)
	}
	return tx, err
}

// record prices and inserts a single entry. The amount is final before the
// row is written, so a failure never leaves a partially priced transaction.
func (l *Ledger) record(ctx context.Context, personID int64, item core.Item, tiers []core.SurchargeTier, qty *decimal.Decimal) (core.Transaction, error) {
	if _, err := l.store.Person(ctx, personID); err != nil {
		return core.Transaction{}, err
	}
	quote, err := pricing.Price(item, qty, tiers)
	if err != nil {
		return core.Transaction{}, err
	}

	tx := core.Transaction{
		ID:        l.newID(),
		PersonID:  personID,
		ItemID:    item.ID,
		Quantity:  quote.Quantity,
		Amount:    quote.Amount,
		CreatedAt: l.clock.Now(),
	}
	if err := l.store.InsertTransaction(ctx, tx); err != nil {
		return core.Transaction{}, err
	}

	fields := log.NewFields().WithTransaction(tx.ID, tx.PersonID, tx.ItemID, tx.Amount.Cents, core.FormatQuantity(tx.Quantity))
	if quote.Tier != nil {
		fields[log.FieldTierID] = quote.Tier.ID
	}
	slog.InfoContext(ctx, "Transaction recorded", fields.ToSlice()...)
	l.metrics.TransactionRecorded(string(item.Mode), tx.Amount.Cents)

	l.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCreated, tx.ID, tx.PersonID, tx.Amount.Cents))
	return tx, nil
}

// Summary aggregates every person's debt since their checkpoint.
func (l *Ledger) Summary(ctx context.Context) (core.DebtSummary, error) {
	s, err := l.store.DebtSummary(ctx)
	if err != nil {
		l.fail(log.OpSummary, err)
		return core.DebtSummary{}, err
	}
	return s, nil
}

// ResetDebt moves the person's checkpoint to now. Transactions are kept.
func (l *Ledger) ResetDebt(ctx context.Context, personID int64) error {
	now := l.clock.Now()
	if err := l.store.ResetCheckpoint(ctx, personID, now); err != nil {
		l.fail(log.OpReset, err)
		return err
	}
	slog.InfoContext(ctx, "Debt reset", log.FieldPersonID, personID)
	l.publish(ctx, amqp.NewDebtResetEvent(personID, now))
	return nil
}

// ResetAll moves every person's checkpoint to the same instant, closing the
// session for the whole group. It returns the ids that were reset.
func (l *Ledger) ResetAll(ctx context.Context) ([]int64, error) {
	now := l.clock.Now()
	ids, err := l.store.ResetAllCheckpoints(ctx, now)
	if err != nil {
		l.fail(log.OpResetAll, err)
		return nil, err
	}
	slog.InfoContext(ctx, "All debts reset", "persons", len(ids))
	for _, id := range ids {
		l.publish(ctx, amqp.NewDebtResetEvent(id, now))
	}
	return ids, nil
}

// Correct overrides the stored quantity and/or amount of a transaction. The
// pricing engine is not consulted; a quantity change alone keeps the amount.
func (l *Ledger) Correct(ctx context.Context, id string, qty *decimal.Decimal, price *core.Money) (core.Transaction, error) {
	if qty == nil && price == nil {
		return core.Transaction{}, core.ErrEmptyCorrection
	}
	if qty != nil && !core.NormalizeQuantity(*qty).IsPositive() {
		return core.Transaction{}, core.ErrInvalidQuantity
	}
	if price != nil && price.Cents < 0 {
		return core.Transaction{}, core.ErrInvalidPrice
	}

	tx, err := l.store.Transaction(ctx, id)
	if err != nil {
		l.fail(log.OpCorrect, err)
		return core.Transaction{}, err
	}
	if qty != nil {
		tx.Quantity = core.NormalizeQuantity(*qty)
	}
	if price != nil {
		tx.Amount = *price
	}
	if err := l.store.UpdateTransaction(ctx, tx); err != nil {
		l.fail(log.OpCorrect, err)
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction corrected",
		log.NewFields().WithTransaction(tx.ID, tx.PersonID, tx.ItemID, tx.Amount.Cents, core.FormatQuantity(tx.Quantity)).ToSlice()...)
	l.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionCorrected, tx.ID, tx.PersonID, tx.Amount.Cents))
	return tx, nil
}

// Remove hard-deletes a mis-entered transaction.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	tx, err := l.store.Transaction(ctx, id)
	if err != nil {
		l.fail(log.OpRemove, err)
		return err
	}
	if err := l.store.DeleteTransaction(ctx, id); err != nil {
		l.fail(log.OpRemove, err)
		return err
	}
	slog.InfoContext(ctx, "Transaction removed",
		log.FieldTransactionID, id, log.FieldPersonID, tx.PersonID, log.FieldAmountCents, tx.Amount.Cents)
	l.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionDeleted, tx.ID, tx.PersonID, tx.Amount.Cents))
	return nil
}

// Undo removes the newest transaction of a person since their checkpoint.
func (l *Ledger) Undo(ctx context.Context, personID int64) (core.Transaction, error) {
	if _, err := l.store.Person(ctx, personID); err != nil {
		l.fail(log.OpUndo, err)
		return core.Transaction{}, err
	}
	tx, err := l.store.LatestTransaction(ctx, personID)
	if err != nil {
		l.fail(log.OpUndo, err)
		return core.Transaction{}, err
	}
	if err := l.Remove(ctx, tx.ID); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

// List returns a page of transactions, newest first.
func (l *Ledger) List(ctx context.Context, f core.TransactionFilter) (Page, error) {
	f = f.Normalize()
	txs, total, err := l.store.ListTransactions(ctx, f)
	if err != nil {
		l.fail(log.OpList, err)
		return Page{}, err
	}
	return Page{Transactions: txs, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// RegisterPerson adds someone to the roster.
func (l *Ledger) RegisterPerson(ctx context.Context, name string, guest bool) (core.Person, error) {
	p := core.Person{
		Name:      strings.TrimSpace(name),
		Guest:     guest,
		Active:    true,
		CreatedAt: l.clock.Now(),
	}
	if err := p.Validate(); err != nil {
		return core.Person{}, err
	}
	created, err := l.store.CreatePerson(ctx, p)
	if err != nil {
		l.fail(log.OpRegister, err)
		return core.Person{}, err
	}
	return created, nil
}

func (l *Ledger) Persons(ctx context.Context) ([]core.Person, error) {
	return l.store.ListPersons(ctx)
}

func (l *Ledger) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	if l.publisher == nil {
		return
	}
	err := l.publisher.Publish(ctx, ev)
	l.metrics.Event(string(ev.Type), "published", err)
	if err != nil {
		// The change is committed; the event is best effort.
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, ev.Type,
			log.FieldTransactionID, ev.TransactionID,
			log.FieldError, err)
	}
}

func (l *Ledger) fail(op string, err error) {
	l.metrics.LedgerError(op, ErrorKind(err))
}

// ErrorKind maps an error to a stable label for metrics and API codes.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, core.ErrItemInactive):
		return "item_inactive"
	case errors.Is(err, core.ErrUnknownPerson):
		return "unknown_person"
	case errors.Is(err, core.ErrUnknownItem):
		return "unknown_item"
	case errors.Is(err, core.ErrUnknownTransaction):
		return "unknown_transaction"
	case errors.Is(err, core.ErrPartialBatchFailure):
		return "partial_batch_failure"
	case errors.Is(err, core.ErrNothingToUndo):
		return "nothing_to_undo"
	case errors.Is(err, core.ErrEmptyGroup):
		return "empty_group"
	case errors.Is(err, core.ErrEmptyCorrection):
		return "empty_correction"
	case errors.Is(err, core.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, core.ErrInvalidName):
		return "invalid_name"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
