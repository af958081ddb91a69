package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bartab/internal/amqp"
	"bartab/internal/core"
	"bartab/internal/log"
	"bartab/internal/metrics"
	"bartab/internal/ports"
)

const defaultBatchSize = 200

// Source is the read side of the ledger the worker needs to build rows.
type Source interface {
	Item(ctx context.Context, id int64) (core.Item, error)
	Person(ctx context.Context, id int64) (core.Person, error)
	Transaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, int, error)
}

// ExportWorker applies ledger events to a TransactionExporter. Events carry
// ids only; the current transaction is always read back from the store, so
// redelivered or reordered events converge on the stored state.
type ExportWorker struct {
	source    Source
	exporter  ports.TransactionExporter
	metrics   *metrics.Metrics
	batchSize int
}

func NewExportWorker(source Source, exporter ports.TransactionExporter, m *metrics.Metrics, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &ExportWorker{source: source, exporter: exporter, metrics: m, batchSize: batchSize}
}

// Handle processes one event. A returned error requeues the message.
func (w *ExportWorker) Handle(ctx context.Context, ev *amqp.LedgerEvent) error {
	err := w.handle(ctx, ev)
	w.metrics.Event(string(ev.Type), "consumed", err)
	return err
}

func (w *ExportWorker) handle(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.DebugContext(ctx, "Processing ledger event",
		log.FieldEventType, ev.Type,
		log.FieldTransactionID, ev.TransactionID,
		log.FieldPersonID, ev.PersonID)

	switch ev.Type {
	case amqp.EventTransactionCreated, amqp.EventTransactionCorrected:
		tx, err := w.source.Transaction(ctx, ev.TransactionID)
		if errors.Is(err, core.ErrUnknownTransaction) {
			// Removed before we got here; the delete event follows.
			slog.InfoContext(ctx, "Skipping export of removed transaction", log.FieldTransactionID, ev.TransactionID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}
		return w.export(ctx, tx)

	case amqp.EventTransactionDeleted:
		if err := w.exporter.DeleteTransaction(ctx, ev.TransactionID); err != nil {
			return fmt.Errorf("delete exported transaction: %w", err)
		}
		slog.InfoContext(ctx, "Removed exported transaction", log.FieldTransactionID, ev.TransactionID)
		return nil

	case amqp.EventDebtReset:
		// The exported log is history; checkpoints do not change it.
		slog.InfoContext(ctx, "Debt reset observed", log.FieldPersonID, ev.PersonID)
		return nil

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// Resync exports every stored transaction. It recovers rows missed while
// the worker or the broker was down.
func (w *ExportWorker) Resync(ctx context.Context) error {
	var exported, failed int
	f := core.TransactionFilter{Limit: w.batchSize}
	for {
		txs, total, err := w.source.ListTransactions(ctx, f)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		for _, tx := range txs {
			if err := w.export(ctx, tx); err != nil {
				slog.ErrorContext(ctx, "Failed to export transaction during resync",
					log.FieldTransactionID, tx.ID, log.FieldError, err)
				failed++
				continue
			}
			exported++
		}
		f.Offset += len(txs)
		if len(txs) == 0 || f.Offset >= total {
			break
		}
	}
	slog.InfoContext(ctx, "Resync completed", "exported", exported, "errors", failed)
	return nil
}

func (w *ExportWorker) export(ctx context.Context, tx core.Transaction) error {
	row, err := w.row(ctx, tx)
	if err != nil {
		return err
	}
	if err := w.exporter.UpsertTransaction(ctx, row); err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}
	slog.InfoContext(ctx, "Exported transaction",
		log.FieldTransactionID, tx.ID,
		log.FieldAmountCents, tx.Amount.Cents)
	return nil
}

func (w *ExportWorker) row(ctx context.Context, tx core.Transaction) (ports.ExportRow, error) {
	person, err := w.source.Person(ctx, tx.PersonID)
	if err != nil {
		return ports.ExportRow{}, fmt.Errorf("get person %d: %w", tx.PersonID, err)
	}
	// Items may have left the catalog since; keep the row with a placeholder name.
	itemName := fmt.Sprintf("#%d", tx.ItemID)
	item, err := w.source.Item(ctx, tx.ItemID)
	switch {
	case err == nil:
		itemName = item.Name
	case !errors.Is(err, core.ErrUnknownItem):
		return ports.ExportRow{}, fmt.Errorf("get item %d: %w", tx.ItemID, err)
	}

	return ports.ExportRow{
		TransactionID: tx.ID,
		CreatedAt:     tx.CreatedAt,
		PersonID:      person.ID,
		PersonName:    person.Name,
		ItemID:        tx.ItemID,
		ItemName:      itemName,
		Quantity:      core.FormatQuantity(tx.Quantity),
		Amount:        tx.Amount,
	}, nil
}
