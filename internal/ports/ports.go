// Package ports declares the interfaces between the ledger services and
// their storage, catalog and export adapters.
package ports

import (
	"context"
	"time"

	"bartab/internal/amqp"
	"bartab/internal/core"
)

type (
	// CatalogReader is the read-only view of the item catalog.
	CatalogReader interface {
		// Item returns core.ErrUnknownItem when id does not resolve.
		Item(ctx context.Context, id int64) (core.Item, error)
		// ActiveTiers returns the surcharge tiers currently in force.
		ActiveTiers(ctx context.Context) ([]core.SurchargeTier, error)
	}

	// CatalogWriter loads catalog snapshots, e.g. from a seed file.
	CatalogWriter interface {
		UpsertItem(ctx context.Context, it core.Item) error
		UpsertTier(ctx context.Context, t core.SurchargeTier) error
	}

	PersonStore interface {
		CreatePerson(ctx context.Context, p core.Person) (core.Person, error)
		// Person returns core.ErrUnknownPerson when id does not resolve.
		Person(ctx context.Context, id int64) (core.Person, error)
		ListPersons(ctx context.Context) ([]core.Person, error)
		// ResetCheckpoint sets the debt checkpoint in a single atomic update.
		ResetCheckpoint(ctx context.Context, id int64, at time.Time) error
		// ResetAllCheckpoints moves every checkpoint to at in one update and
		// returns the affected person ids in ascending order.
		ResetAllCheckpoints(ctx context.Context, at time.Time) ([]int64, error)
	}

	TransactionStore interface {
		// InsertTransaction returns core.ErrUnknownPerson when the person is gone.
		InsertTransaction(ctx context.Context, tx core.Transaction) error
		Transaction(ctx context.Context, id string) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
		ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, int, error)
		// LatestTransaction returns the newest transaction of a person created
		// after their checkpoint, or core.ErrNothingToUndo.
		LatestTransaction(ctx context.Context, personID int64) (core.Transaction, error)
		// DebtSummary aggregates amounts after each person's checkpoint.
		DebtSummary(ctx context.Context) (core.DebtSummary, error)
	}

	// EventPublisher delivers ledger events after a change is committed.
	EventPublisher interface {
		Publish(ctx context.Context, ev *amqp.LedgerEvent) error
	}

	// TransactionExporter mirrors the transaction log into an external sink.
	// Both calls are idempotent per transaction id.
	TransactionExporter interface {
		UpsertTransaction(ctx context.Context, row ExportRow) error
		DeleteTransaction(ctx context.Context, transactionID string) error
	}

	// Store is a complete ledger backend.
	Store interface {
		CatalogReader
		CatalogWriter
		PersonStore
		TransactionStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// ExportRow is the flattened, human readable form of a transaction.
type ExportRow struct {
	TransactionID string
	CreatedAt     time.Time
	PersonID      int64
	PersonName    string
	ItemID        int64
	ItemName      string
	Quantity      string
	Amount        core.Money
}
