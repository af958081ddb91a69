package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"bartab/internal/core"
)

// Repository is the relational ledger store. It serves SQLite and PostgreSQL
// from the same queries; only placeholders and constraint errors differ.
type Repository struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLiteRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(context.Background(), DialectSQLite, sqliteDSN(dbPath))
}

func NewPostgresRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	return open(ctx, DialectPostgres, databaseURL)
}

func open(ctx context.Context, dialect Dialect, dsn string) (*Repository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db, dialect: dialect}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.dialect.rebind(query), args...)
}

func (r *Repository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.dialect.rebind(query), args...)
}

// Catalog

func (r *Repository) UpsertItem(ctx context.Context, it core.Item) error {
	if err := it.Validate(); err != nil {
		return err
	}
	_, err := r.exec(ctx, `
		INSERT INTO items (id, name, pricing_mode, unit_price, active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			pricing_mode = excluded.pricing_mode,
			unit_price = excluded.unit_price,
			active = excluded.active`,
		it.ID, it.Name, string(it.Mode), it.UnitPrice.String(), it.Active)
	if err != nil {
		return fmt.Errorf("upsert item %d: %w", it.ID, err)
	}
	return nil
}

func (r *Repository) UpsertTier(ctx context.Context, t core.SurchargeTier) error {
	if err := t.Validate(); err != nil {
		return err
	}
	_, err := r.exec(ctx, `
		INSERT INTO surcharge_tiers (id, label, min_weight, max_weight, surcharge, active, sort_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			label = excluded.label,
			min_weight = excluded.min_weight,
			max_weight = excluded.max_weight,
			surcharge = excluded.surcharge,
			active = excluded.active,
			sort_order = excluded.sort_order`,
		t.ID, t.Label, t.Min.String(), t.Max.String(), t.Surcharge.String(), t.Active, t.SortOrder)
	if err != nil {
		return fmt.Errorf("upsert tier %d: %w", t.ID, err)
	}
	return nil
}

func (r *Repository) Item(ctx context.Context, id int64) (core.Item, error) {
	var (
		it   core.Item
		mode string
	)
	err := r.queryRow(ctx, `SELECT id, name, pricing_mode, unit_price, active FROM items WHERE id = ?`, id).
		Scan(&it.ID, &it.Name, &mode, &it.UnitPrice, &it.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Item{}, core.ErrUnknownItem
	}
	if err != nil {
		return core.Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	it.Mode = core.PricingMode(mode)
	return it, nil
}

func (r *Repository) ActiveTiers(ctx context.Context) ([]core.SurchargeTier, error) {
	rows, err := r.query(ctx, `
		SELECT id, label, min_weight, max_weight, surcharge, active, sort_order
		FROM surcharge_tiers WHERE active = ? ORDER BY sort_order, id`, true)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer rows.Close()

	var tiers []core.SurchargeTier
	for rows.Next() {
		var t core.SurchargeTier
		if err := rows.Scan(&t.ID, &t.Label, &t.Min, &t.Max, &t.Surcharge, &t.Active, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, t)
	}
	return tiers, rows.Err()
}

// Persons

func (r *Repository) CreatePerson(ctx context.Context, p core.Person) (core.Person, error) {
	if err := p.Validate(); err != nil {
		return core.Person{}, err
	}
	err := r.queryRow(ctx, `
		INSERT INTO persons (name, guest, active, checkpoint_at, created_at)
		VALUES (?, ?, ?, ?, ?) RETURNING id`,
		p.Name, p.Guest, p.Active, nullableNanos(p.CheckpointAt), p.CreatedAt.UnixNano()).
		Scan(&p.ID)
	if err != nil {
		return core.Person{}, fmt.Errorf("create person: %w", err)
	}

	slog.InfoContext(ctx, "Person registered", "person_id", p.ID, "guest", p.Guest)
	return p, nil
}

const personColumns = `id, name, guest, active, checkpoint_at, created_at`

func (r *Repository) Person(ctx context.Context, id int64) (core.Person, error) {
	p, err := scanPerson(r.queryRow(ctx, `SELECT `+personColumns+` FROM persons WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Person{}, core.ErrUnknownPerson
	}
	if err != nil {
		return core.Person{}, fmt.Errorf("get person %d: %w", id, err)
	}
	return p, nil
}

func (r *Repository) ListPersons(ctx context.Context) ([]core.Person, error) {
	rows, err := r.query(ctx, `SELECT `+personColumns+` FROM persons ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	persons := []core.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

func (r *Repository) ResetCheckpoint(ctx context.Context, id int64, at time.Time) error {
	res, err := r.exec(ctx, `UPDATE persons SET checkpoint_at = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset checkpoint: %w", err)
	}
	if n == 0 {
		return core.ErrUnknownPerson
	}
	return nil
}

func (r *Repository) ResetAllCheckpoints(ctx context.Context, at time.Time) ([]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reset all checkpoints: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.dialect.rebind(`UPDATE persons SET checkpoint_at = ?`), at.UnixNano()); err != nil {
		return nil, fmt.Errorf("reset all checkpoints: %w", err)
	}
	rows, err := tx.QueryContext(ctx, `SELECT id FROM persons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("reset all checkpoints: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan person id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("reset all checkpoints: %w", err)
	}
	return ids, nil
}

// Transactions

func (r *Repository) InsertTransaction(ctx context.Context, tx core.Transaction) error {
	_, err := r.exec(ctx, `
		INSERT INTO transactions (id, person_id, item_id, quantity, price_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.PersonID, tx.ItemID, core.FormatQuantity(tx.Quantity), tx.Amount.Cents, tx.CreatedAt.UnixNano())
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.ErrUnknownPerson
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const transactionColumns = `id, person_id, item_id, quantity, price_cents, created_at`

func (r *Repository) Transaction(ctx context.Context, id string) (core.Transaction, error) {
	tx, err := scanTransaction(r.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrUnknownTransaction
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	res, err := r.exec(ctx, `UPDATE transactions SET quantity = ?, price_cents = ? WHERE id = ?`,
		core.FormatQuantity(tx.Quantity), tx.Amount.Cents, tx.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOneRow(res, core.ErrUnknownTransaction)
}

func (r *Repository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.exec(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOneRow(res, core.ErrUnknownTransaction)
}

func (r *Repository) ListTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, int, error) {
	f = f.Normalize()

	where, args := "", []any{}
	if f.PersonID != 0 {
		where, args = ` WHERE person_id = ?`, append(args, f.PersonID)
	}

	var total int
	if err := r.queryRow(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	rows, err := r.query(ctx, `SELECT `+transactionColumns+` FROM transactions`+where+
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, total, rows.Err()
}

func (r *Repository) LatestTransaction(ctx context.Context, personID int64) (core.Transaction, error) {
	tx, err := scanTransaction(r.queryRow(ctx, `
		SELECT t.id, t.person_id, t.item_id, t.quantity, t.price_cents, t.created_at
		FROM transactions t
		JOIN persons p ON p.id = t.person_id
		WHERE t.person_id = ? AND (p.checkpoint_at IS NULL OR t.created_at > p.checkpoint_at)
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT 1`, personID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNothingToUndo
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("latest transaction: %w", err)
	}
	return tx, nil
}

// DebtSummary sums every person's transactions after their checkpoint.
// Persons without such transactions get a zero row.
func (r *Repository) DebtSummary(ctx context.Context) (core.DebtSummary, error) {
	rows, err := r.query(ctx, `
		SELECT p.id, p.name, p.guest, p.active, p.checkpoint_at, p.created_at,
			CAST(COALESCE(SUM(t.price_cents), 0) AS BIGINT), COUNT(t.id)
		FROM persons p
		LEFT JOIN transactions t
			ON t.person_id = p.id
			AND (p.checkpoint_at IS NULL OR t.created_at > p.checkpoint_at)
		GROUP BY p.id, p.name, p.guest, p.active, p.checkpoint_at, p.created_at
		ORDER BY p.name, p.id`)
	if err != nil {
		return core.DebtSummary{}, fmt.Errorf("debt summary: %w", err)
	}
	defer rows.Close()

	var out []core.PersonDebt
	for rows.Next() {
		var (
			row        core.PersonDebt
			checkpoint sql.NullInt64
			created    int64
		)
		if err := rows.Scan(&row.Person.ID, &row.Person.Name, &row.Person.Guest, &row.Person.Active,
			&checkpoint, &created, &row.Total.Cents, &row.Count); err != nil {
			return core.DebtSummary{}, fmt.Errorf("scan debt row: %w", err)
		}
		row.Person.CheckpointAt = fromNullableNanos(checkpoint)
		row.Person.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return core.DebtSummary{}, err
	}
	return core.NewDebtSummary(out), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (core.Person, error) {
	var (
		p          core.Person
		checkpoint sql.NullInt64
		created    int64
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Guest, &p.Active, &checkpoint, &created); err != nil {
		return core.Person{}, err
	}
	p.CheckpointAt = fromNullableNanos(checkpoint)
	p.CreatedAt = time.Unix(0, created).UTC()
	return p, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx      core.Transaction
		created int64
	)
	if err := s.Scan(&tx.ID, &tx.PersonID, &tx.ItemID, &tx.Quantity, &tx.Amount.Cents, &created); err != nil {
		return core.Transaction{}, err
	}
	tx.CreatedAt = time.Unix(0, created).UTC()
	return tx, nil
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullableNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
