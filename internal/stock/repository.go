package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-supplies/internal/catalog"
	"github.com/odyssey-erp/odyssey-supplies/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the statements used inside a ledger transaction.
type TxRepository interface {
	GetItem(ctx context.Context, id int64) (catalog.Item, error)
	LockItem(ctx context.Context, id int64) (catalog.Item, error)
	GetCenter(ctx context.Context, id int64) (catalog.Center, error)
	GetWorker(ctx context.Context, id int64) (catalog.Worker, error)
	ItemTotals(ctx context.Context, itemID int64) (Totals, error)
	AllTotals(ctx context.Context) ([]ItemTotals, error)
	InsertPurchase(ctx context.Context, p PurchaseEvent) (int64, error)
	InsertConsumption(ctx context.Context, c ConsumptionEvent) (int64, error)
	DeleteItem(ctx context.Context, id int64) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn at READ COMMITTED. Callers serialise per item through LockItem;
// every statement after the lock is granted sees all consumptions committed before it.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// WithReadTx runs fn in a read-only REPEATABLE READ transaction so all reads share one snapshot.
func (r *Repository) WithReadTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.run(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (r *Repository) run(ctx context.Context, opts pgx.TxOptions, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, opts, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
	return mapTxErr(err)
}

const itemColumns = `id, denomination, category, model, container_size, container_price::float8, unit_price::float8, COALESCE(barcode, ''), reorder_threshold::float8, created_at`

func scanItem(row pgx.Row, id int64) (catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(&it.ID, &it.Denomination, &it.Category, &it.Model, &it.ContainerSize, &it.ContainerPrice, &it.UnitPrice, &it.Barcode, &it.ReorderThreshold, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Item{}, notFound(EntityItem, id)
	}
	return it, err
}

func (r *txRepo) GetItem(ctx context.Context, id int64) (catalog.Item, error) {
	return scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM supply_items WHERE id=$1`, id), id)
}

func (r *txRepo) LockItem(ctx context.Context, id int64) (catalog.Item, error) {
	return scanItem(r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM supply_items WHERE id=$1 FOR UPDATE`, id), id)
}

func (r *txRepo) GetCenter(ctx context.Context, id int64) (catalog.Center, error) {
	var c catalog.Center
	err := r.tx.QueryRow(ctx, `SELECT id, name, description, active, created_at FROM consumption_centers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Center{}, notFound(EntityCenter, id)
	}
	return c, err
}

func (r *txRepo) GetWorker(ctx context.Context, id int64) (catalog.Worker, error) {
	var w catalog.Worker
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, center_id, active, created_at FROM workers WHERE id=$1`, id).
		Scan(&w.ID, &w.Code, &w.Name, &w.CenterID, &w.Active, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Worker{}, notFound(EntityWorker, id)
	}
	return w, err
}

func (r *txRepo) ItemTotals(ctx context.Context, itemID int64) (Totals, error) {
	var t Totals
	err := r.tx.QueryRow(ctx, `SELECT
	(SELECT COALESCE(SUM(containers), 0)::float8 FROM supply_purchases WHERE item_id=$1),
	(SELECT COALESCE(SUM(units), 0)::float8 FROM supply_consumptions WHERE item_id=$1)`, itemID).
		Scan(&t.PurchasedContainers, &t.ConsumedUnits)
	return t, err
}

func (r *txRepo) AllTotals(ctx context.Context) ([]ItemTotals, error) {
	rows, err := r.tx.Query(ctx, `SELECT i.id, i.denomination, i.category, i.model, i.container_size, i.container_price::float8, i.unit_price::float8,
	COALESCE(i.barcode, ''), i.reorder_threshold::float8, i.created_at,
	COALESCE(p.containers, 0)::float8, COALESCE(c.units, 0)::float8
FROM supply_items i
LEFT JOIN (SELECT item_id, SUM(containers) AS containers FROM supply_purchases GROUP BY item_id) p ON p.item_id = i.id
LEFT JOIN (SELECT item_id, SUM(units) AS units FROM supply_consumptions GROUP BY item_id) c ON c.item_id = i.id
ORDER BY i.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemTotals
	for rows.Next() {
		var row ItemTotals
		it := &row.Item
		if err := rows.Scan(&it.ID, &it.Denomination, &it.Category, &it.Model, &it.ContainerSize, &it.ContainerPrice, &it.UnitPrice,
			&it.Barcode, &it.ReorderThreshold, &it.CreatedAt, &row.Totals.PurchasedContainers, &row.Totals.ConsumedUnits); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *txRepo) InsertPurchase(ctx context.Context, p PurchaseEvent) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO supply_purchases (item_id, containers, price_per_container, supplier, lot, expiry, actor_id, purchased_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		p.ItemID, p.Containers, p.PricePerContainer, p.Supplier, p.Lot, p.Expiry, nullInt(p.ActorID), p.PurchasedAt).Scan(&id)
	return id, err
}

func (r *txRepo) InsertConsumption(ctx context.Context, c ConsumptionEvent) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO supply_consumptions (item_id, center_id, worker_id, units, project, notes, actor_id, consumed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		c.ItemID, c.CenterID, c.WorkerID, c.Units, c.Project, c.Notes, nullInt(c.ActorID), c.ConsumedAt).Scan(&id)
	return id, err
}

func (r *txRepo) DeleteItem(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM supply_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(EntityItem, id)
	}
	return nil
}

// ListPurchases returns purchases newest first with their derived cost figures.
func (r *Repository) ListPurchases(ctx context.Context, filter LedgerFilter) ([]PurchaseEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.item_id, p.containers::float8, p.price_per_container::float8, p.supplier, p.lot, p.expiry,
	COALESCE(p.actor_id, 0), p.purchased_at, i.container_size
FROM supply_purchases p JOIN supply_items i ON i.id = p.item_id
WHERE ($1::bigint = 0 OR p.item_id = $1)
ORDER BY p.purchased_at DESC, p.id DESC
LIMIT $2`, filter.ItemID, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []PurchaseEvent{}
	for rows.Next() {
		var p PurchaseEvent
		var size int
		if err := rows.Scan(&p.ID, &p.ItemID, &p.Containers, &p.PricePerContainer, &p.Supplier, &p.Lot, &p.Expiry, &p.ActorID, &p.PurchasedAt, &size); err != nil {
			return nil, err
		}
		out = append(out, withPurchaseFigures(p, size))
	}
	return out, rows.Err()
}

// ListConsumptions returns consumptions newest first with their derived cost figures.
func (r *Repository) ListConsumptions(ctx context.Context, filter LedgerFilter) ([]ConsumptionEvent, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id, c.item_id, c.center_id, c.worker_id, c.units::float8, c.project, c.notes,
	COALESCE(c.actor_id, 0), c.consumed_at, i.container_size, i.unit_price::float8
FROM supply_consumptions c JOIN supply_items i ON i.id = c.item_id
WHERE ($1::bigint = 0 OR c.item_id = $1)
ORDER BY c.consumed_at DESC, c.id DESC
LIMIT $2`, filter.ItemID, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []ConsumptionEvent{}
	for rows.Next() {
		var c ConsumptionEvent
		var size int
		var unitPrice float64
		if err := rows.Scan(&c.ID, &c.ItemID, &c.CenterID, &c.WorkerID, &c.Units, &c.Project, &c.Notes, &c.ActorID, &c.ConsumedAt, &size, &unitPrice); err != nil {
			return nil, err
		}
		out = append(out, withConsumptionFigures(c, size, unitPrice))
	}
	return out, rows.Err()
}

// mapTxErr turns serialization failures and deadlocks into ErrConcurrencyConflict.
func mapTxErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", ErrConcurrencyConflict, pgErr.Message)
		}
	}
	return err
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
