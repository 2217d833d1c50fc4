package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-supplies/internal/platform/db"
)

// Repository persists catalog records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, denomination, category, model, container_size, container_price::float8, unit_price::float8, COALESCE(barcode, ''), reorder_threshold::float8, created_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Denomination, &it.Category, &it.Model, &it.ContainerSize, &it.ContainerPrice, &it.UnitPrice, &it.Barcode, &it.ReorderThreshold, &it.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (r *Repository) ListItems(ctx context.Context, filter ItemFilter) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM supply_items`
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += ` WHERE denomination ILIKE $1 OR category ILIKE $1 OR model ILIKE $1 OR barcode = $2`
		args = append(args, filter.Search)
	}
	query += ` ORDER BY denomination ASC, category ASC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM supply_items WHERE id=$1`, id))
}

func (r *Repository) CreateItem(ctx context.Context, in ItemInput) (Item, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO supply_items (denomination, category, model, container_size, container_price, unit_price, barcode, reorder_threshold, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING `+itemColumns,
		in.Denomination, in.Category, in.Model, in.ContainerSize, in.ContainerPrice, in.UnitPrice, nullString(in.Barcode), in.ReorderThreshold, time.Now().UTC())
	it, err := scanItem(row)
	return it, mapWriteErr(err)
}

// UpdateItem rewrites an item. The row stays locked while a shrinking
// container size is checked against the ledgers, so a concurrent consumption
// cannot slip in between the check and the update.
func (r *Repository) UpdateItem(ctx context.Context, id int64, in ItemInput) (Item, error) {
	var it Item
	err := db.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var size int
		err := tx.QueryRow(ctx, `SELECT container_size FROM supply_items WHERE id=$1 FOR UPDATE`, id).Scan(&size)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if in.ContainerSize < size {
			var totals LedgerTotals
			err := tx.QueryRow(ctx, `SELECT
	(SELECT COALESCE(SUM(containers), 0)::float8 FROM supply_purchases WHERE item_id=$1),
	(SELECT COALESCE(SUM(units), 0)::float8 FROM supply_consumptions WHERE item_id=$1)`, id).
				Scan(&totals.PurchasedContainers, &totals.ConsumedUnits)
			if err != nil {
				return err
			}
			if !totals.CoversConsumption(in.ContainerSize) {
				return ErrStockUnderflow
			}
		}
		row := tx.QueryRow(ctx, `UPDATE supply_items SET denomination=$1, category=$2, model=$3, container_size=$4, container_price=$5, unit_price=$6, barcode=$7, reorder_threshold=$8
WHERE id=$9 RETURNING `+itemColumns,
			in.Denomination, in.Category, in.Model, in.ContainerSize, in.ContainerPrice, in.UnitPrice, nullString(in.Barcode), in.ReorderThreshold, id)
		it, err = scanItem(row)
		return mapWriteErr(err)
	})
	if err != nil {
		return Item{}, err
	}
	return it, nil
}

func (r *Repository) ListCenters(ctx context.Context) ([]Center, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, active, created_at FROM consumption_centers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	centers := []Center{}
	for rows.Next() {
		var c Center
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		centers = append(centers, c)
	}
	return centers, rows.Err()
}

func (r *Repository) GetCenter(ctx context.Context, id int64) (Center, error) {
	var c Center
	err := r.pool.QueryRow(ctx, `SELECT id, name, description, active, created_at FROM consumption_centers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Description, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Center{}, ErrNotFound
	}
	return c, err
}

func (r *Repository) CreateCenter(ctx context.Context, in CenterInput) (Center, error) {
	c := Center{Name: in.Name, Description: in.Description, Active: true, CreatedAt: time.Now().UTC()}
	err := r.pool.QueryRow(ctx, `INSERT INTO consumption_centers (name, description, active, created_at) VALUES ($1,$2,TRUE,$3) RETURNING id`,
		c.Name, c.Description, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		return Center{}, mapWriteErr(err)
	}
	return c, nil
}

func (r *Repository) SetCenterActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE consumption_centers SET active=$1 WHERE id=$2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) ListWorkers(ctx context.Context, centerID int64) ([]Worker, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, center_id, active, created_at FROM workers WHERE center_id=$1 ORDER BY code ASC`, centerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	workers := []Worker{}
	for rows.Next() {
		var w Worker
		if err := rows.Scan(&w.ID, &w.Code, &w.Name, &w.CenterID, &w.Active, &w.CreatedAt); err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (r *Repository) CreateWorker(ctx context.Context, in WorkerInput) (Worker, error) {
	w := Worker{Code: in.Code, Name: in.Name, CenterID: in.CenterID, Active: true, CreatedAt: time.Now().UTC()}
	err := r.pool.QueryRow(ctx, `INSERT INTO workers (code, name, center_id, active, created_at) VALUES ($1,$2,$3,TRUE,$4) RETURNING id`,
		w.Code, w.Name, w.CenterID, w.CreatedAt).Scan(&w.ID)
	if err != nil {
		return Worker{}, mapWriteErr(err)
	}
	return w, nil
}

func (r *Repository) SetWorkerActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE workers SET active=$1 WHERE id=$2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrNotFound
		}
	}
	return err
}

func nullString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
