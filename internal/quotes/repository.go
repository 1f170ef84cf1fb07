package quotes

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/workshop/internal/ledger"
	"github.com/odyssey-erp/workshop/internal/orders"
	"github.com/odyssey-erp/workshop/internal/platform/db"
)

// Repository defines quote persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (Quote, error)
	ListItems(ctx context.Context, quoteID int64) ([]Item, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional writes. Totals are only written
// after LockQuote.
type TxRepository interface {
	LockQuote(ctx context.Context, id int64) (Quote, error)
	InsertQuote(ctx context.Context, q Quote) (int64, error)
	UpdateTotals(ctx context.Context, id int64, totals ledger.Totals) error
	UpdateStatus(ctx context.Context, id int64, status Status, orderID *int64, notes string) error
	ListItems(ctx context.Context, quoteID int64) ([]Item, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	DeleteItem(ctx context.Context, quoteID, itemID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pgx-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

const quoteColumns = `id, client_id, vehicle_id, status, subtotal, discount, total, notes,
       valid_until, order_id, COALESCE(created_by, 0), created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (Quote, error) {
	return scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id))
}

func (r *repository) ListItems(ctx context.Context, quoteID int64) ([]Item, error) {
	return listItems(ctx, r.pool, quoteID)
}

type txRepository struct {
	q db.Querier
}

func (t *txRepository) LockQuote(ctx context.Context, id int64) (Quote, error) {
	return scanQuote(t.q.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepository) InsertQuote(ctx context.Context, q Quote) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO quotes (client_id, vehicle_id, status, subtotal, discount, total, notes, valid_until, created_by)
		VALUES ($1, $2, $3, 0, 0, 0, $4, $5, $6)
		RETURNING id`,
		q.ClientID, q.VehicleID, string(q.Status), q.Notes, validUntil(q.ValidUntil),
		pgtype.Int8{Int64: q.CreatedBy, Valid: q.CreatedBy != 0},
	).Scan(&id)
	return id, err
}

func (t *txRepository) UpdateTotals(ctx context.Context, id int64, totals ledger.Totals) error {
	tag, err := t.q.Exec(ctx, `UPDATE quotes SET subtotal = $2, discount = $3, total = $4, updated_at = NOW() WHERE id = $1`,
		id, totals.Subtotal, totals.Discount, totals.Total)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

func (t *txRepository) UpdateStatus(ctx context.Context, id int64, status Status, orderID *int64, notes string) error {
	var ref pgtype.Int8
	if orderID != nil {
		ref = pgtype.Int8{Int64: *orderID, Valid: true}
	}
	tag, err := t.q.Exec(ctx, `UPDATE quotes SET status = $2, order_id = COALESCE($3, order_id), notes = $4, updated_at = NOW() WHERE id = $1`,
		id, string(status), ref, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

func (t *txRepository) ListItems(ctx context.Context, quoteID int64) ([]Item, error) {
	return listItems(ctx, t.q, quoteID)
}

func (t *txRepository) InsertItem(ctx context.Context, item Item) (Item, error) {
	err := t.q.QueryRow(ctx, `
		INSERT INTO quote_items (quote_id, item_type, product_id, labor_type_id, description, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		item.QuoteID, string(item.ItemType), nullableID(item.ProductID), nullableID(item.LaborTypeID),
		item.Description, item.Quantity, item.UnitPrice, item.TotalPrice,
	).Scan(&item.ID)
	return item, err
}

func (t *txRepository) DeleteItem(ctx context.Context, quoteID, itemID int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1 AND id = $2`, quoteID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func listItems(ctx context.Context, q db.Querier, quoteID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, quote_id, item_type, product_id, labor_type_id, description, quantity, unit_price, total_price
FROM quote_items WHERE quote_id = $1 ORDER BY id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var (
			item               Item
			itemType           string
			productID, laborID pgtype.Int8
		)
		if err := rows.Scan(&item.ID, &item.QuoteID, &itemType, &productID, &laborID, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		item.ItemType = orders.ItemType(itemType)
		item.ProductID = optionalID(productID)
		item.LaborTypeID = optionalID(laborID)
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanQuote(row pgx.Row) (Quote, error) {
	var (
		q       Quote
		status  string
		valid   pgtype.Date
		orderID pgtype.Int8
	)
	err := row.Scan(&q.ID, &q.ClientID, &q.VehicleID, &status, &q.Subtotal, &q.Discount, &q.Total, &q.Notes,
		&valid, &orderID, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Quote{}, ErrQuoteNotFound
		}
		return Quote{}, err
	}
	q.Status = Status(status)
	if valid.Valid {
		t := valid.Time
		q.ValidUntil = &t
	}
	q.OrderID = optionalID(orderID)
	return q, nil
}

func validUntil(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *t, Valid: true}
}

func nullableID(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

func optionalID(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
