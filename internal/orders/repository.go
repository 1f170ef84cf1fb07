package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/workshop/internal/inventory"
	"github.com/odyssey-erp/workshop/internal/ledger"
	"github.com/odyssey-erp/workshop/internal/platform/db"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// Repository defines the interface for service order persistence.
type Repository interface {
	Get(ctx context.Context, id int64) (Order, error)
	GetByQuote(ctx context.Context, quoteID int64) (Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	ListItems(ctx context.Context, orderID int64) ([]Item, error)
	History(ctx context.Context, orderID int64) ([]HistoryEntry, error)

	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional write operations. Every write that
// touches totals runs after LockOrder so per-order mutations serialise.
type TxRepository interface {
	LockOrder(ctx context.Context, id int64) (Order, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	UpdateTotals(ctx context.Context, id int64, totals ledger.Totals) error
	UpdateStatus(ctx context.Context, id int64, change StatusChange) error
	UpdateNotes(ctx context.Context, id int64, notes string) error
	UpdateMechanic(ctx context.Context, id int64, mechanicID *int64) error
	DeleteOrder(ctx context.Context, id int64) error

	ListItems(ctx context.Context, orderID int64) ([]Item, error)
	GetItem(ctx context.Context, orderID, itemID int64) (Item, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, item Item) (Item, error)
	DeleteItem(ctx context.Context, orderID, itemID int64) error

	InsertHistory(ctx context.Context, entry HistoryEntry) error
	HasActiveReceivable(ctx context.Context, orderID int64) (bool, error)

	// Stock returns the inventory store bound to the same transaction.
	Stock() inventory.Store
}

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// WithTx wraps callback in a read-committed transaction; callers lock the
// order row before reading totals.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `o.id, o.client_id, COALESCE(c.name, ''), o.vehicle_id, COALESCE(v.plate, ''), o.mechanic_id,
       o.status, o.subtotal, o.discount, o.total, o.started_at, o.finished_at, o.technical_notes,
       o.quote_id, COALESCE(o.created_by, 0), o.created_at, o.updated_at`

const orderFrom = `FROM service_orders o
LEFT JOIN clients c ON c.id = o.client_id
LEFT JOIN vehicles v ON v.id = o.vehicle_id`

// Get loads an order with its denormalized labels.
func (r *repository) Get(ctx context.Context, id int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` `+orderFrom+` WHERE o.id = $1`, id)
	return scanOrder(row)
}

// GetByQuote loads the order converted from quoteID.
func (r *repository) GetByQuote(ctx context.Context, quoteID int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` `+orderFrom+` WHERE o.quote_id = $1`, quoteID)
	return scanOrder(row)
}

// List returns a page of orders and the total count.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("o.status = $%d", string(filter.Status))
	}
	if filter.ClientID > 0 {
		add("o.client_id = $%d", filter.ClientID)
	}
	if filter.VehicleID > 0 {
		add("o.vehicle_id = $%d", filter.VehicleID)
	}
	if filter.MechanicID > 0 {
		add("o.mechanic_id = $%d", filter.MechanicID)
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM service_orders o`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := shared.Offset(filter.Page, filter.PerPage)
	args = append(args, filter.PerPage, offset)
	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY o.created_at DESC, o.id DESC LIMIT $%d OFFSET $%d`,
		orderColumns, orderFrom, whereSQL, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// ListItems returns the items of an order in insertion order.
func (r *repository) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	return listItems(ctx, r.pool, orderID)
}

// History returns the change log of an order, oldest first.
func (r *repository) History(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, field, old_value, new_value, COALESCE(actor_id, 0), note, created_at
FROM service_order_history WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Field, &h.OldValue, &h.NewValue, &h.ActorID, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o          Order
		mechanicID pgtype.Int8
		quoteID    pgtype.Int8
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
	)
	err := row.Scan(&o.ID, &o.ClientID, &o.ClientName, &o.VehicleID, &o.VehiclePlate, &mechanicID,
		&o.Status, &o.Subtotal, &o.Discount, &o.Total, &startedAt, &finishedAt, &o.TechnicalNotes,
		&quoteID, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	if mechanicID.Valid {
		id := mechanicID.Int64
		o.MechanicID = &id
	}
	if quoteID.Valid {
		id := quoteID.Int64
		o.QuoteID = &id
	}
	if startedAt.Valid {
		t := startedAt.Time
		o.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		o.FinishedAt = &t
	}
	return o, nil
}

func listItems(ctx context.Context, q db.Querier, orderID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, item_type, product_id, labor_type_id, description, quantity, unit_price, total_price
FROM service_order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		item        Item
		productID   pgtype.Int8
		laborTypeID pgtype.Int8
	)
	err := row.Scan(&item.ID, &item.OrderID, &item.ItemType, &productID, &laborTypeID, &item.Description,
		&item.Quantity, &item.UnitPrice, &item.TotalPrice)
	if err != nil {
		if db.IsNoRows(err) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	if productID.Valid {
		id := productID.Int64
		item.ProductID = &id
	}
	if laborTypeID.Valid {
		id := laborTypeID.Int64
		item.LaborTypeID = &id
	}
	return item, nil
}

func nullableID(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}
