package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/odyssey-erp/workshop/internal/inventory"
	"github.com/odyssey-erp/workshop/internal/ledger"
	"github.com/odyssey-erp/workshop/internal/platform/db"
)

// txRepository implements TxRepository.
type txRepository struct {
	tx pgx.Tx
}

// LockOrder loads the order row FOR UPDATE.
func (t *txRepository) LockOrder(ctx context.Context, id int64) (Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` `+orderFrom+` WHERE o.id = $1 FOR UPDATE OF o`, id)
	return scanOrder(row)
}

// InsertOrder creates an order with zero totals.
func (t *txRepository) InsertOrder(ctx context.Context, o Order) (int64, error) {
	query := `
		INSERT INTO service_orders (
			client_id, vehicle_id, mechanic_id, status,
			subtotal, discount, total, technical_notes, quote_id, created_by
		) VALUES ($1, $2, $3, $4, 0, 0, 0, $5, $6, $7)
		RETURNING id
	`
	var id int64
	err := t.tx.QueryRow(ctx, query,
		o.ClientID, o.VehicleID, nullableID(o.MechanicID), string(o.Status),
		o.TechnicalNotes, nullableID(o.QuoteID), pgtype.Int8{Int64: o.CreatedBy, Valid: o.CreatedBy != 0},
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return 0, ErrQuoteAlreadyOrdered
	}
	return id, err
}

// UpdateTotals writes subtotal, discount and total in one statement.
func (t *txRepository) UpdateTotals(ctx context.Context, id int64, totals ledger.Totals) error {
	return t.execOne(ctx, `UPDATE service_orders SET subtotal = $2, discount = $3, total = $4, updated_at = NOW() WHERE id = $1`,
		id, totals.Subtotal, totals.Discount, totals.Total)
}

// UpdateStatus writes status and lifecycle timestamps.
func (t *txRepository) UpdateStatus(ctx context.Context, id int64, change StatusChange) error {
	return t.execOne(ctx, `UPDATE service_orders SET status = $2, started_at = $3, finished_at = $4, updated_at = NOW() WHERE id = $1`,
		id, string(change.Status), timestamptz(change.StartedAt), timestamptz(change.FinishedAt))
}

// UpdateNotes replaces the technical notes.
func (t *txRepository) UpdateNotes(ctx context.Context, id int64, notes string) error {
	return t.execOne(ctx, `UPDATE service_orders SET technical_notes = $2, updated_at = NOW() WHERE id = $1`, id, notes)
}

// UpdateMechanic sets or clears the assigned mechanic.
func (t *txRepository) UpdateMechanic(ctx context.Context, id int64, mechanicID *int64) error {
	return t.execOne(ctx, `UPDATE service_orders SET mechanic_id = $2, updated_at = NOW() WHERE id = $1`, id, nullableID(mechanicID))
}

// DeleteOrder removes the order; items and history cascade.
func (t *txRepository) DeleteOrder(ctx context.Context, id int64) error {
	return t.execOne(ctx, `DELETE FROM service_orders WHERE id = $1`, id)
}

func (t *txRepository) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	return listItems(ctx, t.tx, orderID)
}

func (t *txRepository) GetItem(ctx context.Context, orderID, itemID int64) (Item, error) {
	row := t.tx.QueryRow(ctx, `SELECT id, order_id, item_type, product_id, labor_type_id, description, quantity, unit_price, total_price
FROM service_order_items WHERE order_id = $1 AND id = $2`, orderID, itemID)
	return scanItem(row)
}

func (t *txRepository) InsertItem(ctx context.Context, item Item) (Item, error) {
	query := `
		INSERT INTO service_order_items (
			order_id, item_type, product_id, labor_type_id,
			description, quantity, unit_price, total_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := t.tx.QueryRow(ctx, query,
		item.OrderID, string(item.ItemType), nullableID(item.ProductID), nullableID(item.LaborTypeID),
		item.Description, item.Quantity, item.UnitPrice, item.TotalPrice,
	).Scan(&item.ID)
	return item, err
}

func (t *txRepository) UpdateItem(ctx context.Context, item Item) (Item, error) {
	err := t.execOne(ctx, `UPDATE service_order_items SET description = $3, quantity = $4, unit_price = $5, total_price = $6
WHERE order_id = $1 AND id = $2`,
		item.OrderID, item.ID, item.Description, item.Quantity, item.UnitPrice, item.TotalPrice)
	if errors.Is(err, ErrOrderNotFound) {
		return Item{}, ErrItemNotFound
	}
	return item, err
}

func (t *txRepository) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM service_order_items WHERE order_id = $1 AND id = $2`, orderID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// InsertHistory appends a change record.
func (t *txRepository) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO service_order_history (order_id, field, old_value, new_value, actor_id, note)
VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.OrderID, entry.Field, entry.OldValue, entry.NewValue,
		pgtype.Int8{Int64: entry.ActorID, Valid: entry.ActorID != 0}, entry.Note)
	return err
}

// HasActiveReceivable reports whether a non-cancelled receivable references the order.
func (t *txRepository) HasActiveReceivable(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts_receivable WHERE order_id = $1 AND status <> 'cancelled')`, orderID).Scan(&exists)
	return exists, err
}

func (t *txRepository) Stock() inventory.Store {
	return inventory.NewStore(t.tx)
}

func (t *txRepository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
