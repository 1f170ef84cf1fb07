package inventory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/platform/db"
)

// Store is the transactional surface Post needs. Other packages build one
// over their own transaction with NewStore so stock moves commit together
// with the change that caused them.
type Store interface {
	LockProduct(ctx context.Context, productID int64) (Product, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	UpdateQuantity(ctx context.Context, productID int64, qty decimal.Decimal) (Product, error)
}

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn in a transaction that serialises on product rows.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewStore(tx))
	})
}

// GetProduct loads a product without locking it.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT id, name, sale_price, current_quantity, updated_at FROM products WHERE id=$1`, id))
}

// ListMovements returns the newest movements for a product.
func (r *Repository) ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, type, quantity, previous_quantity, resulting_quantity,
       ref_module, ref_id, notes, created_by, created_at
FROM inventory_movements
WHERE product_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var (
			m         Movement
			refID     pgtype.Int8
			createdBy pgtype.Int8
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.PreviousQuantity, &m.ResultingQuantity,
			&m.RefModule, &refID, &m.Notes, &createdBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		if refID.Valid {
			id := refID.Int64
			m.RefID = &id
		}
		m.CreatedBy = createdBy.Int64
		out = append(out, m)
	}
	return out, rows.Err()
}

type pgStore struct {
	q db.Querier
}

// NewStore builds a Store over q, normally a pgx.Tx.
func NewStore(q db.Querier) Store {
	return &pgStore{q: q}
}

func (s *pgStore) LockProduct(ctx context.Context, productID int64) (Product, error) {
	return scanProduct(s.q.QueryRow(ctx, `SELECT id, name, sale_price, current_quantity, updated_at FROM products WHERE id=$1 FOR UPDATE`, productID))
}

func (s *pgStore) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := s.q.QueryRow(ctx, `INSERT INTO inventory_movements
    (product_id, type, quantity, previous_quantity, resulting_quantity, ref_module, ref_id, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`,
		m.ProductID, string(m.Type), m.Quantity, m.PreviousQuantity, m.ResultingQuantity,
		m.RefModule, optionalID(m.RefID), m.Notes, pgtype.Int8{Int64: m.CreatedBy, Valid: m.CreatedBy != 0},
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	return m, nil
}

func (s *pgStore) UpdateQuantity(ctx context.Context, productID int64, qty decimal.Decimal) (Product, error) {
	return scanProduct(s.q.QueryRow(ctx, `UPDATE products SET current_quantity=$2, updated_at=NOW() WHERE id=$1
RETURNING id, name, sale_price, current_quantity, updated_at`, productID, qty))
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.SalePrice, &p.CurrentQuantity, &p.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func optionalID(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}
