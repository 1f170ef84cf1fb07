package masterdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// repo implements Repository interface
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

func (r *repo) GetClient(ctx context.Context, id int64) (Client, error) {
	query := `SELECT id, name, document, phone, email, created_at FROM clients WHERE id = $1`
	var c Client
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Document, &c.Phone, &c.Email, &c.CreatedAt)
	return c, notFound(err, ErrClientNotFound)
}

func (r *repo) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	query := `SELECT id, client_id, plate, brand, model, year FROM vehicles WHERE id = $1`
	var v Vehicle
	err := r.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.ClientID, &v.Plate, &v.Brand, &v.Model, &v.Year)
	return v, notFound(err, ErrVehicleNotFound)
}

func (r *repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	query := `SELECT id, name, sale_price, active FROM products WHERE id = $1`
	var p Product
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.SalePrice, &p.Active)
	return p, notFound(err, ErrProductNotFound)
}

func (r *repo) GetLaborType(ctx context.Context, id int64) (LaborType, error) {
	query := `SELECT id, name, default_price, active FROM labor_types WHERE id = $1`
	var l LaborType
	err := r.db.QueryRow(ctx, query, id).Scan(&l.ID, &l.Name, &l.DefaultPrice, &l.Active)
	return l, notFound(err, ErrLaborTypeNotFound)
}

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}
