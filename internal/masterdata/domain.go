package masterdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// Client represents a workshop customer.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Vehicle represents a vehicle owned by a client.
type Vehicle struct {
	ID       int64  `json:"id"`
	ClientID int64  `json:"client_id"`
	Plate    string `json:"plate"`
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Year     int    `json:"year"`
}

// Product is the catalog view of a sellable part.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SalePrice decimal.Decimal `json:"sale_price"`
	Active    bool            `json:"active"`
}

// LaborType is a catalog service with a default price.
type LaborType struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	DefaultPrice decimal.Decimal `json:"default_price"`
	Active       bool            `json:"active"`
}

// CatalogItem is the default description and price for a line item.
type CatalogItem struct {
	Description string
	UnitPrice   decimal.Decimal
}

var (
	// ErrClientNotFound indicates a missing client.
	ErrClientNotFound = fmt.Errorf("masterdata: client %w", shared.ErrNotFound)
	// ErrVehicleNotFound indicates a missing vehicle.
	ErrVehicleNotFound = fmt.Errorf("masterdata: vehicle %w", shared.ErrNotFound)
	// ErrProductNotFound indicates a missing product.
	ErrProductNotFound = fmt.Errorf("masterdata: product %w", shared.ErrNotFound)
	// ErrLaborTypeNotFound indicates a missing labor type.
	ErrLaborTypeNotFound = fmt.Errorf("masterdata: labor type %w", shared.ErrNotFound)
)

// Repository defines read access to master data.
type Repository interface {
	GetClient(ctx context.Context, id int64) (Client, error)
	GetVehicle(ctx context.Context, id int64) (Vehicle, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	GetLaborType(ctx context.Context, id int64) (LaborType, error)
}

// Service exposes lookups used by orders and quotes.
type Service interface {
	Client(ctx context.Context, id int64) (Client, error)
	Vehicle(ctx context.Context, id int64) (Vehicle, error)
	Product(ctx context.Context, id int64) (Product, error)
	LaborType(ctx context.Context, id int64) (LaborType, error)
	ResolveParties(ctx context.Context, clientID, vehicleID int64) (Client, Vehicle, error)
	ProductItem(ctx context.Context, productID int64) (CatalogItem, error)
	LaborItem(ctx context.Context, laborTypeID int64) (CatalogItem, error)
}
