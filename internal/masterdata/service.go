package masterdata

import (
	"context"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// service implements Service interface
type service struct {
	repo Repository
}

// NewService creates a new master data service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Client(ctx context.Context, id int64) (Client, error) {
	if id <= 0 {
		return Client{}, shared.NewValidationError("client_id", "is required")
	}
	return s.repo.GetClient(ctx, id)
}

func (s *service) Vehicle(ctx context.Context, id int64) (Vehicle, error) {
	if id <= 0 {
		return Vehicle{}, shared.NewValidationError("vehicle_id", "is required")
	}
	return s.repo.GetVehicle(ctx, id)
}

func (s *service) Product(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.NewValidationError("product_id", "is required")
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *service) LaborType(ctx context.Context, id int64) (LaborType, error) {
	if id <= 0 {
		return LaborType{}, shared.NewValidationError("labor_type_id", "is required")
	}
	return s.repo.GetLaborType(ctx, id)
}

// ResolveParties loads the client and vehicle of a new document and checks
// that the vehicle belongs to the client.
func (s *service) ResolveParties(ctx context.Context, clientID, vehicleID int64) (Client, Vehicle, error) {
	client, err := s.Client(ctx, clientID)
	if err != nil {
		return Client{}, Vehicle{}, err
	}
	vehicle, err := s.Vehicle(ctx, vehicleID)
	if err != nil {
		return Client{}, Vehicle{}, err
	}
	if vehicle.ClientID != client.ID {
		return Client{}, Vehicle{}, shared.NewValidationError("vehicle_id", "does not belong to client")
	}
	return client, vehicle, nil
}

// ProductItem returns the catalog defaults for a product line.
func (s *service) ProductItem(ctx context.Context, productID int64) (CatalogItem, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return CatalogItem{}, err
	}
	if !p.Active {
		return CatalogItem{}, shared.NewValidationError("product_id", "product is inactive")
	}
	return CatalogItem{Description: p.Name, UnitPrice: p.SalePrice}, nil
}

// LaborItem returns the catalog defaults for a labor line.
func (s *service) LaborItem(ctx context.Context, laborTypeID int64) (CatalogItem, error) {
	l, err := s.LaborType(ctx, laborTypeID)
	if err != nil {
		return CatalogItem{}, err
	}
	if !l.Active {
		return CatalogItem{}, shared.NewValidationError("labor_type_id", "labor type is inactive")
	}
	return CatalogItem{Description: l.Name, UnitPrice: l.DefaultPrice}, nil
}
