package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListMovements(ctx context.Context, productID int64, limit int) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards repeated adjustment requests.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

const idempotencyModule = "inventory"

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 500
)

// Service coordinates inventory operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
}

// NewService builds Service. audit and idem may be nil.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem}
}

// Post appends one movement and updates the counter using store. The
// product row is locked first so concurrent posts for the same product
// apply one after the other.
func Post(ctx context.Context, store Store, in MovementInput) (Result, error) {
	if err := in.validate(); err != nil {
		return Result{}, err
	}
	in.Quantity = shared.RoundQuantity(in.Quantity)
	product, err := store.LockProduct(ctx, in.ProductID)
	if err != nil {
		return Result{}, err
	}
	next := ApplyMovement(product.CurrentQuantity, in.Type, in.Quantity)
	movement, err := store.InsertMovement(ctx, Movement{
		ProductID:         in.ProductID,
		Type:              in.Type,
		Quantity:          in.Quantity,
		PreviousQuantity:  product.CurrentQuantity,
		ResultingQuantity: next,
		RefModule:         in.RefModule,
		RefID:             in.RefID,
		Notes:             in.Notes,
		CreatedBy:         in.ActorID,
	})
	if err != nil {
		return Result{}, err
	}
	updated, err := store.UpdateQuantity(ctx, in.ProductID, next)
	if err != nil {
		return Result{}, err
	}
	return Result{Movement: movement, Product: updated}, nil
}

// AdjustStock posts a manual movement in its own transaction.
func (s *Service) AdjustStock(ctx context.Context, input AdjustInput) (Result, error) {
	key, err := shared.ParseIdempotencyKey(input.IdempotencyKey)
	if err != nil {
		return Result{}, err
	}
	mv := MovementInput{
		ProductID: input.ProductID,
		Type:      input.Type,
		Quantity:  input.Quantity,
		RefModule: RefModuleManual,
		Notes:     input.Notes,
		ActorID:   input.ActorID,
	}
	if err := mv.validate(); err != nil {
		return Result{}, err
	}

	insertedKey := false
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return Result{}, err
		}
		insertedKey = true
	}

	var result Result
	err = s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		result, err = Post(ctx, store, mv)
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key, idempotencyModule)
		}
		return Result{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("inventory:%s", input.Type),
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", input.ProductID),
			Meta: map[string]any{
				"movement_id":        result.Movement.ID,
				"quantity":           result.Movement.Quantity.String(),
				"previous_quantity":  result.Movement.PreviousQuantity.String(),
				"resulting_quantity": result.Movement.ResultingQuantity.String(),
				"notes":              input.Notes,
			},
		})
	}
	return result, nil
}

// Product returns the current stock view of a product.
func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.NewValidationError("product_id", "is required")
	}
	return s.repo.GetProduct(ctx, id)
}

// Movements lists the movement log for a product, newest first.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if productID <= 0 {
		return nil, shared.NewValidationError("product_id", "is required")
	}
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}
	if _, err := s.repo.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("inventory: load product: %w", err)
	}
	return s.repo.ListMovements(ctx, productID, limit)
}
