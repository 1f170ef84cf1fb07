package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/inventory"
	"github.com/odyssey-erp/workshop/internal/ledger"
	"github.com/odyssey-erp/workshop/internal/masterdata"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// CatalogPort resolves master data used when opening orders and adding items.
type CatalogPort interface {
	ResolveParties(ctx context.Context, clientID, vehicleID int64) (masterdata.Client, masterdata.Vehicle, error)
	ProductItem(ctx context.Context, productID int64) (masterdata.CatalogItem, error)
	LaborItem(ctx context.Context, laborTypeID int64) (masterdata.CatalogItem, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service provides business logic for service orders.
type Service struct {
	repo    Repository
	catalog CatalogPort
	audit   AuditPort
	now     func() time.Time
}

// NewService creates a new service. audit may be nil.
func NewService(repo Repository, catalog CatalogPort, audit AuditPort) *Service {
	return &Service{repo: repo, catalog: catalog, audit: audit, now: time.Now}
}

// Create opens an order for a client's vehicle. Template items are
// inserted, stock-moved and totalled in the same transaction. A request
// carrying a QuoteID that already produced an order returns that order
// without moving stock again.
func (s *Service) Create(ctx context.Context, req CreateOrderRequest, actorID int64) (Detail, error) {
	if err := ValidateCreateRequest(req); err != nil {
		return Detail{}, err
	}
	if req.QuoteID != nil {
		existing, err := s.repo.GetByQuote(ctx, *req.QuoteID)
		switch {
		case err == nil:
			return s.Get(ctx, existing.ID)
		case !errors.Is(err, ErrOrderNotFound):
			return Detail{}, err
		}
	}
	if _, _, err := s.catalog.ResolveParties(ctx, req.ClientID, req.VehicleID); err != nil {
		return Detail{}, err
	}
	items := make([]Item, 0, len(req.Items))
	for _, r := range req.Items {
		item, err := s.buildItem(ctx, r)
		if err != nil {
			return Detail{}, err
		}
		items = append(items, item)
	}

	var orderID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertOrder(ctx, Order{
			ClientID:       req.ClientID,
			VehicleID:      req.VehicleID,
			MechanicID:     req.MechanicID,
			Status:         StatusOpen,
			TechnicalNotes: req.TechnicalNotes,
			QuoteID:        req.QuoteID,
			CreatedBy:      actorID,
		})
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		orderID = id
		for _, item := range items {
			item.OrderID = id
			inserted, err := tx.InsertItem(ctx, item)
			if err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			if err := s.moveStock(ctx, tx, id, inserted.ProductID, decimal.Zero, inserted.Quantity, actorID); err != nil {
				return err
			}
		}
		order, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if len(items) > 0 {
			order.Discount = req.Discount
			if _, err := recompute(ctx, tx, order); err != nil {
				return err
			}
		}
		return tx.InsertHistory(ctx, HistoryEntry{
			OrderID:  id,
			Field:    historyFieldStatus,
			NewValue: string(StatusOpen),
			ActorID:  actorID,
			Note:     "order created",
		})
	})
	if err != nil {
		return Detail{}, err
	}
	return s.Get(ctx, orderID)
}

// Get returns an order with its items.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if items == nil {
		items = []Item{}
	}
	return Detail{Order: order, Items: items}, nil
}

// List returns a page of orders and the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, shared.NewValidationError("status", "unknown status")
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	return s.repo.List(ctx, filter)
}

// Update applies the explicit patch of editable order fields.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest, actorID int64) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if req.TechnicalNotes == nil || *req.TechnicalNotes == order.TechnicalNotes {
			return nil
		}
		if err := tx.UpdateNotes(ctx, id, *req.TechnicalNotes); err != nil {
			return err
		}
		entry := HistoryEntry{
			OrderID:  id,
			Field:    historyFieldNotes,
			OldValue: order.TechnicalNotes,
			NewValue: *req.TechnicalNotes,
			ActorID:  actorID,
		}
		order.TechnicalNotes = *req.TechnicalNotes
		return tx.InsertHistory(ctx, entry)
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Delete removes an order that no active receivable references and
// returns its product items to stock.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.LockOrder(ctx, id); err != nil {
			return err
		}
		busy, err := tx.HasActiveReceivable(ctx, id)
		if err != nil {
			return err
		}
		if busy {
			return ErrOrderHasReceivable
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := s.moveStock(ctx, tx, id, item.ProductID, item.Quantity, decimal.Zero, actorID); err != nil {
				return err
			}
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "order:delete", id, nil)
	return nil
}

// AddItem appends a line, moves stock for product items and recomputes totals.
func (s *Service) AddItem(ctx context.Context, orderID int64, req CreateItemRequest, actorID int64) (ItemMutation, error) {
	if err := ValidateCreateItem(req); err != nil {
		return ItemMutation{}, err
	}
	item, err := s.buildItem(ctx, req)
	if err != nil {
		return ItemMutation{}, err
	}
	var result ItemMutation
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := lockMutable(ctx, tx, orderID)
		if err != nil {
			return err
		}
		item.OrderID = orderID
		inserted, err := tx.InsertItem(ctx, item)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		if err := s.moveStock(ctx, tx, orderID, inserted.ProductID, decimal.Zero, inserted.Quantity, actorID); err != nil {
			return err
		}
		order, err = recompute(ctx, tx, order)
		if err != nil {
			return err
		}
		result = ItemMutation{Order: order, Item: inserted}
		return nil
	})
	return result, err
}

// UpdateItem edits quantity, price or description of a line.
func (s *Service) UpdateItem(ctx context.Context, orderID, itemID int64, req UpdateItemRequest, actorID int64) (ItemMutation, error) {
	if err := ValidateUpdateItem(req); err != nil {
		return ItemMutation{}, err
	}
	var result ItemMutation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := lockMutable(ctx, tx, orderID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, orderID, itemID)
		if err != nil {
			return err
		}
		previous := item.Quantity
		if req.Description != nil {
			item.Description = *req.Description
		}
		if req.Quantity != nil {
			item.Quantity = shared.RoundQuantity(*req.Quantity)
		}
		if req.UnitPrice != nil {
			item.UnitPrice = shared.RoundMoney(*req.UnitPrice)
		}
		item.TotalPrice = ledger.LineTotal(item.Quantity, item.UnitPrice)
		if item, err = tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		if err := s.moveStock(ctx, tx, orderID, item.ProductID, previous, item.Quantity, actorID); err != nil {
			return err
		}
		order, err = recompute(ctx, tx, order)
		if err != nil {
			return err
		}
		result = ItemMutation{Order: order, Item: item}
		return nil
	})
	return result, err
}

// RemoveItem deletes a line and returns its quantity to stock.
func (s *Service) RemoveItem(ctx context.Context, orderID, itemID int64, actorID int64) (ItemMutation, error) {
	var result ItemMutation
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := lockMutable(ctx, tx, orderID)
		if err != nil {
			return err
		}
		item, err := tx.GetItem(ctx, orderID, itemID)
		if err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, orderID, itemID); err != nil {
			return err
		}
		if err := s.moveStock(ctx, tx, orderID, item.ProductID, item.Quantity, decimal.Zero, actorID); err != nil {
			return err
		}
		order, err = recompute(ctx, tx, order)
		if err != nil {
			return err
		}
		result = ItemMutation{Order: order, Item: item}
		return nil
	})
	return result, err
}

// SetDiscount stores the requested discount clamped to the subtotal.
func (s *Service) SetDiscount(ctx context.Context, orderID int64, req DiscountRequest, actorID int64) (Order, error) {
	discount, err := ValidateDiscount(req)
	if err != nil {
		return Order{}, err
	}
	var order Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = lockMutable(ctx, tx, orderID)
		if err != nil {
			return err
		}
		previous := order.Discount
		order.Discount = discount
		order, err = recompute(ctx, tx, order)
		if err != nil {
			return err
		}
		if previous.Equal(order.Discount) {
			return nil
		}
		return tx.InsertHistory(ctx, HistoryEntry{
			OrderID:  orderID,
			Field:    historyFieldDiscount,
			OldValue: previous.StringFixed(2),
			NewValue: order.Discount.StringFixed(2),
			ActorID:  actorID,
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Transition applies a lifecycle action and records it in history.
func (s *Service) Transition(ctx context.Context, orderID int64, req TransitionRequest, actorID int64) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		next, err := Next(order.Status, req.Action)
		if err != nil {
			return err
		}
		change := StatusChange{Status: next, StartedAt: order.StartedAt, FinishedAt: order.FinishedAt}
		now := s.now().UTC()
		switch req.Action {
		case ActionStart:
			if change.StartedAt == nil {
				change.StartedAt = &now
			}
		case ActionFinish:
			change.FinishedAt = &now
		case ActionReopen:
			change.FinishedAt = nil
		}
		if err := tx.UpdateStatus(ctx, orderID, change); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, HistoryEntry{
			OrderID:  orderID,
			Field:    historyFieldStatus,
			OldValue: string(order.Status),
			NewValue: string(next),
			ActorID:  actorID,
			Note:     req.Note,
		}); err != nil {
			return err
		}
		order.Status = change.Status
		order.StartedAt = change.StartedAt
		order.FinishedAt = change.FinishedAt
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// AssignMechanic assigns, transfers or clears the order's mechanic.
func (s *Service) AssignMechanic(ctx context.Context, orderID int64, req AssignMechanicRequest, actorID int64) (Order, error) {
	if req.MechanicID != nil && *req.MechanicID <= 0 {
		return Order{}, shared.NewValidationError("mechanic_id", "must be positive")
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = lockMutable(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if sameID(order.MechanicID, req.MechanicID) {
			return nil
		}
		if err := tx.UpdateMechanic(ctx, orderID, req.MechanicID); err != nil {
			return err
		}
		if err := tx.InsertHistory(ctx, HistoryEntry{
			OrderID:  orderID,
			Field:    historyFieldMechanic,
			OldValue: formatID(order.MechanicID),
			NewValue: formatID(req.MechanicID),
			ActorID:  actorID,
			Note:     req.Note,
		}); err != nil {
			return err
		}
		order.MechanicID = req.MechanicID
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// History returns the order's change log.
func (s *Service) History(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return nil, err
	}
	entries, err := s.repo.History(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

func (s *Service) buildItem(ctx context.Context, req CreateItemRequest) (Item, error) {
	return BuildItem(ctx, s.catalog, req)
}

// BuildItem prices a validated item request. Catalog price and description
// apply when the request omits them.
func BuildItem(ctx context.Context, catalog CatalogPort, req CreateItemRequest) (Item, error) {
	var (
		entry masterdata.CatalogItem
		err   error
	)
	switch req.ItemType {
	case ItemTypeProduct:
		entry, err = catalog.ProductItem(ctx, *req.ProductID)
	case ItemTypeLabor:
		entry, err = catalog.LaborItem(ctx, *req.LaborTypeID)
	}
	if err != nil {
		return Item{}, err
	}
	unitPrice := entry.UnitPrice
	if req.UnitPrice != nil {
		unitPrice = *req.UnitPrice
	}
	unitPrice = shared.RoundMoney(unitPrice)
	description := req.Description
	if description == "" {
		description = entry.Description
	}
	quantity := shared.RoundQuantity(req.Quantity)
	return Item{
		ItemType:    req.ItemType,
		ProductID:   req.ProductID,
		LaborTypeID: req.LaborTypeID,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TotalPrice:  ledger.LineTotal(quantity, unitPrice),
	}, nil
}

// moveStock posts the movement matching a change of consumed quantity.
// Labor items have no product and never move stock.
func (s *Service) moveStock(ctx context.Context, tx TxRepository, orderID int64, productID *int64, previous, next decimal.Decimal, actorID int64) error {
	if productID == nil {
		return nil
	}
	typ, qty, ok := inventory.DemandMovement(previous, next)
	if !ok {
		return nil
	}
	ref := orderID
	_, err := inventory.Post(ctx, tx.Stock(), inventory.MovementInput{
		ProductID: *productID,
		Type:      typ,
		Quantity:  qty,
		RefModule: inventory.RefModuleServiceOrder,
		RefID:     &ref,
		Notes:     fmt.Sprintf("service order %d", orderID),
		ActorID:   actorID,
	})
	if err != nil {
		return fmt.Errorf("stock movement for product %d: %w", *productID, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "service_order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	})
}

func lockMutable(ctx context.Context, tx TxRepository, orderID int64) (Order, error) {
	order, err := tx.LockOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status.Locked() {
		return Order{}, ErrOrderLocked
	}
	return order, nil
}

// recompute rebuilds totals from the stored items and the order's current
// discount and writes them back.
func recompute(ctx context.Context, tx TxRepository, order Order) (Order, error) {
	items, err := tx.ListItems(ctx, order.ID)
	if err != nil {
		return Order{}, err
	}
	lines := make([]decimal.Decimal, 0, len(items))
	for _, item := range items {
		lines = append(lines, item.TotalPrice)
	}
	totals := ledger.Recompute(lines, order.Discount)
	if err := tx.UpdateTotals(ctx, order.ID, totals); err != nil {
		return Order{}, err
	}
	order.Subtotal = totals.Subtotal
	order.Discount = totals.Discount
	order.Total = totals.Total
	return order, nil
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
