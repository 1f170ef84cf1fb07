package quotes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/ledger"
	"github.com/odyssey-erp/workshop/internal/orders"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// OrderCreator opens service orders. Satisfied by *orders.Service.
type OrderCreator interface {
	Create(ctx context.Context, req orders.CreateOrderRequest, actorID int64) (orders.Detail, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements quote drafting, approval and conversion.
type Service struct {
	repo    Repository
	catalog orders.CatalogPort
	orders  OrderCreator
	audit   AuditPort
	now     func() time.Time
}

// NewService builds Service. audit may be nil.
func NewService(repo Repository, catalog orders.CatalogPort, creator OrderCreator, audit AuditPort) *Service {
	return &Service{repo: repo, catalog: catalog, orders: creator, audit: audit, now: time.Now}
}

// Create drafts a quote with optional initial items.
func (s *Service) Create(ctx context.Context, req CreateQuoteRequest, actorID int64) (Detail, error) {
	if err := orders.ValidateCreateRequest(orders.CreateOrderRequest{
		ClientID: req.ClientID, VehicleID: req.VehicleID, Items: req.Items,
	}); err != nil {
		return Detail{}, err
	}
	if req.ValidUntil != nil && s.expired(req.ValidUntil) {
		return Detail{}, shared.NewValidationError("valid_until", "must not be in the past")
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

	var quoteID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertQuote(ctx, Quote{
			ClientID:   req.ClientID,
			VehicleID:  req.VehicleID,
			Status:     StatusDraft,
			Notes:      req.Notes,
			ValidUntil: req.ValidUntil,
			CreatedBy:  actorID,
		})
		if err != nil {
			return fmt.Errorf("insert quote: %w", err)
		}
		quoteID = id
		for _, item := range items {
			item.QuoteID = id
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert quote item: %w", err)
			}
		}
		quote, err := tx.LockQuote(ctx, id)
		if err != nil {
			return err
		}
		_, err = recompute(ctx, tx, quote)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return s.Get(ctx, quoteID)
}

// Get returns a quote with its items.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	quote, err := s.repo.Get(ctx, id)
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
	return Detail{Quote: quote, Items: items}, nil
}

// AddItem appends a line to a draft quote and recomputes its totals.
func (s *Service) AddItem(ctx context.Context, quoteID int64, req orders.CreateItemRequest) (Detail, error) {
	if err := orders.ValidateCreateItem(req); err != nil {
		return Detail{}, err
	}
	item, err := s.buildItem(ctx, req)
	if err != nil {
		return Detail{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := lockDraft(ctx, tx, quoteID)
		if err != nil {
			return err
		}
		item.QuoteID = quoteID
		if _, err := tx.InsertItem(ctx, item); err != nil {
			return fmt.Errorf("insert quote item: %w", err)
		}
		_, err = recompute(ctx, tx, quote)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return s.Get(ctx, quoteID)
}

// RemoveItem deletes a line from a draft quote and recomputes its totals.
func (s *Service) RemoveItem(ctx context.Context, quoteID, itemID int64) (Detail, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := lockDraft(ctx, tx, quoteID)
		if err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, quoteID, itemID); err != nil {
			return err
		}
		_, err = recompute(ctx, tx, quote)
		return err
	})
	if err != nil {
		return Detail{}, err
	}
	return s.Get(ctx, quoteID)
}

// SetDiscount stores the requested discount clamped to the subtotal.
func (s *Service) SetDiscount(ctx context.Context, quoteID int64, req DiscountRequest) (Quote, error) {
	discount, err := ledger.RequireDiscount(req.Discount)
	if err != nil {
		return Quote{}, err
	}
	var quote Quote
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := lockDraft(ctx, tx, quoteID)
		if err != nil {
			return err
		}
		current.Discount = discount
		quote, err = recompute(ctx, tx, current)
		return err
	})
	return quote, err
}

// Approve moves a non-empty, unexpired draft to approved.
func (s *Service) Approve(ctx context.Context, quoteID, actorID int64) (Quote, error) {
	var quote Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		quote, err = lockDraft(ctx, tx, quoteID)
		if err != nil {
			return err
		}
		if s.expired(quote.ValidUntil) {
			return ErrQuoteExpired
		}
		items, err := tx.ListItems(ctx, quoteID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrQuoteEmpty
		}
		quote.Status = StatusApproved
		return tx.UpdateStatus(ctx, quoteID, StatusApproved, nil, quote.Notes)
	})
	if err != nil {
		return Quote{}, err
	}
	s.record(ctx, actorID, "quote:approve", quoteID, nil)
	return quote, nil
}

// Reject closes a draft or approved quote. The reason is appended to notes.
func (s *Service) Reject(ctx context.Context, quoteID int64, reason string, actorID int64) (Quote, error) {
	var quote Quote
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		quote, err = tx.LockQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote.Status != StatusDraft && quote.Status != StatusApproved {
			return fmt.Errorf("%w: cannot reject a %s quote", ErrInvalidStatus, quote.Status)
		}
		if reason = strings.TrimSpace(reason); reason != "" {
			if quote.Notes != "" {
				quote.Notes += "\n"
			}
			quote.Notes += "rejected: " + reason
		}
		quote.Status = StatusRejected
		return tx.UpdateStatus(ctx, quoteID, StatusRejected, nil, quote.Notes)
	})
	if err != nil {
		return Quote{}, err
	}
	s.record(ctx, actorID, "quote:reject", quoteID, map[string]any{"reason": reason})
	return quote, nil
}

// Convert opens a service order carrying the approved quote's items,
// prices and discount, then marks the quote converted. The quote row stays
// locked while the order is created, and the order is keyed by quote id, so
// retrying after a failed status update reuses the order already opened.
func (s *Service) Convert(ctx context.Context, quoteID int64, req ConvertRequest, actorID int64) (Conversion, error) {
	var result Conversion
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := tx.LockQuote(ctx, quoteID)
		if err != nil {
			return err
		}
		if quote.Status != StatusApproved {
			return fmt.Errorf("%w: only approved quotes convert", ErrInvalidStatus)
		}
		if s.expired(quote.ValidUntil) {
			return ErrQuoteExpired
		}
		items, err := tx.ListItems(ctx, quoteID)
		if err != nil {
			return err
		}
		order, err := s.orders.Create(ctx, orderRequest(quote, items, req.MechanicID), actorID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		orderID := order.Order.ID
		if err := tx.UpdateStatus(ctx, quoteID, StatusConverted, &orderID, quote.Notes); err != nil {
			return err
		}
		quote.Status = StatusConverted
		quote.OrderID = &orderID
		result = Conversion{Quote: quote, Order: order}
		return nil
	})
	if err != nil {
		return Conversion{}, err
	}
	s.record(ctx, actorID, "quote:convert", quoteID, map[string]any{"order_id": result.Order.Order.ID})
	return result, nil
}

func orderRequest(quote Quote, items []Item, mechanicID *int64) orders.CreateOrderRequest {
	req := orders.CreateOrderRequest{
		ClientID:       quote.ClientID,
		VehicleID:      quote.VehicleID,
		MechanicID:     mechanicID,
		TechnicalNotes: quote.Notes,
		Discount:       quote.Discount,
		QuoteID:        &quote.ID,
		Items:          make([]orders.CreateItemRequest, 0, len(items)),
	}
	for _, item := range items {
		price := item.UnitPrice
		req.Items = append(req.Items, orders.CreateItemRequest{
			ItemType:    item.ItemType,
			ProductID:   item.ProductID,
			LaborTypeID: item.LaborTypeID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   &price,
		})
	}
	return req
}

func (s *Service) buildItem(ctx context.Context, req orders.CreateItemRequest) (Item, error) {
	priced, err := orders.BuildItem(ctx, s.catalog, req)
	if err != nil {
		return Item{}, err
	}
	return Item{
		ItemType:    priced.ItemType,
		ProductID:   priced.ProductID,
		LaborTypeID: priced.LaborTypeID,
		Description: priced.Description,
		Quantity:    priced.Quantity,
		UnitPrice:   priced.UnitPrice,
		TotalPrice:  priced.TotalPrice,
	}, nil
}

func (s *Service) expired(validUntil *time.Time) bool {
	if validUntil == nil {
		return false
	}
	y, m, d := s.now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	vy, vm, vd := validUntil.UTC().Date()
	return time.Date(vy, vm, vd, 0, 0, 0, 0, time.UTC).Before(today)
}

func lockDraft(ctx context.Context, tx TxRepository, quoteID int64) (Quote, error) {
	quote, err := tx.LockQuote(ctx, quoteID)
	if err != nil {
		return Quote{}, err
	}
	if quote.Status != StatusDraft {
		return Quote{}, fmt.Errorf("%w: quote is %s", ErrInvalidStatus, quote.Status)
	}
	return quote, nil
}

func recompute(ctx context.Context, tx TxRepository, quote Quote) (Quote, error) {
	items, err := tx.ListItems(ctx, quote.ID)
	if err != nil {
		return Quote{}, err
	}
	lines := make([]decimal.Decimal, 0, len(items))
	for _, item := range items {
		lines = append(lines, item.TotalPrice)
	}
	totals := ledger.Recompute(lines, quote.Discount)
	if err := tx.UpdateTotals(ctx, quote.ID, totals); err != nil {
		return Quote{}, err
	}
	quote.Subtotal = totals.Subtotal
	quote.Discount = totals.Discount
	quote.Total = totals.Total
	return quote, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, quoteID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "quote",
		EntityID: strconv.FormatInt(quoteID, 10),
		Meta:     meta,
	})
}
