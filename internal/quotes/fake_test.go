package quotes

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/ledger"
	"github.com/odyssey-erp/workshop/internal/masterdata"
	"github.com/odyssey-erp/workshop/internal/orders"
	"github.com/odyssey-erp/workshop/internal/shared"
)

type quoteState struct {
	quotes map[int64]Quote
	items  map[int64]Item
	nextID int64
}

func (s quoteState) clone() quoteState {
	out := quoteState{nextID: s.nextID, quotes: map[int64]Quote{}, items: map[int64]Item{}}
	for k, v := range s.quotes {
		out.quotes[k] = v
	}
	for k, v := range s.items {
		out.items[k] = v
	}
	return out
}

type memoryRepo struct {
	mu    sync.Mutex
	state quoteState
	// failConvert makes the next converted status update fail.
	failConvert bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: quoteState{quotes: map[int64]Quote{}, items: map[int64]Item{}}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{s: &r.state, repo: r}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Quote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.state.quotes[id]
	if !ok {
		return Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, quoteID int64) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return itemsOf(&r.state, quoteID), nil
}

func itemsOf(s *quoteState, quoteID int64) []Item {
	var out []Item
	for _, item := range s.items {
		if item.QuoteID == quoteID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memoryTx struct {
	s    *quoteState
	repo *memoryRepo
}

var errStatusWrite = errors.New("status write failed")

func (t *memoryTx) LockQuote(ctx context.Context, id int64) (Quote, error) {
	q, ok := t.s.quotes[id]
	if !ok {
		return Quote{}, ErrQuoteNotFound
	}
	return q, nil
}

func (t *memoryTx) InsertQuote(ctx context.Context, q Quote) (int64, error) {
	t.s.nextID++
	q.ID = t.s.nextID
	q.Subtotal, q.Discount, q.Total = decimal.Zero, decimal.Zero, decimal.Zero
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	t.s.quotes[q.ID] = q
	return q.ID, nil
}

func (t *memoryTx) UpdateTotals(ctx context.Context, id int64, totals ledger.Totals) error {
	q, ok := t.s.quotes[id]
	if !ok {
		return ErrQuoteNotFound
	}
	q.Subtotal, q.Discount, q.Total = totals.Subtotal, totals.Discount, totals.Total
	t.s.quotes[id] = q
	return nil
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id int64, status Status, orderID *int64, notes string) error {
	if status == StatusConverted && t.repo != nil && t.repo.failConvert {
		t.repo.failConvert = false
		return errStatusWrite
	}
	q, ok := t.s.quotes[id]
	if !ok {
		return ErrQuoteNotFound
	}
	q.Status = status
	if orderID != nil {
		q.OrderID = orderID
	}
	q.Notes = notes
	t.s.quotes[id] = q
	return nil
}

func (t *memoryTx) ListItems(ctx context.Context, quoteID int64) ([]Item, error) {
	return itemsOf(t.s, quoteID), nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item Item) (Item, error) {
	t.s.nextID++
	item.ID = t.s.nextID
	t.s.items[item.ID] = item
	return item, nil
}

func (t *memoryTx) DeleteItem(ctx context.Context, quoteID, itemID int64) error {
	item, ok := t.s.items[itemID]
	if !ok || item.QuoteID != quoteID {
		return ErrItemNotFound
	}
	delete(t.s.items, itemID)
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) ResolveParties(ctx context.Context, clientID, vehicleID int64) (masterdata.Client, masterdata.Vehicle, error) {
	if clientID != 1 {
		return masterdata.Client{}, masterdata.Vehicle{}, masterdata.ErrClientNotFound
	}
	if vehicleID != 10 {
		return masterdata.Client{}, masterdata.Vehicle{}, shared.NewValidationError("vehicle_id", "does not belong to client")
	}
	return masterdata.Client{ID: 1}, masterdata.Vehicle{ID: 10, ClientID: 1}, nil
}

func (fakeCatalog) ProductItem(ctx context.Context, productID int64) (masterdata.CatalogItem, error) {
	if productID == 7 {
		return masterdata.CatalogItem{Description: "Oil filter", UnitPrice: decimal.NewFromInt(50)}, nil
	}
	return masterdata.CatalogItem{}, masterdata.ErrProductNotFound
}

func (fakeCatalog) LaborItem(ctx context.Context, laborTypeID int64) (masterdata.CatalogItem, error) {
	if laborTypeID == 3 {
		return masterdata.CatalogItem{Description: "Alignment", UnitPrice: decimal.NewFromInt(30)}, nil
	}
	return masterdata.CatalogItem{}, masterdata.ErrLaborTypeNotFound
}

var errOrderDown = errors.New("orders unavailable")

type fakeOrders struct {
	requests []orders.CreateOrderRequest
	byQuote  map[int64]orders.Order
	fail     bool
}

// Create mirrors orders.Service: a repeated QuoteID returns the first order.
func (f *fakeOrders) Create(ctx context.Context, req orders.CreateOrderRequest, actorID int64) (orders.Detail, error) {
	if f.fail {
		return orders.Detail{}, errOrderDown
	}
	f.requests = append(f.requests, req)
	if req.QuoteID != nil {
		if existing, ok := f.byQuote[*req.QuoteID]; ok {
			return orders.Detail{Order: existing}, nil
		}
	}
	order := orders.Order{ID: int64(100 + len(f.requests)), ClientID: req.ClientID, QuoteID: req.QuoteID}
	if req.QuoteID != nil {
		if f.byQuote == nil {
			f.byQuote = map[int64]orders.Order{}
		}
		f.byQuote[*req.QuoteID] = order
	}
	return orders.Detail{Order: order}, nil
}
