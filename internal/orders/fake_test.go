package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/inventory"
	"github.com/odyssey-erp/workshop/internal/ledger"
	"github.com/odyssey-erp/workshop/internal/masterdata"
	"github.com/odyssey-erp/workshop/internal/shared"
)

type memState struct {
	orders      map[int64]Order
	items       map[int64]Item
	history     []HistoryEntry
	products    map[int64]inventory.Product
	movements   []inventory.Movement
	receivables map[int64]bool
	nextID      int64
}

func (s memState) clone() memState {
	out := s
	out.orders = make(map[int64]Order, len(s.orders))
	for k, v := range s.orders {
		out.orders[k] = v
	}
	out.items = make(map[int64]Item, len(s.items))
	for k, v := range s.items {
		out.items[k] = v
	}
	out.products = make(map[int64]inventory.Product, len(s.products))
	for k, v := range s.products {
		out.products[k] = v
	}
	out.receivables = make(map[int64]bool, len(s.receivables))
	for k, v := range s.receivables {
		out.receivables[k] = v
	}
	out.history = append([]HistoryEntry(nil), s.history...)
	out.movements = append([]inventory.Movement(nil), s.movements...)
	return out
}

type memoryRepo struct {
	mu    sync.Mutex
	state memState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memState{
		orders:      map[int64]Order{},
		items:       map[int64]Item{},
		products:    map[int64]inventory.Product{},
		receivables: map[int64]bool{},
	}}
}

func (r *memoryRepo) addProduct(id int64, qty string) {
	r.state.products[id] = inventory.Product{ID: id, CurrentQuantity: decimal.RequireFromString(qty)}
}

func (r *memoryRepo) stockOf(id int64) decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.products[id].CurrentQuantity
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{s: &r.state}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.state.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (r *memoryRepo) GetByQuote(ctx context.Context, quoteID int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.state.orders {
		if o.QuoteID != nil && *o.QuoteID == quoteID {
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, o := range r.state.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memoryRepo) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (&memoryTx{s: &r.state}).ListItems(ctx, orderID)
}

func (r *memoryRepo) History(ctx context.Context, orderID int64) ([]HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []HistoryEntry
	for _, h := range r.state.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

type memoryTx struct {
	s *memState
}

func (t *memoryTx) id() int64 {
	t.s.nextID++
	return t.s.nextID
}

func (t *memoryTx) LockOrder(ctx context.Context, id int64) (Order, error) {
	o, ok := t.s.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (t *memoryTx) InsertOrder(ctx context.Context, o Order) (int64, error) {
	if o.QuoteID != nil {
		for _, existing := range t.s.orders {
			if existing.QuoteID != nil && *existing.QuoteID == *o.QuoteID {
				return 0, ErrQuoteAlreadyOrdered
			}
		}
	}
	o.ID = t.id()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	t.s.orders[o.ID] = o
	return o.ID, nil
}

func (t *memoryTx) update(id int64, fn func(*Order)) error {
	o, ok := t.s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	fn(&o)
	o.UpdatedAt = time.Now()
	t.s.orders[id] = o
	return nil
}

func (t *memoryTx) UpdateTotals(ctx context.Context, id int64, totals ledger.Totals) error {
	return t.update(id, func(o *Order) {
		o.Subtotal, o.Discount, o.Total = totals.Subtotal, totals.Discount, totals.Total
	})
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id int64, change StatusChange) error {
	return t.update(id, func(o *Order) {
		o.Status, o.StartedAt, o.FinishedAt = change.Status, change.StartedAt, change.FinishedAt
	})
}

func (t *memoryTx) UpdateNotes(ctx context.Context, id int64, notes string) error {
	return t.update(id, func(o *Order) { o.TechnicalNotes = notes })
}

func (t *memoryTx) UpdateMechanic(ctx context.Context, id int64, mechanicID *int64) error {
	return t.update(id, func(o *Order) { o.MechanicID = mechanicID })
}

func (t *memoryTx) DeleteOrder(ctx context.Context, id int64) error {
	if _, ok := t.s.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(t.s.orders, id)
	for itemID, item := range t.s.items {
		if item.OrderID == id {
			delete(t.s.items, itemID)
		}
	}
	return nil
}

func (t *memoryTx) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	var out []Item
	for _, item := range t.s.items {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) GetItem(ctx context.Context, orderID, itemID int64) (Item, error) {
	item, ok := t.s.items[itemID]
	if !ok || item.OrderID != orderID {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (t *memoryTx) InsertItem(ctx context.Context, item Item) (Item, error) {
	item.ID = t.id()
	t.s.items[item.ID] = item
	return item, nil
}

func (t *memoryTx) UpdateItem(ctx context.Context, item Item) (Item, error) {
	if _, err := t.GetItem(ctx, item.OrderID, item.ID); err != nil {
		return Item{}, err
	}
	t.s.items[item.ID] = item
	return item, nil
}

func (t *memoryTx) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	if _, err := t.GetItem(ctx, orderID, itemID); err != nil {
		return err
	}
	delete(t.s.items, itemID)
	return nil
}

func (t *memoryTx) InsertHistory(ctx context.Context, entry HistoryEntry) error {
	entry.ID = t.id()
	entry.CreatedAt = time.Now()
	t.s.history = append(t.s.history, entry)
	return nil
}

func (t *memoryTx) HasActiveReceivable(ctx context.Context, orderID int64) (bool, error) {
	return t.s.receivables[orderID], nil
}

func (t *memoryTx) Stock() inventory.Store {
	return &memoryStock{s: t.s}
}

type memoryStock struct {
	s *memState
}

func (m *memoryStock) LockProduct(ctx context.Context, productID int64) (inventory.Product, error) {
	p, ok := m.s.products[productID]
	if !ok {
		return inventory.Product{}, inventory.ErrProductNotFound
	}
	return p, nil
}

func (m *memoryStock) InsertMovement(ctx context.Context, mv inventory.Movement) (inventory.Movement, error) {
	m.s.nextID++
	mv.ID = m.s.nextID
	m.s.movements = append(m.s.movements, mv)
	return mv, nil
}

func (m *memoryStock) UpdateQuantity(ctx context.Context, productID int64, qty decimal.Decimal) (inventory.Product, error) {
	p := m.s.products[productID]
	p.CurrentQuantity = qty
	m.s.products[productID] = p
	return p, nil
}

type fakeCatalog struct{}

func (fakeCatalog) ResolveParties(ctx context.Context, clientID, vehicleID int64) (masterdata.Client, masterdata.Vehicle, error) {
	if clientID != 1 {
		return masterdata.Client{}, masterdata.Vehicle{}, masterdata.ErrClientNotFound
	}
	if vehicleID != 10 {
		return masterdata.Client{}, masterdata.Vehicle{}, shared.NewValidationError("vehicle_id", "does not belong to client")
	}
	return masterdata.Client{ID: 1, Name: "Ana"}, masterdata.Vehicle{ID: 10, ClientID: 1}, nil
}

func (fakeCatalog) ProductItem(ctx context.Context, productID int64) (masterdata.CatalogItem, error) {
	switch productID {
	case 7:
		return masterdata.CatalogItem{Description: "Oil filter", UnitPrice: decimal.NewFromInt(50)}, nil
	case 8:
		return masterdata.CatalogItem{Description: "Brake pad", UnitPrice: decimal.NewFromInt(30)}, nil
	}
	return masterdata.CatalogItem{}, masterdata.ErrProductNotFound
}

func (fakeCatalog) LaborItem(ctx context.Context, laborTypeID int64) (masterdata.CatalogItem, error) {
	if laborTypeID == 3 {
		return masterdata.CatalogItem{Description: "Alignment", UnitPrice: decimal.NewFromInt(30)}, nil
	}
	return masterdata.CatalogItem{}, masterdata.ErrLaborTypeNotFound
}
