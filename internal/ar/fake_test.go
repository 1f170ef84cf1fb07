package ar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

type arState struct {
	orders       map[int64]OrderSnapshot
	receivables  map[int64]Receivable
	installments map[int64]Installment
	nextID       int64
}

func (s arState) clone() arState {
	out := s
	out.orders = make(map[int64]OrderSnapshot, len(s.orders))
	for k, v := range s.orders {
		out.orders[k] = v
	}
	out.receivables = make(map[int64]Receivable, len(s.receivables))
	for k, v := range s.receivables {
		out.receivables[k] = v
	}
	out.installments = make(map[int64]Installment, len(s.installments))
	for k, v := range s.installments {
		out.installments[k] = v
	}
	return out
}

type memoryRepo struct {
	mu      sync.Mutex
	state   arState
	failFor map[int64]error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: arState{
		orders:       map[int64]OrderSnapshot{},
		receivables:  map[int64]Receivable{},
		installments: map[int64]Installment{},
	}}
}

func (r *memoryRepo) addOrder(id int64, status, total string) {
	r.state.orders[id] = OrderSnapshot{ID: id, ClientID: 1, Status: status, Total: decimal.RequireFromString(total)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{r: r}); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Receivable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.state.receivables[id]
	if !ok {
		return Receivable{}, ErrReceivableNotFound
	}
	rec.Installments = r.installmentsOf(id)
	return rec, nil
}

func (r *memoryRepo) ListInstallments(ctx context.Context, receivableID int64) ([]Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.installmentsOf(receivableID), nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Receivable, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Receivable
	for _, rec := range r.sortedReceivables() {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if filter.ClientID != 0 && rec.ClientID != filter.ClientID {
			continue
		}
		out = append(out, rec)
	}
	total := len(out)
	start := (filter.Page - 1) * filter.PerPage
	if start > total {
		start = total
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memoryRepo) ListOutstanding(ctx context.Context) ([]Receivable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Receivable
	for _, rec := range r.sortedReceivables() {
		if rec.Status == StatusOpen || rec.Status == StatusOverdue {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) OverdueCandidates(ctx context.Context, asOf time.Time) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, rec := range r.sortedReceivables() {
		if rec.Status == StatusOpen || rec.Status == StatusOverdue {
			ids = append(ids, rec.ID)
		}
	}
	return ids, nil
}

func (r *memoryRepo) sortedReceivables() []Receivable {
	out := make([]Receivable, 0, len(r.state.receivables))
	for _, rec := range r.state.receivables {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memoryRepo) installmentsOf(receivableID int64) []Installment {
	var out []Installment
	for _, inst := range r.state.installments {
		if inst.ReceivableID == receivableID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

type memoryTx struct {
	r *memoryRepo
}

func (t *memoryTx) s() *arState { return &t.r.state }

func (t *memoryTx) LockOrder(ctx context.Context, orderID int64) (OrderSnapshot, error) {
	order, ok := t.s().orders[orderID]
	if !ok {
		return OrderSnapshot{}, ErrOrderNotFound
	}
	return order, nil
}

func (t *memoryTx) HasActiveReceivable(ctx context.Context, orderID int64) (bool, error) {
	for _, rec := range t.s().receivables {
		if rec.OrderID != nil && *rec.OrderID == orderID && rec.Status != StatusCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertReceivable(ctx context.Context, rec Receivable) (Receivable, error) {
	t.s().nextID++
	rec.ID = t.s().nextID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	t.s().receivables[rec.ID] = rec
	return rec, nil
}

func (t *memoryTx) InsertInstallments(ctx context.Context, receivableID int64, installments []Installment) ([]Installment, error) {
	out := make([]Installment, len(installments))
	for i, inst := range installments {
		t.s().nextID++
		inst.ID = t.s().nextID
		inst.ReceivableID = receivableID
		t.s().installments[inst.ID] = inst
		out[i] = inst
	}
	return out, nil
}

func (t *memoryTx) LockReceivable(ctx context.Context, id int64) (Receivable, error) {
	if err := t.r.failFor[id]; err != nil {
		return Receivable{}, err
	}
	rec, ok := t.s().receivables[id]
	if !ok {
		return Receivable{}, ErrReceivableNotFound
	}
	return rec, nil
}

func (t *memoryTx) InstallmentReceivableID(ctx context.Context, installmentID int64) (int64, error) {
	inst, ok := t.s().installments[installmentID]
	if !ok {
		return 0, ErrInstallmentNotFound
	}
	return inst.ReceivableID, nil
}

func (t *memoryTx) LockInstallment(ctx context.Context, id int64) (Installment, error) {
	inst, ok := t.s().installments[id]
	if !ok {
		return Installment{}, ErrInstallmentNotFound
	}
	return inst, nil
}

func (t *memoryTx) ListInstallments(ctx context.Context, receivableID int64) ([]Installment, error) {
	return t.r.installmentsOf(receivableID), nil
}

func (t *memoryTx) UpdateInstallment(ctx context.Context, inst Installment) error {
	if _, ok := t.s().installments[inst.ID]; !ok {
		return ErrInstallmentNotFound
	}
	t.s().installments[inst.ID] = inst
	return nil
}

func (t *memoryTx) UpdateReceivableState(ctx context.Context, rec Receivable) error {
	current, ok := t.s().receivables[rec.ID]
	if !ok {
		return ErrReceivableNotFound
	}
	current.Status = rec.Status
	current.ReceivedAmount = rec.ReceivedAmount
	current.ReceivedDate = rec.ReceivedDate
	t.s().receivables[rec.ID] = current
	return nil
}

func (t *memoryTx) CancelReceivable(ctx context.Context, id int64, notes string) error {
	rec, ok := t.s().receivables[id]
	if !ok {
		return ErrReceivableNotFound
	}
	rec.Status = StatusCancelled
	rec.Notes = notes
	t.s().receivables[id] = rec
	return nil
}

func (t *memoryTx) CancelUnpaidInstallments(ctx context.Context, receivableID int64) error {
	for id, inst := range t.s().installments {
		if inst.ReceivableID == receivableID && inst.Status != StatusPaid {
			inst.Status = StatusCancelled
			t.s().installments[id] = inst
		}
	}
	return nil
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}
