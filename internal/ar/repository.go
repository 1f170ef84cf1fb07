package ar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/workshop/internal/platform/db"
	"github.com/odyssey-erp/workshop/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Receivable, error)
	ListInstallments(ctx context.Context, receivableID int64) ([]Installment, error)
	List(ctx context.Context, filter ListFilter) ([]Receivable, int, error)
	ListOutstanding(ctx context.Context) ([]Receivable, error)
	OverdueCandidates(ctx context.Context, asOf time.Time) ([]int64, error)
}

// TxRepository exposes transactional operations used by service. Callers
// lock the receivable before its installments.
type TxRepository interface {
	LockOrder(ctx context.Context, orderID int64) (OrderSnapshot, error)
	HasActiveReceivable(ctx context.Context, orderID int64) (bool, error)
	InsertReceivable(ctx context.Context, rec Receivable) (Receivable, error)
	InsertInstallments(ctx context.Context, receivableID int64, installments []Installment) ([]Installment, error)

	LockReceivable(ctx context.Context, id int64) (Receivable, error)
	InstallmentReceivableID(ctx context.Context, installmentID int64) (int64, error)
	LockInstallment(ctx context.Context, id int64) (Installment, error)
	ListInstallments(ctx context.Context, receivableID int64) ([]Installment, error)
	UpdateInstallment(ctx context.Context, inst Installment) error
	UpdateReceivableState(ctx context.Context, rec Receivable) error
	CancelReceivable(ctx context.Context, id int64, notes string) error
	CancelUnpaidInstallments(ctx context.Context, receivableID int64) error
}

// Repository persists receivables in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn in a transaction that serialises on locked rows.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const receivableColumns = `id, order_id, client_id, description, due_date, amount, received_amount, received_date,
       status, notes, COALESCE(created_by, 0), created_at, updated_at`

const installmentColumns = `id, receivable_id, sequence, due_date, amount, paid_amount, paid_at, payment_method, status`

// Get loads a receivable with its installments from one snapshot, so the
// rolled-up header always matches the installment set it returns.
func (r *Repository) Get(ctx context.Context, id int64) (Receivable, error) {
	var rec Receivable
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		rec, err = scanReceivable(tx.QueryRow(ctx, `SELECT `+receivableColumns+` FROM accounts_receivable WHERE id = $1`, id))
		if err != nil {
			return err
		}
		rec.Installments, err = listInstallments(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return Receivable{}, err
	}
	return rec, nil
}

// ListInstallments returns the installments of a receivable by sequence.
func (r *Repository) ListInstallments(ctx context.Context, receivableID int64) ([]Installment, error) {
	return listInstallments(ctx, r.pool, receivableID, false)
}

// List returns a page of receivables without installments.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Receivable, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.ClientID > 0 {
		add("client_id = $%d", filter.ClientID)
	}
	if filter.OrderID > 0 {
		add("order_id = $%d", filter.OrderID)
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM accounts_receivable`+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filter.PerPage, shared.Offset(filter.Page, filter.PerPage))
	query := fmt.Sprintf(`SELECT %s FROM accounts_receivable%s ORDER BY due_date, id LIMIT $%d OFFSET $%d`,
		receivableColumns, whereSQL, len(args)-1, len(args))
	out, err := r.queryReceivables(ctx, query, args...)
	return out, total, err
}

// ListOutstanding returns open and overdue receivables.
func (r *Repository) ListOutstanding(ctx context.Context) ([]Receivable, error) {
	return r.queryReceivables(ctx, `SELECT `+receivableColumns+` FROM accounts_receivable WHERE status IN ('open', 'overdue') ORDER BY due_date, id`)
}

// OverdueCandidates lists receivables the sweep may need to touch.
func (r *Repository) OverdueCandidates(ctx context.Context, asOf time.Time) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT ar.id FROM accounts_receivable ar
		WHERE ar.status IN ('open', 'overdue') AND (
			EXISTS (
				SELECT 1 FROM receivable_installments ri
				WHERE ri.receivable_id = ar.id AND ri.status = 'open'
				  AND ri.due_date < $1::date AND ri.paid_amount < ri.amount
			)
			OR (
				ar.status = 'open' AND ar.due_date < $1::date AND ar.received_amount < ar.amount
				AND NOT EXISTS (SELECT 1 FROM receivable_installments ri WHERE ri.receivable_id = ar.id)
			)
		)
		ORDER BY ar.id`, pgtype.Date{Time: asOf, Valid: true})
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) queryReceivables(ctx context.Context, query string, args ...any) ([]Receivable, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receivable
	for rows.Next() {
		rec, err := scanReceivable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type txRepo struct {
	q db.Querier
}

func (t *txRepo) LockOrder(ctx context.Context, orderID int64) (OrderSnapshot, error) {
	var o OrderSnapshot
	err := t.q.QueryRow(ctx, `SELECT id, client_id, status, total FROM service_orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.ClientID, &o.Status, &o.Total)
	if err != nil {
		if db.IsNoRows(err) {
			return OrderSnapshot{}, ErrOrderNotFound
		}
		return OrderSnapshot{}, err
	}
	return o, nil
}

func (t *txRepo) HasActiveReceivable(ctx context.Context, orderID int64) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts_receivable WHERE order_id = $1 AND status <> 'cancelled')`, orderID).Scan(&exists)
	return exists, err
}

func (t *txRepo) InsertReceivable(ctx context.Context, rec Receivable) (Receivable, error) {
	err := t.q.QueryRow(ctx, `
		INSERT INTO accounts_receivable (
			order_id, client_id, description, due_date, amount, received_amount, status, notes, created_by
		) VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)
		RETURNING id, created_at, updated_at`,
		nullableID(rec.OrderID), rec.ClientID, rec.Description, pgtype.Date{Time: rec.DueDate, Valid: true},
		rec.Amount, string(rec.Status), rec.Notes, pgtype.Int8{Int64: rec.CreatedBy, Valid: rec.CreatedBy != 0},
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Receivable{}, ErrReceivableExists
		}
		return Receivable{}, fmt.Errorf("insert receivable: %w", err)
	}
	return rec, nil
}

func (t *txRepo) InsertInstallments(ctx context.Context, receivableID int64, installments []Installment) ([]Installment, error) {
	out := make([]Installment, 0, len(installments))
	for _, inst := range installments {
		inst.ReceivableID = receivableID
		err := t.q.QueryRow(ctx, `
			INSERT INTO receivable_installments (receivable_id, sequence, due_date, amount, paid_amount, status)
			VALUES ($1, $2, $3, $4, 0, $5)
			RETURNING id`,
			receivableID, inst.Sequence, pgtype.Date{Time: inst.DueDate, Valid: true}, inst.Amount, string(inst.Status),
		).Scan(&inst.ID)
		if err != nil {
			return nil, fmt.Errorf("insert installment %d: %w", inst.Sequence, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

func (t *txRepo) LockReceivable(ctx context.Context, id int64) (Receivable, error) {
	return scanReceivable(t.q.QueryRow(ctx, `SELECT `+receivableColumns+` FROM accounts_receivable WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) InstallmentReceivableID(ctx context.Context, installmentID int64) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `SELECT receivable_id FROM receivable_installments WHERE id = $1`, installmentID).Scan(&id)
	if db.IsNoRows(err) {
		return 0, ErrInstallmentNotFound
	}
	return id, err
}

func (t *txRepo) LockInstallment(ctx context.Context, id int64) (Installment, error) {
	return scanInstallment(t.q.QueryRow(ctx, `SELECT `+installmentColumns+` FROM receivable_installments WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) ListInstallments(ctx context.Context, receivableID int64) ([]Installment, error) {
	return listInstallments(ctx, t.q, receivableID, true)
}

func (t *txRepo) UpdateInstallment(ctx context.Context, inst Installment) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE receivable_installments
		SET due_date = $2, amount = $3, paid_amount = $4, paid_at = $5, payment_method = $6, status = $7
		WHERE id = $1`,
		inst.ID, pgtype.Date{Time: inst.DueDate, Valid: true}, inst.Amount, inst.PaidAmount,
		timestamptz(inst.PaidAt), inst.PaymentMethod, string(inst.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInstallmentNotFound
	}
	return nil
}

func (t *txRepo) UpdateReceivableState(ctx context.Context, rec Receivable) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE accounts_receivable
		SET status = $2, received_amount = $3, received_date = $4, updated_at = NOW()
		WHERE id = $1`,
		rec.ID, string(rec.Status), rec.ReceivedAmount, timestamptz(rec.ReceivedDate))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReceivableNotFound
	}
	return nil
}

func (t *txRepo) CancelReceivable(ctx context.Context, id int64, notes string) error {
	tag, err := t.q.Exec(ctx, `UPDATE accounts_receivable SET status = 'cancelled', notes = $2, updated_at = NOW() WHERE id = $1`, id, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReceivableNotFound
	}
	return nil
}

func (t *txRepo) CancelUnpaidInstallments(ctx context.Context, receivableID int64) error {
	_, err := t.q.Exec(ctx, `UPDATE receivable_installments SET status = 'cancelled' WHERE receivable_id = $1 AND status <> 'paid'`, receivableID)
	return err
}

func listInstallments(ctx context.Context, q db.Querier, receivableID int64, lock bool) ([]Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM receivable_installments WHERE receivable_id = $1 ORDER BY sequence`
	if lock {
		query += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, query, receivableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanReceivable(row pgx.Row) (Receivable, error) {
	var (
		rec          Receivable
		orderID      pgtype.Int8
		dueDate      pgtype.Date
		receivedDate pgtype.Timestamptz
	)
	err := row.Scan(&rec.ID, &orderID, &rec.ClientID, &rec.Description, &dueDate, &rec.Amount, &rec.ReceivedAmount,
		&receivedDate, &rec.Status, &rec.Notes, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Receivable{}, ErrReceivableNotFound
		}
		return Receivable{}, err
	}
	if orderID.Valid {
		id := orderID.Int64
		rec.OrderID = &id
	}
	rec.DueDate = dueDate.Time
	if receivedDate.Valid {
		t := receivedDate.Time
		rec.ReceivedDate = &t
	}
	return rec, nil
}

func scanInstallment(row pgx.Row) (Installment, error) {
	var (
		inst    Installment
		dueDate pgtype.Date
		paidAt  pgtype.Timestamptz
	)
	err := row.Scan(&inst.ID, &inst.ReceivableID, &inst.Sequence, &dueDate, &inst.Amount, &inst.PaidAmount,
		&paidAt, &inst.PaymentMethod, &inst.Status)
	if err != nil {
		if db.IsNoRows(err) {
			return Installment{}, ErrInstallmentNotFound
		}
		return Installment{}, err
	}
	inst.DueDate = dueDate.Time
	if paidAt.Valid {
		t := paidAt.Time
		inst.PaidAt = &t
	}
	return inst, nil
}

func nullableID(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
