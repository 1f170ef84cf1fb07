package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/workshop/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	DefaultTermDays int
}

// Service orchestrates receivable generation and reconciliation.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	logger   *slog.Logger
	termDays int
	now      func() time.Time
}

// NewService builds Service. audit and logger may be nil.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	term := cfg.DefaultTermDays
	if term <= 0 {
		term = DefaultTermDays
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, termDays: term, now: time.Now}
}

// Generate creates the receivable for a finished order, optionally split
// into installments. At most one non-cancelled receivable exists per order.
func (s *Service) Generate(ctx context.Context, orderID int64, opts GenerateOptions) (Receivable, error) {
	if orderID <= 0 {
		return Receivable{}, shared.NewValidationError("order_id", "is required")
	}
	if opts.UseInstallments {
		if err := validateCount(opts.InstallmentCount); err != nil {
			return Receivable{}, err
		}
	}
	now := s.now().UTC()
	var rec Receivable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != orderStatusFinished {
			return ErrOrderNotFinished
		}
		if !order.Total.IsPositive() {
			return shared.NewValidationError("total", "order total must be positive")
		}
		exists, err := tx.HasActiveReceivable(ctx, orderID)
		if err != nil {
			return err
		}
		if exists {
			return ErrReceivableExists
		}

		dueDate := dateOf(now).AddDate(0, 0, s.termDays)
		if opts.DueDate != nil {
			dueDate = dateOf(*opts.DueDate)
		}
		var installments []Installment
		if opts.UseInstallments {
			first := dueDate
			if opts.FirstDueDate != nil {
				first = dateOf(*opts.FirstDueDate)
			}
			installments, err = buildInstallments(order.Total, opts.InstallmentCount, first)
			if err != nil {
				return err
			}
			dueDate = installments[len(installments)-1].DueDate
		}

		description := strings.TrimSpace(opts.Description)
		if description == "" {
			description = fmt.Sprintf("Service order #%d", orderID)
		}
		id := orderID
		rec, err = tx.InsertReceivable(ctx, Receivable{
			OrderID:        &id,
			ClientID:       order.ClientID,
			Description:    description,
			DueDate:        dueDate,
			Amount:         order.Total,
			ReceivedAmount: decimal.Zero,
			Status:         StatusOpen,
			Notes:          opts.Notes,
			CreatedBy:      opts.ActorID,
		})
		if err != nil {
			return err
		}
		if len(installments) > 0 {
			rec.Installments, err = tx.InsertInstallments(ctx, rec.ID, installments)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Receivable{}, err
	}
	s.record(ctx, opts.ActorID, "receivable:generate", rec.ID, map[string]any{
		"order_id":     orderID,
		"amount":       rec.Amount.StringFixed(2),
		"installments": len(rec.Installments),
	})
	return rec, nil
}

func buildInstallments(total decimal.Decimal, n int, first time.Time) ([]Installment, error) {
	amounts, err := SplitAmount(total, n)
	if err != nil {
		return nil, err
	}
	dates := ScheduleDueDates(first, n)
	out := make([]Installment, n)
	for i := range amounts {
		out[i] = Installment{
			Sequence:   i + 1,
			DueDate:    dates[i],
			Amount:     amounts[i],
			PaidAmount: decimal.Zero,
			Status:     StatusOpen,
		}
	}
	return out, nil
}

// ApplyInstallmentPayment records a payment or reversal on an installment
// and rolls the receivable up in the same transaction.
func (s *Service) ApplyInstallmentPayment(ctx context.Context, installmentID int64, input PaymentInput) (Installment, error) {
	if input.PaidAmount.IsNegative() {
		return Installment{}, shared.NewValidationError("paid_amount", "must not be negative")
	}
	now := s.now()
	var updated Installment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		receivableID, err := tx.InstallmentReceivableID(ctx, installmentID)
		if err != nil {
			return err
		}
		rec, err := tx.LockReceivable(ctx, receivableID)
		if err != nil {
			return err
		}
		if rec.Status == StatusCancelled {
			return ErrReceivableCancelled
		}
		inst, err := tx.LockInstallment(ctx, installmentID)
		if err != nil {
			return err
		}
		updated, err = PaymentOutcome(inst, input.PaidAmount, input.Method, input.PaidAt, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateInstallment(ctx, updated); err != nil {
			return err
		}
		return rollUp(ctx, tx, rec)
	})
	if err != nil {
		return Installment{}, err
	}
	s.record(ctx, input.ActorID, "installment:payment", updated.ReceivableID, map[string]any{
		"installment_id": installmentID,
		"paid_amount":    updated.PaidAmount.StringFixed(2),
		"status":         string(updated.Status),
	})
	return updated, nil
}

// RegisterReceipt records a payment on a receivable without installments.
func (s *Service) RegisterReceipt(ctx context.Context, receivableID int64, input PaymentInput) (Receivable, error) {
	if input.PaidAmount.IsNegative() {
		return Receivable{}, shared.NewValidationError("paid_amount", "must not be negative")
	}
	now := s.now()
	var rec Receivable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.LockReceivable(ctx, receivableID)
		if err != nil {
			return err
		}
		installments, err := tx.ListInstallments(ctx, receivableID)
		if err != nil {
			return err
		}
		if len(installments) > 0 {
			return ErrHasInstallments
		}
		rec, err = ReceiptOutcome(current, input.PaidAmount, input.PaidAt, now)
		if err != nil {
			return err
		}
		return tx.UpdateReceivableState(ctx, rec)
	})
	if err != nil {
		return Receivable{}, err
	}
	s.record(ctx, input.ActorID, "receivable:receipt", receivableID, map[string]any{
		"received_amount": rec.ReceivedAmount.StringFixed(2),
		"status":          string(rec.Status),
	})
	return rec, nil
}

// UpdateInstallment edits the due date or amount of one installment. The
// installment sum is not re-validated; the roll-up is recomputed.
func (s *Service) UpdateInstallment(ctx context.Context, installmentID int64, patch InstallmentPatch) (Installment, error) {
	if patch.Amount != nil && !patch.Amount.IsPositive() {
		return Installment{}, shared.NewValidationError("amount", "must be positive")
	}
	now := s.now()
	var updated Installment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		receivableID, err := tx.InstallmentReceivableID(ctx, installmentID)
		if err != nil {
			return err
		}
		rec, err := tx.LockReceivable(ctx, receivableID)
		if err != nil {
			return err
		}
		if rec.Status == StatusCancelled {
			return ErrReceivableCancelled
		}
		inst, err := tx.LockInstallment(ctx, installmentID)
		if err != nil {
			return err
		}
		if patch.DueDate != nil {
			inst.DueDate = dateOf(*patch.DueDate)
		}
		if patch.Amount != nil {
			inst.Amount = shared.RoundMoney(*patch.Amount)
		}
		updated, err = PaymentOutcome(inst, inst.PaidAmount, inst.PaymentMethod, inst.PaidAt, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateInstallment(ctx, updated); err != nil {
			return err
		}
		return rollUp(ctx, tx, rec)
	})
	if err != nil {
		return Installment{}, err
	}
	return updated, nil
}

// Cancel cancels a receivable and its unpaid installments, freeing the
// order for regeneration or deletion.
func (s *Service) Cancel(ctx context.Context, receivableID int64, reason string, actorID int64) (Receivable, error) {
	var rec Receivable
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rec, err = tx.LockReceivable(ctx, receivableID)
		if err != nil {
			return err
		}
		switch rec.Status {
		case StatusCancelled:
			return nil
		case StatusPaid:
			return ErrReceivablePaid
		}
		notes := rec.Notes
		if reason = strings.TrimSpace(reason); reason != "" {
			if notes != "" {
				notes += "\n"
			}
			notes += "cancelled: " + reason
		}
		if err := tx.CancelReceivable(ctx, receivableID, notes); err != nil {
			return err
		}
		if err := tx.CancelUnpaidInstallments(ctx, receivableID); err != nil {
			return err
		}
		rec.Status = StatusCancelled
		rec.Notes = notes
		return nil
	})
	if err != nil {
		return Receivable{}, err
	}
	s.record(ctx, actorID, "receivable:cancel", receivableID, map[string]any{"reason": reason})
	return rec, nil
}

// MarkOverdue flags open installments and single receivables due before
// asOf. Each receivable is handled in its own transaction; failures are
// logged and the sweep continues.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (SweepResult, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	ids, err := s.repo.OverdueCandidates(ctx, asOf)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list overdue candidates: %w", err)
	}
	var (
		result SweepResult
		errs   []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		changedInstallments, changedReceivable, err := s.sweepOne(ctx, id, asOf)
		if err != nil {
			s.logger.Error("overdue sweep failed", slog.Int64("receivable_id", id), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		result.Installments += changedInstallments
		if changedReceivable {
			result.Receivables++
		}
	}
	return result, errors.Join(errs...)
}

func (s *Service) sweepOne(ctx context.Context, receivableID int64, asOf time.Time) (int, bool, error) {
	var (
		changedInstallments int
		changedReceivable   bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.LockReceivable(ctx, receivableID)
		if err != nil {
			return err
		}
		if rec.Status == StatusCancelled || rec.Status == StatusPaid {
			return nil
		}
		installments, err := tx.ListInstallments(ctx, receivableID)
		if err != nil {
			return err
		}
		if len(installments) == 0 {
			if !SweepSingle(rec, asOf) {
				return nil
			}
			rec.Status = StatusOverdue
			changedReceivable = true
			return tx.UpdateReceivableState(ctx, rec)
		}
		swept, changed := SweepInstallments(installments, asOf)
		for _, inst := range changed {
			if err := tx.UpdateInstallment(ctx, inst); err != nil {
				return err
			}
		}
		changedInstallments = len(changed)
		roll := DeriveStatus(rec.Amount, swept)
		changedReceivable = roll.Status != rec.Status
		return applyRollUp(ctx, tx, rec, roll)
	})
	return changedInstallments, changedReceivable, err
}

// Get returns a receivable with its installments.
func (s *Service) Get(ctx context.Context, id int64) (Receivable, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of receivables.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Receivable, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, shared.NewValidationError("status", "unknown status")
	}
	filter.Page, filter.PerPage = shared.NormalizePage(filter.Page, filter.PerPage)
	return s.repo.List(ctx, filter)
}

// Aging groups outstanding balances by days past due.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingBucket, error) {
	receivables, err := s.repo.ListOutstanding(ctx)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	return CalculateAging(receivables, asOf), nil
}

// CalculateAging buckets the unpaid part of each receivable.
func CalculateAging(receivables []Receivable, asOf time.Time) AgingBucket {
	bucket := AgingBucket{
		Current: decimal.Zero, Bucket30: decimal.Zero, Bucket60: decimal.Zero,
		Bucket90: decimal.Zero, Bucket120: decimal.Zero,
	}
	for _, rec := range receivables {
		if rec.Status == StatusPaid || rec.Status == StatusCancelled {
			continue
		}
		outstanding := rec.Amount.Sub(rec.ReceivedAmount)
		if !outstanding.IsPositive() {
			continue
		}
		days := int(dateOf(asOf).Sub(dateOf(rec.DueDate)).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(outstanding)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(outstanding)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(outstanding)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(outstanding)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(outstanding)
		}
	}
	return bucket
}

func rollUp(ctx context.Context, tx TxRepository, rec Receivable) error {
	installments, err := tx.ListInstallments(ctx, rec.ID)
	if err != nil {
		return err
	}
	return applyRollUp(ctx, tx, rec, DeriveStatus(rec.Amount, installments))
}

func applyRollUp(ctx context.Context, tx TxRepository, rec Receivable, roll RollUp) error {
	rec.Status = roll.Status
	rec.ReceivedAmount = roll.ReceivedAmount
	rec.ReceivedDate = roll.ReceivedDate
	return tx.UpdateReceivableState(ctx, rec)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, receivableID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "accounts_receivable",
		EntityID: strconv.FormatInt(receivableID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
