package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/workshop/internal/ar"
	jobmetrics "github.com/odyssey-erp/workshop/internal/jobs"
	"github.com/odyssey-erp/workshop/internal/platform/cache"
	"github.com/odyssey-erp/workshop/internal/shared"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DefaultSweepLockTTL bounds how long one worker may hold the sweep lock.
const DefaultSweepLockTTL = 10 * time.Minute

// OverdueMarker is the receivable service behaviour the sweep needs.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (ar.SweepResult, error)
}

// JobLocker hands out the distributed lock guarding the sweep.
type JobLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
}

// OverdueSweepJob runs the daily overdue sweep on one worker at a time.
type OverdueSweepJob struct {
	Service OverdueMarker
	Locker  JobLocker
	LockTTL time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewOverdueSweepJob constructs the job handler. locker may be nil when a
// single worker runs.
func NewOverdueSweepJob(service OverdueMarker, locker JobLocker, lockTTL time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	if lockTTL <= 0 {
		lockTTL = DefaultSweepLockTTL
	}
	return &OverdueSweepJob{
		Service: service,
		Locker:  locker,
		LockTTL: lockTTL,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the sweep task.
func (j *OverdueSweepJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload MarkOverduePayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload.AsOf)
	if errors.Is(err, cache.ErrLockHeld) {
		return nil
	}
	return err
}

// Run sweeps as of asOf (now when zero). It returns cache.ErrLockHeld
// without sweeping when another worker holds the lock.
func (j *OverdueSweepJob) Run(ctx context.Context, asOf time.Time) (result ar.SweepResult, resultErr error) {
	if j == nil || j.Service == nil {
		return ar.SweepResult{}, errors.New("overdue sweep: service not configured")
	}
	if asOf.IsZero() {
		asOf = j.now()
	}
	tracker := j.metrics().Track(TaskMarkOverdue)

	if j.Locker != nil {
		lock, err := j.Locker.Acquire(ctx, shared.JobLockKey(TaskMarkOverdue), j.LockTTL)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				tracker.Skip("locked")
				j.log().Info("sweep already running elsewhere")
				return ar.SweepResult{}, err
			}
			j.log().Error("acquire sweep lock", slog.Any("error", err))
			return ar.SweepResult{}, tracker.End(fmt.Errorf("acquire sweep lock: %w", err))
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				j.log().Warn("release sweep lock", slog.Any("error", err))
			}
		}()
	}
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	result, err := j.Service.MarkOverdue(ctx, asOf)
	j.metrics().AddOverdue("installment", result.Installments)
	j.metrics().AddOverdue("receivable", result.Receivables)
	if err != nil {
		j.log().Error("mark overdue", slog.Time("as_of", asOf), slog.Any("error", err))
		return result, err
	}
	j.log().Info("marked overdue",
		slog.Time("as_of", asOf),
		slog.Int("installments", result.Installments),
		slog.Int("receivables", result.Receivables),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (j *OverdueSweepJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueSweepJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskMarkOverdue))
	}
	return slog.Default().With(slog.String("job", TaskMarkOverdue))
}

func (j *OverdueSweepJob) now() time.Time {
	if j != nil && j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// WithClock overrides the internal clock for deterministic tests.
func (j *OverdueSweepJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}
