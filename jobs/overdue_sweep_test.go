package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/workshop/internal/ar"
	jobmetrics "github.com/odyssey-erp/workshop/internal/jobs"
	"github.com/odyssey-erp/workshop/internal/platform/cache"
	"github.com/odyssey-erp/workshop/internal/shared"
)

type stubMarker struct {
	mu     sync.Mutex
	calls  []time.Time
	result ar.SweepResult
	err    error
}

func (s *stubMarker) MarkOverdue(ctx context.Context, asOf time.Time) (ar.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, asOf)
	return s.result, s.err
}

func newLocker(t *testing.T) (*cache.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewLocker(client), mr
}

func TestOverdueSweepRunsAndReleasesLock(t *testing.T) {
	locker, mr := newLocker(t)
	marker := &stubMarker{result: ar.SweepResult{Installments: 2, Receivables: 1}}
	job := NewOverdueSweepJob(marker, locker, time.Minute, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	fixed := time.Date(2026, time.March, 10, 0, 30, 0, 0, time.UTC)
	job.WithClock(func() time.Time { return fixed })

	result, err := job.Run(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Installments)
	require.Len(t, marker.calls, 1)
	assert.Equal(t, fixed, marker.calls[0])
	assert.False(t, mr.Exists(shared.JobLockKey(TaskMarkOverdue)))
}

func TestOverdueSweepCountsLockFailure(t *testing.T) {
	locker, mr := newLocker(t)
	mr.Close()

	registry := prometheus.NewRegistry()
	marker := &stubMarker{}
	job := NewOverdueSweepJob(marker, locker, time.Minute, nil, jobmetrics.NewMetrics(registry))

	_, err := job.Run(context.Background(), time.Time{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrLockHeld)
	assert.Contains(t, err.Error(), "acquire sweep lock")
	assert.Empty(t, marker.calls)

	expected := `
# HELP workshop_jobs_failures_total Total failures observed for background jobs.
# TYPE workshop_jobs_failures_total counter
workshop_jobs_failures_total{job="receivables:mark_overdue"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "workshop_jobs_failures_total"))
}

func TestOverdueSweepSkipsWhenLocked(t *testing.T) {
	locker, _ := newLocker(t)
	held, err := locker.Acquire(context.Background(), shared.JobLockKey(TaskMarkOverdue), time.Minute)
	require.NoError(t, err)
	defer func() { _ = held.Release(context.Background()) }()

	marker := &stubMarker{}
	job := NewOverdueSweepJob(marker, locker, time.Minute, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	_, err = job.Run(context.Background(), time.Time{})
	require.ErrorIs(t, err, cache.ErrLockHeld)
	assert.Empty(t, marker.calls)

	task, err := NewMarkOverdueTask(time.Time{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task), "a held lock is not a task failure")
}

func TestOverdueSweepPropagatesServiceError(t *testing.T) {
	boom := errors.New("boom")
	marker := &stubMarker{err: boom, result: ar.SweepResult{Receivables: 1}}
	job := NewOverdueSweepJob(marker, nil, 0, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewMarkOverdueTask(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, boom)
	require.Len(t, marker.calls, 1)
	assert.Equal(t, 1, marker.calls[0].Day())
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	job := NewOverdueSweepJob(&stubMarker{}, nil, 0, nil, nil)
	err := job.Handle(context.Background(), asynq.NewTask(TaskMarkOverdue, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestJobsHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
}
