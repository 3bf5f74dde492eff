package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"PrintRelay/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapRelayState(t *testing.T) {
	tests := map[string]models.PrintJobStatus{
		"done":        models.PrintJobSuccess,
		"error":       models.PrintJobError,
		"expired":     models.PrintJobError,
		"deleted":     models.PrintJobError,
		"queued":      models.PrintJobSent,
		"in-progress": models.PrintJobSent,
		"in_progress": models.PrintJobSent,
		"new":         models.PrintJobPending,
		"":            models.PrintJobPending,
	}
	for state, want := range tests {
		assert.Equal(t, want, MapRelayState(state), "state %q", state)
	}
}

func TestCheckOneMapsRelayStates(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	store := newTestStore(t)
	observer := &recordingObserver{}
	reconciler := NewReconcileService(relay, store, nil, observer)

	done := insertJob(t, store, models.PrintJobSent, "r-done")
	expired := insertJob(t, store, models.PrintJobSent, "r-expired")
	queued := insertJob(t, store, models.PrintJobSent, "r-queued")
	relay.states["r-done"] = "done"
	relay.states["r-expired"] = "expired"
	relay.states["r-queued"] = "queued"

	changed, err := reconciler.CheckOne(ctx, done)
	require.NoError(t, err)
	assert.True(t, changed)
	stored, err := store.Get(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSuccess, stored.Status)

	changed, err = reconciler.CheckOne(ctx, expired)
	require.NoError(t, err)
	assert.True(t, changed)
	stored, err = store.Get(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobError, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "expired")

	changed, err = reconciler.CheckOne(ctx, queued)
	require.NoError(t, err)
	assert.False(t, changed)
	stored, err = store.Get(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSent, stored.Status)

	assert.Equal(t, 2, observer.count())
}

func TestCheckOneSkipsJobsWithoutRemoteID(t *testing.T) {
	relay := newFakeRelay()
	store := newTestStore(t)
	reconciler := NewReconcileService(relay, store, nil, nil)

	job := insertJob(t, store, models.PrintJobSent, "")
	changed, err := reconciler.CheckOne(context.Background(), job)
	require.NoError(t, err)
	assert.False(t, changed)

	failed := insertJob(t, store, models.PrintJobError, "r-1")
	relay.states["r-1"] = "done"
	changed, err = reconciler.CheckOne(context.Background(), failed)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCheckAllPendingToleratesFailures(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	store := newTestStore(t)
	reconciler := NewReconcileService(relay, store, nil, nil)

	a := insertJob(t, store, models.PrintJobSent, "r-a")
	b := insertJob(t, store, models.PrintJobSent, "r-b")
	c := insertJob(t, store, models.PrintJobSent, "r-c")
	insertJob(t, store, models.PrintJobSent, "")
	relay.states["r-a"] = "done"
	relay.statusErrs["r-b"] = &RelayError{Action: "job-status", StatusCode: 502, Message: "bad gateway"}
	relay.states["r-c"] = "deleted"

	changed, err := reconciler.CheckAllPending(ctx, "store-1")
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	stored, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSuccess, stored.Status)

	stored, err = store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSent, stored.Status)

	stored, err = store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobError, stored.Status)
}

func TestManualRetryResendsFailedJob(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	store := newTestStore(t)
	reconciler := NewReconcileService(relay, store, nil, nil)

	job := insertJob(t, store, models.PrintJobError, "")
	msg := "printer offline"
	require.NoError(t, store.Update(ctx, job.ID, map[string]interface{}{"error_message": msg}))
	job.ErrorMessage = &msg

	printer := models.PrinterTarget{ID: "p2", PaperWidth: models.PaperWidth58}
	retried, err := reconciler.ManualRetry(ctx, job, printer)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSent, retried.Status)

	require.Equal(t, 1, relay.submitCount())
	call := relay.calls[0]
	assert.Equal(t, "p2", call.PrinterID)
	assert.Contains(t, string(call.Payload), "REPRINT")
	assert.Contains(t, string(call.Payload), job.ID)

	stored, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSent, stored.Status)
	require.NotNil(t, stored.RemoteJobID)
	assert.Equal(t, "101", *stored.RemoteJobID)
	assert.Nil(t, stored.ErrorMessage)
	assert.Equal(t, "p2", stored.PrinterID)
}

func TestManualRetryRejectsNonErrorJobs(t *testing.T) {
	relay := newFakeRelay()
	store := newTestStore(t)
	reconciler := NewReconcileService(relay, store, nil, nil)

	job := insertJob(t, store, models.PrintJobSent, "r-1")
	_, err := reconciler.ManualRetry(context.Background(), job, models.PrinterTarget{ID: "p1"})
	assert.True(t, errors.Is(err, ErrJobNotRetryable))
	assert.Equal(t, 0, relay.submitCount())
}

func TestManualRetryFailureKeepsError(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	relay.failAlways = errors.New("relay down")
	store := newTestStore(t)
	reconciler := NewReconcileService(relay, store, nil, nil)

	job := insertJob(t, store, models.PrintJobError, "")
	_, err := reconciler.ManualRetry(ctx, job, models.PrinterTarget{ID: "p1"})
	require.Error(t, err)

	stored, err := store.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobError, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "relay down", *stored.ErrorMessage)
}

func TestReconcileWorkerRunOnce(t *testing.T) {
	relay := newFakeRelay()
	store := newTestStore(t)
	reconciler := NewReconcileService(relay, store, nil, nil)

	insertJob(t, store, models.PrintJobSent, "r-1")
	relay.states["r-1"] = "done"

	worker := NewReconcileWorker(reconciler, "store-1", time.Hour, nil)
	assert.Equal(t, 1, worker.RunOnce(context.Background()))
	assert.Equal(t, 0, worker.RunOnce(context.Background()))
}

func TestReconcileWorkerStartStop(t *testing.T) {
	relay := newFakeRelay()
	store := newTestStore(t)
	reconciler := NewReconcileService(relay, store, nil, nil)

	job := insertJob(t, store, models.PrintJobSent, "r-1")
	relay.states["r-1"] = "done"

	worker := NewReconcileWorker(reconciler, "", 10*time.Millisecond, nil)
	worker.Start()
	assert.True(t, worker.IsRunning())

	assert.Eventually(t, func() bool {
		stored, err := store.Get(context.Background(), job.ID)
		return err == nil && stored.Status == models.PrintJobSuccess
	}, time.Second, 10*time.Millisecond)

	worker.Stop()
	assert.False(t, worker.IsRunning())
}
