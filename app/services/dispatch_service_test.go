package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PrintRelay/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideNextAction(t *testing.T) {
	tests := []struct {
		attempt, max int
		want         NextAction
	}{
		{0, 2, ActionRetry},
		{1, 2, ActionRetry},
		{2, 2, ActionGiveUp},
		{3, 2, ActionGiveUp},
		{0, 0, ActionGiveUp},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecideNextAction(tt.attempt, tt.max), "attempt=%d max=%d", tt.attempt, tt.max)
	}
}

// newTestDispatcher returns a dispatcher whose waits are recorded instead of slept
func newTestDispatcher(relay JobSubmitter, store PrintJobStore, observer PrintJobObserver) (*DispatchService, *[]time.Duration) {
	waits := &[]time.Duration{}
	d := NewDispatchService(relay, store, nil, WithDispatchObserver(observer))
	d.wait = func(ctx context.Context, delay time.Duration) error {
		*waits = append(*waits, delay)
		return ctx.Err()
	}
	return d, waits
}

func testRequest() DispatchRequest {
	return DispatchRequest{
		StoreID:     "store-1",
		OrderID:     "order-abc",
		OrderNumber: 42,
		Printer:     models.PrinterTarget{ID: "p1", Name: "Counter"},
		Payload:     []byte("receipt"),
		Title:       "Order #42",
	}
}

func TestDispatchRetryCeiling(t *testing.T) {
	relay := newFakeRelay()
	relay.failAlways = &RelayError{Action: "print", Message: "printer offline"}
	store := newTestStore(t)
	observer := &recordingObserver{}
	dispatcher, waits := newTestDispatcher(relay, store, observer)

	job, err := dispatcher.Dispatch(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 3, relay.submitCount())
	assert.Equal(t, models.PrintJobError, job.Status)
	assert.Equal(t, 2, job.RetryCount)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *waits)
	assert.Equal(t, 3, observer.count())

	stored, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobError, stored.Status)
	assert.Equal(t, 2, stored.RetryCount)
	assert.Equal(t, 2, stored.MaxRetries)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "printer offline")

	history, err := store.List(context.Background(), "store-1", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1, "attempts must update one record")
}

func TestDispatchSucceedsAfterRetry(t *testing.T) {
	relay := newFakeRelay()
	relay.submitErrs = []error{errors.New("connection reset"), nil}
	store := newTestStore(t)
	dispatcher, waits := newTestDispatcher(relay, store, nil)

	job, err := dispatcher.Dispatch(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, relay.submitCount())
	assert.Len(t, *waits, 1)

	stored, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSent, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.RemoteJobID)
	assert.Equal(t, "101", *stored.RemoteJobID)
	assert.Nil(t, stored.ErrorMessage)
	require.NotNil(t, stored.OrderNumber)
	assert.Equal(t, 42, *stored.OrderNumber)
	require.NotNil(t, stored.PrinterName)
	assert.Equal(t, "Counter", *stored.PrinterName)
}

func TestDispatchFirstAttemptSuccessDoesNotWait(t *testing.T) {
	relay := newFakeRelay()
	store := newTestStore(t)
	dispatcher, waits := newTestDispatcher(relay, store, nil)

	job, err := dispatcher.Dispatch(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, relay.submitCount())
	assert.Empty(t, *waits)
	assert.Equal(t, models.PrintJobSent, job.Status)
	assert.Equal(t, 0, job.RetryCount)
}

func TestDispatchHonorsRequestRetryBudget(t *testing.T) {
	relay := newFakeRelay()
	relay.failAlways = errors.New("timeout")
	store := newTestStore(t)
	dispatcher, _ := newTestDispatcher(relay, store, nil)

	retries := 4
	req := testRequest()
	req.MaxRetries = &retries
	job, err := dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 5, relay.submitCount())
	assert.Equal(t, 4, job.RetryCount)
	assert.Equal(t, 4, job.MaxRetries)
}

func TestDispatchZeroRetriesMeansSingleAttempt(t *testing.T) {
	relay := newFakeRelay()
	relay.failAlways = errors.New("timeout")
	store := newTestStore(t)
	dispatcher, waits := newTestDispatcher(relay, store, nil)

	retries := 0
	req := testRequest()
	req.MaxRetries = &retries
	job, err := dispatcher.Dispatch(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, relay.submitCount())
	assert.Empty(t, *waits)
	assert.Equal(t, models.PrintJobError, job.Status)

	stored, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.RetryCount)
	assert.Equal(t, 0, stored.MaxRetries)
}

// failingInsertStore refuses to record new jobs
type failingInsertStore struct {
	PrintJobStore
}

func (failingInsertStore) Insert(ctx context.Context, job *models.PrintJob) (string, error) {
	return "", errors.New("disk full")
}

// capturingLogger keeps error lines for assertions
type capturingLogger struct {
	nopLogger
	errors []string
}

func (l *capturingLogger) LogError(message string, err error, details ...string) {
	l.errors = append(l.errors, message+" "+strings.Join(details, " "))
}

func TestDispatchLogsRemoteIDWhenRecordingFails(t *testing.T) {
	relay := newFakeRelay()
	logger := &capturingLogger{}
	dispatcher := NewDispatchService(relay, failingInsertStore{}, logger)

	_, err := dispatcher.Dispatch(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, 1, relay.submitCount())

	require.Len(t, logger.errors, 1)
	assert.Contains(t, logger.errors[0], "remote=101")
	assert.Contains(t, logger.errors[0], "printer=p1")
}

func TestDispatchStopsWhenCancelledBetweenAttempts(t *testing.T) {
	relay := newFakeRelay()
	relay.failAlways = errors.New("timeout")
	store := newTestStore(t)
	dispatcher := NewDispatchService(relay, store, nil, WithRetryDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for relay.submitCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	job, err := dispatcher.Dispatch(ctx, testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, relay.submitCount())

	stored, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobError, stored.Status)
	assert.Equal(t, 0, stored.RetryCount)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
