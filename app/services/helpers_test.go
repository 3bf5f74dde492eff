package services

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"PrintRelay/app/config"
	"PrintRelay/app/database"
	"PrintRelay/app/models"

	"github.com/stretchr/testify/require"
)

type submitCall struct {
	PrinterID string
	Payload   []byte
	Title     string
}

// fakeRelay records submissions and answers status queries from a table
type fakeRelay struct {
	mu         sync.Mutex
	calls      []submitCall
	submitErrs []error // Consumed one per call; nil entries succeed
	failAlways error
	nextID     int
	states     map[string]string
	statusErrs map[string]error
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{
		nextID:     100,
		states:     map[string]string{},
		statusErrs: map[string]error{},
	}
}

func (f *fakeRelay) Submit(ctx context.Context, printerID string, payload []byte, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, submitCall{PrinterID: printerID, Payload: payload, Title: title})
	if f.failAlways != nil {
		return "", f.failAlways
	}
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	f.nextID++
	return strconv.Itoa(f.nextID), nil
}

func (f *fakeRelay) JobStatus(ctx context.Context, remoteJobID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.statusErrs[remoteJobID]; ok {
		return "", err
	}
	state, ok := f.states[remoteJobID]
	if !ok {
		return "", errors.New("job not found")
	}
	return state, nil
}

func (f *fakeRelay) ListPrinters(ctx context.Context) []models.PrinterTarget {
	return []models.PrinterTarget{{ID: "p1", Name: "Kitchen"}}
}

func (f *fakeRelay) PrinterStatus(ctx context.Context, printerID string) (*models.PrinterState, error) {
	return &models.PrinterState{Online: true, State: "online"}, nil
}

func (f *fakeRelay) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// recordingObserver keeps every job change it is told about
type recordingObserver struct {
	mu      sync.Mutex
	changes []models.PrintJob
}

func (o *recordingObserver) PrintJobChanged(job models.PrintJob) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, job)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.changes)
}

func newTestStore(t *testing.T) *database.PrintJobStore {
	t.Helper()

	conn, err := database.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "jobs.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return database.NewPrintJobStore(conn)
}

// insertJob stores a job in the given state
func insertJob(t *testing.T, store PrintJobStore, status models.PrintJobStatus, remoteID string) *models.PrintJob {
	t.Helper()

	job := &models.PrintJob{
		StoreID:    "store-1",
		PrinterID:  "p1",
		Title:      "Order #42",
		Status:     status,
		MaxRetries: 2,
	}
	if remoteID != "" {
		job.RemoteJobID = &remoteID
	}
	_, err := store.Insert(context.Background(), job)
	require.NoError(t, err)
	return job
}
