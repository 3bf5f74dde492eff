package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PrintRelay/app/models"
	"PrintRelay/app/receipt"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() *models.OrderSnapshot {
	return &models.OrderSnapshot{
		ID:           "order-abc",
		StoreID:      "store-1",
		OrderNumber:  42,
		CustomerName: "Maria",
		ServiceType:  models.ServicePickup,
		Items: []models.LineItem{{
			ProductName: "Margherita Pizza",
			Quantity:    2,
			UnitPrice:   decimal.RequireFromString("35"),
			TotalPrice:  decimal.RequireFromString("70"),
		}},
		PaymentMethod: "pix",
		Subtotal:      decimal.RequireFromString("70"),
		Total:         decimal.RequireFromString("70"),
		CreatedAt:     time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC),
	}
}

func newTestPrinterService(t *testing.T, relay *fakeRelay) (*PrinterService, PrintJobStore) {
	store := newTestStore(t)
	dispatcher, _ := newTestDispatcher(relay, store, nil)
	reconciler := NewReconcileService(relay, store, nil, nil)
	profile := receipt.StoreProfile{Name: "Pizzeria", Location: time.UTC}
	return NewPrinterService("store-1", profile, dispatcher, reconciler, relay, store, models.PaperWidth58), store
}

func TestPrintOrderDispatchesEncodedReceipt(t *testing.T) {
	relay := newFakeRelay()
	svc, _ := newTestPrinterService(t, relay)

	job, err := svc.PrintOrder(context.Background(), sampleOrder(), models.PrinterTarget{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSent, job.Status)
	assert.Equal(t, "Order #42", job.Title)

	require.Equal(t, 1, relay.submitCount())
	assert.Contains(t, string(relay.calls[0].Payload), "2x Margherita Pizza")

	history, err := svc.History(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, job.ID, history[0].ID)
}

func TestPrintOrderRejectsInvalidOrderBeforeSending(t *testing.T) {
	relay := newFakeRelay()
	svc, store := newTestPrinterService(t, relay)

	order := sampleOrder()
	order.Items[0].Quantity = 0
	_, err := svc.PrintOrder(context.Background(), order, models.PrinterTarget{ID: "p1"})
	assert.True(t, errors.Is(err, models.ErrInvalidOrder))
	assert.Equal(t, 0, relay.submitCount())

	history, err := store.List(context.Background(), "store-1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPreviewOrder(t *testing.T) {
	svc, _ := newTestPrinterService(t, newFakeRelay())

	html, err := svc.PreviewOrder(sampleOrder(), "")
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "ORDER #42"))
}

func TestTestPrinter(t *testing.T) {
	relay := newFakeRelay()
	svc, _ := newTestPrinterService(t, relay)

	job, err := svc.TestPrinter(context.Background(), models.PrinterTarget{ID: "p1", PaperWidth: models.PaperWidth80})
	require.NoError(t, err)
	assert.Equal(t, "Printer test", job.Title)
	assert.Contains(t, string(relay.calls[0].Payload), "PRINTER TEST")
}

func TestRetryJobResendsToJobPrinter(t *testing.T) {
	ctx := context.Background()
	relay := newFakeRelay()
	svc, store := newTestPrinterService(t, relay)

	failed := insertJob(t, store, models.PrintJobError, "")
	job, err := svc.RetryJob(ctx, failed.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.PrintJobSent, job.Status)
	require.Equal(t, 1, relay.submitCount())
	assert.Equal(t, "p1", relay.calls[0].PrinterID)

	_, err = svc.RetryJob(ctx, failed.ID, "")
	assert.True(t, errors.Is(err, ErrJobNotRetryable))

	_, err = svc.RetryJob(ctx, "missing", "")
	assert.True(t, errors.Is(err, models.ErrJobNotFound))
}

func TestRetryJobOnAnotherPrinter(t *testing.T) {
	relay := newFakeRelay()
	svc, store := newTestPrinterService(t, relay)

	failed := insertJob(t, store, models.PrintJobError, "")
	job, err := svc.RetryJob(context.Background(), failed.ID, "p9")
	require.NoError(t, err)
	assert.Equal(t, "p9", job.PrinterID)
	assert.Equal(t, "p9", relay.calls[0].PrinterID)
}

func TestRefreshJobs(t *testing.T) {
	relay := newFakeRelay()
	svc, store := newTestPrinterService(t, relay)

	insertJob(t, store, models.PrintJobSent, "r-1")
	insertJob(t, store, models.PrintJobSent, "r-2")
	relay.states["r-1"] = "done"
	relay.states["r-2"] = "queued"

	changed, err := svc.RefreshJobs(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
}
