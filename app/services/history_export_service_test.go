package services

import (
	"context"
	"testing"
	"time"

	"PrintRelay/app/config"
	"PrintRelay/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRowsOldestFirst(t *testing.T) {
	n := 42
	name := "Kitchen"
	msg := "offline"
	jobs := []models.PrintJob{
		{ID: "b", StoreID: "s", Title: "Order #43", Status: models.PrintJobError, ErrorMessage: &msg, PrinterID: "p1", CreatedAt: time.Date(2026, 1, 1, 10, 5, 0, 0, time.UTC)},
		{ID: "a", StoreID: "s", Title: "Order #42", Status: models.PrintJobSuccess, OrderNumber: &n, PrinterID: "p1", PrinterName: &name, CreatedAt: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
	}

	rows := historyRows(jobs)
	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0][0])
	assert.Equal(t, 42, rows[0][2])
	assert.Equal(t, "Kitchen", rows[0][3])
	assert.Equal(t, "success", rows[0][5])
	assert.Equal(t, "2026-01-01T10:00:00Z", rows[0][9])

	assert.Equal(t, "", rows[1][2])
	assert.Equal(t, "p1", rows[1][3])
	assert.Equal(t, "offline", rows[1][8])
	assert.Len(t, rows[0], len(historyHeaders))
}

func TestExportRequiresConfiguration(t *testing.T) {
	store := newTestStore(t)

	_, err := NewHistoryExportService(store, config.SheetsConfig{}, nil).Export(context.Background(), "store-1", 10)
	assert.Error(t, err)

	_, err = NewHistoryExportService(store, config.SheetsConfig{Enabled: true}, nil).Export(context.Background(), "store-1", 10)
	assert.Error(t, err)
}
