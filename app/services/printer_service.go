package services

import (
	"context"
	"fmt"
	"time"

	"PrintRelay/app/models"
	"PrintRelay/app/receipt"
)

// PrinterDirectory looks up printers behind the relay
type PrinterDirectory interface {
	ListPrinters(ctx context.Context) []models.PrinterTarget
	PrinterStatus(ctx context.Context, printerID string) (*models.PrinterState, error)
}

// PrinterService is the entry point the host application uses to print
type PrinterService struct {
	storeID      string
	encoder      *receipt.Encoder
	previewer    *receipt.Previewer
	dispatcher   *DispatchService
	reconciler   *ReconcileService
	directory    PrinterDirectory
	store        PrintJobStore
	defaultWidth models.PaperWidth
}

// NewPrinterService wires the encoder, dispatcher, reconciler and job history together
func NewPrinterService(storeID string, profile receipt.StoreProfile, dispatcher *DispatchService, reconciler *ReconcileService, directory PrinterDirectory, store PrintJobStore, defaultWidth models.PaperWidth) *PrinterService {
	if defaultWidth == "" {
		defaultWidth = models.PaperWidth80
	}
	return &PrinterService{
		storeID:      storeID,
		encoder:      receipt.NewEncoder(profile),
		previewer:    receipt.NewPreviewer(profile),
		dispatcher:   dispatcher,
		reconciler:   reconciler,
		directory:    directory,
		store:        store,
		defaultWidth: defaultWidth,
	}
}

func (s *PrinterService) widthFor(printer models.PrinterTarget) models.PaperWidth {
	if printer.PaperWidth != "" {
		return printer.PaperWidth
	}
	return s.defaultWidth
}

// PrintOrder encodes an order and dispatches it. Invalid orders fail before
// anything is sent or recorded.
func (s *PrinterService) PrintOrder(ctx context.Context, order *models.OrderSnapshot, printer models.PrinterTarget) (*models.PrintJob, error) {
	payload, err := s.encoder.Encode(order, s.widthFor(printer))
	if err != nil {
		return nil, err
	}

	storeID := order.StoreID
	if storeID == "" {
		storeID = s.storeID
	}

	return s.dispatcher.Dispatch(ctx, DispatchRequest{
		StoreID:     storeID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Printer:     printer,
		Payload:     payload,
		Title:       fmt.Sprintf("Order #%d", order.OrderNumber),
	})
}

// PreviewOrder renders the on-screen version of a receipt
func (s *PrinterService) PreviewOrder(order *models.OrderSnapshot, width models.PaperWidth) (string, error) {
	if width == "" {
		width = s.defaultWidth
	}
	return s.previewer.Preview(order, width)
}

// TestPrinter sends a short test page through the normal dispatch path
func (s *PrinterService) TestPrinter(ctx context.Context, printer models.PrinterTarget) (*models.PrintJob, error) {
	payload, err := receipt.TestPage(s.encoder.Codes, s.widthFor(printer), s.encoder.Store, time.Now())
	if err != nil {
		return nil, err
	}
	return s.dispatcher.Dispatch(ctx, DispatchRequest{
		StoreID: s.storeID,
		Printer: printer,
		Payload: payload,
		Title:   "Printer test",
	})
}

// Printers lists printers available on the relay
func (s *PrinterService) Printers(ctx context.Context) []models.PrinterTarget {
	return s.directory.ListPrinters(ctx)
}

// PrinterStatus reports a printer's connectivity
func (s *PrinterService) PrinterStatus(ctx context.Context, printerID string) (*models.PrinterState, error) {
	return s.directory.PrinterStatus(ctx, printerID)
}

// History returns recent jobs for a store, newest first
func (s *PrinterService) History(ctx context.Context, storeID string, limit int) ([]models.PrintJob, error) {
	if storeID == "" {
		storeID = s.storeID
	}
	return s.store.List(ctx, storeID, limit)
}

// Job returns one job by id
func (s *PrinterService) Job(ctx context.Context, id string) (*models.PrintJob, error) {
	return s.store.Get(ctx, id)
}

// RetryJob manually resends a failed job. An empty printerID reuses the job's printer.
func (s *PrinterService) RetryJob(ctx context.Context, id, printerID string) (*models.PrintJob, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	target := models.PrinterTarget{ID: job.PrinterID, PaperWidth: s.defaultWidth}
	if job.PrinterName != nil {
		target.Name = *job.PrinterName
	}
	if printerID != "" && printerID != job.PrinterID {
		target = models.PrinterTarget{ID: printerID, PaperWidth: s.defaultWidth}
	}
	return s.reconciler.ManualRetry(ctx, job, target)
}

// RefreshJobs reconciles the store's sent jobs now and returns how many changed
func (s *PrinterService) RefreshJobs(ctx context.Context, storeID string) (int, error) {
	if storeID == "" {
		storeID = s.storeID
	}
	return s.reconciler.CheckAllPending(ctx, storeID)
}
