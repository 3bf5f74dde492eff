package services

import (
	"context"
	"fmt"
	"time"

	"PrintRelay/app/config"
	"PrintRelay/app/models"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var historyHeaders = []interface{}{
	"job_id",
	"store_id",
	"order_number",
	"printer",
	"title",
	"status",
	"retry_count",
	"remote_job_id",
	"error",
	"created_at",
}

// HistoryExportService appends print job history to a Google Sheet
type HistoryExportService struct {
	store  PrintJobStore
	cfg    config.SheetsConfig
	logger Logger
}

// NewHistoryExportService creates an exporter
func NewHistoryExportService(store PrintJobStore, cfg config.SheetsConfig, logger Logger) *HistoryExportService {
	if cfg.SheetName == "" {
		cfg.SheetName = "PrintJobs"
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &HistoryExportService{store: store, cfg: cfg, logger: logger}
}

// Export appends up to limit of the store's latest jobs and returns the row count
func (s *HistoryExportService) Export(ctx context.Context, storeID string, limit int) (int, error) {
	if !s.cfg.Enabled {
		return 0, fmt.Errorf("Google Sheets export is disabled")
	}
	if s.cfg.ServiceAccountKey == "" || s.cfg.SpreadsheetID == "" {
		return 0, fmt.Errorf("missing credentials or spreadsheet ID")
	}

	jobs, err := s.store.List(ctx, storeID, limit)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	creds, err := google.CredentialsFromJSON(ctx, []byte(s.cfg.ServiceAccountKey), sheets.SpreadsheetsScope)
	if err != nil {
		return 0, fmt.Errorf("invalid credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return 0, fmt.Errorf("unable to create sheets service: %w", err)
	}

	if err := s.ensureHeaders(ctx, srv); err != nil {
		return 0, fmt.Errorf("failed to ensure headers: %w", err)
	}

	valueRange := &sheets.ValueRange{Values: historyRows(jobs)}
	sheetRange := fmt.Sprintf("%s!A:J", s.cfg.SheetName)
	_, err = srv.Spreadsheets.Values.Append(s.cfg.SpreadsheetID, sheetRange, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("unable to append data: %w", err)
	}

	s.logger.LogInfo("Print history exported", fmt.Sprintf("store=%s rows=%d", storeID, len(jobs)))
	return len(jobs), nil
}

// ensureHeaders writes the header row when the sheet is empty
func (s *HistoryExportService) ensureHeaders(ctx context.Context, srv *sheets.Service) error {
	sheetRange := fmt.Sprintf("%s!A1:J1", s.cfg.SheetName)
	resp, err := srv.Spreadsheets.Values.Get(s.cfg.SpreadsheetID, sheetRange).Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) >= len(historyHeaders) {
		return nil
	}

	valueRange := &sheets.ValueRange{Values: [][]interface{}{historyHeaders}}
	_, err = srv.Spreadsheets.Values.Update(s.cfg.SpreadsheetID, sheetRange, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}

// historyRows converts jobs to sheet rows, oldest first
func historyRows(jobs []models.PrintJob) [][]interface{} {
	rows := make([][]interface{}, 0, len(jobs))
	for i := len(jobs) - 1; i >= 0; i-- {
		job := jobs[i]
		printer := job.PrinterID
		if job.PrinterName != nil && *job.PrinterName != "" {
			printer = *job.PrinterName
		}
		rows = append(rows, []interface{}{
			job.ID,
			job.StoreID,
			intOrEmpty(job.OrderNumber),
			printer,
			job.Title,
			job.Status.String(),
			job.RetryCount,
			stringOrEmpty(job.RemoteJobID),
			stringOrEmpty(job.ErrorMessage),
			job.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(n *int) interface{} {
	if n == nil {
		return ""
	}
	return *n
}
