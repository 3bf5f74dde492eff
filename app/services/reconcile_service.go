package services

import (
	"context"
	"errors"
	"fmt"

	"PrintRelay/app/models"
	"PrintRelay/app/receipt"
)

// ErrJobNotRetryable is returned when a manual retry targets a job not in error
var ErrJobNotRetryable = errors.New("print job is not in error")

// RelayJobClient is the relay surface reconciliation needs
type RelayJobClient interface {
	JobSubmitter
	JobStatus(ctx context.Context, remoteJobID string) (string, error)
}

// MapRelayState converts a relay job state to the local status
func MapRelayState(state string) models.PrintJobStatus {
	switch state {
	case "done":
		return models.PrintJobSuccess
	case "error", "expired", "deleted":
		return models.PrintJobError
	case "queued", "in-progress", "in_progress":
		return models.PrintJobSent
	default:
		return models.PrintJobPending
	}
}

// ReconcileService brings sent jobs in line with the relay's view of them
type ReconcileService struct {
	relay    RelayJobClient
	store    PrintJobStore
	codes    receipt.ControlCodes
	observer PrintJobObserver
	logger   Logger
}

// NewReconcileService creates a reconciler
func NewReconcileService(relay RelayJobClient, store PrintJobStore, logger Logger, observer PrintJobObserver) *ReconcileService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &ReconcileService{
		relay:    relay,
		store:    store,
		codes:    receipt.DefaultControlCodes(),
		observer: observer,
		logger:   logger,
	}
}

// CheckOne queries the relay for a sent job and stores the mapped status when it changed
func (s *ReconcileService) CheckOne(ctx context.Context, job *models.PrintJob) (bool, error) {
	if job.Status != models.PrintJobSent || job.RemoteJobID == nil || *job.RemoteJobID == "" {
		return false, nil
	}

	ctx, span := printTracer.Start(ctx, "print.reconcile")
	defer span.End()

	state, err := s.relay.JobStatus(ctx, *job.RemoteJobID)
	if err != nil {
		return false, fmt.Errorf("error checking job %s: %w", job.ID, err)
	}

	next := MapRelayState(state)
	if next == job.Status {
		return false, nil
	}

	fields := map[string]interface{}{"status": next}
	if next == models.PrintJobError {
		msg := "relay reported job " + state
		fields["error_message"] = msg
		job.ErrorMessage = &msg
	}
	if err := s.store.Update(ctx, job.ID, fields); err != nil {
		return false, err
	}

	job.Status = next
	s.notify(job)
	return true, nil
}

// CheckAllPending checks every sent job of the store and returns how many changed.
// A failed check is logged and skipped.
func (s *ReconcileService) CheckAllPending(ctx context.Context, storeID string) (int, error) {
	jobs, err := s.store.ListSent(ctx, storeID)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range jobs {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		ok, err := s.CheckOne(ctx, &jobs[i])
		if err != nil {
			s.logger.LogWarning("Could not reconcile print job", err.Error())
			continue
		}
		if ok {
			changed++
		}
	}

	if changed > 0 {
		s.logger.LogInfo("Print jobs reconciled", fmt.Sprintf("checked=%d changed=%d", len(jobs), changed))
	}
	return changed, nil
}

// ManualRetry resends a failed job. The original receipt is not stored, so a
// reprint notice naming the job is sent instead.
func (s *ReconcileService) ManualRetry(ctx context.Context, job *models.PrintJob, printer models.PrinterTarget) (*models.PrintJob, error) {
	if job.Status != models.PrintJobError {
		return job, fmt.Errorf("%w: job %s is %s", ErrJobNotRetryable, job.ID, job.Status)
	}

	width := printer.PaperWidth
	if width == "" {
		width = models.PaperWidth80
	}
	payload, err := receipt.RetryNotice(s.codes, width, job.Title, job.ID)
	if err != nil {
		return job, err
	}

	detached := context.WithoutCancel(ctx)
	remoteID, submitErr := s.relay.Submit(detached, printer.ID, payload, job.Title)
	if submitErr != nil {
		msg := submitErr.Error()
		if err := s.store.Update(detached, job.ID, map[string]interface{}{"error_message": msg}); err != nil {
			return job, err
		}
		job.ErrorMessage = &msg
		s.notify(job)
		return job, submitErr
	}

	fields := map[string]interface{}{
		"status":        models.PrintJobSent,
		"remote_job_id": remoteID,
		"error_message": nil,
		"printer_id":    printer.ID,
	}
	if err := s.store.Update(detached, job.ID, fields); err != nil {
		return job, err
	}

	job.Status = models.PrintJobSent
	job.RemoteJobID = &remoteID
	job.ErrorMessage = nil
	job.PrinterID = printer.ID
	s.notify(job)

	s.logger.LogInfo("Print job resent", fmt.Sprintf("job=%s remote=%s", job.ID, remoteID))
	return job, nil
}

func (s *ReconcileService) notify(job *models.PrintJob) {
	if s.observer != nil {
		s.observer.PrintJobChanged(*job)
	}
}
