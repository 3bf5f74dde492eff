package services

import (
	"context"
	"fmt"
	"time"

	"PrintRelay/app/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var printTracer = otel.Tracer("print")

// PrintJobStore is the persistence the print services write job history to
type PrintJobStore interface {
	Insert(ctx context.Context, job *models.PrintJob) (string, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Get(ctx context.Context, id string) (*models.PrintJob, error)
	List(ctx context.Context, storeID string, limit int) ([]models.PrintJob, error)
	ListSent(ctx context.Context, storeID string) ([]models.PrintJob, error)
}

// JobSubmitter sends payloads to the relay
type JobSubmitter interface {
	Submit(ctx context.Context, printerID string, payload []byte, title string) (string, error)
}

// PrintJobObserver is told about every persisted job change
type PrintJobObserver interface {
	PrintJobChanged(job models.PrintJob)
}

// NextAction is the retry decision after a failed attempt
type NextAction int

const (
	ActionRetry NextAction = iota
	ActionGiveUp
)

func (a NextAction) String() string {
	if a == ActionRetry {
		return "retry"
	}
	return "give-up"
}

// DecideNextAction allows another attempt while attempt < maxRetries.
// Attempts are numbered from zero, so maxRetries=2 allows three submissions.
func DecideNextAction(attempt, maxRetries int) NextAction {
	if attempt < maxRetries {
		return ActionRetry
	}
	return ActionGiveUp
}

// DispatchRequest describes one logical submission
type DispatchRequest struct {
	StoreID     string
	OrderID     string
	OrderNumber int
	Printer     models.PrinterTarget
	Payload     []byte
	Title       string
	MaxRetries  *int // Nil uses the service default; zero means a single attempt
}

// DispatchService submits payloads with a bounded, fixed-delay retry policy
type DispatchService struct {
	relay      JobSubmitter
	store      PrintJobStore
	observer   PrintJobObserver
	logger     Logger
	maxRetries int
	retryDelay time.Duration
	wait       func(ctx context.Context, d time.Duration) error
}

// DispatchOption configures a DispatchService
type DispatchOption func(*DispatchService)

// WithRetryDelay sets the fixed wait between attempts
func WithRetryDelay(d time.Duration) DispatchOption {
	return func(s *DispatchService) {
		s.retryDelay = d
	}
}

// WithMaxRetries sets the default retry budget
func WithMaxRetries(n int) DispatchOption {
	return func(s *DispatchService) {
		s.maxRetries = n
	}
}

// WithDispatchObserver registers the job change observer
func WithDispatchObserver(observer PrintJobObserver) DispatchOption {
	return func(s *DispatchService) {
		s.observer = observer
	}
}

// NewDispatchService creates a dispatcher
func NewDispatchService(relay JobSubmitter, store PrintJobStore, logger Logger, opts ...DispatchOption) *DispatchService {
	s := &DispatchService{
		relay:      relay,
		store:      store,
		logger:     logger,
		maxRetries: models.DefaultMaxRetries,
		retryDelay: 2 * time.Second,
		wait:       sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	return s
}

// Dispatch submits the payload, recording every attempt on a single job record.
// Relay failures end up in the job (status error); the returned error is only
// set when the store fails or ctx is cancelled while waiting to retry.
func (s *DispatchService) Dispatch(ctx context.Context, req DispatchRequest) (*models.PrintJob, error) {
	ctx, span := printTracer.Start(ctx, "print.dispatch")
	defer span.End()

	maxRetries := s.maxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	job := &models.PrintJob{
		StoreID:    req.StoreID,
		PrinterID:  req.Printer.ID,
		Title:      req.Title,
		Status:     models.PrintJobPending,
		MaxRetries: maxRetries,
	}
	if req.OrderID != "" {
		job.OrderID = &req.OrderID
	}
	if req.OrderNumber > 0 {
		job.OrderNumber = &req.OrderNumber
	}
	if req.Printer.Name != "" {
		job.PrinterName = &req.Printer.Name
	}

	// Issued submits and their records must complete even if the caller goes away
	detached := context.WithoutCancel(ctx)

	for attempt := 0; ; attempt++ {
		remoteID, submitErr := s.relay.Submit(detached, req.Printer.ID, req.Payload, req.Title)

		job.RetryCount = attempt
		if submitErr == nil {
			job.Status = models.PrintJobSent
			job.RemoteJobID = &remoteID
			job.ErrorMessage = nil
		} else {
			msg := submitErr.Error()
			job.Status = models.PrintJobError
			job.ErrorMessage = &msg
		}

		if err := s.persist(detached, job, attempt == 0); err != nil {
			span.RecordError(err)
			if submitErr == nil {
				s.logger.LogError("Print job sent but not recorded", err,
					fmt.Sprintf("printer=%s remote=%s title=%s", req.Printer.ID, remoteID, req.Title))
			}
			return job, err
		}
		s.notify(job)

		if submitErr == nil {
			s.logger.LogInfo("Print job sent", fmt.Sprintf("job=%s remote=%s attempt=%d", job.ID, remoteID, attempt))
			break
		}

		if DecideNextAction(attempt, maxRetries) == ActionGiveUp {
			s.logger.LogError("Print job failed", submitErr, fmt.Sprintf("job=%s attempts=%d", job.ID, attempt+1))
			break
		}

		s.logger.LogWarning("Print attempt failed, retrying",
			fmt.Sprintf("job=%s attempt=%d/%d error=%v", job.ID, attempt+1, maxRetries+1, submitErr))
		if err := s.wait(ctx, s.retryDelay); err != nil {
			return job, fmt.Errorf("dispatch of job %s abandoned: %w", job.ID, err)
		}
	}

	span.SetAttributes(
		attribute.String("print.job_id", job.ID),
		attribute.String("print.status", job.Status.String()),
		attribute.Int("print.retry_count", job.RetryCount),
	)
	return job, nil
}

// persist inserts the job on the first attempt and updates it afterwards
func (s *DispatchService) persist(ctx context.Context, job *models.PrintJob, first bool) error {
	if first {
		if _, err := s.store.Insert(ctx, job); err != nil {
			return fmt.Errorf("error recording print job: %w", err)
		}
		return nil
	}

	fields := map[string]interface{}{
		"status":        job.Status,
		"retry_count":   job.RetryCount,
		"remote_job_id": job.RemoteJobID,
		"error_message": job.ErrorMessage,
	}
	if err := s.store.Update(ctx, job.ID, fields); err != nil {
		return fmt.Errorf("error recording print attempt: %w", err)
	}
	return nil
}

func (s *DispatchService) notify(job *models.PrintJob) {
	if s.observer != nil {
		s.observer.PrintJobChanged(*job)
	}
}

// sleepContext waits for d, returning early with ctx's error if it is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
