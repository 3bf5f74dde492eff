package database

import (
	"context"
	"errors"
	"fmt"

	"PrintRelay/app/models"

	"gorm.io/gorm"
)

// PrintJobStore persists print jobs with gorm
type PrintJobStore struct {
	db *gorm.DB
}

// NewPrintJobStore creates a store over an open connection
func NewPrintJobStore(conn *gorm.DB) *PrintJobStore {
	return &PrintJobStore{db: conn}
}

// Insert creates a job and returns its id
func (s *PrintJobStore) Insert(ctx context.Context, job *models.PrintJob) (string, error) {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return "", fmt.Errorf("error creating print job: %w", err)
	}
	return job.ID, nil
}

// Update applies the given column values to a job
func (s *PrintJobStore) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	result := s.db.WithContext(ctx).Model(&models.PrintJob{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("error updating print job %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrJobNotFound, id)
	}
	return nil
}

// Get returns a job by id
func (s *PrintJobStore) Get(ctx context.Context, id string) (*models.PrintJob, error) {
	var job models.PrintJob
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting print job %s: %w", id, err)
	}
	return &job, nil
}

// List returns a store's jobs, newest first. A non-positive limit returns all jobs.
func (s *PrintJobStore) List(ctx context.Context, storeID string, limit int) ([]models.PrintJob, error) {
	var jobs []models.PrintJob
	query := s.db.WithContext(ctx).Where("store_id = ?", storeID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("error listing print jobs: %w", err)
	}
	return jobs, nil
}

// ListSent returns jobs accepted by the relay that still await confirmation.
// An empty storeID lists across all stores.
func (s *PrintJobStore) ListSent(ctx context.Context, storeID string) ([]models.PrintJob, error) {
	var jobs []models.PrintJob
	query := s.db.WithContext(ctx).
		Where("status = ?", models.PrintJobSent).
		Where("remote_job_id IS NOT NULL AND remote_job_id <> ''")
	if storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	if err := query.Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("error listing sent print jobs: %w", err)
	}
	return jobs, nil
}
