package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PrintJobStatus represents the local lifecycle state of a print job
type PrintJobStatus string

const (
	PrintJobPending PrintJobStatus = "pending" // Not attempted, or relay state unknown
	PrintJobSent    PrintJobStatus = "sent"    // Relay accepted the job
	PrintJobSuccess PrintJobStatus = "success"
	PrintJobError   PrintJobStatus = "error"
)

// ErrJobNotFound is returned when no print job has the requested id
var ErrJobNotFound = errors.New("print job not found")

// DefaultMaxRetries is the retry budget used when a request leaves it unset
const DefaultMaxRetries = 2

func (s PrintJobStatus) String() string {
	return string(s)
}

func (s *PrintJobStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*s = PrintJobStatus(v)
	case []byte:
		*s = PrintJobStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into PrintJobStatus", value)
	}
	return nil
}

func (s PrintJobStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// PrintJob is the persisted record of one logical submission to the print relay
type PrintJob struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	StoreID      string         `gorm:"index;not null" json:"store_id"`
	OrderID      *string        `json:"order_id,omitempty"`
	OrderNumber  *int           `json:"order_number,omitempty"`
	RemoteJobID  *string        `json:"remote_job_id,omitempty"` // Assigned by the relay on acceptance
	PrinterID    string         `gorm:"not null" json:"printer_id"`
	PrinterName  *string        `json:"printer_name,omitempty"`
	Title        string         `json:"title"`
	Status       PrintJobStatus `gorm:"index;not null;default:pending" json:"status"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount   int            `gorm:"not null;default:0" json:"retry_count"`
	MaxRetries   int            `gorm:"not null" json:"max_retries"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// BeforeCreate assigns a local id when the caller did not set one
func (j *PrintJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	return nil
}

// IsTerminal reports whether the job has reached success or error
func (j *PrintJob) IsTerminal() bool {
	return j.Status == PrintJobSuccess || j.Status == PrintJobError
}
