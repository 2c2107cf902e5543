package importer

import (
	"errors"
	"time"

	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
)

// RowError records why one row of an upload was not imported.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Job tracks one bulk upload from submission to completion. Rows fail
// individually; the job itself always runs to completed once claimed.
type Job struct {
	ID            string
	OrgID         string
	Kind          inventory.EntityKind
	Status        JobStatus
	Filename      string
	TotalRows     int
	ProcessedRows int
	FailedRows    int
	TagsCreated   int
	Errors        []RowError
	Payload       []byte
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Validate checks the fields a job needs before persistence.
func (j *Job) Validate() error {
	if j == nil {
		return errors.New("importer: nil job")
	}
	if j.ID == "" {
		return errors.New("importer: job id required")
	}
	if j.OrgID == "" {
		return errors.New("importer: org id required")
	}
	if _, ok := inventory.NormalizeEntityKind(string(j.Kind)); !ok {
		return inventory.ErrInvalidEntityKind
	}
	switch j.Status {
	case StatusPending, StatusProcessing, StatusCompleted:
	default:
		return errors.New("importer: invalid job status")
	}
	return nil
}

// Clone returns a deep copy.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	clone := *j
	if j.Errors != nil {
		clone.Errors = make([]RowError, len(j.Errors))
		copy(clone.Errors, j.Errors)
	}
	if j.Payload != nil {
		clone.Payload = make([]byte, len(j.Payload))
		copy(clone.Payload, j.Payload)
	}
	if j.StartedAt != nil {
		started := *j.StartedAt
		clone.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		clone.CompletedAt = &completed
	}
	return &clone
}
