package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	importer "github.com/trakrf/platform/internal/importer/domain"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

// Service accepts uploads and answers status queries. Row processing
// happens in the Runner; the submit path only validates the header and
// stores the job, so the response never waits on O(rows) work.
type Service struct {
	jobs           importer.JobRepository
	maxUploadBytes int64
	wake           chan struct{}
	logger         *log.Logger
}

// NewService constructs a Service.
func NewService(jobs importer.JobRepository, cfg Config, logger *log.Logger) (*Service, error) {
	if jobs == nil {
		return nil, errors.New("import service: jobs repository required")
	}
	maxBytes := cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Service{
		jobs:           jobs,
		maxUploadBytes: maxBytes,
		wake:           make(chan struct{}, 1),
		logger:         logger,
	}, nil
}

// MaxUploadBytes returns the configured upload cap.
func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

// WakeChan signals the runner when a new job is available.
func (s *Service) WakeChan() <-chan struct{} {
	return s.wake
}

// Submit validates the upload header and stores a pending job. The
// header check runs before any job record exists, so a malformed file
// never produces a job. Returns ErrUploadTooLarge or ErrMalformedUpload
// on rejection.
func (s *Service) Submit(ctx context.Context, orgID string, kind inventory.EntityKind, filename string, upload io.Reader) (*importer.Job, error) {
	if s == nil || s.jobs == nil {
		return nil, errors.New("import service: nil")
	}
	if orgID == "" {
		return nil, errors.New("import service: org id required")
	}
	kind, ok := inventory.NormalizeEntityKind(string(kind))
	if !ok {
		return nil, inventory.ErrInvalidEntityKind
	}

	payload, err := io.ReadAll(io.LimitReader(upload, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", importer.ErrMalformedUpload, err)
	}
	if int64(len(payload)) > s.maxUploadBytes {
		return nil, importer.ErrUploadTooLarge
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty file", importer.ErrMalformedUpload)
	}

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1
	headerRecord, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable header row", importer.ErrMalformedUpload)
	}
	if _, err := importer.ParseHeader(headerRecord); err != nil {
		return nil, err
	}

	job := &importer.Job{
		ID:       uuid.NewString(),
		OrgID:    orgID,
		Kind:     kind,
		Status:   importer.StatusPending,
		Filename: filename,
		Payload:  payload,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	s.logf("event=import_submitted org_id=%s job_id=%s kind=%s bytes=%d", orgID, job.ID, kind, len(payload))
	s.Wake()
	return job, nil
}

// GetStatus returns an org-scoped job; nil means not found, including
// jobs that belong to another org.
func (s *Service) GetStatus(ctx context.Context, orgID, jobID string) (*importer.Job, error) {
	if s == nil || s.jobs == nil {
		return nil, errors.New("import service: nil")
	}
	if orgID == "" || jobID == "" {
		return nil, nil
	}
	return s.jobs.Get(ctx, orgID, jobID)
}

// Wake pokes the runner without blocking.
func (s *Service) Wake() {
	if s == nil || s.wake == nil {
		return
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) logf(format string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Printf(format, args...)
}
