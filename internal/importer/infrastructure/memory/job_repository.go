package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	importer "github.com/trakrf/platform/internal/importer/domain"
)

// JobRepository is an in-memory importer.JobRepository for tests.
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[string]*importer.Job
}

// NewJobRepository constructs an empty repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[string]*importer.Job)}
}

// Create stores a new job.
func (r *JobRepository) Create(ctx context.Context, job *importer.Job) error {
	_ = ctx
	if err := job.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return errors.New("memory jobs: duplicate job id")
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns an org-scoped job, nil when missing or cross-tenant.
func (r *JobRepository) Get(ctx context.Context, orgID, jobID string) (*importer.Job, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok || job.OrgID != orgID {
		return nil, nil
	}
	return job.Clone(), nil
}

// ListPending returns pending jobs oldest first.
func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]importer.Job, error) {
	_ = ctx
	if limit <= 0 {
		limit = 10
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var pending []importer.Job
	for _, job := range r.jobs {
		if job.Status == importer.StatusPending {
			pending = append(pending, *job.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// Claim flips pending to processing, reporting whether it won the claim.
func (r *JobRepository) Claim(ctx context.Context, jobID string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != importer.StatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = importer.StatusProcessing
	job.StartedAt = &now
	job.UpdatedAt = now
	return true, nil
}

// UpdateProgress copies counters and errors into the stored job.
func (r *JobRepository) UpdateProgress(ctx context.Context, job *importer.Job) error {
	_ = ctx
	if job == nil || job.ID == "" {
		return errors.New("memory jobs: job id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[job.ID]
	if !ok {
		return errors.New("memory jobs: job not found")
	}
	stored.TotalRows = job.TotalRows
	stored.ProcessedRows = job.ProcessedRows
	stored.FailedRows = job.FailedRows
	stored.TagsCreated = job.TagsCreated
	stored.Errors = append([]importer.RowError(nil), job.Errors...)
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete marks the job completed and clears its payload.
func (r *JobRepository) Complete(ctx context.Context, job *importer.Job) error {
	if err := r.UpdateProgress(ctx, job); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := r.jobs[job.ID]
	now := time.Now().UTC()
	stored.Status = importer.StatusCompleted
	stored.CompletedAt = &now
	stored.Payload = nil
	stored.UpdatedAt = now
	job.Status = importer.StatusCompleted
	job.CompletedAt = &now
	job.Payload = nil
	return nil
}
