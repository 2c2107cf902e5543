package importer

import "context"

// JobRepository persists import jobs and their progress.
type JobRepository interface {
	Create(ctx context.Context, job *Job) error
	// Get is org-scoped; a missing or cross-org job yields (nil, nil).
	Get(ctx context.Context, orgID, jobID string) (*Job, error)
	// ListPending returns pending jobs oldest first, payloads included.
	ListPending(ctx context.Context, limit int) ([]Job, error)
	// Claim flips one job from pending to processing. It reports false
	// when the job was already claimed or is no longer pending.
	Claim(ctx context.Context, jobID string) (bool, error)
	// UpdateProgress flushes counters and the error list mid-run.
	UpdateProgress(ctx context.Context, job *Job) error
	// Complete marks the job done and drops the stored payload.
	Complete(ctx context.Context, job *Job) error
}
