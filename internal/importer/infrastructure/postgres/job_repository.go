package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	importer "github.com/trakrf/platform/internal/importer/domain"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
)

const defaultJobsTable = "import_jobs"

// JobRepository is a Postgres implementation of importer.JobRepository.
type JobRepository struct {
	db    *sql.DB
	table string
}

// NewJobRepository constructs a repository.
func NewJobRepository(db *sql.DB, opts ...JobOption) *JobRepository {
	repo := &JobRepository{db: db, table: defaultJobsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// JobOption configures the repository.
type JobOption func(*JobRepository)

// WithJobsTable overrides the default table name.
func WithJobsTable(table string) JobOption {
	return func(repo *JobRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Create inserts a new job in its submitted state, payload included.
func (r *JobRepository) Create(ctx context.Context, job *importer.Job) error {
	if r == nil || r.db == nil {
		return errors.New("import job repo: nil db")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	errorsJSON, err := marshalRowErrors(job.Errors)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, org_id, entity_kind, status, filename,
	total_rows, processed_rows, failed_rows, tags_created,
	errors, payload
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING created_at, updated_at`, r.table)

	err = r.db.QueryRowContext(ctx, query,
		job.ID,
		job.OrgID,
		string(job.Kind),
		string(job.Status),
		job.Filename,
		job.TotalRows,
		job.ProcessedRows,
		job.FailedRows,
		job.TagsCreated,
		errorsJSON,
		job.Payload,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	return nil
}

const jobColumns = `id, org_id, entity_kind, status, filename,
	total_rows, processed_rows, failed_rows, tags_created,
	errors, created_at, updated_at, started_at, completed_at`

// Get returns an org-scoped job without its payload. Missing and
// cross-tenant jobs both yield (nil, nil).
func (r *JobRepository) Get(ctx context.Context, orgID, jobID string) (*importer.Job, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("import job repo: nil db")
	}
	if orgID == "" || jobID == "" {
		return nil, errors.New("import job repo: org id and job id required")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1 AND org_id = $2`, jobColumns, r.table)

	job, err := scanJob(r.db.QueryRowContext(ctx, query, jobID, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

// ListPending returns pending jobs oldest first, payloads included so a
// runner restarted after a crash can resume from the stored bytes.
func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]importer.Job, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("import job repo: nil db")
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
SELECT %s, payload
FROM %s
WHERE status = $1
ORDER BY created_at
LIMIT $2`, jobColumns, r.table)

	rows, err := r.db.QueryContext(ctx, query, string(importer.StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []importer.Job
	for rows.Next() {
		job, err := scanJobWithPayload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending import job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending import jobs: %w", err)
	}
	return jobs, nil
}

// Claim flips a job from pending to processing. The conditional update
// is the claim itself, so concurrent runners never double-claim.
func (r *JobRepository) Claim(ctx context.Context, jobID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("import job repo: nil db")
	}
	if jobID == "" {
		return false, errors.New("import job repo: job id required")
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, started_at = NOW(), updated_at = NOW()
WHERE id = $2 AND status = $3`, r.table)

	result, err := r.db.ExecContext(ctx, query, string(importer.StatusProcessing), jobID, string(importer.StatusPending))
	if err != nil {
		return false, fmt.Errorf("claim import job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim import job: %w", err)
	}
	return affected > 0, nil
}

// UpdateProgress flushes counters and the error list mid-run.
func (r *JobRepository) UpdateProgress(ctx context.Context, job *importer.Job) error {
	if r == nil || r.db == nil {
		return errors.New("import job repo: nil db")
	}
	if job == nil || job.ID == "" {
		return errors.New("import job repo: job id required")
	}
	errorsJSON, err := marshalRowErrors(job.Errors)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s
SET total_rows = $1, processed_rows = $2, failed_rows = $3,
	tags_created = $4, errors = $5, updated_at = NOW()
WHERE id = $6`, r.table)

	if _, err := r.db.ExecContext(ctx, query,
		job.TotalRows, job.ProcessedRows, job.FailedRows,
		job.TagsCreated, errorsJSON, job.ID,
	); err != nil {
		return fmt.Errorf("update import job progress: %w", err)
	}
	return nil
}

// Complete marks the job completed with final counters and drops the
// stored payload.
func (r *JobRepository) Complete(ctx context.Context, job *importer.Job) error {
	if r == nil || r.db == nil {
		return errors.New("import job repo: nil db")
	}
	if job == nil || job.ID == "" {
		return errors.New("import job repo: job id required")
	}
	errorsJSON, err := marshalRowErrors(job.Errors)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s
SET status = $1, total_rows = $2, processed_rows = $3, failed_rows = $4,
	tags_created = $5, errors = $6, payload = NULL,
	completed_at = NOW(), updated_at = NOW()
WHERE id = $7
RETURNING completed_at`, r.table)

	var completedAt time.Time
	if err := r.db.QueryRowContext(ctx, query,
		string(importer.StatusCompleted), job.TotalRows, job.ProcessedRows,
		job.FailedRows, job.TagsCreated, errorsJSON, job.ID,
	).Scan(&completedAt); err != nil {
		return fmt.Errorf("complete import job: %w", err)
	}
	completedAt = completedAt.UTC()
	job.Status = importer.StatusCompleted
	job.CompletedAt = &completedAt
	job.Payload = nil
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(s rowScanner) (*importer.Job, error) {
	var (
		job         importer.Job
		kind        string
		status      string
		errorsJSON  []byte
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := s.Scan(
		&job.ID, &job.OrgID, &kind, &status, &job.Filename,
		&job.TotalRows, &job.ProcessedRows, &job.FailedRows, &job.TagsCreated,
		&errorsJSON, &job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	return finishJob(&job, kind, status, errorsJSON, startedAt, completedAt)
}

func scanJobWithPayload(s rowScanner) (*importer.Job, error) {
	var (
		job         importer.Job
		kind        string
		status      string
		errorsJSON  []byte
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := s.Scan(
		&job.ID, &job.OrgID, &kind, &status, &job.Filename,
		&job.TotalRows, &job.ProcessedRows, &job.FailedRows, &job.TagsCreated,
		&errorsJSON, &job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt,
		&job.Payload,
	)
	if err != nil {
		return nil, err
	}
	return finishJob(&job, kind, status, errorsJSON, startedAt, completedAt)
}

func finishJob(job *importer.Job, kind, status string, errorsJSON []byte, startedAt, completedAt sql.NullTime) (*importer.Job, error) {
	job.Kind = inventory.EntityKind(kind)
	job.Status = importer.JobStatus(status)
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &job.Errors); err != nil {
			return nil, fmt.Errorf("decode import job errors: %w", err)
		}
	}
	job.CreatedAt = job.CreatedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		job.CompletedAt = &t
	}
	return job, nil
}

func marshalRowErrors(rowErrors []importer.RowError) ([]byte, error) {
	if len(rowErrors) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(rowErrors)
	if err != nil {
		return nil, fmt.Errorf("encode import job errors: %w", err)
	}
	return data, nil
}
