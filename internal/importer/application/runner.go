package application

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	importer "github.com/trakrf/platform/internal/importer/domain"
	"github.com/trakrf/platform/internal/importer/notify"
	inventory "github.com/trakrf/platform/internal/inventory/domain"
	"github.com/trakrf/platform/internal/observability/metrics"
)

const pendingBatchSize = 10

// Runner claims pending jobs and processes their rows. Jobs run
// concurrently up to the worker limit; rows within one job run
// sequentially, so the job's counters have a single writer.
type Runner struct {
	jobs         importer.JobRepository
	entities     inventory.EntityRepository
	identifiers  inventory.IdentifierRepository
	notifier     notify.Notifier
	logger       *log.Logger
	workers      int
	pollInterval time.Duration
	wake         <-chan struct{}
}

// NewRunner constructs a Runner.
func NewRunner(jobs importer.JobRepository, entities inventory.EntityRepository, identifiers inventory.IdentifierRepository, cfg Config, notifier notify.Notifier, logger *log.Logger, wake <-chan struct{}) (*Runner, error) {
	if jobs == nil {
		return nil, errors.New("import runner: jobs repository required")
	}
	if entities == nil || identifiers == nil {
		return nil, errors.New("import runner: inventory repositories required")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	interval := cfg.PollInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Runner{
		jobs:         jobs,
		entities:     entities,
		identifiers:  identifiers,
		notifier:     notifier,
		logger:       logger,
		workers:      workers,
		pollInterval: interval,
		wake:         wake,
	}, nil
}

// Start runs the claim loop until the context is canceled.
func (r *Runner) Start(ctx context.Context) {
	if r == nil {
		return
	}
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logf("event=import_poll_failed error=%v", err)
		}
	}
}

// RunOnce claims and processes one batch of pending jobs.
func (r *Runner) RunOnce(ctx context.Context) error {
	pending, err := r.jobs.ListPending(ctx, pendingBatchSize)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range pending {
		job := pending[i]
		g.Go(func() error {
			claimed, err := r.jobs.Claim(gctx, job.ID)
			if err != nil {
				r.logf("event=import_claim_failed job_id=%s error=%v", job.ID, err)
				return nil
			}
			if !claimed {
				return nil
			}
			r.processJob(gctx, &job)
			return nil
		})
	}
	return g.Wait()
}

// processJob walks every row of one claimed job. Row failures are
// recorded and skipped; the job always ends completed.
func (r *Runner) processJob(ctx context.Context, job *importer.Job) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			job.Errors = append(job.Errors, importer.RowError{Row: job.ProcessedRows + 1, Reason: fmt.Sprintf("internal error: %v", rec)})
			r.finishJob(ctx, job, started)
		}
	}()

	r.logf("event=import_job_start org_id=%s job_id=%s kind=%s", job.OrgID, job.ID, job.Kind)
	job.Status = importer.StatusProcessing

	reader := csv.NewReader(bytes.NewReader(job.Payload))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headerRecord, err := reader.Read()
	if err != nil {
		// Header was readable at submission, so this is a stored-payload
		// fault, not a data error.
		job.Errors = append(job.Errors, importer.RowError{Row: 0, Reason: "unreadable header row"})
		r.finishJob(ctx, job, started)
		return
	}
	header, err := importer.ParseHeader(headerRecord)
	if err != nil {
		job.Errors = append(job.Errors, importer.RowError{Row: 0, Reason: err.Error()})
		r.finishJob(ctx, job, started)
		return
	}

	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			// The reader cannot resync reliably after a structural
			// error, so remaining rows are unreachable.
			job.TotalRows = row
			job.ProcessedRows = row
			job.FailedRows++
			job.Errors = append(job.Errors, importer.RowError{Row: row, Reason: fmt.Sprintf("unreadable row: %v", err)})
			metrics.AddImportRows(metrics.RowOutcomeFailed, 1)
			break
		}
		job.TotalRows = row
		r.processRow(ctx, job, header, record, row)
		job.ProcessedRows = row
		if err := r.jobs.UpdateProgress(ctx, job); err != nil {
			r.logf("event=import_progress_flush_failed job_id=%s error=%v", job.ID, err)
		}
	}

	r.finishJob(ctx, job, started)
}

// processRow imports one data row: resolve the location reference,
// create the entity, then attach each tag. Tags attach independently;
// a failed tag marks the row failed but leaves the entity and its
// other tags in place.
func (r *Runner) processRow(ctx context.Context, job *importer.Job, header *importer.Header, record []string, row int) {
	fail := func(reason string) {
		job.FailedRows++
		job.Errors = append(job.Errors, importer.RowError{Row: row, Reason: reason})
		metrics.AddImportRows(metrics.RowOutcomeFailed, 1)
	}

	spec, err := importer.ParseRow(header, record, job.Kind)
	if err != nil {
		fail(err.Error())
		return
	}

	entity := &inventory.Entity{
		OrgID:              job.OrgID,
		Kind:               job.Kind,
		CustomerIdentifier: spec.CustomerIdentifier,
		Name:               spec.Name,
		Type:               spec.Type,
		Description:        spec.Description,
		ValidFrom:          spec.ValidFrom,
		ValidTo:            spec.ValidTo,
		IsActive:           spec.IsActive,
		Metadata:           spec.Metadata,
	}
	if spec.LocationRef != "" {
		location, err := r.entities.GetByCustomerIdentifier(ctx, job.OrgID, inventory.KindLocation, spec.LocationRef)
		if err != nil {
			fail(fmt.Sprintf("resolve location %q: %v", spec.LocationRef, err))
			return
		}
		if location == nil {
			fail(fmt.Sprintf("no such location %q", spec.LocationRef))
			return
		}
		switch job.Kind {
		case inventory.KindAsset:
			entity.CurrentLocationID = &location.ID
		case inventory.KindLocation:
			entity.ParentID = &location.ID
		}
	}

	if err := r.entities.Create(ctx, entity); err != nil {
		fail(err.Error())
		return
	}

	rowFailed := false
	for _, tag := range spec.Tags {
		identifier := &inventory.TagIdentifier{
			OrgID:    job.OrgID,
			Type:     tag.Type,
			Value:    tag.Value,
			IsActive: true,
		}
		identifier.SetOwner(entity.Ref())
		if err := r.identifiers.Add(ctx, identifier); err != nil {
			rowFailed = true
			job.Errors = append(job.Errors, importer.RowError{Row: row, Reason: fmt.Sprintf("tag %s %q: %v", tag.Type, tag.Value, err)})
			continue
		}
		job.TagsCreated++
	}
	if rowFailed {
		job.FailedRows++
		metrics.AddImportRows(metrics.RowOutcomeFailed, 1)
		return
	}
	metrics.AddImportRows(metrics.RowOutcomeOK, 1)
}

func (r *Runner) finishJob(ctx context.Context, job *importer.Job, started time.Time) {
	if err := r.jobs.Complete(ctx, job); err != nil {
		r.logf("event=import_complete_failed job_id=%s error=%v", job.ID, err)
		metrics.ObserveImportJob(metrics.ResultError, time.Since(started))
		return
	}
	metrics.ObserveImportJob(metrics.ResultSuccess, time.Since(started))
	r.logf("event=import_job_done org_id=%s job_id=%s total=%d failed=%d tags=%d",
		job.OrgID, job.ID, job.TotalRows, job.FailedRows, job.TagsCreated)

	if r.notifier != nil {
		msg := notify.JobMessage{
			JobID:         job.ID,
			OrgID:         job.OrgID,
			Kind:          string(job.Kind),
			Filename:      job.Filename,
			Status:        string(job.Status),
			TotalRows:     job.TotalRows,
			ProcessedRows: job.ProcessedRows,
			FailedRows:    job.FailedRows,
			TagsCreated:   job.TagsCreated,
			CompletedAt:   job.CompletedAt,
		}
		if err := r.notifier.Notify(ctx, msg); err != nil {
			r.logf("event=import_notify_failed job_id=%s error=%v", job.ID, err)
		}
	}
}

func (r *Runner) logf(format string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
