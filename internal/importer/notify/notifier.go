package notify

import (
	"context"
	"time"
)

// JobMessage is the summary posted when an import job completes.
type JobMessage struct {
	JobID         string     `json:"job_id"`
	OrgID         string     `json:"org_id"`
	Kind          string     `json:"kind"`
	Filename      string     `json:"filename,omitempty"`
	Status        string     `json:"status"`
	TotalRows     int        `json:"total_rows"`
	ProcessedRows int        `json:"processed_rows"`
	FailedRows    int        `json:"failed_rows"`
	TagsCreated   int        `json:"tags_created"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Notifier delivers job completion messages.
type Notifier interface {
	Notify(ctx context.Context, msg JobMessage) error
}
