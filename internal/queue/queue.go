package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BatchJob is one unit of sendout processing. It exists only in the
// queue; the cursor says where the batch loop resumes.
type BatchJob struct {
	ID         string    `json:"id"`
	SendoutID  int64     `json:"sendout_id"`
	Cursor     int64     `json:"cursor"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewBatchJob builds a job for the given sendout starting at cursor.
func NewBatchJob(sendoutID, cursor int64) BatchJob {
	return BatchJob{
		ID:         uuid.NewString(),
		SendoutID:  sendoutID,
		Cursor:     cursor,
		EnqueuedAt: time.Now(),
	}
}

// Claimed wraps a job together with the queue-specific receipt needed to
// complete or fail it.
type Claimed struct {
	Job     BatchJob
	receipt any
}

// JobQueue is the queue abstraction the dispatch engine runs against.
// Claim reserves a job for ttr; a job that is neither completed nor
// failed within that window is presumed crashed and becomes claimable
// again.
type JobQueue interface {
	Enqueue(ctx context.Context, job BatchJob, delay time.Duration) error
	Claim(ctx context.Context, ttr time.Duration) (*Claimed, error)
	Complete(ctx context.Context, c *Claimed) error
	Fail(ctx context.Context, c *Claimed, delay time.Duration) error
}
