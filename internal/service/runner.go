// internal/service/runner.go
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightflock/sendout-backend/internal/config"
	"github.com/brightflock/sendout-backend/internal/queue"
)

// Runner is the worker-side claim loop: it reserves one job at a time,
// drives it through the orchestrator, and routes failures through the
// per-job retry policy.
type Runner struct {
	Cfg   config.Config
	Queue queue.JobQueue
	Orch  *Orchestrator
	Retry *RetryController
	Log   zerolog.Logger

	// PollInterval is how long to sleep when the queue is empty.
	PollInterval time.Duration
}

// Start loops until the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	poll := r.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	for {
		processed, err := r.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			r.Log.Error().Err(err).Msg("job processing error")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(poll):
		}
	}
}

// ProcessNext claims and runs at most one job. The bool reports whether
// a job was available.
func (r *Runner) ProcessNext(ctx context.Context) (bool, error) {
	claimed, err := r.Queue.Claim(ctx, r.Cfg.SendoutJobTTR)
	if err != nil {
		return false, err
	}
	if claimed == nil {
		return false, nil
	}

	runErr := r.Orch.Run(ctx, claimed.Job)
	if runErr == nil {
		return true, r.Queue.Complete(ctx, claimed)
	}

	r.Log.Warn().Err(runErr).
		Int64("sendout_id", claimed.Job.SendoutID).
		Int("attempt", claimed.Job.Attempt).
		Msg("batch job failed")

	retry, err := r.Retry.HandleJobFailure(ctx, claimed.Job.SendoutID)
	if err != nil {
		// The retry accounting itself failed; dropping the job here
		// would strand the sendout in sending forever. Re-queue so the
		// accounting gets another chance.
		r.Log.Error().Err(err).Int64("sendout_id", claimed.Job.SendoutID).Msg("failure handling error")
		return true, r.Queue.Fail(ctx, claimed, r.Cfg.BatchJobDelay)
	}
	if retry {
		return true, r.Queue.Fail(ctx, claimed, r.Cfg.BatchJobDelay)
	}
	// Terminal: drop the job, the sendout is already marked failed.
	return true, r.Queue.Complete(ctx, claimed)
}
