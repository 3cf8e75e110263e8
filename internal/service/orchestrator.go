package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/brightflock/sendout-backend/internal/budget"
	"github.com/brightflock/sendout-backend/internal/config"
	"github.com/brightflock/sendout-backend/internal/mail"
	"github.com/brightflock/sendout-backend/internal/metrics"
	"github.com/brightflock/sendout-backend/internal/model"
	"github.com/brightflock/sendout-backend/internal/notify"
	"github.com/brightflock/sendout-backend/internal/queue"
	"github.com/brightflock/sendout-backend/internal/repository"
)

// batchMonitor is the yield decision the batch loop consults after
// every send.
type batchMonitor interface {
	ShouldYield() bool
	Elapsed() time.Duration
}

// Orchestrator drives one batch of a sendout through the mail transport.
// It owns the only correctness-critical lock in the system: the keyed
// mutex that guarantees at most one active batch per sendout.
type Orchestrator struct {
	cfg         config.Config
	sendoutRepo repository.SendoutRepositoryInterface
	contactRepo repository.ContactRepositoryInterface
	sendLog     repository.SendLogRepositoryInterface
	jobs        queue.JobQueue
	retry       *RetryController
	notifier    notify.Notifier
	log         zerolog.Logger

	locks   *keyedMutex
	limiter *rate.Limiter

	newMonitor func() batchMonitor
	now        func() time.Time
}

func NewOrchestrator(
	cfg config.Config,
	sendoutRepo repository.SendoutRepositoryInterface,
	contactRepo repository.ContactRepositoryInterface,
	sendLog repository.SendLogRepositoryInterface,
	jobs queue.JobQueue,
	retry *RetryController,
	notifier notify.Notifier,
	log zerolog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		cfg:         cfg,
		sendoutRepo: sendoutRepo,
		contactRepo: contactRepo,
		sendLog:     sendLog,
		jobs:        jobs,
		retry:       retry,
		notifier:    notifier,
		log:         log,
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
	if cfg.SendRatePerSecond > 0 {
		o.limiter = rate.NewLimiter(rate.Limit(cfg.SendRatePerSecond), 1)
	}
	o.newMonitor = func() batchMonitor {
		return budget.NewMonitor(budget.Limits{
			MemoryLimit:          cfg.MemoryLimit,
			TimeLimit:            cfg.TimeLimit,
			UnlimitedMemoryLimit: cfg.UnlimitedMemoryLimit,
			UnlimitedTimeLimit:   cfg.UnlimitedTimeLimit,
			MemoryThreshold:      cfg.MemoryThreshold,
			TimeThreshold:        cfg.TimeThreshold,
		})
	}
	return o
}

// Run processes one batch job. A returned error means the job itself
// failed and should go back through the per-job retry policy; per-message
// failures never propagate out of the loop. The mutex is released on
// every exit path.
func (o *Orchestrator) Run(ctx context.Context, job queue.BatchJob) error {
	if !o.locks.TryLock(job.SendoutID) {
		o.log.Info().Int64("sendout_id", job.SendoutID).Msg("batch already running, skipping")
		metrics.RecordBatchJob("skipped")
		return nil
	}
	defer o.locks.Unlock(job.SendoutID)

	sendout, err := o.sendoutRepo.GetByID(job.SendoutID)
	if err != nil {
		return err
	}
	if sendout.SendStatus.Terminal() || sendout.SendStatus == model.StatusPaused {
		metrics.RecordBatchJob("stale")
		return nil
	}
	if sendout.SendStatus != model.StatusSending {
		if !sendout.SendStatus.CanTransitionTo(model.StatusSending) {
			metrics.RecordBatchJob("stale")
			return nil
		}
		if err := o.sendoutRepo.UpdateStatus(sendout.ID, model.StatusSending); err != nil {
			return err
		}
	}

	// The job cursor can lag behind the persisted one when a crashed
	// job is reclaimed; the persisted cursor always wins.
	cursor := job.Cursor
	if sendout.Cursor > cursor {
		cursor = sendout.Cursor
	}

	mon := o.newMonitor()
	contacts, err := o.contactRepo.NextUnsent(sendout.ID, sendout.MailingListID, cursor, o.cfg.MaxBatchSize)
	if err != nil {
		return err
	}

	for _, contact := range contacts {
		status, err := o.sendoutRepo.GetStatus(sendout.ID)
		if err != nil {
			return err
		}
		if status == model.StatusCancelled {
			o.log.Info().Int64("sendout_id", sendout.ID).Msg("sendout cancelled, aborting batch")
			metrics.RecordBatchJob("cancelled")
			return nil
		}
		if status == model.StatusPaused {
			metrics.RecordBatchJob("paused")
			return nil
		}

		if err := o.processContact(ctx, sendout, contact); err != nil {
			return err
		}

		cursor = contact.ID
		if err := o.sendoutRepo.UpdateCursor(sendout.ID, cursor); err != nil {
			return err
		}

		// Cooperative checkpoint: a send in flight always completes
		// before this runs.
		if mon.ShouldYield() {
			metrics.RecordYield()
			metrics.RecordBatchJob("yielded")
			o.log.Info().
				Int64("sendout_id", sendout.ID).
				Int64("cursor", cursor).
				Dur("elapsed", mon.Elapsed()).
				Msg("resource budget reached, yielding")
			return o.jobs.Enqueue(ctx, queue.NewBatchJob(sendout.ID, cursor), o.cfg.BatchJobDelay)
		}
	}

	remaining, err := o.contactRepo.CountUnsent(sendout.ID, sendout.MailingListID, cursor)
	if err != nil {
		return err
	}
	if remaining > 0 {
		metrics.RecordBatchJob("continued")
		return o.jobs.Enqueue(ctx, queue.NewBatchJob(sendout.ID, cursor), o.cfg.BatchJobDelay)
	}

	metrics.RecordBatchJob("completed")
	return o.finish(ctx, sendout, cursor)
}

// processContact sends to one recipient, skipping anyone the send log
// already covers.
func (o *Orchestrator) processContact(ctx context.Context, sendout *model.Sendout, contact model.Contact) error {
	sent, err := o.sendLog.WasSent(sendout.ID, contact.ID)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	msg := &mail.Message{
		FromName:  sendout.FromName,
		FromEmail: sendout.FromEmail,
		To:        contact.Email,
		Subject:   sendout.Subject,
		Body:      sendout.Body,
	}
	if err := o.retry.SendWithRetry(ctx, msg); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Permanent per-message failure: record, skip, keep going.
		o.log.Warn().Err(err).Int64("sendout_id", sendout.ID).Int64("contact_id", contact.ID).Msg("delivery failed permanently")
		metrics.RecordEmail("failed")
		return o.sendLog.RecordFailed(sendout.ID, contact.ID, err.Error())
	}

	metrics.RecordEmail("sent")
	return o.sendLog.RecordSent(sendout.ID, contact.ID)
}

// finish runs once the recipient set is exhausted. Regular sendouts
// reach the terminal sent state; automated ones return to pending with
// a reset cursor so the next occurrence can fire.
func (o *Orchestrator) finish(ctx context.Context, sendout *model.Sendout, cursor int64) error {
	now := o.now()

	if sendout.SendoutType == model.TypeAutomated && sendout.Schedule != nil {
		var nextDate *time.Time
		if next, ok := sendout.Schedule.NextOccurrence(now); ok {
			nextDate = &next
		}
		if err := o.sendoutRepo.UpdateSchedulingFields(sendout.ID, nextDate, &now, 0); err != nil {
			return err
		}
		if err := o.sendoutRepo.UpdateStatus(sendout.ID, model.StatusPending); err != nil {
			return err
		}
		o.log.Info().Int64("sendout_id", sendout.ID).Msg("automated sendout cycle completed")
		return nil
	}

	if err := o.sendoutRepo.UpdateSchedulingFields(sendout.ID, nil, &now, cursor); err != nil {
		return err
	}
	if err := o.sendoutRepo.UpdateStatus(sendout.ID, model.StatusSent); err != nil {
		return err
	}
	metrics.RecordTerminal(string(model.StatusSent))
	o.log.Info().Int64("sendout_id", sendout.ID).Msg("sendout completed")

	sendout.SendStatus = model.StatusSent
	if o.notifier != nil {
		_ = o.notifier.SendoutCompleted(ctx, sendout)
	}
	return nil
}
