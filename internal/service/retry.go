package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/brightflock/sendout-backend/internal/config"
	appErrors "github.com/brightflock/sendout-backend/internal/errors"
	"github.com/brightflock/sendout-backend/internal/mail"
	"github.com/brightflock/sendout-backend/internal/metrics"
	"github.com/brightflock/sendout-backend/internal/model"
	"github.com/brightflock/sendout-backend/internal/notify"
	"github.com/brightflock/sendout-backend/internal/repository"
)

// RetryController bounds two independent failure counters: send attempts
// per message and retry attempts per batch job.
type RetryController struct {
	Cfg         config.Config
	Transport   mail.Transport
	SendoutRepo repository.SendoutRepositoryInterface
	Notifier    notify.Notifier
	Log         zerolog.Logger

	// InitialBackoff overrides the first retry interval; zero means the
	// 500ms default.
	InitialBackoff time.Duration
}

// SendWithRetry delivers one message, retrying temporary transport
// failures with exponential backoff up to maxSendAttempts. The returned
// error, if any, is permanent for this contact; the caller records it
// and continues the batch.
func (rc *RetryController) SendWithRetry(ctx context.Context, msg *mail.Message) error {
	var lastErr error
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 500 * time.Millisecond
	if rc.InitialBackoff > 0 {
		backoffCfg.InitialInterval = rc.InitialBackoff
	}
	backoffCfg.MaxInterval = 10 * time.Second

	for attempt := 1; attempt <= rc.Cfg.MaxSendAttempts; attempt++ {
		lastErr = rc.Transport.Send(ctx, msg)
		if lastErr == nil {
			return nil
		}
		if !appErrors.IsTemporary(lastErr) {
			return lastErr
		}
		if attempt == rc.Cfg.MaxSendAttempts {
			break
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			break
		}
		rc.Log.Debug().Err(lastErr).Str("to", msg.To).Int("attempt", attempt).Msg("transient send failure, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return lastErr
}

// HandleJobFailure bumps the sendout's job attempt counter. Once it
// passes maxRetryAttempts, the sendout is marked failed (exactly once,
// the transition guard rejects repeats) and one notification fires. The
// returned bool says whether the job should be re-queued.
func (rc *RetryController) HandleJobFailure(ctx context.Context, sendoutID int64) (retry bool, err error) {
	attempts, err := rc.SendoutRepo.IncrementSendAttempts(sendoutID)
	if err != nil {
		return false, err
	}
	if attempts < rc.Cfg.MaxRetryAttempts {
		return true, nil
	}

	sendout, err := rc.SendoutRepo.GetByID(sendoutID)
	if err != nil {
		return false, err
	}
	if !sendout.SendStatus.CanTransitionTo(model.StatusFailed) {
		return false, nil
	}
	if err := rc.SendoutRepo.UpdateStatus(sendoutID, model.StatusFailed); err != nil {
		return false, err
	}
	metrics.RecordTerminal(string(model.StatusFailed))
	rc.Log.Error().Int64("sendout_id", sendoutID).Int("attempts", attempts).Msg("sendout failed permanently")

	sendout.SendStatus = model.StatusFailed
	if rc.Notifier != nil {
		_ = rc.Notifier.SendoutFailed(ctx, sendout)
	}
	return false, nil
}
