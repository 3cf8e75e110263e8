// internal/service/sendout_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/brightflock/sendout-backend/internal/errors"
	"github.com/brightflock/sendout-backend/internal/metrics"
	"github.com/brightflock/sendout-backend/internal/model"
	"github.com/brightflock/sendout-backend/internal/queue"
	"github.com/brightflock/sendout-backend/internal/repository"
	"github.com/brightflock/sendout-backend/internal/schedule"
)

type SendoutService struct {
	SendoutRepo repository.SendoutRepositoryInterface
	SendLogRepo repository.SendLogRepositoryInterface
	Queue       queue.JobQueue
	Log         zerolog.Logger
}

type SendoutDetails struct {
	*model.Sendout
	Stats map[string]int `json:"stats"`
}

// CreateSendoutInput is the request-side shape; the schedule is
// validated here, before any job can ever exist for the sendout.
type CreateSendoutInput struct {
	Title             string             `json:"title"`
	SendoutType       model.SendoutType  `json:"sendout_type"`
	MailingListID     int64              `json:"mailing_list_id"`
	Subject           string             `json:"subject"`
	FromName          string             `json:"from_name"`
	FromEmail         string             `json:"from_email"`
	Body              string             `json:"body"`
	NotificationEmail string             `json:"notification_email"`
	Schedule          *schedule.Schedule `json:"schedule"`
}

func (s *SendoutService) CreateSendout(in CreateSendoutInput) (*model.Sendout, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("sendout title is required")
	}
	if in.MailingListID == 0 {
		return nil, fmt.Errorf("sendout mailing list is required")
	}

	switch in.SendoutType {
	case model.TypeRegular, model.TypeAutomated, model.TypeNotification, model.TypeTest:
	default:
		return nil, fmt.Errorf("unknown sendout type %q", in.SendoutType)
	}

	sched := in.Schedule
	if sched == nil {
		sched = &schedule.Schedule{Type: schedule.Immediate}
	}
	if err := sched.Validate(); err != nil {
		return nil, err
	}
	if in.SendoutType == model.TypeAutomated && sched.Type != schedule.Recurring {
		return nil, fmt.Errorf("automated sendouts require a recurring schedule")
	}
	if in.SendoutType != model.TypeAutomated && sched.Type == schedule.Recurring {
		return nil, fmt.Errorf("recurring schedules are only valid for automated sendouts")
	}

	sendout := &model.Sendout{
		Title:             in.Title,
		SendoutType:       in.SendoutType,
		SendStatus:        model.StatusPending,
		MailingListID:     in.MailingListID,
		Subject:           in.Subject,
		FromName:          in.FromName,
		FromEmail:         in.FromEmail,
		Body:              in.Body,
		NotificationEmail: in.NotificationEmail,
		Schedule:          sched,
	}
	if next, ok := sched.NextOccurrence(time.Now()); ok {
		sendout.SendDate = &next
	}

	if err := s.SendoutRepo.Create(sendout); err != nil {
		return nil, err
	}
	return sendout, nil
}

// ListSendouts fetches sendouts with pagination
func (s *SendoutService) ListSendouts(page, pageSize int, sendoutType, status string) ([]model.Sendout, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.SendoutRepo.ListSendouts(offset, pageSize, sendoutType, status)
	if err != nil {
		return nil, nil, err
	}

	sendouts := make([]model.Sendout, len(ptrs))
	for i, so := range ptrs {
		sendouts[i] = *so
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return sendouts, pagination, nil
}

// GetSendoutDetailsWithStats returns a sendout together with aggregate
// delivery counts from the send log.
func (s *SendoutService) GetSendoutDetailsWithStats(id int64) (*SendoutDetails, error) {
	sendout, err := s.SendoutRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	stats, err := s.SendLogRepo.Stats(id)
	if err != nil {
		return nil, err
	}
	return &SendoutDetails{Sendout: sendout, Stats: stats}, nil
}

// SendNow queues the sendout immediately, bypassing the schedule.
func (s *SendoutService) SendNow(ctx context.Context, id int64) error {
	sendout, err := s.SendoutRepo.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.transition(sendout, model.StatusQueued); err != nil {
		return err
	}
	return s.Queue.Enqueue(ctx, queue.NewBatchJob(sendout.ID, sendout.Cursor), 0)
}

// Pause suspends a queued or sending sendout. A running batch observes
// the status change at its next per-contact check and exits without
// queuing a continuation.
func (s *SendoutService) Pause(id int64) error {
	sendout, err := s.SendoutRepo.GetByID(id)
	if err != nil {
		return err
	}
	return s.transition(sendout, model.StatusPaused)
}

// Resume re-queues a paused sendout; the persisted cursor makes it
// continue where it stopped.
func (s *SendoutService) Resume(ctx context.Context, id int64) error {
	sendout, err := s.SendoutRepo.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.transition(sendout, model.StatusQueued); err != nil {
		return err
	}
	return s.Queue.Enqueue(ctx, queue.NewBatchJob(sendout.ID, sendout.Cursor), 0)
}

// Cancel terminally stops a sendout.
func (s *SendoutService) Cancel(id int64) error {
	sendout, err := s.SendoutRepo.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.transition(sendout, model.StatusCancelled); err != nil {
		return err
	}
	metrics.RecordTerminal(string(model.StatusCancelled))
	return nil
}

func (s *SendoutService) transition(sendout *model.Sendout, target model.SendStatus) error {
	if !sendout.SendStatus.CanTransitionTo(target) {
		return appErrors.NewInvalidTransition(string(sendout.SendStatus), string(target))
	}
	if err := s.SendoutRepo.UpdateStatus(sendout.ID, target); err != nil {
		return err
	}
	sendout.SendStatus = target
	return nil
}

// QueueDueSendouts evaluates every pending sendout's schedule and
// enqueues a batch job for each one that is due. Runs on the worker's
// scheduler tick.
func (s *SendoutService) QueueDueSendouts(ctx context.Context, now time.Time) (int, error) {
	sendouts, err := s.SendoutRepo.ListSendable()
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, sendout := range sendouts {
		if sendout.SendStatus != model.StatusPending {
			continue
		}
		sched := sendout.Schedule
		if sched == nil {
			sched = &schedule.Schedule{Type: schedule.Immediate}
		}
		if !sched.IsDue(now, sendout.LastSent) {
			continue
		}
		if err := s.transition(sendout, model.StatusQueued); err != nil {
			s.Log.Warn().Err(err).Int64("sendout_id", sendout.ID).Msg("cannot queue sendout")
			continue
		}
		if err := s.Queue.Enqueue(ctx, queue.NewBatchJob(sendout.ID, sendout.Cursor), 0); err != nil {
			return queued, err
		}
		s.Log.Info().Int64("sendout_id", sendout.ID).Msg("sendout due, queued batch job")
		queued++
	}
	return queued, nil
}
