// internal/service/pending_service.go
package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brightflock/sendout-backend/internal/config"
	appErrors "github.com/brightflock/sendout-backend/internal/errors"
	"github.com/brightflock/sendout-backend/internal/model"
	"github.com/brightflock/sendout-backend/internal/repository"
)

// PendingService handles unconfirmed subscription attempts: admission
// under the per-pair cap, verification, and purging of stale entries.
type PendingService struct {
	Cfg         config.Config
	PendingRepo repository.PendingContactRepositoryInterface
	ContactRepo repository.ContactRepositoryInterface
	Log         zerolog.Logger
}

// Admit stores a new pending contact unless the (email, mailing list)
// pair is already at the cap.
func (s *PendingService) Admit(email string, mailingListID int64) (*model.PendingContact, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}

	count, err := s.PendingRepo.CountByEmailAndList(email, mailingListID)
	if err != nil {
		return nil, err
	}
	if count >= s.Cfg.MaxPendingContacts {
		return nil, appErrors.ErrPendingLimitReached
	}

	pending := &model.PendingContact{
		PID:           uuid.NewString(),
		Email:         email,
		MailingListID: mailingListID,
	}
	if err := s.PendingRepo.Create(pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// Verify promotes a pending contact into a subscribed contact and clears
// every pending entry for the pair.
func (s *PendingService) Verify(pid string) (*model.Contact, error) {
	pending, err := s.PendingRepo.GetByPID(pid)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		return nil, fmt.Errorf("pending contact not found")
	}

	contact, err := s.ContactRepo.Subscribe(pending.Email, pending.MailingListID)
	if err != nil {
		return nil, err
	}
	if err := s.PendingRepo.DeleteByEmailAndList(pending.Email, pending.MailingListID); err != nil {
		return nil, err
	}
	return contact, nil
}

// PurgeExpired deletes pending contacts older than the configured
// duration. A zero duration disables purging entirely.
func (s *PendingService) PurgeExpired(now time.Time) (int64, error) {
	if s.Cfg.PurgePendingContactsDuration == 0 {
		return 0, nil
	}
	purged, err := s.PendingRepo.DeleteOlderThan(now.Add(-s.Cfg.PurgePendingContactsDuration))
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.Log.Info().Int64("purged", purged).Msg("purged expired pending contacts")
	}
	return purged, nil
}
