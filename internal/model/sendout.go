// internal/model/sendout.go
package model

import (
	"time"

	"github.com/brightflock/sendout-backend/internal/schedule"
)

// SendoutType identifies how a sendout is triggered.
type SendoutType string

const (
	TypeRegular      SendoutType = "regular"
	TypeAutomated    SendoutType = "automated"
	TypeNotification SendoutType = "notification"
	TypeTest         SendoutType = "test"
)

// SendStatus is the lifecycle state of a sendout.
type SendStatus string

const (
	StatusDraft     SendStatus = "draft"
	StatusPending   SendStatus = "pending"
	StatusQueued    SendStatus = "queued"
	StatusSending   SendStatus = "sending"
	StatusPaused    SendStatus = "paused"
	StatusSent      SendStatus = "sent"
	StatusFailed    SendStatus = "failed"
	StatusCancelled SendStatus = "cancelled"
)

// legalTransitions holds the allowed state machine edges.
// sent, failed and cancelled are terminal.
var legalTransitions = map[SendStatus][]SendStatus{
	StatusDraft:   {StatusPending, StatusCancelled},
	StatusPending: {StatusQueued, StatusCancelled},
	StatusQueued:  {StatusSending, StatusPaused, StatusCancelled},
	StatusSending: {StatusSent, StatusFailed, StatusPaused, StatusCancelled, StatusPending},
	StatusPaused:  {StatusQueued, StatusCancelled},
}

// CanTransitionTo reports whether moving from s to target is a legal edge.
func (s SendStatus) CanTransitionTo(target SendStatus) bool {
	for _, t := range legalTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s SendStatus) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

type Sendout struct {
	ID                int64              `db:"id" json:"id"`
	Title             string             `db:"title" json:"title"`
	SendoutType       SendoutType        `db:"sendout_type" json:"sendout_type"`
	SendStatus        SendStatus         `db:"send_status" json:"send_status"`
	MailingListID     int64              `db:"mailing_list_id" json:"mailing_list_id"`
	Subject           string             `db:"subject" json:"subject"`
	FromName          string             `db:"from_name" json:"from_name"`
	FromEmail         string             `db:"from_email" json:"from_email"`
	Body              string             `db:"body" json:"body"`
	NotificationEmail string             `db:"notification_email" json:"notification_email,omitempty"`
	Schedule          *schedule.Schedule `db:"schedule" json:"schedule,omitempty"`
	SendDate          *time.Time         `db:"send_date" json:"send_date,omitempty"`
	LastSent          *time.Time         `db:"last_sent" json:"last_sent,omitempty"`
	Cursor            int64              `db:"cursor" json:"cursor"`
	SendAttempts      int                `db:"send_attempts" json:"send_attempts"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time         `db:"updated_at" json:"updated_at,omitempty"`
}

// Sendable reports whether the sendout may still be picked up by the
// schedule evaluator.
func (s *Sendout) Sendable() bool {
	return s.SendStatus == StatusPending || s.SendStatus == StatusQueued
}
