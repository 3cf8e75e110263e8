// internal/model/send_log.go
package model

import "time"

// SendLogEntry records one delivery outcome for a (sendout, contact)
// pair. The log is append-only; at most one entry exists per pair,
// which is what makes continuation jobs idempotent.
type SendLogEntry struct {
	ID        int64     `db:"id" json:"id"`
	SendoutID int64     `db:"sendout_id" json:"sendout_id"`
	ContactID int64     `db:"contact_id" json:"contact_id"`
	Status    string    `db:"status" json:"status"` // sent, failed
	LastError string    `db:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	SendLogSent   = "sent"
	SendLogFailed = "failed"
)
