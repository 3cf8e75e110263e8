// internal/model/pending_contact.go
package model

import "time"

// PendingContact is an address awaiting confirmation before it joins a
// mailing list. Entries per (email, mailing list) pair are capped and
// stale entries are purged periodically.
type PendingContact struct {
	ID            int64     `db:"id" json:"id"`
	PID           string    `db:"pid" json:"pid"` // verification token
	Email         string    `db:"email" json:"email"`
	MailingListID int64     `db:"mailing_list_id" json:"mailing_list_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
