// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrSendoutNotFound is a sentinel error
type ErrSendoutNotFound struct {
	SendoutID int64
}

func (e *ErrSendoutNotFound) Error() string {
	return fmt.Sprintf("sendout with ID %d not found", e.SendoutID)
}

// Helper constructor
func NewSendoutNotFound(id int64) error {
	return &ErrSendoutNotFound{SendoutID: id}
}

// ErrInvalidTransition reports an illegal sendout state machine edge.
type ErrInvalidTransition struct {
	From, To string
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("illegal sendout transition from %q to %q", e.From, e.To)
}

func NewInvalidTransition(from, to string) error {
	return &ErrInvalidTransition{From: from, To: to}
}

// ErrPendingLimitReached means the (email, mailing list) pair already
// holds the maximum number of pending contacts.
var ErrPendingLimitReached = errors.New("pending contact limit reached for this email and mailing list")

// TransportError wraps a mail transport failure. Temporary failures are
// retried per the send attempt policy; permanent ones are recorded and
// the contact is skipped.
type TransportError struct {
	Err       error
	Temporary bool
}

func (e *TransportError) Error() string {
	kind := "permanent"
	if e.Temporary {
		kind = "temporary"
	}
	return fmt.Sprintf("%s transport error: %v", kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTemporary reports whether err is a transport error worth retrying.
func IsTemporary(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Temporary
}
