// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/brightflock/sendout-backend/internal/mail"
	"github.com/brightflock/sendout-backend/internal/model"
)

// Notifier informs an operator when a sendout reaches a terminal state.
type Notifier interface {
	SendoutCompleted(ctx context.Context, s *model.Sendout) error
	SendoutFailed(ctx context.Context, s *model.Sendout) error
}

// EmailNotifier delivers operator notifications over the mail transport
// to the sendout's notification address. Sendouts without one are
// skipped silently.
type EmailNotifier struct {
	Transport mail.Transport
	FromName  string
	FromEmail string
	Log       zerolog.Logger
}

func (n *EmailNotifier) SendoutCompleted(ctx context.Context, s *model.Sendout) error {
	return n.send(ctx, s,
		fmt.Sprintf("Sendout completed: %s", s.Title),
		fmt.Sprintf("<p>The sendout <strong>%s</strong> has completed successfully.</p>", s.Title),
	)
}

func (n *EmailNotifier) SendoutFailed(ctx context.Context, s *model.Sendout) error {
	return n.send(ctx, s,
		fmt.Sprintf("Sendout failed: %s", s.Title),
		fmt.Sprintf("<p>The sendout <strong>%s</strong> has failed after repeated attempts.</p>", s.Title),
	)
}

func (n *EmailNotifier) send(ctx context.Context, s *model.Sendout, subject, body string) error {
	if s.NotificationEmail == "" {
		return nil
	}
	err := n.Transport.Send(ctx, &mail.Message{
		FromName:  n.FromName,
		FromEmail: n.FromEmail,
		To:        s.NotificationEmail,
		Subject:   subject,
		Body:      body,
	})
	if err != nil {
		n.Log.Warn().Err(err).Int64("sendout_id", s.ID).Msg("notification delivery failed")
	}
	return err
}

var _ Notifier = (*EmailNotifier)(nil)
