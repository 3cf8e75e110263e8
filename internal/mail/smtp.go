// internal/mail/smtp.go
package mail

import (
	"context"
	"net"

	"gopkg.in/gomail.v2"

	appErrors "github.com/brightflock/sendout-backend/internal/errors"
)

// SMTPTransport sends mail over SMTP using gomail.
type SMTPTransport struct {
	Host     string
	Port     int
	User     string
	Password string
}

func NewSMTPTransport(host string, port int, user, password string) *SMTPTransport {
	return &SMTPTransport{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
	}
}

func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", msg.FromEmail, msg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)

	d := gomail.NewDialer(t.Host, t.Port, t.User, t.Password)
	if err := d.DialAndSend(m); err != nil {
		return &appErrors.TransportError{Err: err, Temporary: isTemporary(err)}
	}
	return nil
}

// isTemporary classifies network-level failures as retryable. Anything
// the SMTP server rejected outright (bad address, auth) is permanent.
func isTemporary(err error) bool {
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout()
	}
	if _, ok := err.(*net.OpError); ok {
		return true
	}
	return false
}

var _ Transport = (*SMTPTransport)(nil)
