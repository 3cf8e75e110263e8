// internal/mail/transport.go
package mail

import "context"

// Message is a fully composed email ready for transport. Body rendering
// happens upstream; the transport treats it as opaque HTML.
type Message struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	Body      string
}

// Transport delivers a single message. Implementations must wrap
// failures in appErrors.TransportError so the retry policy can tell
// temporary failures from permanent ones.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}
