// internal/mail/test_transport.go
package mail

import (
	"context"
	"sync"
)

// TestTransport records messages instead of transmitting them. It backs
// the test-mode setting and the test suites.
type TestTransport struct {
	mu   sync.Mutex
	sent []Message
}

func NewTestTransport() *TestTransport {
	return &TestTransport{}
}

func (t *TestTransport) Send(_ context.Context, msg *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, *msg)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (t *TestTransport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.sent))
	copy(out, t.sent)
	return out
}

var _ Transport = (*TestTransport)(nil)
