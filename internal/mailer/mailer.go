// Package mailer abstracts the outbound email provider. Two production
// backends are provided: AWS SES v2 and a generic HTTP delivery API.
// Services depend only on the Mailer interface so tests can inject a mock.
package mailer

import (
	"context"
	"fmt"
	"sync"
)

// Message is one outbound email.
type Message struct {
	FromEmail string
	FromName  string
	To        string
	Subject   string
	TextBody  string
	HTMLBody  string
}

// Mailer sends a single email. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Mock records sent messages and can be told to fail specific recipients.
// Intended for service tests.
type Mock struct {
	mu      sync.Mutex
	Sent    []Message
	FailFor map[string]error
	FailAll error
}

// NewMock returns an empty recording mailer.
func NewMock() *Mock {
	return &Mock{FailFor: make(map[string]error)}
}

// Send records the message, or returns the configured error for the
// recipient.
func (m *Mock) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAll != nil {
		return m.FailAll
	}
	if err, ok := m.FailFor[msg.To]; ok {
		return err
	}
	m.Sent = append(m.Sent, msg)
	return nil
}

// SentTo reports whether a message was recorded for the given address.
func (m *Mock) SentTo(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.Sent {
		if msg.To == email {
			return true
		}
	}
	return false
}

// Count returns the number of recorded messages.
func (m *Mock) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// FormatFrom renders the From header value for a message.
func FormatFrom(msg Message) string {
	if msg.FromName == "" {
		return msg.FromEmail
	}
	return fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)
}
