// Package mail implements the notification port: fire-and-forget message
// delivery to an email address. An SMTP sender covers production; the memory
// sender backs tests and development.
package mail

import "context"

// Message is one outbound notification.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message to a recipient. Implementations should fail
// within a bounded time; the core never retries.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}
