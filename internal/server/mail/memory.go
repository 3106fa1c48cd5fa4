package mail

import (
	"context"
	"sync"
)

// Sent records one delivered message for inspection in tests.
type Sent struct {
	To      string
	Message Message
}

// MemorySender collects messages instead of delivering them.
type MemorySender struct {
	mu   sync.Mutex
	sent []Sent
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(ctx context.Context, to string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, Sent{To: to, Message: msg})
	return nil
}

// Messages returns a copy of everything sent so far.
func (s *MemorySender) Messages() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Sent, len(s.sent))
	copy(out, s.sent)
	return out
}

// SentTo returns the messages addressed to the given recipient.
func (s *MemorySender) SentTo(to string) []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Sent
	for _, m := range s.sent {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}
