// Package notify publishes domain notifications after a unit of work commits.
package notify

import (
	"context"
	"sync"
	"time"
)

// Routing keys for published messages.
const (
	EventPublished   = "event.published"
	EventRejected    = "event.rejected"
	EventCanceled    = "event.canceled"
	RequestConfirmed = "request.confirmed"
	RequestRejected  = "request.rejected"
	RequestCanceled  = "request.canceled"
)

type Message struct {
	Type       string    `json:"type"`
	EventID    string    `json:"eventId"`
	RequestID  string    `json:"requestId,omitempty"`
	UserID     string    `json:"userId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers messages to subscribers. Delivery is best-effort:
// callers log failures and never roll back on them.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, Message) error { return nil }

// Recorder keeps published messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Publish(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Types returns the routing keys of recorded messages in publish order.
func (r *Recorder) Types() []string {
	msgs := r.Messages()
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, msg.Type)
	}
	return out
}
