package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/autoreader/internal/docstore"
)

// Messages is the durable append-only message log.
type Messages struct {
	path string
	mu   sync.Mutex
}

// NewMessages returns a message log backed by the document at path.
func NewMessages(path string) *Messages {
	return &Messages{path: path}
}

// Append adds m to the end of the log. An unreadable log is treated as
// empty, so a corrupted file loses its history on the next append.
func (l *Messages) Append(m Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	msgs := l.load()
	msgs = append(msgs, m)
	if err := docstore.Replace(l.path, msgs); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// All returns the log in capture order.
func (l *Messages) All() []Message {
	return l.load()
}

// Count returns the number of logged messages.
func (l *Messages) Count() int {
	return len(l.load())
}

// SinceInclusive returns messages with received_at >= ts, in order.
func (l *Messages) SinceInclusive(ts string) []Message {
	out := []Message{}
	for _, m := range l.load() {
		if !timestampBefore(m.ReceivedAt, ts) {
			out = append(out, m)
		}
	}
	return out
}

// ForChat returns messages whose chat (or sender, when chat is absent) has chatID.
// An empty chatID matches nothing.
func (l *Messages) ForChat(chatID string) []Message {
	out := []Message{}
	if chatID == "" {
		return out
	}
	for _, m := range l.load() {
		if m.ChatIdentity().ID == chatID {
			out = append(out, m)
		}
	}
	return out
}

// Clear empties the log.
func (l *Messages) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := docstore.Replace(l.path, []Message{}); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}
	return nil
}

func (l *Messages) load() []Message {
	msgs := docstore.Load[[]Message](l.path, nil)
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs
}

// timestampBefore reports a < b, comparing instants when both parse and
// falling back to string order otherwise.
func timestampBefore(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		return ta.Before(tb)
	}
	return a < b
}
