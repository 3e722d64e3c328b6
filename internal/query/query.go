// Package query provides read-only views over the capture documents.
// Every call reads a fresh snapshot from disk.
package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/identity"
	"github.com/matheus3301/autoreader/internal/store"
)

// ChatSummary is one distinct chat observed in the message log.
type ChatSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Facade exposes the read-side accessors and the history clear.
type Facade struct {
	store *store.Store
	bus   *bus.Bus
}

// New creates a facade over s. b may be nil.
func New(s *store.Store, b *bus.Bus) *Facade {
	return &Facade{store: s, bus: b}
}

// SessionMessages returns messages received at or after since.
func (f *Facade) SessionMessages(since string) []store.Message {
	return f.store.Messages.SinceInclusive(since)
}

// ChatMessages returns the messages of one chat in capture order.
func (f *Facade) ChatMessages(chatID string) []store.Message {
	return f.store.Messages.ForChat(chatID)
}

// AllMessages returns the whole log.
func (f *Facade) AllMessages() []store.Message {
	return f.store.Messages.All()
}

// Chats lists distinct chats in first-seen order. A chat keeps the title
// it had when first seen.
func (f *Facade) Chats() []ChatSummary {
	return Summarize(f.store.Messages.All())
}

// Summarize derives chat summaries from msgs. Messages with no chat and
// an unknown sender belong to no chat.
func Summarize(msgs []store.Message) []ChatSummary {
	seen := make(map[string]bool)
	out := []ChatSummary{}
	for i := range msgs {
		chat := msgs[i].ChatIdentity()
		if chat.ID == "" || seen[chat.ID] {
			continue
		}
		seen[chat.ID] = true
		out = append(out, ChatSummary{ID: chat.ID, Title: chat.DisplayTitle()})
	}
	return out
}

// Contacts returns every known identity keyed by id.
func (f *Facade) Contacts() map[string]identity.Identity {
	return f.store.Contacts.All()
}

// Contact looks up one identity.
func (f *Facade) Contact(id string) (identity.Identity, bool) {
	return f.store.Contacts.Get(id)
}

// Attachment looks up one stored image.
func (f *Facade) Attachment(id string) (store.Attachment, bool) {
	return f.store.Attachments.Get(id)
}

// ClearHistory empties the message log and the attachment map. Contacts
// are kept. Both clears are attempted even if the first one fails.
func (f *Facade) ClearHistory() error {
	var errs []error
	if err := f.store.Messages.Clear(); err != nil {
		errs = append(errs, err)
	}
	if err := f.store.Attachments.Clear(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if f.bus != nil {
		f.bus.Publish(bus.Event{Kind: bus.KindHistoryCleared})
	}
	return nil
}

// DisplayName picks the label shown next to a message: chat title, then
// the sender's full name, username, title and id, then from_id.
func DisplayName(m store.Message) string {
	if m.Chat != nil {
		if t := identity.Value(m.Chat.Title); t != "" {
			return t
		}
	}
	s := m.Sender
	full := strings.TrimSpace(identity.Value(s.FirstName) + " " + identity.Value(s.LastName))
	for _, v := range []string{full, identity.Value(s.Username), identity.Value(s.Title), s.ID, m.FromID} {
		if v != "" {
			return v
		}
	}
	return "unknown"
}
