package store

import (
	"encoding/base64"
	"time"

	"github.com/matheus3301/autoreader/internal/identity"
)

// TimestampLayout is the fixed-width UTC layout of received_at values.
// Fixed width keeps lexical and chronological order identical.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Message represents one captured chat event. Field order is the key
// order of the messages document.
type Message struct {
	FromID     string             `json:"from_id"`
	Text       string             `json:"text"`
	Date       string             `json:"date"`
	ReceivedAt string             `json:"received_at"`
	Sender     identity.Identity  `json:"sender"`
	Chat       *identity.Identity `json:"chat"`
	ImageID    *string            `json:"image_id"`
}

// ChatIdentity returns the chat, or the sender for direct messages.
func (m *Message) ChatIdentity() identity.Identity {
	if m.Chat != nil {
		return *m.Chat
	}
	return m.Sender
}

// Attachment represents one stored binary payload.
type Attachment struct {
	ID     string             `json:"-"`
	Base64 string             `json:"base64"`
	Date   string             `json:"date"`
	Sender identity.Identity  `json:"sender"`
	Chat   *identity.Identity `json:"chat"`
}

// Decode returns the raw attachment bytes.
func (a *Attachment) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(a.Base64)
}
