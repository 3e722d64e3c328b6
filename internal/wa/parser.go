package wa

import (
	"time"

	"github.com/matheus3301/autoreader/internal/identity"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
)

// UserRaw maps a user JID onto the neutral identity variant. The phone is
// only known for phone-number JIDs.
func UserRaw(jid types.JID, name string, self bool) *identity.Raw {
	jid = jid.ToNonAD()
	raw := &identity.Raw{
		Kind:      identity.RawUser,
		ID:        jid.String(),
		FirstName: name,
		Self:      self,
	}
	if jid.Server == types.DefaultUserServer {
		raw.Phone = jid.User
	}
	return raw
}

// GroupRaw maps a group JID and its metadata. Community parents are
// reported as megagroups.
func GroupRaw(jid types.JID, title string, parent bool) *identity.Raw {
	return &identity.Raw{
		Kind:      identity.RawGroup,
		ID:        jid.ToNonAD().String(),
		Title:     title,
		Megagroup: parent,
	}
}

// NewsletterRaw maps a newsletter JID to a channel.
func NewsletterRaw(jid types.JID, title string) *identity.Raw {
	return &identity.Raw{
		Kind:  identity.RawChannel,
		ID:    jid.ToNonAD().String(),
		Title: title,
	}
}

// ExtractText returns the message body or media caption.
func ExtractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return img.GetCaption()
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return vid.GetCaption()
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return doc.GetCaption()
	}
	return ""
}

// FormatDate renders the upstream message timestamp.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
