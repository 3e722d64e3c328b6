// Package telegram captures messages through the Telegram Bot API.
package telegram

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/autoreader/internal/identity"
)

// UserRaw maps a Bot API user. selfID is the bot's own user id.
func UserRaw(u *tgbotapi.User, selfID int64) *identity.Raw {
	if u == nil {
		return nil
	}
	return &identity.Raw{
		Kind:      identity.RawUser,
		ID:        strconv.FormatInt(u.ID, 10),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
		Self:      u.ID == selfID,
	}
}

// ChatRaw maps a Bot API chat by its type. Supergroups are groups with
// the megagroup flag set.
func ChatRaw(c *tgbotapi.Chat) *identity.Raw {
	if c == nil {
		return nil
	}
	id := strconv.FormatInt(c.ID, 10)
	switch c.Type {
	case "private":
		return &identity.Raw{
			Kind:      identity.RawUser,
			ID:        id,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Username:  c.UserName,
		}
	case "group", "supergroup":
		return &identity.Raw{
			Kind:      identity.RawGroup,
			ID:        id,
			Title:     c.Title,
			Username:  c.UserName,
			Megagroup: c.Type == "supergroup",
		}
	case "channel":
		return &identity.Raw{
			Kind:     identity.RawChannel,
			ID:       id,
			Title:    c.Title,
			Username: c.UserName,
		}
	default:
		return &identity.Raw{Kind: identity.RawOther, ID: id}
	}
}

// SenderRaw returns the author of msg: the user, or the chat posting on
// its own behalf for channel posts and anonymous admins.
func SenderRaw(msg *tgbotapi.Message, selfID int64) *identity.Raw {
	if msg.From != nil {
		return UserRaw(msg.From, selfID)
	}
	if msg.SenderChat != nil {
		return ChatRaw(msg.SenderChat)
	}
	return nil
}

// SenderID returns the stringified id of the message author.
func SenderID(msg *tgbotapi.Message) string {
	switch {
	case msg.From != nil:
		return strconv.FormatInt(msg.From.ID, 10)
	case msg.SenderChat != nil:
		return strconv.FormatInt(msg.SenderChat.ID, 10)
	case msg.Chat != nil:
		return strconv.FormatInt(msg.Chat.ID, 10)
	}
	return ""
}

// Text returns the message text, or the media caption when there is none.
func Text(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// FormatDate renders the Unix send time of a message.
func FormatDate(unix int) string {
	if unix == 0 {
		return ""
	}
	return time.Unix(int64(unix), 0).UTC().Format(time.RFC3339)
}

// LargestPhoto returns the biggest rendition of a photo, or nil.
func LargestPhoto(sizes []tgbotapi.PhotoSize) *tgbotapi.PhotoSize {
	var best *tgbotapi.PhotoSize
	for i := range sizes {
		if best == nil || sizes[i].Width*sizes[i].Height > best.Width*best.Height {
			best = &sizes[i]
		}
	}
	return best
}
