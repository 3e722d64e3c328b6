package store

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/matheus3301/autoreader/internal/docstore"
	"github.com/matheus3301/autoreader/internal/identity"
)

// Attachments is the durable id -> Attachment map.
type Attachments struct {
	path  string
	mu    sync.Mutex
	newID func() string
}

// NewAttachments returns an attachment store backed by the document at path.
func NewAttachments(path string) *Attachments {
	return &Attachments{path: path, newID: uuid.NewString}
}

// Put stores data under a freshly generated id and returns the id.
func (a *Attachments) Put(data []byte, capturedAt string, sender identity.Identity, chat *identity.Identity) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := Attachment{
		Base64: base64.StdEncoding.EncodeToString(data),
		Date:   capturedAt,
		Sender: sender.Clone(),
	}
	if chat != nil {
		c := chat.Clone()
		rec.Chat = &c
	}

	id := a.newID()
	images := a.load()
	images[id] = rec
	if err := docstore.Replace(a.path, images); err != nil {
		return "", fmt.Errorf("put attachment: %w", err)
	}
	return id, nil
}

// Get returns the attachment with the given id.
func (a *Attachments) Get(id string) (Attachment, bool) {
	rec, ok := a.load()[id]
	if !ok {
		return Attachment{}, false
	}
	rec.ID = id
	return rec, true
}

// Clear removes every attachment.
func (a *Attachments) Clear() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := docstore.Replace(a.path, map[string]Attachment{}); err != nil {
		return fmt.Errorf("clear attachments: %w", err)
	}
	return nil
}

func (a *Attachments) load() map[string]Attachment {
	images := docstore.Load[map[string]Attachment](a.path, nil)
	if images == nil {
		images = make(map[string]Attachment)
	}
	return images
}
