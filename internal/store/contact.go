package store

import (
	"fmt"
	"sync"

	"github.com/matheus3301/autoreader/internal/docstore"
	"github.com/matheus3301/autoreader/internal/identity"
)

// Contacts is the durable id -> Identity index.
type Contacts struct {
	path string
	mu   sync.Mutex
}

// NewContacts returns a contact store backed by the document at path.
func NewContacts(path string) *Contacts {
	return &Contacts{path: path}
}

// Upsert inserts or merges an identity. Identities without id are dropped.
func (c *Contacts) Upsert(id identity.Identity) error {
	if id.ID == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	contacts := c.load()
	if existing, ok := contacts[id.ID]; ok {
		existing.Merge(id)
		contacts[id.ID] = existing
	} else {
		contacts[id.ID] = id.Clone()
	}
	if err := docstore.Replace(c.path, contacts); err != nil {
		return fmt.Errorf("upsert contact %q: %w", id.ID, err)
	}
	return nil
}

// All returns every known contact keyed by id.
func (c *Contacts) All() map[string]identity.Identity {
	return c.load()
}

// Get returns the contact with the given id.
func (c *Contacts) Get(id string) (identity.Identity, bool) {
	contact, ok := c.load()[id]
	return contact, ok
}

// Clear removes every contact.
func (c *Contacts) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := docstore.Replace(c.path, map[string]identity.Identity{}); err != nil {
		return fmt.Errorf("clear contacts: %w", err)
	}
	return nil
}

func (c *Contacts) load() map[string]identity.Identity {
	contacts := docstore.Load[map[string]identity.Identity](c.path, nil)
	if contacts == nil {
		contacts = make(map[string]identity.Identity)
	}
	return contacts
}
