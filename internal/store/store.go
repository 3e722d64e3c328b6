// Package store holds the three capture documents: the message log, the
// contact index and the attachment map. Each store rewrites its whole
// document on every mutation through docstore.
package store

import "path/filepath"

// Default document file names inside a data directory.
const (
	MessagesFile    = "messages.json"
	ContactsFile    = "contacts.json"
	AttachmentsFile = "images.json"
)

// Paths locates the three documents.
type Paths struct {
	Messages    string
	Contacts    string
	Attachments string
}

// PathsIn returns the default document paths under dir.
func PathsIn(dir string) Paths {
	return Paths{
		Messages:    filepath.Join(dir, MessagesFile),
		Contacts:    filepath.Join(dir, ContactsFile),
		Attachments: filepath.Join(dir, AttachmentsFile),
	}
}

// Store bundles the three document stores.
type Store struct {
	Messages    *Messages
	Contacts    *Contacts
	Attachments *Attachments
}

// Open returns stores bound to p. Nothing is read until first use.
func Open(p Paths) *Store {
	return &Store{
		Messages:    NewMessages(p.Messages),
		Contacts:    NewContacts(p.Contacts),
		Attachments: NewAttachments(p.Attachments),
	}
}
