// Package ingest turns upstream chat events into stored messages. A
// Pipeline handles one event end to end and a Worker feeds it from a
// bounded queue, one event at a time.
package ingest

import (
	"context"

	"github.com/matheus3301/autoreader/internal/identity"
)

// Event is one incoming message as delivered by a transport adapter.
// Adapters translate SDK types into identity.Raw before building it.
type Event struct {
	SenderID string
	Text     string
	// Date is the upstream timestamp, stored verbatim.
	Date string
	// Chat is nil when the message carries no chat context.
	Chat     *identity.Raw
	HasPhoto bool

	// Sender resolves the full sender record. It may block on network I/O.
	Sender func(ctx context.Context) (*identity.Raw, error)
	// Media downloads the attached photo. Only called when HasPhoto is set.
	Media func(ctx context.Context) ([]byte, error)
}
