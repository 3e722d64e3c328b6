package wa

import (
	"context"
	"sync"

	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/identity"
	"github.com/matheus3301/autoreader/internal/ingest"
	"github.com/matheus3301/autoreader/internal/status"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// Submitter accepts captured events. *ingest.Worker implements it.
type Submitter interface {
	Submit(ctx context.Context, evt ingest.Event) error
}

// Lookup resolves metadata that is not carried in the message itself.
// *Adapter implements it.
type Lookup interface {
	ResolveLID(ctx context.Context, jid types.JID) types.JID
	ContactName(ctx context.Context, jid types.JID) string
	GroupInfo(ctx context.Context, jid types.JID) (*types.GroupInfo, error)
	DownloadImage(ctx context.Context, img *waE2E.ImageMessage) ([]byte, error)
}

type groupMeta struct {
	name   string
	parent bool
}

// EventHandler translates whatsmeow events into ingest events and drives
// the state machine. It never touches the stores directly.
type EventHandler struct {
	submit  Submitter
	lookup  Lookup
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.Mutex
	groups map[types.JID]groupMeta
}

// NewEventHandler creates a new event handler. lookup may be nil, in
// which case LIDs stay unresolved and no group titles or images are fetched.
func NewEventHandler(sub Submitter, lookup Lookup, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{
		submit:  sub,
		lookup:  lookup,
		machine: machine,
		bus:     b,
		logger:  logger,
		groups:  make(map[types.JID]groupMeta),
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.GroupInfo:
		if evt.Name != nil {
			h.mu.Lock()
			meta := h.groups[evt.JID]
			meta.name = evt.Name.Name
			h.groups[evt.JID] = meta
			h.mu.Unlock()
		}
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		switch h.machine.Current() {
		case status.Booting, status.PairingRequired:
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Capturing)
		h.bus.Publish(bus.Event{Kind: bus.KindConnected})
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Reconnecting)
		h.bus.Publish(bus.Event{Kind: bus.KindDisconnected})
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.PairingRequired)
		h.bus.Publish(bus.Event{Kind: bus.KindDisconnected, Payload: evt.Reason.String()})
	}
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	info := evt.Info
	if info.Chat.Server == types.BroadcastServer {
		h.logger.Debug("skipping broadcast message", zap.String("chat", info.Chat.String()))
		return
	}
	ctx := context.Background()

	senderJID := h.resolveJID(ctx, info.Sender.ToNonAD())
	sender := UserRaw(senderJID, info.PushName, info.IsFromMe)

	img := evt.Message.GetImageMessage()
	out := ingest.Event{
		SenderID: sender.ID,
		Text:     ExtractText(evt.Message),
		Date:     FormatDate(info.Timestamp),
		Chat:     h.chatRaw(ctx, info, senderJID),
		HasPhoto: img != nil,
		Sender: func(context.Context) (*identity.Raw, error) {
			return sender, nil
		},
	}
	if img != nil && h.lookup != nil {
		out.Media = func(ctx context.Context) ([]byte, error) {
			return h.lookup.DownloadImage(ctx, img)
		}
	}

	if err := h.submit.Submit(ctx, out); err != nil {
		h.logger.Warn("dropping message, ingestion not accepting events",
			zap.String("msg_id", info.ID), zap.Error(err))
	}
}

// chatRaw returns the chat context of a message. Direct messages from the
// peer carry none; the sender is the chat.
func (h *EventHandler) chatRaw(ctx context.Context, info types.MessageInfo, sender types.JID) *identity.Raw {
	chat := info.Chat.ToNonAD()
	switch chat.Server {
	case types.GroupServer:
		meta := h.groupMeta(ctx, chat)
		return GroupRaw(chat, meta.name, meta.parent)
	case types.NewsletterServer:
		return NewsletterRaw(chat, "")
	}

	peer := h.resolveJID(ctx, chat)
	if peer == sender {
		return nil
	}
	name := ""
	if h.lookup != nil {
		name = h.lookup.ContactName(ctx, peer)
	}
	return UserRaw(peer, name, false)
}

func (h *EventHandler) groupMeta(ctx context.Context, jid types.JID) groupMeta {
	h.mu.Lock()
	meta, ok := h.groups[jid]
	h.mu.Unlock()
	if ok || h.lookup == nil {
		return meta
	}

	gi, err := h.lookup.GroupInfo(ctx, jid)
	if err != nil {
		h.logger.Warn("failed to fetch group info", zap.String("group", jid.String()), zap.Error(err))
		return meta
	}
	meta = groupMeta{name: gi.Name, parent: gi.IsParent}
	h.mu.Lock()
	h.groups[jid] = meta
	h.mu.Unlock()
	return meta
}

func (h *EventHandler) resolveJID(ctx context.Context, jid types.JID) types.JID {
	if h.lookup == nil {
		return jid
	}
	return h.lookup.ResolveLID(ctx, jid)
}
