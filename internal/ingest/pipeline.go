package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/identity"
	"github.com/matheus3301/autoreader/internal/store"
	"go.uber.org/zap"
)

// Stage names logged as an event moves through the pipeline.
const (
	StageReceived          = "received"
	StageSenderResolved    = "sender_resolved"
	StageChatResolved      = "chat_resolved"
	StageAttachmentHandled = "attachment_handled"
	StagePersisted         = "persisted"
	StageNotified          = "notified"
)

// Pipeline persists events into the message log, the contact index and
// the attachment map, then publishes the stored message on the bus.
type Pipeline struct {
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger
	now    func() time.Time
}

// NewPipeline creates a pipeline. b and logger may be nil.
func NewPipeline(s *store.Store, b *bus.Bus, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: s, bus: b, logger: logger, now: time.Now}
}

// SetClock replaces the received_at clock.
func (p *Pipeline) SetClock(now func() time.Time) {
	p.now = now
}

// HandleEvent runs evt through every stage. An error with a zero Message
// means nothing was persisted. Contact index failures are returned
// alongside the stored message, which has already been published.
func (p *Pipeline) HandleEvent(ctx context.Context, evt Event) (store.Message, error) {
	log := p.logger.With(zap.String("from_id", evt.SenderID))
	log.Debug("ingest stage", zap.String("stage", StageReceived))

	sender := identity.Normalize(p.resolveSender(ctx, evt, log))
	receivedAt := store.FormatTimestamp(p.now())
	log.Debug("ingest stage", zap.String("stage", StageSenderResolved),
		zap.String("sender_kind", string(sender.Kind)))

	var chat *identity.Identity
	if evt.Chat != nil {
		c := identity.Normalize(evt.Chat)
		chat = &c
	}
	log.Debug("ingest stage", zap.String("stage", StageChatResolved), zap.Bool("has_chat", chat != nil))

	imageID := p.storeAttachment(ctx, evt, receivedAt, sender, chat, log)
	log.Debug("ingest stage", zap.String("stage", StageAttachmentHandled), zap.Bool("has_image", imageID != nil))

	msg := store.Message{
		FromID:     evt.SenderID,
		Text:       evt.Text,
		Date:       evt.Date,
		ReceivedAt: receivedAt,
		Sender:     sender,
		Chat:       chat,
		ImageID:    imageID,
	}
	if err := p.store.Messages.Append(msg); err != nil {
		return store.Message{}, err
	}
	log.Debug("ingest stage", zap.String("stage", StagePersisted), zap.String("received_at", receivedAt))

	var errs []error
	if err := p.store.Contacts.Upsert(sender); err != nil {
		errs = append(errs, err)
	}
	if chat != nil {
		if err := p.store.Contacts.Upsert(*chat); err != nil {
			errs = append(errs, err)
		}
	}

	if p.bus != nil {
		p.bus.Publish(bus.Event{Kind: bus.KindMessageCaptured, Payload: msg})
	}
	log.Debug("ingest stage", zap.String("stage", StageNotified))

	return msg, errors.Join(errs...)
}

func (p *Pipeline) resolveSender(ctx context.Context, evt Event, log *zap.Logger) *identity.Raw {
	if evt.Sender == nil {
		return nil
	}
	raw, err := evt.Sender(ctx)
	if err != nil {
		log.Warn("sender lookup failed, storing as unknown", zap.Error(err))
		return nil
	}
	return raw
}

func (p *Pipeline) storeAttachment(ctx context.Context, evt Event, capturedAt string, sender identity.Identity, chat *identity.Identity, log *zap.Logger) *string {
	if !evt.HasPhoto || evt.Media == nil {
		return nil
	}
	data, err := evt.Media(ctx)
	if err != nil {
		log.Warn("media download failed, storing message without image", zap.Error(err))
		return nil
	}
	if len(data) == 0 {
		log.Warn("media download returned no bytes")
		return nil
	}
	id, err := p.store.Attachments.Put(data, capturedAt, sender, chat)
	if err != nil {
		log.Error("failed to store attachment", zap.Error(fmt.Errorf("event from %s: %w", evt.SenderID, err)))
		return nil
	}
	return &id
}
