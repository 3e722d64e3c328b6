package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/identity"
	"github.com/matheus3301/autoreader/internal/ingest"
	"github.com/matheus3301/autoreader/internal/status"
	"go.uber.org/zap"
)

// Submitter accepts captured events. *ingest.Worker implements it.
type Submitter interface {
	Submit(ctx context.Context, evt ingest.Event) error
}

// FileLocator turns a file id into a download URL. *tgbotapi.BotAPI
// implements it.
type FileLocator interface {
	GetFileDirectURL(fileID string) (string, error)
}

// maxPhotoBytes bounds a single photo download.
const maxPhotoBytes = 20 << 20

// Adapter long-polls the Bot API and submits every message and channel
// post it sees.
type Adapter struct {
	bot         *tgbotapi.BotAPI
	pollTimeout int
	media       *Downloader
	submit      Submitter
	machine     *status.Machine
	bus         *bus.Bus
	logger      *zap.Logger
}

// NewAdapter validates the bot token against the API. A bad token is
// returned as an error.
func NewAdapter(token string, pollTimeout int, sub Submitter, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:         bot,
		pollTimeout: pollTimeout,
		media:       NewDownloader(bot, nil),
		submit:      sub,
		machine:     machine,
		bus:         b,
		logger:      logger,
	}, nil
}

// Connect starts the update loop. It returns once polling has begun.
func (a *Adapter) Connect(ctx context.Context) error {
	_ = a.machine.Transition(status.Connecting)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = a.pollTimeout
	updates := a.bot.GetUpdatesChan(updateConfig)

	_ = a.machine.Transition(status.Capturing)
	a.bus.Publish(bus.Event{Kind: bus.KindConnected, Payload: a.bot.Self.UserName})
	a.logger.Info("telegram polling started", zap.String("bot", a.bot.Self.UserName))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					a.logger.Info("updates channel closed")
					return
				}
				a.handleUpdate(ctx, update)
			}
		}
	}()
	return nil
}

// Disconnect stops long polling.
func (a *Adapter) Disconnect() {
	a.logger.Info("stopping telegram polling")
	a.bot.StopReceivingUpdates()
	a.bus.Publish(bus.Event{Kind: bus.KindDisconnected})
}

func (a *Adapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil {
		msg = update.ChannelPost
	}
	if msg == nil {
		return
	}
	if err := a.submit.Submit(ctx, ToEvent(msg, a.bot.Self.ID, a.media)); err != nil {
		a.logger.Warn("dropping update, ingestion not accepting events",
			zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
}

// ToEvent converts a Bot API message. media may be nil to skip downloads.
func ToEvent(msg *tgbotapi.Message, selfID int64, media *Downloader) ingest.Event {
	sender := SenderRaw(msg, selfID)
	evt := ingest.Event{
		SenderID: SenderID(msg),
		Text:     Text(msg),
		Date:     FormatDate(msg.Date),
		Chat:     ChatRaw(msg.Chat),
		Sender: func(context.Context) (*identity.Raw, error) {
			return sender, nil
		},
	}
	if photo := LargestPhoto(msg.Photo); photo != nil {
		evt.HasPhoto = true
		if media != nil {
			fileID := photo.FileID
			evt.Media = func(ctx context.Context) ([]byte, error) {
				return media.Fetch(ctx, fileID)
			}
		}
	}
	return evt
}

// Downloader fetches Bot API files over HTTP.
type Downloader struct {
	files  FileLocator
	client *http.Client
}

// NewDownloader creates a downloader. A nil client gets a 60s timeout.
func NewDownloader(files FileLocator, client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Downloader{files: files, client: client}
}

// Fetch downloads the file with the given id.
func (d *Downloader) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := d.files.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("locate file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}
