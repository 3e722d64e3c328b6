package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client *whatsmeow.Client
	logger *zap.Logger
}

// NewAdapter opens the device store at dbPath and creates a client for
// its first device. deviceName is shown in the phone's linked devices list.
func NewAdapter(ctx context.Context, dbPath, deviceName string, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	wastore.SetOSInfo(deviceName, [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client: whatsmeow.NewClient(deviceStore, nil),
		logger: logger,
	}, nil
}

// IsLoggedIn returns whether the device store holds valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// PhoneNumber returns the paired account's phone number, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// ResolveLID resolves a LID JID to its phone number JID using the device
// store mapping. Returns the original JID if it is not a LID or if
// resolution fails.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// ContactName returns the best known name for jid from the device store.
func (a *Adapter) ContactName(ctx context.Context, jid types.JID) string {
	if a.client == nil || a.client.Store == nil || a.client.Store.Contacts == nil {
		return ""
	}
	info, err := a.client.Store.Contacts.GetContact(ctx, jid)
	if err != nil || !info.Found {
		return ""
	}
	for _, name := range []string{info.FullName, info.PushName, info.BusinessName, info.FirstName} {
		if name != "" {
			return name
		}
	}
	return ""
}

// GroupInfo fetches group metadata from the server.
func (a *Adapter) GroupInfo(ctx context.Context, jid types.JID) (*types.GroupInfo, error) {
	return a.client.GetGroupInfo(ctx, jid)
}

// DownloadImage fetches and decrypts an image attachment.
func (a *Adapter) DownloadImage(ctx context.Context, img *waE2E.ImageMessage) ([]byte, error) {
	return a.client.Download(ctx, img)
}
