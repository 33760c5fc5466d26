// Package wa wraps the whatsmeow client: connection lifecycle, event
// handling, and an in-memory session snapshot that lets the sync core
// query chats and messages pull-style.
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
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"

	"github.com/avilar/dealersync/internal/bus"
	"github.com/avilar/dealersync/internal/profile"
	isync "github.com/avilar/dealersync/internal/sync"
)

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
// It implements sync.Session.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	snapshot  *snapshot
	bus       *bus.Bus
	logger    *zap.Logger
	profile   string
}

// NewAdapter creates a WhatsApp adapter for the given profile.
func NewAdapter(ctx context.Context, profileName string, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("DealerSync", [3]uint32{0, 1, 0})

	dbPath := profile.WADBPath(profileName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create credential store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	return &Adapter{
		client:    client,
		container: container,
		snapshot:  newSnapshot(),
		bus:       b,
		logger:    logger,
		profile:   profileName,
	}, nil
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connected implements sync.Session: true when credentials exist and the
// socket is up.
func (a *Adapter) Connected() bool {
	return a.IsLoggedIn() && a.client.IsConnected()
}

// Chats implements sync.Session from the in-memory snapshot.
func (a *Adapter) Chats(_ context.Context) ([]isync.Chat, error) {
	return a.snapshot.list(), nil
}

// Messages implements sync.Session from the in-memory snapshot.
func (a *Adapter) Messages(_ context.Context, chatID string, limit int) ([]isync.NativeMessage, error) {
	return a.snapshot.messages(chatID, limit), nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText sends a text message to the given chat id. Returns the server
// message id, which doubles as the dedup key for the persisted copy.
func (a *Adapter) SendText(ctx context.Context, chatID string, text string) (string, error) {
	to, err := types.ParseJID(chatID)
	if err != nil {
		return "", fmt.Errorf("parse chat id: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// GetQRChannel returns the QR channel for pairing. Must be called before Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already logged in")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// PhoneNumber returns the account's phone number, or "" before pairing.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}
