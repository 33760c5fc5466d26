// Package daemon composes the long-running process: store, messaging
// session, sync engine, outbox sender, and the dashboard HTTP server.
package daemon

import (
	"context"
	"os"
	"time"

	"github.com/skip2/go-qrcode"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/avilar/dealersync/internal/api"
	"github.com/avilar/dealersync/internal/bus"
	"github.com/avilar/dealersync/internal/config"
	"github.com/avilar/dealersync/internal/lock"
	"github.com/avilar/dealersync/internal/logging"
	"github.com/avilar/dealersync/internal/outbox"
	"github.com/avilar/dealersync/internal/profile"
	"github.com/avilar/dealersync/internal/status"
	"github.com/avilar/dealersync/internal/store"
	intsync "github.com/avilar/dealersync/internal/sync"
	"github.com/avilar/dealersync/internal/wa"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
	Config      *config.Config
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAdapter,
			provideSyncEngine,
			provideSender,
			provideHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.CRMDBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAdapter(p Params, b *bus.Bus, logger *zap.Logger) (*wa.Adapter, error) {
	return wa.NewAdapter(context.Background(), p.ProfileName, b, logger)
}

func provideSyncEngine(p Params, db *store.DB, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(db, adapter, b, logger, intsync.Options{
		SingleFetchLimit:   p.Config.Sync.SingleFetchLimit,
		BulkFetchLimit:     p.Config.Sync.BulkFetchLimit,
		BulkPageSize:       p.Config.Sync.BulkPageSize,
		AbortOnLookupError: p.Config.Sync.AbortOnLookupError,
	})
}

func provideSender(p Params, db *store.DB, adapter *wa.Adapter, b *bus.Bus, logger *zap.Logger) *outbox.Sender {
	interval := time.Duration(p.Config.Outbox.PollIntervalMS) * time.Millisecond
	return outbox.NewSender(db, adapter, b, logger, interval)
}

func provideHandler(p Params, db *store.DB, engine *intsync.Engine, machine *status.Machine, adapter *wa.Adapter, logger *zap.Logger) *api.Handler {
	return api.NewHandler(db, engine, machine, adapter, profile.QRPath(p.ProfileName), logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, srv *Server, lk *lock.Lock, adapter *wa.Adapter, engine *intsync.Engine, sender *outbox.Sender, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Start sync engine (subscribes to wa.* bus events).
			engine.Start(context.Background())

			// Register event handler for whatsmeow events.
			handler := wa.NewEventHandler(adapter, machine, logger)
			adapter.RegisterEventHandler(handler.Handle)

			// Start HTTP server in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()

			// Start outbox sender.
			sender.Start(context.Background())

			if adapter.IsLoggedIn() {
				_ = machine.Transition(status.Connecting)
				go func() {
					if err := adapter.Connect(); err != nil {
						logger.Error("auto-connect failed", zap.Error(err))
						_ = machine.Transition(status.Error)
					}
				}()
			} else {
				logger.Info("no credentials found, auth required")
				_ = machine.Transition(status.AuthRequired)
				go pairAndConnect(p.ProfileName, adapter, machine, logger)
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			sender.Stop()
			engine.Stop()
			adapter.Disconnect()
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// pairAndConnect drives the QR pairing flow. Each fresh code is written
// to the profile's qr.png so the dashboard can render it; the file is
// removed once pairing succeeds or the channel closes.
func pairAndConnect(profileName string, adapter *wa.Adapter, machine *status.Machine, logger *zap.Logger) {
	qrPath := profile.QRPath(profileName)
	defer func() { _ = os.Remove(qrPath) }()

	ch, err := adapter.GetQRChannel(context.Background())
	if err != nil {
		logger.Error("qr channel", zap.Error(err))
		return
	}
	if err := adapter.Connect(); err != nil {
		logger.Error("connect for pairing", zap.Error(err))
		_ = machine.Transition(status.Error)
		return
	}

	for item := range ch {
		switch item.Event {
		case "code":
			if err := qrcode.WriteFile(item.Code, qrcode.Medium, 512, qrPath); err != nil {
				logger.Error("write qr png", zap.Error(err))
				continue
			}
			logger.Info("pairing code refreshed", zap.String("path", qrPath))
		case "success":
			logger.Info("pairing complete")
			_ = machine.Transition(status.Connecting)
			return
		case "timeout":
			logger.Warn("pairing timed out")
			return
		}
	}
}
