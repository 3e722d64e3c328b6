package daemon

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/matheus3301/autoreader/internal/api"
	"github.com/matheus3301/autoreader/internal/bus"
	"github.com/matheus3301/autoreader/internal/config"
	"github.com/matheus3301/autoreader/internal/datadir"
	"github.com/matheus3301/autoreader/internal/ingest"
	"github.com/matheus3301/autoreader/internal/lock"
	"github.com/matheus3301/autoreader/internal/logging"
	"github.com/matheus3301/autoreader/internal/notify"
	"github.com/matheus3301/autoreader/internal/query"
	"github.com/matheus3301/autoreader/internal/status"
	"github.com/matheus3301/autoreader/internal/store"
	"github.com/matheus3301/autoreader/internal/telegram"
	"github.com/matheus3301/autoreader/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved daemon configuration passed to the fx module.
type Params struct {
	DataDir string
	Config  *config.Config
	// QROut receives pairing QR codes. Nil means stderr.
	QROut io.Writer
	// Transport overrides the configured transport; used by tests.
	Transport Transport
}

// Transport is the upstream message source.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect()
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p, p.Config),
		fx.Provide(
			provideLayout,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideFacade,
			providePipeline,
			provideWorker,
			provideTransport,
			provideForwarder,
			provideHandler,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLayout(p Params) (datadir.Layout, error) {
	layout := datadir.New(p.DataDir)
	if err := layout.Ensure(); err != nil {
		return layout, err
	}
	return layout, nil
}

func provideLogger(layout datadir.Layout, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(layout.LogPath(), cfg.LogLevel, cfg.Transport)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(layout datadir.Layout, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", layout.Root))
	l, err := lock.Acquire(layout.Root, "autoreaderd")
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

func provideStore(layout datadir.Layout, logger *zap.Logger) *store.Store {
	paths := layout.Documents()
	logger.Info("store initialized",
		zap.String("messages", paths.Messages),
		zap.String("contacts", paths.Contacts),
		zap.String("attachments", paths.Attachments),
	)
	return store.Open(paths)
}

func provideFacade(s *store.Store, b *bus.Bus) *query.Facade {
	return query.New(s, b)
}

func providePipeline(s *store.Store, b *bus.Bus, logger *zap.Logger) *ingest.Pipeline {
	return ingest.NewPipeline(s, b, logger.Named("ingest"))
}

func provideWorker(p *ingest.Pipeline, cfg *config.Config, logger *zap.Logger) *ingest.Worker {
	return ingest.NewWorker(p, cfg.QueueSize, logger.Named("worker"))
}

func provideTransport(p Params, cfg *config.Config, layout datadir.Layout, w *ingest.Worker, m *status.Machine, b *bus.Bus, logger *zap.Logger) (Transport, error) {
	if p.Transport != nil {
		return p.Transport, nil
	}
	switch cfg.Transport {
	case config.TransportTelegram:
		return telegram.NewAdapter(cfg.Telegram.BotToken, cfg.Telegram.PollTimeout, w, m, b, logger.Named("telegram"))
	case config.TransportWhatsApp:
		adapter, err := wa.NewAdapter(context.Background(), layout.WhatsAppSessionPath(), cfg.WhatsApp.DeviceName, logger.Named("whatsapp"))
		if err != nil {
			return nil, err
		}
		handler := wa.NewEventHandler(w, adapter, m, b, logger.Named("whatsapp"))
		adapter.RegisterEventHandler(handler.Handle)
		out := p.QROut
		if out == nil {
			out = os.Stderr
		}
		return &whatsAppTransport{adapter: adapter, machine: m, bus: b, qrOut: out}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

type whatsAppTransport struct {
	adapter *wa.Adapter
	machine *status.Machine
	bus     *bus.Bus
	qrOut   io.Writer
}

func (t *whatsAppTransport) Connect(ctx context.Context) error {
	return t.adapter.Connect(ctx, t.machine, t.bus, t.qrOut)
}

func (t *whatsAppTransport) Disconnect() {
	t.adapter.Disconnect()
}

func provideForwarder(cfg *config.Config, b *bus.Bus, logger *zap.Logger) (*notify.Forwarder, error) {
	var sinks []notify.Sink
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		rs, err := notify.NewRedisSink(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			return nil, err
		}
		logger.Info("redis sink enabled", zap.String("addr", cfg.Redis.Addr), zap.String("channel", cfg.Redis.Channel))
		sinks = append(sinks, rs)
	}
	if cfg.NATS.URL != "" {
		ns, err := notify.NewNATSSink(cfg.NATS.URL, cfg.NATS.Subject)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		logger.Info("nats sink enabled", zap.String("url", cfg.NATS.URL), zap.String("subject", cfg.NATS.Subject))
		sinks = append(sinks, ns)
	}
	return notify.NewForwarder(b, sinks, logger.Named("notify")), nil
}

func provideHandler(f *query.Facade, m *status.Machine, w *ingest.Worker, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *api.Handler {
	return api.NewHandler(f, m, w, b, cfg.Transport, logger.Named("api"))
}

// registerLifecycle appends one hook per component. fx runs OnStop in
// reverse, so shutdown is transport, worker, forwarder, server, lock, and
// a failed start only unwinds what already started.
func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, srv *Server, lk *lock.Lock, transport Transport, worker *ingest.Worker, fwd *notify.Forwarder, machine *status.Machine, logger *zap.Logger) {
	// OnStart contexts expire once the hook returns; long-lived work runs
	// under runCtx.
	runCtx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			cancel()
			_ = machine.Transition(status.Stopped)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped",
				zap.Int64("processed", worker.Processed()),
				zap.Int64("failed", worker.Failed()),
			)
			_ = logger.Sync()
			return nil
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			return nil
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			fwd.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			fwd.Stop()
			return nil
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			worker.Start(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx, stopCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout.Duration)
			defer stopCancel()
			if err := worker.Stop(stopCtx); err != nil {
				logger.Warn("ingest worker stop", zap.Error(err), zap.Int("pending", worker.Pending()))
			}
			return nil
		},
	})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := transport.Connect(runCtx); err != nil {
				return fmt.Errorf("start %s transport: %w", cfg.Transport, err)
			}
			logger.Info("capture started", zap.String("state", string(machine.Current())))
			return nil
		},
		OnStop: func(_ context.Context) error {
			_ = machine.Transition(status.Stopping)
			transport.Disconnect()
			return nil
		},
	})
}
