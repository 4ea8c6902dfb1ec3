// Package app composes the engine out of its components with fx and owns
// their lifecycle.
package app

import (
	"context"

	"github.com/pmartins/studychat/internal/api"
	"github.com/pmartins/studychat/internal/bus"
	"github.com/pmartins/studychat/internal/config"
	"github.com/pmartins/studychat/internal/lock"
	"github.com/pmartins/studychat/internal/logging"
	"github.com/pmartins/studychat/internal/outbox"
	"github.com/pmartins/studychat/internal/policy"
	"github.com/pmartins/studychat/internal/prefs"
	"github.com/pmartins/studychat/internal/receipt"
	"github.com/pmartins/studychat/internal/rest"
	"github.com/pmartins/studychat/internal/session"
	"github.com/pmartins/studychat/internal/store"
	enginesync "github.com/pmartins/studychat/internal/sync"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	ConfigPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the engine, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("engine",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			providePrefs,
			provideClient,
			provideConversationStore,
			provideMessageStore,
			provideGate,
			provideTracker,
			provideController,
			provideEngine,
			provideSearcher,
			provideView,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	return config.Load(path)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

func providePrefs(p Params, logger *zap.Logger) (*prefs.DB, error) {
	dbPath := session.PrefsDBPath(p.SessionName)
	db, err := prefs.Open(dbPath)
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
	logger.Info("prefs store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config) *rest.Client {
	return rest.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token)
}

func provideConversationStore(logger *zap.Logger) *store.ConversationStore {
	return store.NewConversationStore(logger)
}

func provideMessageStore(logger *zap.Logger) *store.MessageStore {
	return store.NewMessageStore(logger)
}

func provideGate(convs *store.ConversationStore, client *rest.Client, db *prefs.DB, b *bus.Bus, logger *zap.Logger) *policy.Gate {
	return policy.NewGate(convs, client, db, b, logger)
}

func provideTracker(client *rest.Client, b *bus.Bus, logger *zap.Logger) *receipt.Tracker {
	return receipt.NewTracker(client, b, logger)
}

func provideController(msgs *store.MessageStore, gate *policy.Gate, client *rest.Client, b *bus.Bus, logger *zap.Logger) *outbox.Controller {
	return outbox.NewController(msgs, gate, client, b, logger)
}

func provideEngine(cfg *config.Config, client *rest.Client, convs *store.ConversationStore, msgs *store.MessageStore, tracker *receipt.Tracker, b *bus.Bus, logger *zap.Logger) *enginesync.Engine {
	return enginesync.NewEngine(client, convs, msgs, tracker, b, logger,
		cfg.ListInterval(), cfg.MessageInterval())
}

func provideSearcher(client *rest.Client) *api.Searcher {
	return api.NewSearcher(client, api.DefaultSearchDebounce)
}

func provideView(convs *store.ConversationStore, msgs *store.MessageStore, engine *enginesync.Engine, sends *outbox.Controller, gate *policy.Gate, tracker *receipt.Tracker, client *rest.Client, db *prefs.DB, logger *zap.Logger) *api.View {
	return api.NewView(convs, msgs, engine, sends, gate, tracker, client, db, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *prefs.DB, convs *store.ConversationStore, engine *enginesync.Engine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			overlays, err := db.All()
			if err != nil {
				return err
			}
			seed := make(map[string]store.OverlayState, len(overlays))
			for _, o := range overlays {
				seed[o.ConversationID] = store.OverlayState{
					Pinned:       o.Pinned,
					Muted:        o.Muted,
					MarkedUnread: o.MarkedUnread,
					Blocked:      o.Blocked,
				}
			}
			convs.RestoreOverlays(seed)
			logger.Info("overlays restored", zap.Int("count", len(seed)))

			engine.Mount(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			engine.Unmount()
			if err := db.Close(); err != nil {
				logger.Warn("error closing prefs store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("engine stopped")
			return nil
		},
	})
}
