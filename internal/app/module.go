// Package app composes the trill client from its parts via fx.
package app

import (
	"context"

	"github.com/mcostalima/trill/internal/api"
	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/cache"
	"github.com/mcostalima/trill/internal/config"
	"github.com/mcostalima/trill/internal/history"
	"github.com/mcostalima/trill/internal/lock"
	"github.com/mcostalima/trill/internal/logging"
	"github.com/mcostalima/trill/internal/profile"
	"github.com/mcostalima/trill/internal/status"
	"github.com/mcostalima/trill/internal/store"
	"github.com/mcostalima/trill/internal/stream"
	"github.com/mcostalima/trill/internal/upload"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	// Console mirrors logs to stderr; used by the headless CLI.
	Console bool
}

// Module returns the fx module for the client, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("app",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCache,
			provideConversations,
			provideChatList,
			provideAPIClient,
			provideLoader,
			provideChatLoader,
			provideUploadManager,
			provideUploadTracker,
			provideController,
			provideSyncer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Console)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.LockPath(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := profile.CacheDBPath(p.Profile)
	db, err := cache.Open(dbPath)
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
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideConversations() *store.Conversations {
	return store.NewConversations()
}

func provideChatList() *store.ChatList {
	return store.NewChatList()
}

func provideAPIClient(cfg *config.Config, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.APIBaseURL, logger)
}

func provideLoader(client *api.Client, convos *store.Conversations, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *history.Loader {
	return history.NewLoader(client, convos, b, logger, cfg.MessagesPageLimit)
}

func provideChatLoader(client *api.Client, chats *store.ChatList, convos *store.Conversations, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *history.ChatLoader {
	return history.NewChatLoader(client, chats, convos, b, logger, cfg.ChatsPageLimit)
}

func provideUploadManager(client *api.Client, logger *zap.Logger) *upload.Manager {
	return upload.NewManager(client, logger)
}

func provideUploadTracker(m *upload.Manager, b *bus.Bus, logger *zap.Logger) *upload.Tracker {
	return upload.NewTracker(m, b, logger)
}

func provideController(cfg *config.Config, convos *store.Conversations, chats *store.ChatList, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *stream.Controller {
	return stream.NewController(stream.WebSocketDialer{}, cfg.StreamURL(), convos, chats, machine, b, logger)
}

func provideSyncer(db *cache.DB, b *bus.Bus, convos *store.Conversations, chats *store.ChatList, logger *zap.Logger) *cache.Syncer {
	return cache.NewSyncer(db, b, convos, chats, logger)
}

func registerLifecycle(lc fx.Lifecycle, lk *lock.Lock, db *cache.DB, syncer *cache.Syncer, ctrl *stream.Controller, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			syncer.Start(context.Background())
			go ctrl.Connect(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			ctrl.Close()
			syncer.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
