package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/api"
	"github.com/matheus3301/parley/internal/apperr"
	"github.com/matheus3301/parley/internal/auth"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chatsync"
	"github.com/matheus3301/parley/internal/config"
	"github.com/matheus3301/parley/internal/health"
	"github.com/matheus3301/parley/internal/lock"
	"github.com/matheus3301/parley/internal/logging"
	"github.com/matheus3301/parley/internal/profile"
	"github.com/matheus3301/parley/internal/realtime"
	"github.com/matheus3301/parley/internal/resolver"
	"github.com/matheus3301/parley/internal/status"
	"github.com/matheus3301/parley/internal/store"
)

// resumeTimeout bounds re-selecting the last conversation at startup.
const resumeTimeout = time.Minute

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile    string
	SocketPath string // optional override for testing; empty = use default
	ConfigPath string // optional override for testing; empty = use default
	Console    bool   // also log to stderr
}

// Module returns the fx module for the client core, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("parley",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideAuth,
			provideAPIClient,
			provideResolver,
			provideSelector,
			provideSynchronizer,
			provideManager,
			provideHealth,
			provideConnector,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = profile.ConfigPath()
	}
	return config.LoadOrDefault(path)
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
	l, err := lock.Acquire(profile.Dir(p.Profile))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore takes the lock as a dependency so the cache is never opened
// by a second client of the same profile.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(profile.CachePath(p.Profile))
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		if errors.Is(err, store.ErrDirtySchema) {
			logger.Error("cache schema is dirty; delete the cache file to rebuild it",
				zap.String("path", db.Path()))
		}
		return nil, err
	}
	if result.Changed() {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", db.Path()), zap.Uint("schema", result.Version))
	return db, nil
}

func provideAuth(db *store.DB, b *bus.Bus, logger *zap.Logger) (*auth.Provider, error) {
	p := auth.NewProvider(db, b, logger)
	found, err := p.Load()
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Info("no stored session")
	}
	return p, nil
}

func provideAPIClient(cfg *config.Config, a *auth.Provider, logger *zap.Logger) *api.Client {
	return api.New(cfg.Server.BaseURL, a,
		api.WithTimeout(cfg.Server.HTTPTimeout.Duration),
		api.WithLogger(logger),
	)
}

func provideResolver(c *api.Client, a *auth.Provider, logger *zap.Logger) *resolver.Resolver {
	return resolver.New(c, a, logger)
}

func provideSelector(r *resolver.Resolver) *resolver.Selector {
	return resolver.NewSelector(r)
}

func provideSynchronizer(c *api.Client, sel *resolver.Selector, r *resolver.Resolver, db *store.DB, a *auth.Provider, m *status.Machine, b *bus.Bus, logger *zap.Logger) *chatsync.Synchronizer {
	return chatsync.New(c, sel, r, db, a, m, b, logger)
}

func provideManager(cfg *config.Config, logger *zap.Logger) (*realtime.Manager, error) {
	endpoints, err := cfg.RealtimeURLs()
	if err != nil {
		return nil, err
	}
	rt := cfg.Realtime
	return realtime.NewManager(realtime.Config{
		Endpoints:            endpoints,
		ConnectTimeout:       rt.ConnectTimeout.Duration,
		MaxReconnectAttempts: rt.MaxReconnectAttempts,
		ReconnectBaseDelay:   rt.ReconnectBaseDelay.Duration,
		ReconnectMaxDelay:    rt.ReconnectMaxDelay.Duration,
	}, logger), nil
}

func provideHealth(p Params, logger *zap.Logger) (*health.Server, error) {
	socketPath := p.SocketPath
	if socketPath == "" {
		socketPath = profile.SocketPath(p.Profile)
	}
	return health.NewServer(socketPath, logger)
}

func provideConnector(m *realtime.Manager, a *auth.Provider, s *chatsync.Synchronizer, h *health.Server, b *bus.Bus, logger *zap.Logger) *Connector {
	return NewConnector(m, a, s, h, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *health.Server, lk *lock.Lock, db *store.DB, syncer *chatsync.Synchronizer, conn *Connector, a *auth.Provider, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("health server error", zap.Error(err))
				}
			}()

			syncer.Start(context.Background())
			conn.Start(context.Background())

			if _, ok := a.Session(); ok {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), resumeTimeout)
					defer cancel()
					if err := syncer.Resume(ctx); err != nil && !errors.Is(err, chatsync.ErrStopped) {
						logger.Warn("resume failed", zap.String("code", string(apperr.CodeOf(err))), zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			conn.Stop()
			syncer.Stop()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
