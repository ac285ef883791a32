package daemon

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/RedFoundry/convosync/internal/api"
	"github.com/RedFoundry/convosync/internal/bus"
	"github.com/RedFoundry/convosync/internal/chat"
	"github.com/RedFoundry/convosync/internal/config"
	"github.com/RedFoundry/convosync/internal/lock"
	"github.com/RedFoundry/convosync/internal/logging"
	"github.com/RedFoundry/convosync/internal/state"
	synceng "github.com/RedFoundry/convosync/internal/sync"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the composition inputs for the daemon.
type Params struct {
	// ConfigPath overrides the default config location; empty = default.
	ConfigPath string

	// Dial is the conversations SDK binding supplied by the embedding
	// build. When nil the daemon runs with sessions disabled: the store,
	// API client and metrics still work, which is enough for login-only
	// or diagnostic runs.
	Dial chat.Dialer
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideAPIClient,
			provideManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = config.Path()
	}
	return config.Load(path)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(config.LogPath(), cfg.Identity)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	if err := config.EnsureDirs(); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock")
	l, err := lock.Acquire(config.BaseDir())
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(b *bus.Bus) *state.Store {
	return state.NewStore(b)
}

func provideAPIClient(cfg *config.Config, store *state.Store, logger *zap.Logger) *api.Client {
	return api.NewClient(cfg.APIBaseURL, store, logger)
}

func provideManager(p Params, cfg *config.Config, store *state.Store, client *api.Client, b *bus.Bus, logger *zap.Logger) *synceng.Manager {
	base := synceng.Config{
		Identity:        cfg.Identity,
		DisplayName:     cfg.DisplayName,
		PageSize:        cfg.PageSize,
		CountCursorless: cfg.CountCursorless,
	}
	return synceng.NewManager(base, synceng.Deps{
		Store:  store,
		Tokens: client,
		Dial:   p.Dial,
		Bus:    b,
		Logger: logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, cfg *config.Config, store *state.Store, client *api.Client, mgr *synceng.Manager, lk *lock.Lock, logger *zap.Logger) {
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if metricsSrv != nil {
				go func() {
					logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics server error", zap.Error(err))
					}
				}()
			}

			go bootstrap(store, client, mgr, p.Dial, logger)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			mgr.Shutdown(ctx)
			store.Dispatch(state.Logout())
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}

// bootstrap logs in with CONVOSYNC_USERNAME/CONVOSYNC_PASSWORD when set,
// fetches the schedule and opens one session per endpoint. Runs off the
// start hook so a slow backend cannot stall process startup.
func bootstrap(store *state.Store, client *api.Client, mgr *synceng.Manager, dial chat.Dialer, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	username := os.Getenv("CONVOSYNC_USERNAME")
	if username != "" {
		if err := client.Login(ctx, username, os.Getenv("CONVOSYNC_PASSWORD")); err != nil {
			logger.Error("login failed", zap.Error(err))
			return
		}
		logger.Info("logged in", zap.String("username", username))
	}

	if store.Token() == "" {
		logger.Info("no session token, sessions not opened")
		store.Dispatch(state.SetLoading(false))
		return
	}
	if dial == nil {
		logger.Warn("no conversations SDK binding configured, sessions disabled")
		store.Dispatch(state.SetLoading(false))
		return
	}

	endpoints, err := client.Schedule(ctx)
	if err != nil {
		logger.Error("schedule fetch failed", zap.Error(err))
		store.Dispatch(state.SetLoading(false))
		return
	}
	mgr.OpenAll(ctx, endpoints)
	store.Dispatch(state.SetLoading(false))
	logger.Info("sessions opened", zap.Int("endpoints", len(endpoints)))
}
