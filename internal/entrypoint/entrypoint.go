package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/favsync/internal/cache"
	"github.com/mrlokans/favsync/internal/config"
	"github.com/mrlokans/favsync/internal/database"
	dbcache "github.com/mrlokans/favsync/internal/database/cache"
	syncrepo "github.com/mrlokans/favsync/internal/database/sync"
	"github.com/mrlokans/favsync/internal/distribution"
	"github.com/mrlokans/favsync/internal/favorites"
	http_controllers "github.com/mrlokans/favsync/internal/http"
	"github.com/mrlokans/favsync/internal/identity"
	"github.com/mrlokans/favsync/internal/logger"
	"github.com/mrlokans/favsync/internal/remote"
	"github.com/mrlokans/favsync/internal/scheduler"
	"github.com/mrlokans/favsync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App holds the wired favorites components shared by the server and the CLI.
type App struct {
	DB       *database.Database
	Store    cache.Store
	Gateway  remote.Gateway // nil when no remote is configured
	Engine   *favorites.Engine
	Hub      *distribution.Hub
	Syncs    *syncrepo.Repository
	Outbox   *tasks.Client // nil unless the outbox is enabled
	log      zerolog.Logger
	outboxCx context.CancelFunc
}

// NewApp opens the database, selects the cache backend and builds the
// engine with its remote delivery. The engine is bound to the hub but no
// scope is activated yet.
func NewApp(cfg *config.Config) (*App, error) {
	log := logger.Component("entrypoint")

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app := &App{DB: db, Syncs: syncrepo.NewRepository(db.DB), log: log}

	app.Store, err = NewStore(cfg.Cache, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("backend", string(cfg.Cache.Backend)).Msg("Favorites cache ready")

	if cfg.Remote.BaseURL == "" {
		log.Warn().Msg("REMOTE_BASE_URL is not set, favorites stay local to this device")
	} else {
		client, err := remote.NewClient(remote.ClientConfig{
			BaseURL:    cfg.Remote.BaseURL,
			Timeout:    cfg.Remote.Timeout,
			MaxRetries: cfg.Remote.MaxRetries,
		}, logger.Component("remote"))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create remote client: %w", err)
		}
		app.Gateway = client
	}

	var dispatcher favorites.Dispatcher
	if cfg.Outbox.Enabled && app.Gateway != nil {
		taskLog := logger.Component("tasks")
		app.Outbox, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		}, taskLog)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize outbox: %w", err)
		}
		app.Outbox.Register(tasks.NewRemoteFavoriteQueue(app.Gateway, app.Outbox.Ledger(), logOutcome(taskLog), taskLog))
		dispatcher = tasks.NewOutboxDispatcher(app.Outbox, logOutcome(taskLog), taskLog)

		var outboxCtx context.Context
		outboxCtx, app.outboxCx = context.WithCancel(context.Background())
		go app.Outbox.Start(outboxCtx)
	} else if cfg.Outbox.Enabled {
		log.Warn().Msg("OUTBOX_ENABLED has no effect without REMOTE_BASE_URL")
	}

	engineLog := logger.Component("favorites")
	app.Engine = favorites.NewEngine(app.Store, favorites.Options{
		Gateway:    app.Gateway,
		Dispatcher: dispatcher,
		Reporter:   app.Syncs,
		Observer:   logOutcome(engineLog),
		Logger:     &engineLog,
	})

	app.Hub = distribution.NewHub()
	app.Hub.Bind(app.Engine)

	return app, nil
}

// NewStore builds the cache backend named by cfg.
func NewStore(cfg config.Cache, db *database.Database) (cache.Store, error) {
	log := logger.Component("cache")
	switch cfg.Backend {
	case config.CacheBackendSQLite, "":
		return cache.NewDatabaseStore(dbcache.NewRepository(db.DB), log), nil
	case config.CacheBackendFile:
		store, err := cache.NewFileStore(cfg.Dir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file cache: %w", err)
		}
		return store, nil
	case config.CacheBackendMemory:
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Close stops the engine and outbox and closes the database. Safe to call
// once, after the last use of the engine.
func (a *App) Close(ctx context.Context) {
	a.Engine.Close()
	a.Hub.Unbind()

	if a.Outbox != nil {
		a.Outbox.Stop(ctx)
		a.outboxCx()
		if err := a.Outbox.Close(); err != nil {
			a.log.Error().Err(err).Msg("Error closing outbox")
		}
	}

	if err := a.DB.Close(); err != nil {
		a.log.Error().Err(err).Msg("Error closing database")
	}
}

// logOutcome reports remote failures that were given up on.
func logOutcome(log zerolog.Logger) favorites.Observer {
	return func(outcome favorites.Outcome) {
		if outcome.Discarded {
			log.Debug().Str("call", outcome.Call.String()).Msg("Remote result discarded")
		}
	}
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	log := logger.Component("entrypoint")
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Dur("timeout", timeout).Msg("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown")
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Info().Msg("Server exiting")
}

func Run(cfg *config.Config, version string) {
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.Component("entrypoint")
	log.Info().Str("version", version).Msg("Starting favsync")

	if !scheduler.Disabled(cfg.Reconcile.Schedule) {
		if err := scheduler.ValidateSchedule(cfg.Reconcile.Schedule); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Reconcile.Schedule).Msg("Invalid RECONCILE_SCHEDULE")
		}
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := identity.NewSession(cfg.Identity.DefaultUser)
	if user, ok := session.Current(); ok {
		log.Info().Str("user", user).Msg("Signed in as default user")
	}
	stopFollowing := favorites.FollowIdentity(ctx, app.Engine, session)

	var reconciler *scheduler.ReconcileScheduler
	if app.Gateway != nil {
		reconciler = scheduler.NewReconcileScheduler(app.Hub, app.Syncs, cfg.Reconcile.Schedule, logger.Component("scheduler"))
		if err := reconciler.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start reconcile scheduler")
		}
	}

	routerCfg := http_controllers.RouterConfig{
		Favorites:    app.Hub,
		Session:      session,
		Database:     app.DB,
		SyncProgress: app.Syncs,
		Version:      version,
		Logger:       logger.Component("http"),
	}
	if app.Outbox != nil {
		routerCfg.TaskStatus = app.Outbox
	}
	if reconciler != nil {
		routerCfg.Schedule = reconciler
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if reconciler != nil {
			reconciler.Stop()
		}
		stopFollowing()
		cancel()
		app.Close(ctx)
	}

	Serve(router, cfg, onShutdown)
}
