// Package app wires configuration, storage, executors, the dispatcher,
// the webhook lifecycle and the scheduler into a runnable application.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"workflow-engine/internal/actions"
	"workflow-engine/internal/catalog"
	"workflow-engine/internal/circuitbreaker"
	commonhttp "workflow-engine/internal/common/http"
	"workflow-engine/internal/common/logging"
	"workflow-engine/internal/config"
	"workflow-engine/internal/engine"
	"workflow-engine/internal/handlers"
	"workflow-engine/internal/middleware"
	"workflow-engine/internal/reactions"
	"workflow-engine/internal/redis"
	"workflow-engine/internal/scheduler"
	"workflow-engine/internal/signature"
	"workflow-engine/internal/storage"
	_ "workflow-engine/internal/storage/postgres"
	_ "workflow-engine/internal/storage/sqlite"
	"workflow-engine/internal/tokens"
	"workflow-engine/internal/webhooks"
)

// App holds all application dependencies.
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	Catalog     *catalog.Registry
	Dispatcher  *engine.Dispatcher
	Lifecycle   *webhooks.Manager
	Scheduler   *scheduler.Scheduler
	Handlers    *handlers.Handlers
	Logger      logging.Logger
}

// New builds the application from configuration. Components are
// initialized in dependency order; any failure aborts startup.
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config:  cfg,
		Catalog: catalog.Default(),
		Logger:  logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	if err := app.initStorage(); err != nil {
		return nil, err
	}
	if err := app.initRedis(); err != nil {
		// the app-token cache is optional
		app.Logger.Warn("Redis unavailable, continuing without app-token cache",
			logging.Field{Key: "error", Value: err.Error()})
	}
	if err := app.initEngine(); err != nil {
		return nil, err
	}
	app.initLifecycle()
	app.initScheduler()
	app.initHandlers()

	return app, nil
}

func (app *App) initStorage() error {
	storageConfig := storage.Config{Type: app.Config.DatabaseType}
	switch app.Config.DatabaseType {
	case "postgres":
		storageConfig.DSN = app.Config.PostgresDSN()
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "database", Value: app.Config.PostgresDB})
	default:
		storageConfig.Path = app.Config.DatabasePath
		app.Logger.Info("Database: SQLite",
			logging.Field{Key: "path", Value: app.Config.DatabasePath})
	}

	store, err := storage.New(storageConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.Storage = store
	return nil
}

func (app *App) initRedis() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: not configured")
		return nil
	}
	client, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       app.Config.RedisDB,
	})
	if err != nil {
		return err
	}
	app.RedisClient = client
	app.Logger.Info("Redis: connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})
	return nil
}

func (app *App) initEngine() error {
	tokenManager := tokens.NewManager(app.Storage, app.tokenRegistry(), app.outboundClient("oauth"))

	actionsExec, err := actions.NewExecutor(app.Catalog, actions.Deps{
		Tokens:       tokenManager,
		Client:       app.outboundClient("actions"),
		FaceitAPIKey: app.Config.FaceitAPIKey,
	})
	if err != nil {
		return err
	}
	reactionsExec, err := reactions.NewExecutor(app.Catalog, reactions.Deps{
		Tokens:          tokenManager,
		Client:          app.outboundClient("reactions"),
		DiscordBotToken: app.Config.DiscordBotToken,
	})
	if err != nil {
		return err
	}

	app.Dispatcher = engine.NewDispatcher(app.Storage, app.Catalog, actionsExec, reactionsExec)
	return nil
}

func (app *App) initLifecycle() {
	var cache webhooks.TokenCache
	if app.RedisClient != nil {
		cache = app.RedisClient
	}
	twitch := webhooks.NewTwitchClient(webhooks.TwitchConfig{
		ClientID:      app.Config.TwitchClientID,
		ClientSecret:  app.Config.TwitchClientSecret,
		WebhookSecret: app.Config.TwitchWebhookSecret,
		CallbackURL:   app.Config.TwitchCallbackURL,
	}, app.outboundClient("twitch"), cache)
	app.Lifecycle = webhooks.NewManager(app.Catalog, twitch)
}

func (app *App) initScheduler() {
	app.Scheduler = scheduler.New(app.Storage, app.Dispatcher, app.Config.TimerPollInterval)
}

func (app *App) initHandlers() {
	verifier := signature.NewVerifier(app.Config.TwitchWebhookSecret)
	app.Handlers = handlers.New(app.Storage, app.Dispatcher, app.Lifecycle, verifier, app.Config.DiscordBotSecret)
}

// tokenRegistry maps each configured OAuth provider to its refresh
// endpoint. Providers without credentials are left out so a missing
// credential surfaces as a capability error at execution time.
func (app *App) tokenRegistry() *tokens.Registry {
	endpoints := make(map[string]tokens.Endpoint)
	if app.Config.GoogleClientID != "" {
		endpoints["google"] = tokens.Endpoint{
			TokenURL:     "https://oauth2.googleapis.com/token",
			ClientID:     app.Config.GoogleClientID,
			ClientSecret: app.Config.GoogleClientSecret,
		}
	}
	if app.Config.SpotifyClientID != "" {
		endpoints["spotify"] = tokens.Endpoint{
			TokenURL:     "https://accounts.spotify.com/api/token",
			ClientID:     app.Config.SpotifyClientID,
			ClientSecret: app.Config.SpotifyClientSecret,
		}
	}
	if app.Config.TwitterClientID != "" {
		endpoints["twitter"] = tokens.Endpoint{
			TokenURL:     "https://api.twitter.com/2/oauth2/token",
			ClientID:     app.Config.TwitterClientID,
			ClientSecret: app.Config.TwitterClientSecret,
		}
	}
	return tokens.NewRegistry(endpoints)
}

// outboundClient builds the shared HTTP client used for provider calls,
// with a per-concern circuit breaker.
func (app *App) outboundClient(name string) *commonhttp.Client {
	breaker := circuitbreaker.NewGoBreaker(name, circuitbreaker.DefaultConfig(), app.Logger)
	return commonhttp.NewClient(commonhttp.WithTimeout(15 * time.Second)).
		WithCircuitBreaker(breaker)
}

// Router assembles the HTTP routes with the shared middleware chain.
func (app *App) Router() http.Handler {
	router := mux.NewRouter()
	app.Handlers.Routes(router)
	return middleware.RequestID(middleware.Logging(router))
}

// Shutdown stops the scheduler and closes storage and redis, bounded by
// ctx.
func (app *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if app.Scheduler != nil {
		if err := app.Scheduler.Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if app.Storage != nil {
		if err := app.Storage.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
