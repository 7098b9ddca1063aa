package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mooncress/authcore/internal/cache"
	"github.com/mooncress/authcore/internal/cache/rediscache"
	"github.com/mooncress/authcore/internal/event"
	httpapi "github.com/mooncress/authcore/internal/http"
	"github.com/mooncress/authcore/internal/notify"
	"github.com/mooncress/authcore/internal/service"
	"github.com/mooncress/authcore/internal/store"
	"github.com/mooncress/authcore/internal/store/sqlite"
	"github.com/mooncress/authcore/pkg/jwtx"
	"github.com/mooncress/authcore/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the identity service together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	cache   cache.Cache
	signer  *jwtx.Signer
	emitter event.Emitter

	tokenService        *service.TokenService
	accountService      *service.AccountService
	twoFactorService    *service.TwoFactorService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New builds an Application with every dependency initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initCache()
	app.initEvents()

	key, err := jwtx.LoadOrGenerateKey(cfg.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	app.signer, err = jwtx.NewSigner(key, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("build signer: %w", err)
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("authcore starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the server and releases every resource.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authcore...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.emitter.Close(); err != nil {
		app.logger.Error("error closing event emitter", "error", err)
	}
	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("authcore stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseURL)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied")
	return nil
}

func (app *Application) initCache() {
	app.cache = rediscache.New(app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
}

func (app *Application) initEvents() {
	if app.cfg.KafkaBrokers == "" {
		app.emitter = event.NopEmitter{}
		app.logger.Info("event emission disabled, no brokers configured")
		return
	}

	brokers := strings.Split(app.cfg.KafkaBrokers, ",")
	for i := range brokers {
		brokers[i] = strings.TrimSpace(brokers[i])
	}
	app.emitter = event.NewKafkaEmitter(brokers, app.cfg.KafkaTopic, app.logger)
	app.logger.Info("event emission enabled", "topic", app.cfg.KafkaTopic)
}

func (app *Application) initServices() {
	credentials := &service.CredentialService{
		Store:        app.db,
		Threshold:    app.cfg.LockoutThreshold,
		LockDuration: app.cfg.LockoutDuration,
		Events:       app.emitter,
	}
	app.twoFactorService = &service.TwoFactorService{
		Store:        app.db,
		Cache:        app.cache,
		Signer:       app.signer,
		Events:       app.emitter,
		IssuerName:   app.cfg.Issuer,
		ChallengeTTL: app.cfg.ChallengeTTL,
		EnrollTTL:    app.cfg.EnrollTTL,
	}
	federation := &service.FederationService{
		Store:  app.db,
		Events: app.emitter,
	}
	app.tokenService = &service.TokenService{
		Store:       app.db,
		Signer:      app.signer,
		Credentials: credentials,
		TwoFactor:   app.twoFactorService,
		Federation:  federation,
		Events:      app.emitter,
		AccessTTL:   app.cfg.AccessTTL,
		RefreshTTL:  app.cfg.RefreshTTL,
	}
	app.accountService = &service.AccountService{
		Store:      app.db,
		Dispatcher: &notify.LogDispatcher{Logger: app.logger},
		Events:     app.emitter,
		BcryptCost: app.cfg.BcryptCost,
		ResetTTL:   app.cfg.ResetTTL,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(app.signer, BuildVersion, app.db, app.cache, app.logger)
	app.router.TokenService = app.tokenService
	app.router.AccountService = app.accountService
	app.router.TwoFactorService = app.twoFactorService
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: app.router,
	}
}
