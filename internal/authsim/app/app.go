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
	"time"

	"github.com/devharness/authsim/internal/authsim/domain"
	httpapi "github.com/devharness/authsim/internal/authsim/http"
	"github.com/devharness/authsim/internal/authsim/service"
	"github.com/devharness/authsim/internal/authsim/store"
	"github.com/devharness/authsim/internal/authsim/store/drivers/memory"
	"github.com/devharness/authsim/internal/authsim/store/drivers/sqlite"
	"github.com/devharness/authsim/pkg/cryptox"
	"github.com/devharness/authsim/pkg/idx"
	"github.com/devharness/authsim/pkg/jwtx"
	"github.com/devharness/authsim/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the simulator with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	codec *jwtx.Codec

	// Services
	authService    *service.AuthService
	lockoutService *service.LockoutService
	mfaService     *service.MFAService
	sessionService *service.SessionService
	sweeperService *service.SweeperService
	audit          *service.AuditDispatcher

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authsim",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	codec, err := jwtx.NewCodec([]byte(cfg.JWTSecret), cfg.Issuer)
	if err != nil {
		return nil, ErrMissingJWTSecret
	}
	app.codec = codec

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.initServices()

	if err := app.seedUser(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.sweeperService.Start()

	app.logger.Info("authsim starting", "port", app.cfg.Port, "version", BuildVersion,
		"store", app.cfg.StoreDriver)

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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authsim...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.sweeperService.Stop()
	app.audit.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("authsim stopped")
	return nil
}

// initStore initializes the configured storage backend.
func (app *Application) initStore() error {
	switch app.cfg.StoreDriver {
	case "", "memory":
		app.db = memory.NewStore()
		app.logger.Info("using in-memory store")
		return nil

	case "sqlite":
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.db = db
		app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
		return nil

	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.audit = service.NewAuditDispatcher(
		service.SlogSink{Logger: app.logger},
		app.cfg.AuditBuffer,
	)

	app.lockoutService = &service.LockoutService{
		Lockouts:    app.db.Lockouts(),
		MaxAttempts: app.cfg.LockoutMaxAttempts,
		LockFor:     app.cfg.LockoutDuration,
		Enabled:     app.cfg.LockoutEnabled,
	}

	app.mfaService = &service.MFAService{
		Users:       app.db.Users(),
		BackupCodes: app.db.BackupCodes(),
		Issuer:      app.cfg.Issuer,
	}

	app.sessionService = &service.SessionService{
		Sessions: app.db.Sessions(),
		TTL:      app.cfg.RefreshTokenTTL,
	}

	app.authService = &service.AuthService{
		Users:         app.db.Users(),
		Codec:         app.codec,
		Lockout:       app.lockoutService,
		MFA:           app.mfaService,
		Sessions:      app.sessionService,
		Audit:         app.audit,
		AccessTTL:     app.cfg.AccessTokenTTL,
		RefreshTTL:    app.cfg.RefreshTokenTTL,
		RotateRefresh: app.cfg.RotateRefresh,
	}

	app.sweeperService = service.NewSweeperService(
		app.sessionService,
		app.lockoutService,
		app.logger,
		app.cfg.SweepInterval,
	)
}

// seedUser creates the configured bootstrap user when the store is empty,
// so a fresh simulator has something to log in as.
func (app *Application) seedUser(ctx context.Context) error {
	if app.cfg.SeedEmail == "" {
		return nil
	}
	if app.cfg.SeedPassword == "" {
		return fmt.Errorf("AUTHSIM_SEED_PASSWORD is required when AUTHSIM_SEED_EMAIL is set")
	}

	empty, err := app.db.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("checking for existing users: %w", err)
	}
	if !empty {
		return nil
	}

	hash, err := cryptox.HashPassword(app.cfg.SeedPassword)
	if err != nil {
		return fmt.Errorf("hashing seed password: %w", err)
	}

	now := time.Now()
	user := domain.User{
		ID:           idx.New().String(),
		Email:        strings.ToLower(app.cfg.SeedEmail),
		PasswordHash: hash,
		Roles:        []string{"admin"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := app.db.Users().CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating seed user: %w", err)
	}

	app.logger.Info("seed user created", "email", user.Email, "user_id", user.ID)
	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.logger)

	router.AuthService = app.authService
	router.MFAService = app.mfaService
	router.LockoutService = app.lockoutService
	router.SessionService = app.sessionService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
