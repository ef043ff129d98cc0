package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/chequescan/internal/adapter/driven/credfile"
	"github.com/ericfisherdev/chequescan/internal/adapter/driven/gemini"
	sqliteadapter "github.com/ericfisherdev/chequescan/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/chequescan/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/chequescan/internal/adapter/driving/web"
	"github.com/ericfisherdev/chequescan/internal/application"
	"github.com/ericfisherdev/chequescan/internal/config"
	"github.com/ericfisherdev/chequescan/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"credentials_path", cfg.CredentialsPath,
		"model", cfg.GeminiModel,
		"api_key_present", cfg.HasAPIKey(),
		"upstream_timeout", cfg.UpstreamTimeout,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open session database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	logger.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", "schema_version", version)

	// 5. Wire driven adapters.
	credentialStore := credfile.NewStore(cfg.CredentialsPath)
	sessionStore := sqliteadapter.NewSessionRepo(db)

	if _, err := credentialStore.Load(ctx); err != nil {
		logger.Warn("credential file unavailable, logins disabled until it is generated", "error", err)
	}

	sessionKey := cfg.SessionKey
	if len(sessionKey) == 0 {
		sessionKey = make([]byte, 32)
		if _, err := rand.Read(sessionKey); err != nil {
			return err
		}
		logger.Warn("CHEQUESCAN_SESSION_KEY not set, using a random key; sessions will not survive a restart")
	}

	// 6. Create the model client (nil if no API key; the upload page reports it).
	var vision driven.VisionModel
	if cfg.HasAPIKey() {
		vision = gemini.NewClient(gemini.Config{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
		}, logger)
		logger.Info("gemini client created", "model", cfg.GeminiModel)
	} else {
		logger.Warn("no gemini API key configured, extraction disabled")
	}

	// 7. Create application services.
	authSvc := application.NewAuthService(
		credentialStore,
		sessionStore,
		application.BcryptHasher{},
		sessionKey,
		cfg.SessionTTL(),
		logger,
	)
	extractionSvc := application.NewExtractionService(vision, cfg.UpstreamTimeout, logger)
	report := application.NewReport(logger)

	if n, err := authSvc.PurgeExpired(ctx); err != nil {
		logger.Warn("failed to purge expired sessions", "error", err)
	} else if n > 0 {
		logger.Info("expired sessions purged", "count", n)
	}

	// 8. Register API and GUI routes on one mux.
	mux := http.NewServeMux()
	apiHandler := httphandler.NewHandler(authSvc, extractionSvc, report, cfg.CookieName, cfg.MaxUploadBytes, logger)
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	webHandler := webhandler.NewHandler(authSvc, extractionSvc, report, cfg.CookieName, cfg.MaxUploadBytes, logger)
	webhandler.RegisterRoutes(mux, webHandler)

	handler := httphandler.ApplyMiddleware(mux, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("chequescan started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErr:
		return err
	}

	// 10. Graceful shutdown, letting in-flight extractions finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
