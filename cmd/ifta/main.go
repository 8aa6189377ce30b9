package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/ifta-reports-go/internal/config"
	"github.com/boddenberg/ifta-reports-go/internal/domain"
	"github.com/boddenberg/ifta-reports-go/internal/handler"
	"github.com/boddenberg/ifta-reports-go/internal/infra/cache"
	"github.com/boddenberg/ifta-reports-go/internal/infra/database"
	"github.com/boddenberg/ifta-reports-go/internal/infra/notify"
	"github.com/boddenberg/ifta-reports-go/internal/infra/observability"
	"github.com/boddenberg/ifta-reports-go/internal/infra/resilience"
	"github.com/boddenberg/ifta-reports-go/internal/infra/storage"
	"github.com/boddenberg/ifta-reports-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	envFile string

	rootCmd = &cobra.Command{
		Use:   "ifta",
		Short: "IFTA reporting API",
		Long:  `IFTA reporting API collects monthly fuel-tax reports per vehicle and rolls them up into quarterly filings`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed the admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ifta",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ifta version %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file loaded before reading configuration")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment, then validates the result.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	db, err := database.Open(database.Config{
		DSN:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func seedAdmin(ctx context.Context, cfg *config.Config, db *database.DB, logger *zap.Logger) (*service.AuthService, error) {
	auth := service.NewAuthService(db, db, db, service.AuthConfig{
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.JWTAccessTTL,
		BcryptCost: cfg.BcryptCost,
	}, logger)
	if cfg.AdminEmail == "" {
		return auth, nil
	}
	if err := auth.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	return auth, nil
}

func migrate() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("migration failed", zap.Error(err))
		return err
	}
	defer db.Close()

	if _, err := seedAdmin(ctx, cfg, db, logger); err != nil {
		logger.Error("admin seed failed", zap.Error(err))
		return err
	}
	logger.Info("migrations applied", zap.String("dialect", db.Dialect()))
	return nil
}

func serve() error {
	// --- Config ---
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer func() { _ = logger.Sync() }()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("attachments_dir", cfg.AttachmentsDir),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("summary_cache_ttl", cfg.SummaryCacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Bool("email_api_enabled", cfg.EmailAPIURL != ""),
	)
	if cfg.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("JWT_SECRET is the development default, set it before deploying")
	}

	ctx := context.Background()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "ifta-api")
	if err != nil {
		logger.Error("failed to init tracer", zap.Error(err))
		return err
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Database ---
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Error("database unavailable", zap.Error(err))
		return err
	}
	defer db.Close()

	authSvc, err := seedAdmin(ctx, cfg, db, logger)
	if err != nil {
		logger.Error("admin seed failed", zap.Error(err))
		return err
	}

	// --- Attachments ---
	blobs, err := storage.NewDiskStorage(logger, cfg.AttachmentsDir)
	if err != nil {
		logger.Error("attachment storage unavailable", zap.Error(err))
		return err
	}

	// --- Cache ---
	summaries := cache.New[*domain.QuarterlySummary](cfg.SummaryCacheTTL)
	defer summaries.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Email ---
	var sender notify.Sender
	if cfg.EmailAPIURL != "" {
		logger.Info("email delivery via HTTP API", zap.String("email_api_url", cfg.EmailAPIURL))
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("email-api", logger)
		sender = notify.NewHTTPSender(httpClient, cfg.EmailAPIURL, cfg.EmailAPIKey, cb, resilienceCfg)
	} else {
		logger.Warn("EMAIL_API_URL not set, notifications are only logged")
		sender = notify.NewLogSender(logger)
	}
	dispatcher := notify.NewDispatcher(sender, cfg.MaxConcurrency, cfg.HTTPTimeout, metrics, logger)

	// --- Services ---
	quarterlySvc := service.NewQuarterlyService(db, db, db, summaries, dispatcher, metrics, logger)
	svcs := handler.Services{
		Auth:      authSvc,
		Companies: service.NewCompanyService(db, logger),
		Vehicles:  service.NewVehicleService(db, logger),
		Reports:   service.NewReportService(db, db, db, quarterlySvc, blobs, db, dispatcher, metrics, logger),
		Quarterly: quarterlySvc,
		Database:  db,
	}

	// --- Router ---
	router := handler.NewRouter(svcs, handler.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
			return err
		}
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("pending notifications dropped", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
