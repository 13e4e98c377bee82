// Package main provides the entry point for the ebook landing page backend
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Belgarat/freedownloadlandingpage/app/handlers"
	"github.com/Belgarat/freedownloadlandingpage/app/middleware"
	"github.com/Belgarat/freedownloadlandingpage/app/router"
	"github.com/Belgarat/freedownloadlandingpage/app/scheduler"
	"github.com/Belgarat/freedownloadlandingpage/app/services"
	businessflow "github.com/Belgarat/freedownloadlandingpage/business_flow"
	"github.com/Belgarat/freedownloadlandingpage/config"
	"github.com/Belgarat/freedownloadlandingpage/database"
	"github.com/Belgarat/freedownloadlandingpage/logger"
	"github.com/Belgarat/freedownloadlandingpage/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const captchaImageSize = 300

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	log       *logger.Logger
	db        *gorm.DB
	analytics businessflow.AnalyticsFlow
	cleanup   *scheduler.TokenCleanupScheduler
	stopFuncs []func()
}

var rootCmd = &cobra.Command{
	Use:           "landing",
	Short:         "Ebook landing page backend",
	Long:          `Serves the landing page API: configuration CMS, A/B testing, download links and analytics.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE:  runMigrate,
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export-analytics",
	Short: "Write the analytics event log to an xlsx file",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "analytics_events.xlsx", "output file")
	rootCmd.AddCommand(serveCmd, migrateCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.ProductionConfig, *logger.Logger, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting ebook landing application",
		"environment", cfg.Deployment.Environment,
		"version", cfg.Deployment.Version,
		"commit", cfg.Deployment.CommitHash,
	)

	app, err := initializeApplication(cfg, log)
	if err != nil {
		return err
	}
	defer app.stop()

	app.router.SetupRoutes()

	if cfg.Download.CleanupInterval > 0 {
		app.stopFuncs = append(app.stopFuncs, app.cleanup.Start(context.Background()))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		serverErr <- app.router.Start(address)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case sig := <-sigChan:
		log.Info("Shutting down gracefully", "signal", sig.String())
	}

	if err := app.router.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		log.Error("Error during shutdown", "error", err)
	}
	log.Info("Server stopped")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, backend, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if err := database.Migrate(db); err != nil {
		return err
	}
	log.Info("Database schema is up to date", "backend", backend.Name())
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	app, err := initializeApplication(cfg, log)
	if err != nil {
		return err
	}
	defer app.stop()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	_, data, err := app.analytics.Export(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	log.Info("Analytics exported", "file", exportOut, "bytes", len(data))
	return nil
}

func (a *Application) stop() {
	for i := len(a.stopFuncs) - 1; i >= 0; i-- {
		a.stopFuncs[i]()
	}
}

func initializeCache(cfg config.CacheConfig, log *logger.Logger) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis connection established", "db", cfg.RedisDB)
	return rc, nil
}

func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration, log *logger.Logger) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Warn("Redis healthcheck failed", "error", err)
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeApplication(cfg *config.ProductionConfig, log *logger.Logger) (*Application, error) {
	app := &Application{config: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			app.stop()
		}
	}()

	db, backend, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.stopFuncs = append(app.stopFuncs, func() { _ = database.Close(db) })
	log.Info("Database connection established", "backend", backend.Name())

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, err
		}
	}

	rc, err := initializeCache(cfg.Cache, log)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		app.stopFuncs = append(app.stopFuncs, func() { _ = rc.Close() })
		app.stopFuncs = append(app.stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval, log))
	}

	configRepo := repository.NewConfigRepository(db)
	abTestRepo := repository.NewABTestRepository(db)
	assignmentRepo := repository.NewVisitorAssignmentRepository(db)
	usageRepo := repository.NewConfigUsageRepository(db)
	tokenRepo := repository.NewDownloadTokenRepository(db)
	app.cleanup = scheduler.NewTokenCleanupScheduler(tokenRepo, log, cfg.Download.CleanupInterval, cfg.Download.CleanupRetention)
	eventRepo := repository.NewAnalyticsEventRepository(db)
	counterRepo := repository.NewAnalyticsCounterRepository(db)

	var counters services.CounterStore
	if rc != nil {
		counters = services.NewRedisCounterStore(rc, cfg.Cache.RedisPrefix, cfg.Cache.OperationTimeout)
	} else {
		counters = services.NewDatabaseCounterStore(counterRepo)
	}
	if cfg.Metrics.Enabled {
		counters = services.NewMeteredCounterStore(counters, prometheus.DefaultRegisterer)
	}

	publisher, err := services.NewEventPublisher(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	app.stopFuncs = append(app.stopFuncs, func() {
		if err := publisher.Close(); err != nil {
			log.Warn("Failed to close event publisher", "error", err)
		}
	})

	emailSvc, err := services.NewEmailService(cfg.Email, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize email service: %w", err)
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.SessionTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	var captchaSvc services.CaptchaService
	if cfg.Admin.CaptchaEnabled {
		captchaSvc, err = services.NewCaptchaServiceRotate(cfg.Admin.CaptchaTTL, cfg.Admin.CaptchaPadding, captchaImageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize captcha service: %w", err)
		}
		app.stopFuncs = append(app.stopFuncs, captchaSvc.Close)
	}

	configFlow := businessflow.NewConfigFlow(configRepo)
	abTestFlow := businessflow.NewABTestFlow(abTestRepo, assignmentRepo, configRepo, usageRepo, db)
	assignmentFlow := businessflow.NewAssignmentFlow(configRepo, abTestRepo, assignmentRepo, usageRepo, db)
	analyticsFlow := businessflow.NewAnalyticsFlow(eventRepo, counters, publisher, log)
	downloadFlow := businessflow.NewDownloadFlow(tokenRepo, configRepo, emailSvc, analyticsFlow, cfg.Download, log)
	adminAuthFlow := businessflow.NewAdminAuthFlow(cfg.Admin, tokenService, captchaSvc)
	app.analytics = analyticsFlow

	r, err := router.NewFiberRouter(
		router.Handlers{
			Config:     handlers.NewConfigHandler(configFlow, log),
			ABTest:     handlers.NewABTestHandler(abTestFlow, log),
			Assignment: handlers.NewAssignmentHandler(assignmentFlow, log),
			Download:   handlers.NewDownloadHandler(downloadFlow, log),
			Analytics:  handlers.NewAnalyticsHandler(analyticsFlow, log),
			Admin:      handlers.NewAdminHandler(adminAuthFlow, cfg.Security, log),
		},
		middleware.NewAuthMiddleware(tokenService),
		func(ctx context.Context) error { return database.HealthCheck(db, 3*time.Second) },
		cfg,
		log,
	)
	if err != nil {
		return nil, err
	}
	app.router = r

	ok = true
	return app, nil
}
