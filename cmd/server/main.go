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

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/stwalsh4118/covenant/internal/config"
	"github.com/stwalsh4118/covenant/internal/database"
	apierrors "github.com/stwalsh4118/covenant/internal/errors"
	"github.com/stwalsh4118/covenant/internal/handlers"
	"github.com/stwalsh4118/covenant/internal/logger"
	"github.com/stwalsh4118/covenant/internal/metrics"
	"github.com/stwalsh4118/covenant/internal/middleware"
	"github.com/stwalsh4118/covenant/internal/notify"
	"github.com/stwalsh4118/covenant/internal/repository"
	"github.com/stwalsh4118/covenant/internal/scheduler"
	"github.com/stwalsh4118/covenant/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting Covenant API", map[string]interface{}{
		"version":     "0.1.0",
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create database connection pool
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	applied, err := db.Migrate(ctx)
	if err != nil {
		log.Fatal("Failed to apply migrations", err, nil)
	}
	if len(applied) > 0 {
		log.Info("Migrations applied", map[string]interface{}{
			"migrations": applied,
		})
	}

	m := metrics.New()

	notifier, err := newNotifier(cfg.Email, log)
	if err != nil {
		log.Fatal("Failed to initialize notifier", err, nil)
	}

	// Initialize repository and service layers
	deps := services.Deps{
		Store:    repository.NewStore(db),
		Retrier:  database.NewRetrier(cfg.Database),
		Notifier: notifier,
		Metrics:  m,
		Log:      log,
	}
	scoringService := services.NewScoringService(deps)
	billingService := services.NewBillingService(deps, scoringService, cfg.Billing.BaseRatePerSqft)
	violationService := services.NewViolationService(deps, scoringService, billingService, nil)
	propertyService := services.NewPropertyService(deps)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := apierrors.RegisterValidator(v); err != nil {
			log.Fatal("Failed to register validator translations", err, nil)
		}
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> Metrics -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.CORS(cfg.CORS))

	sweep := scheduler.New("overdue_sweep", cfg.Billing.SweepInterval, func(ctx context.Context) error {
		_, err := billingService.OverdueSweep(ctx)
		return err
	}, scheduler.WithLogger(log))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env).WithSweep(sweep)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// Register API v1 routes
	handlers.RegisterRoutes(router.Group("/api/v1"), handlers.Handlers{
		Properties: handlers.NewPropertyHandler(propertyService, scoringService),
		Violations: handlers.NewViolationHandler(violationService),
		Bills:      handlers.NewBillHandler(billingService),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sweep.Run(gctx)
	})

	// Graceful shutdown on signal or when either goroutine fails
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", err, map[string]interface{}{
				"timeout": shutdownTimeout.String(),
			})
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Server exited with error", err, nil)
		db.Close()
		os.Exit(1)
	}

	log.Info("Server exited", nil)
}

// newNotifier sends through SendGrid when an API key is configured and logs
// messages otherwise.
func newNotifier(cfg config.EmailConfig, log *logger.Logger) (notify.Notifier, error) {
	renderer, err := notify.NewRenderer(cfg.FromName)
	if err != nil {
		return nil, err
	}

	var mailer notify.Mailer
	if cfg.Enabled() {
		mailer = notify.NewSendGridMailer(cfg)
		log.Info("Email delivery via SendGrid", map[string]interface{}{
			"from": cfg.From,
		})
	} else {
		mailer = notify.NewLogMailer(log)
		log.Warn("No email API key configured, notices will only be logged", nil)
	}
	return notify.NewEmailNotifier(mailer, renderer), nil
}
