package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openballot/donate/internal"
	"github.com/openballot/donate/internal/billing"
	"github.com/openballot/donate/internal/handler/api"
	"github.com/openballot/donate/internal/handler/webhook"
	"github.com/openballot/donate/internal/middleware"
	"github.com/openballot/donate/internal/repository"
	"github.com/openballot/donate/internal/router"
	"github.com/openballot/donate/internal/service"
	"github.com/openballot/donate/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry error tracking
	sentryCleanup, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.Sentry.DSN,
		Enabled:     cfg.Sentry.Enabled,
		Environment: cfg.Sentry.Environment,
		Release:     cfg.Sentry.Release,
		SampleRate:  cfg.Sentry.SampleRate,
		Debug:       cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentryCleanup()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize repository
	repo := repository.New(pool)

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:        cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Initialize donation service
	donations := service.NewDonationService(repo, billingProvider, logger)

	// Seed the default coupon catalog on startup. Safe to repeat; existing
	// coupons are left untouched.
	if err := donations.SeedDefaultCoupons(ctx); err != nil {
		return fmt.Errorf("failed to seed default coupons: %w", err)
	}

	// Initialize metrics
	metrics := telemetry.NewDonationMetrics(prometheus.DefaultRegisterer)

	// Initialize handlers
	webhookHandler := webhook.NewStripeHandler(donations, metrics, webhook.StripeWebhookConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	donationHandler := api.NewDonationHandler(donations, logger)

	// Register routes
	httpMetrics := middleware.NewMetrics(prometheus.DefaultRegisterer, "donate")
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		httpMetrics.Middleware,
		telemetry.SentryMiddleware(),
		router.Logger(logger),
	)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/webhooks/stripe", webhookHandler.HandleWebhook)
	r.Get("/api/v1/donations", donationHandler.History)
	r.Post("/api/v1/donations/subscription", donationHandler.Subscribe)
	r.Get("/api/v1/coupons/validate", donationHandler.ValidateCoupon)
	r.Get("/api/v1/coupons/plans", donationHandler.ListCouponPlans)

	// Start server
	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting donation server", "address", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
