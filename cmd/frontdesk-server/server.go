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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/config"
	"github.com/clinicdesk/frontdesk/internal/domain/dashboard"
	"github.com/clinicdesk/frontdesk/internal/domain/directory"
	"github.com/clinicdesk/frontdesk/internal/domain/scheduling"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
	"github.com/clinicdesk/frontdesk/internal/platform/db"
	"github.com/clinicdesk/frontdesk/internal/platform/middleware"
	"github.com/clinicdesk/frontdesk/internal/platform/notification"
	"github.com/clinicdesk/frontdesk/internal/platform/telemetry"
)

const version = "0.1.0"

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// newEmailSender picks the delivery backend named by EMAIL_PROVIDER.
func newEmailSender(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (notification.EmailSender, error) {
	from := notification.Sender{Email: cfg.EmailFrom, Name: cfg.EmailFromName}
	switch cfg.EmailProvider {
	case config.EmailProviderSendGrid:
		return notification.NewSendGridSender(cfg.SendGridAPIKey, from), nil
	case config.EmailProviderSES:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return notification.NewSESSender(sesv2.NewFromConfig(awsCfg), from), nil
	default:
		return notification.NewLogSender(logger), nil
	}
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.ResolvedAuthMode() == config.AuthModeDevelopment {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		SigningKey: []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
	})
}

// newIdempotencyStore connects to REDIS_URL. A nil store disables
// Idempotency-Key handling.
func newIdempotencyStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*middleware.IdempotencyStore, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set; Idempotency-Key handling disabled")
		return nil, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// Requests still pass through while redis is down.
		logger.Warn().Err(err).Msg("redis unreachable at startup")
	}
	return middleware.NewIdempotencyStore(client, cfg.IdempotencyTTL), func() { _ = client.Close() }, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, db.PoolConfig{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	// Notifications
	sender, err := newEmailSender(ctx, cfg, logger)
	if err != nil {
		return err
	}
	dispatcher := notification.NewDispatcher(sender, logger,
		notification.WithTimeout(cfg.NotifyTimeout),
		notification.WithRecorder(metrics),
	)

	// Domain services
	schedulingSvc := scheduling.NewService(
		scheduling.NewAppointmentRepoPG(pool),
		scheduling.NewDirectoryRepoPG(pool),
		db.NewTxManager(pool),
		scheduling.WithNotifier(scheduling.NewEmailNotifier(dispatcher, loc)),
		scheduling.WithMetrics(metrics),
		scheduling.WithLogger(logger),
		scheduling.WithLocation(loc),
		scheduling.WithAvailabilityCheck(cfg.EnforceAvailability),
	)
	directorySvc := directory.NewService(
		directory.NewDoctorRepoPG(pool),
		directory.NewPatientRepoPG(pool),
		logger,
	)

	idempotency, closeRedis, err := newIdempotencyStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, middleware.IdempotencyKeyHeader},
	}))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.Secure())
	if cfg.MetricsEnabled {
		e.Use(metrics.Middleware())
	}
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, "/metrics"))

	// Ops endpoints
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	if cfg.MetricsEnabled {
		e.GET("/metrics", telemetry.Handler(registry))
	}

	// API
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	limiter := middleware.NewRateLimiter(rateLimitCfg)
	go limiter.Run(ctx)

	apiV1 := e.Group("/api/v1", authMiddleware(cfg), limiter.Middleware())

	var bookingMW []echo.MiddlewareFunc
	if idempotency != nil {
		bookingMW = append(bookingMW, middleware.Idempotency(idempotency, logger))
	}
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(apiV1, bookingMW...)
	directory.NewHandler(directorySvc).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashboard.NewRepoPG(pool), logger).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending notifications abandoned")
	}
	stop()
	logger.Info().Msg("server stopped")
	return nil
}
