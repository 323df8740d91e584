package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"handyhub/internal/api"
	"handyhub/internal/config"
	"handyhub/internal/database"
	"handyhub/internal/domain"
	"handyhub/internal/events"
	"handyhub/internal/logging"
	"handyhub/internal/metrics"
	"handyhub/internal/models"
	"handyhub/internal/notify"
	"handyhub/internal/repository"
	"handyhub/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := initResendLimiter(ctx, cfg, &logger)
	notifier := notify.NewEmailNotifier(cfg.SMTP, &logger)

	eventBus := events.NewEventBus()
	subscribeStatusEmails(ctx, eventBus, notifier, &logger)

	bookingService := service.NewBookingService(db, eventBus, &logger)
	otpService := service.NewOTPService(db, notifier, limiter, eventBus, service.OTPConfig{
		TTL:          time.Duration(cfg.OTP.TTLSeconds) * time.Second,
		ResendLimit:  cfg.OTP.ResendLimit,
		ResendWindow: time.Duration(cfg.OTP.ResendWindowSeconds) * time.Second,
	}, &logger)
	listingService := service.NewListingService(db, &logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Auth, bookingService, otpService, listingService, &logger)

	startMetrics(ctx, cfg, &logger)
	startBackups(ctx, cfg, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "main").Logger()

	return cfg, logger, closer, nil
}

// initResendLimiter prefers Redis and falls back to process-local counters
// when Redis is absent or unreachable.
func initResendLimiter(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.ResendLimiter {
	memory := repository.NewMemoryResendLimiter()
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory resend limiter")
		return memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, using in-memory resend limiter")
		return memory
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return repository.NewFailoverResendLimiter(repository.NewRedisResendLimiter(client), memory, logger)
}

// subscribeStatusEmails wires the event bus to best-effort customer emails.
func subscribeStatusEmails(ctx context.Context, bus *events.EventBus, notifier domain.Notifier, logger *zerolog.Logger) {
	handler := func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event payload")
			return err
		}
		if payload.CustomerEmail == "" {
			return nil
		}

		booking := &models.Booking{
			ID:               payload.BookingID,
			CustomerUsername: payload.CustomerUsername,
			CustomerEmail:    payload.CustomerEmail,
			CustomerName:     payload.CustomerName,
			ProviderUsername: payload.ProviderUsername,
			Service:          payload.Service,
			Status:           payload.Status,
			RequestedDate:    payload.RequestedDate,
		}
		if err := notifier.SendStatusUpdate(ctx, payload.CustomerEmail, payload.CustomerName, booking); err != nil {
			logger.Warn().Err(err).Str("booking_id", payload.BookingID).Msg("status email failed")
		}
		return nil
	}

	for _, eventType := range []string{
		events.EventBookingConfirmed,
		events.EventBookingRejected,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
	} {
		bus.Subscribe(eventType, handler)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", port).Msg("metrics server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func startBackups(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Backup.Enabled {
		return
	}

	backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
	go backupService.Start(ctx)
}
