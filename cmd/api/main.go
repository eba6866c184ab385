package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"glowbook/internal/api"
	"glowbook/internal/booking"
	"glowbook/internal/config"
	"glowbook/internal/database"
	"glowbook/internal/domain"
	"glowbook/internal/events"
	"glowbook/internal/google"
	"glowbook/internal/logging"
	"glowbook/internal/metrics"
	"glowbook/internal/models"
	"glowbook/internal/repository"
	"glowbook/internal/service"
	"glowbook/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
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

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	loc, err := cfg.Booking.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	redisClient, cache := initCache(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	sheetsService := initGoogleSheets(ctx, cfg, loc, &logger)
	sheetsWorker := startSheetsWorker(ctx, db, sheetsService, redisClient, &logger)

	eventBus := events.NewEventBus()

	availabilityService := service.NewAvailabilityService(db, db, cache, service.AvailabilityConfig{
		Location:       loc,
		MaxBookingDays: cfg.Booking.MaxBookingDays,
	}, &logger)
	catalogService := service.NewCatalogService(db, &logger).WithProviders(db)
	providerService := service.NewProviderService(db, availabilityService, &logger)
	reviewService := service.NewReviewService(db, db, &logger)

	validator := booking.NewValidator(availabilityService, catalogService, availabilityService, booking.ValidatorConfig{
		Location:       loc,
		MaxBookingDays: cfg.Booking.MaxBookingDays,
	})
	var syncWorker domain.SyncWorker
	if sheetsWorker != nil {
		syncWorker = sheetsWorker
	}
	bookingService := service.NewBookingService(db, validator, booking.NewLifecycle(nil), eventBus, syncWorker, &logger).
		WithCreateRateLimit(cache, cfg.Booking.CreateRateLimit, cfg.Booking.CreateWindow())

	if err := startNotifications(ctx, cfg, db, eventBus, loc, &logger); err != nil {
		return err
	}

	if sheetsService != nil && os.Getenv("SHEETS_RESYNC") == "true" {
		go resyncSheets(ctx, cfg, db, sheetsService, &logger)
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	metricsHandler := startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(&cfg.API, api.Services{
		Availability: availabilityService,
		Catalog:      catalogService,
		Providers:    providerService,
		Bookings:     bookingService,
		Reviews:      reviewService,
		Location:     loc,
		ExportDir:    cfg.Exports.Path,
		Ready:        db.PingContext,
		Metrics:      metricsHandler,
	}, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, availabilityService, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
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
	logger := logging.Component(baseLogger, "api-main")

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			logger.Error().Err(err).Msg("create database directory")
			return err
		}
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create exports directory")
		return err
	}
	return nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	if err := seedServices(ctx, db, cfg.Seed.ServicesFile, logger); err != nil {
		logger.Error().Err(err).Str("services_file", cfg.Seed.ServicesFile).Msg("seed services")
	}
	return db, nil
}

// seedServices loads the catalog file into an empty services table.
func seedServices(ctx context.Context, db *database.DB, path string, logger *zerolog.Logger) error {
	if path == "" {
		return nil
	}

	count, err := db.CountServices(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn().Str("services_file", path).Msg("services seed file not found")
			return nil
		}
		return err
	}

	var seed struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range seed.Services {
		svc := seed.Services[i]
		if err := db.CreateService(ctx, &svc); err != nil {
			return fmt.Errorf("seed service %q: %w", svc.Title, err)
		}
	}

	logger.Info().Int("services", len(seed.Services)).Msg("services seeded")
	return nil
}

func initCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.CacheRepository) {
	ttl := cfg.Booking.CacheTTL()
	fallback := repository.NewMemoryCacheRepository(ttl)

	if cfg.Redis.Address == "" {
		return nil, fallback
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, serving cache from memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	primary := repository.NewRedisCacheRepository(redisClient, ttl)
	return redisClient, repository.NewFailoverCacheRepository(primary, fallback, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, loc *time.Location, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID, loc, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	if err := sheetsService.TestConnection(ctx); err != nil {
		email, _ := google.ServiceAccountEmail(cfg.Google.GoogleCredentialsFile)
		logger.Warn().Err(err).Str("share_with", email).Msg("google sheets connection test failed, continuing without sheets")
		return nil
	}

	go sheetsService.StartCacheRefresh(ctx)

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func startSheetsWorker(
	ctx context.Context,
	db *database.DB,
	sheetsService *google.SheetsService,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) *worker.SheetsWorker {
	if sheetsService == nil {
		return nil
	}

	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy(), logger)
	if _, err := sheetsWorker.RequeueFailed(ctx); err != nil {
		logger.Warn().Err(err).Msg("requeue failed sync tasks")
	}
	go sheetsWorker.Start(ctx)
	return sheetsWorker
}

func resyncSheets(ctx context.Context, cfg *config.Config, db *database.DB, sheetsService *google.SheetsService, logger *zerolog.Logger) {
	to := time.Now().AddDate(0, 0, cfg.Booking.MaxBookingDays+1)
	bookings, err := db.GetBookingsInRange(ctx, "", time.Unix(0, 0), to)
	if err != nil {
		logger.Error().Err(err).Msg("sheets resync: load bookings")
		return
	}
	if err := sheetsService.ReplaceBookingsSheet(ctx, bookings); err != nil {
		logger.Error().Err(err).Msg("sheets resync: replace sheet")
		return
	}
	logger.Info().Int("bookings", len(bookings)).Msg("sheets resynced")
}

func startNotifications(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	bus *events.EventBus,
	loc *time.Location,
	logger *zerolog.Logger,
) error {
	if cfg.Telegram.BotToken == "" {
		logger.Info().Msg("telegram token not set, notifications disabled")
		return nil
	}

	reminderAt, err := models.ParseTimeOfDay(cfg.Booking.ReminderTime)
	if err != nil {
		return err
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("create telegram bot api")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	notifications := service.NewNotificationService(
		service.NewTelegramService(botAPI), db, db,
		service.NotificationConfig{Location: loc, ReminderTime: reminderAt},
		logger,
	)
	notifications.Subscribe(bus)
	go notifications.Start(ctx)
	go notifications.StartReminders(ctx)

	logger.Info().Str("bot", botAPI.Self.UserName).Msg("telegram notifications enabled")
	return nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) http.Handler {
	metrics.Register()
	handler := promhttp.Handler()

	if cfg.Monitoring.PrometheusEnabled {
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, handler, logger)
	}
	return handler
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	event := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		event = event.Str("grpc_addr", grpcServer.Addr())
	}
	event.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, handler http.Handler, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
