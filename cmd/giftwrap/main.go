package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"giftwrap/internal/api"
	"giftwrap/internal/audit"
	"giftwrap/internal/booking"
	"giftwrap/internal/cache"
	"giftwrap/internal/config"
	"giftwrap/internal/db"
	"giftwrap/internal/events"
	"giftwrap/internal/google"
	"giftwrap/internal/grpcapi"
	"giftwrap/internal/lock"
	"giftwrap/internal/metrics"
	"giftwrap/internal/notify"
	"giftwrap/internal/reminder"
	"giftwrap/internal/stream"
	"giftwrap/internal/ticket"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	window, _ := cfg.Window()
	loc, _ := cfg.Location()

	database, err := db.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
	}

	schedules := cache.NewScheduleCache(database, rdb, cfg.CacheTTL(), &logger)

	var locker lock.Locker = lock.NewLocalLocker()
	if rdb != nil {
		locker = lock.NewFailoverLocker(lock.NewRedisLocker(rdb, cfg.LockTTL(), 5*time.Second, &logger), locker, &logger)
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	bus := events.NewEventBus(&logger)

	var bot *tgbotapi.BotAPI
	if cfg.Telegram.BotToken != "" {
		bot, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		bot.Debug = cfg.Telegram.Debug
	}

	sinks := []notify.Sink{notify.NewLogSink(&logger)}
	if bot != nil && cfg.Telegram.AdminChatID != 0 {
		sinks = append(sinks, notify.NewTelegramSink(bot, cfg.Telegram.AdminChatID))
	}
	dispatcher := notify.NewDispatcher(notifyConfig(cfg), database, &logger, sinks...)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	if cfg.Kafka.Enabled {
		brokers := stream.SplitBrokers(cfg.Kafka.Brokers)
		if len(brokers) == 0 {
			logger.Fatal().Msg("kafka.brokers is empty")
		}
		publisher := stream.NewPublisher(stream.NewKafkaWriter(brokers, cfg.Kafka.Topic), 1024, &logger)
		publisher.Subscribe(bus)
		go publisher.Run(ctx)
	}

	if cfg.Google.Enabled {
		values, err := google.NewValuesAPI(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID)
		if err != nil {
			logger.Fatal().Err(err).Msg("google sheets init error")
		}
		sheets := google.NewSheetsService(values, cfg.Google.SheetName, 256, &logger)
		sheets.Subscribe(bus)
		go sheets.Run(ctx)
	}

	svc := booking.NewService(booking.Deps{
		Schedules: schedules,
		Bookings:  database,
		Items:     database,
		Pricing:   database,
		Locker:    locker,
		Notifier:  dispatcher,
		Events:    bus,
		Logger:    &logger,
	}, booking.Config{
		Window:               window,
		ClosingBufferMinutes: cfg.ClosingBufferMinutes(),
		MinutesPerItem:       cfg.MinutesPerItem(),
		Location:             loc,
	})

	watcher := &config.CatalogWatcher{
		Path:     cfg.Catalog.Path,
		Interval: cfg.CatalogWatchInterval(),
		OnUpdate: func(cat *config.CatalogConfig) {
			if err := database.SyncCatalog(ctx, cat); err != nil {
				logger.Error().Err(err).Msg("catalog sync failed")
				return
			}
			schedules.Invalidate(ctx, "")
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Str("path", cfg.Catalog.Path).Msg("catalog reload failed, keeping previous")
		},
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load catalog error")
	}

	if cfg.Backup.Enabled {
		dir := cfg.Backup.Path
		if dir == "" {
			dir = filepath.Join(filepath.Dir(cfg.Database.Path), "backups")
		}
		backups := db.NewBackupService(database, dir, cfg.BackupInterval(), cfg.Backup.RetentionDays, &logger)
		go backups.Start(ctx)
	}

	if cfg.Reminders.Enabled {
		go reminder.NewScheduler(svc, dispatcher, cfg.Reminders.Hour, loc, &logger).Start(ctx)
	}

	if cfg.Reports.Enabled {
		var sender audit.DocumentSender
		if bot != nil && cfg.Telegram.AdminChatID != 0 {
			sender = audit.NewTelegramDocuments(bot, cfg.Telegram.AdminChatID)
		}
		go audit.NewService(svc, cfg.Reports.Path, sender, &logger).Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.API.Enabled {
		httpSrv := api.NewHTTPServer(api.Config{
			Port:           cfg.API.Port,
			APIKey:         cfg.API.APIKey,
			AllowedOrigins: cfg.API.AllowedOrigins,
			Shop:           ticket.Shop{Name: cfg.Shop.Name, Address: cfg.Shop.Address, Phone: cfg.Shop.Phone},
		}, svc, &logger)
		go func() {
			if err := httpSrv.Start(); err != nil {
				logger.Error().Err(err).Msg("http api error")
				stop()
			}
		}()
		defer shutdown(httpSrv.Shutdown)
	}

	if cfg.GRPC.Enabled {
		grpcSrv := grpcapi.NewServer(svc, cfg.API.APIKey, &logger)
		go func() {
			if err := grpcSrv.ListenAndServe(cfg.GRPC.Port); err != nil {
				logger.Error().Err(err).Msg("grpc server error")
				stop()
			}
		}()
		defer grpcSrv.Stop()
	}

	logger.Info().Msg("giftwrap booking service started")
	<-ctx.Done()
	logger.Info().Msg("shutting down")
}

func notifyConfig(cfg *config.Config) notify.Config {
	nc := notify.DefaultConfig()
	if cfg.Notifications.Workers > 0 {
		nc.Workers = cfg.Notifications.Workers
	}
	if cfg.Notifications.QueueSize > 0 {
		nc.QueueSize = cfg.Notifications.QueueSize
	}
	if cfg.Notifications.RatePerSecond > 0 {
		nc.Rate = cfg.Notifications.RatePerSecond
	}
	if cfg.Notifications.Burst > 0 {
		nc.Burst = cfg.Notifications.Burst
	}
	return nc
}

func shutdown(fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = fn(ctx)
}
