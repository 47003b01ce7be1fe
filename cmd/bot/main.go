package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"ramadan_companion_bot/internal/app"
	"ramadan_companion_bot/internal/infra/aladhan"
	"ramadan_companion_bot/internal/infra/config"
	idb "ramadan_companion_bot/internal/infra/database"
	"ramadan_companion_bot/internal/infra/logger"
	"ramadan_companion_bot/internal/infra/scheduler"
	"ramadan_companion_bot/internal/infra/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")

	mainLogger.WithFields(logrus.Fields{
		"log_level":   cfg.LogLevel,
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
		"timezone":    cfg.Zone().String(),
		"location":    cfg.DefaultLocation().String(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.WithError(err).Fatal("Could not prepare database schema")
	}
	mainLogger.Info("Database connection established successfully")

	// Initialize Repositories
	subscriberRepo := idb.NewPostgresSubscriberRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)

	// Remote calendar and prayer times
	aladhanClient := aladhan.NewClient(cfg.AladhanBaseURL, cfg.CalculationMethod, cfg.HTTPTimeout, cfg.HTTPMaxRetries, logger.Component("aladhan"))
	// calendar days are counted in each location's own zone once it is known
	zones := app.NewZoneBook(cfg.Zone())
	dayService := app.NewDayService(aladhanClient, zones, logger.Component("day_service"))
	boundaryService := app.NewBoundaryService(aladhanClient, cfg.HTTPTimeout*time.Duration(cfg.HTTPMaxRetries+1), zones, logger.Component("boundary_service"))

	// Initialize Telegram Bot
	botLogger := logger.Component("telebot")
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithFields(logrus.Fields{
					"sender_id": c.Sender().ID,
					"chat_id":   c.Chat().ID,
					"text":      c.Text(),
				})
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}
	telegramClient := telegram.NewTelebotAdapter(bot)

	notifier := app.NewTelegramNotifier(telegramClient, logger.Component("notifier"))
	notificationService := app.NewNotificationServiceImpl(
		subscriberRepo,
		notificationRepo,
		boundaryService,
		notifier,
		zones,
		logger.Component("notification_service"),
	)
	settingsService := app.NewSettingsService(
		subscriberRepo,
		notificationService,
		cfg.DefaultLocation(),
		cfg.DefaultAnchor(),
		cfg.AdminTelegramID,
		logger.Component("settings_service"),
	)
	digestService := app.NewDigestService(subscriberRepo, dayService, telegramClient, logger.Component("digest_service"))

	// Register Handlers
	handler := telegram.NewCommandHandler(
		settingsService,
		dayService,
		notificationService,
		notificationRepo,
		cfg.AdminTelegramID,
		cfg.Zone(),
		logger.Component("telegram_handlers"),
	)
	handler.Register(ctx, bot)
	mainLogger.Info("Command handlers registered")

	// Arm today's boundaries before the first tick
	if err := notificationService.Refresh(ctx, time.Now().In(cfg.Zone()), false); err != nil {
		mainLogger.WithError(err).Error("Initial boundary refresh failed, the hourly refresh will retry")
	}

	notifScheduler := scheduler.NewNotificationScheduler(
		notificationService,
		digestService,
		scheduler.Specs{
			Tick:        cfg.CronSpecTick,
			Refresh:     cfg.CronSpecRefresh,
			Rollover:    cfg.CronSpecRollover,
			DailyDigest: cfg.CronSpecDailyDigest,
		},
		cfg.Zone(),
		logger.Component("scheduler"),
		dayService,
		boundaryService,
	)
	if err := notifScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start scheduler")
	}

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete, bot and scheduler are running")

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	notifScheduler.Stop()
	notificationService.Stop()
	bot.Stop()
	mainLogger.Info("Application shut down gracefully")
}
