package main

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/otpbay/otpbay/internal/config"
	"github.com/otpbay/otpbay/internal/handlers"
	"github.com/otpbay/otpbay/internal/repository"
	"github.com/otpbay/otpbay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// MongoDB
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())

	db := mongoClient.Database(cfg.DatabaseName)

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Warnf("Redis unavailable, catalog cache disabled: %v", err)
	}

	// RabbitMQ
	var events service.EventPublisher = service.NopPublisher{}
	rabbitConn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Warnf("RabbitMQ unavailable, events disabled: %v", err)
	} else {
		defer rabbitConn.Close()
		rabbitChannel, err := rabbitConn.Channel()
		if err != nil {
			logger.Fatalf("Failed to open RabbitMQ channel: %v", err)
		}
		defer rabbitChannel.Close()

		events, err = service.NewEventPublisher(rabbitChannel, logger)
		if err != nil {
			logger.Fatalf("Failed to set up event publisher: %v", err)
		}
	}

	// Repositories
	accountRepo := repository.NewAccountRepository(db, logger)
	numberRepo := repository.NewNumberRepository(db, cfg.EncryptionKey, logger)

	if err := accountRepo.CreateIndexes(ctx); err != nil {
		logger.Warnf("Failed to create account indexes: %v", err)
	}
	if err := numberRepo.CreateIndexes(ctx); err != nil {
		logger.Warnf("Failed to create number indexes: %v", err)
	}

	// Services
	metrics := service.NewMetricsCollector()
	cache := service.NewCacheService(redisClient, logger)
	ledger := service.NewLedgerService(accountRepo, metrics, events, logger)
	inventory := service.NewInventoryService(numberRepo, cache, logger)
	provider := service.NewProviderClient(cfg.Provider.APIKey, cfg.Provider.BaseURL, cfg.Provider.Timeout, logger)
	referral := service.NewReferralService(ledger, logger)

	purchase := service.NewPurchaseService(ledger, inventory, provider, metrics, events, service.PurchaseConfig{
		PollInterval: cfg.OTP.PollInterval,
		MaxAttempts:  cfg.OTP.MaxAttempts,
	}, logger)

	var messageHandlers *handlers.MessageHandlers

	botSvc, err := service.NewBotService(cfg.BotToken, cfg.AdminTelegramID, bot.WithDefaultHandler(
		func(ctx context.Context, b *bot.Bot, update *botmodels.Update) {
			if messageHandlers != nil {
				messageHandlers.HandleMessage(ctx, b, update)
			}
		},
	))
	if err != nil {
		logger.Fatalf("Failed to create bot: %v", err)
	}

	deposit := service.NewDepositService(ledger, botSvc, events, strconv.FormatInt(cfg.AdminTelegramID, 10), cfg.MinDeposit, logger)

	// Handlers
	commandHandlers := handlers.NewCommandHandlers(ledger, inventory, referral, provider, cache, botSvc, cfg.AdminTelegramID, logger)
	callbackHandlers := handlers.NewCallbackHandlers(
		ledger, inventory, purchase, deposit, referral, botSvc,
		cfg.BotUsername, cfg.MinDeposit, cfg.AdminTelegramID, logger,
	)
	messageHandlers = handlers.NewMessageHandlers(deposit, botSvc, cfg.PaymentHandle, cfg.MinDeposit, logger)

	b := botSvc.GetBot()
	b.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, commandHandlers.HandleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/grant", bot.MatchTypePrefix, commandHandlers.HandleGrant)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/addnumber", bot.MatchTypePrefix, commandHandlers.HandleAddNumber)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/delnumber", bot.MatchTypePrefix, commandHandlers.HandleDelNumber)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/stock", bot.MatchTypePrefix, commandHandlers.HandleStock)
	b.RegisterHandler(bot.HandlerTypeMessageText, "/balance", bot.MatchTypePrefix, commandHandlers.HandleBalance)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, callbackHandlers.HandleCallback)

	// Health + metrics HTTP server
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		logger.Infof("Starting HTTP server on port %s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	logger.Info("Starting bot")
	go botSvc.Start(ctx)

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server forced to shutdown: %v", err)
	}

	logger.Info("Bye")
}
