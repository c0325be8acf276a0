package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/jakob/backend/internal/api"
	"github.com/jakob/backend/internal/config"
	"github.com/jakob/backend/internal/database"
	"github.com/jakob/backend/internal/handlers"
	"github.com/jakob/backend/internal/jobs"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/middleware"
	"github.com/jakob/backend/internal/queue"
	"github.com/jakob/backend/internal/routes"
	"github.com/jakob/backend/internal/services/account"
	"github.com/jakob/backend/internal/services/campaign"
	"github.com/jakob/backend/internal/services/donation"
	"github.com/jakob/backend/internal/services/notification"
	"github.com/jakob/backend/internal/services/wallet"
	"github.com/jakob/backend/internal/utils"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()

	log := logger.New(cfg.Log, cfg.Environment)
	defer func() { _ = log.Sync() }()

	if cfg.Webhook.PaymentSecret == "" {
		log.Warn("PAYMENT_WEBHOOK_SECRET is empty, payment callbacks will be rejected")
	}

	// Initialize database
	db, err := database.InitDB(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}

	// Initialize services
	notificationService := notification.NewNotificationService(db, log)
	aggregator := donation.NewAggregator(db, log)
	donationService := donation.NewDonationService(db, aggregator, notificationService, cfg.Donation, log)
	campaignService := campaign.NewCampaignService(db, log)
	accountService := account.NewAccountService(db, cfg.Donation, log)
	walletService := wallet.NewWalletService(db, cfg.Wallet, log)

	// Background settlement workers
	redisQueue := queue.NewRedisQueue(redisClient, log)
	jobProcessor := queue.NewJobProcessor(redisQueue, cfg.Worker.Count, log)
	jobs.NewSettlementJob(donationService, log).Register(jobProcessor)
	jobProcessor.Start(ctx)

	// Periodic maintenance
	maintenance := jobs.NewMaintenance(campaignService, donationService, aggregator, cfg.Donation.PendingTTL, log)
	scheduler, err := jobs.NewScheduler(maintenance, cfg.Worker.MaintenanceCron, log)
	if err != nil {
		log.Fatal("failed to schedule maintenance jobs", zap.Error(err))
	}
	scheduler.Start()

	// HTTP surface
	sessions := middleware.NewSessionAuth(
		utils.NewSessionSigner(cfg.JWT.Secret, time.Duration(cfg.JWT.Expiration)*time.Hour),
		cfg.JWT.CookieName,
		cfg.Security.SecureCookies,
	)
	rateLimiter := middleware.NewRateLimiter(
		cfg.Security.RateLimitRPS,
		cfg.Security.LoginAttemptsPerMinute,
		cfg.Security.RateLimitBurst,
		cfg.Security.LoginBurst,
	)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(api.DebugErrors(cfg.IsDevelopment()))
	router.Use(middleware.SecureHeadersMiddleware(middleware.DefaultSecureHeadersConfig(cfg.Environment == config.EnvProduction)))
	router.Use(middleware.CORSMiddleware(cfg.FrontendURL))
	router.Use(rateLimiter.IPRateLimiterMiddleware())

	routes.Setup(router, routes.Handlers{
		Account:      handlers.NewAccountHandler(accountService, sessions, log),
		Campaign:     handlers.NewCampaignHandler(campaignService),
		Donation:     handlers.NewDonationHandler(donationService),
		Wallet:       handlers.NewWalletHandler(walletService),
		Notification: handlers.NewNotificationHandler(notificationService),
		Webhook:      handlers.NewWebhookHandler(redisQueue, cfg.Webhook.PaymentSecret, log),
		Health:       handlers.NewHealthHandler(db, redisClient),
	}, sessions, rateLimiter)

	// Start server
	srv := startServer(router, cfg.Server, log)

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Create a deadline to wait for
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	scheduler.Stop()
	jobProcessor.Stop()
	rateLimiter.Stop()

	if err := redisClient.Close(); err != nil {
		log.Warn("error closing redis client", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("server exiting")
}

// startServer starts the HTTP server
func startServer(router *gin.Engine, cfg config.ServerConfig, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	log.Info("server started", zap.String("port", cfg.Port))
	return srv
}
