package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/config"
	"github.com/talentbridge/marketplace-api/internal/database"
	"github.com/talentbridge/marketplace-api/internal/handler"
	"github.com/talentbridge/marketplace-api/internal/logging"
	"github.com/talentbridge/marketplace-api/internal/mailer"
	"github.com/talentbridge/marketplace-api/internal/middleware"
	"github.com/talentbridge/marketplace-api/internal/queue"
	"github.com/talentbridge/marketplace-api/internal/repository"
	"github.com/talentbridge/marketplace-api/internal/router"
	"github.com/talentbridge/marketplace-api/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	publisher := queue.NewPublisher(cfg.RabbitURL, logger)
	sender, err := mailer.New(cfg.Mail, publisher, logger)
	if err != nil {
		logger.Fatal("mail transport", zap.Error(err))
	}
	if cfg.Mail.Transport == "queue" {
		smtpSender, err := mailer.NewSMTPSender(cfg.Mail)
		if err != nil {
			logger.Fatal("smtp transport", zap.Error(err))
		}
		go func() {
			err := queue.StartEmailConsumer(ctx, cfg.RabbitURL, func(ctx context.Context, m queue.EmailMessage) error {
				return smtpSender.Send(ctx, mailer.Message{To: m.To, Subject: m.Subject, HTML: m.HTML})
			}, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("email consumer stopped", zap.Error(err))
			}
		}()
	}

	accounts := repository.NewAccountRepo(db)
	tokens := repository.NewValidationTokenRepo(db)
	refresh := repository.NewRefreshTokenRepo(db)
	wallets := repository.NewWalletRepo(db)
	transactions := repository.NewTransactionRepo(db)

	creds := service.NewCredentialService(db, tokens, cfg.TokenSecret, logger)
	authSvc := service.NewAuthService(db, accounts, wallets, refresh, creds, sender, service.AuthConfig{
		JWTSecret:      cfg.JWTSecret,
		AccessTTLMin:   cfg.AccessTTLMin,
		RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost:     cfg.BcryptCost,
		BaseURL:        cfg.BaseURL,
	}, logger)
	walletSvc := service.NewWalletService(db, wallets, transactions, publisher, cfg.WithdrawalFee, logger)
	ledgerSvc := service.NewLedgerService(db, transactions, wallets, logger)

	allowList, err := middleware.IPAllowList(cfg.Webhook.AllowedIPs, logger)
	if err != nil {
		logger.Fatal("webhook allow list", zap.Error(err))
	}
	if len(cfg.Webhook.AllowedIPs) == 0 {
		logger.Warn("PAYMENT_WEBHOOK_ALLOWED_IPS is empty, every webhook will be rejected")
	}

	extractIP, err := middleware.ClientIPExtractor(cfg.Webhook.TrustedProxies)
	if err != nil {
		logger.Fatal("trusted proxies", zap.Error(err))
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// X-Forwarded-For counts only when sent by a TRUSTED_PROXIES hop
	e.IPExtractor = extractIP
	e.Use(echomw.Recover(), middleware.RequestID(), middleware.RequestLogger(logger))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, logger), cfg.JWTSecret,
		middleware.NewRateLimiter(config.LoadRateLimitConfig(), rdb, logger))
	router.RegisterWallet(e, handler.NewWalletHandler(walletSvc, logger), cfg.JWTSecret)
	router.RegisterWebhooks(e, handler.NewWebhookHandler(ledgerSvc, logger),
		allowList, middleware.WebhookSignature(cfg.Webhook.Secret))
	router.RegisterAdmin(e, handler.NewAdminHandler(authSvc, logger), cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.String("mail_transport", cfg.Mail.Transport))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
