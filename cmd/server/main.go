package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/projectinsight/insight/internal/api"
	"github.com/projectinsight/insight/internal/config"
	"github.com/projectinsight/insight/internal/mailer"
	"github.com/projectinsight/insight/internal/pkg/distlock"
	"github.com/projectinsight/insight/internal/pkg/logger"
	"github.com/projectinsight/insight/internal/repository/postgres"
	"github.com/projectinsight/insight/internal/service/campaign"
	"github.com/projectinsight/insight/internal/service/invitation"
	"github.com/projectinsight/insight/internal/service/tracking"
	"github.com/projectinsight/insight/internal/service/webhook"
)

func main() {
	cfg, err := config.LoadFromEnv(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := postgres.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	logger.Info("database connected")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable, campaign locks fall back to advisory locks", "error", err)
			redisClient = nil
		}
		cancel()
	}

	m, err := buildMailer(cfg)
	if err != nil {
		log.Fatalf("configure mailer: %v", err)
	}

	locks := func(key string, ttl time.Duration) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, ttl)
	}

	invitationSvc := invitation.NewService(postgres.NewInvitationRepo(db), m, cfg.App.BaseURL)
	campaignSvc := campaign.NewService(postgres.NewCampaignRepo(db), m, cfg.App.BaseURL, locks)
	trackingSvc := tracking.NewService(postgres.NewTrackingRepo(db), cfg.App.BaseURL)
	webhookSvc := webhook.NewService(postgres.NewWebhookRepo(db), cfg.Webhook.Timeout())

	handlers := api.NewHandlers(invitationSvc, campaignSvc, trackingSvc, webhookSvc)
	server := api.NewServer(cfg.Server, handlers)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server: %v", err)
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
}

func buildMailer(cfg *config.Config) (mailer.Mailer, error) {
	switch cfg.Mailer.Provider {
	case "ses":
		return mailer.NewSESMailer(context.Background(), cfg.Mailer.SES)
	case "http":
		return mailer.NewHTTPMailer(cfg.Mailer.HTTP), nil
	case "mock":
		return &mailer.Mock{}, nil
	default:
		return nil, fmt.Errorf("unknown mailer provider %q", cfg.Mailer.Provider)
	}
}
