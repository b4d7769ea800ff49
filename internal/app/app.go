package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	emailadapter "github.com/mototrade/trade-service/internal/adapter/email"
	mongoadapter "github.com/mototrade/trade-service/internal/adapter/mongo"
	natsadapter "github.com/mototrade/trade-service/internal/adapter/nats"
	redisadapter "github.com/mototrade/trade-service/internal/adapter/redis"
	s3storage "github.com/mototrade/trade-service/internal/adapter/storage/s3"
	"github.com/mototrade/trade-service/internal/app/config"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/platform/tracer"
	httpport "github.com/mototrade/trade-service/internal/port/http"
	"github.com/mototrade/trade-service/internal/service"
)

// Run wires the service together and blocks until shutdown.
func Run(cfg *config.Config, log logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infof("Starting trade service (env: %s)", cfg.Env)

	if cfg.Tracing.Enabled {
		tp, err := tracer.Init(ctx, cfg.Tracing.Endpoint)
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if errShutdown := tp.Shutdown(shutdownCtx); errShutdown != nil {
				log.Warnf("Failed to shut down tracer: %v", errShutdown)
			}
		}()
	}

	mongoClient, err := mongoadapter.NewClient(ctx, cfg.MongoDB)
	if err != nil {
		return fmt.Errorf("failed to connect to mongo: %w", err)
	}
	defer func() {
		if errDisconnect := mongoClient.Disconnect(context.Background()); errDisconnect != nil {
			log.Warnf("Failed to disconnect mongo client: %v", errDisconnect)
		}
	}()

	redisClient, err := redisadapter.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	natsConn, err := natsadapter.NewConnection(cfg.NATS)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer natsConn.Drain()

	feedPublisher, err := natsadapter.NewPublisher(natsConn)
	if err != nil {
		return fmt.Errorf("failed to create nats publisher: %w", err)
	}
	feedSubscriber, err := natsadapter.NewSubscriber(natsConn)
	if err != nil {
		return fmt.Errorf("failed to create nats subscriber: %w", err)
	}

	mediaStorage, err := s3storage.NewMediaStorage(cfg.Minio, log)
	if err != nil {
		return fmt.Errorf("failed to initialize media storage: %w", err)
	}

	emailSender, err := emailadapter.NewSMTPSender(cfg.SMTP, log)
	if err != nil {
		return fmt.Errorf("failed to initialize email sender: %w", err)
	}

	tradeRepo := mongoadapter.NewTradeRepository(mongoClient, cfg.MongoDB, feedPublisher, log)
	listingRepo := mongoadapter.NewListingRepository(mongoClient, cfg.MongoDB)
	accountRepo := mongoadapter.NewAccountRepository(mongoClient, cfg.MongoDB)
	summaryCache := redisadapter.NewPartySummaryCacheRepository(redisClient)
	repairQueue := redisadapter.NewRepairQueueRepository(redisClient)

	receipts := service.NewReceiptService(listingRepo, accountRepo, emailSender, log)
	lifecycle := service.NewTradeLifecycle(tradeRepo, listingRepo, accountRepo, repairQueue, receipts, log)
	listings := service.NewListingService(listingRepo, tradeRepo, mediaStorage, log)
	listingQuery := service.NewListingQueryEngine(listingRepo, log)
	tradeQuery := service.NewTradeQueryEngine(tradeRepo, listingRepo, accountRepo, summaryCache, cfg.Cache.PartySummaryTTL, log)

	notifier := service.NewChangeNotifier(feedSubscriber, log)
	if err := notifier.Start(); err != nil {
		return fmt.Errorf("failed to start change notifier: %w", err)
	}
	defer func() {
		if errClose := notifier.Close(); errClose != nil {
			log.Warnf("Failed to close change notifier: %v", errClose)
		}
	}()

	repairWorker := service.NewRepairWorker(repairQueue, accountRepo, cfg.Repair.Interval, log)
	go repairWorker.Run(ctx)

	handler := httpport.NewHandler(lifecycle, listings, listingQuery, tradeQuery, notifier, log)
	server := httpport.NewServer(cfg.HTTPServer, cfg.JWT.Secret, handler, log)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-quit:
		log.Infof("Received signal %s, shutting down", sig)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPServer.TimeoutGraceful)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	log.Info("Trade service stopped")
	return nil
}
