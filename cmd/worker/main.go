package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/policyhub-service/internal/config"
	"github.com/policyhub-service/internal/pkg/logger"
	"github.com/policyhub-service/internal/repository/cache"
	redisRepo "github.com/policyhub-service/internal/repository/redis"
	"github.com/policyhub-service/internal/worker"
	"github.com/policyhub-service/internal/worker/invalidation"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Check if worker is enabled
	if !cfg.Worker.Enabled {
		fmt.Println("Worker is disabled in configuration. Set WORKER_ENABLED=true to enable.")
		os.Exit(0)
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level, "policyhub-worker")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Hub Invalidation Worker")
	log.Info("Configuration loaded",
		zap.String("consumer_group", cfg.Worker.ConsumerGroup),
		zap.String("consumer_name", cfg.Worker.ConsumerName),
		zap.Int("batch_size", cfg.Worker.BatchSize),
		zap.Int("max_retries", cfg.Worker.MaxRetries))

	// 3. Connect to Redis
	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	// 4. Initialize repositories
	streamRepo := redisRepo.NewStreamRepository(redisClient.Client(), log)
	cacheRepo := cache.NewCacheRepository(redisClient)

	// 5. Initialize workers
	hubWorker := invalidation.NewHubInvalidationWorker(
		streamRepo,
		cacheRepo,
		nil,
		invalidation.Options{
			ConsumerGroup: cfg.Worker.ConsumerGroup,
			ConsumerName:  cfg.Worker.ConsumerName,
			BatchSize:     cfg.Worker.BatchSize,
			MaxRetries:    cfg.Worker.MaxRetries,
			IdlePause:     cfg.Worker.StreamReadTimeout,
		},
		log,
	)

	// 6. Create worker manager and register workers
	workerManager := worker.NewWorkerManager(log, 0)
	workerManager.Register(hubWorker)

	// 7. Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := workerManager.Start(ctx); err != nil {
		log.Fatal("Failed to start workers", zap.Error(err))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("Received shutdown signal")

	cancel()

	if err := workerManager.Stop(); err != nil {
		log.Error("Error stopping workers", zap.Error(err))
	}

	log.Info("Worker shutdown complete")
}
