package main

// @title Policy Hub API
// @version 1.0.0
// @description Сервис жизненного цикла хабов мобильности.
// @description
// @description Основные возможности:
// @description - Рабочие пространства дашборда с выбором и рисованием зон
// @description - Переходы фаз: commit, revert, новый концепт, вывод из эксплуатации
// @description - Импорт пакетов геометрий с предварительным разбором

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey edit_token
// @in header
// @name Authorization

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/policyhub-service/docs/swagger"
	"github.com/policyhub-service/internal/config"
	httpDelivery "github.com/policyhub-service/internal/delivery/http"
	"github.com/policyhub-service/internal/delivery/http/handler"
	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/infrastructure/hubapi"
	"github.com/policyhub-service/internal/pkg/logger"
	"github.com/policyhub-service/internal/repository/cache"
	"github.com/policyhub-service/internal/repository/postgres"
	redisRepo "github.com/policyhub-service/internal/repository/redis"
	"github.com/policyhub-service/internal/usecase"
	"github.com/policyhub-service/internal/worker"
	"github.com/policyhub-service/internal/worker/invalidation"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.Log.Level, "policyhub-api")
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting Policy Hub API")
	log.Info("Configuration loaded",
		zap.String("env", cfg.Server.Env),
		zap.String("server_addr", cfg.GetServerAddr()),
		zap.String("hub_backend", cfg.HubAPI.Backend),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	defaultPhase, err := domain.ParsePhase(cfg.Workspace.DefaultActivePhase)
	if err != nil {
		log.Fatal("Invalid WORKSPACE_ACTIVE_PHASE", zap.Error(err))
	}

	// 3. Connect to Redis (кеш и стрим изменений)
	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Failed to close Redis connection", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Health(ctx); err != nil {
		log.Fatal("Redis health check failed", zap.Error(err))
	}
	log.Info("Redis connected")

	cacheRepo := cache.NewCacheRepository(redisClient)
	streamRepo := redisRepo.NewStreamRepository(redisClient.Client(), log)

	// 4. Hub repository: PostGIS или удалённый сервис
	var (
		hubRepo    repository.HubRepository
		borderRepo repository.BorderRepository
		db         *postgres.DB
	)

	switch cfg.HubAPI.Backend {
	case config.HubBackendRemote:
		hubRepo = hubapi.NewClient(&cfg.HubAPI, log)
		log.Info("Using remote hub repository", zap.String("base_url", cfg.HubAPI.BaseURL))

	default:
		if cfg.Server.RunMigrations {
			if err := postgres.Migrate(&cfg.Database, log); err != nil {
				log.Fatal("Failed to run migrations", zap.Error(err))
			}
		}

		db, err = postgres.New(&cfg.Database, log)
		if err != nil {
			log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		if err := db.Health(ctx); err != nil {
			log.Fatal("PostgreSQL health check failed", zap.Error(err))
		}
		log.Info("PostgreSQL connected")

		borderRepo = postgres.NewBorderRepository(db)
		hubRepo = usecase.NewHubService(postgres.NewHubStore(db), borderRepo, streamRepo, log)
	}

	if cfg.Cache.Enabled {
		hubRepo = cache.NewCachedHubRepository(hubRepo, cacheRepo, cfg.Cache.HubsTTL, log)
	}

	log.Info("Repositories initialized")

	// 5. Initialize Use Cases
	transitionUC := usecase.NewTransitionUseCase(hubRepo, log)
	importUC := usecase.NewImportUseCase(hubRepo, log)
	registry := usecase.NewWorkspaceRegistry(hubRepo, transitionUC, importUC, log)

	log.Info("Use cases initialized")

	// 6. Initialize HTTP Handlers
	workspaceHandler := handler.NewWorkspaceHandler(registry, defaultPhase, log)
	hubHandler := handler.NewHubHandler(hubRepo, borderRepo, log)

	// 7. Initialize HTTP Server
	server := httpDelivery.NewServer(cfg, log, workspaceHandler, hubHandler)

	// 8. Инвалидация справочников по событиям других экземпляров
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var workerManager *worker.WorkerManager
	if cfg.Worker.Enabled {
		workerManager = worker.NewWorkerManager(log, 10*time.Second)
		workerManager.Register(invalidation.NewHubInvalidationWorker(
			streamRepo,
			cacheRepo,
			registry,
			invalidation.Options{
				// своя группа: каждый экземпляр API должен увидеть каждое событие
				ConsumerGroup: cfg.Worker.ConsumerGroup + "-api",
				ConsumerName:  cfg.Worker.ConsumerName,
				BatchSize:     cfg.Worker.BatchSize,
				MaxRetries:    cfg.Worker.MaxRetries,
				IdlePause:     cfg.Worker.StreamReadTimeout,
			},
			log,
		))
		if err := workerManager.Start(workerCtx); err != nil {
			log.Fatal("Failed to start workers", zap.Error(err))
		}
	}

	// 9. Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started successfully",
		zap.String("address", cfg.GetServerAddr()),
		zap.String("env", cfg.Server.Env),
	)

	// 10. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}

	if workerManager != nil {
		stopWorkers()
		if err := workerManager.Stop(); err != nil {
			log.Error("Error stopping workers", zap.Error(err))
		}
	}

	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}

	log.Info("Server stopped successfully")
}
