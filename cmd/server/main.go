package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/config"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/database/seed"
	deliveryhttp "github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/delivery/http"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/game"
	postgresrepo "github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/repository/postgres"
	redisrepo "github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/repository/redis"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/service"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/database"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/logger"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/server"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting AR ARENA service", zap.String("version", version))

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	resilienceCfg := config.DefaultResilienceConfig()

	gs := server.NewGracefulShutdown(log, 30*time.Second)

	// PostgreSQL
	db, err := database.NewPostgresDB(cfg.Postgres)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	gs.AddShutdownFunc(func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	// Redis
	redisClient, err := database.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	gs.AddShutdownFunc(func(ctx context.Context) error {
		return redisClient.Close()
	})

	// Демо-данные для локальной разработки
	if os.Getenv("DEV_SEED") == "true" {
		if err := seed.Dev(db, log); err != nil {
			log.Error("Failed to seed development data", zap.Error(err))
		}
	}

	healthChecker := database.NewHealthChecker(db, redisClient, log,
		resilienceCfg.FailureThreshold, resilienceCfg.ResetTimeout)

	// Репозитории с circuit breaker и метриками
	userRepo := postgresrepo.NewResilientUserRepository(
		postgresrepo.NewUserRepository(db), healthChecker, log)
	gameRepo := postgresrepo.NewResilientGameRepository(
		postgresrepo.NewGameRepository(db), healthChecker, log)
	cacheRepo := redisrepo.NewResilientCacheRepository(
		redisrepo.NewCacheRepository(redisClient), healthChecker)

	// Сервисы
	authService := service.NewAuthService(userRepo, cacheRepo, cfg.Game, log)
	gameService := service.NewGameService(gameRepo, cacheRepo, cfg.Game, log)

	// Накопитель тапов стрим-игры
	accumulator := game.NewTapAccumulator(gameService, cfg.Game.TapFlushDebounce, log)
	gs.AddShutdownFunc(func(ctx context.Context) error {
		return accumulator.Close(ctx)
	})

	// Фоновая регенерация энергии
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	poller := game.NewEnergyPoller(gameService, cfg.Game.EnergyPollInterval, cfg.Game.SessionIdleTTL, log)
	gs.AddShutdownFunc(func(ctx context.Context) error {
		pollerCancel()
		return nil
	})

	// Трансляция событий стрим-игры и энергии клиентам
	eventHub := deliveryhttp.NewEventHub(cacheRepo, log)
	go eventHub.Run(pollerCtx)
	poller.OnUpdate(eventHub.EnergyUpdate)
	go poller.Run(pollerCtx)

	// Сервер метрик Prometheus
	metricsPort := strconv.Itoa(cfg.HTTP.Port + 200)
	metricsServer := server.MetricsServer(metricsPort)
	log.Info("Metrics server started", zap.String("port", metricsPort))
	gs.AddShutdownFunc(func(ctx context.Context) error {
		return metricsServer.Shutdown(ctx)
	})

	// Сервер проверки здоровья
	healthCheck := server.NewHealthCheck(healthChecker, log, version)
	healthCheck.StartServer(cfg.HTTP.Port + 100)
	gs.AddShutdownFunc(func(ctx context.Context) error {
		return healthCheck.Stop(ctx)
	})

	// HTTP API
	handler := deliveryhttp.NewHandler(authService, gameService, accumulator, log).
		WithSessionWatcher(poller).
		WithEventHub(eventHub)
	httpServer := deliveryhttp.NewServer(handler, cfg.HTTP.Port, log)
	gs.AddShutdownFunc(func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})

	go func() {
		if err := httpServer.Run(); err != nil {
			log.Error("HTTP server failed", zap.Error(err))
			gs.Shutdown()
		}
	}()

	gs.Wait()
	log.Info("Service stopped")
}
