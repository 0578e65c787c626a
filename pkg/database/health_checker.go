package database

import (
	"context"
	"errors"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/apperrors"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/resilience"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// HealthChecker предоставляет функции для проверки состояния баз данных
// и выполнения операций через circuit breaker
type HealthChecker struct {
	db           *gorm.DB
	redisClient  *redis.Client
	logger       *zap.Logger
	pgCircuit    *resilience.CircuitBreaker
	redisCircuit *resilience.CircuitBreaker
}

// NewHealthChecker создает новый экземпляр проверки состояния баз данных
func NewHealthChecker(db *gorm.DB, redisClient *redis.Client, logger *zap.Logger, failureThreshold int, resetTimeout time.Duration) *HealthChecker {
	return &HealthChecker{
		db:           db,
		redisClient:  redisClient,
		logger:       logger,
		pgCircuit:    resilience.NewCircuitBreaker(failureThreshold, resetTimeout, logger, apperrors.IgnoredErrors...),
		redisCircuit: resilience.NewCircuitBreaker(failureThreshold, resetTimeout, logger, apperrors.IgnoredErrors...),
	}
}

// IsDatabaseHealthy проверяет здоровье PostgreSQL
func (c *HealthChecker) IsDatabaseHealthy(ctx context.Context) bool {
	var result int
	err := c.pgCircuit.Execute(ctx, "postgres_health_check", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		sqlDB, err := c.db.DB()
		if err != nil {
			return err
		}

		return sqlDB.QueryRowContext(ctx, "SELECT 1").Scan(&result)
	})

	return err == nil && result == 1
}

// IsRedisHealthy проверяет здоровье Redis
func (c *HealthChecker) IsRedisHealthy(ctx context.Context) bool {
	err := c.redisCircuit.Execute(ctx, "redis_health_check", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		_, err := c.redisClient.Ping(ctx).Result()
		return err
	})

	return err == nil
}

// WithDatabaseResilience выполняет операцию в базе данных через circuit breaker.
// Ошибки "запись не найдена" не открывают circuit breaker, но возвращаются
// вызывающему для обработки на уровне бизнес-логики.
func (c *HealthChecker) WithDatabaseResilience(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	err := c.pgCircuit.Execute(ctx, operation, fn)

	if errors.Is(err, redis.Nil) || errors.Is(err, gorm.ErrRecordNotFound) {
		c.logger.Debug("Запись не найдена, это не ошибка для circuit breaker",
			zap.String("operation", operation),
			zap.Error(err))
		return err
	}

	return err
}

// WithRedisResilience выполняет операцию в Redis через circuit breaker
func (c *HealthChecker) WithRedisResilience(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	err := c.redisCircuit.Execute(ctx, operation, fn)

	if errors.Is(err, redis.Nil) {
		c.logger.Debug("Ключ не найден в Redis, это не ошибка для circuit breaker",
			zap.String("operation", operation))
		return err
	}

	return err
}
