package redis

import (
	"context"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/database"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/server"
	"github.com/redis/go-redis/v9"
)

// ResilientCacheRepository оборачивает CacheRepository в circuit breaker
// и метрики. Промах кэша не считается отказом Redis.
type ResilientCacheRepository struct {
	repo   *CacheRepository
	health *database.HealthChecker
}

// NewResilientCacheRepository создает новый экземпляр ResilientCacheRepository
func NewResilientCacheRepository(repo *CacheRepository, health *database.HealthChecker) *ResilientCacheRepository {
	return &ResilientCacheRepository{
		repo:   repo,
		health: health,
	}
}

// execute выполняет операцию с кэшем через circuit breaker с метриками
func (r *ResilientCacheRepository) execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := r.health.WithRedisResilience(ctx, operation, fn)
	server.RecordCacheOperation(operation, time.Since(start), err)
	return err
}

func (r *ResilientCacheRepository) GetProfile(ctx context.Context, telegramID int64) (*models.User, error) {
	var user *models.User
	err := r.execute(ctx, "profile_get", func(ctx context.Context) error {
		var opErr error
		user, opErr = r.repo.GetProfile(ctx, telegramID)
		return opErr
	})
	return user, err
}

func (r *ResilientCacheRepository) SetProfile(ctx context.Context, user *models.User) error {
	return r.execute(ctx, "profile_set", func(ctx context.Context) error {
		return r.repo.SetProfile(ctx, user)
	})
}

func (r *ResilientCacheRepository) InvalidateProfile(ctx context.Context, telegramID int64) error {
	return r.execute(ctx, "profile_invalidate", func(ctx context.Context) error {
		return r.repo.InvalidateProfile(ctx, telegramID)
	})
}

func (r *ResilientCacheRepository) GetGameState(ctx context.Context, userID uint) (*models.GameState, error) {
	var state *models.GameState
	err := r.execute(ctx, "game_state_get", func(ctx context.Context) error {
		var opErr error
		state, opErr = r.repo.GetGameState(ctx, userID)
		return opErr
	})
	return state, err
}

func (r *ResilientCacheRepository) SetGameState(ctx context.Context, state *models.GameState) error {
	return r.execute(ctx, "game_state_set", func(ctx context.Context) error {
		return r.repo.SetGameState(ctx, state)
	})
}

func (r *ResilientCacheRepository) InvalidateGameState(ctx context.Context, userID uint) error {
	return r.execute(ctx, "game_state_invalidate", func(ctx context.Context) error {
		return r.repo.InvalidateGameState(ctx, userID)
	})
}

func (r *ResilientCacheRepository) GetLeaderboard(ctx context.Context) ([]models.TapScore, error) {
	var scores []models.TapScore
	err := r.execute(ctx, "leaderboard_get", func(ctx context.Context) error {
		var opErr error
		scores, opErr = r.repo.GetLeaderboard(ctx)
		return opErr
	})
	return scores, err
}

func (r *ResilientCacheRepository) SetLeaderboard(ctx context.Context, scores []models.TapScore) error {
	return r.execute(ctx, "leaderboard_set", func(ctx context.Context) error {
		return r.repo.SetLeaderboard(ctx, scores)
	})
}

func (r *ResilientCacheRepository) TapGameEnabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := r.execute(ctx, "tap_game_flag_get", func(ctx context.Context) error {
		var opErr error
		enabled, opErr = r.repo.TapGameEnabled(ctx)
		return opErr
	})
	return enabled, err
}

func (r *ResilientCacheRepository) SetTapGameEnabled(ctx context.Context, enabled bool) error {
	return r.execute(ctx, "tap_game_flag_set", func(ctx context.Context) error {
		return r.repo.SetTapGameEnabled(ctx, enabled)
	})
}

func (r *ResilientCacheRepository) PublishTapEvent(ctx context.Context, event TapEvent) error {
	return r.execute(ctx, "tap_event_publish", func(ctx context.Context) error {
		return r.repo.PublishTapEvent(ctx, event)
	})
}

func (r *ResilientCacheRepository) PublishSettingsEvent(ctx context.Context, event SettingsEvent) error {
	return r.execute(ctx, "settings_event_publish", func(ctx context.Context) error {
		return r.repo.PublishSettingsEvent(ctx, event)
	})
}

// Подписки идут мимо circuit breaker: это долгоживущие каналы,
// переподключением управляет сам go-redis.

func (r *ResilientCacheRepository) SubscribeTaps(ctx context.Context) *redis.PubSub {
	return r.repo.SubscribeTaps(ctx)
}

func (r *ResilientCacheRepository) SubscribeSettings(ctx context.Context) *redis.PubSub {
	return r.repo.SubscribeSettings(ctx)
}
