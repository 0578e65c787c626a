package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	// Каналы для уведомлений в реальном времени
	ChannelTaps     = "stream:taps"
	ChannelSettings = "stream:settings"

	// Ключ флага доступности стрим-игры
	keyTapGameEnabled = "stream:tap_game_enabled"

	keyProfilePrefix      = "user:profile:"
	keyGameStatePrefix    = "user:game_state:"
	keyTapLeaderboard     = "stream:leaderboard"
	defaultProfileTTL     = 5 * time.Minute
	defaultGameStateTTL   = 30 * time.Second
	defaultLeaderboardTTL = 3 * time.Second
)

// CacheRepository представляет репозиторий кэширования на основе Redis
type CacheRepository struct {
	client *redis.Client
}

// NewCacheRepository создает новый экземпляр CacheRepository
func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{
		client: client,
	}
}

// GetProfile получает профиль пользователя из кэша
func (r *CacheRepository) GetProfile(ctx context.Context, telegramID int64) (*models.User, error) {
	data, err := r.client.Get(ctx, keyProfilePrefix+fmt.Sprint(telegramID)).Bytes()
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetProfile сохраняет профиль пользователя в кэш
func (r *CacheRepository) SetProfile(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyProfilePrefix+fmt.Sprint(user.TelegramID), data, defaultProfileTTL).Err()
}

// InvalidateProfile удаляет профиль пользователя из кэша
func (r *CacheRepository) InvalidateProfile(ctx context.Context, telegramID int64) error {
	return r.client.Del(ctx, keyProfilePrefix+fmt.Sprint(telegramID)).Err()
}

// GetGameState получает игровое состояние из кэша
func (r *CacheRepository) GetGameState(ctx context.Context, userID uint) (*models.GameState, error) {
	data, err := r.client.Get(ctx, keyGameStatePrefix+fmt.Sprint(userID)).Bytes()
	if err != nil {
		return nil, err
	}

	var state models.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetGameState сохраняет игровое состояние в кэш.
// TTL короткий: энергия пересчитывается сервером каждые несколько секунд.
func (r *CacheRepository) SetGameState(ctx context.Context, state *models.GameState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyGameStatePrefix+fmt.Sprint(state.UserID), data, defaultGameStateTTL).Err()
}

// InvalidateGameState удаляет игровое состояние из кэша
func (r *CacheRepository) InvalidateGameState(ctx context.Context, userID uint) error {
	return r.client.Del(ctx, keyGameStatePrefix+fmt.Sprint(userID)).Err()
}

// GetLeaderboard получает закэшированный топ стрим-игры
func (r *CacheRepository) GetLeaderboard(ctx context.Context) ([]models.TapScore, error) {
	data, err := r.client.Get(ctx, keyTapLeaderboard).Bytes()
	if err != nil {
		return nil, err
	}

	var scores []models.TapScore
	if err := json.Unmarshal(data, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// SetLeaderboard сохраняет топ стрим-игры в кэш
func (r *CacheRepository) SetLeaderboard(ctx context.Context, scores []models.TapScore) error {
	data, err := json.Marshal(scores)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, keyTapLeaderboard, data, defaultLeaderboardTTL).Err()
}

// TapGameEnabled возвращает флаг доступности стрим-игры.
// Отсутствие ключа трактуется как "включена".
func (r *CacheRepository) TapGameEnabled(ctx context.Context) (bool, error) {
	val, err := r.client.Get(ctx, keyTapGameEnabled).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return val != "0" && val != "false", nil
}

// SetTapGameEnabled устанавливает флаг доступности стрим-игры
func (r *CacheRepository) SetTapGameEnabled(ctx context.Context, enabled bool) error {
	val := "1"
	if !enabled {
		val = "0"
	}
	return r.client.Set(ctx, keyTapGameEnabled, val, 0).Err()
}

// TapEvent представляет уведомление об изменении счетчика тапов
type TapEvent struct {
	UserName  string `json:"user_name"`
	TapsCount int64  `json:"taps_count"`
}

// SettingsEvent представляет уведомление об изменении настроек стрим-игры
type SettingsEvent struct {
	TapGameEnabled bool `json:"tap_game_enabled"`
}

// PublishTapEvent публикует изменение счетчика тапов подписчикам
func (r *CacheRepository) PublishTapEvent(ctx context.Context, event TapEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ChannelTaps, data).Err()
}

// PublishSettingsEvent публикует изменение настроек стрим-игры подписчикам
func (r *CacheRepository) PublishSettingsEvent(ctx context.Context, event SettingsEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, ChannelSettings, data).Err()
}

// SubscribeTaps подписывается на события счетчиков тапов
func (r *CacheRepository) SubscribeTaps(ctx context.Context) *redis.PubSub {
	return r.client.Subscribe(ctx, ChannelTaps)
}

// SubscribeSettings подписывается на события настроек стрим-игры
func (r *CacheRepository) SubscribeSettings(ctx context.Context) *redis.PubSub {
	return r.client.Subscribe(ctx, ChannelSettings)
}
