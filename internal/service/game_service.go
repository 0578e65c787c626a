package service

import (
	"context"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/config"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	redisrepo "github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/repository/redis"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/server"
	"go.uber.org/zap"
)

// GameRepositoryInterface определяет контракт хранилища игрового состояния
type GameRepositoryInterface interface {
	GetOrCreateState(userID uint, energyMax int, now time.Time) (*models.GameState, error)
	RegenerateEnergy(userID uint, ratePerSec float64, now time.Time) (*models.GameState, int, error)
	ProcessTaps(userID uint, taps int, bulPerTap, xpPerTap int64) (*models.TapResult, error)
	SetActiveSkin(userID uint, skin string) error
	GetTapCount(userName string) (int64, error)
	UpsertTaps(userName string, delta int64, now time.Time) error
	TopTapScores(limit int) ([]models.TapScore, error)
}

// GameCacheInterface определяет контракт кэша игрового состояния
// и канала уведомлений стрим-игры
type GameCacheInterface interface {
	GetGameState(ctx context.Context, userID uint) (*models.GameState, error)
	SetGameState(ctx context.Context, state *models.GameState) error
	InvalidateGameState(ctx context.Context, userID uint) error
	GetLeaderboard(ctx context.Context) ([]models.TapScore, error)
	SetLeaderboard(ctx context.Context, scores []models.TapScore) error
	TapGameEnabled(ctx context.Context) (bool, error)
	SetTapGameEnabled(ctx context.Context, enabled bool) error
	PublishTapEvent(ctx context.Context, event redisrepo.TapEvent) error
	PublishSettingsEvent(ctx context.Context, event redisrepo.SettingsEvent) error
}

// GameService реализует игровую экономику: энергию, тапы быка
// и счетчики стрим-игры
type GameService struct {
	gameRepo GameRepositoryInterface
	cache    GameCacheInterface
	cfg      config.GameConfig
	logger   *zap.Logger
}

// NewGameService создает новый экземпляр GameService
func NewGameService(gameRepo GameRepositoryInterface, cache GameCacheInterface, cfg config.GameConfig, logger *zap.Logger) *GameService {
	return &GameService{
		gameRepo: gameRepo,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// GetGameState возвращает игровое состояние пользователя,
// создавая его при первом обращении
func (s *GameService) GetGameState(ctx context.Context, userID uint) (*models.GameState, error) {
	if cached, err := s.cache.GetGameState(ctx, userID); err == nil {
		return cached, nil
	}

	state, err := s.gameRepo.GetOrCreateState(userID, s.cfg.EnergyMax, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetGameState(ctx, state); err != nil {
		server.WithRequestID(ctx, s.logger).Debug("Failed to cache game state", zap.Error(err))
	}

	return state, nil
}

// RestoreEnergy доначисляет энергию за прошедшее время.
// Единственная точка роста энергии: клиент только опрашивает.
func (s *GameService) RestoreEnergy(ctx context.Context, userID uint) (*models.EnergySnapshot, error) {
	log := server.WithRequestID(ctx, s.logger)

	state, restored, err := s.gameRepo.RegenerateEnergy(userID, s.cfg.EnergyRegenPerSec, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetGameState(ctx, state); err != nil {
		log.Debug("Failed to cache game state", zap.Error(err))
	}

	if restored > 0 {
		log.Debug("Energy restored",
			zap.Uint("user_id", userID),
			zap.Int("restored", restored),
			zap.Int("energy", state.Energy))
	}

	return &models.EnergySnapshot{
		Energy:         state.Energy,
		EnergyMax:      state.EnergyMax,
		EnergyRestored: restored,
	}, nil
}

// ProcessBullTaps обрабатывает пачку тапов быка: списывает энергию,
// начисляет валюту и опыт
func (s *GameService) ProcessBullTaps(ctx context.Context, userID uint, taps int) (*models.TapResult, error) {
	if taps <= 0 {
		return &models.TapResult{Message: "nothing to process"}, nil
	}

	result, err := s.gameRepo.ProcessTaps(userID, taps, s.cfg.BulPerTap, s.cfg.XPPerTap)
	if err != nil {
		return nil, err
	}

	if err := s.cache.InvalidateGameState(ctx, userID); err != nil {
		server.WithRequestID(ctx, s.logger).Debug("Failed to invalidate game state cache", zap.Error(err))
	}

	return result, nil
}

// SetActiveSkin меняет активный скин пользователя
func (s *GameService) SetActiveSkin(ctx context.Context, userID uint, skin string) error {
	if err := s.gameRepo.SetActiveSkin(userID, skin); err != nil {
		return err
	}
	return s.cache.InvalidateGameState(ctx, userID)
}

// CommitStreamTaps фиксирует накопленную пачку тапов стрим-игры
// и рассылает обновленный счетчик подписчикам
func (s *GameService) CommitStreamTaps(ctx context.Context, userName string, delta int64) (int64, error) {
	log := server.WithRequestID(ctx, s.logger)

	err := s.gameRepo.UpsertTaps(userName, delta, time.Now())
	server.RecordTapCommit(err)
	if err != nil {
		return 0, err
	}

	total, err := s.gameRepo.GetTapCount(userName)
	if err != nil {
		log.Error("Failed to read tap count after commit", zap.Error(err))
		return 0, err
	}

	if err := s.cache.PublishTapEvent(ctx, redisrepo.TapEvent{
		UserName:  userName,
		TapsCount: total,
	}); err != nil {
		log.Debug("Failed to publish tap event", zap.Error(err))
	}

	log.Debug("Stream taps committed",
		zap.String("user_name", userName),
		zap.Int64("delta", delta),
		zap.Int64("total", total))

	return total, nil
}

// GetTapCount возвращает счетчик тапов стрим-игры
func (s *GameService) GetTapCount(ctx context.Context, userName string) (int64, error) {
	return s.gameRepo.GetTapCount(userName)
}

// TopScores возвращает лидеров стрим-игры
func (s *GameService) TopScores(ctx context.Context) ([]models.TapScore, error) {
	if cached, err := s.cache.GetLeaderboard(ctx); err == nil {
		return cached, nil
	}

	scores, err := s.gameRepo.TopTapScores(s.cfg.TapLeaderboardSize)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetLeaderboard(ctx, scores); err != nil {
		server.WithRequestID(ctx, s.logger).Debug("Failed to cache leaderboard", zap.Error(err))
	}

	return scores, nil
}

// TapGameEnabled возвращает флаг доступности стрим-игры
func (s *GameService) TapGameEnabled(ctx context.Context) (bool, error) {
	return s.cache.TapGameEnabled(ctx)
}

// SetTapGameEnabled переключает доступность стрим-игры
// и уведомляет подписчиков
func (s *GameService) SetTapGameEnabled(ctx context.Context, enabled bool) error {
	if err := s.cache.SetTapGameEnabled(ctx, enabled); err != nil {
		return err
	}

	if err := s.cache.PublishSettingsEvent(ctx, redisrepo.SettingsEvent{
		TapGameEnabled: enabled,
	}); err != nil {
		server.WithRequestID(ctx, s.logger).Debug("Failed to publish settings event", zap.Error(err))
	}

	server.WithRequestID(ctx, s.logger).Info("Tap game availability changed", zap.Bool("enabled", enabled))
	return nil
}
