package postgres

import (
	"context"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/apperrors"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/database"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/resilience"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/server"
	"go.uber.org/zap"
)

// ResilientUserRepository оборачивает UserRepository в circuit breaker
// и метрики. Чтения дополнительно повторяются при временных сбоях,
// записи не повторяются: двойная выплата хуже недоставленной.
type ResilientUserRepository struct {
	repo   *UserRepository
	health *database.HealthChecker
	logger *zap.Logger
	retry  resilience.RetryOptions
}

// NewResilientUserRepository создает новый экземпляр ResilientUserRepository
func NewResilientUserRepository(repo *UserRepository, health *database.HealthChecker, logger *zap.Logger) *ResilientUserRepository {
	return &ResilientUserRepository{
		repo:   repo,
		health: health,
		logger: logger,
		retry:  resilience.DefaultRetryOptions(),
	}
}

// execute выполняет запись через circuit breaker с метриками
func (r *ResilientUserRepository) execute(operation string, fn func() error) error {
	start := time.Now()
	err := r.health.WithDatabaseResilience(context.Background(), operation, func(ctx context.Context) error {
		return fn()
	})
	server.RecordDBOperation(operation, time.Since(start), err)
	return err
}

// executeWithRetry выполняет чтение через circuit breaker с повторами.
// Отсутствие записи — терминальный результат, повторять его бессмысленно.
func (r *ResilientUserRepository) executeWithRetry(operation string, fn func() error) error {
	start := time.Now()
	var notFound error
	err := r.health.WithDatabaseResilience(context.Background(), operation, func(ctx context.Context) error {
		return resilience.WithRetry(ctx, r.logger, operation, r.retry, func(ctx context.Context) error {
			opErr := fn()
			if apperrors.IsNotFound(opErr) {
				notFound = opErr
				return nil
			}
			return opErr
		})
	})
	if err == nil && notFound != nil {
		err = notFound
	}
	server.RecordDBOperation(operation, time.Since(start), err)
	return err
}

func (r *ResilientUserRepository) GetByTelegramID(telegramID int64) (*models.User, error) {
	var user *models.User
	err := r.executeWithRetry("user_get_by_telegram_id", func() error {
		var opErr error
		user, opErr = r.repo.GetByTelegramID(telegramID)
		return opErr
	})
	return user, err
}

func (r *ResilientUserRepository) Create(user *models.User) error {
	return r.execute("user_create", func() error {
		return r.repo.Create(user)
	})
}

func (r *ResilientUserRepository) RefreshProfile(user *models.User, identity *models.TelegramIdentity, now time.Time) error {
	return r.execute("user_refresh_profile", func() error {
		return r.repo.RefreshProfile(user, identity, now)
	})
}

func (r *ResilientUserRepository) SetReferrerIfUnset(userID, referrerID uint) (bool, error) {
	var linked bool
	err := r.execute("user_set_referrer", func() error {
		var opErr error
		linked, opErr = r.repo.SetReferrerIfUnset(userID, referrerID)
		return opErr
	})
	return linked, err
}

func (r *ResilientUserRepository) IncrementBalanceAR(userID uint, amount int64) error {
	return r.execute("user_increment_balance", func() error {
		return r.repo.IncrementBalanceAR(userID, amount)
	})
}

func (r *ResilientUserRepository) AppendTransaction(tx *models.Transaction) error {
	return r.execute("transaction_append", func() error {
		return r.repo.AppendTransaction(tx)
	})
}

func (r *ResilientUserRepository) ListTransactions(userID uint, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.executeWithRetry("transaction_list", func() error {
		var opErr error
		txs, opErr = r.repo.ListTransactions(userID, limit)
		return opErr
	})
	return txs, err
}

func (r *ResilientUserRepository) InsertReferralRelation(rel *models.ReferralRelation) (bool, error) {
	var created bool
	err := r.execute("referral_relation_insert", func() error {
		var opErr error
		created, opErr = r.repo.InsertReferralRelation(rel)
		return opErr
	})
	return created, err
}

func (r *ResilientUserRepository) GetReferralStats(referrerID uint) (*models.ReferralStats, error) {
	var stats *models.ReferralStats
	err := r.executeWithRetry("referral_stats", func() error {
		var opErr error
		stats, opErr = r.repo.GetReferralStats(referrerID)
		return opErr
	})
	return stats, err
}

// ResilientGameRepository оборачивает GameRepository в circuit breaker
// и метрики по той же схеме
type ResilientGameRepository struct {
	repo   *GameRepository
	health *database.HealthChecker
	logger *zap.Logger
	retry  resilience.RetryOptions
}

// NewResilientGameRepository создает новый экземпляр ResilientGameRepository
func NewResilientGameRepository(repo *GameRepository, health *database.HealthChecker, logger *zap.Logger) *ResilientGameRepository {
	return &ResilientGameRepository{
		repo:   repo,
		health: health,
		logger: logger,
		retry:  resilience.DefaultRetryOptions(),
	}
}

func (r *ResilientGameRepository) execute(operation string, fn func() error) error {
	start := time.Now()
	err := r.health.WithDatabaseResilience(context.Background(), operation, func(ctx context.Context) error {
		return fn()
	})
	server.RecordDBOperation(operation, time.Since(start), err)
	return err
}

func (r *ResilientGameRepository) executeWithRetry(operation string, fn func() error) error {
	start := time.Now()
	var notFound error
	err := r.health.WithDatabaseResilience(context.Background(), operation, func(ctx context.Context) error {
		return resilience.WithRetry(ctx, r.logger, operation, r.retry, func(ctx context.Context) error {
			opErr := fn()
			if apperrors.IsNotFound(opErr) {
				notFound = opErr
				return nil
			}
			return opErr
		})
	})
	if err == nil && notFound != nil {
		err = notFound
	}
	server.RecordDBOperation(operation, time.Since(start), err)
	return err
}

func (r *ResilientGameRepository) GetOrCreateState(userID uint, energyMax int, now time.Time) (*models.GameState, error) {
	var state *models.GameState
	err := r.execute("game_state_get_or_create", func() error {
		var opErr error
		state, opErr = r.repo.GetOrCreateState(userID, energyMax, now)
		return opErr
	})
	return state, err
}

func (r *ResilientGameRepository) RegenerateEnergy(userID uint, ratePerSec float64, now time.Time) (*models.GameState, int, error) {
	var state *models.GameState
	var restored int
	err := r.execute("energy_regenerate", func() error {
		var opErr error
		state, restored, opErr = r.repo.RegenerateEnergy(userID, ratePerSec, now)
		return opErr
	})
	return state, restored, err
}

func (r *ResilientGameRepository) ProcessTaps(userID uint, taps int, bulPerTap, xpPerTap int64) (*models.TapResult, error) {
	var result *models.TapResult
	err := r.execute("bull_taps_process", func() error {
		var opErr error
		result, opErr = r.repo.ProcessTaps(userID, taps, bulPerTap, xpPerTap)
		return opErr
	})
	return result, err
}

func (r *ResilientGameRepository) SetActiveSkin(userID uint, skin string) error {
	return r.execute("skin_set", func() error {
		return r.repo.SetActiveSkin(userID, skin)
	})
}

func (r *ResilientGameRepository) GetTapCount(userName string) (int64, error) {
	var count int64
	err := r.executeWithRetry("stream_taps_get", func() error {
		var opErr error
		count, opErr = r.repo.GetTapCount(userName)
		return opErr
	})
	return count, err
}

func (r *ResilientGameRepository) UpsertTaps(userName string, delta int64, now time.Time) error {
	return r.execute("stream_taps_upsert", func() error {
		return r.repo.UpsertTaps(userName, delta, now)
	})
}

func (r *ResilientGameRepository) TopTapScores(limit int) ([]models.TapScore, error) {
	var scores []models.TapScore
	err := r.executeWithRetry("stream_taps_top", func() error {
		var opErr error
		scores, opErr = r.repo.TopTapScores(limit)
		return opErr
	})
	return scores, err
}
