package postgres

import (
	"errors"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GameRepository представляет репозиторий для игрового состояния
// и счетчиков тапов стрим-игры
type GameRepository struct {
	db *gorm.DB
}

// NewGameRepository создает новый экземпляр GameRepository
func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{
		db: db,
	}
}

// GetState получает игровое состояние пользователя
func (r *GameRepository) GetState(userID uint) (*models.GameState, error) {
	var state models.GameState
	if err := r.db.Where("user_id = ?", userID).First(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// GetOrCreateState получает игровое состояние пользователя,
// создавая его с начальными значениями при первом обращении
func (r *GameRepository) GetOrCreateState(userID uint, energyMax int, now time.Time) (*models.GameState, error) {
	var state models.GameState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	state = models.GameState{
		UserID:           userID,
		Energy:           energyMax,
		EnergyMax:        energyMax,
		Level:            1,
		XPToNext:         1000,
		ActiveSkin:       models.DefaultSkin,
		LastEnergyUpdate: now,
	}
	if err := r.db.Create(&state).Error; err != nil {
		return nil, err
	}
	return &state, nil
}

// RegenerateEnergy доначисляет энергию за время, прошедшее с последнего
// обновления. Выполняется в транзакции с блокировкой строки, чтобы
// конкурирующие запросы не начислили энергию дважды за один интервал.
func (r *GameRepository) RegenerateEnergy(userID uint, ratePerSec float64, now time.Time) (*models.GameState, int, error) {
	var state models.GameState
	restored := 0

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&state).Error; err != nil {
			return err
		}

		if state.Energy >= state.EnergyMax {
			// На максимуме время простоя не копится
			state.Energy = state.EnergyMax
			state.LastEnergyUpdate = now
			return tx.Model(&state).Updates(map[string]interface{}{
				"energy":             state.Energy,
				"last_energy_update": state.LastEnergyUpdate,
			}).Error
		}

		elapsed := now.Sub(state.LastEnergyUpdate).Seconds()
		if elapsed <= 0 {
			return nil
		}

		restored = int(elapsed * ratePerSec)
		if restored <= 0 {
			return nil
		}

		if state.Energy+restored > state.EnergyMax {
			restored = state.EnergyMax - state.Energy
		}
		state.Energy += restored
		// Сдвигаем метку только на конвертированное время,
		// дробный остаток секунд сохраняется до следующего опроса
		consumed := time.Duration(float64(restored) / ratePerSec * float64(time.Second))
		state.LastEnergyUpdate = state.LastEnergyUpdate.Add(consumed)

		return tx.Model(&state).Updates(map[string]interface{}{
			"energy":             state.Energy,
			"last_energy_update": state.LastEnergyUpdate,
		}).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return &state, restored, nil
}

// ProcessTaps списывает энергию за тапы и начисляет валюту и опыт.
// Тапы сверх доступной энергии отбрасываются.
func (r *GameRepository) ProcessTaps(userID uint, taps int, bulPerTap, xpPerTap int64) (*models.TapResult, error) {
	var result models.TapResult

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var state models.GameState
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&state).Error; err != nil {
			return err
		}

		spent := taps
		if spent > state.Energy {
			spent = state.Energy
		}
		if spent <= 0 {
			result.Energy = state.Energy
			result.BalanceBul = state.BalanceBul
			result.Level = state.Level
			result.XP = state.XP
			result.XPToNext = state.XPToNext
			result.Message = "not enough energy"
			return nil
		}

		state.Energy -= spent
		state.BalanceBul += int64(spent) * bulPerTap
		state.XP += int64(spent) * xpPerTap

		for state.XP >= state.XPToNext {
			state.XP -= state.XPToNext
			state.Level++
			state.XPToNext = int64(state.Level) * 1000
			result.LeveledUp = true
		}

		if err := tx.Model(&state).Updates(map[string]interface{}{
			"energy":      state.Energy,
			"balance_bul": state.BalanceBul,
			"xp":          state.XP,
			"xp_to_next":  state.XPToNext,
			"level":       state.Level,
		}).Error; err != nil {
			return err
		}

		result.Success = true
		result.BulEarned = int64(spent) * bulPerTap
		result.XPEarned = int64(spent) * xpPerTap
		result.BalanceBul = state.BalanceBul
		result.Energy = state.Energy
		result.Level = state.Level
		result.XP = state.XP
		result.XPToNext = state.XPToNext
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SetActiveSkin меняет активный скин пользователя
func (r *GameRepository) SetActiveSkin(userID uint, skin string) error {
	return r.db.Model(&models.GameState{}).
		Where("user_id = ?", userID).
		Update("active_skin", skin).Error
}

// GetTapCount возвращает счетчик тапов стрим-игры по имени пользователя
func (r *GameRepository) GetTapCount(userName string) (int64, error) {
	var score models.TapScore
	err := r.db.Where("user_name = ?", userName).First(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return score.TapsCount, nil
}

// UpsertTaps атомарно добавляет дельту к счетчику тапов стрим-игры.
// Счетчик ключуется именем пользователя, строка создается при первом тапе.
func (r *GameRepository) UpsertTaps(userName string, delta int64, now time.Time) error {
	score := models.TapScore{
		UserName:  userName,
		TapsCount: delta,
		UpdatedAt: now,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"taps_count": gorm.Expr("stream_taps.taps_count + ?", delta),
			"updated_at": now,
		}),
	}).Create(&score).Error
}

// TopTapScores возвращает лидеров стрим-игры по убыванию счетчика
func (r *GameRepository) TopTapScores(limit int) ([]models.TapScore, error) {
	var scores []models.TapScore
	err := r.db.Order("taps_count DESC").Limit(limit).Find(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}
