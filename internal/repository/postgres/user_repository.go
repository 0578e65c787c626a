package postgres

import (
	"errors"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository представляет репозиторий для работы с пользователями,
// реферальными связями и журналом транзакций
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository создает новый экземпляр UserRepository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		db: db,
	}
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(telegramID int64) (*models.User, error) {
	var user models.User
	if err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Create создает нового пользователя
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Защита от дублей по telegram_id
		var existing models.User
		result := tx.Where("telegram_id = ?", user.TelegramID).First(&existing)
		if result.Error == nil {
			return errors.New("user with this telegram_id already exists")
		} else if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return result.Error
		}

		return tx.Create(user).Error
	})
}

// RefreshProfile обновляет отображаемые поля и last_seen_at при повторном входе
func (r *UserRepository) RefreshProfile(user *models.User, identity *models.TelegramIdentity, now time.Time) error {
	updates := map[string]interface{}{
		"last_seen_at": now,
	}
	if identity.Username != "" {
		updates["username"] = identity.Username
	}
	if identity.FirstName != "" {
		updates["first_name"] = identity.FirstName
	}
	if identity.LastName != "" {
		updates["last_name"] = identity.LastName
	}
	if identity.PhotoURL != "" {
		updates["photo_url"] = identity.PhotoURL
	}

	return r.db.Model(user).Updates(updates).Error
}

// SetReferrerIfUnset назначает реферера только если он еще не назначен.
// Возвращает true, если назначение произошло. Условие referrer_id IS NULL
// делает связь неизменяемой после первой записи.
func (r *UserRepository) SetReferrerIfUnset(userID, referrerID uint) (bool, error) {
	result := r.db.Model(&models.User{}).
		Where("id = ? AND referrer_id IS NULL", userID).
		Update("referrer_id", referrerID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IncrementBalanceAR атомарно изменяет баланс AR пользователя
func (r *UserRepository) IncrementBalanceAR(userID uint, amount int64) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance_ar", gorm.Expr("balance_ar + ?", amount)).Error
}

// AppendTransaction добавляет запись в журнал транзакций
func (r *UserRepository) AppendTransaction(tx *models.Transaction) error {
	return r.db.Create(tx).Error
}

// ListTransactions возвращает последние транзакции пользователя
func (r *UserRepository) ListTransactions(userID uint, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&txs).Error
	if err != nil {
		return nil, err
	}
	return txs, nil
}

// InsertReferralRelation вставляет реферальную связь, если ее еще нет.
// Конфликт по уникальному индексу (user_id, referrer_id) — штатный сигнал
// "бонус уже выплачен": возвращается false без ошибки.
func (r *UserRepository) InsertReferralRelation(rel *models.ReferralRelation) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "referrer_id"}},
		DoNothing: true,
	}).Create(rel)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// GetReferralStats возвращает статистику реферальной программы пользователя
func (r *UserRepository) GetReferralStats(referrerID uint) (*models.ReferralStats, error) {
	var stats models.ReferralStats

	err := r.db.Model(&models.ReferralRelation{}).
		Where("referrer_id = ?", referrerID).
		Count(&stats.InvitedCount).Error
	if err != nil {
		return nil, err
	}

	err = r.db.Model(&models.Transaction{}).
		Where("user_id = ? AND type = ?", referrerID, models.TxTypeReferralBonus).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.TotalEarned).Error
	if err != nil {
		return nil, err
	}

	return &stats, nil
}
