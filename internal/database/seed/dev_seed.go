package seed

import (
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dev наполняет базу демонстрационными данными для локальной разработки.
// Повторный запуск ничего не дублирует.
func Dev(db *gorm.DB, logger *zap.Logger) error {
	users := []models.User{
		{TelegramID: 1000001, Username: "streamer", FirstName: "Demo", BalanceAR: 500},
		{TelegramID: 1000002, Username: "viewer_one", FirstName: "Viewer", BalanceAR: 50},
		{TelegramID: 1000003, Username: "viewer_two", FirstName: "Viewer", BalanceAR: 150},
	}

	for i := range users {
		err := db.Where("telegram_id = ?", users[i].TelegramID).
			FirstOrCreate(&users[i]).Error
		if err != nil {
			return err
		}
	}

	now := time.Now()
	for _, u := range users {
		state := models.GameState{
			UserID:           u.ID,
			Energy:           100,
			EnergyMax:        100,
			Level:            1,
			XPToNext:         1000,
			ActiveSkin:       models.DefaultSkin,
			LastEnergyUpdate: now,
		}
		err := db.Where("user_id = ?", u.ID).FirstOrCreate(&state).Error
		if err != nil {
			return err
		}
	}

	scores := []models.TapScore{
		{UserName: "streamer", TapsCount: 420, UpdatedAt: now},
		{UserName: "viewer_one", TapsCount: 120, UpdatedAt: now},
		{UserName: "viewer_two", TapsCount: 77, UpdatedAt: now},
	}
	for i := range scores {
		err := db.Where("user_name = ?", scores[i].UserName).
			FirstOrCreate(&scores[i]).Error
		if err != nil {
			return err
		}
	}

	logger.Info("Development seed completed",
		zap.Int("users", len(users)),
		zap.Int("tap_scores", len(scores)))
	return nil
}
