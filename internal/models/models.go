package models

import (
	"time"
)

// User представляет участника платформы AR ARENA
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	TelegramID   int64  `gorm:"uniqueIndex;not null" json:"telegram_id"`
	Username     string `gorm:"size:255" json:"username"`
	FirstName    string `gorm:"size:255" json:"first_name"`
	LastName     string `gorm:"size:255" json:"last_name"`
	PhotoURL     string `json:"photo_url"`
	BalanceAR    int64  `gorm:"default:0" json:"balance_ar"`
	BalanceCoins int64  `gorm:"default:0" json:"balance_coins"`

	// Реферер назначается не более одного раза и после этого не меняется
	ReferrerID *uint `gorm:"index" json:"referrer_id,omitempty"`

	IsBlocked  bool      `gorm:"default:false" json:"is_blocked"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// ReferralRelation представляет связь "пользователь приглашен реферером".
// Уникальный индекс по паре (user_id, referrer_id) — единственная защита
// от повторной выплаты реферального бонуса.
type ReferralRelation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_referral_pair" json:"user_id"`
	ReferrerID uint      `gorm:"not null;uniqueIndex:idx_referral_pair" json:"referrer_id"`
	Level      int       `gorm:"default:1" json:"level"`
	Status     string    `gorm:"size:32;default:'pending'" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Статусы реферальной связи
const (
	RelationStatusPending = "pending"
	RelationStatusActive  = "active"
)

// Transaction представляет запись журнала изменений баланса (append-only)
type Transaction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Type        string    `gorm:"size:32;not null" json:"type"`
	Amount      int64     `gorm:"not null" json:"amount"`
	Status      string    `gorm:"size:32;default:'completed'" json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Типы транзакций
const (
	TxTypeBonus         = "bonus"
	TxTypeReferralBonus = "referral_bonus"
	TxTypeUpdate        = "update"
)

// GameState содержит снимок игровой экономики пользователя (1:1 с User).
// Энергия пересчитывается только серверной функцией регенерации.
type GameState struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Energy           int       `gorm:"default:100" json:"energy"`
	EnergyMax        int       `gorm:"default:100" json:"energy_max"`
	Level            int       `gorm:"default:1" json:"level"`
	XP               int64     `gorm:"default:0" json:"xp"`
	XPToNext         int64     `gorm:"default:1000" json:"xp_to_next"`
	BalanceBul       int64     `gorm:"default:0" json:"balance_bul"`
	ActiveSkin       string    `gorm:"size:64;default:'Bull1.png'" json:"active_skin"`
	LastEnergyUpdate time.Time `json:"last_energy_update"`
}

// DefaultSkin скин быка, выдаваемый при создании игрового состояния
const DefaultSkin = "Bull1.png"

// TapScore представляет счетчик тапов стрим-игры.
// Ключ — отображаемое имя, taps_count только растет.
type TapScore struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserName  string    `gorm:"size:255;uniqueIndex;not null" json:"user_name"`
	TapsCount int64     `gorm:"default:0" json:"taps_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TelegramIdentity представляет подтвержденную личность из Mini App окружения
type TelegramIdentity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	Language  string `json:"language_code,omitempty"`
}

// EnergySnapshot представляет результат серверной регенерации энергии
type EnergySnapshot struct {
	Energy         int `json:"energy"`
	EnergyMax      int `json:"energy_max"`
	EnergyRestored int `json:"energy_restored"`
}

// TapResult представляет результат обработки пачки тапов быка
type TapResult struct {
	Success    bool   `json:"success"`
	BalanceBul int64  `json:"balance_bul"`
	Energy     int    `json:"energy"`
	Level      int    `json:"level"`
	XP         int64  `json:"xp"`
	XPToNext   int64  `json:"xp_to_next"`
	BulEarned  int64  `json:"bul_earned"`
	XPEarned   int64  `json:"xp_earned"`
	LeveledUp  bool   `json:"leveled_up"`
	Message    string `json:"message,omitempty"`
}

// ReferralStats представляет агрегированную статистику реферальной программы
type ReferralStats struct {
	InvitedCount int64 `json:"invited_count"`
	TotalEarned  int64 `json:"total_earned"`
}

// TableName устанавливает имя таблицы для модели User
func (User) TableName() string {
	return "users"
}

// TableName устанавливает имя таблицы для модели ReferralRelation
func (ReferralRelation) TableName() string {
	return "referral_relations"
}

// TableName устанавливает имя таблицы для модели Transaction
func (Transaction) TableName() string {
	return "transactions"
}

// TableName устанавливает имя таблицы для модели GameState
func (GameState) TableName() string {
	return "game_states"
}

// TableName устанавливает имя таблицы для модели TapScore
func (TapScore) TableName() string {
	return "stream_taps"
}
