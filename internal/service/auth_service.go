package service

import (
	"context"
	"strconv"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/config"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/referral"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/apperrors"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/server"
	"go.uber.org/zap"
)

// UserRepositoryInterface определяет контракт хранилища пользователей
type UserRepositoryInterface interface {
	GetByTelegramID(telegramID int64) (*models.User, error)
	Create(user *models.User) error
	RefreshProfile(user *models.User, identity *models.TelegramIdentity, now time.Time) error
	SetReferrerIfUnset(userID, referrerID uint) (bool, error)
	IncrementBalanceAR(userID uint, amount int64) error
	AppendTransaction(tx *models.Transaction) error
	ListTransactions(userID uint, limit int) ([]models.Transaction, error)
	InsertReferralRelation(rel *models.ReferralRelation) (bool, error)
	GetReferralStats(referrerID uint) (*models.ReferralStats, error)
}

// ProfileCacheInterface определяет контракт кэша профилей
type ProfileCacheInterface interface {
	GetProfile(ctx context.Context, telegramID int64) (*models.User, error)
	SetProfile(ctx context.Context, user *models.User) error
	InvalidateProfile(ctx context.Context, telegramID int64) error
}

// AttributionOutcome описывает исход реферальной атрибуции при входе
type AttributionOutcome string

const (
	// AttributionNone код отсутствовал или не имел ожидаемой формы
	AttributionNone AttributionOutcome = "none"

	// AttributionLinked связь создана, бонус выплачен
	AttributionLinked AttributionOutcome = "linked"

	// AttributionAlreadyLinked связь уже существовала, бонус не выплачен
	AttributionAlreadyLinked AttributionOutcome = "already_linked"

	// AttributionReferrerNotFound реферер по коду не найден
	AttributionReferrerNotFound AttributionOutcome = "referrer_not_found"

	// AttributionSelfReferral пользователь указал собственный код
	AttributionSelfReferral AttributionOutcome = "self_referral"
)

// AuthResult представляет итог авторизации пользователя
type AuthResult struct {
	User         *models.User       `json:"user"`
	IsNew        bool               `json:"is_new"`
	WelcomeBonus int64              `json:"welcome_bonus,omitempty"`
	Attribution  AttributionOutcome `json:"attribution"`

	// Fallback выставляется, когда база недоступна и возвращен
	// локальный профиль, не сохраненный на сервере
	Fallback bool `json:"fallback,omitempty"`
}

// AuthService реализует авторизацию через Telegram Mini App
// и реферальную атрибуцию
type AuthService struct {
	userRepo UserRepositoryInterface
	cache    ProfileCacheInterface
	cfg      config.GameConfig
	logger   *zap.Logger
}

// NewAuthService создает новый экземпляр AuthService
func NewAuthService(userRepo UserRepositoryInterface, cache ProfileCacheInterface, cfg config.GameConfig, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
	}
}

// Authenticate выполняет вход пользователя: создает профиль при первом
// входе с приветственным бонусом, обновляет существующий, проводит
// реферальную атрибуцию. Недоступность базы не валит вход: возвращается
// локальный профиль с флагом Fallback.
func (s *AuthService) Authenticate(ctx context.Context, identity *models.TelegramIdentity, params referral.LaunchParams) (*AuthResult, error) {
	log := server.WithRequestID(ctx, s.logger)

	if identity == nil || identity.ID == 0 {
		// Запуск вне Telegram: гостевой профиль без сохранения
		log.Warn("Guest launch without telegram identity")
		return &AuthResult{
			User:        &models.User{FirstName: "Guest"},
			Attribution: AttributionNone,
			Fallback:    true,
		}, nil
	}

	now := time.Now()

	user, err := s.userRepo.GetByTelegramID(identity.ID)
	if err != nil && !apperrors.IsNotFound(err) {
		// База недоступна: локальный профиль с приветственным бонусом
		log.Error("User lookup failed, falling back to local profile",
			zap.Int64("telegram_id", identity.ID),
			zap.Error(err))
		return &AuthResult{
			User: &models.User{
				TelegramID: identity.ID,
				Username:   identity.Username,
				FirstName:  identity.FirstName,
				LastName:   identity.LastName,
				PhotoURL:   identity.PhotoURL,
				BalanceAR:  s.cfg.WelcomeBonus,
			},
			Attribution: AttributionNone,
			Fallback:    true,
		}, nil
	}

	if err == nil {
		return s.authenticateExisting(ctx, log, user, identity, params, now)
	}

	return s.registerNew(ctx, log, identity, params, now)
}

// authenticateExisting обновляет профиль при повторном входе.
// Блокировка проверяется до любых изменений.
func (s *AuthService) authenticateExisting(ctx context.Context, log *zap.Logger, user *models.User, identity *models.TelegramIdentity, params referral.LaunchParams, now time.Time) (*AuthResult, error) {
	if user.IsBlocked {
		log.Warn("Blocked user attempted to authenticate",
			zap.Int64("telegram_id", user.TelegramID))
		return nil, apperrors.ErrUserBlocked
	}

	if err := s.userRepo.RefreshProfile(user, identity, now); err != nil {
		log.Error("Failed to refresh profile", zap.Error(err))
	}

	// Для существующих пользователей код принимается только из URL-хэша:
	// start_param у них несет состояние запуска, а не приглашение
	outcome := AttributionNone
	code := referral.ResolveCode(referral.LaunchParams{URLHash: params.URLHash})
	if code != "" && user.ReferrerID == nil {
		outcome = s.attribute(ctx, log, user, code, models.RelationStatusActive)
	}

	if err := s.cache.SetProfile(ctx, user); err != nil {
		log.Debug("Failed to cache profile", zap.Error(err))
	}

	return &AuthResult{
		User:        user,
		Attribution: outcome,
	}, nil
}

// registerNew создает профиль с приветственным бонусом и проводит
// атрибуцию по всем каналам запускового контекста
func (s *AuthService) registerNew(ctx context.Context, log *zap.Logger, identity *models.TelegramIdentity, params referral.LaunchParams, now time.Time) (*AuthResult, error) {
	user := &models.User{
		TelegramID: identity.ID,
		Username:   identity.Username,
		FirstName:  identity.FirstName,
		LastName:   identity.LastName,
		PhotoURL:   identity.PhotoURL,
		BalanceAR:  s.cfg.WelcomeBonus,
		LastSeenAt: now,
	}

	if err := s.userRepo.Create(user); err != nil {
		log.Error("Failed to create user, falling back to local profile",
			zap.Int64("telegram_id", identity.ID),
			zap.Error(err))
		return &AuthResult{
			User:        user,
			IsNew:       true,
			Attribution: AttributionNone,
			Fallback:    true,
		}, nil
	}

	log.Info("New user registered",
		zap.Int64("telegram_id", user.TelegramID),
		zap.Int64("welcome_bonus", s.cfg.WelcomeBonus))

	if err := s.userRepo.AppendTransaction(&models.Transaction{
		UserID:      user.ID,
		Type:        models.TxTypeBonus,
		Amount:      s.cfg.WelcomeBonus,
		Description: "welcome bonus",
	}); err != nil {
		log.Error("Failed to record welcome bonus transaction", zap.Error(err))
	}

	outcome := AttributionNone
	if code := referral.ResolveCode(params); code != "" {
		outcome = s.attribute(ctx, log, user, code, models.RelationStatusPending)
	}

	if err := s.cache.SetProfile(ctx, user); err != nil {
		log.Debug("Failed to cache profile", zap.Error(err))
	}

	return &AuthResult{
		User:         user,
		IsNew:        true,
		WelcomeBonus: s.cfg.WelcomeBonus,
		Attribution:  outcome,
	}, nil
}

// attribute связывает пользователя с реферером и выплачивает бонус.
// Выплата привязана к фактической вставке связи: повторная атрибуция
// упирается в уникальный индекс и денег не двигает.
func (s *AuthService) attribute(ctx context.Context, log *zap.Logger, user *models.User, code, status string) AttributionOutcome {
	referrerTgID, err := strconv.ParseInt(referral.ReferrerTelegramID(code), 10, 64)
	if err != nil {
		log.Warn("Malformed referral code", zap.String("code", code))
		return AttributionNone
	}

	if referrerTgID == user.TelegramID {
		log.Warn("Self referral attempt", zap.Int64("telegram_id", user.TelegramID))
		return AttributionSelfReferral
	}

	referrer, err := s.userRepo.GetByTelegramID(referrerTgID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			log.Warn("Referrer not found", zap.Int64("referrer_telegram_id", referrerTgID))
			return AttributionReferrerNotFound
		}
		log.Error("Referrer lookup failed", zap.Error(err))
		return AttributionNone
	}

	linked, err := s.userRepo.SetReferrerIfUnset(user.ID, referrer.ID)
	if err != nil {
		log.Error("Failed to set referrer", zap.Error(err))
		return AttributionNone
	}
	if linked {
		user.ReferrerID = &referrer.ID
	}

	created, err := s.userRepo.InsertReferralRelation(&models.ReferralRelation{
		UserID:     user.ID,
		ReferrerID: referrer.ID,
		Level:      1,
		Status:     status,
	})
	if err != nil {
		log.Error("Failed to insert referral relation", zap.Error(err))
		return AttributionNone
	}
	if !created {
		return AttributionAlreadyLinked
	}

	if err := s.userRepo.IncrementBalanceAR(referrer.ID, s.cfg.ReferralBonus); err != nil {
		log.Error("Failed to pay referral bonus",
			zap.Uint("referrer_id", referrer.ID),
			zap.Error(err))
		return AttributionLinked
	}

	if err := s.userRepo.AppendTransaction(&models.Transaction{
		UserID:      referrer.ID,
		Type:        models.TxTypeReferralBonus,
		Amount:      s.cfg.ReferralBonus,
		Description: "referral bonus for inviting " + strconv.FormatInt(user.TelegramID, 10),
	}); err != nil {
		log.Error("Failed to record referral bonus transaction", zap.Error(err))
	}

	if err := s.cache.InvalidateProfile(ctx, referrer.TelegramID); err != nil {
		log.Debug("Failed to invalidate referrer profile cache", zap.Error(err))
	}

	server.RecordReferralBonus()
	log.Info("Referral bonus paid",
		zap.Uint("referrer_id", referrer.ID),
		zap.Uint("user_id", user.ID),
		zap.Int64("amount", s.cfg.ReferralBonus))

	return AttributionLinked
}

// GetProfile возвращает профиль пользователя, кэш опрашивается первым.
// Промах кэша наполняет его из базы, заблокированные не кэшируются.
func (s *AuthService) GetProfile(ctx context.Context, telegramID int64) (*models.User, error) {
	if cached, err := s.cache.GetProfile(ctx, telegramID); err == nil {
		return cached, nil
	}

	user, err := s.userRepo.GetByTelegramID(telegramID)
	if err != nil {
		return nil, err
	}
	if user.IsBlocked {
		return nil, apperrors.ErrUserBlocked
	}

	if err := s.cache.SetProfile(ctx, user); err != nil {
		server.WithRequestID(ctx, s.logger).Debug("Failed to cache profile", zap.Error(err))
	}

	return user, nil
}

// GetReferralStats возвращает статистику реферальной программы пользователя
func (s *AuthService) GetReferralStats(ctx context.Context, userID uint) (*models.ReferralStats, error) {
	return s.userRepo.GetReferralStats(userID)
}

// ListTransactions возвращает последние транзакции пользователя
func (s *AuthService) ListTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.userRepo.ListTransactions(userID, limit)
}

// ReferralCode возвращает реферальный код пользователя
func (s *AuthService) ReferralCode(telegramID int64) string {
	return referral.CodePrefix + strconv.FormatInt(telegramID, 10)
}
