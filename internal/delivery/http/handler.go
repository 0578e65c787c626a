package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/game"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/referral"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/service"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/apperrors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthServiceInterface определяет контракт сервиса авторизации
type AuthServiceInterface interface {
	Authenticate(ctx context.Context, identity *models.TelegramIdentity, params referral.LaunchParams) (*service.AuthResult, error)
	GetProfile(ctx context.Context, telegramID int64) (*models.User, error)
	GetReferralStats(ctx context.Context, userID uint) (*models.ReferralStats, error)
	ListTransactions(ctx context.Context, userID uint, limit int) ([]models.Transaction, error)
	ReferralCode(telegramID int64) string
}

// GameServiceInterface определяет контракт игрового сервиса
type GameServiceInterface interface {
	GetGameState(ctx context.Context, userID uint) (*models.GameState, error)
	RestoreEnergy(ctx context.Context, userID uint) (*models.EnergySnapshot, error)
	ProcessBullTaps(ctx context.Context, userID uint, taps int) (*models.TapResult, error)
	SetActiveSkin(ctx context.Context, userID uint, skin string) error
	TopScores(ctx context.Context) ([]models.TapScore, error)
	GetTapCount(ctx context.Context, userName string) (int64, error)
	TapGameEnabled(ctx context.Context) (bool, error)
	SetTapGameEnabled(ctx context.Context, enabled bool) error
}

// SessionWatcher регистрирует активные сессии для фоновой регенерации энергии
type SessionWatcher interface {
	Watch(userID uint)
}

// TapSink определяет контракт накопителя тапов стрим-игры
type TapSink interface {
	Tap(userName string, n int64) int64
	Seed(userName string, total int64)
}

// Handler обрабатывает HTTP запросы Mini App
type Handler struct {
	auth     AuthServiceInterface
	games    GameServiceInterface
	taps     TapSink
	sessions SessionWatcher
	events   *EventHub
	logger   *zap.Logger
}

// NewHandler создает новый экземпляр Handler
func NewHandler(auth AuthServiceInterface, games GameServiceInterface, taps TapSink, logger *zap.Logger) *Handler {
	return &Handler{
		auth:   auth,
		games:  games,
		taps:   taps,
		logger: logger,
	}
}

// WithSessionWatcher подключает регистрацию активных сессий
func (h *Handler) WithSessionWatcher(sessions SessionWatcher) *Handler {
	h.sessions = sessions
	return h
}

// WithEventHub подключает трансляцию событий клиентам
func (h *Handler) WithEventHub(events *EventHub) *Handler {
	h.events = events
	return h
}

// RegisterRoutes регистрирует маршруты API
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.POST("/auth", h.authenticate)
		api.GET("/profile/:telegram_id", h.profile)

		api.GET("/users/:user_id/referrals", h.referralStats)
		api.GET("/users/:user_id/transactions", h.listTransactions)

		api.GET("/users/:user_id/game", h.gameState)
		api.POST("/users/:user_id/energy/restore", h.restoreEnergy)
		api.POST("/users/:user_id/taps", h.bullTaps)
		api.PUT("/users/:user_id/skin", h.setSkin)

		stream := api.Group("/stream")
		{
			stream.POST("/taps", h.streamTaps)
			stream.GET("/top", h.streamTop)
			stream.GET("/events", h.streamEvents)
			stream.GET("/settings", h.streamSettings)
			stream.PUT("/settings", h.updateStreamSettings)
		}
	}
}

// authRequest представляет тело запроса авторизации
type authRequest struct {
	User          *models.TelegramIdentity `json:"user"`
	StartParam    string                   `json:"start_param"`
	URLHash       string                   `json:"url_hash"`
	QueryStartApp string                   `json:"startapp"`
	QueryRef      string                   `json:"ref"`
	InitData      string                   `json:"init_data"`
}

// authenticate обрабатывает вход через Telegram Mini App
func (h *Handler) authenticate(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.auth.Authenticate(c.Request.Context(), req.User, referral.LaunchParams{
		StartParam:    req.StartParam,
		URLHash:       req.URLHash,
		QueryStartApp: req.QueryStartApp,
		QueryRef:      req.QueryRef,
		InitData:      req.InitData,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrUserBlocked) {
			c.JSON(http.StatusForbidden, gin.H{"error": "user is blocked"})
			return
		}
		h.logger.Error("Authentication failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		return
	}

	if !result.Fallback {
		if h.sessions != nil && result.User.ID != 0 {
			h.sessions.Watch(result.User.ID)
		}
		// Оптимистичный счетчик стрим-игры стартует с зафиксированной базы
		if result.User.Username != "" {
			if total, err := h.games.GetTapCount(c.Request.Context(), result.User.Username); err == nil {
				h.taps.Seed(result.User.Username, total)
			}
		}
	}

	response := gin.H{
		"user":        result.User,
		"is_new":      result.IsNew,
		"attribution": result.Attribution,
		"fallback":    result.Fallback,
	}
	if result.User.TelegramID != 0 {
		response["referral_code"] = h.auth.ReferralCode(result.User.TelegramID)
	}

	c.JSON(http.StatusOK, response)
}

// profile возвращает профиль пользователя по telegram_id
func (h *Handler) profile(c *gin.Context) {
	telegramID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil || telegramID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid telegram id"})
		return
	}

	user, err := h.auth.GetProfile(c.Request.Context(), telegramID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserBlocked) {
			c.JSON(http.StatusForbidden, gin.H{"error": "user is blocked"})
			return
		}
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("Failed to get profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// referralStats возвращает статистику реферальной программы
func (h *Handler) referralStats(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	stats, err := h.auth.GetReferralStats(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get referral stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get referral stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// listTransactions возвращает журнал транзакций пользователя
func (h *Handler) listTransactions(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	txs, err := h.auth.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger.Error("Failed to list transactions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// gameState возвращает игровое состояние пользователя
func (h *Handler) gameState(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	state, err := h.games.GetGameState(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to get game state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get game state"})
		return
	}

	c.JSON(http.StatusOK, state)
}

// restoreEnergy доначисляет энергию за прошедшее время
func (h *Handler) restoreEnergy(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	// Активность клиента продлевает фоновую регенерацию
	if h.sessions != nil {
		h.sessions.Watch(userID)
	}

	snapshot, err := h.games.RestoreEnergy(c.Request.Context(), userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game state not found"})
			return
		}
		h.logger.Error("Failed to restore energy", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to restore energy"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// tapRequest представляет пачку тапов быка
type tapRequest struct {
	Taps int `json:"taps" binding:"required"`
}

// bullTaps обрабатывает пачку тапов быка
func (h *Handler) bullTaps(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	var req tapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Taps <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tap batch"})
		return
	}

	if h.sessions != nil {
		h.sessions.Watch(userID)
	}

	result, err := h.games.ProcessBullTaps(c.Request.Context(), userID, req.Taps)
	if err != nil {
		if apperrors.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "game state not found"})
			return
		}
		h.logger.Error("Failed to process taps", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process taps"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// skinRequest представляет смену активного скина
type skinRequest struct {
	Skin string `json:"skin" binding:"required"`
}

// setSkin меняет активный скин пользователя
func (h *Handler) setSkin(c *gin.Context) {
	userID, ok := h.userIDParam(c)
	if !ok {
		return
	}

	var req skinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.games.SetActiveSkin(c.Request.Context(), userID, req.Skin); err != nil {
		h.logger.Error("Failed to set skin", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set skin"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"skin": req.Skin})
}

// streamTapRequest представляет тапы стрим-игры
type streamTapRequest struct {
	UserName string `json:"user_name" binding:"required"`
	Taps     int64  `json:"taps" binding:"required"`
}

// streamTaps принимает тапы стрим-игры в накопитель.
// Ответ содержит оптимистичный счетчик, запись в хранилище отложена.
func (h *Handler) streamTaps(c *gin.Context) {
	var req streamTapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Taps <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tap batch"})
		return
	}

	enabled, err := h.games.TapGameEnabled(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to read tap game flag", zap.Error(err))
		// Недоступность флага не останавливает игру
		enabled = true
	}
	if !enabled {
		c.JSON(http.StatusForbidden, gin.H{"error": "tap game is disabled"})
		return
	}

	total := h.taps.Tap(req.UserName, req.Taps)
	c.JSON(http.StatusOK, gin.H{
		"user_name":  req.UserName,
		"taps_count": total,
	})
}

// streamTop возвращает лидеров стрим-игры
func (h *Handler) streamTop(c *gin.Context) {
	scores, err := h.games.TopScores(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get leaderboard", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"top": scores})
}

// streamEvents отдает события стрим-игры и энергии по Server-Sent Events.
// Соединение держится до отключения клиента.
func (h *Handler) streamEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event stream is not available"})
		return
	}

	ch := h.events.subscribe()
	defer h.events.unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case ev := <-ch:
			c.SSEvent(ev.Name, ev.Data)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}

// streamSettings возвращает настройки стрим-игры
func (h *Handler) streamSettings(c *gin.Context) {
	enabled, err := h.games.TapGameEnabled(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read stream settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tap_game_enabled": enabled})
}

// settingsRequest представляет изменение настроек стрим-игры
type settingsRequest struct {
	TapGameEnabled *bool `json:"tap_game_enabled" binding:"required"`
}

// updateStreamSettings переключает доступность стрим-игры
func (h *Handler) updateStreamSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.games.SetTapGameEnabled(c.Request.Context(), *req.TapGameEnabled); err != nil {
		h.logger.Error("Failed to update stream settings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tap_game_enabled": *req.TapGameEnabled})
}

// userIDParam извлекает user_id из пути
func (h *Handler) userIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return uint(id), true
}

// проверка соответствия интерфейсу на этапе компиляции
var _ TapSink = (*game.TapAccumulator)(nil)
