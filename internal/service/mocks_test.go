package service

import (
	"context"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/config"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	redisrepo "github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/repository/redis"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/pkg/apperrors"
	"gorm.io/gorm"
)

func testGameConfig() config.GameConfig {
	return config.GameConfig{
		WelcomeBonus:       50,
		ReferralBonus:      100,
		EnergyMax:          100,
		EnergyRegenPerSec:  1.0,
		EnergyPollInterval: 5 * time.Second,
		SessionIdleTTL:     5 * time.Minute,
		TapFlushDebounce:   3 * time.Second,
		TapLeaderboardSize: 5,
		BulPerTap:          1,
		XPPerTap:           1,
	}
}

func timeAgo(seconds int) time.Time {
	return time.Now().Add(-time.Duration(seconds) * time.Second)
}

// mockUserRepo хранит пользователей в памяти
type mockUserRepo struct {
	users      map[int64]*models.User
	relations  map[[2]uint]*models.ReferralRelation
	txs        []models.Transaction
	nextID     uint
	lookupErr  error
	createErr  error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:     make(map[int64]*models.User),
		relations: make(map[[2]uint]*models.ReferralRelation),
	}
}

func (m *mockUserRepo) GetByTelegramID(telegramID int64) (*models.User, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	user, ok := m.users[telegramID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (m *mockUserRepo) Create(user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	user.ID = m.nextID
	m.users[user.TelegramID] = user
	return nil
}

func (m *mockUserRepo) RefreshProfile(user *models.User, identity *models.TelegramIdentity, now time.Time) error {
	user.LastSeenAt = now
	if identity.Username != "" {
		user.Username = identity.Username
	}
	return nil
}

func (m *mockUserRepo) SetReferrerIfUnset(userID, referrerID uint) (bool, error) {
	for _, user := range m.users {
		if user.ID == userID {
			if user.ReferrerID != nil {
				return false, nil
			}
			user.ReferrerID = &referrerID
			return true, nil
		}
	}
	return false, apperrors.ErrNotFound
}

func (m *mockUserRepo) IncrementBalanceAR(userID uint, amount int64) error {
	for _, user := range m.users {
		if user.ID == userID {
			user.BalanceAR += amount
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockUserRepo) AppendTransaction(tx *models.Transaction) error {
	m.txs = append(m.txs, *tx)
	return nil
}

func (m *mockUserRepo) ListTransactions(userID uint, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for i := len(m.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.txs[i].UserID == userID {
			out = append(out, m.txs[i])
		}
	}
	return out, nil
}

func (m *mockUserRepo) InsertReferralRelation(rel *models.ReferralRelation) (bool, error) {
	key := [2]uint{rel.UserID, rel.ReferrerID}
	if _, exists := m.relations[key]; exists {
		return false, nil
	}
	m.relations[key] = rel
	return true, nil
}

func (m *mockUserRepo) GetReferralStats(referrerID uint) (*models.ReferralStats, error) {
	stats := &models.ReferralStats{}
	for key := range m.relations {
		if key[1] == referrerID {
			stats.InvitedCount++
		}
	}
	for _, tx := range m.txs {
		if tx.UserID == referrerID && tx.Type == models.TxTypeReferralBonus {
			stats.TotalEarned += tx.Amount
		}
	}
	return stats, nil
}

// mockProfileCache хранит профили в памяти
type mockProfileCache struct {
	profiles map[int64]*models.User
}

func newMockProfileCache() *mockProfileCache {
	return &mockProfileCache{profiles: make(map[int64]*models.User)}
}

func (m *mockProfileCache) GetProfile(ctx context.Context, telegramID int64) (*models.User, error) {
	user, ok := m.profiles[telegramID]
	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	return user, nil
}

func (m *mockProfileCache) SetProfile(ctx context.Context, user *models.User) error {
	m.profiles[user.TelegramID] = user
	return nil
}

func (m *mockProfileCache) InvalidateProfile(ctx context.Context, telegramID int64) error {
	delete(m.profiles, telegramID)
	return nil
}

// mockGameRepo хранит игровые состояния и счетчики тапов в памяти
type mockGameRepo struct {
	states map[uint]*models.GameState
	taps   map[string]int64
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		states: make(map[uint]*models.GameState),
		taps:   make(map[string]int64),
	}
}

func (m *mockGameRepo) GetOrCreateState(userID uint, energyMax int, now time.Time) (*models.GameState, error) {
	if state, ok := m.states[userID]; ok {
		return state, nil
	}
	state := &models.GameState{
		UserID:           userID,
		Energy:           energyMax,
		EnergyMax:        energyMax,
		Level:            1,
		XPToNext:         1000,
		ActiveSkin:       models.DefaultSkin,
		LastEnergyUpdate: now,
	}
	m.states[userID] = state
	return state, nil
}

func (m *mockGameRepo) RegenerateEnergy(userID uint, ratePerSec float64, now time.Time) (*models.GameState, int, error) {
	state, ok := m.states[userID]
	if !ok {
		return nil, 0, gorm.ErrRecordNotFound
	}
	restored := int(now.Sub(state.LastEnergyUpdate).Seconds() * ratePerSec)
	if state.Energy+restored > state.EnergyMax {
		restored = state.EnergyMax - state.Energy
	}
	if restored > 0 {
		state.Energy += restored
		state.LastEnergyUpdate = now
	}
	return state, restored, nil
}

func (m *mockGameRepo) ProcessTaps(userID uint, taps int, bulPerTap, xpPerTap int64) (*models.TapResult, error) {
	state, ok := m.states[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	spent := taps
	if spent > state.Energy {
		spent = state.Energy
	}
	state.Energy -= spent
	state.BalanceBul += int64(spent) * bulPerTap
	return &models.TapResult{
		Success:    spent > 0,
		BulEarned:  int64(spent) * bulPerTap,
		BalanceBul: state.BalanceBul,
		Energy:     state.Energy,
		Level:      state.Level,
	}, nil
}

func (m *mockGameRepo) SetActiveSkin(userID uint, skin string) error {
	if state, ok := m.states[userID]; ok {
		state.ActiveSkin = skin
	}
	return nil
}

func (m *mockGameRepo) GetTapCount(userName string) (int64, error) {
	return m.taps[userName], nil
}

func (m *mockGameRepo) UpsertTaps(userName string, delta int64, now time.Time) error {
	m.taps[userName] += delta
	return nil
}

func (m *mockGameRepo) TopTapScores(limit int) ([]models.TapScore, error) {
	var scores []models.TapScore
	for name, count := range m.taps {
		scores = append(scores, models.TapScore{UserName: name, TapsCount: count})
	}
	for i := 0; i < len(scores); i++ {
		for j := i + 1; j < len(scores); j++ {
			if scores[j].TapsCount > scores[i].TapsCount {
				scores[i], scores[j] = scores[j], scores[i]
			}
		}
	}
	if len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}

// mockGameCache хранит кэш и публикации в памяти
type mockGameCache struct {
	states         map[uint]*models.GameState
	leaderboard    []models.TapScore
	hasLeaderboard bool
	enabled        bool
	enabledSet     bool
	tapEvents      []redisrepo.TapEvent
	settingsEvents []redisrepo.SettingsEvent
}

func newMockGameCache() *mockGameCache {
	return &mockGameCache{states: make(map[uint]*models.GameState)}
}

func (m *mockGameCache) GetGameState(ctx context.Context, userID uint) (*models.GameState, error) {
	state, ok := m.states[userID]
	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	return state, nil
}

func (m *mockGameCache) SetGameState(ctx context.Context, state *models.GameState) error {
	m.states[state.UserID] = state
	return nil
}

func (m *mockGameCache) InvalidateGameState(ctx context.Context, userID uint) error {
	delete(m.states, userID)
	return nil
}

func (m *mockGameCache) GetLeaderboard(ctx context.Context) ([]models.TapScore, error) {
	if !m.hasLeaderboard {
		return nil, apperrors.ErrCacheMiss
	}
	return m.leaderboard, nil
}

func (m *mockGameCache) SetLeaderboard(ctx context.Context, scores []models.TapScore) error {
	m.leaderboard = scores
	m.hasLeaderboard = true
	return nil
}

func (m *mockGameCache) TapGameEnabled(ctx context.Context) (bool, error) {
	if !m.enabledSet {
		return true, nil
	}
	return m.enabled, nil
}

func (m *mockGameCache) SetTapGameEnabled(ctx context.Context, enabled bool) error {
	m.enabled = enabled
	m.enabledSet = true
	return nil
}

func (m *mockGameCache) PublishTapEvent(ctx context.Context, event redisrepo.TapEvent) error {
	m.tapEvents = append(m.tapEvents, event)
	return nil
}

func (m *mockGameCache) PublishSettingsEvent(ctx context.Context, event redisrepo.SettingsEvent) error {
	m.settingsEvents = append(m.settingsEvents, event)
	return nil
}
