package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	goredis "github.com/redis/go-redis/v9"
)

// setupTestRedis создает тестовый Redis на основе miniredis
func setupTestRedis(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	return NewCacheRepository(client), mr
}

func TestProfileCacheRoundTrip(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	user := &models.User{
		ID:         7,
		TelegramID: 100500,
		Username:   "bull_rider",
		BalanceAR:  150,
	}

	if err := repo.SetProfile(ctx, user); err != nil {
		t.Fatalf("failed to set profile: %v", err)
	}

	cached, err := repo.GetProfile(ctx, 100500)
	if err != nil {
		t.Fatalf("failed to get profile: %v", err)
	}
	if cached.Username != "bull_rider" || cached.BalanceAR != 150 {
		t.Errorf("cached profile mismatch: %+v", cached)
	}
}

func TestProfileCacheMiss(t *testing.T) {
	repo, _ := setupTestRedis(t)

	_, err := repo.GetProfile(context.Background(), 42)
	if err != goredis.Nil {
		t.Errorf("expected redis.Nil on miss, got %v", err)
	}
}

func TestGameStateCacheExpires(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	state := &models.GameState{
		UserID:    7,
		Energy:    80,
		EnergyMax: 100,
		Level:     2,
	}

	if err := repo.SetGameState(ctx, state); err != nil {
		t.Fatalf("failed to set game state: %v", err)
	}

	cached, err := repo.GetGameState(ctx, 7)
	if err != nil {
		t.Fatalf("failed to get game state: %v", err)
	}
	if cached.Energy != 80 {
		t.Errorf("expected energy 80, got %d", cached.Energy)
	}

	mr.FastForward(time.Minute)

	if _, err := repo.GetGameState(ctx, 7); err != goredis.Nil {
		t.Errorf("expected expired state to miss, got %v", err)
	}
}

func TestTapGameEnabledDefaultsToTrue(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	enabled, err := repo.TapGameEnabled(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !enabled {
		t.Error("missing flag must mean the game is enabled")
	}

	if err := repo.SetTapGameEnabled(ctx, false); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	enabled, err = repo.TapGameEnabled(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if enabled {
		t.Error("expected game to be disabled")
	}
}

func TestPublishTapEvent(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	sub := repo.SubscribeTaps(ctx)
	defer sub.Close()

	// Дожидаемся регистрации подписки
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	err := repo.PublishTapEvent(ctx, TapEvent{UserName: "bull_rider", TapsCount: 42})
	if err != nil {
		t.Fatalf("failed to publish: %v", err)
	}

	select {
	case msg := <-sub.Channel():
		if msg.Channel != ChannelTaps {
			t.Errorf("unexpected channel %s", msg.Channel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tap event was not delivered")
	}
}

func TestLeaderboardCache(t *testing.T) {
	repo, _ := setupTestRedis(t)
	ctx := context.Background()

	scores := []models.TapScore{
		{UserName: "first", TapsCount: 300},
		{UserName: "second", TapsCount: 200},
	}

	if err := repo.SetLeaderboard(ctx, scores); err != nil {
		t.Fatalf("failed to set leaderboard: %v", err)
	}

	cached, err := repo.GetLeaderboard(ctx)
	if err != nil {
		t.Fatalf("failed to get leaderboard: %v", err)
	}
	if len(cached) != 2 || cached[0].UserName != "first" {
		t.Errorf("leaderboard mismatch: %+v", cached)
	}
}
