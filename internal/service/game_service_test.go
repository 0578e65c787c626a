package service

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func newGameService(repo *mockGameRepo, cache *mockGameCache) *GameService {
	return NewGameService(repo, cache, testGameConfig(), zap.NewNop())
}

func TestGetGameStateCreatesOnFirstAccess(t *testing.T) {
	repo := newMockGameRepo()
	svc := newGameService(repo, newMockGameCache())

	state, err := svc.GetGameState(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Energy != 100 || state.Level != 1 {
		t.Errorf("unexpected initial state: %+v", state)
	}
}

func TestRestoreEnergy(t *testing.T) {
	repo := newMockGameRepo()
	cache := newMockGameCache()
	svc := newGameService(repo, cache)

	// Создаем состояние и тратим энергию
	state, _ := repo.GetOrCreateState(7, 100, timeAgo(60))
	state.Energy = 40

	snapshot, err := svc.RestoreEnergy(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.EnergyRestored == 0 {
		t.Error("expected energy to be restored after idle time")
	}
	if snapshot.Energy > snapshot.EnergyMax {
		t.Errorf("energy above max: %+v", snapshot)
	}
}

func TestProcessBullTapsZeroBatch(t *testing.T) {
	svc := newGameService(newMockGameRepo(), newMockGameCache())

	result, err := svc.ProcessBullTaps(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("empty batch must not succeed")
	}
}

func TestProcessBullTapsInvalidatesCache(t *testing.T) {
	repo := newMockGameRepo()
	cache := newMockGameCache()
	svc := newGameService(repo, cache)

	state, _ := repo.GetOrCreateState(7, 100, timeAgo(0))
	cache.SetGameState(context.Background(), state)

	result, err := svc.ProcessBullTaps(context.Background(), 7, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BulEarned != 10 {
		t.Errorf("expected 10 bul earned, got %d", result.BulEarned)
	}
	if _, err := cache.GetGameState(context.Background(), 7); err == nil {
		t.Error("stale game state must be evicted after taps")
	}
}

func TestCommitStreamTapsPublishesTotal(t *testing.T) {
	repo := newMockGameRepo()
	cache := newMockGameCache()
	svc := newGameService(repo, cache)

	total, err := svc.CommitStreamTaps(context.Background(), "bull_rider", 15)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 15 {
		t.Errorf("expected total 15, got %d", total)
	}

	total, err = svc.CommitStreamTaps(context.Background(), "bull_rider", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 20 {
		t.Errorf("counter must accumulate, got %d", total)
	}

	if len(cache.tapEvents) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(cache.tapEvents))
	}
	if cache.tapEvents[1].TapsCount != 20 {
		t.Errorf("event must carry the new total, got %d", cache.tapEvents[1].TapsCount)
	}
}

func TestTopScoresLimit(t *testing.T) {
	repo := newMockGameRepo()
	svc := newGameService(repo, newMockGameCache())

	names := []string{"a", "b", "c", "d", "e", "f", "g"}
	for i, name := range names {
		repo.taps[name] = int64((i + 1) * 10)
	}

	scores, err := svc.TopScores(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scores) != 5 {
		t.Errorf("expected top-5, got %d entries", len(scores))
	}
	if scores[0].TapsCount != 70 {
		t.Errorf("expected leader with 70 taps, got %d", scores[0].TapsCount)
	}
}

func TestSetTapGameEnabledPublishes(t *testing.T) {
	cache := newMockGameCache()
	svc := newGameService(newMockGameRepo(), cache)

	enabled, err := svc.TapGameEnabled(context.Background())
	if err != nil || !enabled {
		t.Fatalf("game must be enabled by default, got %v %v", enabled, err)
	}

	if err := svc.SetTapGameEnabled(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	enabled, _ = svc.TapGameEnabled(context.Background())
	if enabled {
		t.Error("expected game to be disabled")
	}
	if len(cache.settingsEvents) != 1 || cache.settingsEvents[0].TapGameEnabled {
		t.Errorf("expected disable event, got %+v", cache.settingsEvents)
	}
}
