package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"go.uber.org/zap"
)

// fakeRestorer считает вызовы регенерации
type fakeRestorer struct {
	mu      sync.Mutex
	calls   map[uint]int
	failFor map[uint]bool
}

func newFakeRestorer() *fakeRestorer {
	return &fakeRestorer{
		calls:   make(map[uint]int),
		failFor: make(map[uint]bool),
	}
}

func (f *fakeRestorer) RestoreEnergy(ctx context.Context, userID uint) (*models.EnergySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[userID] {
		return nil, errors.New("storage unavailable")
	}
	f.calls[userID]++
	return &models.EnergySnapshot{Energy: 50, EnergyMax: 100, EnergyRestored: 5}, nil
}

func (f *fakeRestorer) callCount(userID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[userID]
}

func TestEnergyPollerRestoresWatchedUsers(t *testing.T) {
	restorer := newFakeRestorer()
	poller := NewEnergyPoller(restorer, 10*time.Millisecond, time.Hour, zap.NewNop())

	poller.Watch(7)
	poller.Watch(8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	if restorer.callCount(7) == 0 || restorer.callCount(8) == 0 {
		t.Error("watched users must be polled")
	}
}

func TestEnergyPollerUnwatchStopsPolling(t *testing.T) {
	restorer := newFakeRestorer()
	poller := NewEnergyPoller(restorer, 10*time.Millisecond, time.Hour, zap.NewNop())

	poller.Watch(7)
	poller.Unwatch(7)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)
	cancel()
	<-done

	if restorer.callCount(7) != 0 {
		t.Error("unwatched user must not be polled")
	}
}

func TestEnergyPollerSurvivesFailures(t *testing.T) {
	restorer := newFakeRestorer()
	restorer.failFor[7] = true
	poller := NewEnergyPoller(restorer, 10*time.Millisecond, time.Hour, zap.NewNop())

	poller.Watch(7)
	poller.Watch(8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	// Сбой одного пользователя не останавливает остальных
	if restorer.callCount(8) == 0 {
		t.Error("healthy user must still be polled")
	}
}

func TestEnergyPollerEvictsIdleSessions(t *testing.T) {
	restorer := newFakeRestorer()
	poller := NewEnergyPoller(restorer, 10*time.Millisecond, 20*time.Millisecond, zap.NewNop())

	poller.Watch(7)
	time.Sleep(30 * time.Millisecond)

	// Простоявшая сессия выбывает на тике и не опрашивается
	poller.tick(context.Background())
	if restorer.callCount(7) != 0 {
		t.Errorf("idle session must be evicted, got %d polls", restorer.callCount(7))
	}

	poller.mu.Lock()
	_, stillWatched := poller.watched[7]
	poller.mu.Unlock()
	if stillWatched {
		t.Error("idle session must be removed from the watch list")
	}

	// Новая активность возвращает сессию в опрос
	poller.Watch(7)
	poller.tick(context.Background())
	if restorer.callCount(7) != 1 {
		t.Errorf("re-watched session must be polled, got %d polls", restorer.callCount(7))
	}
}

func TestEnergyPollerOnUpdateCallback(t *testing.T) {
	restorer := newFakeRestorer()
	poller := NewEnergyPoller(restorer, 10*time.Millisecond, time.Hour, zap.NewNop())

	var mu sync.Mutex
	updates := 0
	poller.OnUpdate(func(userID uint, snapshot *models.EnergySnapshot) {
		mu.Lock()
		updates++
		mu.Unlock()
	})

	poller.Watch(7)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if updates == 0 {
		t.Error("expected update callbacks")
	}
}
