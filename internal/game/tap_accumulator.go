package game

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Committer определяет контракт фиксации накопленных тапов
type Committer interface {
	CommitStreamTaps(ctx context.Context, userName string, delta int64) (int64, error)
}

// TapAccumulator накапливает тапы стрим-игры и сбрасывает их в хранилище
// с дебаунсом: таймер перевзводится каждым тапом, запись происходит
// после паузы. Оптимистичный счетчик растет мгновенно.
type TapAccumulator struct {
	committer Committer
	debounce  time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]int64
	known   map[string]int64
	timers  map[string]*time.Timer
	closed  bool
}

// NewTapAccumulator создает новый экземпляр TapAccumulator
func NewTapAccumulator(committer Committer, debounce time.Duration, logger *zap.Logger) *TapAccumulator {
	return &TapAccumulator{
		committer: committer,
		debounce:  debounce,
		logger:    logger,
		pending:   make(map[string]int64),
		known:     make(map[string]int64),
		timers:    make(map[string]*time.Timer),
	}
}

// Seed задает известный зафиксированный счетчик пользователя.
// Вызывается при входе, чтобы оптимистичный счетчик стартовал с базы.
func (a *TapAccumulator) Seed(userName string, total int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.known[userName] = total
}

// Tap учитывает тапы и возвращает оптимистичный счетчик.
// Каждый тап перевзводит таймер сброса.
func (a *TapAccumulator) Tap(userName string, n int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed || n <= 0 {
		return a.known[userName] + a.pending[userName]
	}

	a.pending[userName] += n
	a.armLocked(userName)

	return a.known[userName] + a.pending[userName]
}

// armLocked перевзводит таймер сброса; вызывается только под мьютексом
func (a *TapAccumulator) armLocked(userName string) {
	if timer, ok := a.timers[userName]; ok {
		timer.Stop()
	}
	a.timers[userName] = time.AfterFunc(a.debounce, func() {
		if err := a.Flush(context.Background(), userName); err != nil {
			a.logger.Warn("Deferred tap flush failed",
				zap.String("user_name", userName),
				zap.Error(err))
		}
	})
}

// Pending возвращает количество еще не зафиксированных тапов
func (a *TapAccumulator) Pending(userName string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending[userName]
}

// Optimistic возвращает оптимистичный счетчик пользователя
func (a *TapAccumulator) Optimistic(userName string) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.known[userName] + a.pending[userName]
}

// Flush фиксирует накопленные тапы пользователя.
// Пустая пачка записи не порождает. При сбое тапы возвращаются
// в накопитель, таймер перевзводится и ретрай уходит сам,
// без ожидания новых тапов.
func (a *TapAccumulator) Flush(ctx context.Context, userName string) error {
	a.mu.Lock()
	delta := a.pending[userName]
	a.pending[userName] = 0
	if timer, ok := a.timers[userName]; ok {
		timer.Stop()
		delete(a.timers, userName)
	}
	a.mu.Unlock()

	if delta == 0 {
		return nil
	}

	total, err := a.committer.CommitStreamTaps(ctx, userName, delta)
	if err != nil {
		a.mu.Lock()
		a.pending[userName] += delta
		if !a.closed {
			a.armLocked(userName)
		}
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.known[userName] = total
	a.mu.Unlock()
	return nil
}

// FlushAll фиксирует накопленные тапы всех пользователей.
// Вызывается при завершении работы сервиса.
func (a *TapAccumulator) FlushAll(ctx context.Context) error {
	a.mu.Lock()
	names := make([]string, 0, len(a.pending))
	for name, delta := range a.pending {
		if delta > 0 {
			names = append(names, name)
		}
	}
	a.mu.Unlock()

	var lastErr error
	for _, name := range names {
		if err := a.Flush(ctx, name); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close останавливает таймеры и фиксирует остатки
func (a *TapAccumulator) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	for name, timer := range a.timers {
		timer.Stop()
		delete(a.timers, name)
	}
	a.mu.Unlock()

	return a.FlushAll(ctx)
}
