package game

import (
	"context"
	"sync"
	"time"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"go.uber.org/zap"
)

// EnergyRestorer определяет контракт серверной регенерации энергии
type EnergyRestorer interface {
	RestoreEnergy(ctx context.Context, userID uint) (*models.EnergySnapshot, error)
}

// EnergyPoller периодически доначисляет энергию активным сессиям.
// Сбой отдельного пользователя не останавливает цикл: следующий тик
// догонит пропущенное время. Сессия без активности дольше idleTTL
// выбывает из списка, повторная активность возвращает ее обратно.
type EnergyPoller struct {
	restorer EnergyRestorer
	interval time.Duration
	idleTTL  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	watched map[uint]time.Time

	// onUpdate вызывается после успешного доначисления (для пуша клиенту)
	onUpdate func(userID uint, snapshot *models.EnergySnapshot)
}

// NewEnergyPoller создает новый экземпляр EnergyPoller
func NewEnergyPoller(restorer EnergyRestorer, interval, idleTTL time.Duration, logger *zap.Logger) *EnergyPoller {
	return &EnergyPoller{
		restorer: restorer,
		interval: interval,
		idleTTL:  idleTTL,
		logger:   logger,
		watched:  make(map[uint]time.Time),
	}
}

// OnUpdate регистрирует обработчик успешных доначислений
func (p *EnergyPoller) OnUpdate(fn func(userID uint, snapshot *models.EnergySnapshot)) {
	p.onUpdate = fn
}

// Watch добавляет пользователя в список активных сессий
// или продлевает существующую сессию
func (p *EnergyPoller) Watch(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watched[userID] = time.Now()
}

// Unwatch убирает пользователя из списка активных сессий
func (p *EnergyPoller) Unwatch(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.watched, userID)
}

// Run запускает цикл опроса до отмены контекста
func (p *EnergyPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Energy poller started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ticker.C:
			p.tick(ctx)
		case <-ctx.Done():
			p.logger.Info("Energy poller stopped")
			return
		}
	}
}

// tick доначисляет энергию всем активным сессиям.
// Простоявшие сессии выбывают здесь же: иначе список рос бы
// со временем безгранично.
func (p *EnergyPoller) tick(ctx context.Context) {
	now := time.Now()

	p.mu.Lock()
	ids := make([]uint, 0, len(p.watched))
	for id, lastSeen := range p.watched {
		if p.idleTTL > 0 && now.Sub(lastSeen) > p.idleTTL {
			delete(p.watched, id)
			continue
		}
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		snapshot, err := p.restorer.RestoreEnergy(ctx, id)
		if err != nil {
			p.logger.Warn("Energy restore failed",
				zap.Uint("user_id", id),
				zap.Error(err))
			continue
		}
		if p.onUpdate != nil && snapshot.EnergyRestored > 0 {
			p.onUpdate(id, snapshot)
		}
	}
}
