package http

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/aleksandrbekk/AR-ARENA-REACT-sub001/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamSubscriber определяет контракт подписки на события стрим-игры
type StreamSubscriber interface {
	SubscribeTaps(ctx context.Context) *redis.PubSub
	SubscribeSettings(ctx context.Context) *redis.PubSub
}

// sseEvent представляет одно исходящее событие SSE
type sseEvent struct {
	Name string
	Data string
}

// energyEvent представляет пуш-уведомление о доначислении энергии
type energyEvent struct {
	UserID         uint `json:"user_id"`
	Energy         int  `json:"energy"`
	EnergyMax      int  `json:"energy_max"`
	EnergyRestored int  `json:"energy_restored"`
}

// EventHub транслирует события счетчиков тапов, настроек стрим-игры
// и энергии подключенным SSE-клиентам. События тапов и настроек
// приходят из Redis pub/sub, события энергии — из фоновой регенерации.
type EventHub struct {
	subscriber StreamSubscriber
	logger     *zap.Logger

	mu      sync.Mutex
	clients map[chan sseEvent]struct{}
}

// NewEventHub создает новый экземпляр EventHub
func NewEventHub(subscriber StreamSubscriber, logger *zap.Logger) *EventHub {
	return &EventHub{
		subscriber: subscriber,
		logger:     logger,
		clients:    make(map[chan sseEvent]struct{}),
	}
}

// Run пересылает события Redis подключенным клиентам до отмены контекста
func (h *EventHub) Run(ctx context.Context) {
	taps := h.subscriber.SubscribeTaps(ctx)
	defer taps.Close()
	settings := h.subscriber.SubscribeSettings(ctx)
	defer settings.Close()

	h.logger.Info("Event hub started")

	tapCh := taps.Channel()
	settingsCh := settings.Channel()
	for {
		select {
		case msg, ok := <-tapCh:
			if !ok {
				return
			}
			h.broadcast(sseEvent{Name: "taps", Data: msg.Payload})
		case msg, ok := <-settingsCh:
			if !ok {
				return
			}
			h.broadcast(sseEvent{Name: "settings", Data: msg.Payload})
		case <-ctx.Done():
			h.logger.Info("Event hub stopped")
			return
		}
	}
}

// EnergyUpdate рассылает снимок энергии после фонового доначисления.
// Подключается к EnergyPoller как обработчик обновлений.
func (h *EventHub) EnergyUpdate(userID uint, snapshot *models.EnergySnapshot) {
	payload, err := json.Marshal(energyEvent{
		UserID:         userID,
		Energy:         snapshot.Energy,
		EnergyMax:      snapshot.EnergyMax,
		EnergyRestored: snapshot.EnergyRestored,
	})
	if err != nil {
		return
	}
	h.broadcast(sseEvent{Name: "energy", Data: string(payload)})
}

// subscribe регистрирует клиентский канал
func (h *EventHub) subscribe() chan sseEvent {
	ch := make(chan sseEvent, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// unsubscribe снимает регистрацию клиентского канала
func (h *EventHub) unsubscribe(ch chan sseEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// broadcast рассылает событие всем клиентам.
// Медленный клиент теряет событие, но не блокирует остальных.
func (h *EventHub) broadcast(ev sseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}
