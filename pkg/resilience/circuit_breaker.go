package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState представляет состояние circuit breaker
type CircuitState int

const (
	// CircuitClosed означает, что circuit breaker закрыт (нормальное состояние)
	CircuitClosed CircuitState = iota
	// CircuitOpen означает, что circuit breaker открыт (состояние ошибки)
	CircuitOpen
	// CircuitHalfOpen означает, что circuit breaker полуоткрыт (пробное состояние)
	CircuitHalfOpen
)

// ErrCircuitOpen возвращается, когда circuit breaker не пропускает запросы
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker реализует паттерн circuit breaker для защиты внешних зависимостей
type CircuitBreaker struct {
	state            CircuitState
	failureCount     int
	failureThreshold int
	resetTimeout     time.Duration
	lastStateChange  time.Time
	mutex            sync.RWMutex
	logger           *zap.Logger
	ignoredErrors    []error
}

// NewCircuitBreaker создает новый экземпляр CircuitBreaker.
// Ошибки из ignoredErrors (например, "запись не найдена") не увеличивают
// счетчик отказов.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, logger *zap.Logger, ignoredErrors ...error) *CircuitBreaker {
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		lastStateChange:  time.Now(),
		logger:           logger,
		ignoredErrors:    ignoredErrors,
	}
}

// Execute выполняет функцию с учетом состояния circuit breaker
func (cb *CircuitBreaker) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if !cb.allowRequest() {
		cb.logger.Warn("Circuit breaker preventing operation execution",
			zap.String("operation", operation),
			zap.String("state", cb.stateString()))
		return ErrCircuitOpen
	}

	err := fn(ctx)
	cb.handleResult(operation, err)

	return err
}

// State возвращает текущее состояние circuit breaker
func (cb *CircuitBreaker) State() CircuitState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

// allowRequest проверяет, можно ли выполнить запрос в текущем состоянии
func (cb *CircuitBreaker) allowRequest() bool {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		// По истечении resetTimeout пропускаем пробный запрос;
		// само состояние сменится в handleResult
		return time.Since(cb.lastStateChange) > cb.resetTimeout
	case CircuitHalfOpen:
		return true
	default:
		return false
	}
}

// handleResult обрабатывает результат выполнения функции
func (cb *CircuitBreaker) handleResult(operation string, err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastStateChange) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.lastStateChange = time.Now()
		cb.logger.Info("Circuit breaker transitioned to half-open",
			zap.String("operation", operation))
	}

	// Игнорируемые ошибки не влияют на состояние
	if err != nil && cb.isIgnoredError(err) {
		return
	}

	if err != nil {
		switch cb.state {
		case CircuitClosed:
			cb.failureCount++
			if cb.failureCount >= cb.failureThreshold {
				cb.state = CircuitOpen
				cb.lastStateChange = time.Now()
				cb.logger.Warn("Circuit breaker opened",
					zap.String("operation", operation),
					zap.Int("failures", cb.failureCount))
			}
		case CircuitHalfOpen:
			// Пробный запрос провалился — снова открываемся
			cb.state = CircuitOpen
			cb.lastStateChange = time.Now()
			cb.logger.Warn("Circuit breaker reopened after failed trial",
				zap.String("operation", operation))
		}
		return
	}

	// Успех
	switch cb.state {
	case CircuitHalfOpen:
		cb.state = CircuitClosed
		cb.failureCount = 0
		cb.lastStateChange = time.Now()
		cb.logger.Info("Circuit breaker closed after successful trial",
			zap.String("operation", operation))
	case CircuitClosed:
		cb.failureCount = 0
	}
}

// isIgnoredError проверяет, входит ли ошибка в список игнорируемых
func (cb *CircuitBreaker) isIgnoredError(err error) bool {
	for _, ignored := range cb.ignoredErrors {
		if errors.Is(err, ignored) {
			return true
		}
	}
	return false
}

// stateString возвращает строковое представление состояния
func (cb *CircuitBreaker) stateString() string {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()

	switch cb.state {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
