package config

import (
	"time"
)

// ResilienceConfig содержит настройки механизмов отказоустойчивости
// для обращений к PostgreSQL и Redis
type ResilienceConfig struct {
	// FailureThreshold количество ошибок, после которого circuit breaker откроется
	FailureThreshold int
	// ResetTimeout время, через которое circuit breaker перейдет в полуоткрытое состояние
	ResetTimeout time.Duration
	// MaxRetries максимальное количество повторных попыток
	MaxRetries int
	// InitialBackoff начальная задержка между попытками
	InitialBackoff time.Duration
	// MaxBackoff максимальная задержка между попытками
	MaxBackoff time.Duration
	// DatabaseTimeout таймаут одной операции с базой данных
	DatabaseTimeout time.Duration
	// RedisTimeout таймаут одной операции с Redis
	RedisTimeout time.Duration
}

// DefaultResilienceConfig возвращает конфигурацию отказоустойчивости по умолчанию
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		MaxRetries:       3,
		InitialBackoff:   100 * time.Millisecond,
		MaxBackoff:       2 * time.Second,
		DatabaseTimeout:  3 * time.Second,
		RedisTimeout:     1 * time.Second,
	}
}
