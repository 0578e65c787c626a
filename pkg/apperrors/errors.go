package apperrors

import (
	"errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Сигнальные ошибки доменного уровня
var (
	// ErrNotFound возвращается, когда запись не найдена (обобщенная ошибка)
	ErrNotFound = errors.New("запись не найдена")

	// ErrCacheMiss возвращается, когда запись не найдена в кэше
	ErrCacheMiss = redis.Nil

	// ErrRecordNotFound возвращается, когда запись не найдена в базе данных
	ErrRecordNotFound = gorm.ErrRecordNotFound

	// ErrUserBlocked возвращается при попытке авторизации заблокированного пользователя
	ErrUserBlocked = errors.New("пользователь заблокирован")

	// ErrReferrerNotFound возвращается, когда реферер по коду не найден
	ErrReferrerNotFound = errors.New("реферер не найден")

	// ErrSelfReferral возвращается при попытке стать собственным реферером
	ErrSelfReferral = errors.New("нельзя быть собственным реферером")

	// ErrAlreadyLinked возвращается, когда реферальная связь уже существует
	ErrAlreadyLinked = errors.New("реферальная связь уже существует")

	// IgnoredErrors содержит список всех игнорируемых ошибок для circuit breaker
	IgnoredErrors = []error{
		ErrNotFound,
		ErrCacheMiss,
		ErrRecordNotFound,
		ErrUserBlocked,
		ErrReferrerNotFound,
		ErrSelfReferral,
		ErrAlreadyLinked,
	}
)

// IsNotFound проверяет, является ли ошибка ошибкой "запись не найдена"
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCacheMiss) ||
		errors.Is(err, ErrRecordNotFound)
}
