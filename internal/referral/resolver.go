package referral

import (
	"net/url"
	"strings"
)

// CodePrefix — транспортный префикс реферального кода.
// Формат ref_<telegram_id> должен сохраняться бит-в-бит: такие ссылки
// уже розданы пользователям.
const CodePrefix = "ref_"

// LaunchParams содержит все избыточные каналы, через которые реферальный
// код может попасть в запуск Mini App. Любое поле может быть пустым.
type LaunchParams struct {
	// StartParam — start_param из initDataUnsafe (основной канал Telegram)
	StartParam string
	// URLHash — фрагмент URL без ведущего '#'
	URLHash string
	// QueryStartApp — query-параметр startapp
	QueryStartApp string
	// QueryRef — query-параметр ref (голый telegram_id без префикса)
	QueryRef string
	// InitData — сырая строка initData, парсится как query string
	InitData string
}

// ResolveCode возвращает реферальный код из запускового контекста или пустую
// строку. Источники проверяются в фиксированном порядке, берется первый
// непустой. Чистая функция, не выполняет I/O и никогда не завершается ошибкой.
func ResolveCode(p LaunchParams) string {
	code := firstCandidate(p)

	// Итоговая форма: либо пусто, либо код с префиксом ref_
	if !strings.HasPrefix(code, CodePrefix) {
		return ""
	}

	return code
}

// ReferrerTelegramID извлекает telegram_id реферера из кода.
// Возвращает пустую строку, если код не имеет ожидаемой формы.
func ReferrerTelegramID(code string) string {
	if !strings.HasPrefix(code, CodePrefix) {
		return ""
	}
	return strings.TrimPrefix(code, CodePrefix)
}

// firstCandidate перебирает источники по убыванию приоритета
func firstCandidate(p LaunchParams) string {
	// 1. Основной способ — start_param из initDataUnsafe
	if p.StartParam != "" {
		return p.StartParam
	}

	// 2. Через HASH в URL: отрезаем все после '?', требуем префикс ref_
	if p.URLHash != "" {
		hashValue := p.URLHash
		if idx := strings.Index(hashValue, "?"); idx >= 0 {
			hashValue = hashValue[:idx]
		}
		if strings.HasPrefix(hashValue, CodePrefix) {
			return hashValue
		}
	}

	// 3. Резервный способ — query-параметр startapp
	if p.QueryStartApp != "" {
		return p.QueryStartApp
	}

	// 4. Резервный способ — query-параметр ref, код синтезируется
	if p.QueryRef != "" {
		return CodePrefix + p.QueryRef
	}

	// 5. Ручной парсинг сырого initData
	if p.InitData != "" {
		if values, err := url.ParseQuery(p.InitData); err == nil {
			return values.Get("start_param")
		}
	}

	return ""
}
