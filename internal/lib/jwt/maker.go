// Package jwt реализует выпуск и проверку сессионных bearer-токенов.
//
// Токен не хранится на сервере: он подписан HS256 общим секретом процесса
// и содержит идентификатор пользователя, время выпуска и срок действия.
package jwt

import (
	"errors"
	"time"
)

// DefaultTTL — срок действия токена по умолчанию.
const DefaultTTL = 7 * 24 * time.Hour

// Ошибки проверки токена. Вызывающий код различает их через errors.Is.
var (
	ErrTokenMissing = errors.New("token missing")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrEmptySecret  = errors.New("jwt secret is empty")
)

// Maker описывает выпуск и разбор токенов.
type Maker interface {
	// GenerateToken выпускает токен для пользователя.
	GenerateToken(userID string) (string, error)
	// ParseToken проверяет подпись и срок действия и возвращает claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl реализует Maker на общем секрете и фиксированном TTL.
type MakerImpl struct {
	secretKey []byte           // Секрет подписи.
	tokenTTL  time.Duration    // Время жизни токена.
	now       func() time.Time // Источник текущего времени.
}

// Option настраивает MakerImpl.
type Option func(*MakerImpl)

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(m *MakerImpl) {
		m.now = now
	}
}

// NewJWTMaker создает MakerImpl. Пустой секрет считается ошибкой конфигурации.
// Нулевой или отрицательный ttl заменяется на DefaultTTL.
func NewJWTMaker(secretKey string, ttl time.Duration, opts ...Option) (*MakerImpl, error) {
	if secretKey == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &MakerImpl{
		secretKey: []byte(secretKey),
		tokenTTL:  ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL возвращает время жизни выпускаемых токенов.
func (j *MakerImpl) TTL() time.Duration {
	return j.tokenTTL
}
