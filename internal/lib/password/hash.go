// Package password реализует хеширование и проверку паролей пользователей.
//
// GetHash создает bcrypt-хеш с фиксированной стоимостью Cost.
// CompareHash сверяет сохраненный хеш с введенным паролем.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Cost — фиксированный work factor bcrypt (2^10 раундов).
const Cost = 10

// ErrMismatch возвращается, если пароль не соответствует хешу.
var ErrMismatch = errors.New("password does not match")

// GetHash принимает пароль пользователя и возвращает его bcrypt-хеш.
// Соль генерируется bcrypt для каждого вызова.
func GetHash(password string) (string, error) {
	const op = "password.GetHash"
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashedPassword), nil
}

// CompareHash сравнивает bcrypt-хеш с введенным паролем.
//
// Возвращает nil при совпадении, ErrMismatch при неверном пароле
// и обернутую ошибку, если хеш поврежден.
func CompareHash(originalHash, externalPassword string) error {
	const op = "password.CompareHash"
	err := bcrypt.CompareHashAndPassword([]byte(originalHash), []byte(externalPassword))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("%s: %w", op, ErrMismatch)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
