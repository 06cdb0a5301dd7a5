// Package models содержит доменные структуры: пользователя, замер коробки
// и событие жизненного цикла замера.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
// Пароль хранится только как bcrypt-хеш.
type User struct {
	UUID         string    `json:"uuid"`       // Уникальный идентификатор пользователя
	Username     string    `json:"username"`   // Имя пользователя (уникальное)
	Name         string    `json:"name"`       // Отображаемое имя
	Email        string    `json:"email"`      // Электронная почта (уникальная)
	PasswordHash string    `json:"-"`          // Хеш пароля, не сериализуется
	CreatedAt    time.Time `json:"created_at"` // Дата регистрации
}

// PublicUser — безопасная проекция пользователя без хеша пароля.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
}

// Public возвращает безопасную проекцию пользователя.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:       u.UUID,
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
	}
}

// SignupInput содержит входные данные регистрации.
type SignupInput struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginInput содержит входные данные входа.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult — токен и проекция пользователя, возвращаемые при регистрации и входе.
type AuthResult struct {
	Token string     `json:"token"`
	User  PublicUser `json:"user"`
}
