package repository

import "errors"

// Ошибки хранилища.
var (
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrEmailExists: email уже зарегистрирован.
	ErrEmailExists = errors.New("email already exists")
	// ErrUsernameExists: имя пользователя занято.
	ErrUsernameExists = errors.New("username already exists")
)

// Имена ограничений уникальности из миграции 000001.
const (
	constraintUsersEmail    = "users_email_key"
	constraintUsersUsername = "users_username_key"
)
