// Package auth реализует регистрацию, вход и проверку сессионных токенов.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/carton-tracker/internal/cache"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/password"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
	"github.com/magabrotheeeer/carton-tracker/internal/storage/repository"
)

const usernameAttempts = 3

// Сообщения, которые видит пользователь.
const (
	msgCredentialsRequired = "Email and password are required"
	msgEmailTaken          = "Email already registered"
	msgUsernameTaken       = "Username already taken"
	msgAccountNotFound     = "Account not found. Please check your email or sign up for a new account."
	msgIncorrectPassword   = "Incorrect password. Please try again."
	msgTokenMissing        = "No token provided"
	msgTokenInvalid        = "Invalid token"
	msgTokenExpired        = "Token expired"
	msgUserNotFound        = "User not found"
	msgAuthFailed          = "Authentication failed"
)

// UserRepository описывает контракт хранилища пользователей.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Cache описывает кэш пользователей для проверки токенов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

// Service отвечает за учетные записи и сессионные токены.
type Service struct {
	log      *slog.Logger
	users    UserRepository
	jwtMaker jwt.Maker
	cache    Cache
	cacheTTL time.Duration
	newID    func() string
	now      func() time.Time
}

// New создает сервис аутентификации. cache может быть nil.
func New(log *slog.Logger, users UserRepository, jwtMaker jwt.Maker, c Cache, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{
		log:      log,
		users:    users,
		jwtMaker: jwtMaker,
		cache:    c,
		cacheTTL: cacheTTL,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Signup регистрирует пользователя и выдает токен.
func (s *Service) Signup(ctx context.Context, in models.SignupInput) (*models.AuthResult, error) {
	const op = "auth.Signup"
	log := s.log.With(sl.Op(op))

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation(msgCredentialsRequired)
	}

	_, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperr.Conflict(apperr.CodeEmailTaken, msgEmailTaken)
	case !errors.Is(err, repository.ErrNotFound):
		log.Error("failed to look up email", sl.Err(err))
		return nil, apperr.Internal(err)
	}

	hash, err := password.GetHash(in.Password)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, apperr.Internal(err)
	}

	base := DeriveUsername(in.Username, in.Name, email)
	// Явно запрошенное имя не меняется: при коллизии сразу 409.
	attempts := usernameAttempts
	if strings.TrimSpace(in.Username) != "" {
		attempts = 1
	}
	user := models.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	for attempt := 0; ; attempt++ {
		user.UUID = s.newID()
		user.Username = base
		if attempt > 0 {
			user.Username = base + "-" + strings.ReplaceAll(s.newID(), "-", "")[:6]
		}

		err = s.users.CreateUser(ctx, user)
		if err == nil {
			break
		}
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, apperr.Conflict(apperr.CodeEmailTaken, msgEmailTaken)
		case errors.Is(err, repository.ErrUsernameExists):
			if attempt+1 >= attempts {
				return nil, apperr.Conflict(apperr.CodeUsernameTaken, msgUsernameTaken)
			}
			log.Debug("username taken, retrying with suffix", slog.String("username", user.Username))
		default:
			log.Error("failed to create user", sl.Err(err))
			return nil, apperr.Internal(err)
		}
	}

	return s.issue(log, user)
}

// Login проверяет пароль и выдает новый токен.
func (s *Service) Login(ctx context.Context, in models.LoginInput) (*models.AuthResult, error) {
	const op = "auth.Login"
	log := s.log.With(sl.Op(op))

	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation(msgCredentialsRequired)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeUserNotFound, msgAccountNotFound)
		}
		log.Error("failed to look up user", sl.Err(err))
		return nil, apperr.Internal(err)
	}

	if err := password.CompareHash(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, apperr.Auth(apperr.CodeInvalidPassword, msgIncorrectPassword)
		}
		log.Error("failed to compare password hash", sl.Err(err))
		return nil, apperr.Internal(err)
	}

	return s.issue(log, *user)
}

// Authenticate проверяет токен и возвращает существующего пользователя.
// Любая ошибка имеет вид Auth и один из кодов шлюза.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	const op = "auth.Authenticate"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMissing):
			return nil, apperr.Auth(apperr.CodeTokenMissing, msgTokenMissing)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apperr.Auth(apperr.CodeTokenExpired, msgTokenExpired)
		case errors.Is(err, jwt.ErrTokenInvalid):
			return nil, apperr.Auth(apperr.CodeTokenInvalid, msgTokenInvalid).WithCause(err)
		default:
			return nil, apperr.Auth(apperr.CodeAuthFailed, msgAuthFailed).WithCause(err)
		}
	}

	key := cache.UserKey(claims.UserID)
	var cached models.User
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.log.Warn("user cache read failed", sl.Op(op), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	user, err := s.users.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Auth(apperr.CodeUserNotFound, msgUserNotFound)
		}
		s.log.Error("failed to resolve token user", sl.Op(op), sl.Err(err))
		return nil, apperr.Auth(apperr.CodeAuthFailed, msgAuthFailed).WithCause(err)
	}

	if err := s.cache.Set(ctx, key, user, s.cacheTTL); err != nil {
		s.log.Warn("user cache write failed", sl.Op(op), sl.Err(err))
	}
	return user, nil
}

func (s *Service) issue(log *slog.Logger, user models.User) (*models.AuthResult, error) {
	token, err := s.jwtMaker.GenerateToken(user.UUID)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return nil, apperr.Internal(err)
	}
	return &models.AuthResult{
		Token: token,
		User:  user.Public(),
	}, nil
}

// DeriveUsername выбирает имя пользователя: явное имя, затем первое слово
// отображаемого имени, затем локальная часть email.
func DeriveUsername(username, name, email string) string {
	if u := strings.TrimSpace(username); u != "" {
		return u
	}
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
