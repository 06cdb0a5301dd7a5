// Package middlewarectx содержит HTTP middleware: проверку сессионного токена
// и ограничение частоты запросов.
//
// JWTMiddleware извлекает токен из заголовка Authorization, разрешает его
// в пользователя через сервис аутентификации и кладет пользователя в контекст.
// Любой отказ возвращается как 401 с машинным кодом.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/carton-tracker/internal/http/response"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// User ключ аутентифицированного пользователя в контексте.
const User Key = "user"

// Authenticator разрешает токен в пользователя.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// JWTMiddleware возвращает middleware, пропускающий только запросы с валидным токеном.
func JWTMiddleware(auth Authenticator, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			user, err := auth.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				if !apperr.IsKind(err, apperr.KindAuth) {
					err = apperr.Auth(apperr.CodeAuthFailed, "Authentication failed").WithCause(err)
				}
				response.WriteError(w, r, log, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// BearerToken извлекает токен из заголовка Authorization.
// Заголовок без схемы Bearer возвращается как есть и не пройдет проверку подписи.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if header == "Bearer" {
		return ""
	}
	return header
}

// WithUser кладет пользователя в контекст.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, User, user)
}

// UserFromContext возвращает пользователя, положенного JWTMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(User).(*models.User)
	return user, ok && user != nil
}

// RequireUser достает пользователя из контекста или пишет 401 AUTH_FAILED.
func RequireUser(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		response.WriteError(w, r, log, apperr.Auth(apperr.CodeAuthFailed, "Authentication failed"))
		return nil, false
	}
	return user, true
}
