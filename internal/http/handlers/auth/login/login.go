// Package login реализует HTTP-обработчик входа по email и паролю.
//
// Неизвестный email возвращается как 404 USER_NOT_FOUND, неверный пароль
// как 401 INVALID_PASSWORD, чтобы клиент мог предложить регистрацию.
package login

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/carton-tracker/internal/http/response"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

// Request структура входных данных для входа.
type Request struct {
	Email    string `json:"email" validate:"required" example:"alice@example.com"`
	Password string `json:"password" validate:"required" example:"secret"`
}

// Service описывает бизнес-логику входа.
type Service interface {
	Login(ctx context.Context, in models.LoginInput) (*models.AuthResult, error)
}

// Handler обрабатывает POST /auth/login.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис аутентификации
	validate *validator.Validate // Валидатор для проверки входных данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход пользователя
// @Description Проверяет email и пароль, возвращает новый токен.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Учетные данные пользователя"
// @Success 200 {object} models.AuthResult
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 401 {object} response.ErrorResponse "Неверный пароль"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if !response.DecodeAndValidate(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.Login(r.Context(), models.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("login success", slog.String("user_id", res.User.ID))
	render.JSON(w, r, res)
}
