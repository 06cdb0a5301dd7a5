// Package signup реализует HTTP-обработчик регистрации пользователя.
package signup

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

// Request содержит входные данные регистрации.
type Request struct {
	Name     string `json:"name,omitempty" example:"Alice Smith"`
	Username string `json:"username,omitempty" example:"alice"`
	Email    string `json:"email" validate:"required,email" example:"alice@example.com"`
	Password string `json:"password" validate:"required" example:"secret"`
}

// Service описывает бизнес-логику регистрации.
type Service interface {
	Signup(ctx context.Context, in models.SignupInput) (*models.AuthResult, error)
}

// Handler обрабатывает POST /auth/signup.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает обработчик регистрации.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Регистрация пользователя
// @Description Создает учетную запись и возвращает токен на 7 дней.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body Request true "Данные пользователя"
// @Success 201 {object} models.AuthResult
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/signup [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.signup"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if !response.DecodeAndValidate(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.Signup(r.Context(), models.SignupInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("user signed up", slog.String("user_id", res.User.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, res)
}
