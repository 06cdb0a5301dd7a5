// Package list реализует HTTP-обработчик списка замеров текущего пользователя.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carton-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carton-tracker/internal/http/response"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

// Service описывает чтение списка замеров.
type Service interface {
	List(ctx context.Context, userUID string) ([]*models.Measurement, error)
}

// Handler обрабатывает GET /measurements.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список замеров
// @Description Возвращает замеры пользователя, новые первыми.
// @Tags Measurements
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Measurement
// @Failure 401 {object} response.ErrorResponse
// @Router /measurements [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.measurement.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.RequireUser(w, r, log)
	if !ok {
		return
	}

	res, err := h.service.List(r.Context(), user.UUID)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	if res == nil {
		res = []*models.Measurement{}
	}

	log.Debug("measurements listed", slog.Int("count", len(res)))
	render.JSON(w, r, res)
}
