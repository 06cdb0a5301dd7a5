// Package run реализует HTTP-обработчик запуска сегментации замера.
//
// Запрос выполняется синхронно: ответ приходит после того, как устройство
// вернуло результат или ошибку и новое состояние сохранено.
package run

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carton-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carton-tracker/internal/http/response"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

// Service описывает запуск сегментации.
type Service interface {
	RunSegmentation(ctx context.Context, userUID, id string) (*models.Measurement, error)
}

// Handler обрабатывает POST /measurements/{id}/run.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Запустить сегментацию
// @Description Переводит замер в segmenting, вызывает устройство и сохраняет completed или failed.
// @Tags Measurements
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID замера"
// @Success 200 {object} models.Measurement
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Замер не в состоянии pending"
// @Failure 500 {object} response.ErrorResponse "Сегментация не удалась"
// @Router /measurements/{id}/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.measurement.run"

	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("measurement_id", id),
	)

	user, ok := middlewarectx.RequireUser(w, r, log)
	if !ok {
		return
	}

	m, err := h.service.RunSegmentation(r.Context(), user.UUID, id)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("segmentation finished", slog.String("status", string(m.Status)))
	render.JSON(w, r, m)
}
