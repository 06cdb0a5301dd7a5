// Package create реализует HTTP-обработчик создания замера.
package create

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

// Service описывает создание замера.
type Service interface {
	Create(ctx context.Context, userUID string) (*models.Measurement, error)
}

// Handler обрабатывает POST /measurements.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Создать замер
// @Description Создает замер в состоянии pending без размеров, веса и изображений.
// @Tags Measurements
// @Produce json
// @Security BearerAuth
// @Success 201 {object} models.Measurement
// @Failure 401 {object} response.ErrorResponse
// @Router /measurements [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.measurement.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.RequireUser(w, r, log)
	if !ok {
		return
	}

	m, err := h.service.Create(r.Context(), user.UUID)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}

	log.Info("measurement created", slog.String("measurement_id", m.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, m)
}
