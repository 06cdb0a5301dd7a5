// Package read реализует HTTP-обработчик получения замера по ID.
package read

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

// Service описывает чтение замера владельца.
type Service interface {
	Get(ctx context.Context, userUID, id string) (*models.Measurement, error)
}

// Handler обрабатывает GET /measurements/{id}.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Замер по ID
// @Tags Measurements
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID замера"
// @Success 200 {object} models.Measurement
// @Failure 401 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /measurements/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.measurement.read"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.RequireUser(w, r, log)
	if !ok {
		return
	}

	m, err := h.service.Get(r.Context(), user.UUID, chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, m)
}
