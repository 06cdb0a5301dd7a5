// Package live отдает сводку замеров пользователя для дашборда.
package live

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

// Service считает сводку.
type Service interface {
	Live(ctx context.Context, userUID string) (*models.LiveStats, error)
}

// Handler обрабатывает GET /live.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Сводка замеров
// @Tags Measurements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.LiveStats
// @Failure 401 {object} response.ErrorResponse
// @Router /live [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.measurement.live"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.RequireUser(w, r, log)
	if !ok {
		return
	}

	stats, err := h.service.Live(r.Context(), user.UUID)
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, stats)
}
