// Package status отдает доступность устройства сегментации для дашборда.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/carton-tracker/internal/http/response"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

// Service опрашивает устройство.
type Service interface {
	Status(ctx context.Context) (*models.DeviceStatus, error)
}

// Handler обрабатывает GET /device/status.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает обработчик.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Состояние устройства
// @Tags Device
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.DeviceStatus
// @Failure 401 {object} response.ErrorResponse
// @Router /device/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.device.status"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	st, err := h.service.Status(r.Context())
	if err != nil {
		response.WriteError(w, r, log, err)
		return
	}
	render.JSON(w, r, st)
}
