// Package response формирует унифицированные JSON-ответы HTTP-обработчиков.
// Ошибка всегда содержит message, ошибки приложения дополнительно несут code.
package response

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/carton-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/carton-tracker/internal/lib/sl"
)

// ErrorResponse — тело ответа с ошибкой.
type ErrorResponse struct {
	Message string `json:"message" example:"Invalid token"`
	Code    string `json:"code,omitempty" example:"TOKEN_INVALID"`
}

// Error возвращает ErrorResponse с сообщением без кода.
func Error(msg string) ErrorResponse {
	return ErrorResponse{Message: msg}
}

// FromAppError строит тело ответа из ошибки приложения.
func FromAppError(e *apperr.Error) ErrorResponse {
	return ErrorResponse{Message: e.Message, Code: e.Code}
}

// WriteError отображает ошибку в статус и JSON-тело. Непредвиденные ошибки
// логируются целиком, клиенту уходит только обобщенное сообщение.
func WriteError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	e := apperr.From(err)
	status := e.Status()
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("code", e.Code), sl.Err(err))
	} else {
		log.Info("request rejected", slog.String("code", e.Code), slog.Int("status", status))
	}
	render.Status(r, status)
	render.JSON(w, r, FromAppError(e))
}

// ValidationError формирует ErrorResponse из ошибок валидатора.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return ErrorResponse{
		Message: strings.Join(errsMsgs, ", "),
		Code:    apperr.CodeValidation,
	}
}

// DecodeAndValidate читает JSON-тело в dst и проверяет его валидатором.
// При ошибке ответ уже записан и возвращается false.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, log *slog.Logger, v *validator.Validate, dst any) bool {
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		log.Info("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Message: "invalid request body", Code: apperr.CodeValidation})
		return false
	}
	if err := v.Struct(dst); err != nil {
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		if verrs, ok := err.(validator.ValidationErrors); ok {
			render.JSON(w, r, ValidationError(verrs))
		} else {
			render.JSON(w, r, ErrorResponse{Message: "invalid request", Code: apperr.CodeValidation})
		}
		return false
	}
	return true
}
