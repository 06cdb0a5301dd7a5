// Package apperr описывает таксономию ошибок приложения.
//
// Каждая ошибка несет вид (Kind), стабильный машинный код (Code) и
// человекочитаемое сообщение. HTTP-слой отображает вид в статус ответа,
// а фронтенд ветвится по коду, а не по тексту.
package apperr

import (
	"errors"
	"net/http"
)

// Kind — категория ошибки.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindAuth
	KindSegmentationFailed
)

// Машинные коды ошибок.
const (
	CodeTokenMissing          = "TOKEN_MISSING"
	CodeTokenInvalid          = "TOKEN_INVALID"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeAuthFailed            = "AUTH_FAILED"
	CodeInvalidPassword       = "INVALID_PASSWORD"
	CodeValidation            = "VALIDATION_ERROR"
	CodeEmailTaken            = "EMAIL_TAKEN"
	CodeUsernameTaken         = "USERNAME_TAKEN"
	CodeMeasurementNotFound   = "MEASUREMENT_NOT_FOUND"
	CodeMeasurementNotPending = "MEASUREMENT_NOT_PENDING"
	CodeSegmentationFailed    = "SEGMENTATION_FAILED"
	CodeInternal              = "INTERNAL_ERROR"
)

// Error — ошибка приложения.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error // причина, только для логов
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithCause прикрепляет причину для логов, не меняя сообщение.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// Status возвращает HTTP-статус для вида ошибки.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Validation: отсутствует обязательный ввод.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg}
}

// Conflict: нарушение уникальности или недопустимый переход состояния.
func Conflict(code, msg string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: msg}
}

// NotFound: сущность не найдена.
func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

// Auth — ошибка учетных данных или токена. Код обязателен.
func Auth(code, msg string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: msg}
}

// SegmentationFailed: вызов устройства завершился ошибкой.
func SegmentationFailed(cause error) *Error {
	return &Error{Kind: KindSegmentationFailed, Code: CodeSegmentationFailed, Message: "Segmentation failed", Err: cause}
}

// Internal: непредвиденная ошибка.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: "Internal server error", Err: cause}
}

// From извлекает *Error из цепочки; любая другая ошибка становится Internal.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// IsKind сообщает, относится ли ошибка к виду k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// HTTPStatus отображает произвольную ошибку в HTTP-статус.
func HTTPStatus(err error) int {
	return From(err).Status()
}
