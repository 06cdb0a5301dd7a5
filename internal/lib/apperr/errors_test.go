package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: Validation("email is required"), want: http.StatusBadRequest},
		{name: "conflict", err: Conflict(CodeEmailTaken, "taken"), want: http.StatusConflict},
		{name: "not found", err: NotFound(CodeUserNotFound, "nope"), want: http.StatusNotFound},
		{name: "auth", err: Auth(CodeTokenExpired, "expired"), want: http.StatusUnauthorized},
		{name: "segmentation", err: SegmentationFailed(errors.New("timeout")), want: http.StatusInternalServerError},
		{name: "internal", err: Internal(errors.New("boom")), want: http.StatusInternalServerError},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("op: %w", NotFound(CodeMeasurementNotFound, "x")), want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestFrom(t *testing.T) {
	cause := errors.New("db down")
	e := From(fmt.Errorf("wrap: %w", cause))
	assert.Equal(t, KindInternal, e.Kind)
	assert.Equal(t, CodeInternal, e.Code)
	assert.ErrorIs(t, e, cause)

	orig := Auth(CodeInvalidPassword, "Incorrect password. Please try again.")
	assert.Same(t, orig, From(fmt.Errorf("wrap: %w", orig)))
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("op: %w", Conflict(CodeMeasurementNotPending, "busy"))
	assert.True(t, IsKind(err, KindConflict))
	assert.False(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(errors.New("x"), KindConflict))
}

func TestError_Message(t *testing.T) {
	e := SegmentationFailed(errors.New("connection refused"))
	assert.Equal(t, "Segmentation failed: connection refused", e.Error())
	assert.Equal(t, "Segmentation failed", e.Message)
}

func TestError_WithCause(t *testing.T) {
	cause := errors.New("store unavailable")
	e := Auth(CodeAuthFailed, "Authentication failed").WithCause(cause)
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "Authentication failed", e.Message)
	assert.Equal(t, http.StatusUnauthorized, e.Status())
}
