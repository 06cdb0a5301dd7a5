package create

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/carton-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, userUID string) (*models.Measurement, error) {
	args := m.Called(ctx, userUID)
	res, _ := args.Get(0).(*models.Measurement)
	return res, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestCreateHandler(t *testing.T) {
	created := &models.Measurement{
		ID:        "m-1",
		UserUID:   "u-1",
		Status:    models.StatusPending,
		Images:    []string{},
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name       string
		user       *models.User
		setupMock  func(m *MockService)
		wantStatus int
	}{
		{
			name: "успешное создание замера",
			user: &models.User{UUID: "u-1"},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "u-1").Return(created, nil).Once()
			},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "нет пользователя в контексте",
			setupMock:  func(*MockService) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "ошибка хранилища",
			user: &models.User{UUID: "u-1"},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, "u-1").Return(nil, errors.New("db error")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)
			h := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPost, "/measurements", nil)
			if tt.user != nil {
				req = req.WithContext(middlewarectx.WithUser(req.Context(), tt.user))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusCreated {
				var body map[string]any
				require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
				assert.Equal(t, "pending", body["status"])
				assert.Equal(t, []any{}, body["images"])
				assert.NotContains(t, body, "dimensions")
				assert.NotContains(t, body, "weight")
			}
			svc.AssertExpectations(t)
		})
	}
}
