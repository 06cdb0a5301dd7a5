package list

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/carton-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/carton-tracker/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, userUID string) ([]*models.Measurement, error) {
	args := m.Called(ctx, userUID)
	res, _ := args.Get(0).([]*models.Measurement)
	return res, args.Error(1)
}

func TestListHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name      string
		mockList  []*models.Measurement
		wantIDs   []string
		wantCount int
	}{
		{
			name: "newest first as returned by service",
			mockList: []*models.Measurement{
				{ID: "m-2", UserUID: "u-1", Status: models.StatusPending, Images: []string{}},
				{ID: "m-1", UserUID: "u-1", Status: models.StatusFailed, Images: []string{}},
			},
			wantIDs: []string{"m-2", "m-1"},
		},
		{
			name:     "empty list encodes as array",
			mockList: nil,
			wantIDs:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("List", mock.Anything, "u-1").Return(tt.mockList, nil).Once()
			h := New(logger, svc)

			req := httptest.NewRequest(http.MethodGet, "/measurements", nil)
			req = req.WithContext(middlewarectx.WithUser(req.Context(), &models.User{UUID: "u-1"}))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			var body []map[string]any
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			require.NotNil(t, body)
			ids := make([]string, 0, len(body))
			for _, m := range body {
				ids = append(ids, m["id"].(string))
			}
			assert.Equal(t, tt.wantIDs, ids)
			svc.AssertExpectations(t)
		})
	}
}
