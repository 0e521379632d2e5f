package routes

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mlhmz/hubspot-booking-api/internal/api/handlers"
	"github.com/mlhmz/hubspot-booking-api/internal/availability"
)

type stubFetcher struct{}

func (stubFetcher) HasAPIKey() bool { return true }

func (stubFetcher) FetchAvailability(context.Context, string, string) (*availability.Response, error) {
	return &availability.Response{}, nil
}

func newTestRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handlers.NewAvailabilityHandler(stubFetcher{}, "UTC", availability.DefaultBusinessHours(), logger)
	return NewRouter(h, logger)
}

func TestRouter(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/availability?slug=x", http.StatusOK},
		{http.MethodPost, "/availability?slug=x", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/openapi.yaml", http.StatusOK},
		{http.MethodOptions, "/availability", http.StatusOK},
		{http.MethodGet, "/book", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRouter_OpenAPISpec(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.yaml", nil))

	assert.Contains(t, rec.Body.String(), "/availability:")
}
