package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mlhmz/hubspot-booking-api/internal/availability"
	"github.com/mlhmz/hubspot-booking-api/internal/hubspot"
)

type mockFetcher struct {
	mock.Mock
	hasKey bool
}

func (m *mockFetcher) HasAPIKey() bool { return m.hasKey }

func (m *mockFetcher) FetchAvailability(ctx context.Context, slug, timezone string) (*availability.Response, error) {
	args := m.Called(ctx, slug, timezone)
	resp, _ := args.Get(0).(*availability.Response)
	return resp, args.Error(1)
}

func newTestHandler(f *mockFetcher) *AvailabilityHandler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAvailabilityHandler(f, "America/Mexico_City", availability.DefaultBusinessHours(), logger)
}

func doRequest(h *AvailabilityHandler, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/availability?"+query, nil)
	rec := httptest.NewRecorder()
	h.GetAvailability(rec, req)
	return rec
}

func payload(startsUTC ...time.Time) *availability.Response {
	var slots []map[string]any
	for _, s := range startsUTC {
		slots = append(slots, map[string]any{"startMillisUtc": s.UnixMilli()})
	}
	raw, _ := json.Marshal(map[string]any{
		"linkAvailabilityByDuration": map[string]any{
			"1800000": map[string]any{"availabilities": slots},
		},
	})
	return &availability.Response{LinkAvailability: raw}
}

func TestGetAvailability_Success(t *testing.T) {
	f := &mockFetcher{hasKey: true}
	f.On("FetchAvailability", mock.Anything, "luis-pacheco", "America/Mexico_City").
		Return(payload(time.Date(2025, 5, 28, 17, 30, 0, 0, time.UTC)), nil)

	rec := doRequest(newTestHandler(f), "slug=luis-pacheco")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"30min": ["Wednesday 2025-05-28 11:30"]}`, rec.Body.String())
	f.AssertExpectations(t)
}

func TestGetAvailability_BusinessHoursFilter(t *testing.T) {
	f := &mockFetcher{hasKey: true}
	// 11:30 and 20:00 Mexico City time.
	f.On("FetchAvailability", mock.Anything, "slug", "America/Mexico_City").
		Return(payload(
			time.Date(2025, 5, 28, 17, 30, 0, 0, time.UTC),
			time.Date(2025, 5, 29, 2, 0, 0, 0, time.UTC),
		), nil)

	h := newTestHandler(f)

	rec := doRequest(h, "slug=slug&apply_business_hours_filter=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"30min": ["Wednesday 2025-05-28 11:30"]}`, rec.Body.String())

	rec = doRequest(h, "slug=slug&apply_business_hours_filter=true&business_start_hour=12&business_end_hour=21")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"30min": ["Wednesday 2025-05-28 20:00"]}`, rec.Body.String())

	rec = doRequest(h, "slug=slug&apply_business_hours_filter=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"30min": ["Wednesday 2025-05-28 11:30", "Wednesday 2025-05-28 20:00"]}`, rec.Body.String())

	for _, on := range []string{"yes", "on", "Y", "TRUE"} {
		rec = doRequest(h, "slug=slug&apply_business_hours_filter="+on)
		require.Equal(t, http.StatusOK, rec.Code, on)
		assert.JSONEq(t, `{"30min": ["Wednesday 2025-05-28 11:30"]}`, rec.Body.String(), on)
	}
	for _, off := range []string{"no", "off", "n", "0"} {
		rec = doRequest(h, "slug=slug&apply_business_hours_filter="+off)
		require.Equal(t, http.StatusOK, rec.Code, off)
		assert.JSONEq(t, `{"30min": ["Wednesday 2025-05-28 11:30", "Wednesday 2025-05-28 20:00"]}`, rec.Body.String(), off)
	}
}

func TestGetAvailability_EmptyResult(t *testing.T) {
	f := &mockFetcher{hasKey: true}
	f.On("FetchAvailability", mock.Anything, "slug", "UTC").Return(&availability.Response{}, nil)

	rec := doRequest(newTestHandler(f), "slug=slug&timezone=UTC")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())
}

func TestGetAvailability_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		hasKey bool
		query  string
		status int
	}{
		{"missing api key", false, "slug=s", http.StatusInternalServerError},
		{"missing slug", true, "timezone=UTC", http.StatusBadRequest},
		{"invalid timezone", true, "slug=s&timezone=Not/AZone", http.StatusBadRequest},
		{"invalid filter flag", true, "slug=s&apply_business_hours_filter=maybe", http.StatusBadRequest},
		{"invalid start hour", true, "slug=s&apply_business_hours_filter=1&business_start_hour=x", http.StatusBadRequest},
		{"inverted hours", true, "slug=s&apply_business_hours_filter=1&business_start_hour=18&business_end_hour=9", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFetcher{hasKey: tt.hasKey}
			rec := doRequest(newTestHandler(f), tt.query)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			f.AssertNotCalled(t, "FetchAvailability", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGetAvailability_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unauthorized", &hubspot.APIError{StatusCode: 401}, http.StatusInternalServerError},
		{"forbidden", &hubspot.APIError{StatusCode: 403}, http.StatusInternalServerError},
		{"not found", &hubspot.APIError{StatusCode: 404}, http.StatusNotFound},
		{"bad request upstream", &hubspot.APIError{StatusCode: 400}, http.StatusBadGateway},
		{"server error upstream", &hubspot.APIError{StatusCode: 503}, http.StatusBadGateway},
		{"unavailable", fmt.Errorf("%w: dial tcp: refused", hubspot.ErrUnavailable), http.StatusServiceUnavailable},
		{"invalid json", fmt.Errorf("%w: <html>", hubspot.ErrInvalidResponse), http.StatusBadRequest},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFetcher{hasKey: true}
			f.On("FetchAvailability", mock.Anything, "slug", "UTC").Return(nil, tt.err)

			rec := doRequest(newTestHandler(f), "slug=slug&timezone=UTC")
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGetAvailability_NotFoundMessage(t *testing.T) {
	f := &mockFetcher{hasKey: true}
	f.On("FetchAvailability", mock.Anything, "ghost", "UTC").Return(nil, &hubspot.APIError{StatusCode: 404})

	rec := doRequest(newTestHandler(f), "slug=ghost&timezone=UTC")
	assert.JSONEq(t, `{"error": "Meeting slug 'ghost' not found on HubSpot."}`, rec.Body.String())
}
