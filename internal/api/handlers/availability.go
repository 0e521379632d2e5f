package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mlhmz/hubspot-booking-api/internal/availability"
	"github.com/mlhmz/hubspot-booking-api/internal/hubspot"
)

// AvailabilityFetcher retrieves raw availability from HubSpot.
type AvailabilityFetcher interface {
	HasAPIKey() bool
	FetchAvailability(ctx context.Context, slug, timezone string) (*availability.Response, error)
}

// AvailabilityHandler handles HTTP requests for meeting availability
type AvailabilityHandler struct {
	fetcher         AvailabilityFetcher
	defaultTimezone string
	businessHours   availability.BusinessHours
	logger          *slog.Logger
}

// NewAvailabilityHandler creates a new AvailabilityHandler
func NewAvailabilityHandler(fetcher AvailabilityFetcher, defaultTimezone string, businessHours availability.BusinessHours, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		fetcher:         fetcher,
		defaultTimezone: defaultTimezone,
		businessHours:   businessHours,
		logger:          logger,
	}
}

// GetAvailability handles GET /availability
func (h *AvailabilityHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.fetcher.HasAPIKey() {
		respondError(w, http.StatusInternalServerError, "Server configuration error: HUBSPOT_API_KEY not set.")
		return
	}

	q := r.URL.Query()

	slug := q.Get("slug")
	if slug == "" {
		respondError(w, http.StatusBadRequest, "Query parameter 'slug' is required")
		return
	}

	timezone := q.Get("timezone")
	if timezone == "" {
		timezone = h.defaultTimezone
	}
	loc, err := availability.LoadLocation(timezone)
	if err != nil {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Invalid timezone provided: '%s'. Please use a valid IANA timezone name.", timezone))
		return
	}

	filter, err := h.parseFilter(q.Get("apply_business_hours_filter"), q.Get("business_start_hour"), q.Get("business_end_hour"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := h.fetcher.FetchAvailability(ctx, slug, timezone)
	if err != nil {
		h.respondUpstreamError(ctx, w, slug, err)
		return
	}

	slots, err := availability.Transform(data, loc, filter, h.logger)
	if err != nil {
		h.logger.WarnContext(ctx, "Data processing error", "slug", slug, "error", err)
		respondError(w, http.StatusBadRequest, "Data processing error or invalid input: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, slots)
}

// parseFilter returns nil when the business hours filter is off.
func (h *AvailabilityHandler) parseFilter(apply, start, end string) (*availability.BusinessHours, error) {
	if apply == "" {
		return nil, nil
	}
	on, ok := parseQueryBool(apply)
	if !ok {
		return nil, fmt.Errorf("Invalid value for 'apply_business_hours_filter': %q", apply)
	}
	if !on {
		return nil, nil
	}

	var err error
	bh := h.businessHours
	if start != "" {
		if bh.StartHour, err = strconv.Atoi(start); err != nil {
			return nil, fmt.Errorf("Invalid value for 'business_start_hour': %q", start)
		}
	}
	if end != "" {
		if bh.EndHour, err = strconv.Atoi(end); err != nil {
			return nil, fmt.Errorf("Invalid value for 'business_end_hour': %q", end)
		}
	}
	if err := bh.Validate(); err != nil {
		return nil, err
	}
	return &bh, nil
}

// respondUpstreamError maps HubSpot client failures onto API status codes.
func (h *AvailabilityHandler) respondUpstreamError(ctx context.Context, w http.ResponseWriter, slug string, err error) {
	var apiErr *hubspot.APIError
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			// Our own key is rejected, callers can't fix that.
			h.logger.ErrorContext(ctx, "HubSpot API authentication error, check HUBSPOT_API_KEY",
				"status", apiErr.StatusCode, "body", apiErr.Body)
			respondError(w, http.StatusInternalServerError, "HubSpot API authentication error. Please contact administrator.")
		case http.StatusNotFound:
			respondError(w, http.StatusNotFound, fmt.Sprintf("Meeting slug '%s' not found on HubSpot.", slug))
		default:
			h.logger.ErrorContext(ctx, "Unhandled HubSpot API HTTP error", "status", apiErr.StatusCode, "body", apiErr.Body)
			respondError(w, http.StatusBadGateway, fmt.Sprintf("Upstream error from HubSpot: %d", apiErr.StatusCode))
		}

	case errors.Is(err, hubspot.ErrUnavailable):
		h.logger.WarnContext(ctx, "Connectivity issue with HubSpot", "error", err)
		respondError(w, http.StatusServiceUnavailable, "Service unavailable: Could not connect to HubSpot. "+err.Error())

	case errors.Is(err, hubspot.ErrInvalidResponse):
		h.logger.WarnContext(ctx, "Data processing or input error", "error", err)
		respondError(w, http.StatusBadRequest, "Data processing error or invalid input: "+err.Error())

	case errors.Is(err, hubspot.ErrMissingAPIKey):
		respondError(w, http.StatusInternalServerError, "Server configuration error: HUBSPOT_API_KEY not set.")

	default:
		h.logger.ErrorContext(ctx, "Unexpected error in availability endpoint", "error", err)
		respondError(w, http.StatusInternalServerError, "An unexpected internal server error occurred.")
	}
}

// parseQueryBool accepts the usual query-string spellings of a boolean,
// case-insensitively: 1/0, true/false, t/f, yes/no, y/n, on/off.
func parseQueryBool(v string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true, true
	case "0", "false", "f", "no", "n", "off":
		return false, true
	}
	return false, false
}
