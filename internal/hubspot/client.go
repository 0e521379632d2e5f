// Package hubspot is a minimal client for the HubSpot scheduler
// meeting-link availability endpoint.
package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mlhmz/hubspot-booking-api/internal/availability"
)

const (
	// DefaultBaseURL is the public HubSpot API root.
	DefaultBaseURL = "https://api.hubapi.com"

	// DefaultTimeout bounds a single availability request.
	DefaultTimeout = 10 * time.Second

	availabilityPath = "/scheduler/v3/meetings/meeting-links/book/availability-page/"

	// maxErrorBody caps how much of an upstream body ends up in errors and logs.
	maxErrorBody = 200
)

var (
	// ErrMissingAPIKey is returned when the client has no API key configured.
	ErrMissingAPIKey = errors.New("HUBSPOT_API_KEY is not provided")

	// ErrUnavailable wraps connection failures and timeouts.
	ErrUnavailable = errors.New("could not connect to HubSpot")

	// ErrInvalidResponse wraps bodies that are not valid JSON.
	ErrInvalidResponse = errors.New("invalid JSON response from HubSpot")
)

// APIError is a non-2xx response from HubSpot.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HubSpot API returned status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the HubSpot API with a bearer token.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new HubSpot client. An empty baseURL uses DefaultBaseURL
// and a zero timeout uses DefaultTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// HasAPIKey reports whether an API key is configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// FetchAvailability retrieves the availability page for a meeting-link slug.
func (c *Client) FetchAvailability(ctx context.Context, slug, timezone string) (*availability.Response, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	u := c.baseURL + availabilityPath + url.PathEscape(slug) + "?" + url.Values{"timezone": {timezone}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build HubSpot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.DebugContext(ctx, "Fetching HubSpot availability", "slug", slug, "timezone", timezone)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	var out availability.Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w. Response text (partial): %s", ErrInvalidResponse, truncate(string(body), maxErrorBody))
	}

	return &out, nil
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
