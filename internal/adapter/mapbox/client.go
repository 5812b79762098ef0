// Package mapbox resolves places through the Mapbox Geocoding API. The service
// uses it in two directions: spreadsheet rows that carry only a country and
// location get coordinates, and merged records get a place name.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/couchcryptid/disaster-merge-service/internal/observability"
	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Administrative levels worth matching for a spreadsheet "Location" cell.
const forwardTypes = "region,district,place,locality"

// Client implements domain.Geocoder.
type Client struct {
	token   string
	http    *resty.Client
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return newClient(defaultBaseURL, token, timeout, metrics, logger)
}

func newClient(baseURL, token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetRetryCount(0),
		metrics: metrics,
		logger:  logger,
	}
}

// ForwardGeocode resolves a location name, optionally qualified by a region
// such as a country, to coordinates.
func (c *Client) ForwardGeocode(ctx context.Context, name, region string) (domain.GeocodingResult, error) {
	query := name
	if region != "" {
		query = name + ", " + region
	}
	return c.observe("forward", func() (domain.GeocodingResult, error) {
		return c.lookup(ctx, query, map[string]string{"types": forwardTypes})
	})
}

// ReverseGeocode resolves coordinates to the nearest named place.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	// lon,lat order
	query := strconv.FormatFloat(lon, 'f', 6, 64) + "," + strconv.FormatFloat(lat, 'f', 6, 64)
	return c.observe("reverse", func() (domain.GeocodingResult, error) {
		return c.lookup(ctx, query, nil)
	})
}

func (c *Client) observe(method string, call func() (domain.GeocodingResult, error)) (domain.GeocodingResult, error) {
	start := time.Now()
	result, err := call()
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
		c.logger.Debug("geocode request failed", "method", method, "error", err)
	case result.FormattedAddress == "":
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
	return result, err
}

func (c *Client) lookup(ctx context.Context, query string, params map[string]string) (domain.GeocodingResult, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("query", query).
		SetQueryParam("access_token", c.token).
		SetQueryParam("limit", "1")
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get("/{query}.json")
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("geocode %q: %w", query, err)
	}
	if resp.StatusCode() != 200 {
		body := resp.Body()
		if len(body) > 256 {
			body = body[:256]
		}
		return domain.GeocodingResult{}, fmt.Errorf("geocode %q: status %d: %s", query, resp.StatusCode(), body)
	}

	var places placesResponse
	if err := json.Unmarshal(resp.Body(), &places); err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("decode geocode response: %w", err)
	}
	return places.best(), nil
}

type placesResponse struct {
	Features []place `json:"features"`
}

type place struct {
	Center    []float64 `json:"center"` // lon, lat
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

// best returns the top-ranked feature, or a zero result when nothing matched.
func (r placesResponse) best() domain.GeocodingResult {
	if len(r.Features) == 0 {
		return domain.GeocodingResult{}
	}
	p := r.Features[0]
	result := domain.GeocodingResult{
		FormattedAddress: p.PlaceName,
		PlaceName:        p.Text,
		Confidence:       p.Relevance,
	}
	if len(p.Center) == 2 {
		result.Lon, result.Lat = p.Center[0], p.Center[1]
	}
	return result
}
