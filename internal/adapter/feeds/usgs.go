package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

// USGSClient fetches a USGS earthquake summary feed (GeoJSON).
type USGSClient struct {
	client   *resty.Client
	url      string
	keywords domain.KeywordTable
	logger   *slog.Logger
}

// NewUSGSClient creates a client for the summary feed at url.
func NewUSGSClient(url string, timeout time.Duration, keywords domain.KeywordTable, logger *slog.Logger) *USGSClient {
	return &USGSClient{
		client:   newRESTClient(timeout),
		url:      url,
		keywords: keywords,
		logger:   logger,
	}
}

// Name returns the source tag.
func (c *USGSClient) Name() string { return domain.SourceUSGS }

// Fetch downloads and decodes the feature collection.
func (c *USGSClient) Fetch(ctx context.Context) ([]domain.USGSFeature, error) {
	body, err := getBody(ctx, c.client, c.url, nil)
	if err != nil {
		return nil, err
	}
	return ParseUSGS(body)
}

// Collect fetches and normalizes the feed.
func (c *USGSClient) Collect(ctx context.Context) (domain.NormalizeResult, error) {
	features, err := c.Fetch(ctx)
	if err != nil {
		return domain.NormalizeResult{}, err
	}
	c.logger.Debug("usgs features fetched", "count", len(features))
	return domain.NormalizeUSGS(features, c.keywords), nil
}

type featureCollection struct {
	Type     string               `json:"type"`
	Features []domain.USGSFeature `json:"features"`
}

// ParseUSGS decodes a GeoJSON FeatureCollection.
func ParseUSGS(data []byte) ([]domain.USGSFeature, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse usgs payload: %w", err)
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("parse usgs payload: unexpected type %q", fc.Type)
	}
	return fc.Features, nil
}
