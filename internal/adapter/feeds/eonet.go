package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/go-resty/resty/v2"
	"github.com/valyala/fastjson"
)

var eonetParsers fastjson.ParserPool

// EONETClient fetches NASA's natural-event feed.
type EONETClient struct {
	client   *resty.Client
	url      string
	days     int
	keywords domain.KeywordTable
	logger   *slog.Logger
}

// NewEONETClient creates a client for the events endpoint at url, asking for
// events active within the last days.
func NewEONETClient(url string, days int, timeout time.Duration, keywords domain.KeywordTable, logger *slog.Logger) *EONETClient {
	return &EONETClient{
		client:   newRESTClient(timeout),
		url:      url,
		days:     days,
		keywords: keywords,
		logger:   logger,
	}
}

// Name returns the source tag.
func (c *EONETClient) Name() string { return domain.SourceEONET }

// Fetch downloads and decodes open and closed events.
func (c *EONETClient) Fetch(ctx context.Context) ([]domain.EONETEvent, error) {
	body, err := getBody(ctx, c.client, c.url, map[string]string{
		"days":   strconv.Itoa(c.days),
		"status": "all",
	})
	if err != nil {
		return nil, err
	}
	return ParseEONET(body)
}

// Collect fetches and normalizes the feed.
func (c *EONETClient) Collect(ctx context.Context) (domain.NormalizeResult, error) {
	events, err := c.Fetch(ctx)
	if err != nil {
		return domain.NormalizeResult{}, err
	}
	c.logger.Debug("eonet events fetched", "count", len(events))
	return domain.NormalizeEONET(events, c.keywords), nil
}

// ParseEONET decodes an events response. Geometry coordinates are shaped by
// type (a Point is [lon, lat], a Polygon is a list of rings), so the payload
// is walked rather than unmarshalled into fixed structs. Geometries with an
// unparseable date keep a zero Date and are dropped by the normalizer.
func ParseEONET(data []byte) ([]domain.EONETEvent, error) {
	p := eonetParsers.Get()
	defer eonetParsers.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse eonet payload: %w", err)
	}

	var items []*fastjson.Value
	switch v.Type() {
	case fastjson.TypeArray:
		items, _ = v.Array()
	case fastjson.TypeObject:
		if ev := v.Get("events"); ev != nil {
			if items, err = ev.Array(); err != nil {
				return nil, fmt.Errorf("parse eonet payload: events: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("parse eonet payload: unexpected %s", v.Type())
	}

	events := make([]domain.EONETEvent, 0, len(items))
	for _, item := range items {
		events = append(events, parseEONETEvent(item))
	}
	return events, nil
}

func parseEONETEvent(v *fastjson.Value) domain.EONETEvent {
	ev := domain.EONETEvent{
		ID:          string(v.GetStringBytes("id")),
		Title:       string(v.GetStringBytes("title")),
		Description: string(v.GetStringBytes("description")),
		Link:        string(v.GetStringBytes("link")),
	}
	if closed, ok := parseTime(v.GetStringBytes("closed")); ok {
		ev.Closed = &closed
	}

	for _, c := range v.GetArray("categories") {
		ev.Categories = append(ev.Categories, domain.EONETCategory{
			ID:    categoryID(c),
			Title: string(c.GetStringBytes("title")),
		})
	}
	for _, s := range v.GetArray("sources") {
		ev.Sources = append(ev.Sources, domain.EONETSource{
			ID:  string(s.GetStringBytes("id")),
			URL: string(s.GetStringBytes("url")),
		})
	}
	for _, g := range v.GetArray("geometry") {
		ev.Geometry = append(ev.Geometry, parseEONETGeometry(g))
	}
	return ev
}

// categoryID accepts both the string ids of API v3 and the numeric ids of v2.
func categoryID(c *fastjson.Value) string {
	id := c.Get("id")
	if id == nil {
		return ""
	}
	if id.Type() == fastjson.TypeNumber {
		return id.String()
	}
	return string(id.GetStringBytes())
}

func parseEONETGeometry(g *fastjson.Value) domain.EONETGeometry {
	geom := domain.EONETGeometry{
		Type:          string(g.GetStringBytes("type")),
		MagnitudeUnit: string(g.GetStringBytes("magnitudeUnit")),
	}
	if at, ok := parseTime(g.GetStringBytes("date")); ok {
		geom.Date = at
	}
	if m := g.Get("magnitudeValue"); m != nil && m.Type() == fastjson.TypeNumber {
		f := m.GetFloat64()
		geom.MagnitudeValue = &f
	}

	coords := g.Get("coordinates")
	if coords == nil {
		return geom
	}
	if strings.EqualFold(geom.Type, "Polygon") {
		// Outer ring only; holes do not move the representative point.
		rings := coords.GetArray()
		if len(rings) > 0 {
			for _, pt := range rings[0].GetArray() {
				if pair, ok := lonLat(pt); ok {
					geom.Coordinates = append(geom.Coordinates, pair)
				}
			}
		}
		return geom
	}
	if pair, ok := lonLat(coords); ok {
		geom.Coordinates = [][2]float64{pair}
	}
	return geom
}

func lonLat(v *fastjson.Value) ([2]float64, bool) {
	arr := v.GetArray()
	if len(arr) < 2 || arr[0].Type() != fastjson.TypeNumber || arr[1].Type() != fastjson.TypeNumber {
		return [2]float64{}, false
	}
	return [2]float64{arr[0].GetFloat64(), arr[1].GetFloat64()}, true
}

func parseTime(b []byte) (time.Time, bool) {
	if len(b) == 0 {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, string(b))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
