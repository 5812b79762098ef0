package domain

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
)

// GeocodingResult is a single place match from a geocoding provider.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // provider relevance, 0 to 1
}

// Geocoder resolves places in both directions. Implementations return a zero
// result and no error when nothing matches.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, name, region string) (GeocodingResult, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// GeocodeEMDATRow fills blank Latitude/Longitude cells by forward geocoding the
// row's Location within its Country. Rows that already carry coordinates, rows
// with nothing to look up, and failed lookups are returned unchanged, so the
// normalizer still drops them for missing coordinates.
func GeocodeEMDATRow(ctx context.Context, row EMDATRow, geocoder Geocoder, logger *slog.Logger) EMDATRow {
	if geocoder == nil {
		return row
	}
	_, latOK := parseFloatField(row.Latitude)
	_, lonOK := parseFloatField(row.Longitude)
	if latOK && lonOK {
		return row
	}

	name := strings.TrimSpace(row.Location)
	region := strings.TrimSpace(row.Country)
	if name == "" {
		name, region = region, ""
	}
	if name == "" {
		return row
	}
	// Spreadsheet locations are often comma-separated province lists; the first
	// entry is the most specific anchor.
	if i := strings.Index(name, ","); i > 0 && region != "" {
		name = strings.TrimSpace(name[:i])
	}

	result, err := geocoder.ForwardGeocode(ctx, name, region)
	if err != nil {
		logger.Warn("forward geocoding failed",
			"dis_no", row.DisNo,
			"location", name,
			"country", region,
			"error", err,
		)
		return row
	}
	if result.Lat == 0 && result.Lon == 0 {
		return row
	}

	row.Latitude = strconv.FormatFloat(result.Lat, 'f', -1, 64)
	row.Longitude = strconv.FormatFloat(result.Lon, 'f', -1, 64)
	return row
}

// EnrichWithPlace reverse geocodes the record's position into PlaceName. It
// returns a copy; a nil geocoder, an already named place, or a failed lookup
// leaves the record as it was.
func EnrichWithPlace(ctx context.Context, rec EventRecord, geocoder Geocoder, logger *slog.Logger) EventRecord {
	if geocoder == nil || rec.PlaceName != "" {
		return rec
	}

	result, err := geocoder.ReverseGeocode(ctx, rec.Position.Lat, rec.Position.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", rec.ID,
			"lat", rec.Position.Lat,
			"lon", rec.Position.Lon,
			"error", err,
		)
		return rec
	}

	switch {
	case result.FormattedAddress != "":
		rec.PlaceName = result.FormattedAddress
	case result.PlaceName != "":
		rec.PlaceName = result.PlaceName
	}
	return rec
}
