package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	forwardResult GeocodingResult
	forwardErr    error
	reverseResult GeocodingResult
	reverseErr    error
	forwardCalls  int
	reverseCalls  int
	lastName      string
	lastRegion    string
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, name, region string) (GeocodingResult, error) {
	m.forwardCalls++
	m.lastName, m.lastRegion = name, region
	return m.forwardResult, m.forwardErr
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.reverseCalls++
	return m.reverseResult, m.reverseErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- forward geocoding of spreadsheet rows ---

func TestGeocodeEMDATRow_NilGeocoder(t *testing.T) {
	row := EMDATRow{DisNo: "2024-0001-TUR", Location: "Hatay", Country: "Turkey"}

	result := GeocodeEMDATRow(context.Background(), row, nil, discardLogger())

	assert.Equal(t, row, result)
}

func TestGeocodeEMDATRow_FillsMissingCoordinates(t *testing.T) {
	geo := &mockGeocoder{
		forwardResult: GeocodingResult{Lat: 36.2, Lon: 36.16, PlaceName: "Hatay"},
	}
	row := EMDATRow{DisNo: "2024-0001-TUR", Location: "Hatay, Kahramanmaras, Gaziantep", Country: "Turkey"}

	result := GeocodeEMDATRow(context.Background(), row, geo, discardLogger())

	assert.Equal(t, "36.2", result.Latitude)
	assert.Equal(t, "36.16", result.Longitude)
	assert.Equal(t, 1, geo.forwardCalls)
	assert.Equal(t, "Hatay", geo.lastName)
	assert.Equal(t, "Turkey", geo.lastRegion)
}

func TestGeocodeEMDATRow_CountryOnly(t *testing.T) {
	geo := &mockGeocoder{forwardResult: GeocodingResult{Lat: -8.5, Lon: 115.0}}
	row := EMDATRow{DisNo: "2024-0002-IDN", Country: "Indonesia"}

	result := GeocodeEMDATRow(context.Background(), row, geo, discardLogger())

	assert.Equal(t, "-8.5", result.Latitude)
	assert.Equal(t, "Indonesia", geo.lastName)
	assert.Empty(t, geo.lastRegion)
}

func TestGeocodeEMDATRow_Skips(t *testing.T) {
	tests := []struct {
		name string
		row  EMDATRow
		geo  *mockGeocoder
	}{
		{
			name: "coordinates already present",
			row:  EMDATRow{Location: "Hatay", Country: "Turkey", Latitude: "36.2", Longitude: "36.1"},
			geo:  &mockGeocoder{forwardResult: GeocodingResult{Lat: 1, Lon: 1}},
		},
		{
			name: "nothing to look up",
			row:  EMDATRow{DisNo: "2024-0003"},
			geo:  &mockGeocoder{forwardResult: GeocodingResult{Lat: 1, Lon: 1}},
		},
		{
			name: "lookup error",
			row:  EMDATRow{Location: "Hatay", Country: "Turkey"},
			geo:  &mockGeocoder{forwardErr: errors.New("API timeout")},
		},
		{
			name: "no match",
			row:  EMDATRow{Location: "Nowhere", Country: "Atlantis"},
			geo:  &mockGeocoder{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GeocodeEMDATRow(context.Background(), tt.row, tt.geo, discardLogger())
			assert.Equal(t, tt.row, result)
		})
	}
}

// --- reverse geocoding of merged records ---

func TestEnrichWithPlace_ReverseGeocode(t *testing.T) {
	geo := &mockGeocoder{
		reverseResult: GeocodingResult{
			FormattedAddress: "Los Angeles County, California, United States",
			PlaceName:        "Los Angeles County",
		},
	}
	rec := testRecord("eonet-1", SourceEONET, CategoryWildfire, 34.05, -118.02, mergeBase)

	result := EnrichWithPlace(context.Background(), rec, geo, discardLogger())

	assert.Equal(t, "Los Angeles County, California, United States", result.PlaceName)
	assert.Empty(t, rec.PlaceName, "input must not be modified")
	assert.Equal(t, 1, geo.reverseCalls)
	assert.Equal(t, 0, geo.forwardCalls)
}

func TestEnrichWithPlace_FallsBackToPlaceName(t *testing.T) {
	geo := &mockGeocoder{reverseResult: GeocodingResult{PlaceName: "Hatay"}}
	rec := testRecord("usgs-1", SourceUSGS, CategoryEarthquake, 36.2, 36.16, mergeBase)

	result := EnrichWithPlace(context.Background(), rec, geo, discardLogger())

	assert.Equal(t, "Hatay", result.PlaceName)
}

func TestEnrichWithPlace_Unchanged(t *testing.T) {
	named := testRecord("usgs-2", SourceUSGS, CategoryEarthquake, 36.2, 36.16, mergeBase)
	named.PlaceName = "Already named"

	tests := []struct {
		name      string
		rec       EventRecord
		geo       Geocoder
		wantCalls int
	}{
		{"nil geocoder", testRecord("usgs-1", SourceUSGS, CategoryEarthquake, 1, 1, mergeBase), nil, 0},
		{"already named", named, &mockGeocoder{reverseResult: GeocodingResult{PlaceName: "Other"}}, 0},
		{"lookup error", testRecord("usgs-3", SourceUSGS, CategoryEarthquake, 1, 1, mergeBase), &mockGeocoder{reverseErr: errors.New("rate limited")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EnrichWithPlace(context.Background(), tt.rec, tt.geo, discardLogger())
			assert.Equal(t, tt.rec, result)
			if m, ok := tt.geo.(*mockGeocoder); ok {
				assert.Equal(t, tt.wantCalls, m.reverseCalls)
			}
		})
	}
}
