package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, time.August, d, 0, 0, 0, 0, time.UTC)
}

func pointGeometry(at time.Time, lon, lat float64) EONETGeometry {
	return EONETGeometry{Date: at, Type: "Point", Coordinates: [][2]float64{{lon, lat}}}
}

func TestNormalizeEONET_PositionAndTime(t *testing.T) {
	freezeClock(t, day(30))

	ev := EONETEvent{
		ID:         "EONET_7001",
		Title:      "Park Fire, California",
		Link:       "https://eonet.gsfc.nasa.gov/api/v3/events/EONET_7001",
		Categories: []EONETCategory{{ID: "wildfires", Title: "Wildfires"}},
		Geometry: []EONETGeometry{
			pointGeometry(day(5), -121.80, 39.90),
			pointGeometry(day(1), -121.70, 39.80),
			pointGeometry(day(3), -121.75, 39.85),
		},
	}

	res := NormalizeEONET([]EONETEvent{ev}, DefaultEONETKeywords())

	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, "eonet-EONET_7001", r.ID)
	assert.Equal(t, CategoryWildfire, r.Category)
	assert.Equal(t, day(1), r.OccurredAt, "dated at the earliest observation")
	assert.Equal(t, Position{Lat: 39.90, Lon: -121.80}, r.Position, "positioned at the latest observation")
	assert.Equal(t, "https://eonet.gsfc.nasa.gov/api/v3/events/EONET_7001", r.SourceLink)
	assert.Zero(t, r.ImpactCount)
	// Open event: 29 days active by the clock.
	assert.Equal(t, SeverityHigh, r.Severity)
	assert.Equal(t,
		"Park Fire, California (Wildfires) first observed 2024-08-01, last observed 2024-08-05 across 3 observations; still active.",
		r.Narrative)
}

func TestNormalizeEONET_DurationSeverity(t *testing.T) {
	freezeClock(t, day(31))
	closed := func(d int) *time.Time { c := day(d); return &c }

	tests := []struct {
		name     string
		category EONETCategory
		closed   *time.Time
		geoms    []EONETGeometry
		want     Severity
	}{
		{
			name:     "single observation is moderate",
			category: EONETCategory{ID: "wildfires", Title: "Wildfires"},
			geoms:    []EONETGeometry{pointGeometry(day(1), 10, 10)},
			want:     SeverityModerate,
		},
		{
			name:     "closed short wildfire is low",
			category: EONETCategory{ID: "wildfires", Title: "Wildfires"},
			closed:   closed(4),
			geoms:    []EONETGeometry{pointGeometry(day(1), 10, 10), pointGeometry(day(3), 10, 10)},
			want:     SeverityLow,
		},
		{
			name:     "closed wildfire uses close date",
			category: EONETCategory{ID: "wildfires", Title: "Wildfires"},
			closed:   closed(15),
			geoms:    []EONETGeometry{pointGeometry(day(1), 10, 10), pointGeometry(day(3), 10, 10)},
			want:     SeverityHigh,
		},
		{
			name:     "open storm escalates with time",
			category: EONETCategory{ID: "severeStorms", Title: "Severe Storms"},
			geoms:    []EONETGeometry{pointGeometry(day(20), 10, 10), pointGeometry(day(21), 10, 10)},
			want:     SeverityCritical,
		},
		{
			name:     "earthquake is always moderate",
			category: EONETCategory{ID: "earthquakes", Title: "Earthquakes"},
			geoms:    []EONETGeometry{pointGeometry(day(1), 10, 10), pointGeometry(day(2), 10, 10)},
			want:     SeverityModerate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := EONETEvent{
				ID:         "EONET_1",
				Title:      "Event",
				Closed:     tt.closed,
				Categories: []EONETCategory{tt.category},
				Geometry:   tt.geoms,
			}

			res := NormalizeEONET([]EONETEvent{ev}, DefaultEONETKeywords())

			require.Len(t, res.Records, 1)
			assert.Equal(t, tt.want, res.Records[0].Severity)
		})
	}
}

func TestDurationSeverity(t *testing.T) {
	bands := eonetDurationBands()[CategoryDrought]

	assert.Equal(t, SeverityLow, durationSeverity(bands, 29.9))
	assert.Equal(t, SeverityModerate, durationSeverity(bands, 30))
	assert.Equal(t, SeverityHigh, durationSeverity(bands, 90))
	assert.Equal(t, SeverityCritical, durationSeverity(bands, 180))
}

func TestRepresentativePoint(t *testing.T) {
	tests := []struct {
		name             string
		geom             EONETGeometry
		wantLat, wantLon float64
		wantOK           bool
	}{
		{"point", EONETGeometry{Type: "Point", Coordinates: [][2]float64{{-118, 34}}}, 34, -118, true},
		{
			name: "closed polygon ring counts first vertex once",
			geom: EONETGeometry{Type: "Polygon", Coordinates: [][2]float64{
				{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0},
			}},
			wantLat: 1, wantLon: 1, wantOK: true,
		},
		{
			name:    "open polygon ring",
			geom:    EONETGeometry{Type: "polygon", Coordinates: [][2]float64{{0, 0}, {3, 0}, {0, 3}}},
			wantLat: 1, wantLon: 1, wantOK: true,
		},
		{"empty", EONETGeometry{Type: "Point"}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lat, lon, ok := representativePoint(tt.geom)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.wantLat, lat, 1e-9)
			assert.InDelta(t, tt.wantLon, lon, 1e-9)
		})
	}
}

func TestNormalizeEONET_Drops(t *testing.T) {
	tests := []struct {
		name  string
		geoms []EONETGeometry
		want  DropReason
	}{
		{"no geometry", nil, DropMissingCoordinates},
		{"empty coordinates", []EONETGeometry{{Date: day(1), Type: "Point"}}, DropMissingCoordinates},
		{"out of range", []EONETGeometry{pointGeometry(day(1), 200, 10)}, DropCoordinatesOutOfRange},
		{"undated", []EONETGeometry{pointGeometry(time.Time{}, 10, 10)}, DropInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := EONETEvent{ID: "EONET_9", Title: "Iceberg", Geometry: tt.geoms}

			res := NormalizeEONET([]EONETEvent{ev}, DefaultEONETKeywords())

			assert.Empty(t, res.Records)
			require.Len(t, res.Dropped, 1)
			assert.Equal(t, tt.want, res.Dropped[0].Reason)
			assert.Equal(t, SourceEONET, res.Dropped[0].Source)
		})
	}
}

func TestNormalizeEONET_MagnitudeAndSourceLink(t *testing.T) {
	freezeClock(t, day(30))

	g := pointGeometry(day(10), 140, 15)
	g.MagnitudeValue = float64Ptr(65)
	g.MagnitudeUnit = "kts"
	ev := EONETEvent{
		ID:         "EONET_8000",
		Title:      "Typhoon Shanshan",
		Closed:     func() *time.Time { c := day(12); return &c }(),
		Categories: []EONETCategory{{ID: "severeStorms", Title: "Severe Storms"}},
		Sources:    []EONETSource{{ID: "JTWC", URL: " "}, {ID: "GDACS", URL: "https://gdacs.example/8000"}},
		Geometry:   []EONETGeometry{g},
	}

	res := NormalizeEONET([]EONETEvent{ev}, DefaultEONETKeywords())

	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, CategoryHurricane, r.Category)
	assert.Equal(t, "https://gdacs.example/8000", r.SourceLink)
	require.NotNil(t, r.Magnitude)
	assert.InDelta(t, 65.0, *r.Magnitude, 1e-9)
	assert.Equal(t,
		"Typhoon Shanshan (Severe Storms) first observed 2024-08-10; closed 2024-08-12. Latest magnitude 65 kts.",
		r.Narrative)
}
