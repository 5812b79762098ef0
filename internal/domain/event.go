package domain

import "time"

// Category is the normalized hazard class shared by every source.
type Category string

const (
	CategoryWildfire   Category = "wildfire"
	CategoryFlood      Category = "flood"
	CategoryHurricane  Category = "hurricane"
	CategoryDrought    Category = "drought"
	CategoryHeatwave   Category = "heatwave"
	CategoryStorm      Category = "storm"
	CategoryEarthquake Category = "earthquake"
	CategoryVolcano    Category = "volcano"
	CategoryOther      Category = "other"
)

// AllCategories returns the category enumeration in display order.
func AllCategories() []Category {
	return []Category{
		CategoryWildfire, CategoryFlood, CategoryHurricane, CategoryDrought,
		CategoryHeatwave, CategoryStorm, CategoryEarthquake, CategoryVolcano,
		CategoryOther,
	}
}

// Valid reports whether c belongs to the category enumeration.
func (c Category) Valid() bool {
	switch c {
	case CategoryWildfire, CategoryFlood, CategoryHurricane, CategoryDrought,
		CategoryHeatwave, CategoryStorm, CategoryEarthquake, CategoryVolcano,
		CategoryOther:
		return true
	default:
		return false
	}
}

// Severity is the four-level impact scale derived per source.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s belongs to the severity enumeration.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityModerate, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// Source tags. They double as identifier prefixes.
const (
	SourceEMDAT = "emdat"
	SourceEONET = "eonet"
	SourceUSGS  = "usgs"
)

// TrustRank orders sources when picking a cluster representative.
// Higher wins; unknown sources rank below every known feed.
func TrustRank(source string) int {
	switch source {
	case SourceUSGS:
		return 3
	case SourceEONET:
		return 2
	case SourceEMDAT:
		return 1
	default:
		return 0
	}
}

// Position is a WGS-84 latitude/longitude pair in degrees.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ReliefLink points at an organization accepting help for an event.
type ReliefLink struct {
	Organization string `json:"organization"`
	URL          string `json:"url"`
	Description  string `json:"description,omitempty"`
}

// EventRecord is the common schema every normalizer produces and the merger consumes.
// Records are treated as values: nothing downstream of a normalizer mutates one in place.
type EventRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    Category  `json:"category"`
	Position    Position  `json:"position"`
	OccurredAt  time.Time `json:"occurred_at"`
	Severity    Severity  `json:"severity"`
	ImpactCount int64     `json:"impact_count"`
	Narrative   string    `json:"narrative"`
	Source      string    `json:"source"`

	SourceLink  string       `json:"source_link,omitempty"`
	ImageLink   string       `json:"image_link,omitempty"`
	Magnitude   *float64     `json:"magnitude,omitempty"`
	ReliefLinks []ReliefLink `json:"relief_links,omitempty"`

	// Reverse geocoding enrichment.
	PlaceName string `json:"place_name,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// EMDATRow is one row of the historical spreadsheet export, columns kept as text.
type EMDATRow struct {
	DisNo           string `json:"dis_no"`
	DisasterType    string `json:"disaster_type"`
	DisasterSubtype string `json:"disaster_subtype"`
	EventName       string `json:"event_name"`
	Country         string `json:"country"`
	Location        string `json:"location"`
	Latitude        string `json:"latitude"`
	Longitude       string `json:"longitude"`
	StartYear       string `json:"start_year"`
	StartMonth      string `json:"start_month"`
	StartDay        string `json:"start_day"`
	TotalDeaths     string `json:"total_deaths"`
	TotalAffected   string `json:"total_affected"`
}

// EONETCategory is a natural-event feed category reference.
type EONETCategory struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// EONETSource is an upstream agency reference attached to a natural event.
type EONETSource struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// EONETGeometry is one dated observation of a natural event.
// Coordinates hold lon/lat pairs: one for a Point, the outer ring for a Polygon.
type EONETGeometry struct {
	Date           time.Time    `json:"date"`
	Type           string       `json:"type"`
	Coordinates    [][2]float64 `json:"coordinates"`
	MagnitudeValue *float64     `json:"magnitude_value,omitempty"`
	MagnitudeUnit  string       `json:"magnitude_unit,omitempty"`
}

// EONETEvent is a natural-event feed entry.
type EONETEvent struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Link        string          `json:"link,omitempty"`
	Closed      *time.Time      `json:"closed,omitempty"`
	Categories  []EONETCategory `json:"categories"`
	Sources     []EONETSource   `json:"sources"`
	Geometry    []EONETGeometry `json:"geometry"`
}

// USGSProperties carries the seismic feature attributes the normalizer reads.
type USGSProperties struct {
	Mag     *float64 `json:"mag"`
	Place   string   `json:"place"`
	Time    *int64   `json:"time"` // milliseconds since epoch; pre-1970 origins are negative
	URL     string   `json:"url"`
	Felt    *int     `json:"felt"`
	Alert   string   `json:"alert"`
	Tsunami int      `json:"tsunami"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
}

// USGSGeometry is a GeoJSON point: [lon, lat, depth_km].
type USGSGeometry struct {
	Coordinates []float64 `json:"coordinates"`
}

// USGSFeature is one seismic feed feature.
type USGSFeature struct {
	ID         string         `json:"id"`
	Properties USGSProperties `json:"properties"`
	Geometry   *USGSGeometry  `json:"geometry"`
}
