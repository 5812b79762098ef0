package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emdatRow() EMDATRow {
	return EMDATRow{
		DisNo:           "2023-0077-TUR",
		DisasterType:    "Earthquake",
		DisasterSubtype: "Ground movement",
		EventName:       "Kahramanmaras",
		Country:         "Turkey",
		Location:        "Hatay, Gaziantep",
		Latitude:        "37.166",
		Longitude:       "37.032",
		StartYear:       "2023",
		StartMonth:      "2",
		StartDay:        "6",
		TotalDeaths:     "50,783",
		TotalAffected:   "9100000",
	}
}

func TestNormalizeEMDAT_MapsRow(t *testing.T) {
	processed := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	freezeClock(t, processed)

	res := NormalizeEMDAT([]EMDATRow{emdatRow()}, DefaultEMDATKeywords())

	require.Len(t, res.Records, 1)
	assert.Empty(t, res.Dropped)
	r := res.Records[0]
	assert.Equal(t, "emdat-2023-0077-TUR", r.ID)
	assert.Equal(t, "Kahramanmaras", r.Name)
	assert.Equal(t, CategoryEarthquake, r.Category)
	assert.Equal(t, Position{Lat: 37.166, Lon: 37.032}, r.Position)
	assert.Equal(t, time.Date(2023, time.February, 6, 0, 0, 0, 0, time.UTC), r.OccurredAt)
	assert.Equal(t, SeverityCritical, r.Severity)
	assert.Equal(t, int64(9100000), r.ImpactCount)
	assert.Equal(t, SourceEMDAT, r.Source)
	assert.Equal(t, processed, r.ProcessedAt)
	assert.Nil(t, r.Magnitude)
	assert.Equal(t,
		`Earthquake (Ground movement) "Kahramanmaras" in Hatay, Gaziantep, Turkey beginning 2023-02-06. 50783 deaths reported. 9100000 people affected.`,
		r.Narrative)
}

func TestNormalizeEMDAT_Drops(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EMDATRow)
		want   DropReason
	}{
		{"blank latitude", func(r *EMDATRow) { r.Latitude = "" }, DropMissingCoordinates},
		{"unparseable longitude", func(r *EMDATRow) { r.Longitude = "n/a" }, DropMissingCoordinates},
		{"latitude out of range", func(r *EMDATRow) { r.Latitude = "95.2" }, DropCoordinatesOutOfRange},
		{"longitude out of range", func(r *EMDATRow) { r.Longitude = "-181" }, DropCoordinatesOutOfRange},
		{"blank year", func(r *EMDATRow) { r.StartYear = "" }, DropInvalidTime},
		{"calendar-invalid date", func(r *EMDATRow) { r.StartMonth, r.StartDay = "2", "30" }, DropInvalidTime},
		{"month 13", func(r *EMDATRow) { r.StartMonth = "13" }, DropInvalidTime},
		{"far future", func(r *EMDATRow) { r.StartYear = "2099" }, DropInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := emdatRow()
			tt.mutate(&row)

			res := NormalizeEMDAT([]EMDATRow{row}, DefaultEMDATKeywords())

			assert.Empty(t, res.Records)
			require.Len(t, res.Dropped, 1)
			assert.Equal(t, tt.want, res.Dropped[0].Reason)
			assert.Equal(t, SourceEMDAT, res.Dropped[0].Source)
			assert.Equal(t, "2023-0077-TUR", res.Dropped[0].SourceID)
		})
	}
}

func TestNormalizeEMDAT_PartialStartDate(t *testing.T) {
	row := emdatRow()
	row.StartMonth, row.StartDay = "", ""

	res := NormalizeEMDAT([]EMDATRow{row}, DefaultEMDATKeywords())

	require.Len(t, res.Records, 1)
	assert.Equal(t, time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), res.Records[0].OccurredAt)
}

func TestEMDATSeverity(t *testing.T) {
	tests := []struct {
		name             string
		deaths, affected int64
		want             Severity
	}{
		{"nothing reported", 0, 0, SeverityLow},
		{"just below moderate", 0, 9_999, SeverityLow},
		{"moderate by affected", 0, 10_000, SeverityModerate},
		{"deaths weigh ten", 1_000, 0, SeverityModerate},
		{"high", 5_000, 50_000, SeverityHigh},
		{"critical by deaths", 100_000, 0, SeverityCritical},
		{"critical by affected", 0, 1_000_000, SeverityCritical},
		{"deaths too large to weigh", 1_000_000_000_000_000_000, 0, SeverityCritical},
		{"largest affected count", 0, math.MaxInt64, SeverityCritical},
		{"both near the limit", math.MaxInt64, math.MaxInt64, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emdatSeverity(tt.deaths, tt.affected))
		})
	}
}

func TestNormalizeEMDAT_NameAndNarrativeFallbacks(t *testing.T) {
	row := EMDATRow{
		DisasterType:    "Flood",
		DisasterSubtype: "Riverine flood",
		Country:         "Bangladesh",
		Latitude:        "23.7",
		Longitude:       "90.4",
		StartYear:       "2022",
		StartMonth:      "6",
		TotalAffected:   "abc",
	}

	res := NormalizeEMDAT([]EMDATRow{row}, DefaultEMDATKeywords())

	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.Equal(t, "Riverine flood in Bangladesh", r.Name)
	assert.Equal(t, CategoryFlood, r.Category)
	assert.Equal(t, SeverityLow, r.Severity)
	assert.Zero(t, r.ImpactCount)
	assert.Equal(t, "Flood (Riverine flood) in Bangladesh beginning 2022-06-01.", r.Narrative)
	// No DisNo: the id is a stable hash of source, position and time.
	assert.Regexp(t, `^emdat-[0-9a-f]{16}$`, r.ID)
	assert.Equal(t, r.ID, NormalizeEMDAT([]EMDATRow{row}, DefaultEMDATKeywords()).Records[0].ID)
}

func TestParseCountField(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"1200", 1200},
		{"1,200", 1200},
		{" 350.0 ", 350},
		{"-5", 0},
		{"unknown", 0},
		{"1e18", 1_000_000_000_000_000_000},
		{"1e19", 0},
		{"9223372036854775808", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseCountField(tt.in), tt.in)
	}
}

func TestNormalizeEMDAT_ImplausibleCounts(t *testing.T) {
	tests := []struct {
		name         string
		deaths       string
		affected     string
		wantImpact   int64
		wantSeverity Severity
	}{
		{"affected beyond int64", "", "1e19", 0, SeverityLow},
		{"deaths overflow the weighted score", "1e18", "", 0, SeverityCritical},
		{"both huge", "1e18", "9e18", 9_000_000_000_000_000_000, SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := emdatRow()
			row.TotalDeaths = tt.deaths
			row.TotalAffected = tt.affected

			res := NormalizeEMDAT([]EMDATRow{row}, DefaultEMDATKeywords())

			require.Len(t, res.Records, 1)
			r := res.Records[0]
			assert.Equal(t, tt.wantImpact, r.ImpactCount)
			assert.Equal(t, tt.wantSeverity, r.Severity)
			assert.GreaterOrEqual(t, r.ImpactCount, int64(0))
			assert.True(t, IsValid(r))
		})
	}
}

func TestDropCounts(t *testing.T) {
	rows := []EMDATRow{emdatRow(), emdatRow(), emdatRow()}
	rows[1].Latitude = ""
	rows[2].Longitude = ""

	res := NormalizeEMDAT(rows, DefaultEMDATKeywords())

	assert.Len(t, res.Records, 1)
	assert.Equal(t, map[DropReason]int{DropMissingCoordinates: 2}, res.DropCounts())
}
