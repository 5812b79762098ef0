package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NormalizeEMDAT maps spreadsheet rows into EventRecords. Rows without usable
// coordinates or a resolvable start date are dropped with a diagnostic.
func NormalizeEMDAT(rows []EMDATRow, keywords KeywordTable) NormalizeResult {
	now := clock.Now()
	var res NormalizeResult

	for _, row := range rows {
		sourceID := strings.TrimSpace(row.DisNo)

		lat, latOK := parseFloatField(row.Latitude)
		lon, lonOK := parseFloatField(row.Longitude)
		if !latOK || !lonOK {
			res.drop(SourceEMDAT, sourceID, DropMissingCoordinates, "")
			continue
		}
		if reason, ok := checkCoordinates(lat, lon); !ok {
			res.drop(SourceEMDAT, sourceID, reason, fmt.Sprintf("lat=%g lon=%g", lat, lon))
			continue
		}

		occurredAt, ok := emdatStartDate(row)
		if !ok {
			res.drop(SourceEMDAT, sourceID, DropInvalidTime,
				fmt.Sprintf("start=%s-%s-%s", row.StartYear, row.StartMonth, row.StartDay))
			continue
		}

		category := keywords.Match(row.DisasterType, row.DisasterSubtype, row.EventName)
		deaths := parseCountField(row.TotalDeaths)
		affected := parseCountField(row.TotalAffected)

		rec := EventRecord{
			ID:          recordID(SourceEMDAT, sourceID, lat, lon, occurredAt),
			Name:        emdatName(row),
			Category:    category,
			Position:    Position{Lat: lat, Lon: lon},
			OccurredAt:  occurredAt,
			Severity:    emdatSeverity(deaths, affected),
			ImpactCount: affected,
			Narrative:   emdatNarrative(row, occurredAt, deaths, affected),
			Source:      SourceEMDAT,
			ProcessedAt: now,
		}

		res.admit(rec, sourceID, now)
	}
	return res
}

// emdatSeverity weights deaths ten times an affected person:
// score >= 1e6 critical, >= 1e5 high, >= 1e4 moderate, else low.
func emdatSeverity(deaths, affected int64) Severity {
	// Either term alone reaching critical settles it; below that the sum cannot overflow.
	if deaths >= 100_000 || affected >= 1_000_000 {
		return SeverityCritical
	}
	score := deaths*10 + affected
	switch {
	case score >= 1_000_000:
		return SeverityCritical
	case score >= 100_000:
		return SeverityHigh
	case score >= 10_000:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// emdatStartDate resolves the start columns to UTC midnight. Blank month or
// day default to 1; out-of-calendar dates (e.g. 2023-02-30) are rejected.
func emdatStartDate(row EMDATRow) (time.Time, bool) {
	year, err := strconv.Atoi(strings.TrimSpace(row.StartYear))
	if err != nil || year < 1 || year > 9999 {
		return time.Time{}, false
	}
	month, ok := optionalInt(row.StartMonth, 1)
	if !ok || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, ok := optionalInt(row.StartDay, 1)
	if !ok || day < 1 || day > 31 {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func optionalInt(s string, fallback int) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, true
	}
	v, ok := parseFloatField(s)
	if !ok || v != float64(int(v)) {
		return 0, false
	}
	return int(v), true
}

func emdatName(row EMDATRow) string {
	if name := strings.TrimSpace(row.EventName); name != "" {
		return name
	}
	kind := strings.TrimSpace(row.DisasterSubtype)
	if kind == "" {
		kind = strings.TrimSpace(row.DisasterType)
	}
	if country := strings.TrimSpace(row.Country); country != "" && kind != "" {
		return kind + " in " + country
	}
	return kind
}

func emdatNarrative(row EMDATRow, start time.Time, deaths, affected int64) string {
	kind := strings.TrimSpace(row.DisasterType)
	if sub := strings.TrimSpace(row.DisasterSubtype); sub != "" && !strings.EqualFold(sub, kind) {
		kind = joinNonEmpty(" ", kind, "("+sub+")")
	}
	place := joinNonEmpty(", ", row.Location, row.Country)

	var b strings.Builder
	if kind != "" {
		b.WriteString(kind)
	} else {
		b.WriteString("Disaster")
	}
	if name := strings.TrimSpace(row.EventName); name != "" {
		fmt.Fprintf(&b, " %q", name)
	}
	if place != "" {
		fmt.Fprintf(&b, " in %s", place)
	}
	fmt.Fprintf(&b, " beginning %s.", start.Format("2006-01-02"))
	if deaths > 0 {
		fmt.Fprintf(&b, " %d deaths reported.", deaths)
	}
	if affected > 0 {
		fmt.Fprintf(&b, " %d people affected.", affected)
	}
	return b.String()
}
