package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// durationBands are inclusive lower bounds, in days, for each escalated severity.
type durationBands struct {
	Critical float64
	High     float64
	Moderate float64
}

// eonetDurationBands holds per-category severity thresholds on active duration.
// Long-burning fires, droughts and heat waves escalate; earthquakes are absent
// because duration carries no meaning for them.
func eonetDurationBands() map[Category]durationBands {
	return map[Category]durationBands{
		CategoryWildfire:  {Critical: 30, High: 14, Moderate: 7},
		CategoryDrought:   {Critical: 180, High: 90, Moderate: 30},
		CategoryHeatwave:  {Critical: 14, High: 7, Moderate: 3},
		CategoryFlood:     {Critical: 21, High: 10, Moderate: 3},
		CategoryHurricane: {Critical: 10, High: 5, Moderate: 2},
		CategoryStorm:     {Critical: 7, High: 3, Moderate: 1},
		CategoryVolcano:   {Critical: 90, High: 30, Moderate: 7},
		CategoryOther:     {Critical: 30, High: 14, Moderate: 7},
	}
}

// NormalizeEONET maps natural-event feed entries into EventRecords. The feed
// carries no population data, so ImpactCount is always 0.
func NormalizeEONET(events []EONETEvent, keywords KeywordTable) NormalizeResult {
	now := clock.Now()
	bands := eonetDurationBands()
	var res NormalizeResult

	for _, ev := range events {
		sourceID := strings.TrimSpace(ev.ID)

		first, last, ok := geometrySpan(ev.Geometry)
		if !ok {
			res.drop(SourceEONET, sourceID, DropMissingCoordinates, "no geometry")
			continue
		}
		lat, lon, ok := representativePoint(last)
		if !ok {
			res.drop(SourceEONET, sourceID, DropMissingCoordinates, "empty coordinates")
			continue
		}
		if reason, ok := checkCoordinates(lat, lon); !ok {
			res.drop(SourceEONET, sourceID, reason, fmt.Sprintf("lat=%g lon=%g", lat, lon))
			continue
		}
		if first.Date.IsZero() {
			res.drop(SourceEONET, sourceID, DropInvalidTime, "geometry without date")
			continue
		}

		category := keywords.Match(eonetMatchTexts(ev)...)
		end := activeUntil(ev, last.Date, now)
		days := end.Sub(first.Date).Hours() / 24

		severity := SeverityModerate
		if category != CategoryEarthquake && len(ev.Geometry) > 1 {
			severity = durationSeverity(bands[category], days)
		}

		rec := EventRecord{
			ID:          recordID(SourceEONET, sourceID, lat, lon, first.Date),
			Name:        strings.TrimSpace(ev.Title),
			Category:    category,
			Position:    Position{Lat: lat, Lon: lon},
			OccurredAt:  first.Date.UTC(),
			Severity:    severity,
			Narrative:   eonetNarrative(ev, first.Date, last, end),
			Source:      SourceEONET,
			SourceLink:  eonetLink(ev),
			ProcessedAt: now,
		}
		if last.MagnitudeValue != nil {
			m := *last.MagnitudeValue
			rec.Magnitude = &m
		}

		res.admit(rec, sourceID, now)
	}
	return res
}

// durationSeverity escalates on active duration in days.
func durationSeverity(b durationBands, days float64) Severity {
	switch {
	case days >= b.Critical:
		return SeverityCritical
	case days >= b.High:
		return SeverityHigh
	case days >= b.Moderate:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

// geometrySpan returns the earliest and latest dated observations.
// Undated observations are only chosen when nothing is dated.
func geometrySpan(geoms []EONETGeometry) (first, last EONETGeometry, ok bool) {
	if len(geoms) == 0 {
		return EONETGeometry{}, EONETGeometry{}, false
	}
	first, last = geoms[0], geoms[0]
	for _, g := range geoms[1:] {
		if g.Date.IsZero() {
			continue
		}
		if first.Date.IsZero() || g.Date.Before(first.Date) {
			first = g
		}
		if last.Date.IsZero() || !g.Date.Before(last.Date) {
			last = g
		}
	}
	return first, last, true
}

// representativePoint returns lat/lon for a geometry: the point itself, or the
// vertex mean of a polygon ring.
func representativePoint(g EONETGeometry) (lat, lon float64, ok bool) {
	if len(g.Coordinates) == 0 {
		return 0, 0, false
	}
	if !strings.EqualFold(g.Type, "Polygon") || len(g.Coordinates) == 1 {
		return g.Coordinates[0][1], g.Coordinates[0][0], true
	}

	ring := g.Coordinates
	// A closed ring repeats its first vertex; count it once.
	if n := len(ring); n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
	}
	var sumLat, sumLon float64
	for _, c := range ring {
		sumLon += c[0]
		sumLat += c[1]
	}
	n := float64(len(ring))
	return sumLat / n, sumLon / n, true
}

// activeUntil is the end of the event's active period: the later of the last
// observation and the close date for closed events, the current time otherwise.
func activeUntil(ev EONETEvent, lastObserved, now time.Time) time.Time {
	if ev.Closed == nil {
		if now.After(lastObserved) {
			return now
		}
		return lastObserved
	}
	if ev.Closed.After(lastObserved) {
		return *ev.Closed
	}
	return lastObserved
}

func eonetMatchTexts(ev EONETEvent) []string {
	texts := make([]string, 0, 1+2*len(ev.Categories))
	texts = append(texts, ev.Title)
	for _, c := range ev.Categories {
		texts = append(texts, c.ID, c.Title)
	}
	return texts
}

func eonetLink(ev EONETEvent) string {
	for _, s := range ev.Sources {
		if u := strings.TrimSpace(s.URL); u != "" {
			return u
		}
	}
	return strings.TrimSpace(ev.Link)
}

func eonetNarrative(ev EONETEvent, start time.Time, last EONETGeometry, end time.Time) string {
	var b strings.Builder
	title := strings.TrimSpace(ev.Title)
	if title == "" {
		title = "Natural event"
	}
	b.WriteString(title)

	cats := make([]string, 0, len(ev.Categories))
	for _, c := range ev.Categories {
		if t := strings.TrimSpace(c.Title); t != "" {
			cats = append(cats, t)
		}
	}
	if len(cats) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(cats, ", "))
	}

	fmt.Fprintf(&b, " first observed %s", start.UTC().Format("2006-01-02"))
	if n := len(ev.Geometry); n > 1 {
		fmt.Fprintf(&b, ", last observed %s across %d observations", last.Date.UTC().Format("2006-01-02"), n)
	}
	if ev.Closed != nil {
		fmt.Fprintf(&b, "; closed %s.", end.UTC().Format("2006-01-02"))
	} else {
		b.WriteString("; still active.")
	}
	if last.MagnitudeValue != nil {
		mag := strconv.FormatFloat(*last.MagnitudeValue, 'g', -1, 64)
		fmt.Fprintf(&b, " Latest magnitude %s.", joinNonEmpty(" ", mag, last.MagnitudeUnit))
	}
	if desc := strings.TrimSpace(ev.Description); desc != "" {
		fmt.Fprintf(&b, " %s", desc)
	}
	return b.String()
}
