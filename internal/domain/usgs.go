package domain

import (
	"fmt"
	"strings"
	"time"
)

// NormalizeUSGS maps seismic feed features into EventRecords. The feed carries
// no population data, so ImpactCount is always 0.
func NormalizeUSGS(features []USGSFeature, keywords KeywordTable) NormalizeResult {
	now := clock.Now()
	var res NormalizeResult

	for _, f := range features {
		sourceID := strings.TrimSpace(f.ID)
		props := f.Properties

		if f.Geometry == nil || len(f.Geometry.Coordinates) < 2 {
			res.drop(SourceUSGS, sourceID, DropMissingCoordinates, "")
			continue
		}
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		if reason, ok := checkCoordinates(lat, lon); !ok {
			res.drop(SourceUSGS, sourceID, reason, fmt.Sprintf("lat=%g lon=%g", lat, lon))
			continue
		}
		if props.Time == nil {
			res.drop(SourceUSGS, sourceID, DropInvalidTime, "missing origin time")
			continue
		}
		occurredAt := time.UnixMilli(*props.Time).UTC()

		var depth *float64
		if len(f.Geometry.Coordinates) >= 3 {
			d := f.Geometry.Coordinates[2]
			depth = &d
		}

		category := keywords.Match(props.Type, props.Title)
		rec := EventRecord{
			ID:          recordID(SourceUSGS, sourceID, lat, lon, occurredAt),
			Name:        usgsName(props),
			Category:    category,
			Position:    Position{Lat: lat, Lon: lon},
			OccurredAt:  occurredAt,
			Severity:    magnitudeSeverity(props.Mag),
			Narrative:   usgsNarrative(props, occurredAt, depth),
			Source:      SourceUSGS,
			SourceLink:  strings.TrimSpace(props.URL),
			ProcessedAt: now,
		}
		if props.Mag != nil {
			m := *props.Mag
			rec.Magnitude = &m
		}

		res.admit(rec, sourceID, now)
	}
	return res
}

// magnitudeSeverity thresholds directly on magnitude:
// >= 8.0 critical, >= 6.0 high, >= 5.0 moderate, else low.
func magnitudeSeverity(mag *float64) Severity {
	if mag == nil {
		return SeverityLow
	}
	switch m := *mag; {
	case m >= 8.0:
		return SeverityCritical
	case m >= 6.0:
		return SeverityHigh
	case m >= 5.0:
		return SeverityModerate
	default:
		return SeverityLow
	}
}

func usgsName(props USGSProperties) string {
	if title := strings.TrimSpace(props.Title); title != "" {
		return title
	}
	if props.Mag != nil {
		return joinNonEmpty(" - ", fmt.Sprintf("M %.1f", *props.Mag), props.Place)
	}
	return joinNonEmpty(" ", titleCase(strings.TrimSpace(props.Type)), props.Place)
}

func usgsNarrative(props USGSProperties, at time.Time, depth *float64) string {
	kind := strings.TrimSpace(props.Type)
	if kind == "" {
		kind = "seismic event"
	}

	var b strings.Builder
	if props.Mag != nil {
		fmt.Fprintf(&b, "Magnitude %.1f %s", *props.Mag, kind)
	} else {
		b.WriteString(titleCase(kind))
	}
	if place := strings.TrimSpace(props.Place); place != "" {
		fmt.Fprintf(&b, " %s", place)
	}
	fmt.Fprintf(&b, " on %s", at.Format("2006-01-02 15:04 UTC"))
	if depth != nil {
		fmt.Fprintf(&b, " at a depth of %.1f km", *depth)
	}
	b.WriteString(".")
	if alert := strings.TrimSpace(props.Alert); alert != "" {
		fmt.Fprintf(&b, " PAGER alert level: %s.", alert)
	}
	if props.Felt != nil && *props.Felt > 0 {
		fmt.Fprintf(&b, " Felt reports: %d.", *props.Felt)
	}
	if props.Tsunami == 1 {
		b.WriteString(" Tsunami potential flagged.")
	}
	return b.String()
}
