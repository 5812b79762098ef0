package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DropReason explains why a raw record never became an EventRecord.
type DropReason string

const (
	DropMissingCoordinates    DropReason = "missing_coordinates"
	DropCoordinatesOutOfRange DropReason = "coordinates_out_of_range"
	DropInvalidTime           DropReason = "invalid_time"
	DropInvalidRecord         DropReason = "invalid_record"
)

// Drop is a diagnostic for one discarded raw record.
type Drop struct {
	Source   string     `json:"source"`
	SourceID string     `json:"source_id"`
	Reason   DropReason `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}

// NormalizeResult is the output of a source normalizer: the admitted records in
// input order plus a diagnostic for every record left out.
type NormalizeResult struct {
	Records []EventRecord
	Dropped []Drop
}

// DropCounts tallies Dropped by reason.
func (r NormalizeResult) DropCounts() map[DropReason]int {
	counts := make(map[DropReason]int, len(r.Dropped))
	for _, d := range r.Dropped {
		counts[d.Reason]++
	}
	return counts
}

func (r *NormalizeResult) drop(source, sourceID string, reason DropReason, detail string) {
	r.Dropped = append(r.Dropped, Drop{Source: source, SourceID: sourceID, Reason: reason, Detail: detail})
}

// admit runs the validator as the final gate and appends rec or records the drop.
func (r *NormalizeResult) admit(rec EventRecord, sourceID string, now time.Time) {
	if err := Validate(rec, now); err != nil {
		reason := DropInvalidRecord
		if errors.Is(err, ErrFutureTime) || errors.Is(err, ErrInvalidTime) {
			reason = DropInvalidTime
		}
		r.drop(rec.Source, sourceID, reason, err.Error())
		return
	}
	r.Records = append(r.Records, rec)
}

// recordID prefixes a native id with the source tag. Blank native ids fall back
// to a deterministic hash of the fields that identify the report, so re-fetching
// the same record always yields the same identifier.
func recordID(source, nativeID string, lat, lon float64, at time.Time) string {
	nativeID = strings.TrimSpace(nativeID)
	if nativeID != "" {
		return source + "-" + nativeID
	}
	return generateID(source, lat, lon, at)
}

// generateID produces a deterministic ID from the record's key fields.
func generateID(source string, lat, lon float64, at time.Time) string {
	input := fmt.Sprintf("%s|%.4f|%.4f|%d", source, lat, lon, at.UTC().Unix())
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if source == "" {
		return short
	}
	return source + "-" + short
}

// checkCoordinates classifies a coordinate pair for the drop diagnostics.
func checkCoordinates(lat, lon float64) (DropReason, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return DropMissingCoordinates, false
	}
	if !validPosition(lat, lon) {
		return DropCoordinatesOutOfRange, false
	}
	return "", true
}

// parseFloatField parses a spreadsheet cell. The second return is false for
// blank or unparseable cells.
func parseFloatField(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseCountField parses a head count, tolerating thousands separators and
// decimal exports ("1,200", "350.0"). Blank, negative, malformed, or
// int64-overflowing cells are 0.
func parseCountField(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, ok := parseFloatField(s)
	if !ok || v < 0 || v >= math.MaxInt64 {
		return 0
	}
	return int64(v)
}

// joinNonEmpty joins the non-blank parts with sep.
func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
