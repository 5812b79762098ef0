package domain

import (
	"errors"
	"math"
	"time"
)

// MaxFutureSkew bounds how far past the processing time an event may be dated.
const MaxFutureSkew = 7 * 24 * time.Hour

var (
	ErrMissingID       = errors.New("missing identifier")
	ErrUnknownCategory = errors.New("unknown category")
	ErrInvalidPosition = errors.New("position out of range")
	ErrInvalidTime     = errors.New("occurrence time not set")
	ErrFutureTime      = errors.New("occurrence time too far in the future")
	ErrUnknownSeverity = errors.New("unknown severity")
	ErrNegativeImpact  = errors.New("negative impact count")
)

// Validate returns the first schema invariant r violates relative to now, or nil.
func Validate(r EventRecord, now time.Time) error {
	if r.ID == "" {
		return ErrMissingID
	}
	if !r.Category.Valid() {
		return ErrUnknownCategory
	}
	if !validPosition(r.Position.Lat, r.Position.Lon) {
		return ErrInvalidPosition
	}
	if r.OccurredAt.IsZero() {
		return ErrInvalidTime
	}
	if r.OccurredAt.Sub(now) > MaxFutureSkew {
		return ErrFutureTime
	}
	if !r.Severity.Valid() {
		return ErrUnknownSeverity
	}
	if r.ImpactCount < 0 {
		return ErrNegativeImpact
	}
	return nil
}

// IsValid reports whether r satisfies every schema invariant at the current clock time.
func IsValid(r EventRecord) bool {
	return Validate(r, clock.Now()) == nil
}

func validPosition(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
