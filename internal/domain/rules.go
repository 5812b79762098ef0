package domain

import "time"

// Threshold is the proximity envelope inside which two reports of the same
// category are treated as one physical event. Both bounds are inclusive.
type Threshold struct {
	RadiusKm float64
	Window   time.Duration
}

// DuplicateRules maps each category to its Threshold. Categories without an
// entry use Fallback.
type DuplicateRules struct {
	ByCategory map[Category]Threshold
	Fallback   Threshold
}

// DefaultDuplicateRules returns the stock per-category thresholds.
func DefaultDuplicateRules() DuplicateRules {
	return DuplicateRules{
		ByCategory: map[Category]Threshold{
			CategoryEarthquake: {RadiusKm: 50, Window: 24 * time.Hour},
			CategoryVolcano:    {RadiusKm: 20, Window: 168 * time.Hour},
			CategoryWildfire:   {RadiusKm: 100, Window: 72 * time.Hour},
			CategoryHurricane:  {RadiusKm: 200, Window: 48 * time.Hour},
			CategoryStorm:      {RadiusKm: 200, Window: 48 * time.Hour},
			CategoryFlood:      {RadiusKm: 100, Window: 72 * time.Hour},
		},
		Fallback: Threshold{RadiusKm: 50, Window: 48 * time.Hour},
	}
}

// For returns the threshold governing category c.
func (r DuplicateRules) For(c Category) Threshold {
	if t, ok := r.ByCategory[c]; ok {
		return t
	}
	return r.Fallback
}
