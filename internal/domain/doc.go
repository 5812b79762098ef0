// Package domain normalizes disaster reports from three feeds into one schema
// and reconciles duplicate reports of the same physical event.
//
// # Sources
//
// EM-DAT: a historical spreadsheet export, one row per disaster. Coordinates
// are frequently blank; rows without them are dropped (the feeds adapter may
// forward geocode them first, see [GeocodeEMDATRow]). Start dates come as
// separate year/month/day columns with month and day optional.
//
// EONET: NASA's natural-event feed. Each event carries a dated series of Point
// or Polygon geometries. The record is positioned at the latest observation
// and dated at the earliest.
//
// USGS: the seismic GeoJSON feed. Coordinates are [lon, lat, depth_km]; origin
// time is milliseconds since the Unix epoch.
//
// # Category inference
//
// Each source has an ordered [KeywordTable]. Texts are lower-cased and
// stripped of diacritics, then the first rule with a matching substring wins.
// Rule order is part of the behavior: hurricane rules precede the generic storm
// rule so "Tropical storm" resolves to hurricane.
//
// # Severity
//
//	EM-DAT: deaths*10 + affected   >=1e6 critical | >=1e5 high | >=1e4 moderate | else low
//	USGS:   magnitude              >=8.0 critical | >=6.0 high | >=5.0 moderate | else low
//	EONET:  active duration (days), per-category bands; earthquakes and
//	        single-observation events are fixed at moderate
//
// Only EM-DAT reports people affected. The other feeds always carry
// ImpactCount 0; it is never estimated.
//
// # Merging
//
// [Merger.Merge] treats two records as the same event when they come from
// different sources, share a category, and fall within the category's
// [Threshold] for great-circle distance and time difference (both inclusive).
// A cluster's representative is chosen by [TrustRank] (USGS > EONET > EM-DAT)
// and then by information richness.
//
// # ID Generation
//
// Record IDs are "<source>-<native id>". When a source omits its id, a
// deterministic SHA-256 prefix of source|lat|lon|time is used instead, so
// re-fetching a snapshot reproduces the same IDs.
package domain
