package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// KeywordRule maps a set of substrings to a category.
type KeywordRule struct {
	Category Category
	Keywords []string
}

// KeywordTable is an ordered list of rules. Order is significant: the first rule
// with any matching keyword decides the category, so "tropical storm" must sit in
// an earlier hurricane rule to beat the generic storm rule.
type KeywordTable []KeywordRule

// Match folds the given texts and returns the category of the first rule whose
// keyword appears in any of them, or CategoryOther when nothing matches.
func (t KeywordTable) Match(texts ...string) Category {
	folded := make([]string, 0, len(texts))
	for _, s := range texts {
		if s = foldText(s); s != "" {
			folded = append(folded, s)
		}
	}
	if len(folded) == 0 {
		return CategoryOther
	}

	for _, rule := range t {
		for _, kw := range rule.Keywords {
			kw = foldText(kw)
			if kw == "" {
				continue
			}
			for _, s := range folded {
				if strings.Contains(s, kw) {
					return rule.Category
				}
			}
		}
	}
	return CategoryOther
}

// foldText lower-cases s and strips diacritics so "Inondación" matches "inondacion".
func foldText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFKD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// DefaultEMDATKeywords matches the spreadsheet's "Disaster Type", "Disaster
// Subtype" and "Event Name" columns.
func DefaultEMDATKeywords() KeywordTable {
	return KeywordTable{
		{Category: CategoryHurricane, Keywords: []string{"hurricane", "cyclone", "typhoon", "tropical storm"}},
		{Category: CategoryWildfire, Keywords: []string{"wildfire", "forest fire", "bushfire", "land fire", "fire"}},
		{Category: CategoryFlood, Keywords: []string{"flood", "riverine", "flash flood", "coastal flood"}},
		{Category: CategoryEarthquake, Keywords: []string{"earthquake", "ground movement", "tsunami"}},
		{Category: CategoryVolcano, Keywords: []string{"volcan", "eruption", "ash fall", "lava"}},
		{Category: CategoryDrought, Keywords: []string{"drought"}},
		{Category: CategoryHeatwave, Keywords: []string{"heat wave", "heatwave", "extreme heat"}},
		{Category: CategoryStorm, Keywords: []string{"storm", "tornado", "blizzard", "hail", "convective", "derecho"}},
	}
}

// DefaultEONETKeywords matches the natural-event feed's title and category ids/titles.
func DefaultEONETKeywords() KeywordTable {
	return KeywordTable{
		{Category: CategoryHurricane, Keywords: []string{"hurricane", "cyclone", "typhoon", "tropical storm"}},
		{Category: CategoryWildfire, Keywords: []string{"wildfire", "fire"}},
		{Category: CategoryVolcano, Keywords: []string{"volcano", "volcanoes", "eruption"}},
		{Category: CategoryFlood, Keywords: []string{"flood"}},
		{Category: CategoryDrought, Keywords: []string{"drought"}},
		{Category: CategoryEarthquake, Keywords: []string{"earthquake"}},
		{Category: CategoryHeatwave, Keywords: []string{"tempextremes", "temperature extremes", "heat wave", "heatwave"}},
		{Category: CategoryStorm, Keywords: []string{"severestorms", "severe storms", "storm", "blizzard"}},
	}
}

// DefaultUSGSKeywords matches the seismic feed's event type and title.
func DefaultUSGSKeywords() KeywordTable {
	return KeywordTable{
		{Category: CategoryVolcano, Keywords: []string{"volcanic", "eruption"}},
		{Category: CategoryEarthquake, Keywords: []string{"earthquake", "quake"}},
	}
}
