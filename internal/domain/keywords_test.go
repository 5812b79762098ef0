package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultEMDATKeywords(t *testing.T) {
	table := DefaultEMDATKeywords()

	tests := []struct {
		name  string
		texts []string
		want  Category
	}{
		{"tropical cyclone", []string{"Storm", "Tropical cyclone", "Hurricane Ian"}, CategoryHurricane},
		{"tropical storm beats storm", []string{"Storm", "Tropical storm"}, CategoryHurricane},
		{"convective storm", []string{"Storm", "Convective storm"}, CategoryStorm},
		{"forest fire", []string{"Wildfire", "Forest fire"}, CategoryWildfire},
		{"flash flood", []string{"Flood", "Flash flood"}, CategoryFlood},
		{"ground movement", []string{"Earthquake", "Ground movement"}, CategoryEarthquake},
		{"ash fall", []string{"Volcanic activity", "Ash fall"}, CategoryVolcano},
		{"drought", []string{"Drought", "Drought"}, CategoryDrought},
		{"heat wave", []string{"Extreme temperature", "Heat wave"}, CategoryHeatwave},
		{"cold wave", []string{"Extreme temperature", "Cold wave"}, CategoryOther},
		{"landslide", []string{"Mass movement (wet)", "Landslide"}, CategoryOther},
		{"blank", []string{"", "  "}, CategoryOther},
		{"no texts", nil, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Match(tt.texts...))
		})
	}
}

func TestDefaultEONETKeywords(t *testing.T) {
	table := DefaultEONETKeywords()

	tests := []struct {
		name  string
		texts []string
		want  Category
	}{
		{"wildfire category id", []string{"Canyon Fire, California", "wildfires", "Wildfires"}, CategoryWildfire},
		{"cyclone in severe storms", []string{"Tropical Cyclone Freddy", "severeStorms", "Severe Storms"}, CategoryHurricane},
		{"severe storm", []string{"Blizzard in the Northeast", "severeStorms", "Severe Storms"}, CategoryStorm},
		{"volcano", []string{"Etna Volcano, Italy", "volcanoes", "Volcanoes"}, CategoryVolcano},
		{"temperature extremes", []string{"Heat Wave, India", "tempExtremes", "Temperature Extremes"}, CategoryHeatwave},
		{"sea ice", []string{"Iceberg A68", "seaLakeIce", "Sea and Lake Ice"}, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Match(tt.texts...))
		})
	}
}

func TestDefaultUSGSKeywords(t *testing.T) {
	table := DefaultUSGSKeywords()

	assert.Equal(t, CategoryEarthquake, table.Match("earthquake", "M 6.1 - 10 km SW of Town"))
	assert.Equal(t, CategoryVolcano, table.Match("volcanic eruption", "M 2.0 - Kilauea"))
	assert.Equal(t, CategoryOther, table.Match("quarry blast", "M 1.8 - 3 km E of Pit"))
}

func TestKeywordTable_FoldsCaseAndDiacritics(t *testing.T) {
	table := KeywordTable{
		{Category: CategoryFlood, Keywords: []string{"Inondación"}},
		{Category: CategoryHeatwave, Keywords: []string{"canicule"}},
	}

	assert.Equal(t, CategoryFlood, table.Match("INONDACION du Rhône"))
	assert.Equal(t, CategoryHeatwave, table.Match("Canicule"))
	assert.Equal(t, CategoryOther, table.Match("Sécheresse"))
}

func TestKeywordTable_FirstRuleWins(t *testing.T) {
	table := KeywordTable{
		{Category: CategoryStorm, Keywords: []string{"storm"}},
		{Category: CategoryHurricane, Keywords: []string{"tropical storm"}},
	}

	assert.Equal(t, CategoryStorm, table.Match("Tropical storm Alberto"))
}

func TestFoldText(t *testing.T) {
	assert.Equal(t, "sao tome", foldText("  São Tomé "))
	assert.Equal(t, "", foldText("   "))
}
