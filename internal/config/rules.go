package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// Rules bundles the tunable merge policy: duplicate thresholds and the
// per-source keyword tables used for category inference.
type Rules struct {
	Duplicates    domain.DuplicateRules
	EMDATKeywords domain.KeywordTable
	EONETKeywords domain.KeywordTable
	USGSKeywords  domain.KeywordTable
}

// DefaultRules returns the built-in policy.
func DefaultRules() Rules {
	return Rules{
		Duplicates:    domain.DefaultDuplicateRules(),
		EMDATKeywords: domain.DefaultEMDATKeywords(),
		EONETKeywords: domain.DefaultEONETKeywords(),
		USGSKeywords:  domain.DefaultUSGSKeywords(),
	}
}

type rulesFile struct {
	DuplicateRules map[string]thresholdSpec `yaml:"duplicate_rules"`
	Keywords       map[string][]keywordSpec `yaml:"keywords"`
}

type thresholdSpec struct {
	RadiusKm *float64 `yaml:"radius_km"`
	Window   string   `yaml:"window"`
}

type keywordSpec struct {
	Category string   `yaml:"category"`
	When     []string `yaml:"when"`
}

// LoadRules reads a YAML rules file over the defaults. An empty path returns
// DefaultRules. Threshold entries override only the fields they set; a keyword
// section replaces that source's table in file order.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules over the defaults.
func ParseRules(data []byte) (Rules, error) {
	rules := DefaultRules()

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Rules{}, fmt.Errorf("decode rules: %w", err)
	}

	// Fallback first: categories without their own entry inherit from it.
	if spec, ok := f.DuplicateRules["fallback"]; ok {
		t, err := spec.apply(rules.Duplicates.Fallback)
		if err != nil {
			return Rules{}, fmt.Errorf("duplicate_rules.fallback: %w", err)
		}
		rules.Duplicates.Fallback = t
	}
	for key, spec := range f.DuplicateRules {
		if key == "fallback" {
			continue
		}
		cat := domain.Category(key)
		if !cat.Valid() {
			return Rules{}, fmt.Errorf("duplicate_rules.%s: %w", key, domain.ErrUnknownCategory)
		}
		t, err := spec.apply(rules.Duplicates.For(cat))
		if err != nil {
			return Rules{}, fmt.Errorf("duplicate_rules.%s: %w", key, err)
		}
		rules.Duplicates.ByCategory[cat] = t
	}

	for source, specs := range f.Keywords {
		table, err := keywordTable(specs)
		if err != nil {
			return Rules{}, fmt.Errorf("keywords.%s%w", source, err)
		}
		switch source {
		case domain.SourceEMDAT:
			rules.EMDATKeywords = table
		case domain.SourceEONET:
			rules.EONETKeywords = table
		case domain.SourceUSGS:
			rules.USGSKeywords = table
		default:
			return Rules{}, fmt.Errorf("keywords.%s: unknown source", source)
		}
	}

	return rules, nil
}

func (s thresholdSpec) apply(base domain.Threshold) (domain.Threshold, error) {
	t := base
	if s.RadiusKm != nil {
		if *s.RadiusKm < 0 {
			return domain.Threshold{}, errors.New("radius_km must not be negative")
		}
		t.RadiusKm = *s.RadiusKm
	}
	if s.Window != "" {
		d, err := time.ParseDuration(s.Window)
		if err != nil {
			return domain.Threshold{}, fmt.Errorf("window: %w", err)
		}
		if d < 0 {
			return domain.Threshold{}, errors.New("window must not be negative")
		}
		t.Window = d
	}
	return t, nil
}

func keywordTable(specs []keywordSpec) (domain.KeywordTable, error) {
	table := make(domain.KeywordTable, 0, len(specs))
	for i, s := range specs {
		cat := domain.Category(s.Category)
		if !cat.Valid() {
			return nil, fmt.Errorf("[%d]: %q: %w", i, s.Category, domain.ErrUnknownCategory)
		}
		if len(s.When) == 0 {
			return nil, fmt.Errorf("[%d]: no keywords for %s", i, cat)
		}
		table = append(table, domain.KeywordRule{Category: cat, Keywords: s.When})
	}
	return table, nil
}
