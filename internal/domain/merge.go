package domain

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"
)

// Stats summarizes one merge run.
//
// Total counts records admitted to the working set; Rejected counts records the
// merger's own validity gate refused (invalid, or an identifier already seen in
// the batch). BySource and ByCategory break Total down before deduplication.
type Stats struct {
	Total             int              `json:"total"`
	DuplicatesRemoved int              `json:"duplicates_removed"`
	Rejected          int              `json:"rejected"`
	BySource          map[string]int   `json:"by_source"`
	ByCategory        map[Category]int `json:"by_category"`
}

// Cluster records one multi-member duplicate group: the chosen representative
// and every member id in the order it joined.
type Cluster struct {
	RepresentativeID string   `json:"representative_id"`
	MemberIDs        []string `json:"member_ids"`
}

// MergeResult is the deduplicated record list, most recent first, plus stats.
type MergeResult struct {
	Records  []EventRecord `json:"records"`
	Stats    Stats         `json:"stats"`
	Clusters []Cluster     `json:"clusters,omitempty"`
}

// Merger reconciles normalized records from several sources into one list of
// unique events.
type Merger struct {
	rules  DuplicateRules
	strict bool
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithDuplicateRules replaces the default proximity thresholds.
func WithDuplicateRules(rules DuplicateRules) MergerOption {
	return func(m *Merger) {
		m.rules = rules
	}
}

// WithStrictContracts makes Merge panic when a record carries a category outside
// the enumeration. Normalizers never emit one, so this only fires on programming
// errors; intended for development runs.
func WithStrictContracts() MergerOption {
	return func(m *Merger) {
		m.strict = true
	}
}

// NewMerger creates a Merger using DefaultDuplicateRules unless overridden.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{rules: DefaultDuplicateRules()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MergeSources merges the given lists with the default rules.
func MergeSources(lists ...[]EventRecord) MergeResult {
	return NewMerger().Merge(lists...)
}

// Merge concatenates the lists in order, drops anything failing validation,
// collapses cross-source duplicates and returns the survivors sorted by
// OccurredAt descending. Inputs are never modified.
//
// Clustering walks the working set in order. Each unassigned record opens a
// cluster and becomes its running best; every later unassigned record that
// duplicates the running best joins the cluster, and the best is re-picked
// after each join. Later candidates are compared against the current best,
// not the opening record, so a chain A~B, B~C can land in one cluster even
// when A and C are not within range of each other.
func (m *Merger) Merge(lists ...[]EventRecord) MergeResult {
	stats := Stats{
		BySource:   make(map[string]int),
		ByCategory: make(map[Category]int),
	}

	working := m.admit(lists, &stats)
	stats.Total = len(working)

	assigned := make([]bool, len(working))
	out := make([]EventRecord, 0, len(working))
	var clusters []Cluster

	for i := range working {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		best := working[i]
		var members []string

		for j := i + 1; j < len(working); j++ {
			if assigned[j] || !m.isDuplicate(best, working[j]) {
				continue
			}
			assigned[j] = true
			if members == nil {
				members = []string{best.ID}
			}
			members = append(members, working[j].ID)
			best = preferred(best, working[j])
		}

		if len(members) > 1 {
			stats.DuplicatesRemoved += len(members) - 1
			clusters = append(clusters, Cluster{RepresentativeID: best.ID, MemberIDs: members})
		}
		out = append(out, best)
	}

	slices.SortStableFunc(out, func(a, b EventRecord) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})

	return MergeResult{Records: out, Stats: stats, Clusters: clusters}
}

// admit re-checks validity and identifier uniqueness, first occurrence winning.
func (m *Merger) admit(lists [][]EventRecord, stats *Stats) []EventRecord {
	now := clock.Now()
	n := 0
	for _, l := range lists {
		n += len(l)
	}

	working := make([]EventRecord, 0, n)
	seen := make(map[string]struct{}, n)
	for _, list := range lists {
		for _, rec := range list {
			if err := Validate(rec, now); err != nil {
				if m.strict && errors.Is(err, ErrUnknownCategory) {
					panic(fmt.Sprintf("merge: record %q has category %q outside the enumeration", rec.ID, rec.Category))
				}
				stats.Rejected++
				continue
			}
			if _, dup := seen[rec.ID]; dup {
				stats.Rejected++
				continue
			}
			seen[rec.ID] = struct{}{}
			working = append(working, rec)
			stats.BySource[rec.Source]++
			stats.ByCategory[rec.Category]++
		}
	}
	return working
}

// isDuplicate reports whether a and b describe the same physical event: different
// sources, same category, and within the category's distance and time envelope.
func (m *Merger) isDuplicate(a, b EventRecord) bool {
	if a.Source == b.Source || a.Category != b.Category {
		return false
	}
	t := m.rules.For(a.Category)
	if HaversineKm(a.Position, b.Position) > t.RadiusKm {
		return false
	}
	dt := a.OccurredAt.Sub(b.OccurredAt)
	if dt < 0 {
		dt = -dt
	}
	return dt <= t.Window
}

// preferred picks the cluster representative between the running best and a
// new member. Source trust decides first, then information richness; exact
// ties keep current.
func preferred(current, candidate EventRecord) EventRecord {
	rc, rn := TrustRank(current.Source), TrustRank(candidate.Source)
	if rn != rc {
		if rn > rc {
			return candidate
		}
		return current
	}
	if richness(candidate) > richness(current) {
		return candidate
	}
	return current
}

// richness scores how much descriptive content a record carries.
func richness(r EventRecord) int {
	score := 0
	if r.Name != "" {
		score++
	}
	if r.Narrative != "" {
		score += 2
	}
	if r.ImpactCount > 0 {
		score++
	}
	if r.Magnitude != nil {
		score++
	}
	if r.SourceLink != "" {
		score++
	}
	if r.ImageLink != "" {
		score++
	}
	if len(r.ReliefLinks) > 0 {
		score += 2
	}
	n := utf8.RuneCountInString(r.Narrative)
	if n > 50 {
		score++
	}
	if n > 100 {
		score++
	}
	return score
}
