// Command validate checks a merged output file (as written by mergefile) for
// internal consistency: every record satisfies the schema, identifiers are
// unique, records are ordered most recent first, stats add up, and every
// cluster resolves to a surviving representative that outranks its members.
//
// Usage:
//
//	go run ./cmd/validate -merged merged.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	merged := flag.String("merged", "", "path to merged JSON output")
	flag.Parse()

	if *merged == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*merged, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(path string, out io.Writer) int {
	fmt.Fprintln(out, "=== Merged Output Validation ===")

	result, err := loadResult(path)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load merged JSON: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(result.Records),
		validateIdentifiers(result.Records),
		validateOrdering(result.Records),
		validateStats(result),
		validateClusters(result),
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-32s %s\n", p.name, status)
	}

	fmt.Fprintf(out, "\nRecords: %d merged, %d admitted, %d duplicates removed\n",
		len(result.Records), result.Stats.Total, result.Stats.DuplicatesRemoved)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func loadResult(path string) (domain.MergeResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.MergeResult{}, err
	}
	var result domain.MergeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.MergeResult{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return result, nil
}

// validateSchema checks each record against the validator, using the record's
// own processing time as "now" so archived output stays checkable.
func validateSchema(records []domain.EventRecord) *phase {
	p := &phase{name: "Record schema"}
	for i, r := range records {
		now := r.ProcessedAt
		if now.IsZero() {
			now = time.Now()
		}
		if err := domain.Validate(r, now); err != nil {
			p.errorf("record %d (%s): %v", i, r.ID, err)
		}
		if domain.TrustRank(r.Source) == 0 {
			p.errorf("record %d (%s): unknown source %q", i, r.ID, r.Source)
		}
	}
	return p
}

func validateIdentifiers(records []domain.EventRecord) *phase {
	p := &phase{name: "Unique identifiers"}
	seen := make(map[string]int, len(records))
	for i, r := range records {
		if first, ok := seen[r.ID]; ok {
			p.errorf("record %d repeats id %s (first at %d)", i, r.ID, first)
			continue
		}
		seen[r.ID] = i
	}
	return p
}

func validateOrdering(records []domain.EventRecord) *phase {
	p := &phase{name: "Most recent first"}
	for i := 1; i < len(records); i++ {
		if records[i].OccurredAt.After(records[i-1].OccurredAt) {
			p.errorf("record %d (%s) at %s follows earlier %s",
				i, records[i].ID, records[i].OccurredAt.Format(time.RFC3339), records[i-1].OccurredAt.Format(time.RFC3339))
		}
	}
	return p
}

func validateStats(result domain.MergeResult) *phase {
	p := &phase{name: "Stats consistency"}
	s := result.Stats

	if got := s.Total - s.DuplicatesRemoved; got != len(result.Records) {
		p.errorf("total %d minus duplicates %d = %d, but %d records present",
			s.Total, s.DuplicatesRemoved, got, len(result.Records))
	}
	if sum := sumValues(s.BySource); sum != s.Total {
		p.errorf("by_source sums to %d, total is %d", sum, s.Total)
	}
	if sum := sumValues(s.ByCategory); sum != s.Total {
		p.errorf("by_category sums to %d, total is %d", sum, s.Total)
	}

	removed := 0
	for _, c := range result.Clusters {
		removed += len(c.MemberIDs) - 1
	}
	if removed != s.DuplicatesRemoved {
		p.errorf("clusters account for %d removed duplicates, stats say %d", removed, s.DuplicatesRemoved)
	}
	return p
}

func validateClusters(result domain.MergeResult) *phase {
	p := &phase{name: "Cluster representatives"}
	present := make(map[string]bool, len(result.Records))
	for _, r := range result.Records {
		present[r.ID] = true
	}

	for i, c := range result.Clusters {
		if len(c.MemberIDs) < 2 {
			p.errorf("cluster %d (%s) has %d members", i, c.RepresentativeID, len(c.MemberIDs))
		}
		if !present[c.RepresentativeID] {
			p.errorf("cluster %d representative %s is not in the merged list", i, c.RepresentativeID)
		}

		repRank := domain.TrustRank(sourceOf(c.RepresentativeID))
		found := false
		for _, id := range c.MemberIDs {
			if id == c.RepresentativeID {
				found = true
				continue
			}
			if present[id] {
				p.errorf("cluster %d member %s survived alongside representative %s", i, id, c.RepresentativeID)
			}
			if domain.TrustRank(sourceOf(id)) > repRank {
				p.errorf("cluster %d member %s outranks representative %s", i, id, c.RepresentativeID)
			}
		}
		if !found {
			p.errorf("cluster %d representative %s is not among its members", i, c.RepresentativeID)
		}
	}
	return p
}

// sourceOf reads the source tag from a "<source>-<native id>" identifier.
func sourceOf(id string) string {
	source, _, _ := strings.Cut(id, "-")
	return source
}

func sumValues[K comparable](m map[K]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
