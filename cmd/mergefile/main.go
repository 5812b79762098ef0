// Command mergefile normalizes and merges locally saved source payloads
// without running the service. It uses the same domain package as the
// refresh loop, so its output matches what the service would publish.
//
// Usage:
//
//	go run ./cmd/mergefile \
//	  -emdat data/sample/emdat.csv \
//	  -eonet data/sample/eonet.json \
//	  -usgs data/sample/usgs.geojson \
//	  -out merged.json
//
// Any input may be omitted. Files ending in .zst are decompressed.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/adapter/feeds"
	"github.com/couchcryptid/disaster-merge-service/internal/config"
	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/klauspost/compress/zstd"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

type options struct {
	emdat  string
	eonet  string
	usgs   string
	rules  string
	out    string
	now    string
	strict bool
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("mergefile", flag.ContinueOnError)
	fs.StringVar(&o.emdat, "emdat", "", "spreadsheet export (CSV, optionally .zst)")
	fs.StringVar(&o.eonet, "eonet", "", "natural-event feed payload (JSON)")
	fs.StringVar(&o.usgs, "usgs", "", "seismic feed payload (GeoJSON)")
	fs.StringVar(&o.rules, "rules", "", "optional rules file (YAML)")
	fs.StringVar(&o.out, "out", "-", "output path for the merged JSON, - for stdout")
	fs.StringVar(&o.now, "now", "", "fixed processing time (RFC3339) for reproducible output")
	fs.BoolVar(&o.strict, "strict", false, "panic on merger contract violations")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.emdat == "" && o.eonet == "" && o.usgs == "" {
		fs.Usage()
		return o, errors.New("at least one of -emdat, -eonet, -usgs is required")
	}
	return o, nil
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if opts.now != "" {
		at, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("invalid -now: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(at))
		defer domain.SetClock(nil)
	}

	rules, err := config.LoadRules(opts.rules)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	// Merge input order is spreadsheet, natural-event feed, seismic feed.
	var lists [][]domain.EventRecord
	var dropped []domain.Drop

	if opts.emdat != "" {
		rows, err := feeds.ReadEMDATFile(opts.emdat)
		if err != nil {
			return err
		}
		res := domain.NormalizeEMDAT(rows, rules.EMDATKeywords)
		lists, dropped = append(lists, res.Records), append(dropped, res.Dropped...)
		log.Printf("emdat: %d rows, %d records", len(rows), len(res.Records))
	}
	if opts.eonet != "" {
		data, err := readPayload(opts.eonet)
		if err != nil {
			return err
		}
		events, err := feeds.ParseEONET(data)
		if err != nil {
			return err
		}
		res := domain.NormalizeEONET(events, rules.EONETKeywords)
		lists, dropped = append(lists, res.Records), append(dropped, res.Dropped...)
		log.Printf("eonet: %d events, %d records", len(events), len(res.Records))
	}
	if opts.usgs != "" {
		data, err := readPayload(opts.usgs)
		if err != nil {
			return err
		}
		features, err := feeds.ParseUSGS(data)
		if err != nil {
			return err
		}
		res := domain.NormalizeUSGS(features, rules.USGSKeywords)
		lists, dropped = append(lists, res.Records), append(dropped, res.Dropped...)
		log.Printf("usgs: %d features, %d records", len(features), len(res.Records))
	}

	mergerOpts := []domain.MergerOption{domain.WithDuplicateRules(rules.Duplicates)}
	if opts.strict {
		mergerOpts = append(mergerOpts, domain.WithStrictContracts())
	}
	result := domain.NewMerger(mergerOpts...).Merge(lists...)

	if err := writeJSON(opts.out, stdout, result); err != nil {
		return fmt.Errorf("writing merged output: %w", err)
	}
	if opts.out != "-" {
		log.Printf("wrote merged output: %s", opts.out)
	}

	printStats(os.Stderr, result, dropped)
	return nil
}

// readPayload reads a file, decompressing it when the name ends in .zst.
func readPayload(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(path), ".zst") {
		return data, nil
	}
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open zstd stream %s: %w", path, err)
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

func writeJSON(path string, stdout io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

type keyCount struct {
	key   string
	count int
}

func sortedCounts[K ~string](m map[K]int) []keyCount {
	out := make([]keyCount, 0, len(m))
	for k, c := range m {
		out = append(out, keyCount{string(k), c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].key < out[j].key
	})
	return out
}

func printStats(w io.Writer, result domain.MergeResult, dropped []domain.Drop) {
	s := result.Stats
	fmt.Fprintln(w, "\n=== Merge stats ===")
	fmt.Fprintf(w, "Admitted: %d\n", s.Total)
	fmt.Fprintf(w, "Duplicates removed: %d\n", s.DuplicatesRemoved)
	fmt.Fprintf(w, "Rejected: %d\n", s.Rejected)
	fmt.Fprintf(w, "Merged records: %d\n", len(result.Records))

	fmt.Fprint(w, "By source:")
	for _, kc := range sortedCounts(s.BySource) {
		fmt.Fprintf(w, " %s=%d", kc.key, kc.count)
	}
	fmt.Fprintln(w)

	fmt.Fprint(w, "By category:")
	for _, kc := range sortedCounts(s.ByCategory) {
		fmt.Fprintf(w, " %s=%d", kc.key, kc.count)
	}
	fmt.Fprintln(w)

	if len(dropped) > 0 {
		reasons := make(map[string]int)
		for _, d := range dropped {
			reasons[d.Source+"/"+string(d.Reason)]++
		}
		fmt.Fprintf(w, "Dropped (%d):", len(dropped))
		for _, kc := range sortedCounts(reasons) {
			fmt.Fprintf(w, " %s=%d", kc.key, kc.count)
		}
		fmt.Fprintln(w)
	}

	if len(result.Clusters) > 0 {
		fmt.Fprintln(w, "\nClusters:")
		for _, c := range result.Clusters {
			fmt.Fprintf(w, "  %s <- %s\n", c.RepresentativeID, strings.Join(c.MemberIDs, ", "))
		}
	}
}
