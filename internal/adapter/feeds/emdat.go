package feeds

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/klauspost/compress/zstd"
)

// EMDATLoader reads a spreadsheet export saved as CSV, optionally
// zstd-compressed (".zst" suffix).
type EMDATLoader struct {
	path     string
	keywords domain.KeywordTable
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewEMDATLoader creates a loader for the export at path. A non-nil geocoder
// fills in rows that have a location but no coordinates.
func NewEMDATLoader(path string, keywords domain.KeywordTable, geocoder domain.Geocoder, logger *slog.Logger) *EMDATLoader {
	return &EMDATLoader{
		path:     path,
		keywords: keywords,
		geocoder: geocoder,
		logger:   logger,
	}
}

// Name returns the source tag.
func (l *EMDATLoader) Name() string { return domain.SourceEMDAT }

// Collect reads, geocodes and normalizes the export.
func (l *EMDATLoader) Collect(ctx context.Context) (domain.NormalizeResult, error) {
	rows, err := ReadEMDATFile(l.path)
	if err != nil {
		return domain.NormalizeResult{}, err
	}

	if l.geocoder != nil {
		for i := range rows {
			if err := ctx.Err(); err != nil {
				return domain.NormalizeResult{}, err
			}
			rows[i] = domain.GeocodeEMDATRow(ctx, rows[i], l.geocoder, l.logger)
		}
	}

	return domain.NormalizeEMDAT(rows, l.keywords), nil
}

// ReadEMDATFile opens path and parses it with ParseEMDAT, decompressing
// ".zst" files on the fly.
func ReadEMDATFile(path string) ([]domain.EMDATRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open emdat export: %w", err)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(strings.ToLower(path), ".zst") {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}
	return ParseEMDAT(r)
}

// emdatColumns maps normalized header names to row fields. Headers are
// lower-cased with punctuation and spaces removed, so "DisNo.", "Dis No" and
// "dis_no" all resolve to "disno".
var emdatColumns = map[string]func(*domain.EMDATRow, string){
	"disno":           func(r *domain.EMDATRow, v string) { r.DisNo = v },
	"disastertype":    func(r *domain.EMDATRow, v string) { r.DisasterType = v },
	"disastersubtype": func(r *domain.EMDATRow, v string) { r.DisasterSubtype = v },
	"eventname":       func(r *domain.EMDATRow, v string) { r.EventName = v },
	"country":         func(r *domain.EMDATRow, v string) { r.Country = v },
	"location":        func(r *domain.EMDATRow, v string) { r.Location = v },
	"latitude":        func(r *domain.EMDATRow, v string) { r.Latitude = v },
	"longitude":       func(r *domain.EMDATRow, v string) { r.Longitude = v },
	"startyear":       func(r *domain.EMDATRow, v string) { r.StartYear = v },
	"startmonth":      func(r *domain.EMDATRow, v string) { r.StartMonth = v },
	"startday":        func(r *domain.EMDATRow, v string) { r.StartDay = v },
	"totaldeaths":     func(r *domain.EMDATRow, v string) { r.TotalDeaths = v },
	"totalaffected":   func(r *domain.EMDATRow, v string) { r.TotalAffected = v },
}

// ParseEMDAT reads CSV with a header row. Unknown columns are ignored; a
// header without a DisNo column is rejected as not being an export.
func ParseEMDAT(r io.Reader) ([]domain.EMDATRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read emdat header: %w", err)
	}

	setters := make([]func(*domain.EMDATRow, string), len(header))
	hasID := false
	for i, h := range header {
		key := headerKey(h)
		setters[i] = emdatColumns[key]
		hasID = hasID || key == "disno"
	}
	if !hasID {
		return nil, errors.New("read emdat header: no DisNo column")
	}

	var rows []domain.EMDATRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read emdat row %d: %w", len(rows)+2, err)
		}

		var row domain.EMDATRow
		for i, v := range rec {
			if i < len(setters) && setters[i] != nil {
				setters[i](&row, strings.TrimSpace(v))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
