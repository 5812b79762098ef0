package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
)

// Enricher adds reverse-geocoded place names to merged records.
type Enricher struct {
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewEnricher creates an Enricher. Pass a nil geocoder to disable enrichment.
func NewEnricher(geocoder domain.Geocoder, logger *slog.Logger) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		logger:   logger,
	}
}

// Enrich returns a new slice with each record passed through
// domain.EnrichWithPlace. The input slice is left untouched. Once ctx is done
// the remaining records are copied through as they are.
func (e *Enricher) Enrich(ctx context.Context, records []domain.EventRecord) []domain.EventRecord {
	if e == nil || e.geocoder == nil || len(records) == 0 {
		return records
	}

	out := make([]domain.EventRecord, len(records))
	for i, rec := range records {
		if ctx.Err() != nil {
			copy(out[i:], records[i:])
			break
		}
		out[i] = domain.EnrichWithPlace(ctx, rec, e.geocoder, e.logger)
	}
	return out
}
