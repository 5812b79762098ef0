package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/disaster-merge-service/internal/domain"
	"github.com/couchcryptid/disaster-merge-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Source fetches and normalizes one upstream.
type Source interface {
	Name() string
	Collect(ctx context.Context) (domain.NormalizeResult, error)
}

// Publisher delivers a merged snapshot downstream.
type Publisher interface {
	Publish(ctx context.Context, runID string, records []domain.EventRecord) error
}

// SourceReport summarizes one source's contribution to a refresh.
type SourceReport struct {
	Source  string                    `json:"source"`
	Records int                       `json:"records"`
	Dropped map[domain.DropReason]int `json:"dropped,omitempty"`
	Error   string                    `json:"error,omitempty"`
}

// Snapshot is the outcome of one refresh. Snapshots are replaced wholesale and
// never modified after they are stored.
type Snapshot struct {
	RunID       string
	GeneratedAt time.Time
	Result      domain.MergeResult
	Sources     []SourceReport
}

// Config holds the refresh loop settings.
type Config struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

// Pipeline runs the fetch-merge-publish refresh loop.
type Pipeline struct {
	cfg       Config
	sources   []Source
	merger    *domain.Merger
	enricher  *Enricher
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	snapshot  atomic.Pointer[Snapshot]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the time source used for snapshot timestamps and the refresh timer.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// New creates a Pipeline. The enricher and publisher may be nil, which disables
// place-name enrichment and publishing respectively.
func New(cfg Config, sources []Source, merger *domain.Merger, enricher *Enricher, publisher Publisher,
	logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		sources:   sources,
		merger:    merger,
		enricher:  enricher,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a merged snapshot is available.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.snapshot.Load() == nil {
		return errors.New("no merged snapshot yet")
	}
	return nil
}

// Snapshot returns the latest merged snapshot, or nil before the first refresh.
func (p *Pipeline) Snapshot() *Snapshot {
	return p.snapshot.Load()
}

// Run refreshes immediately and then every Interval until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("refresh loop started", "interval", p.cfg.Interval, "sources", len(p.sources))
	p.metrics.RefreshRunning.Set(1)
	defer p.metrics.RefreshRunning.Set(0)

	for {
		if ctx.Err() != nil {
			break
		}
		if _, err := p.Refresh(ctx); err != nil {
			break
		}
		if !p.sleepWithContext(ctx, p.cfg.Interval) {
			break
		}
	}

	p.logger.Info("refresh loop stopping", "reason", ctx.Err())
	return nil
}

// Refresh runs one cycle: collect every source concurrently, merge, enrich,
// publish, and store the snapshot. A failing source contributes an empty list;
// the only error is cancellation of ctx.
func (p *Pipeline) Refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	lists, reports := p.collect(ctx, logger)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mergeStart := time.Now()
	result := p.merger.Merge(lists...)
	p.metrics.MergeDuration.Observe(time.Since(mergeStart).Seconds())
	p.metrics.MergeInput.Add(float64(result.Stats.Total))
	p.metrics.DuplicatesRemoved.Add(float64(result.Stats.DuplicatesRemoved))
	p.metrics.MergeRejected.Add(float64(result.Stats.Rejected))
	p.metrics.MergedRecords.Set(float64(len(result.Records)))

	result.Records = p.enricher.Enrich(ctx, result.Records)
	p.publish(ctx, logger, runID, result.Records)

	snap := &Snapshot{
		RunID:       runID,
		GeneratedAt: p.clock.Now().UTC(),
		Result:      result,
		Sources:     reports,
	}
	p.snapshot.Store(snap)

	p.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	logger.Info("refresh complete",
		"records", len(result.Records),
		"admitted", result.Stats.Total,
		"duplicates_removed", result.Stats.DuplicatesRemoved,
		"rejected", result.Stats.Rejected,
		"duration", time.Since(start),
	)
	return snap, nil
}

// collect runs every source in parallel. Sources never fail the group, so one
// slow or broken upstream cannot cancel the others.
func (p *Pipeline) collect(ctx context.Context, logger *slog.Logger) ([][]domain.EventRecord, []SourceReport) {
	lists := make([][]domain.EventRecord, len(p.sources))
	reports := make([]SourceReport, len(p.sources))

	var g errgroup.Group
	for i, src := range p.sources {
		g.Go(func() error {
			lists[i], reports[i] = p.collectSource(ctx, logger, src)
			return nil
		})
	}
	_ = g.Wait()

	return lists, reports
}

func (p *Pipeline) collectSource(ctx context.Context, logger *slog.Logger, src Source) ([]domain.EventRecord, SourceReport) {
	name := src.Name()
	report := SourceReport{Source: name}

	fetchCtx := ctx
	if p.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := src.Collect(fetchCtx)
	p.metrics.SourceFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.SourceFetches.WithLabelValues(name, "error").Inc()
		logger.Warn("source fetch failed, continuing without it", "source", name, "error", err)
		report.Error = err.Error()
		return nil, report
	}
	p.metrics.SourceFetches.WithLabelValues(name, "success").Inc()

	report.Records = len(res.Records)
	p.metrics.RecordsNormalized.WithLabelValues(name).Add(float64(len(res.Records)))
	if len(res.Dropped) > 0 {
		report.Dropped = res.DropCounts()
		for reason, n := range report.Dropped {
			p.metrics.RecordsDropped.WithLabelValues(name, string(reason)).Add(float64(n))
		}
		for _, d := range res.Dropped {
			logger.Debug("record dropped", "source", d.Source, "source_id", d.SourceID, "reason", d.Reason, "detail", d.Detail)
		}
	}

	logger.Info("source collected", "source", name, "records", report.Records, "dropped", len(res.Dropped))
	return res.Records, report
}

// publish is best-effort: a failed publish is logged and counted, and the
// snapshot is still stored.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, runID string, records []domain.EventRecord) {
	if p.publisher == nil || len(records) == 0 {
		return
	}
	if err := p.publisher.Publish(ctx, runID, records); err != nil {
		p.metrics.PublishErrors.Inc()
		logger.Error("publish failed", "error", err, "records", len(records))
		return
	}
	p.metrics.RecordsPublished.Add(float64(len(records)))
}

func (p *Pipeline) sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := p.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
