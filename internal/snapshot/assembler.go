// Package snapshot assembles per-locality insight snapshots from the loaded
// datasets.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/heat-insight-engine/internal/dataset"
	"github.com/couchcryptid/heat-insight-engine/internal/domain"
	"github.com/couchcryptid/heat-insight-engine/internal/locality"
	"github.com/couchcryptid/heat-insight-engine/internal/observability"
)

// ErrUnknownLocality is returned for a locality the registry does not list.
var ErrUnknownLocality = errors.New("unknown locality")

// Window bounds, in days.
const (
	DefaultDays = 7
	MinDays     = 3
	MaxDays     = 30
)

// publishTimeout bounds the detached publish after assembly.
const publishTimeout = 5 * time.Second

// Stage is a step of snapshot assembly.
type Stage string

const (
	StageCollecting  Stage = "collecting"
	StageClassifying Stage = "classifying"
	StageDeriving    Stage = "deriving"
	StageAssembled   Stage = "assembled"
)

// Query selects a locality and window.
type Query struct {
	Locality string
	Days     int
}

// ClampDays applies the default window to zero and clamps everything else into
// [MinDays, MaxDays].
func ClampDays(days int) int {
	switch {
	case days == 0:
		return DefaultDays
	case days < MinDays:
		return MinDays
	case days > MaxDays:
		return MaxDays
	}
	return days
}

// Datasets loads the per-locality slices of each dataset.
type Datasets interface {
	Hourly(ctx context.Context, locality string, windowDays int) (dataset.HourlySeries, error)
	History(ctx context.Context, locality string, windowDays int) ([]domain.DailyBaselinePoint, error)
	Forecast(ctx context.Context, locality string, windowDays int, today time.Time) ([]domain.ForecastPoint, error)
	Demographic(ctx context.Context, locality string) (*domain.DemographicRecord, error)
}

// Resolver maps a requested name to a registry entry.
type Resolver interface {
	Lookup(name string) (locality.Entry, bool)
}

// Publisher receives every assembled snapshot.
type Publisher interface {
	Publish(ctx context.Context, snap domain.InsightSnapshot) error
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithPublisher forwards assembled snapshots to p. Publish failures are logged
// and never fail the request.
func WithPublisher(p Publisher) Option {
	return func(a *Assembler) { a.publisher = p }
}

// WithDefaultDays sets the window used when a query names none. It is
// clamped into [MinDays, MaxDays].
func WithDefaultDays(days int) Option {
	return func(a *Assembler) { a.defaultDays = ClampDays(days) }
}

// Assembler builds insight snapshots.
type Assembler struct {
	data        Datasets
	localities  Resolver
	publisher   Publisher
	defaultDays int
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
}

// New creates an Assembler.
func New(data Datasets, localities Resolver, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Assembler {
	a := &Assembler{
		data:        data,
		localities:  localities,
		defaultDays: DefaultDays,
		logger:      logger,
		metrics:     metrics,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CheckReadiness reports whether the datasets can be served. When the
// dataset provider exposes a Check method it is consulted; otherwise the
// assembler is ready once it has assembled one snapshot.
func (a *Assembler) CheckReadiness(ctx context.Context) error {
	if c, ok := a.data.(interface{ Check(context.Context) error }); ok {
		return c.Check(ctx)
	}
	if !a.ready.Load() {
		return errors.New("no snapshot assembled yet")
	}
	return nil
}

// collected holds the raw results of the collecting stage.
type collected struct {
	hourly      dataset.HourlySeries
	history     []domain.DailyBaselinePoint
	forecast    []domain.ForecastPoint
	demographic *domain.DemographicRecord
}

// Assemble builds the snapshot for q. Any dataset failing to load fails the
// whole snapshot; empty datasets only make the derived fields unknown.
func (a *Assembler) Assemble(ctx context.Context, q Query) (domain.InsightSnapshot, error) {
	start := time.Now()

	entry, ok := a.localities.Lookup(q.Locality)
	if !ok {
		a.metrics.Snapshots.WithLabelValues("unknown_locality").Inc()
		return domain.InsightSnapshot{}, fmt.Errorf("%w: %q", ErrUnknownLocality, q.Locality)
	}
	name := entry.Name
	days := q.Days
	if days == 0 {
		days = a.defaultDays
	}
	days = ClampDays(days)
	now := clock.Now()
	log := a.logger.With("locality", name, "window_days", days)

	a.enter(log, StageCollecting)
	c, err := a.collect(ctx, name, days, now)
	if err != nil {
		if ctx.Err() != nil {
			a.metrics.Snapshots.WithLabelValues("cancelled").Inc()
			return domain.InsightSnapshot{}, err
		}
		a.metrics.Snapshots.WithLabelValues("unavailable").Inc()
		log.Error("snapshot collection failed", "error", err)
		return domain.InsightSnapshot{}, err
	}

	a.enter(log, StageClassifying)
	latest := c.hourly.Current
	if latest == nil && len(c.hourly.Readings) > 0 {
		last := c.hourly.Readings[len(c.hourly.Readings)-1]
		latest = &last
	}
	var latestValue *float64
	if latest != nil {
		latestValue = domain.Float(latest.HeatIndexC)
	}
	level, label := domain.Classify(latestValue)

	a.enter(log, StageDeriving)
	weekly := domain.MeanObserved(c.history)
	if weekly == nil {
		weekly = domain.MeanHeatIndex(c.hourly.Readings)
	}
	var peak *domain.Peak
	if p := domain.PeakInForwardWindow(c.hourly.Readings, now, domain.ForwardHorizon); p != nil {
		peak = &domain.Peak{
			Value:     p.HeatIndexC,
			Timestamp: p.Timestamp,
			Trailing:  !domain.InForwardWindow(p.Timestamp, now, domain.ForwardHorizon),
		}
	}
	var population *int64
	if c.demographic != nil {
		population = c.demographic.Population2020
	}
	vulnerable, load := domain.Estimate(level, population)

	snap := domain.InsightSnapshot{
		Locality:             name,
		GeneratedAt:          now,
		WindowDays:           days,
		Latest:               latest,
		RiskLevel:            level,
		RiskLabel:            label,
		WeeklyAverage:        weekly,
		Peak:                 peak,
		HoursAboveThreshold:  domain.CountAboveThreshold(c.hourly.Readings, now, domain.LookbackWindow, domain.HighRiskThreshold),
		Demographic:          c.demographic,
		VulnerablePopulation: vulnerable,
		CoolingCenterLoadPct: load,
		Readings:             orEmpty(c.hourly.Readings),
		DailyBaseline:        orEmpty(c.history),
		Forecast:             orEmpty(c.forecast),
	}

	a.enter(log, StageAssembled)
	a.ready.Store(true)
	a.metrics.Snapshots.WithLabelValues("assembled").Inc()
	a.metrics.AssemblyDuration.Observe(time.Since(start).Seconds())

	a.publish(ctx, log, snap)
	return snap, nil
}

// collect loads all datasets concurrently. The first failure cancels the
// remaining loads.
func (a *Assembler) collect(ctx context.Context, name string, days int, now time.Time) (collected, error) {
	var c collected
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		series, err := a.data.Hourly(gctx, name, days)
		c.hourly = series
		return a.loadFailed(dataset.NameHourly, err)
	})
	g.Go(func() error {
		points, err := a.data.History(gctx, name, days)
		c.history = points
		return a.loadFailed(dataset.NameHistory, err)
	})
	g.Go(func() error {
		points, err := a.data.Forecast(gctx, name, days, now)
		c.forecast = points
		return a.loadFailed(dataset.NameForecast, err)
	})
	g.Go(func() error {
		rec, err := a.data.Demographic(gctx, name)
		c.demographic = rec
		return a.loadFailed(dataset.NameDemographics, err)
	})

	if err := g.Wait(); err != nil {
		return collected{}, err
	}
	return c, nil
}

func (a *Assembler) loadFailed(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, dataset.ErrDataUnavailable) {
		a.metrics.DatasetLoadFailures.WithLabelValues(name).Inc()
	}
	return fmt.Errorf("load %s: %w", name, err)
}

func (a *Assembler) enter(log *slog.Logger, s Stage) {
	log.Debug("snapshot stage", "stage", string(s))
	a.metrics.AssemblyStages.WithLabelValues(string(s)).Inc()
}

// publish hands snap to the publisher on a context detached from the request,
// so a superseded request does not abort an in-flight write.
func (a *Assembler) publish(ctx context.Context, log *slog.Logger, snap domain.InsightSnapshot) {
	if a.publisher == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := a.publisher.Publish(pctx, snap); err != nil {
		a.metrics.SnapshotsPublished.WithLabelValues("error").Inc()
		log.Warn("publish snapshot failed", "error", err)
		return
	}
	a.metrics.SnapshotsPublished.WithLabelValues("success").Inc()
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
