package snapshot_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heat-insight-engine/internal/dataset"
	"github.com/couchcryptid/heat-insight-engine/internal/domain"
	"github.com/couchcryptid/heat-insight-engine/internal/locality"
	"github.com/couchcryptid/heat-insight-engine/internal/observability"
	"github.com/couchcryptid/heat-insight-engine/internal/snapshot"
)

var testNow = time.Date(2024, time.May, 2, 4, 0, 0, 0, time.UTC)

// --- fakes ---

type fakeDatasets struct {
	hourly      dataset.HourlySeries
	history     []domain.DailyBaselinePoint
	forecast    []domain.ForecastPoint
	demographic *domain.DemographicRecord

	historyErr  error
	blockHourly bool

	mu    sync.Mutex
	calls []string
	days  []int
}

func (f *fakeDatasets) record(call, locality string, days int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call+":"+locality)
	if days > 0 {
		f.days = append(f.days, days)
	}
}

func (f *fakeDatasets) Hourly(ctx context.Context, loc string, days int) (dataset.HourlySeries, error) {
	f.record("hourly", loc, days)
	if f.blockHourly {
		<-ctx.Done()
		return dataset.HourlySeries{}, ctx.Err()
	}
	return f.hourly, nil
}

func (f *fakeDatasets) History(_ context.Context, loc string, days int) ([]domain.DailyBaselinePoint, error) {
	f.record("history", loc, days)
	return f.history, f.historyErr
}

func (f *fakeDatasets) Forecast(_ context.Context, loc string, days int, _ time.Time) ([]domain.ForecastPoint, error) {
	f.record("forecast", loc, days)
	return f.forecast, nil
}

func (f *fakeDatasets) Demographic(_ context.Context, loc string) (*domain.DemographicRecord, error) {
	f.record("demographic", loc, 0)
	return f.demographic, nil
}

type fakePublisher struct {
	err       error
	published []domain.InsightSnapshot
}

func (p *fakePublisher) Publish(ctx context.Context, snap domain.InsightSnapshot) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	p.published = append(p.published, snap)
	return p.err
}

// --- helpers ---

func registry() *locality.Registry {
	return locality.New("Cavite", []locality.Entry{{Name: "Imus"}, {Name: "Tagaytay"}})
}

func freezeClock(t *testing.T) {
	t.Helper()
	snapshot.SetClock(clockwork.NewFakeClockAt(testNow))
	t.Cleanup(func() { snapshot.SetClock(nil) })
}

func hourly(start time.Time, values ...float64) []domain.HeatStressReading {
	out := make([]domain.HeatStressReading, len(values))
	for i, v := range values {
		out[i] = domain.HeatStressReading{
			Locality:   "Imus",
			Timestamp:  start.Add(time.Duration(i) * time.Hour),
			HeatIndexC: v,
		}
	}
	return out
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

// --- tests ---

func TestClampDays(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 7},
		{1, 3},
		{-5, 3},
		{3, 3},
		{14, 14},
		{30, 30},
		{90, 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, snapshot.ClampDays(tt.in), "days=%d", tt.in)
	}
}

func TestAssemble_DefaultDays(t *testing.T) {
	freezeClock(t)
	data := &fakeDatasets{}
	a := snapshot.New(data, registry(), slog.Default(), observability.NewMetricsForTesting(), snapshot.WithDefaultDays(14))

	snap, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Imus"})
	require.NoError(t, err)
	assert.Equal(t, 14, snap.WindowDays)

	snap, err = a.Assemble(context.Background(), snapshot.Query{Locality: "Imus", Days: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, snap.WindowDays, "explicit window wins")
}

func TestAssemble_HappyPath(t *testing.T) {
	freezeClock(t)

	// 24 past hours at 35 with three at or above 41, then 24 future hours
	// peaking at 46 two hours out.
	past := make([]float64, 24)
	for i := range past {
		past[i] = 35
	}
	past[5], past[10], past[22] = 41, 44, 42
	future := make([]float64, 24)
	for i := range future {
		future[i] = 38
	}
	future[1] = 46
	readings := append(hourly(testNow.Add(-24*time.Hour), past...), hourly(testNow.Add(time.Hour), future...)...)

	current := domain.HeatStressReading{Locality: "Imus", Timestamp: testNow, HeatIndexC: 42.5}
	data := &fakeDatasets{
		hourly: dataset.HourlySeries{Current: &current, Readings: readings},
		history: []domain.DailyBaselinePoint{
			{Date: testNow.AddDate(0, 0, -2), Observed: domain.Float(39), Baseline: domain.Float(37)},
			{Date: testNow.AddDate(0, 0, -1), Observed: domain.Float(41), Baseline: domain.Float(37)},
		},
		forecast:    []domain.ForecastPoint{{Date: testNow, Predicted: 43}},
		demographic: &domain.DemographicRecord{Locality: "Imus", Population2020: domain.Int(100000)},
	}
	metrics := observability.NewMetricsForTesting()
	a := snapshot.New(data, registry(), slog.Default(), metrics)

	snap, err := a.Assemble(context.Background(), snapshot.Query{Locality: " imus ", Days: 0})
	require.NoError(t, err)

	assert.Equal(t, "Imus", snap.Locality)
	assert.Equal(t, testNow, snap.GeneratedAt)
	assert.Equal(t, snapshot.DefaultDays, snap.WindowDays)

	require.NotNil(t, snap.Latest)
	assert.InDelta(t, 42.5, snap.Latest.HeatIndexC, 1e-9)
	assert.Equal(t, domain.RiskHigh, snap.RiskLevel)
	assert.Equal(t, "Danger", snap.RiskLabel)

	require.NotNil(t, snap.WeeklyAverage)
	assert.InDelta(t, 40.0, *snap.WeeklyAverage, 1e-9)

	require.NotNil(t, snap.Peak)
	assert.InDelta(t, 46.0, snap.Peak.Value, 1e-9)
	assert.Equal(t, testNow.Add(2*time.Hour), snap.Peak.Timestamp)
	assert.False(t, snap.Peak.Trailing)

	assert.Equal(t, 3, snap.HoursAboveThreshold)

	require.NotNil(t, snap.VulnerablePopulation)
	assert.Equal(t, int64(52000), *snap.VulnerablePopulation)
	require.NotNil(t, snap.CoolingCenterLoadPct)
	assert.Equal(t, 71, *snap.CoolingCenterLoadPct)

	assert.Len(t, snap.Readings, 48)
	assert.Len(t, snap.Forecast, 1)

	// Loaders see the canonical name and the clamped window.
	assert.ElementsMatch(t, []string{"hourly:Imus", "history:Imus", "forecast:Imus", "demographic:Imus"}, data.calls)
	assert.Equal(t, []int{7, 7, 7}, data.days)

	assert.InDelta(t, 1.0, counterValue(t, metrics.Snapshots.WithLabelValues("assembled")), 1e-9)
	for _, stage := range []snapshot.Stage{snapshot.StageCollecting, snapshot.StageClassifying, snapshot.StageDeriving, snapshot.StageAssembled} {
		assert.InDelta(t, 1.0, counterValue(t, metrics.AssemblyStages.WithLabelValues(string(stage))), 1e-9, stage)
	}
}

func TestAssemble_LatestFallsBackToLastReading(t *testing.T) {
	freezeClock(t)

	data := &fakeDatasets{hourly: dataset.HourlySeries{Readings: hourly(testNow.Add(-2*time.Hour), 30, 31, 29.5)}}
	a := snapshot.New(data, registry(), slog.Default(), observability.NewMetricsForTesting())

	snap, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Imus", Days: 3})
	require.NoError(t, err)

	require.NotNil(t, snap.Latest)
	assert.InDelta(t, 29.5, snap.Latest.HeatIndexC, 1e-9)
	assert.Equal(t, domain.RiskCaution, snap.RiskLevel)

	// No observed history: the weekly average comes from the hourly series.
	require.NotNil(t, snap.WeeklyAverage)
	assert.InDelta(t, 30.1666666, *snap.WeeklyAverage, 1e-6)
}

func TestAssemble_StalePeakIsMarkedTrailing(t *testing.T) {
	freezeClock(t)

	data := &fakeDatasets{hourly: dataset.HourlySeries{Readings: hourly(testNow.Add(-6*time.Hour), 33, 42, 36)}}
	a := snapshot.New(data, registry(), slog.Default(), observability.NewMetricsForTesting())

	snap, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Imus"})
	require.NoError(t, err)

	require.NotNil(t, snap.Peak)
	assert.InDelta(t, 42.0, snap.Peak.Value, 1e-9)
	assert.True(t, snap.Peak.Trailing)
}

func TestAssemble_EmptyDatasets(t *testing.T) {
	freezeClock(t)

	a := snapshot.New(&fakeDatasets{}, registry(), slog.Default(), observability.NewMetricsForTesting())
	snap, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Tagaytay", Days: 99})
	require.NoError(t, err)

	want := domain.InsightSnapshot{
		Locality:      "Tagaytay",
		GeneratedAt:   testNow,
		WindowDays:    snapshot.MaxDays,
		RiskLevel:     domain.RiskUnknown,
		RiskLabel:     "No data",
		Readings:      []domain.HeatStressReading{},
		DailyBaseline: []domain.DailyBaselinePoint{},
		Forecast:      []domain.ForecastPoint{},
	}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemble_UnknownDemographicPopulation(t *testing.T) {
	freezeClock(t)

	data := &fakeDatasets{
		hourly:      dataset.HourlySeries{Readings: hourly(testNow, 55)},
		demographic: &domain.DemographicRecord{Locality: "Imus"},
	}
	a := snapshot.New(data, registry(), slog.Default(), observability.NewMetricsForTesting())

	snap, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Imus"})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskExtreme, snap.RiskLevel)
	require.NotNil(t, snap.Demographic)
	assert.Nil(t, snap.VulnerablePopulation)
	assert.Nil(t, snap.CoolingCenterLoadPct)
}

func TestAssemble_UnknownLocality(t *testing.T) {
	data := &fakeDatasets{}
	metrics := observability.NewMetricsForTesting()
	a := snapshot.New(data, registry(), slog.Default(), metrics)

	for _, name := range []string{"Atlantis", ""} {
		_, err := a.Assemble(context.Background(), snapshot.Query{Locality: name})
		require.ErrorIs(t, err, snapshot.ErrUnknownLocality)
	}
	assert.Empty(t, data.calls, "no dataset is read for an unknown locality")
	assert.InDelta(t, 2.0, counterValue(t, metrics.Snapshots.WithLabelValues("unknown_locality")), 1e-9)
}

func TestAssemble_DatasetUnavailable(t *testing.T) {
	freezeClock(t)

	data := &fakeDatasets{
		blockHourly: true,
		historyErr:  &dataset.UnavailableError{Dataset: dataset.NameHistory, Err: errors.New("disk gone")},
	}
	metrics := observability.NewMetricsForTesting()
	a := snapshot.New(data, registry(), slog.Default(), metrics)

	_, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Imus"})
	require.ErrorIs(t, err, dataset.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "load history")

	assert.InDelta(t, 1.0, counterValue(t, metrics.DatasetLoadFailures.WithLabelValues(dataset.NameHistory)), 1e-9)
	assert.InDelta(t, 1.0, counterValue(t, metrics.Snapshots.WithLabelValues("unavailable")), 1e-9)
}

func TestAssemble_Cancelled(t *testing.T) {
	freezeClock(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	metrics := observability.NewMetricsForTesting()
	a := snapshot.New(&fakeDatasets{blockHourly: true}, registry(), slog.Default(), metrics)

	_, err := a.Assemble(ctx, snapshot.Query{Locality: "Imus"})
	require.ErrorIs(t, err, context.Canceled)
	assert.InDelta(t, 1.0, counterValue(t, metrics.Snapshots.WithLabelValues("cancelled")), 1e-9)
}

func TestAssemble_Publisher(t *testing.T) {
	freezeClock(t)

	t.Run("publishes assembled snapshot", func(t *testing.T) {
		pub := &fakePublisher{}
		metrics := observability.NewMetricsForTesting()
		a := snapshot.New(&fakeDatasets{}, registry(), slog.Default(), metrics, snapshot.WithPublisher(pub))

		snap, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Imus"})
		require.NoError(t, err)
		require.Len(t, pub.published, 1)
		assert.Equal(t, snap.Locality, pub.published[0].Locality)
		assert.InDelta(t, 1.0, counterValue(t, metrics.SnapshotsPublished.WithLabelValues("success")), 1e-9)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		metrics := observability.NewMetricsForTesting()
		a := snapshot.New(&fakeDatasets{}, registry(), slog.Default(), metrics, snapshot.WithPublisher(pub))

		_, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Imus"})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, counterValue(t, metrics.SnapshotsPublished.WithLabelValues("error")), 1e-9)
	})
}

func TestCheckReadiness(t *testing.T) {
	freezeClock(t)

	a := snapshot.New(&fakeDatasets{}, registry(), slog.Default(), observability.NewMetricsForTesting())
	require.Error(t, a.CheckReadiness(context.Background()))

	_, err := a.Assemble(context.Background(), snapshot.Query{Locality: "Imus"})
	require.NoError(t, err)
	require.NoError(t, a.CheckReadiness(context.Background()))
}
