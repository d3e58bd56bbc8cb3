package dataset

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

// Dataset names used in UnavailableError and metrics labels.
const (
	NameHourly       = "hourly"
	NameHistory      = "history"
	NameForecast     = "forecast"
	NameDemographics = "demographics"
)

// Files names the dataset files inside a Source.
type Files struct {
	Hourly       string
	History      string
	Forecast     string
	Demographics string
}

// DefaultFiles matches the export jobs' file names.
var DefaultFiles = Files{
	Hourly:       "hourly_heat_index.json",
	History:      "weather_heat_index.csv",
	Forecast:     "heat_index_forecast.csv",
	Demographics: "cavite_demographics.csv",
}

// LoadHourly reads and parses the hourly dataset for locality.
func LoadHourly(ctx context.Context, src Source, name, locality string, windowDays int) (HourlySeries, error) {
	data, err := src.Open(ctx, name)
	if err != nil {
		return HourlySeries{}, unavailable(NameHourly, err)
	}
	series, err := ParseHourly(data, locality, windowDays)
	if err != nil {
		return HourlySeries{}, unavailable(NameHourly, err)
	}
	return series, nil
}

// LoadHistory reads and parses the history dataset for locality.
func LoadHistory(ctx context.Context, src Source, name, locality string, windowDays int) ([]domain.DailyBaselinePoint, error) {
	data, err := src.Open(ctx, name)
	if err != nil {
		return nil, unavailable(NameHistory, err)
	}
	points, err := ParseHistory(data, locality, windowDays)
	if err != nil {
		return nil, unavailable(NameHistory, err)
	}
	return points, nil
}

// LoadForecast reads and parses the forecast dataset for locality.
func LoadForecast(ctx context.Context, src Source, name, locality string, windowDays int, today time.Time) ([]domain.ForecastPoint, error) {
	data, err := src.Open(ctx, name)
	if err != nil {
		return nil, unavailable(NameForecast, err)
	}
	points, err := ParseForecast(data, locality, windowDays, today)
	if err != nil {
		return nil, unavailable(NameForecast, err)
	}
	return points, nil
}

// LoadDemographics reads and parses the whole census table.
func LoadDemographics(ctx context.Context, src Source, name string) ([]domain.DemographicRecord, error) {
	data, err := src.Open(ctx, name)
	if err != nil {
		return nil, unavailable(NameDemographics, err)
	}
	records, err := ParseDemographics(data)
	if err != nil {
		return nil, unavailable(NameDemographics, err)
	}
	return records, nil
}

// DemographicCache memoizes the census table for the life of the process.
// Failed loads are not cached, so a later call retries.
type DemographicCache struct {
	load func(ctx context.Context) ([]domain.DemographicRecord, error)

	group   singleflight.Group
	mu      sync.RWMutex
	records []domain.DemographicRecord
	loaded  bool
}

// NewDemographicCache wraps a census loader.
func NewDemographicCache(load func(ctx context.Context) ([]domain.DemographicRecord, error)) *DemographicCache {
	return &DemographicCache{load: load}
}

// Records returns the cached table, loading it on first use. Concurrent first
// calls share one load.
func (c *DemographicCache) Records(ctx context.Context) ([]domain.DemographicRecord, error) {
	c.mu.RLock()
	if c.loaded {
		records := c.records
		c.mu.RUnlock()
		return records, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do("census", func() (any, error) {
		records, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.records, c.loaded = records, true
		c.mu.Unlock()
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.DemographicRecord), nil
}

// Loader reads every dataset from one Source.
type Loader struct {
	src    Source
	files  Files
	census *DemographicCache
}

// NewLoader creates a Loader. Zero-valued file names fall back to DefaultFiles.
func NewLoader(src Source, files Files) *Loader {
	if files.Hourly == "" {
		files.Hourly = DefaultFiles.Hourly
	}
	if files.History == "" {
		files.History = DefaultFiles.History
	}
	if files.Forecast == "" {
		files.Forecast = DefaultFiles.Forecast
	}
	if files.Demographics == "" {
		files.Demographics = DefaultFiles.Demographics
	}
	l := &Loader{src: src, files: files}
	l.census = NewDemographicCache(func(ctx context.Context) ([]domain.DemographicRecord, error) {
		return LoadDemographics(ctx, src, files.Demographics)
	})
	return l
}

// Hourly loads the hourly series for locality.
func (l *Loader) Hourly(ctx context.Context, locality string, windowDays int) (HourlySeries, error) {
	return LoadHourly(ctx, l.src, l.files.Hourly, locality, windowDays)
}

// History loads the daily observed/baseline series for locality.
func (l *Loader) History(ctx context.Context, locality string, windowDays int) ([]domain.DailyBaselinePoint, error) {
	return LoadHistory(ctx, l.src, l.files.History, locality, windowDays)
}

// Forecast loads the forecast window for locality.
func (l *Loader) Forecast(ctx context.Context, locality string, windowDays int, today time.Time) ([]domain.ForecastPoint, error) {
	return LoadForecast(ctx, l.src, l.files.Forecast, locality, windowDays, today)
}

// Demographic returns locality's census record, or nil when it is not listed.
func (l *Loader) Demographic(ctx context.Context, locality string) (*domain.DemographicRecord, error) {
	records, err := l.census.Records(ctx)
	if err != nil {
		return nil, err
	}
	return FindDemographic(records, locality), nil
}

// Localities lists the localities present in the hourly dataset.
func (l *Loader) Localities(ctx context.Context) ([]HourlyLocality, error) {
	data, err := l.src.Open(ctx, l.files.Hourly)
	if err != nil {
		return nil, unavailable(NameHourly, err)
	}
	out, err := ParseHourlyLocalities(data)
	if err != nil {
		return nil, unavailable(NameHourly, err)
	}
	return out, nil
}

// Check verifies the hourly dataset can be read. It backs the readiness probe.
func (l *Loader) Check(ctx context.Context) error {
	_, err := l.Localities(ctx)
	return err
}
