package dataset

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

var manila = time.FixedZone("UTC+08:00", 8*3600)

func testdata() FileSource { return FileSource{Dir: "testdata"} }

// memSource serves datasets from memory and counts reads.
type memSource struct {
	files map[string]string
	reads atomic.Int32
}

func (m *memSource) Open(ctx context.Context, name string) ([]byte, error) {
	m.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := m.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(s), nil
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want *float64
	}{
		{"41.5", domain.Float(41.5)},
		{" -3 ", domain.Float(-3)},
		{"1,234,567", domain.Float(1234567)},
		{"11.6[2]", domain.Float(11.6)},
		{"4.44%", domain.Float(4.44)},
		{"approx. 12 km", domain.Float(12)},
		{"n/a", nil},
		{"", nil},
		{"[note]", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseNumber(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseCount(t *testing.T) {
	got := ParseCount("496,794.9")
	require.NotNil(t, got)
	assert.Equal(t, int64(496794), *got)
	assert.Nil(t, ParseCount("--"))
}

func TestLoadHourly(t *testing.T) {
	series, err := LoadHourly(context.Background(), testdata(), DefaultFiles.Hourly, "imus", 7)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Manila", series.Timezone)
	require.NotNil(t, series.GeneratedAt)
	assert.True(t, series.GeneratedAt.Equal(time.Date(2024, time.May, 2, 12, 5, 0, 0, manila)))
	require.NotNil(t, series.Latitude)
	assert.InDelta(t, 14.4297, *series.Latitude, 1e-9)

	require.NotNil(t, series.Current)
	assert.InDelta(t, 41.8, series.Current.HeatIndexC, 1e-9)

	// Unparseable timestamp and unresolvable heat index are dropped.
	require.Len(t, series.Readings, 3)

	first := series.Readings[0]
	assert.True(t, first.Timestamp.Equal(time.Date(2024, time.May, 2, 10, 0, 0, 0, manila)), "naive timestamp read in document zone")
	assert.InDelta(t, 38.0, first.HeatIndexC, 1e-9, "converted from Fahrenheit string")

	assert.InDelta(t, 40.2, series.Readings[1].HeatIndexC, 1e-9)

	computed := series.Readings[2]
	assert.InDelta(t, domain.Round2(domain.HeatIndexC(35, 50)), computed.HeatIndexC, 1e-9, "computed from temperature and humidity")
	assert.Equal(t, "Imus", computed.Locality)
}

func TestParseHourly(t *testing.T) {
	t.Run("trailing window", func(t *testing.T) {
		doc := `{"cities":[{"city":"Imus","hourly":[
			{"timestamp":"2024-05-01T00:00:00Z","heat_index_c":30},
			{"timestamp":"2024-05-01T01:00:00Z","heat_index_c":31},
			{"timestamp":"2024-05-01T02:00:00Z","heat_index_c":32}]}]}`
		series, err := ParseHourly([]byte(doc), "Imus", 0)
		require.NoError(t, err)
		assert.Empty(t, series.Readings)
		assert.Equal(t, DefaultTimezone, series.Timezone)
	})

	t.Run("out of order input is sorted", func(t *testing.T) {
		doc := `{"cities":[{"city":"Imus","hourly":[
			{"timestamp":"2024-05-01T02:00:00Z","heat_index_c":32},
			{"timestamp":"2024-05-01T00:00:00Z","heat_index_c":30}]}]}`
		series, err := ParseHourly([]byte(doc), "Imus", 1)
		require.NoError(t, err)
		require.Len(t, series.Readings, 2)
		assert.InDelta(t, 30.0, series.Readings[0].HeatIndexC, 1e-9)
	})

	t.Run("unknown zone falls back to UTC+08:00", func(t *testing.T) {
		doc := `{"timezone":"Mars/Olympus","cities":[{"city":"Imus","hourly":[
			{"timestamp":"2024-05-01 08:00","heat_index_c":30}]}]}`
		series, err := ParseHourly([]byte(doc), "Imus", 1)
		require.NoError(t, err)
		require.Len(t, series.Readings, 1)
		assert.True(t, series.Readings[0].Timestamp.Equal(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("non-numeric values are unknown", func(t *testing.T) {
		doc := `{"cities":[{"city":"Imus","hourly":[
			{"timestamp":"2024-05-01T00:00:00Z","heat_index_c":30,"temperature_c":true,"relative_humidity":"humid"}]}]}`
		series, err := ParseHourly([]byte(doc), "Imus", 1)
		require.NoError(t, err)
		require.Len(t, series.Readings, 1)
		assert.Nil(t, series.Readings[0].TemperatureC)
		assert.Nil(t, series.Readings[0].RelativeHumidity)
	})

	t.Run("unknown locality", func(t *testing.T) {
		series, err := ParseHourly([]byte(`{"cities":[]}`), "Imus", 7)
		require.NoError(t, err)
		assert.Empty(t, series.Readings)
		assert.Nil(t, series.Current)
	})

	t.Run("malformed document", func(t *testing.T) {
		_, err := ParseHourly([]byte(`{"cities": "nope"}`), "Imus", 7)
		require.Error(t, err)
	})
}

func TestLoadHourly_Unavailable(t *testing.T) {
	src := &memSource{files: map[string]string{"bad.json": "[1,2"}}

	_, err := LoadHourly(context.Background(), src, "missing.json", "Imus", 7)
	require.ErrorIs(t, err, ErrDataUnavailable)
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadHourly(context.Background(), src, "bad.json", "Imus", 7)
	require.ErrorIs(t, err, ErrDataUnavailable)

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, NameHourly, ue.Dataset)
}

func TestLoadHourly_CancelledIsNotUnavailable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadHourly(ctx, testdata(), DefaultFiles.Hourly, "Imus", 7)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDataUnavailable)
}

func TestLoadHistory(t *testing.T) {
	points, err := LoadHistory(context.Background(), testdata(), DefaultFiles.History, "IMUS", 2)
	require.NoError(t, err)
	require.Len(t, points, 2)

	apr30, may1 := points[0], points[1]
	assert.Equal(t, time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC), apr30.Date)
	require.NotNil(t, apr30.Observed)
	assert.InDelta(t, 35.0, *apr30.Observed, 1e-9)
	require.NotNil(t, apr30.Baseline)
	assert.InDelta(t, 35.0, *apr30.Baseline, 1e-9)

	// The duplicate 2024-05-01 row replaces the earlier one; the baseline
	// averages May 1 across 2023 and 2024.
	require.NotNil(t, may1.Observed)
	assert.InDelta(t, 42.0, *may1.Observed, 1e-9)
	require.NotNil(t, may1.Baseline)
	assert.InDelta(t, 40.0, *may1.Baseline, 1e-9)
}

func TestParseHistory(t *testing.T) {
	t.Run("explicit baseline in Celsius", func(t *testing.T) {
		csv := "locality,date,observed,baseline\r\nImus,2024-05-01,41.5,39\r\n\r\nImus,2024-05-02,,38.2\r\n"
		points, err := ParseHistory([]byte(csv), "Imus", 7)
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.InDelta(t, 41.5, *points[0].Observed, 1e-9)
		assert.InDelta(t, 39.0, *points[0].Baseline, 1e-9)
		assert.Nil(t, points[1].Observed)
		assert.InDelta(t, 38.2, *points[1].Baseline, 1e-9)
	})

	t.Run("ragged rows are rejected", func(t *testing.T) {
		csv := "city,date,heat_index_c\nImus,2024-05-01,41.5,extra\nImus,2024-05-02,40\n"
		points, err := ParseHistory([]byte(csv), "Imus", 7)
		require.NoError(t, err)
		require.Len(t, points, 1)
		assert.Equal(t, 2, points[0].Date.Day())
	})

	t.Run("missing columns", func(t *testing.T) {
		_, err := ParseHistory([]byte("city,when,value\n"), "Imus", 7)
		require.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseHistory([]byte("\n\n"), "Imus", 7)
		require.Error(t, err)
	})
}

func TestLoadForecast(t *testing.T) {
	ctx := context.Background()

	t.Run("upcoming points", func(t *testing.T) {
		today := time.Date(2024, time.May, 2, 9, 30, 0, 0, time.UTC)
		points, err := LoadForecast(ctx, testdata(), DefaultFiles.Forecast, "Imus", 7, today)
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, 2, points[0].Date.Day())
		assert.InDelta(t, 40.1, points[0].Predicted, 1e-9)
		assert.Nil(t, points[0].Actual)
		assert.Equal(t, 3, points[1].Date.Day())
	})

	t.Run("falls back to past points", func(t *testing.T) {
		today := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
		points, err := LoadForecast(ctx, testdata(), DefaultFiles.Forecast, "Imus", 7, today)
		require.NoError(t, err)
		require.Len(t, points, 3, "the row without a prediction is dropped")

		first := points[0]
		require.NotNil(t, first.Actual)
		require.NotNil(t, first.Residual)
		assert.InDelta(t, 39.0, *first.Actual, 1e-9)
		assert.InDelta(t, -0.5, *first.Residual, 1e-9, "residual is taken as given")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadForecast(ctx, testdata(), "nope.csv", "Imus", 7, time.Now())
		require.ErrorIs(t, err, ErrDataUnavailable)
	})
}

func TestLoadDemographics(t *testing.T) {
	records, err := LoadDemographics(context.Background(), testdata(), DefaultFiles.Demographics)
	require.NoError(t, err)
	require.Len(t, records, 2)

	imus := FindDemographic(records, " imus ")
	require.NotNil(t, imus)
	assert.Equal(t, "city", imus.Classification)
	require.NotNil(t, imus.Population2020)
	assert.Equal(t, int64(496794), *imus.Population2020)
	require.NotNil(t, imus.DensityPerKm2)
	assert.InDelta(t, 9347.0, *imus.DensityPerKm2, 1e-9)
	require.NotNil(t, imus.PopulationSharePct)
	assert.InDelta(t, 11.6, *imus.PopulationSharePct, 1e-9)
	require.NotNil(t, imus.AdminUnits)
	assert.Equal(t, int64(97), *imus.AdminUnits)
	require.NotNil(t, imus.CollectedAt)

	tagaytay := FindDemographic(records, "Tagaytay")
	require.NotNil(t, tagaytay)
	assert.Nil(t, tagaytay.GrowthRatePct)
	assert.Nil(t, tagaytay.CollectedAt)
	assert.Empty(t, tagaytay.SourceURL)

	assert.Nil(t, FindDemographic(records, "Atlantis"))
}

func TestParseDemographics_WrongSchema(t *testing.T) {
	_, err := ParseDemographics([]byte("city,population\nImus,1\n"))
	require.Error(t, err)
}

func TestDemographicCache(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	fail := true

	cache := NewDemographicCache(func(context.Context) ([]domain.DemographicRecord, error) {
		calls.Add(1)
		if fail {
			return nil, errors.New("boom")
		}
		return []domain.DemographicRecord{{Locality: "Imus"}}, nil
	})

	_, err := cache.Records(ctx)
	require.Error(t, err)

	fail = false
	records, err := cache.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	_, err = cache.Records(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "failures are retried, successes are memoized")
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	l := NewLoader(testdata(), Files{})

	localities, err := l.Localities(ctx)
	require.NoError(t, err)
	require.Len(t, localities, 2)
	assert.Equal(t, "Imus", localities[0].Name)
	require.NotNil(t, localities[1].Latitude)
	assert.InDelta(t, 14.1153, *localities[1].Latitude, 1e-9, "string coordinates are accepted")

	rec, err := l.Demographic(ctx, "Tagaytay")
	require.NoError(t, err)
	require.NotNil(t, rec)

	rec, err = l.Demographic(ctx, "Atlantis")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, l.Check(ctx))
	assert.ErrorIs(t, NewLoader(&memSource{}, Files{}).Check(ctx), ErrDataUnavailable)
}

func TestFileSource_StaysInsideDir(t *testing.T) {
	_, err := testdata().Open(context.Background(), "../dataset_test.go")
	require.Error(t, err)
}
