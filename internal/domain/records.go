package domain

import "time"

// HeatStressReading is one hourly observation or model point for a locality.
// HeatIndexC is always resolved; readings whose heat index cannot be determined
// are dropped at load time.
type HeatStressReading struct {
	Locality         string    `json:"locality"`
	Timestamp        time.Time `json:"timestamp"`
	TemperatureC     *float64  `json:"temperature_c"`
	RelativeHumidity *float64  `json:"relative_humidity"`
	HeatIndexC       float64   `json:"heat_index_c"`
	HeatIndexF       *float64  `json:"heat_index_f,omitempty"`
	ApparentTempC    *float64  `json:"apparent_temperature_c,omitempty"`
}

// DailyBaselinePoint pairs a day's observed heat index with its historical
// baseline. Either side may be unknown.
type DailyBaselinePoint struct {
	Locality string    `json:"locality"`
	Date     time.Time `json:"date"`
	Observed *float64  `json:"observed"`
	Baseline *float64  `json:"baseline"`
}

// ForecastPoint is one daily model prediction. Residual is carried as given by
// the model export and never recomputed.
type ForecastPoint struct {
	Locality  string    `json:"locality"`
	Date      time.Time `json:"date"`
	Predicted float64   `json:"predicted"`
	Actual    *float64  `json:"actual"`
	Residual  *float64  `json:"residual"`
}

// DemographicRecord is census-style reference data for one locality.
type DemographicRecord struct {
	Locality           string     `json:"locality"`
	Classification     string     `json:"classification"` // "city" or "municipality"
	District           string     `json:"district,omitempty"`
	Population2020     *int64     `json:"population_2020"`
	Population2015     *int64     `json:"population_2015"`
	GrowthRatePct      *float64   `json:"annual_growth_rate_pct"`
	AreaKm2            *float64   `json:"area_km2"`
	DensityPerKm2      *float64   `json:"density_per_km2"`
	AdminUnits         *int64     `json:"barangays"`
	PopulationSharePct *float64   `json:"province_population_share_pct"`
	SourceURL          string     `json:"source_url,omitempty"`
	CollectedAt        *time.Time `json:"collected_at"`
}

// Peak is the highest heat index inside a forward window. Trailing is set when
// no reading fell inside the window and the peak was taken from the most recent
// readings instead.
type Peak struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Trailing  bool      `json:"trailing,omitempty"`
}

// InsightSnapshot is the per-locality risk summary. It is derived on every
// request and never mutated after assembly; nil fields are unknown.
type InsightSnapshot struct {
	Locality             string               `json:"locality"`
	GeneratedAt          time.Time            `json:"generated_at"`
	WindowDays           int                  `json:"window_days"`
	Latest               *HeatStressReading   `json:"latest_reading"`
	RiskLevel            RiskLevel            `json:"risk_level"`
	RiskLabel            string               `json:"risk_label"`
	WeeklyAverage        *float64             `json:"weekly_average"`
	Peak                 *Peak                `json:"peak"`
	HoursAboveThreshold  int                  `json:"hours_above_threshold"`
	Demographic          *DemographicRecord   `json:"demographic"`
	VulnerablePopulation *int64               `json:"vulnerable_population"`
	CoolingCenterLoadPct *int                 `json:"cooling_center_load_pct"`
	Readings             []HeatStressReading  `json:"readings"`
	DailyBaseline        []DailyBaselinePoint `json:"daily_baseline"`
	Forecast             []ForecastPoint      `json:"forecast"`
}

// Float returns a pointer to v, for populating optional fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int64) *int64 { return &v }
