package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

// DefaultTimezone is assumed for hourly timestamps without an offset when the
// document does not name a zone.
const DefaultTimezone = "Asia/Singapore"

// fallbackZone is used when the named zone is not in the tz database.
var fallbackZone = time.FixedZone("UTC+08:00", 8*60*60)

// HourlySeries is the per-locality slice of the hourly dataset.
type HourlySeries struct {
	GeneratedAt *time.Time
	Timezone    string
	Unit        string
	Latitude    *float64
	Longitude   *float64
	// Current is the document's own "current conditions" entry, when present.
	Current  *domain.HeatStressReading
	Readings []domain.HeatStressReading
}

// HourlyLocality is one locality entry of the hourly document.
type HourlyLocality struct {
	Name      string
	Latitude  *float64
	Longitude *float64
}

type hourlyDocument struct {
	GeneratedAt string       `json:"generated_at"`
	Timezone    string       `json:"timezone"`
	Unit        string       `json:"unit"`
	Cities      []hourlyCity `json:"cities"`
}

type hourlyCity struct {
	City      string        `json:"city"`
	Latitude  flexFloat     `json:"latitude"`
	Longitude flexFloat     `json:"longitude"`
	Current   *hourlyPoint  `json:"current"`
	Hourly    []hourlyPoint `json:"hourly"`
}

type hourlyPoint struct {
	City                 string    `json:"city"`
	Timestamp            string    `json:"timestamp"`
	TemperatureC         flexFloat `json:"temperature_c"`
	RelativeHumidity     flexFloat `json:"relative_humidity"`
	HeatIndexC           flexFloat `json:"heat_index_c"`
	HeatIndexF           flexFloat `json:"heat_index_f"`
	ApparentTemperatureC flexFloat `json:"apparent_temperature_c"`
}

// flexFloat accepts a JSON number, a numeric string, or null. Anything else
// decodes as unknown rather than failing the document.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	f.v = nil
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		f.v = ParseNumber(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	f.v = &v
	return nil
}

func decodeHourly(data []byte) (hourlyDocument, error) {
	var doc hourlyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decode hourly document: %w", err)
	}
	return doc, nil
}

// ParseHourly extracts the readings for locality from an hourly JSON document.
// Readings with an unparseable timestamp or no resolvable heat index are
// dropped. The result is sorted by timestamp and trimmed to the last
// windowDays*24 readings. An unknown locality yields an empty series.
func ParseHourly(data []byte, locality string, windowDays int) (HourlySeries, error) {
	doc, err := decodeHourly(data)
	if err != nil {
		return HourlySeries{}, err
	}

	tz := doc.Timezone
	if strings.TrimSpace(tz) == "" {
		tz = DefaultTimezone
	}
	loc := resolveZone(tz)

	series := HourlySeries{
		Timezone: tz,
		Unit:     doc.Unit,
		Readings: []domain.HeatStressReading{},
	}
	if t, ok := parseTimestamp(doc.GeneratedAt, loc); ok {
		series.GeneratedAt = &t
	}

	for _, city := range doc.Cities {
		if !sameLocality(city.City, locality) {
			continue
		}
		series.Latitude = city.Latitude.v
		series.Longitude = city.Longitude.v
		if city.Current != nil {
			if r, ok := toReading(*city.Current, city.City, loc); ok {
				series.Current = &r
			}
		}
		for _, p := range city.Hourly {
			if r, ok := toReading(p, city.City, loc); ok {
				series.Readings = append(series.Readings, r)
			}
		}
		break
	}

	sort.SliceStable(series.Readings, func(i, j int) bool {
		return series.Readings[i].Timestamp.Before(series.Readings[j].Timestamp)
	})
	series.Readings = trailing(series.Readings, windowDays*24)
	return series, nil
}

// ParseHourlyLocalities lists the localities present in an hourly document, in
// document order.
func ParseHourlyLocalities(data []byte) ([]HourlyLocality, error) {
	doc, err := decodeHourly(data)
	if err != nil {
		return nil, err
	}
	out := make([]HourlyLocality, 0, len(doc.Cities))
	for _, c := range doc.Cities {
		name := strings.TrimSpace(c.City)
		if name == "" {
			continue
		}
		out = append(out, HourlyLocality{Name: name, Latitude: c.Latitude.v, Longitude: c.Longitude.v})
	}
	return out, nil
}

func toReading(p hourlyPoint, city string, loc *time.Location) (domain.HeatStressReading, bool) {
	ts, ok := parseTimestamp(p.Timestamp, loc)
	if !ok {
		return domain.HeatStressReading{}, false
	}
	hi, ok := resolveHeatIndex(p)
	if !ok {
		return domain.HeatStressReading{}, false
	}
	name := strings.TrimSpace(p.City)
	if name == "" {
		name = strings.TrimSpace(city)
	}
	return domain.HeatStressReading{
		Locality:         name,
		Timestamp:        ts,
		TemperatureC:     p.TemperatureC.v,
		RelativeHumidity: p.RelativeHumidity.v,
		HeatIndexC:       hi,
		HeatIndexF:       p.HeatIndexF.v,
		ApparentTempC:    p.ApparentTemperatureC.v,
	}, true
}

// resolveHeatIndex prefers the stored Celsius value, then the stored
// Fahrenheit value, then computes it from temperature and humidity.
func resolveHeatIndex(p hourlyPoint) (float64, bool) {
	switch {
	case p.HeatIndexC.v != nil:
		return *p.HeatIndexC.v, true
	case p.HeatIndexF.v != nil:
		return *fahrenheitToCelsius(p.HeatIndexF.v), true
	case p.TemperatureC.v != nil && p.RelativeHumidity.v != nil:
		return domain.Round2(domain.HeatIndexC(*p.TemperatureC.v, *p.RelativeHumidity.v)), true
	}
	return 0, false
}

func resolveZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallbackZone
	}
	return loc
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp accepts RFC 3339 timestamps, or offset-less local times which
// are interpreted in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
