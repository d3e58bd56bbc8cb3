package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
	"github.com/couchcryptid/heat-insight-engine/internal/tabular"
)

var errMissingColumn = errors.New("missing required column")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseTable(data []byte) (tabular.Table, error) {
	return tabular.Parse(string(bytes.TrimPrefix(data, utf8BOM)), ',')
}

// ParseHistory extracts the daily observed series for locality from the history
// CSV and pairs each day with a baseline.
//
// Observed values come from "observed" or "heat_index_c" in Celsius, or from
// "heat_index" or "heat_index_f" in Fahrenheit. When the file carries a
// "baseline" column it is used as-is; otherwise each day's baseline is the mean
// observed value for the same calendar day across every year on record. Later
// rows for the same date replace earlier ones. The result is sorted by date
// and trimmed to the last windowDays days.
func ParseHistory(data []byte, locality string, windowDays int) ([]domain.DailyBaselinePoint, error) {
	table, err := parseTable(data)
	if err != nil {
		return nil, err
	}

	cityCol := table.Column("city", "locality")
	dateCol := table.Column("date")
	if cityCol < 0 || dateCol < 0 {
		return nil, fmt.Errorf("history: %w: city or date", errMissingColumn)
	}
	obsCol, fahrenheit := table.Column("observed", "heat_index_c"), false
	if obsCol < 0 {
		obsCol, fahrenheit = table.Column("heat_index", "heat_index_f"), true
	}
	if obsCol < 0 {
		return nil, fmt.Errorf("history: %w: heat index", errMissingColumn)
	}
	baseCol := table.Column("baseline", "average", "heat_index_avg")

	byDate := make(map[time.Time]domain.DailyBaselinePoint)
	for _, row := range table.Rows {
		if !sameLocality(row.Field(cityCol), locality) {
			continue
		}
		date, ok := parseDate(row.Field(dateCol))
		if !ok {
			continue
		}
		p := domain.DailyBaselinePoint{
			Locality: row.Field(cityCol),
			Date:     date,
			Observed: ParseNumber(row.Field(obsCol)),
		}
		if baseCol >= 0 {
			p.Baseline = ParseNumber(row.Field(baseCol))
		}
		if fahrenheit {
			p.Observed = fahrenheitToCelsius(p.Observed)
			p.Baseline = fahrenheitToCelsius(p.Baseline)
		}
		byDate[date] = p
	}

	points := make([]domain.DailyBaselinePoint, 0, len(byDate))
	for _, p := range byDate {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	if baseCol < 0 {
		applyClimatology(points)
	}
	return trailing(points, windowDays), nil
}

// applyClimatology sets each point's baseline to the mean observed value of
// all points sharing its month and day.
func applyClimatology(points []domain.DailyBaselinePoint) {
	type monthDay struct {
		m time.Month
		d int
	}
	groups := make(map[monthDay][]float64)
	for _, p := range points {
		if p.Observed == nil {
			continue
		}
		k := monthDay{p.Date.Month(), p.Date.Day()}
		groups[k] = append(groups[k], *p.Observed)
	}
	for i := range points {
		k := monthDay{points[i].Date.Month(), points[i].Date.Day()}
		if m := domain.MeanOf(groups[k]); m != nil {
			v := domain.Round2(*m)
			points[i].Baseline = &v
		}
	}
}
