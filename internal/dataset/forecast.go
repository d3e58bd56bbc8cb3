package dataset

import (
	"fmt"
	"sort"
	"time"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

// ParseForecast extracts locality's daily predictions (Celsius) from the
// forecast CSV. Rows without a prediction or a parseable date are skipped.
// The returned window holds up to windowDays points dated today or later, or
// the most recent windowDays past points when nothing is upcoming.
func ParseForecast(data []byte, locality string, windowDays int, today time.Time) ([]domain.ForecastPoint, error) {
	table, err := parseTable(data)
	if err != nil {
		return nil, err
	}

	cityCol := table.Column("city", "locality")
	dateCol := table.Column("date")
	predCol := table.Column("predicted", "heat_index_pred")
	if cityCol < 0 || dateCol < 0 || predCol < 0 {
		return nil, fmt.Errorf("forecast: %w: city, date, or prediction", errMissingColumn)
	}
	actualCol := table.Column("actual", "heat_index_actual")
	residCol := table.Column("residual")

	byDate := make(map[time.Time]domain.ForecastPoint)
	for _, row := range table.Rows {
		if !sameLocality(row.Field(cityCol), locality) {
			continue
		}
		date, ok := parseDate(row.Field(dateCol))
		if !ok {
			continue
		}
		pred := ParseNumber(row.Field(predCol))
		if pred == nil {
			continue
		}
		byDate[date] = domain.ForecastPoint{
			Locality:  row.Field(cityCol),
			Date:      date,
			Predicted: *pred,
			Actual:    ParseNumber(row.Field(actualCol)),
			Residual:  ParseNumber(row.Field(residCol)),
		}
	}

	points := make([]domain.ForecastPoint, 0, len(byDate))
	for _, p := range byDate {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	return domain.SelectForecastWindow(points, today, windowDays), nil
}
