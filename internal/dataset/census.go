package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

// censusColumns is the fixed schema of the census export.
var censusColumns = []string{
	"city",
	"classification",
	"district",
	"population_2020",
	"population_2015",
	"annual_growth_rate_pct",
	"area_km2",
	"density_per_km2",
	"barangays",
	"province_population_share_pct",
	"source_url",
	"collected_at",
}

// ParseDemographics parses the census CSV. Numeric fields are parsed leniently
// and become unknown when unparseable; rows without a locality are skipped.
func ParseDemographics(data []byte) ([]domain.DemographicRecord, error) {
	table, err := parseTable(data)
	if err != nil {
		return nil, err
	}
	if len(table.Header) != len(censusColumns) {
		return nil, fmt.Errorf("census: expected %d columns, got %d", len(censusColumns), len(table.Header))
	}

	idx := make(map[string]int, len(censusColumns))
	for _, name := range censusColumns {
		i := table.Column(name)
		if i < 0 {
			return nil, fmt.Errorf("census: %w: %s", errMissingColumn, name)
		}
		idx[name] = i
	}

	records := make([]domain.DemographicRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		field := func(name string) string { return row.Field(idx[name]) }

		name := field("city")
		if name == "" {
			continue
		}
		rec := domain.DemographicRecord{
			Locality:           name,
			Classification:     strings.ToLower(field("classification")),
			District:           field("district"),
			Population2020:     ParseCount(field("population_2020")),
			Population2015:     ParseCount(field("population_2015")),
			GrowthRatePct:      ParseNumber(field("annual_growth_rate_pct")),
			AreaKm2:            ParseNumber(field("area_km2")),
			DensityPerKm2:      ParseNumber(field("density_per_km2")),
			AdminUnits:         ParseCount(field("barangays")),
			PopulationSharePct: ParseNumber(field("province_population_share_pct")),
			SourceURL:          field("source_url"),
		}
		if t, err := time.Parse(time.RFC3339, field("collected_at")); err == nil {
			rec.CollectedAt = &t
		}
		records = append(records, rec)
	}
	return records, nil
}

// FindDemographic returns a copy of locality's record, or nil when the locality
// is not in the census.
func FindDemographic(records []domain.DemographicRecord, locality string) *domain.DemographicRecord {
	for i := range records {
		if sameLocality(records[i].Locality, locality) {
			rec := records[i]
			return &rec
		}
	}
	return nil
}
