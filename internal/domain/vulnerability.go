package domain

import "math"

// vulnerabilityMultipliers is the share of a population considered at risk for
// each level. Unknown keeps a small nonzero share so a missing reading is never
// displayed as zero exposure.
var vulnerabilityMultipliers = [...]float64{
	RiskUnknown:  0.08,
	RiskComfort:  0.12,
	RiskCaution:  0.22,
	RiskModerate: 0.34,
	RiskHigh:     0.52,
	RiskExtreme:  0.72,
}

const maxLoadPct = 99

// VulnerabilityMultiplier returns the at-risk share for level. Out-of-range
// levels are treated as unknown.
func VulnerabilityMultiplier(level RiskLevel) float64 {
	if !level.Valid() {
		level = RiskUnknown
	}
	return vulnerabilityMultipliers[level]
}

// Estimate converts a risk level and population into an at-risk headcount and
// a cooling-center load percentage. Both results are nil when the population
// is unknown. The load never reaches 100.
func Estimate(level RiskLevel, population *int64) (vulnerable *int64, loadPct *int) {
	if population == nil {
		return nil, nil
	}
	m := VulnerabilityMultiplier(level)

	count := int64(math.Round(float64(*population) * m))
	load := int(math.Round(40 + m*60))
	if load > maxLoadPct {
		load = maxLoadPct
	}
	return &count, &load
}
