package domain

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordinal heat-stress classification. Values are ordered by
// ascending severity, so levels can be compared with < and >.
type RiskLevel int

const (
	RiskUnknown RiskLevel = iota
	RiskComfort
	RiskCaution
	RiskModerate
	RiskHigh
	RiskExtreme
)

// Lower bounds (inclusive, °C heat index) of each band above comfort.
const (
	CautionThreshold  = 27.0
	ModerateThreshold = 32.0
	HighThreshold     = 41.0
	ExtremeThreshold  = 54.0
)

var riskNames = [...]string{
	RiskUnknown:  "unknown",
	RiskComfort:  "comfort",
	RiskCaution:  "caution",
	RiskModerate: "moderate",
	RiskHigh:     "high",
	RiskExtreme:  "extreme",
}

var riskLabels = [...]string{
	RiskUnknown:  "No data",
	RiskComfort:  "Comfortable",
	RiskCaution:  "Caution",
	RiskModerate: "Extreme Caution",
	RiskHigh:     "Danger",
	RiskExtreme:  "Extreme Danger",
}

// Classify maps a heat index to its risk level and display label. A nil value
// is unknown. Each band is closed on its lower bound.
func Classify(value *float64) (RiskLevel, string) {
	level := classifyLevel(value)
	return level, level.Label()
}

func classifyLevel(value *float64) RiskLevel {
	if value == nil {
		return RiskUnknown
	}
	v := *value
	switch {
	case v >= ExtremeThreshold:
		return RiskExtreme
	case v >= HighThreshold:
		return RiskHigh
	case v >= ModerateThreshold:
		return RiskModerate
	case v >= CautionThreshold:
		return RiskCaution
	default:
		return RiskComfort
	}
}

// Valid reports whether l is one of the six defined levels.
func (l RiskLevel) Valid() bool {
	return l >= RiskUnknown && l <= RiskExtreme
}

func (l RiskLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
	return riskNames[l]
}

// Label is the human-readable name shown on dashboards.
func (l RiskLevel) Label() string {
	if !l.Valid() {
		return riskLabels[RiskUnknown]
	}
	return riskLabels[l]
}

// MarshalText encodes the level as its lowercase name.
func (l RiskLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText accepts the lowercase name produced by MarshalText.
func (l *RiskLevel) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for i, name := range riskNames {
		if name == s {
			*l = RiskLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", s)
}
