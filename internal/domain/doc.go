// Package domain models heat-stress observations, forecasts, and census data
// for named localities, and the pure functions that turn them into risk
// indicators.
//
// # Data Sources
//
// Hourly readings come from a JSON document refreshed by the hourly collector
// job, which queries the Open-Meteo forecast API for one past day and one
// forecast day per locality. Daily history and model forecasts are delimited
// exports of the training jobs. Demographics are scraped once from the
// provincial census table and treated as reference data.
//
// # Units
//
// The heat index is carried in °C. Sources that only provide °F are converted
// on load, and sources that only provide temperature and humidity are run
// through HeatIndexF:
//
//	T < 80 °F after the Steadman average  →  Steadman value
//	otherwise                             →  Rothfusz regression
//	RH < 13 %, 80–112 °F                  →  minus dry-air correction
//	RH > 85 %, 80–87 °F                   →  plus humid-air correction
//
// # Risk Bands
//
// Bands are closed on their lower bound:
//
//	unknown   no value
//	comfort   < 27
//	caution   27 – < 32
//	moderate  32 – < 41
//	high      41 – < 54
//	extreme   ≥ 54
//
// # Unknown Values
//
// Optional numeric fields are pointers. A nil pointer means the value was
// absent or could not be parsed; it is never replaced with zero.
package domain
