package domain

import "math"

// CelsiusToFahrenheit converts a temperature from °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9.0/5.0 + 32.0
}

// FahrenheitToCelsius converts a temperature from °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32.0) * 5.0 / 9.0
}

// HeatIndexF computes the NWS heat index in °F from an air temperature in °C
// and relative humidity in percent. Humidity is clamped to [0, 100].
//
// Below 80 °F the simple Steadman average is used; above it the Rothfusz
// regression applies, with the NWS corrections for very dry and very humid air.
func HeatIndexF(tempC, relativeHumidity float64) float64 {
	t := CelsiusToFahrenheit(tempC)
	rh := math.Max(0, math.Min(relativeHumidity, 100))

	simple := 0.5 * (t + 61.0 + (t-68.0)*1.2 + rh*0.094)
	hi := (simple + t) / 2.0
	if hi < 80.0 {
		return hi
	}

	hi = -42.379 +
		2.04901523*t +
		10.14333127*rh -
		0.22475541*t*rh -
		0.00683783*t*t -
		0.05481717*rh*rh +
		0.00122874*t*t*rh +
		0.00085282*t*rh*rh -
		0.00000199*t*t*rh*rh

	switch {
	case rh < 13.0 && t >= 80.0 && t <= 112.0:
		hi -= ((13.0 - rh) / 4.0) * math.Sqrt(math.Max(0, (17.0-math.Abs(t-95.0))/17.0))
	case rh > 85.0 && t >= 80.0 && t <= 87.0:
		hi += ((rh - 85.0) / 10.0) * ((87.0 - t) / 5.0)
	}
	return hi
}

// HeatIndexC is HeatIndexF expressed in °C, the engine's canonical unit.
func HeatIndexC(tempC, relativeHumidity float64) float64 {
	return FahrenheitToCelsius(HeatIndexF(tempC, relativeHumidity))
}

// Round2 rounds to two decimal places, matching the precision of the source
// datasets.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
