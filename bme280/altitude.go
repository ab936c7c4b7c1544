package bme280

import "math"

// StandardSeaLevel is the ISA sea level pressure in hPa.
const StandardSeaLevel = 1013.25

// Altitude returns the altitude in metres for pressure, given the pressure at
// sea level, both in hPa (international barometric formula).
func Altitude(pressureHPa, seaLevelHPa float64) float64 {
	return 44330.0 * (1.0 - math.Pow(pressureHPa/seaLevelHPa, 0.1903))
}

// SeaLevelPressure returns the sea level pressure in hPa from an altitude in
// metres and the pressure measured there in hPa.
func SeaLevelPressure(altitudeM, pressureHPa float64) float64 {
	return pressureHPa / math.Pow(1.0-altitudeM/44330.0, 5.255)
}
