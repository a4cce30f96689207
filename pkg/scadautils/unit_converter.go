package scadautils

import "math"

// Calibration constants for the field sensors shipped with the
// stations. Raw electrical values are converted collector-side so the
// API only ever sees engineering units.
const (
	// Apogee-class quantum sensor: µmol/m²/s per millivolt.
	parMicromolPerMv = 5.0
	// Thermopile pyranometer sensitivity: millivolt per W/m².
	pyranoMvPerWm2 = 0.2
	// Tipping-bucket rain gauge: millimeters per tip.
	mmPerTip = 0.2
)

// No negative values
func ParMvToMicromol(mv float64) float64 {
	if mv < 0 {
		return 0
	}
	return mv * parMicromolPerMv
}

// No negative values
func PyranoMvToWm2(mv float64) float64 {
	if mv < 0 {
		return 0
	}
	return mv / pyranoMvPerWm2
}

// Convert bucket tip count to millimeters of rainfall - No negative values
func RainTipsToMm(tips float64) float64 {
	if tips < 0 {
		return 0
	}
	return math.Round(tips*mmPerTip*100) / 100
}

func MpsToKmh(mps float64) float64 {
	return mps * 3.6
}

func KmhToMps(kmh float64) float64 {
	return kmh / 3.6
}
