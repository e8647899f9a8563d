// Package doa estimates direction of arrival and inter-channel delay from FOA channels
package doa

import "math"

// NormalizeDegrees normalizes an angle in degrees to [0, 360)
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -0 and values that round up to 360 after the shift
	if deg >= 360 || deg == 0 {
		return 0
	}
	return deg
}

// Degrees converts radians to degrees
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
