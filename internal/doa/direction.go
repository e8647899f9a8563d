package doa

import (
	"fmt"
	"math"
)

// Direction is an estimated source direction in degrees
type Direction struct {
	Azimuth   float64 `json:"azimuth"`   // [0, 360)
	Elevation float64 `json:"elevation"` // [-90, 90]
}

// FallbackDirection is returned when the estimate cannot be computed
var FallbackDirection = Direction{}

// EstimationError describes a numeric failure in one of the estimators.
// The estimate that accompanies it is always the estimator's fallback value.
type EstimationError struct {
	Estimator string
	Err       error
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("%s estimation: %v", e.Estimator, e.Err)
}

func (e *EstimationError) Unwrap() error {
	return e.Err
}

// EstimateDirection derives azimuth and elevation from the mean of each directional
// channel. This is a bias proxy, not an intensity-vector DOA; the arithmetic is kept as is.
//
// It never fails in the usual sense: on degenerate input it returns FallbackDirection
// together with an *EstimationError describing why.
func EstimateDirection(x, y, z []float64) (Direction, error) {
	if len(x) == 0 || len(y) == 0 || len(z) == 0 {
		return FallbackDirection, &EstimationError{Estimator: "direction", Err: fmt.Errorf("empty channel")}
	}
	if len(x) != len(y) || len(y) != len(z) {
		return FallbackDirection, &EstimationError{
			Estimator: "direction",
			Err:       fmt.Errorf("mismatched channel lengths (x=%d, y=%d, z=%d)", len(x), len(y), len(z)),
		}
	}

	meanX := mean(x)
	meanY := mean(y)
	meanZ := mean(z)

	azimuth := NormalizeDegrees(Degrees(math.Atan2(meanX, meanY)))
	horizontal := math.Sqrt(meanX*meanX + meanY*meanY)
	elevation := Degrees(math.Atan2(meanZ, horizontal))

	if !isFinite(azimuth) || !isFinite(elevation) {
		return FallbackDirection, &EstimationError{
			Estimator: "direction",
			Err:       fmt.Errorf("non-finite result (azimuth=%v, elevation=%v)", azimuth, elevation),
		}
	}

	return Direction{Azimuth: azimuth, Elevation: elevation}, nil
}

func mean(samples []float64) float64 {
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}
