package doa

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Delay is an inter-channel time offset estimated from the cross-correlation peak
type Delay struct {
	Samples int     `json:"delay_samples"`
	Seconds float64 `json:"delay_seconds"`
}

// FallbackDelay is returned when the delay cannot be computed
var FallbackDelay = Delay{}

// DirectCorrelationLimit is the lenA*lenB product above which the correlation is computed
// through the FFT instead of the direct sum
const DirectCorrelationLimit = 1 << 20

// DelayEstimator estimates the lag between two channels
type DelayEstimator struct {
	// DirectLimit overrides DirectCorrelationLimit when positive
	DirectLimit int
}

// EstimateDelay estimates the lag of a relative to b with the default estimator
func EstimateDelay(a, b []float64, sampleRate int) (Delay, error) {
	return DelayEstimator{}.Estimate(a, b, sampleRate)
}

// Estimate computes the full linear cross-correlation of a against b and returns the lag
// of its first maximum. A positive lag means a trails b. A channel estimated against itself
// yields zero.
//
// On degenerate input it returns FallbackDelay together with an *EstimationError.
func (e DelayEstimator) Estimate(a, b []float64, sampleRate int) (Delay, error) {
	if len(a) == 0 || len(b) == 0 {
		return FallbackDelay, &EstimationError{Estimator: "delay", Err: fmt.Errorf("empty channel")}
	}
	if sampleRate <= 0 {
		return FallbackDelay, &EstimationError{Estimator: "delay", Err: fmt.Errorf("invalid sample rate: %d", sampleRate)}
	}

	limit := e.DirectLimit
	if limit <= 0 {
		limit = DirectCorrelationLimit
	}

	var corr []float64
	if len(a)*len(b) <= limit {
		corr = CrossCorrelate(a, b)
	} else {
		corr = crossCorrelateFFT(a, b)
	}

	peak, err := argmax(corr)
	if err != nil {
		return FallbackDelay, &EstimationError{Estimator: "delay", Err: err}
	}

	// the full correlation has len(a)+len(b)-1 lags; zero lag sits at index len(b)-1
	samples := peak - (len(b) - 1)
	return Delay{
		Samples: samples,
		Seconds: float64(samples) / float64(sampleRate),
	}, nil
}

// CrossCorrelate returns the full linear cross-correlation of a and b,
// len(a)+len(b)-1 values where index len(b)-1 is zero lag.
func CrossCorrelate(a, b []float64) []float64 {
	nb := len(b)
	out := make([]float64, len(a)+nb-1)
	for k := range out {
		lag := k - (nb - 1)
		var sum float64
		for j := 0; j < nb; j++ {
			i := j + lag
			if i < 0 || i >= len(a) {
				continue
			}
			sum += a[i] * b[j]
		}
		out[k] = sum
	}
	return out
}

// crossCorrelateFFT computes the same values as CrossCorrelate in O(n log n)
func crossCorrelateFFT(a, b []float64) []float64 {
	nb := len(b)
	full := len(a) + nb - 1

	size := 1
	for size < full {
		size <<= 1
	}

	pa := make([]float64, size)
	pb := make([]float64, size)
	copy(pa, a)
	copy(pb, b)

	fft := fourier.NewFFT(size)
	ca := fft.Coefficients(nil, pa)
	cb := fft.Coefficients(nil, pb)
	for i := range ca {
		ca[i] *= cmplx.Conj(cb[i])
	}

	// circular[k] holds lag k for k >= 0 and lag k-size for the wrapped negative lags
	circular := fft.Sequence(nil, ca)
	scale := 1 / float64(size)

	out := make([]float64, full)
	for k := range out {
		lag := k - (nb - 1)
		idx := lag
		if idx < 0 {
			idx += size
		}
		out[k] = circular[idx] * scale
	}
	return out
}

// argmax returns the index of the first maximum
func argmax(values []float64) (int, error) {
	best := -1
	for i, v := range values {
		if !isFinite(v) {
			return 0, fmt.Errorf("non-finite correlation at index %d", i)
		}
		if best < 0 || v > values[best] {
			best = i
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("empty correlation")
	}
	return best, nil
}
